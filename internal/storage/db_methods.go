package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"trustline/backend/internal/apperr"
	"trustline/backend/internal/models"
)

// CreateUser inserts a user. A duplicate email is a Conflict.
func (s *Service) CreateUser(ctx context.Context, u *models.User) error {
	u.Email = normalizeEmail(u.Email)

	var existing int64
	if err := s.DB.WithContext(ctx).Model(&models.User{}).
		Where("email = ?", u.Email).
		Count(&existing).Error; err != nil {
		return fmt.Errorf("check user %s: %w", u.Email, err)
	}
	if existing > 0 {
		return apperr.Conflict("EMAIL_TAKEN", fmt.Sprintf("user %s already exists", u.Email))
	}

	if err := s.DB.WithContext(ctx).Create(u).Error; err != nil {
		return fmt.Errorf("create user %s: %w", u.Email, err)
	}
	return nil
}

// GetUserByEmail loads a user by email.
func (s *Service) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var u models.User
	err := s.DB.WithContext(ctx).Where("email = ?", normalizeEmail(email)).First(&u).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("USER_NOT_FOUND", fmt.Sprintf("user %s not found", email))
	}
	if err != nil {
		return nil, fmt.Errorf("get user %s: %w", email, err)
	}
	return &u, nil
}

// TouchLastLogin records a login at the given time.
func (s *Service) TouchLastLogin(ctx context.Context, email string, at time.Time) error {
	res := s.DB.WithContext(ctx).Model(&models.User{}).
		Where("email = ?", normalizeEmail(email)).
		UpdateColumn("last_login", at)
	if res.Error != nil {
		return fmt.Errorf("touch last login for %s: %w", email, res.Error)
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound("USER_NOT_FOUND", fmt.Sprintf("user %s not found", email))
	}
	return nil
}

// SetUserRole changes a user's role.
func (s *Service) SetUserRole(ctx context.Context, email, role string) error {
	res := s.DB.WithContext(ctx).Model(&models.User{}).
		Where("email = ?", normalizeEmail(email)).
		UpdateColumn("role", role)
	if res.Error != nil {
		return fmt.Errorf("set role for %s: %w", email, res.Error)
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound("USER_NOT_FOUND", fmt.Sprintf("user %s not found", email))
	}
	return nil
}

// ListUsers returns users newest first. A limit of zero means no limit.
func (s *Service) ListUsers(ctx context.Context, limit int) ([]models.User, error) {
	q := s.DB.WithContext(ctx).Order("created_at DESC, email ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var out []models.User
	if err := q.Find(&out).Error; err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return out, nil
}

// CountComplaints counts complaints with the given status, or all when status is empty.
func (s *Service) CountComplaints(ctx context.Context, status models.Status) (int64, error) {
	q := s.DB.WithContext(ctx).Model(&models.Complaint{})
	if status != "" {
		q = q.Where("status = ?", status)
	}
	var n int64
	if err := q.Count(&n).Error; err != nil {
		return 0, fmt.Errorf("count complaints: %w", err)
	}
	return n, nil
}

func (s *Service) CountUsers(ctx context.Context) (int64, error) {
	var n int64
	if err := s.DB.WithContext(ctx).Model(&models.User{}).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("count users: %w", err)
	}
	return n, nil
}

// CountUsersActiveSince counts users whose last login is at or after since.
func (s *Service) CountUsersActiveSince(ctx context.Context, since time.Time) (int64, error) {
	var n int64
	if err := s.DB.WithContext(ctx).Model(&models.User{}).
		Where("last_login >= ?", since).
		Count(&n).Error; err != nil {
		return 0, fmt.Errorf("count active users: %w", err)
	}
	return n, nil
}

// AverageResolution is the mean resolvedAt - createdAt over every complaint
// that was ever resolved. Zero when there are none.
func (s *Service) AverageResolution(ctx context.Context) (time.Duration, error) {
	var rows []struct {
		CreatedAt  time.Time
		ResolvedAt time.Time
	}
	if err := s.DB.WithContext(ctx).Model(&models.Complaint{}).
		Select("created_at", "resolved_at").
		Where("resolved_at IS NOT NULL").
		Scan(&rows).Error; err != nil {
		return 0, fmt.Errorf("load resolution times: %w", err)
	}
	if len(rows) == 0 {
		return 0, nil
	}

	var total time.Duration
	for _, r := range rows {
		total += r.ResolvedAt.Sub(r.CreatedAt)
	}
	return total / time.Duration(len(rows)), nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
