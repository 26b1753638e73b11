package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"trustline/backend/internal/apperr"
	"trustline/backend/internal/models"
)

// ErrVersionConflict is returned by ApplyUpdate when the row changed since it was read.
var ErrVersionConflict = errors.New("complaint version changed")

// Storage is the complaint store adapter plus the redis-backed queue and OTP cache.
type Storage interface {
	CreateComplaint(ctx context.Context, c *models.Complaint) error
	GetComplaint(ctx context.Context, id uint) (*models.Complaint, error)
	ApplyUpdate(ctx context.Context, c *models.Complaint, u *models.ComplaintUpdate) error
	ComplaintUpdates(ctx context.Context, id uint) ([]models.ComplaintUpdate, error)
	FindComplaints(ctx context.Context, f Filter) ([]models.Complaint, error)
	ListForEscalation(ctx context.Context, includeClosed bool) ([]models.Complaint, error)
	UpdatePriorities(ctx context.Context, changes []PriorityChange) (int, error)

	CreateUser(ctx context.Context, u *models.User) error
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	TouchLastLogin(ctx context.Context, email string, at time.Time) error
	SetUserRole(ctx context.Context, email, role string) error
	ListUsers(ctx context.Context, limit int) ([]models.User, error)

	CountComplaints(ctx context.Context, status models.Status) (int64, error)
	CountUsers(ctx context.Context) (int64, error)
	CountUsersActiveSince(ctx context.Context, since time.Time) (int64, error)
	AverageResolution(ctx context.Context) (time.Duration, error)

	Enqueue(ctx context.Context, topic string, payload []byte) error
	SetOTP(ctx context.Context, email, code string, ttl time.Duration) error
	ConsumeOTP(ctx context.Context, email string) (string, error)
}

// Filter narrows FindComplaints. Empty fields do not filter.
type Filter struct {
	Category    string
	Subcategory string
	Status      models.Status
	FiledBy     string
}

// PriorityChange is a compare-and-swap on the priority column.
type PriorityChange struct {
	ID   uint
	From models.Priority
	To   models.Priority
}

// QueueOptions controls the redis stream queue.
type QueueOptions struct {
	StreamPrefix string
	MaxLen       int64
}

type Service struct {
	DB    *gorm.DB
	Redis *redis.Client
	Queue QueueOptions
}

var _ Storage = (*Service)(nil)

// NewStorageService Constructor
func NewStorageService(db *gorm.DB, rdb *redis.Client, queue QueueOptions) *Service {
	return &Service{
		DB:    db,
		Redis: rdb,
		Queue: queue,
	}
}

// CreateComplaint inserts a new complaint; ID is assigned by the database.
func (s *Service) CreateComplaint(ctx context.Context, c *models.Complaint) error {
	if err := s.DB.WithContext(ctx).Omit("Updates").Create(c).Error; err != nil {
		return fmt.Errorf("create complaint: %w", err)
	}
	return nil
}

// GetComplaint loads a complaint with its update log in creation order.
func (s *Service) GetComplaint(ctx context.Context, id uint) (*models.Complaint, error) {
	var c models.Complaint
	err := s.DB.WithContext(ctx).
		Preload("Updates", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at asc, id asc")
		}).
		First(&c, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("COMPLAINT_NOT_FOUND", fmt.Sprintf("complaint %d not found", id))
	}
	if err != nil {
		return nil, fmt.Errorf("get complaint %d: %w", id, err)
	}
	return &c, nil
}

// ApplyUpdate writes the complaint's status fields and appends u in one
// transaction. The write only lands if the stored version still equals
// c.Version; otherwise ErrVersionConflict. Priority is never written here.
func (s *Service) ApplyUpdate(ctx context.Context, c *models.Complaint, u *models.ComplaintUpdate) error {
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Complaint{}).
			Where("id = ? AND version = ?", c.ID, c.Version).
			Updates(map[string]any{
				"status":      c.Status,
				"updated_at":  c.UpdatedAt,
				"resolved_at": c.ResolvedAt,
				"version":     c.Version + 1,
			})
		if res.Error != nil {
			return fmt.Errorf("update complaint %d: %w", c.ID, res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrVersionConflict
		}

		u.ComplaintID = c.ID
		if err := tx.Create(u).Error; err != nil {
			return fmt.Errorf("append update to complaint %d: %w", c.ID, err)
		}
		c.Version++
		return nil
	})
}

// ComplaintUpdates returns the update log of a complaint, oldest first.
func (s *Service) ComplaintUpdates(ctx context.Context, id uint) ([]models.ComplaintUpdate, error) {
	var updates []models.ComplaintUpdate
	if err := s.DB.WithContext(ctx).
		Where("complaint_id = ?", id).
		Order("created_at asc, id asc").
		Find(&updates).Error; err != nil {
		return nil, fmt.Errorf("list updates for complaint %d: %w", id, err)
	}
	return updates, nil
}

// FindComplaints lists complaints matching f, newest first.
func (s *Service) FindComplaints(ctx context.Context, f Filter) ([]models.Complaint, error) {
	q := s.DB.WithContext(ctx).Model(&models.Complaint{})
	if f.Category != "" {
		q = q.Where("category = ?", f.Category)
	}
	if f.Subcategory != "" {
		q = q.Where("subcategory = ?", f.Subcategory)
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.FiledBy != "" {
		q = q.Where("filed_by = ?", f.FiledBy)
	}

	complaints := make([]models.Complaint, 0)
	if err := q.Order("created_at desc, id desc").Find(&complaints).Error; err != nil {
		return nil, fmt.Errorf("find complaints: %w", err)
	}
	return complaints, nil
}

// ListForEscalation returns the columns the escalator needs.
func (s *Service) ListForEscalation(ctx context.Context, includeClosed bool) ([]models.Complaint, error) {
	q := s.DB.WithContext(ctx).Model(&models.Complaint{}).
		Select("id", "status", "priority", "created_at")
	if !includeClosed {
		q = q.Where("status NOT IN ?", []models.Status{models.StatusResolved, models.StatusRejected})
	}

	var complaints []models.Complaint
	if err := q.Order("id asc").Find(&complaints).Error; err != nil {
		return nil, fmt.Errorf("list complaints for escalation: %w", err)
	}
	return complaints, nil
}

// UpdatePriorities applies the batch in one transaction. A change whose row no
// longer holds From is skipped. Returns the number of rows promoted.
func (s *Service) UpdatePriorities(ctx context.Context, changes []PriorityChange) (int, error) {
	if len(changes) == 0 {
		return 0, nil
	}

	promoted := 0
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, ch := range changes {
			res := tx.Model(&models.Complaint{}).
				Where("id = ? AND priority = ?", ch.ID, ch.From).
				UpdateColumn("priority", ch.To)
			if res.Error != nil {
				return fmt.Errorf("promote complaint %d: %w", ch.ID, res.Error)
			}
			promoted += int(res.RowsAffected)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return promoted, nil
}
