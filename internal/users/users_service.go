// Package users registers users, issues and verifies one-time passwords and
// signs the identity tokens the HTTP layer accepts.
package users

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"trustline/backend/internal/apperr"
	"trustline/backend/internal/config"
	"trustline/backend/internal/events"
	"trustline/backend/internal/logger"
	"trustline/backend/internal/models"
	"trustline/backend/internal/storage"
)

const defaultIssuer = "trustline-backend"

// Store is the part of the store adapter the user service needs.
type Store interface {
	CreateUser(ctx context.Context, u *models.User) error
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	TouchLastLogin(ctx context.Context, email string, at time.Time) error
	SetUserRole(ctx context.Context, email, role string) error
	ListUsers(ctx context.Context, limit int) ([]models.User, error)
	SetOTP(ctx context.Context, email, code string, ttl time.Duration) error
	ConsumeOTP(ctx context.Context, email string) (string, error)
}

// Publisher receives the domain events emitted here.
type Publisher interface {
	Publish(ev events.Event)
}

// Claims is the JWT payload.
type Claims struct {
	Email string `json:"email"`
	Role  string `json:"role"`
	jwt.RegisteredClaims
}

// Options configures a Service.
type Options struct {
	Secret    []byte
	TokenTTL  time.Duration
	Issuer    string
	OTPTTL    time.Duration
	OTPLength int
	Clock     func() time.Time
}

type Service struct {
	store     Store
	publisher Publisher
	opts      Options
}

func NewService(store Store, publisher Publisher, opts Options) *Service {
	if opts.TokenTTL <= 0 {
		opts.TokenTTL = 72 * time.Hour
	}
	if opts.Issuer == "" {
		opts.Issuer = defaultIssuer
	}
	if opts.OTPTTL <= 0 {
		opts.OTPTTL = config.DefaultOTPTTL
	}
	if opts.OTPLength <= 0 {
		opts.OTPLength = config.DefaultOTPLength
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	return &Service{store: store, publisher: publisher, opts: opts}
}

func (s *Service) now() time.Time {
	return s.opts.Clock().UTC().Truncate(time.Microsecond)
}

// Register creates an active USER account.
func (s *Service) Register(ctx context.Context, email, name string) (*models.User, error) {
	email = strings.TrimSpace(email)
	name = strings.TrimSpace(name)

	var fields []apperr.FieldError
	if email == "" || !strings.Contains(email, "@") {
		fields = append(fields, apperr.FieldError{Field: "email", Message: "a valid email is required"})
	}
	if name == "" {
		fields = append(fields, apperr.FieldError{Field: "name", Message: "name is required"})
	}
	if len(fields) > 0 {
		return nil, apperr.Validation("INVALID_USER", "user is invalid", fields...)
	}

	u := &models.User{
		Email:     email,
		Name:      name,
		Role:      models.RoleUser,
		Active:    true,
		CreatedAt: s.now(),
	}
	if err := s.store.CreateUser(ctx, u); err != nil {
		if _, ok := apperr.As(err); ok {
			return nil, err
		}
		logger.Error("Failed to create user", zap.String("email", email), zap.Error(err))
		return nil, apperr.Internal("failed to create user", err)
	}

	s.publisher.Publish(events.UserRegistered{User: *u, At: u.CreatedAt})
	return u, nil
}

// IssueOTP stores a fresh numeric code for a registered user and asks the
// notification sender to mail it. A previous code is replaced.
func (s *Service) IssueOTP(ctx context.Context, email string) error {
	u, err := s.store.GetUserByEmail(ctx, email)
	if err != nil {
		return err
	}

	code, err := generateCode(s.opts.OTPLength)
	if err != nil {
		return apperr.Internal("failed to generate otp", err)
	}
	if err := s.store.SetOTP(ctx, u.Email, code, s.opts.OTPTTL); err != nil {
		logger.Error("Failed to store otp", zap.String("email", u.Email), zap.Error(err))
		return apperr.Internal("failed to store otp", err)
	}

	s.publisher.Publish(events.OTPIssued{
		Email: u.Email,
		Name:  u.Name,
		Code:  code,
		TTL:   s.opts.OTPTTL,
		At:    s.now(),
	})
	return nil
}

// VerifyOTP consumes the stored code. Whether it matches or not, the code
// cannot be used again. On success the login is recorded and a token returned.
func (s *Service) VerifyOTP(ctx context.Context, email, code string) (string, error) {
	stored, err := s.store.ConsumeOTP(ctx, email)
	if errors.Is(err, storage.ErrOTPMissing) {
		return "", apperr.Validation("INVALID_OTP", "otp is invalid or expired")
	}
	if err != nil {
		return "", apperr.Internal("failed to read otp", err)
	}
	if subtle.ConstantTimeCompare([]byte(stored), []byte(strings.TrimSpace(code))) != 1 {
		return "", apperr.Validation("INVALID_OTP", "otp is invalid or expired")
	}

	u, err := s.store.GetUserByEmail(ctx, email)
	if err != nil {
		return "", err
	}
	if err := s.RecordLogin(ctx, u.Email); err != nil {
		return "", err
	}
	return s.IssueToken(u)
}

// RecordLogin sets lastLogin to now.
func (s *Service) RecordLogin(ctx context.Context, email string) error {
	if err := s.store.TouchLastLogin(ctx, email, s.now()); err != nil {
		if _, ok := apperr.As(err); ok {
			return err
		}
		return apperr.Internal("failed to record login", err)
	}
	return nil
}

// SetRole grants USER or ADMIN. Tokens issued before the change keep the old role
// until they expire.
func (s *Service) SetRole(ctx context.Context, email, role string) error {
	role = strings.ToUpper(strings.TrimSpace(role))
	if role != models.RoleUser && role != models.RoleAdmin {
		return apperr.Validation("INVALID_ROLE", "role must be USER or ADMIN",
			apperr.FieldError{Field: "role", Message: "must be USER or ADMIN"})
	}
	if err := s.store.SetUserRole(ctx, email, role); err != nil {
		if _, ok := apperr.As(err); ok {
			return err
		}
		return apperr.Internal("failed to change role", err)
	}
	return nil
}

// List returns registered users, newest first.
func (s *Service) List(ctx context.Context, limit int) ([]models.User, error) {
	if limit < 0 {
		return nil, apperr.Validation("INVALID_LIMIT", "limit must not be negative",
			apperr.FieldError{Field: "limit", Message: "must not be negative"})
	}
	out, err := s.store.ListUsers(ctx, limit)
	if err != nil {
		return nil, apperr.Internal("failed to list users", err)
	}
	return out, nil
}

// IssueToken signs an HS256 token carrying the user's email and role.
func (s *Service) IssueToken(u *models.User) (string, error) {
	now := s.opts.Clock()
	claims := Claims{
		Email: u.Email,
		Role:  u.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.ID,
			Issuer:    s.opts.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.opts.TokenTTL)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.opts.Secret)
	if err != nil {
		return "", apperr.Internal("failed to sign token", err)
	}
	return signed, nil
}

// ParseToken validates a token signed by IssueToken.
func ParseToken(raw string, secret []byte, issuer string) (*Claims, error) {
	if issuer == "" {
		issuer = defaultIssuer
	}
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		return secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}
	if claims.Email == "" {
		return nil, errors.New("parse token: missing email claim")
	}
	return claims, nil
}

func generateCode(length int) (string, error) {
	var b strings.Builder
	b.Grow(length)
	ten := big.NewInt(10)
	for i := 0; i < length; i++ {
		n, err := rand.Int(rand.Reader, ten)
		if err != nil {
			return "", err
		}
		b.WriteByte(byte('0' + n.Int64()))
	}
	return b.String(), nil
}
