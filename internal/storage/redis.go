package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrOTPMissing is returned when no code is stored for the email (never issued,
// expired or already consumed).
var ErrOTPMissing = errors.New("otp not found")

const otpKeyPrefix = "otp:"

// StreamKey is the redis stream a topic is written to.
func (s *Service) StreamKey(topic string) string {
	return s.Queue.StreamPrefix + topic
}

// Enqueue appends payload to the topic's stream. Consumers read the "data"
// field; "timestamp" is unix seconds at enqueue time.
func (s *Service) Enqueue(ctx context.Context, topic string, payload []byte) error {
	args := &redis.XAddArgs{
		Stream: s.StreamKey(topic),
		Values: []interface{}{
			"data", string(payload),
			"timestamp", time.Now().Unix(),
		},
	}
	if s.Queue.MaxLen > 0 {
		args.MaxLen = s.Queue.MaxLen
		args.Approx = true
	}
	if err := s.Redis.XAdd(ctx, args).Err(); err != nil {
		return fmt.Errorf("enqueue to %s: %w", topic, err)
	}
	return nil
}

// SetOTP stores code for email, replacing any previous one.
func (s *Service) SetOTP(ctx context.Context, email, code string, ttl time.Duration) error {
	if err := s.Redis.Set(ctx, otpKeyPrefix+normalizeEmail(email), code, ttl).Err(); err != nil {
		return fmt.Errorf("store otp: %w", err)
	}
	return nil
}

// ConsumeOTP returns and deletes the stored code. Each code can be read once.
func (s *Service) ConsumeOTP(ctx context.Context, email string) (string, error) {
	code, err := s.Redis.GetDel(ctx, otpKeyPrefix+normalizeEmail(email)).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrOTPMissing
	}
	if err != nil {
		return "", fmt.Errorf("consume otp: %w", err)
	}
	return code, nil
}
