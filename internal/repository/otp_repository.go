package repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/noah-isme/attendease-api/internal/models"
)

// ErrOTPNotFound means no live code exists for the e-mail and purpose.
var ErrOTPNotFound = errors.New("otp not found")

// OTPRepository keeps one outstanding code per (purpose, e-mail) in a Redis
// hash whose TTL is the code's lifetime.
type OTPRepository struct {
	client redis.UniversalClient
}

func NewOTPRepository(client redis.UniversalClient) *OTPRepository {
	return &OTPRepository{client: client}
}

func otpKey(purpose models.OTPPurpose, email string) string {
	return fmt.Sprintf("otp:%s:%s", purpose, strings.ToLower(strings.TrimSpace(email)))
}

// Save replaces any previous code for the key.
func (r *OTPRepository) Save(ctx context.Context, purpose models.OTPPurpose, email, codeHash string, ttl time.Duration) error {
	key := otpKey(purpose, email)
	expiresAt := time.Now().Add(ttl).UTC()
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		pipe.HSet(ctx, key, "code_hash", codeHash, "attempts", 0, "expires_at", expiresAt.Format(time.RFC3339Nano))
		pipe.Expire(ctx, key, ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("save otp: %w", err)
	}
	return nil
}

// Get loads the outstanding code or returns ErrOTPNotFound.
func (r *OTPRepository) Get(ctx context.Context, purpose models.OTPPurpose, email string) (*models.OTPEntry, error) {
	values, err := r.client.HGetAll(ctx, otpKey(purpose, email)).Result()
	if err != nil {
		return nil, fmt.Errorf("get otp: %w", err)
	}
	if len(values) == 0 || values["code_hash"] == "" {
		return nil, ErrOTPNotFound
	}

	attempts, _ := strconv.Atoi(values["attempts"])
	expiresAt, _ := time.Parse(time.RFC3339Nano, values["expires_at"])
	return &models.OTPEntry{CodeHash: values["code_hash"], Attempts: attempts, ExpiresAt: expiresAt}, nil
}

// IncrementAttempts bumps the failed-attempt counter and returns the new value.
func (r *OTPRepository) IncrementAttempts(ctx context.Context, purpose models.OTPPurpose, email string) (int, error) {
	key := otpKey(purpose, email)
	var incr *redis.IntCmd
	var exists *redis.BoolCmd
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.HIncrBy(ctx, key, "attempts", 1)
		exists = pipe.HExists(ctx, key, "code_hash")
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("increment otp attempts: %w", err)
	}
	if !exists.Val() {
		// the code expired between read and increment; HINCRBY recreated the
		// key without a TTL
		_ = r.client.Del(ctx, key).Err()
		return 0, ErrOTPNotFound
	}
	return int(incr.Val()), nil
}

// Delete burns the code.
func (r *OTPRepository) Delete(ctx context.Context, purpose models.OTPPurpose, email string) error {
	if err := r.client.Del(ctx, otpKey(purpose, email)).Err(); err != nil {
		return fmt.Errorf("delete otp: %w", err)
	}
	return nil
}
