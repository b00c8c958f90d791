package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/listenme/listenme/internal/models"
	"github.com/listenme/listenme/pkg/crypto"
)

const defaultResetExpiry = time.Hour

// ErrResetTokenInvalid reports that a reset token is unknown, consumed, or expired.
var ErrResetTokenInvalid = errors.New("password reset: invalid or expired token")

// ResetOption customises the PasswordResetService.
type ResetOption func(*PasswordResetService)

// WithResetExpiry overrides the token lifetime.
func WithResetExpiry(d time.Duration) ResetOption {
	return func(s *PasswordResetService) {
		if d > 0 {
			s.expiry = d
		}
	}
}

// WithResetClock injects a custom time source.
func WithResetClock(clock func() time.Time) ResetOption {
	return func(s *PasswordResetService) {
		if clock != nil {
			s.now = clock
		}
	}
}

// PasswordResetService manages the lifecycle of password reset tokens. Unlike
// one-time codes, issuing a token retires every earlier unused token for the
// same email, so at most one reset link per account works at any moment.
type PasswordResetService struct {
	db     *gorm.DB
	expiry time.Duration
	now    func() time.Time
}

// NewPasswordResetService constructs the service with the provided database handle.
func NewPasswordResetService(db *gorm.DB, opts ...ResetOption) (*PasswordResetService, error) {
	if db == nil {
		return nil, errors.New("password reset service: db is required")
	}

	service := &PasswordResetService{
		db:     db,
		expiry: defaultResetExpiry,
		now:    time.Now,
	}

	for _, opt := range opts {
		opt(service)
	}

	return service, nil
}

// WithTx returns a copy of the service bound to the given transaction handle,
// so a token claim can share a transaction with the work it authorises.
func (s *PasswordResetService) WithTx(tx *gorm.DB) *PasswordResetService {
	if tx == nil {
		return s
	}
	scoped := *s
	scoped.db = tx
	return &scoped
}

// Issue invalidates all outstanding tokens for the email and stores a fresh
// one in the same transaction. The plaintext token is returned for delivery.
func (s *PasswordResetService) Issue(ctx context.Context, email string) (string, error) {
	email = NormalizeEmail(email)
	if email == "" {
		return "", errors.New("password reset service: email is required")
	}

	token := crypto.GenerateResetToken()
	record := models.PasswordResetToken{
		Email:     email,
		Token:     token,
		ExpiresAt: s.now().Add(s.expiry),
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.PasswordResetToken{}).
			Where("email = ? AND used = ?", email, false).
			Update("used", true).Error; err != nil {
			return fmt.Errorf("retire prior tokens: %w", err)
		}
		if err := tx.Create(&record).Error; err != nil {
			return fmt.Errorf("store token: %w", err)
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("password reset service: %w", err)
	}

	return token, nil
}

// Consume claims a live token and returns the email it was issued for. The
// claim is a conditional UPDATE guarded on used=false; when two resets race on
// the same token only one sees a nonzero rows-affected count.
func (s *PasswordResetService) Consume(ctx context.Context, token string) (string, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return "", ErrResetTokenInvalid
	}

	var record models.PasswordResetToken
	err := s.db.WithContext(ctx).
		Where("token = ? AND used = ? AND expires_at > ?", token, false, s.now()).
		First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", ErrResetTokenInvalid
	}
	if err != nil {
		return "", fmt.Errorf("password reset service: find token: %w", err)
	}

	result := s.db.WithContext(ctx).
		Model(&models.PasswordResetToken{}).
		Where("id = ? AND used = ?", record.ID, false).
		Update("used", true)
	if result.Error != nil {
		return "", fmt.Errorf("password reset service: consume token: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return "", ErrResetTokenInvalid
	}

	return record.Email, nil
}

// Live reports whether a token could currently be consumed, without consuming
// it. Clients probe reset links before showing the new-password form.
func (s *PasswordResetService) Live(ctx context.Context, token string) (bool, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return false, nil
	}

	var count int64
	err := s.db.WithContext(ctx).
		Model(&models.PasswordResetToken{}).
		Where("token = ? AND used = ? AND expires_at > ?", token, false, s.now()).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("password reset service: probe token: %w", err)
	}

	return count > 0, nil
}

// PurgeExpired removes tokens past their expiry.
func (s *PasswordResetService) PurgeExpired(ctx context.Context) (int64, error) {
	result := s.db.WithContext(ctx).
		Where("expires_at < ?", s.now()).
		Delete(&models.PasswordResetToken{})
	if result.Error != nil {
		return 0, fmt.Errorf("password reset service: purge: %w", result.Error)
	}
	return result.RowsAffected, nil
}
