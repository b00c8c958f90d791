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

const (
	defaultCodeExpiry = 10 * time.Minute
	defaultCodeDigits = 6
)

// ErrCodeInvalid reports that no live one-time code matched the submitted
// value. Expired, consumed, and never-issued codes are indistinguishable to
// the caller.
var ErrCodeInvalid = errors.New("one-time code: invalid or expired")

// CodeOption customises the OneTimeCodeService.
type CodeOption func(*OneTimeCodeService)

// WithCodeExpiry overrides the code lifetime.
func WithCodeExpiry(d time.Duration) CodeOption {
	return func(s *OneTimeCodeService) {
		if d > 0 {
			s.expiry = d
		}
	}
}

// WithCodeClock injects a custom time source.
func WithCodeClock(clock func() time.Time) CodeOption {
	return func(s *OneTimeCodeService) {
		if clock != nil {
			s.now = clock
		}
	}
}

// OneTimeCodeService issues and consumes short-lived numeric codes proving
// control of an email address. Issuing never invalidates earlier codes; each
// row stays independently consumable until it expires or is used.
type OneTimeCodeService struct {
	db     *gorm.DB
	expiry time.Duration
	digits int
	now    func() time.Time
}

// NewOneTimeCodeService constructs the service with the provided database handle.
func NewOneTimeCodeService(db *gorm.DB, opts ...CodeOption) (*OneTimeCodeService, error) {
	if db == nil {
		return nil, errors.New("one-time code service: db is required")
	}

	service := &OneTimeCodeService{
		db:     db,
		expiry: defaultCodeExpiry,
		digits: defaultCodeDigits,
		now:    time.Now,
	}

	for _, opt := range opts {
		opt(service)
	}

	return service, nil
}

// Issue generates a fresh code for the email and persists it with the
// configured lifetime. The plaintext code is returned for delivery.
func (s *OneTimeCodeService) Issue(ctx context.Context, email string) (string, error) {
	email = NormalizeEmail(email)
	if email == "" {
		return "", errors.New("one-time code service: email is required")
	}

	code, err := crypto.GenerateNumericCode(s.digits)
	if err != nil {
		return "", fmt.Errorf("one-time code service: %w", err)
	}

	record := models.OneTimeCode{
		Email:     email,
		Code:      code,
		ExpiresAt: s.now().Add(s.expiry),
	}
	if err := s.db.WithContext(ctx).Create(&record).Error; err != nil {
		return "", fmt.Errorf("one-time code service: store code: %w", err)
	}

	return code, nil
}

// Consume marks the newest live code matching (email, code) as used. Exactly
// one of any number of racing calls for the same row succeeds: the row is
// claimed with a single conditional UPDATE guarded on used=false, and a zero
// rows-affected result means another consumer got there first.
func (s *OneTimeCodeService) Consume(ctx context.Context, email, code string) error {
	email = NormalizeEmail(email)
	code = strings.TrimSpace(code)
	if email == "" || code == "" {
		return ErrCodeInvalid
	}

	var record models.OneTimeCode
	err := s.db.WithContext(ctx).
		Where("email = ? AND code = ? AND used = ? AND expires_at > ?", email, code, false, s.now()).
		Order("created_at DESC").
		First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrCodeInvalid
	}
	if err != nil {
		return fmt.Errorf("one-time code service: find code: %w", err)
	}

	result := s.db.WithContext(ctx).
		Model(&models.OneTimeCode{}).
		Where("id = ? AND used = ?", record.ID, false).
		Update("used", true)
	if result.Error != nil {
		return fmt.Errorf("one-time code service: consume code: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrCodeInvalid
	}

	return nil
}

// PurgeExpired removes codes past their expiry. Consumed but unexpired rows
// are kept as history until they age out.
func (s *OneTimeCodeService) PurgeExpired(ctx context.Context) (int64, error) {
	result := s.db.WithContext(ctx).
		Where("expires_at < ?", s.now()).
		Delete(&models.OneTimeCode{})
	if result.Error != nil {
		return 0, fmt.Errorf("one-time code service: purge: %w", result.Error)
	}
	return result.RowsAffected, nil
}

// NormalizeEmail lower-cases and trims an address so matching is
// case-insensitive end to end.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
