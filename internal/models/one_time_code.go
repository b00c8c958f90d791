package models

import "time"

// OneTimeCode is a short-lived numeric credential proving control of an email
// address. Rows are history: multiple codes may exist per email and only the
// most recently issued, unused, unexpired one matching a submitted value is
// honoured. Consumed rows keep their used flag forever; expired rows are
// removed by the maintenance cleaner.
type OneTimeCode struct {
	BaseModel

	Email     string    `gorm:"index;not null" json:"email"`
	Code      string    `gorm:"not null" json:"-"`
	ExpiresAt time.Time `gorm:"index;not null" json:"expires_at"`
	Used      bool      `gorm:"default:false" json:"used"`
}

// TableName keeps the historical table name used by existing deployments.
func (OneTimeCode) TableName() string {
	return "otp_codes"
}
