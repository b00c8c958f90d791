package models

import "time"

// PasswordResetToken is a single-use opaque credential authorising one
// password change. Issuing a new token for an email marks every prior unused
// token for that email used, so at most one token per email is live at a time.
type PasswordResetToken struct {
	BaseModel

	Email     string    `gorm:"index;not null" json:"email"`
	Token     string    `gorm:"uniqueIndex;not null" json:"-"`
	ExpiresAt time.Time `gorm:"index;not null" json:"expires_at"`
	Used      bool      `gorm:"default:false" json:"used"`
}
