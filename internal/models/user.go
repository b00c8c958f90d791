package models

// User is an account identified by its lower-cased email address.
//
// IsAdmin is derived once at signup by comparing the email against the
// configured admin address and never changes afterwards. Verified flips to
// true exactly once, when a one-time code is consumed for the email.
type User struct {
	BaseModel

	Email    string `gorm:"uniqueIndex;not null" json:"email"`
	Password string `gorm:"not null" json:"-"`
	Name     string `gorm:"not null" json:"name"`

	IsAdmin  bool `gorm:"default:false" json:"is_admin"`
	Verified bool `gorm:"default:false" json:"verified"`

	Songs     []Song     `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
	Favorites []Favorite `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
}
