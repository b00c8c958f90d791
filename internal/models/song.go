package models

// Song is the metadata record for an uploaded track. The audio itself (and the
// optional cover image) lives in the object store under StorageKey and
// CoverStorageKey; clients stream via presigned URLs minted at read time.
type Song struct {
	BaseModel

	UserID string `gorm:"type:uuid;index;not null" json:"user_id"`
	Title  string `gorm:"not null" json:"title"`
	Artist string `gorm:"not null" json:"artist"`
	Album  string `json:"album"`
	Genre  string `json:"genre"`

	StorageKey      string `gorm:"column:s3_key;not null" json:"-"`
	CoverStorageKey string `gorm:"column:cover_s3_key" json:"-"`

	Duration  int   `gorm:"default:0" json:"duration"`
	FileSize  int64 `gorm:"default:0" json:"file_size"`
	PlayCount int64 `gorm:"default:0" json:"play_count"`
}

// Favorite marks a song as favourited by a user. The (user, song) pair is
// unique; adding twice is a no-op at the service layer.
type Favorite struct {
	BaseModel

	UserID string `gorm:"type:uuid;uniqueIndex:uq_user_song;not null" json:"user_id"`
	SongID string `gorm:"type:uuid;uniqueIndex:uq_user_song;not null" json:"song_id"`
}
