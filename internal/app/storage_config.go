package app

import "github.com/listenme/listenme/internal/storage"

// S3Settings converts StorageConfig to the storage package representation.
func (c StorageConfig) S3Settings() storage.S3Settings {
	expiry := c.S3.URLExpiry
	if expiry <= 0 {
		expiry = storage.DefaultURLExpiry
	}

	return storage.S3Settings{
		Region:       c.S3.Region,
		Bucket:       c.S3.Bucket,
		Endpoint:     c.S3.Endpoint,
		AccessKey:    c.S3.AccessKey,
		SecretKey:    c.S3.SecretKey,
		UsePathStyle: c.S3.UsePathStyle,
		URLExpiry:    expiry,
	}
}
