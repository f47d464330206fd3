package storage

import "time"

type User struct {
	ID           int64
	Username     string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
}

type Chat struct {
	ID              int64
	UserID          int64
	Query           string
	Response        string
	PDFPreview      bool
	EmbeddedWebsite string
	Timestamp       time.Time
}
