package models

import "time"

// Upload is an image stored on the app filesystem under Key.
type Upload struct {
	Key       string    `db:"file_key" json:"key"`
	UserID    string    `db:"user_id" json:"user_id"`
	EventID   string    `db:"event_id" json:"event_id,omitempty"`
	Size      int64     `db:"size" json:"size"`
	URL       string    `db:"-" json:"url"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
