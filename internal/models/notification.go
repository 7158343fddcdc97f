package models

import "time"

// NotificationView records that a user has seen a session notification.
type NotificationView struct {
	UserID    string    `db:"user_id" json:"user_id"`
	SessionID string    `db:"session_id" json:"session_id"`
	ViewedAt  time.Time `db:"viewed_at" json:"viewed_at"`
}

// ExternalID maps a stable seed identifier to a database record.
type ExternalID struct {
	Model    string `db:"model"`
	XMLID    string `db:"xml_id"`
	RecordID string `db:"record_id"`
	NoUpdate bool   `db:"noupdate"`
}
