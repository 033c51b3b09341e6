package reservation

import "time"

type Kind string

const (
	KindPhoto Kind = "photo"
	KindAudio Kind = "audio"
)

// UploadReservation is a short-lived claim record for a guestbook
// attachment uploaded ahead of its message. Its bytes reserve quota until
// it is claimed by an entry or reaped after expiry.
type UploadReservation struct {
	ID          string     `gorm:"column:reservation_id;primaryKey"`
	EventID     string     `gorm:"column:event_id;index;not null"`
	Kind        Kind       `gorm:"column:kind;not null"`
	Path        string     `gorm:"column:path;not null"`
	SizeBytes   *int64     `gorm:"column:size_bytes"`
	ContentType string     `gorm:"column:content_type"`
	DurationSec *int       `gorm:"column:duration_sec"` // audio only
	EntryID     *string    `gorm:"column:entry_id;index"`
	ClaimedAt   *time.Time `gorm:"column:claimed_at;index"`
	ExpiresAt   time.Time  `gorm:"column:expires_at;index;not null"`
	CreatedAt   time.Time  `gorm:"column:created_at;autoCreateTime"`
}
