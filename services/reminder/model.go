package reminder

import "time"

const KindStorageEnds = "storage_ends"

// Log is the dedup record guaranteeing at-most-once delivery per
// (event, kind, days-before) tuple.
type Log struct {
	ID         string    `gorm:"column:log_id;primaryKey"`
	EventID    string    `gorm:"column:event_id;uniqueIndex:ux_reminder_once,priority:1;not null"`
	Kind       string    `gorm:"column:kind;uniqueIndex:ux_reminder_once,priority:2;not null"`
	DaysBefore int       `gorm:"column:days_before;uniqueIndex:ux_reminder_once,priority:3;not null"`
	SentAt     time.Time `gorm:"column:sent_at;autoCreateTime"`
}

// StorageEndsReminder is the payload handed to the notification sender.
type StorageEndsReminder struct {
	To            string
	HostName      string
	EventTitle    string
	EventID       string
	StorageEndsAt time.Time
	DaysBefore    int
}
