package reminder

import (
	"context"

	"go.uber.org/zap"
)

// Sender delivers storage-ending notices. Fire-and-forget: failures are
// logged by the caller, never retried here.
type Sender interface {
	SendStorageEndsReminder(ctx context.Context, msg StorageEndsReminder) error
}

// LogSender is the default Sender; deployments plug a real mail or webhook
// sender in its place.
type LogSender struct{}

func NewLogSender() Sender { return LogSender{} }

func (LogSender) SendStorageEndsReminder(ctx context.Context, msg StorageEndsReminder) error {
	zap.L().Info("storage ends reminder",
		zap.String("to", msg.To),
		zap.String("event_id", msg.EventID),
		zap.String("event_title", msg.EventTitle),
		zap.Time("storage_ends_at", msg.StorageEndsAt),
		zap.Int("days_before", msg.DaysBefore),
	)
	return nil
}
