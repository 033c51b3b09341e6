package retention

import (
	"context"
	"errors"
	"time"

	"eventshare-engine/pkg/config"
	"eventshare-engine/services/entitlement"
	"eventshare-engine/services/event"
	"eventshare-engine/services/media"

	"go.uber.org/fx"
	"gorm.io/gorm"
)

// WindowCalculator derives the instant after which an event's media becomes
// read-locked. The window starts at the earliest surviving upload and runs
// for the entitlement package's storage duration.
type WindowCalculator struct {
	db   *gorm.DB
	ents *entitlement.Service
	cfg  config.RetentionConfig
	now  func() time.Time
}

type WindowParams struct {
	fx.In
	DB          *gorm.DB
	Entitlement *entitlement.Service
	Config      *config.Config
}

func NewWindowCalculator(p WindowParams) *WindowCalculator {
	return &WindowCalculator{
		db:   p.DB,
		ents: p.Entitlement,
		cfg:  p.Config.Retention,
		now:  time.Now,
	}
}

// FirstContentAt returns the earliest creation timestamp among the event's
// non-deleted media and guestbook entries, or nil before the first item
// lands.
func (c *WindowCalculator) FirstContentAt(ctx context.Context, eventID string) (*time.Time, error) {
	var earliest *time.Time

	var item media.Item
	err := c.db.WithContext(ctx).
		Where("event_id = ? AND deleted_at IS NULL AND status <> ?", eventID, media.StatusDeleted).
		Order("created_at ASC").
		First(&item).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	if err == nil {
		earliest = &item.CreatedAt
	}

	var entry event.GuestbookEntry
	err = c.db.WithContext(ctx).
		Where("event_id = ? AND deleted_at IS NULL", eventID).
		Order("created_at ASC").
		First(&entry).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	if err == nil && (earliest == nil || entry.CreatedAt.Before(*earliest)) {
		earliest = &entry.CreatedAt
	}

	return earliest, nil
}

// StorageEndsAt computes the close of the event's storage window, or nil
// when the event has no content yet and therefore no expiry.
func (c *WindowCalculator) StorageEndsAt(ctx context.Context, eventID string) (*time.Time, error) {
	first, err := c.FirstContentAt(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if first == nil {
		return nil, nil
	}

	days, err := c.ents.StorageDurationDays(ctx, eventID, c.cfg.DefaultStorageDays)
	if err != nil {
		return nil, err
	}

	endsAt := first.AddDate(0, 0, days)
	return &endsAt, nil
}

// IsLocked reports whether the storage window has closed.
func (c *WindowCalculator) IsLocked(ctx context.Context, eventID string) (bool, error) {
	endsAt, err := c.StorageEndsAt(ctx, eventID)
	if err != nil {
		return false, err
	}
	if endsAt == nil {
		return false, nil
	}
	return c.now().After(*endsAt), nil
}
