package usage

import (
	"context"
	"math/big"
	"time"

	"eventshare-engine/services/event"
	"eventshare-engine/services/media"
	"eventshare-engine/services/reservation"

	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Breakdown is the per-category byte consumption of one event.
type Breakdown struct {
	MediaBytes              int64 `json:"media_bytes"`
	GuestbookBytes          int64 `json:"guestbook_bytes"`
	PendingReservationBytes int64 `json:"pending_reservation_bytes"`
	DesignAssetBytes        int64 `json:"design_asset_bytes"`
}

// Total sums the categories without any overflow ceiling.
func (b Breakdown) Total() *big.Int {
	total := new(big.Int)
	for _, v := range []int64{b.MediaBytes, b.GuestbookBytes, b.PendingReservationBytes, b.DesignAssetBytes} {
		total.Add(total, big.NewInt(v))
	}
	return total
}

type Service struct {
	db  *gorm.DB
	now func() time.Time
}

type ServiceParams struct {
	fx.In
	DB *gorm.DB
}

func NewService(p ServiceParams) *Service {
	return &Service{db: p.DB, now: time.Now}
}

var Module = fx.Module("usage.module",
	fx.Provide(NewService),
)

// Consumed aggregates the event's byte usage across media, claimed
// guestbook attachments, unclaimed unexpired reservations and design
// assets. Soft-deleted and DELETED rows are excluded; NULL sizes count as
// zero. Read-only.
func (s *Service) Consumed(ctx context.Context, eventID string) (*Breakdown, error) {
	var out Breakdown

	if err := s.db.WithContext(ctx).
		Model(&media.Item{}).
		Select("COALESCE(SUM(size_bytes), 0)").
		Where("event_id = ? AND deleted_at IS NULL AND status <> ?", eventID, media.StatusDeleted).
		Scan(&out.MediaBytes).Error; err != nil {
		zap.L().Error("failed to sum media bytes", zap.String("event_id", eventID), zap.Error(err))
		return nil, err
	}

	if err := s.db.WithContext(ctx).
		Model(&reservation.UploadReservation{}).
		Select("COALESCE(SUM(size_bytes), 0)").
		Where("event_id = ? AND claimed_at IS NOT NULL", eventID).
		Scan(&out.GuestbookBytes).Error; err != nil {
		zap.L().Error("failed to sum guestbook attachment bytes", zap.String("event_id", eventID), zap.Error(err))
		return nil, err
	}

	if err := s.db.WithContext(ctx).
		Model(&reservation.UploadReservation{}).
		Select("COALESCE(SUM(size_bytes), 0)").
		Where("event_id = ? AND claimed_at IS NULL AND expires_at > ?", eventID, s.now()).
		Scan(&out.PendingReservationBytes).Error; err != nil {
		zap.L().Error("failed to sum pending reservation bytes", zap.String("event_id", eventID), zap.Error(err))
		return nil, err
	}

	if err := s.db.WithContext(ctx).
		Model(&event.DesignAsset{}).
		Select("COALESCE(SUM(size_bytes), 0)").
		Where("event_id = ? AND deleted_at IS NULL", eventID).
		Scan(&out.DesignAssetBytes).Error; err != nil {
		zap.L().Error("failed to sum design asset bytes", zap.String("event_id", eventID), zap.Error(err))
		return nil, err
	}

	return &out, nil
}
