package reservation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"eventshare-engine/pkg/config"
	"eventshare-engine/pkg/errutil"
	"eventshare-engine/pkg/objectstore"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// AdmissionGate is the synchronous quota check consulted before any new
// bytes are accepted; the quota service implements it.
type AdmissionGate interface {
	AssertUploadWithinLimit(ctx context.Context, eventID string, incomingBytes int64) error
}

type Service struct {
	db    *gorm.DB
	node  *snowflake.Node
	store objectstore.Store
	gate  AdmissionGate
	ttl   time.Duration
	now   func() time.Time
}

type ServiceParams struct {
	fx.In
	DB     *gorm.DB
	Node   *snowflake.Node
	Store  objectstore.Store
	Gate   AdmissionGate
	Config *config.Config
}

func NewService(p ServiceParams) *Service {
	return &Service{
		db:    p.DB,
		node:  p.Node,
		store: p.Store,
		gate:  p.Gate,
		ttl:   p.Config.Reservation.TTL,
		now:   time.Now,
	}
}

var Module = fx.Module("reservation.module",
	fx.Provide(NewService),
)

type CreateInput struct {
	EventID     string
	Kind        Kind
	FileName    string
	ContentType string
	Data        []byte
	DurationSec *int
}

// Create admits the attachment bytes against the event's quota, stores the
// blob and opens a claim window of one TTL. The reservation's bytes count
// as pending usage until it is claimed or expires.
func (s *Service) Create(ctx context.Context, in CreateInput) (*UploadReservation, error) {
	if in.Kind != KindPhoto && in.Kind != KindAudio {
		return nil, errutil.BadRequest("unsupported reservation kind")
	}
	if len(in.Data) == 0 {
		return nil, errutil.BadRequest("empty attachment")
	}

	size := int64(len(in.Data))
	if err := s.gate.AssertUploadWithinLimit(ctx, in.EventID, size); err != nil {
		return nil, err
	}

	id := s.node.Generate().String()
	path, err := s.store.Put(ctx, in.EventID, fmt.Sprintf("guestbook/%s-%s", id, in.FileName), in.Data, in.ContentType)
	if err != nil {
		return nil, err
	}

	res := &UploadReservation{
		ID:          id,
		EventID:     in.EventID,
		Kind:        in.Kind,
		Path:        path,
		SizeBytes:   &size,
		ContentType: in.ContentType,
		DurationSec: in.DurationSec,
		ExpiresAt:   s.now().Add(s.ttl),
	}
	if err := s.db.WithContext(ctx).Create(res).Error; err != nil {
		// Row creation failed after the object landed; drop the object so
		// it does not leak unreferenced.
		if delErr := s.store.Delete(ctx, path); delErr != nil {
			zap.L().Error("failed to clean up orphaned reservation object",
				zap.String("path", path), zap.Error(delErr))
		}
		return nil, err
	}

	return res, nil
}

// Claim consumes the reservation for a finalized guestbook entry. Expired,
// already-claimed or foreign-event reservations are rejected synchronously.
func (s *Service) Claim(ctx context.Context, reservationID, eventID, entryID string) (*UploadReservation, error) {
	var res UploadReservation
	if err := s.db.WithContext(ctx).
		Where("reservation_id = ?", reservationID).
		First(&res).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errutil.ReservationInvalid("reservation not found")
		}
		return nil, err
	}

	if res.EventID != eventID {
		return nil, errutil.ReservationInvalid("reservation belongs to another event")
	}
	if res.ClaimedAt != nil {
		return nil, errutil.ReservationInvalid("reservation already claimed")
	}
	if s.now().After(res.ExpiresAt) {
		return nil, errutil.ReservationInvalid("reservation expired")
	}

	claimedAt := s.now()
	updates := map[string]any{"claimed_at": claimedAt}
	if entryID != "" {
		updates["entry_id"] = entryID
	}

	// Guard against a concurrent claim racing past the read above.
	tx := s.db.WithContext(ctx).
		Model(&UploadReservation{}).
		Where("reservation_id = ? AND claimed_at IS NULL", reservationID).
		Updates(updates)
	if tx.Error != nil {
		return nil, tx.Error
	}
	if tx.RowsAffected == 0 {
		return nil, errutil.ReservationInvalid("reservation already claimed")
	}

	res.ClaimedAt = &claimedAt
	if entryID != "" {
		res.EntryID = &entryID
	}
	return &res, nil
}

// ReapExpired deletes up to batchSize expired unclaimed reservations,
// removing each backing object before its row. A failed object delete is
// logged and skips the row so the next sweep retries it.
func (s *Service) ReapExpired(ctx context.Context, batchSize int) (int, error) {
	var expired []UploadReservation
	if err := s.db.WithContext(ctx).
		Where("claimed_at IS NULL AND expires_at <= ?", s.now()).
		Order("expires_at ASC").
		Limit(batchSize).
		Find(&expired).Error; err != nil {
		return 0, err
	}

	reaped := 0
	for _, res := range expired {
		if err := s.store.Delete(ctx, res.Path); err != nil {
			zap.L().Error("failed to delete reservation object",
				zap.String("reservation_id", res.ID),
				zap.String("path", res.Path),
				zap.Error(err),
			)
			continue
		}
		if err := s.db.WithContext(ctx).
			Where("reservation_id = ?", res.ID).
			Delete(&UploadReservation{}).Error; err != nil {
			zap.L().Error("failed to delete reservation row",
				zap.String("reservation_id", res.ID),
				zap.Error(err),
			)
			continue
		}
		reaped++
	}

	return reaped, nil
}
