package media

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	asynqtype "eventshare-engine/pkg/asynq"
	"eventshare-engine/pkg/config"
	"eventshare-engine/pkg/errutil"
	"eventshare-engine/pkg/objectstore"
	"eventshare-engine/services/event"

	"github.com/bwmarrin/snowflake"
	"github.com/hibiken/asynq"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Enqueuer is the slice of asynq.Client the ingest path needs.
type Enqueuer interface {
	Enqueue(task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

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
	tasks Enqueuer
	cfg   config.RetentionConfig
	now   func() time.Time
}

type ServiceParams struct {
	fx.In
	DB     *gorm.DB
	Node   *snowflake.Node
	Store  objectstore.Store
	Gate   AdmissionGate
	Asynq  *asynq.Client
	Config *config.Config
}

func NewService(p ServiceParams) *Service {
	return &Service{
		db:    p.DB,
		node:  p.Node,
		store: p.Store,
		gate:  p.Gate,
		tasks: p.Asynq,
		cfg:   p.Config.Retention,
		now:   time.Now,
	}
}

var Module = fx.Module("media.module",
	fx.Provide(NewService),
)

// IngestInput is a completed upload from the intake pipeline: the original
// plus already-sized variants produced by the external transform step.
type IngestInput struct {
	EventID     string
	Type        Type
	FileName    string
	ContentType string
	Original    []byte
	Optimized   []byte
	Thumbnail   []byte
}

func (in IngestInput) totalBytes() int64 {
	return int64(len(in.Original) + len(in.Optimized) + len(in.Thumbnail))
}

// Ingest admits the upload against the event's quota, stores every
// variant, records the media row and hands photos to duplicate discovery.
func (s *Service) Ingest(ctx context.Context, in IngestInput) (*Item, error) {
	span := trace.SpanFromContext(ctx)
	defer span.End()

	if in.Type != TypePhoto && in.Type != TypeVideo {
		return nil, errutil.BadRequest("unsupported media type")
	}
	if len(in.Original) == 0 {
		return nil, errutil.BadRequest("empty upload")
	}

	var evt event.Event
	if err := s.db.WithContext(ctx).
		Where("event_id = ? AND deleted_at IS NULL", in.EventID).
		First(&evt).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errutil.NotFound("event not found")
		}
		return nil, err
	}

	if err := s.gate.AssertUploadWithinLimit(ctx, in.EventID, in.totalBytes()); err != nil {
		return nil, err
	}

	id := s.node.Generate().String()
	sum := sha256.Sum256(in.Original)

	item := &Item{
		ID:          id,
		EventID:     in.EventID,
		Type:        in.Type,
		Status:      initialStatus(evt),
		FileName:    in.FileName,
		ContentType: in.ContentType,
		ContentHash: hex.EncodeToString(sum[:]),
	}
	size := in.totalBytes()
	item.SizeBytes = &size

	variants := []struct {
		suffix string
		data   []byte
		target *string
	}{
		{"original", in.Original, &item.OriginalPath},
		{"optimized", in.Optimized, &item.OptimizedPath},
		{"thumb", in.Thumbnail, &item.ThumbnailPath},
	}
	stored := make([]string, 0, 3)
	for _, v := range variants {
		if len(v.data) == 0 {
			continue
		}
		path, err := s.store.Put(ctx, in.EventID, fmt.Sprintf("%s-%s-%s", id, v.suffix, in.FileName), v.data, in.ContentType)
		if err != nil {
			s.cleanupObjects(ctx, stored)
			return nil, err
		}
		*v.target = path
		stored = append(stored, path)
	}

	if err := s.db.WithContext(ctx).Create(item).Error; err != nil {
		s.cleanupObjects(ctx, stored)
		return nil, err
	}

	if in.Type == TypePhoto {
		s.enqueueDedup(item)
	}

	return item, nil
}

func initialStatus(evt event.Event) Status {
	var features event.FeatureConfig
	if len(evt.Features) > 0 {
		if err := json.Unmarshal(evt.Features, &features); err == nil && features.ModerationEnabled {
			return StatusPending
		}
	}
	return StatusApproved
}

func (s *Service) enqueueDedup(item *Item) {
	payload, _ := json.Marshal(asynqtype.MediaDedupPayload{MediaID: item.ID, EventID: item.EventID})
	task := asynq.NewTask(asynqtype.MediaDedupTask, payload, asynq.MaxRetry(3), asynq.Queue("default"))
	if _, err := s.tasks.Enqueue(task); err != nil {
		zap.L().Error("failed to enqueue dedup task",
			zap.String("media_id", item.ID), zap.Error(err))
	}
}

func (s *Service) cleanupObjects(ctx context.Context, paths []string) {
	for _, path := range paths {
		if err := s.store.Delete(ctx, path); err != nil {
			zap.L().Error("failed to clean up stored variant", zap.String("path", path), zap.Error(err))
		}
	}
}

// Moderate applies a moderation decision to a pending item.
func (s *Service) Moderate(ctx context.Context, mediaID string, approved bool) error {
	status := StatusApproved
	if !approved {
		status = StatusRejected
	}

	tx := s.db.WithContext(ctx).
		Model(&Item{}).
		Where("media_id = ? AND deleted_at IS NULL AND status = ?", mediaID, StatusPending).
		Update("status", status)
	if tx.Error != nil {
		return tx.Error
	}
	if tx.RowsAffected == 0 {
		return errutil.NotFound("no pending media item to moderate")
	}
	return nil
}

// SoftDelete marks the item deleted and schedules its hard purge after the
// configured grace period. The purge worker does the destruction.
func (s *Service) SoftDelete(ctx context.Context, mediaID string) error {
	now := s.now()
	purgeAfter := now.AddDate(0, 0, s.cfg.SoftDeleteGraceDays)

	tx := s.db.WithContext(ctx).
		Model(&Item{}).
		Where("media_id = ? AND deleted_at IS NULL", mediaID).
		Updates(map[string]any{
			"status":      StatusDeleted,
			"deleted_at":  now,
			"purge_after": purgeAfter,
		})
	if tx.Error != nil {
		return tx.Error
	}
	if tx.RowsAffected == 0 {
		return errutil.NotFound("media item not found")
	}
	return nil
}

// Restore is the one legitimate way a purge-after marker clears: an
// explicit host action undoing a soft delete before the purge lands.
func (s *Service) Restore(ctx context.Context, mediaID string) error {
	tx := s.db.WithContext(ctx).
		Model(&Item{}).
		Where("media_id = ? AND deleted_at IS NOT NULL", mediaID).
		Updates(map[string]any{
			"status":      StatusApproved,
			"deleted_at":  nil,
			"purge_after": nil,
		})
	if tx.Error != nil {
		return tx.Error
	}
	if tx.RowsAffected == 0 {
		return errutil.NotFound("no soft-deleted media item to restore")
	}
	return nil
}
