package retention

import (
	"context"
	"time"

	"eventshare-engine/pkg/config"
	"eventshare-engine/pkg/objectstore"
	"eventshare-engine/services/entitlement"
	"eventshare-engine/services/event"
	"eventshare-engine/services/media"
	"eventshare-engine/services/reservation"

	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Worker is the recurring retention sweep. Each cycle runs up to three
// passes: hard-delete-by-policy for events whose storage window plus grace
// period has elapsed (hard-delete mode only), soft-to-hard promotion of
// already-soft-deleted rows whose purge-after has passed, and the reap of
// expired upload reservations. Every unit of work is independent; one
// failure never aborts the batch.
type Worker struct {
	db           *gorm.DB
	store        objectstore.Store
	windows      *WindowCalculator
	reservations *reservation.Service
	cfg          config.RetentionConfig
	now          func() time.Time
}

type WorkerParams struct {
	fx.In
	DB           *gorm.DB
	Store        objectstore.Store
	Windows      *WindowCalculator
	Reservations *reservation.Service
	Config       *config.Config
}

func NewWorker(p WorkerParams) *Worker {
	return &Worker{
		db:           p.DB,
		store:        p.Store,
		windows:      p.Windows,
		reservations: p.Reservations,
		cfg:          p.Config.Retention,
		now:          time.Now,
	}
}

var Module = fx.Module("retention.module",
	fx.Provide(
		NewWindowCalculator,
		NewWorker,
	),
	fx.Invoke(StartWorker),
)

// StartWorker wires the sweep loop into the fx lifecycle.
func StartWorker(lc fx.Lifecycle, w *Worker) {
	ctx, cancel := context.WithCancel(context.Background())
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go w.run(ctx)
			return nil
		},
		OnStop: func(context.Context) error {
			cancel()
			return nil
		},
	})
}

func (w *Worker) run(ctx context.Context) {
	zap.L().Info("[Retention] sweep started",
		zap.Duration("interval", w.cfg.SweepInterval),
		zap.Bool("hard_delete", w.cfg.HardDelete),
		zap.Int("batch_size", w.cfg.BatchSize),
	)

	ticker := time.NewTicker(w.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			start := time.Now()
			if err := w.RunCycle(ctx); err != nil {
				zap.L().Error("[Retention] sweep cycle failed", zap.Error(err))
			}
			zap.L().Info("[Retention] sweep cycle finished", zap.Duration("duration", time.Since(start)))
		case <-ctx.Done():
			zap.L().Warn("[Retention] sweep stopped")
			return
		}
	}
}

// RunCycle executes one full sweep. Idempotent: re-running over already
// purged rows finds nothing left to do.
func (w *Worker) RunCycle(ctx context.Context) error {
	if w.cfg.HardDelete {
		if err := w.purgeExpiredEvents(ctx); err != nil {
			zap.L().Error("[Retention] expired-event pass failed", zap.Error(err))
		}
	}

	if err := w.promoteSoftDeletedMedia(ctx); err != nil {
		zap.L().Error("[Retention] soft-deleted media pass failed", zap.Error(err))
	}

	if err := w.promoteSoftDeletedEvents(ctx); err != nil {
		zap.L().Error("[Retention] soft-deleted event pass failed", zap.Error(err))
	}

	if reaped, err := w.reservations.ReapExpired(ctx, w.cfg.BatchSize); err != nil {
		zap.L().Error("[Retention] reservation reap failed", zap.Error(err))
	} else if reaped > 0 {
		zap.L().Info("[Retention] reaped expired reservations", zap.Int("count", reaped))
	}

	return nil
}

// purgeExpiredEvents removes events whose storage window closed longer ago
// than the grace period, backing objects first. Oldest events first so the
// longest-overdue backlog drains before newer candidates.
func (w *Worker) purgeExpiredEvents(ctx context.Context) error {
	var events []event.Event
	if err := w.db.WithContext(ctx).
		Where("deleted_at IS NULL").
		Order("date_time ASC").
		Limit(w.cfg.BatchSize).
		Find(&events).Error; err != nil {
		return err
	}

	cutoffNow := w.now()
	for _, evt := range events {
		endsAt, err := w.windows.StorageEndsAt(ctx, evt.ID)
		if err != nil {
			zap.L().Error("[Retention] failed to compute storage window",
				zap.String("event_id", evt.ID), zap.Error(err))
			continue
		}
		if endsAt == nil {
			continue
		}
		if !cutoffNow.After(endsAt.AddDate(0, w.cfg.GraceMonths, 0)) {
			continue
		}

		if err := w.purgeEvent(ctx, evt); err != nil {
			zap.L().Error("[Retention] failed to purge expired event",
				zap.String("event_id", evt.ID), zap.Error(err))
		}
	}

	return nil
}

// purgeEvent deletes every backing object for the event's media, then the
// event row and its dependents. Object-store failures are logged and never
// abort the row deletion: storage objects may leak, tenant-facing records
// do not.
func (w *Worker) purgeEvent(ctx context.Context, evt event.Event) error {
	var items []media.Item
	if err := w.db.WithContext(ctx).
		Where("event_id = ?", evt.ID).
		Find(&items).Error; err != nil {
		return err
	}
	for _, item := range items {
		w.deleteObjects(ctx, item.EventID, item.Paths())
	}

	var assets []event.DesignAsset
	if err := w.db.WithContext(ctx).
		Where("event_id = ?", evt.ID).
		Find(&assets).Error; err == nil {
		for _, a := range assets {
			w.deleteObjects(ctx, evt.ID, []string{a.Path})
		}
	}

	var reservations []reservation.UploadReservation
	if err := w.db.WithContext(ctx).
		Where("event_id = ?", evt.ID).
		Find(&reservations).Error; err == nil {
		for _, r := range reservations {
			w.deleteObjects(ctx, evt.ID, []string{r.Path})
		}
	}

	return w.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, dependent := range []any{
			&media.Item{},
			&event.GuestbookEntry{},
			&event.DesignAsset{},
			&reservation.UploadReservation{},
			&entitlement.EventEntitlement{},
		} {
			if err := tx.Where("event_id = ?", evt.ID).Delete(dependent).Error; err != nil {
				return err
			}
		}
		return tx.Where("event_id = ?", evt.ID).Delete(&event.Event{}).Error
	})
}

// promoteSoftDeletedMedia finishes off media rows whose purge-after has
// elapsed. In hard-delete mode the objects and the row go; in soft mode
// only the purge-after marker is cleared so the row is not rescanned and
// nothing is ever destroyed.
func (w *Worker) promoteSoftDeletedMedia(ctx context.Context) error {
	var items []media.Item
	if err := w.db.WithContext(ctx).
		Where("deleted_at IS NOT NULL AND purge_after IS NOT NULL AND purge_after <= ?", w.now()).
		Order("purge_after ASC").
		Limit(w.cfg.BatchSize).
		Find(&items).Error; err != nil {
		return err
	}

	for _, item := range items {
		if !w.cfg.HardDelete {
			if err := w.db.WithContext(ctx).
				Model(&media.Item{}).
				Where("media_id = ?", item.ID).
				Update("purge_after", nil).Error; err != nil {
				zap.L().Error("[Retention] failed to clear purge marker",
					zap.String("media_id", item.ID), zap.Error(err))
			}
			continue
		}

		w.deleteObjects(ctx, item.EventID, item.Paths())
		if err := w.db.WithContext(ctx).
			Where("media_id = ?", item.ID).
			Delete(&media.Item{}).Error; err != nil {
			zap.L().Error("[Retention] failed to delete media row",
				zap.String("media_id", item.ID), zap.Error(err))
		}
	}

	return nil
}

// promoteSoftDeletedEvents applies the same treatment to soft-deleted
// events whose purge-after has elapsed.
func (w *Worker) promoteSoftDeletedEvents(ctx context.Context) error {
	var events []event.Event
	if err := w.db.WithContext(ctx).
		Where("deleted_at IS NOT NULL AND purge_after IS NOT NULL AND purge_after <= ?", w.now()).
		Order("purge_after ASC").
		Limit(w.cfg.BatchSize).
		Find(&events).Error; err != nil {
		return err
	}

	for _, evt := range events {
		if !w.cfg.HardDelete {
			if err := w.db.WithContext(ctx).
				Model(&event.Event{}).
				Where("event_id = ?", evt.ID).
				Update("purge_after", nil).Error; err != nil {
				zap.L().Error("[Retention] failed to clear purge marker",
					zap.String("event_id", evt.ID), zap.Error(err))
			}
			continue
		}

		if err := w.purgeEvent(ctx, evt); err != nil {
			zap.L().Error("[Retention] failed to purge soft-deleted event",
				zap.String("event_id", evt.ID), zap.Error(err))
		}
	}

	return nil
}

func (w *Worker) deleteObjects(ctx context.Context, eventID string, paths []string) {
	for _, path := range paths {
		if err := w.store.Delete(ctx, path); err != nil {
			zap.L().Error("[Retention] failed to delete storage object",
				zap.String("event_id", eventID),
				zap.String("path", path),
				zap.Error(err),
			)
		}
	}
}
