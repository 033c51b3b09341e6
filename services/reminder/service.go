package reminder

import (
	"context"
	"errors"
	"time"

	"eventshare-engine/pkg/config"
	"eventshare-engine/services/event"
	"eventshare-engine/services/retention"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Service sweeps active events and sends deduplicated "storage ending
// soon" notices at the configured day offsets. The log row is inserted
// before the send so notify-once survives restarts with no in-memory
// state.
type Service struct {
	db      *gorm.DB
	node    *snowflake.Node
	windows *retention.WindowCalculator
	sender  Sender
	cfg     config.ReminderConfig
	now     func() time.Time
}

type ServiceParams struct {
	fx.In
	DB      *gorm.DB
	Node    *snowflake.Node
	Windows *retention.WindowCalculator
	Sender  Sender
	Config  *config.Config
}

func NewService(p ServiceParams) *Service {
	return &Service{
		db:      p.DB,
		node:    p.Node,
		windows: p.Windows,
		sender:  p.Sender,
		cfg:     p.Config.Reminder,
		now:     time.Now,
	}
}

var Module = fx.Module("reminder.module",
	fx.Provide(
		NewService,
		NewLogSender,
	),
	fx.Invoke(StartWorker),
)

func StartWorker(lc fx.Lifecycle, s *Service) {
	ctx, cancel := context.WithCancel(context.Background())
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go s.run(ctx)
			return nil
		},
		OnStop: func(context.Context) error {
			cancel()
			return nil
		},
	})
}

func (s *Service) run(ctx context.Context) {
	zap.L().Info("[Reminder] sweep started",
		zap.Duration("interval", s.cfg.SweepInterval),
		zap.Ints("offsets_days", s.cfg.OffsetsDays),
	)

	ticker := time.NewTicker(s.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := s.RunCycle(ctx); err != nil {
				zap.L().Error("[Reminder] sweep cycle failed", zap.Error(err))
			}
		case <-ctx.Done():
			zap.L().Warn("[Reminder] sweep stopped")
			return
		}
	}
}

// RunCycle checks every active non-deleted event against the configured
// offsets and sends at most one notice per (event, kind, offset).
func (s *Service) RunCycle(ctx context.Context) error {
	var events []event.Event
	if err := s.db.WithContext(ctx).
		Where("is_active = ? AND deleted_at IS NULL", true).
		Find(&events).Error; err != nil {
		return err
	}

	for _, evt := range events {
		if err := s.remindEvent(ctx, evt); err != nil {
			zap.L().Error("[Reminder] failed to process event",
				zap.String("event_id", evt.ID), zap.Error(err))
		}
	}

	return nil
}

func (s *Service) remindEvent(ctx context.Context, evt event.Event) error {
	endsAt, err := s.windows.StorageEndsAt(ctx, evt.ID)
	if err != nil {
		return err
	}
	if endsAt == nil {
		return nil
	}

	for _, offset := range s.cfg.OffsetsDays {
		due := endsAt.AddDate(0, 0, -offset)
		if !sameCalendarDay(due, s.now()) {
			continue
		}

		entry := Log{
			ID:         s.node.Generate().String(),
			EventID:    evt.ID,
			Kind:       KindStorageEnds,
			DaysBefore: offset,
		}
		if err := s.db.WithContext(ctx).Create(&entry).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				// Already sent by an earlier cycle; move on silently.
				continue
			}
			return err
		}

		msg := StorageEndsReminder{
			To:            evt.HostEmail,
			HostName:      evt.HostName,
			EventTitle:    evt.Title,
			EventID:       evt.ID,
			StorageEndsAt: *endsAt,
			DaysBefore:    offset,
		}
		if err := s.sender.SendStorageEndsReminder(ctx, msg); err != nil {
			zap.L().Error("[Reminder] failed to send notice",
				zap.String("event_id", evt.ID),
				zap.Int("days_before", offset),
				zap.Error(err),
			)
		}
	}

	return nil
}

func sameCalendarDay(a, b time.Time) bool {
	ay, am, ad := a.UTC().Date()
	by, bm, bd := b.UTC().Date()
	return ay == by && am == bm && ad == bd
}
