package dedup

import (
	"context"
	"encoding/json"
	"fmt"

	asynqtype "eventshare-engine/pkg/asynq"

	"github.com/hibiken/asynq"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var TaskModule = fx.Module("dedup.task",
	fx.Invoke(RegisterTaskHandler),
)

func RegisterTaskHandler(mux *asynq.ServeMux, svc *Service) {
	mux.HandleFunc(asynqtype.MediaDedupTask, svc.HandleMediaDedupTask)
}

func (s *Service) HandleMediaDedupTask(ctx context.Context, t *asynq.Task) error {
	var payload asynqtype.MediaDedupPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("invalid payload: %w", err)
	}

	zapLog := zap.L().With(
		zap.String("task_type", t.Type()),
		zap.String("media_id", payload.MediaID),
		zap.String("event_id", payload.EventID),
	)

	result, err := s.Process(ctx, payload.MediaID)
	if err != nil {
		zapLog.Error("duplicate discovery failed", zap.Error(err))
		return err
	}

	if result.IsDuplicate {
		zapLog.Info("duplicate detected",
			zap.String("duplicate_group_id", result.GroupID),
			zap.Float64("similarity", result.Similarity),
		)
	}
	return nil
}
