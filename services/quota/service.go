package quota

import (
	"context"
	"fmt"
	"math/big"

	"eventshare-engine/pkg/config"
	"eventshare-engine/pkg/errutil"
	"eventshare-engine/services/entitlement"
	"eventshare-engine/services/usage"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Gate is the synchronous admission check invoked before any new bytes are
// accepted. It is a read-then-decide check: concurrent uploads can both
// pass before either commits. Acceptable while bursts are rare; a strictly
// consistent variant needs a per-event lock around admission+commit.
type Gate struct {
	usage  *usage.Service
	ents   *entitlement.Service
	strict bool
}

type GateParams struct {
	fx.In
	Usage       *usage.Service
	Entitlement *entitlement.Service
	Config      *config.Config
}

func NewGate(p GateParams) *Gate {
	return &Gate{
		usage:  p.Usage,
		ents:   p.Entitlement,
		strict: p.Config.Quota.Strict(),
	}
}

var Module = fx.Module("quota.module",
	fx.Provide(NewGate),
)

// AssertUploadWithinLimit fails when admitting incomingBytes would push the
// event past its entitlement limit. In strict mode a usable entitlement is
// required and its absence is a distinct failure from limit overflow; in
// permissive mode a missing or non-positive limit means unlimited.
func (g *Gate) AssertUploadWithinLimit(ctx context.Context, eventID string, incomingBytes int64) error {
	span := trace.SpanFromContext(ctx)
	defer span.End()

	ent, err := g.ents.Resolve(ctx, eventID)
	if err != nil {
		return err
	}

	if ent == nil || ent.StorageLimitBytes <= 0 {
		if g.strict {
			zap.L().Warn("upload rejected, no usable entitlement",
				zap.String("event_id", eventID),
				zap.Int64("incoming_bytes", incomingBytes),
			)
			return errutil.EntitlementMissing("no active storage entitlement for event")
		}
		return nil
	}

	consumed, err := g.usage.Consumed(ctx, eventID)
	if err != nil {
		return err
	}

	used := consumed.Total()
	attempted := new(big.Int).Add(used, big.NewInt(incomingBytes))
	limit := big.NewInt(ent.StorageLimitBytes)

	if attempted.Cmp(limit) > 0 {
		zap.L().Warn("upload rejected, storage limit exceeded",
			zap.String("event_id", eventID),
			zap.String("used_bytes", used.String()),
			zap.Int64("limit_bytes", ent.StorageLimitBytes),
			zap.Int64("incoming_bytes", incomingBytes),
		)
		return errutil.LimitExceeded("storage limit exceeded", errutil.WithDetails(
			errutil.Detail{Field: "used", Message: used.String()},
			errutil.Detail{Field: "limit", Message: limit.String()},
			errutil.Detail{Field: "attempted", Message: fmt.Sprint(incomingBytes)},
		))
	}

	return nil
}
