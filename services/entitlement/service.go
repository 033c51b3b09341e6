package entitlement

import (
	"context"
	"errors"

	"eventshare-engine/services/event"

	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Tier-to-duration fallback used when a package has no explicit
// storage duration configured.
var tierDurationDays = map[string]int{
	"basic":    90,
	"standard": 180,
	"premium":  365,
}

type Service struct {
	db *gorm.DB
}

type ServiceParams struct {
	fx.In
	DB *gorm.DB
}

func NewService(p ServiceParams) *Service {
	return &Service{db: p.DB}
}

var Module = fx.Module("entitlement.module",
	fx.Provide(NewService),
)

// Resolve returns the authoritative active entitlement for the event, or
// nil when none exists. When the event owner has a linked tenant identity
// the lookup is scoped to that tenant so one tenant's purchased limit can
// never leak onto another tenant's event; otherwise it falls back to any
// active grant directly on the event (legacy rows without a tenant).
func (s *Service) Resolve(ctx context.Context, eventID string) (*EventEntitlement, error) {
	var evt event.Event
	if err := s.db.WithContext(ctx).
		Where("event_id = ?", eventID).
		First(&evt).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}

	q := s.db.WithContext(ctx).
		Where("event_id = ? AND status = ?", eventID, StatusActive).
		Order("created_at DESC")

	if evt.OwnerTenantID != "" {
		q = q.Where("tenant_id = ?", evt.OwnerTenantID)
	} else {
		q = q.Where("tenant_id IS NULL OR tenant_id = ''")
	}

	var ent EventEntitlement
	if err := q.First(&ent).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}

	return &ent, nil
}

// Package looks up the catalog definition behind a SKU; nil when unknown.
func (s *Service) Package(ctx context.Context, sku string) (*PackageDefinition, error) {
	if sku == "" {
		return nil, nil
	}

	var def PackageDefinition
	if err := s.db.WithContext(ctx).
		Where("sku = ?", sku).
		First(&def).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}

	return &def, nil
}

// StorageDurationDays resolves how long the event's storage window stays
// open: the entitlement package's explicit duration when set, else the
// tier fallback, else defaultDays when no usable entitlement exists.
func (s *Service) StorageDurationDays(ctx context.Context, eventID string, defaultDays int) (int, error) {
	ent, err := s.Resolve(ctx, eventID)
	if err != nil {
		return 0, err
	}
	if ent == nil {
		return defaultDays, nil
	}

	def, err := s.Package(ctx, ent.PackageSKU)
	if err != nil {
		return 0, err
	}
	if def == nil {
		zap.L().Warn("entitlement references unknown package",
			zap.String("event_id", eventID),
			zap.String("package_sku", ent.PackageSKU),
		)
		return defaultDays, nil
	}

	if def.StorageDurationDays > 0 {
		return def.StorageDurationDays, nil
	}
	if days, ok := tierDurationDays[def.Tier]; ok {
		return days, nil
	}
	return defaultDays, nil
}
