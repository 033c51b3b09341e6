package entitlement

import "time"

type EntitlementStatus string

const (
	StatusActive   EntitlementStatus = "ACTIVE"
	StatusInactive EntitlementStatus = "INACTIVE"
)

// EventEntitlement is a purchased storage grant bound to one event and,
// where resolvable, to the owning tenant identity. Multiple rows may exist
// historically; only the most recent ACTIVE one is authoritative.
type EventEntitlement struct {
	ID                string            `gorm:"column:entitlement_id;primaryKey"`
	EventID           string            `gorm:"column:event_id;index;not null"`
	TenantID          string            `gorm:"column:tenant_id;index"` // empty for legacy event-scoped grants
	Status            EntitlementStatus `gorm:"column:status;not null;default:'ACTIVE'"`
	StorageLimitBytes int64             `gorm:"column:storage_limit_bytes;not null;default:0"`
	PackageSKU        string            `gorm:"column:package_sku;index"`
	CreatedAt         time.Time         `gorm:"column:created_at;autoCreateTime;index"`
}

// PackageDefinition is the catalog entry behind a purchasable SKU.
type PackageDefinition struct {
	SKU                 string    `gorm:"column:sku;primaryKey"`
	Name                string    `gorm:"column:name;not null"`
	Tier                string    `gorm:"column:tier;not null"`
	StorageLimitBytes   int64     `gorm:"column:storage_limit_bytes;not null;default:0"`
	StorageDurationDays int       `gorm:"column:storage_duration_days;default:0"`
	IsActive            bool      `gorm:"column:is_active;default:true"`
	CreatedAt           time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt           time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
