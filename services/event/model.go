package event

import (
	"time"

	"gorm.io/datatypes"
)

// Event is the tenant root. Media, guestbook entries, design assets and
// entitlements all hang off it.
type Event struct {
	ID            string     `gorm:"column:event_id;primaryKey"`
	OwnerID       string     `gorm:"column:owner_id;index;not null"`
	OwnerTenantID string     `gorm:"column:owner_tenant_id;index"` // empty for legacy hosts with no tenant identity
	Title         string     `gorm:"column:title;not null"`
	HostName      string     `gorm:"column:host_name"`
	HostEmail     string     `gorm:"column:host_email"`
	DateTime      time.Time  `gorm:"column:date_time;index;not null"`
	IsActive      bool       `gorm:"column:is_active;default:true"`
	Features      datatypes.JSON `gorm:"column:features;type:jsonb"` // moderation/upload toggles, rate-limit overrides, scan enforcement
	DeletedAt     *time.Time `gorm:"column:deleted_at;index"`
	PurgeAfter    *time.Time `gorm:"column:purge_after;index"`
	CreatedAt     time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

// FeatureConfig is the decoded shape of Event.Features.
type FeatureConfig struct {
	ModerationEnabled bool `json:"moderation_enabled"`
	UploadsEnabled    bool `json:"uploads_enabled"`
	RateLimitOverride int  `json:"rate_limit_override,omitempty"`
	ScanEnforced      bool `json:"scan_enforced"`
}

// GuestbookEntry is a guest message; its optional attachment arrives as an
// ephemeral reservation that is claimed once the message is finalized.
type GuestbookEntry struct {
	ID         string     `gorm:"column:entry_id;primaryKey"`
	EventID    string     `gorm:"column:event_id;index;not null"`
	AuthorName string     `gorm:"column:author_name"`
	Message    string     `gorm:"column:message"`
	DeletedAt  *time.Time `gorm:"column:deleted_at;index"`
	CreatedAt  time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

// DesignAsset is a host-uploaded branding file (cover image, color sheet);
// it counts against the event's storage entitlement.
type DesignAsset struct {
	ID        string     `gorm:"column:asset_id;primaryKey"`
	EventID   string     `gorm:"column:event_id;index;not null"`
	Path      string     `gorm:"column:path;not null"`
	SizeBytes *int64     `gorm:"column:size_bytes"`
	DeletedAt *time.Time `gorm:"column:deleted_at;index"`
	CreatedAt time.Time  `gorm:"column:created_at;autoCreateTime"`
}
