package entitlement

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"eventshare-engine/services/event"
	"eventshare-engine/services/testutil"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

func newService(t *testing.T) (*Service, *gorm.DB) {
	t.Helper()
	db := testutil.NewTestDB(t, &event.Event{}, &EventEntitlement{}, &PackageDefinition{})
	return NewService(ServiceParams{DB: db}), db
}

func seedEvent(t *testing.T, db *gorm.DB, id, tenantID string) {
	t.Helper()
	require.NoError(t, db.Create(&event.Event{
		ID:            id,
		OwnerID:       "host-1",
		OwnerTenantID: tenantID,
		Title:         "Summer Wedding",
		DateTime:      time.Date(2026, 6, 20, 15, 0, 0, 0, time.UTC),
		IsActive:      true,
	}).Error)
}

func TestResolveScopedToOwnerTenant(t *testing.T) {
	svc, db := newService(t)
	seedEvent(t, db, "evt-1", "tenant-a")

	require.NoError(t, db.Create(&EventEntitlement{
		ID: "ent-other", EventID: "evt-1", TenantID: "tenant-b",
		Status: StatusActive, StorageLimitBytes: 999,
	}).Error)
	require.NoError(t, db.Create(&EventEntitlement{
		ID: "ent-mine", EventID: "evt-1", TenantID: "tenant-a",
		Status: StatusActive, StorageLimitBytes: 100,
	}).Error)

	ent, err := svc.Resolve(context.Background(), "evt-1")
	require.NoError(t, err)
	require.NotNil(t, ent)
	require.Equal(t, "ent-mine", ent.ID)
	require.Equal(t, int64(100), ent.StorageLimitBytes)
}

func TestResolveLegacyEventIgnoresTenantRows(t *testing.T) {
	svc, db := newService(t)
	seedEvent(t, db, "evt-legacy", "")

	require.NoError(t, db.Create(&EventEntitlement{
		ID: "ent-tenanted", EventID: "evt-legacy", TenantID: "tenant-a",
		Status: StatusActive, StorageLimitBytes: 999,
	}).Error)
	require.NoError(t, db.Create(&EventEntitlement{
		ID: "ent-direct", EventID: "evt-legacy",
		Status: StatusActive, StorageLimitBytes: 50,
	}).Error)

	ent, err := svc.Resolve(context.Background(), "evt-legacy")
	require.NoError(t, err)
	require.NotNil(t, ent)
	require.Equal(t, "ent-direct", ent.ID)
}

func TestResolvePrefersMostRecentActive(t *testing.T) {
	svc, db := newService(t)
	seedEvent(t, db, "evt-1", "tenant-a")

	old := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, db.Create(&EventEntitlement{
		ID: "ent-old", EventID: "evt-1", TenantID: "tenant-a",
		Status: StatusActive, StorageLimitBytes: 10, CreatedAt: old,
	}).Error)
	require.NoError(t, db.Create(&EventEntitlement{
		ID: "ent-new", EventID: "evt-1", TenantID: "tenant-a",
		Status: StatusActive, StorageLimitBytes: 20, CreatedAt: old.AddDate(0, 1, 0),
	}).Error)
	require.NoError(t, db.Create(&EventEntitlement{
		ID: "ent-inactive", EventID: "evt-1", TenantID: "tenant-a",
		Status: StatusInactive, StorageLimitBytes: 30, CreatedAt: old.AddDate(0, 2, 0),
	}).Error)

	ent, err := svc.Resolve(context.Background(), "evt-1")
	require.NoError(t, err)
	require.NotNil(t, ent)
	require.Equal(t, "ent-new", ent.ID)
}

func TestResolveNoEntitlement(t *testing.T) {
	svc, db := newService(t)
	seedEvent(t, db, "evt-1", "tenant-a")

	ent, err := svc.Resolve(context.Background(), "evt-1")
	require.NoError(t, err)
	require.Nil(t, ent)
}

func TestResolveUnknownEvent(t *testing.T) {
	svc, _ := newService(t)

	ent, err := svc.Resolve(context.Background(), "evt-missing")
	require.NoError(t, err)
	require.Nil(t, ent)
}

func TestStorageDurationDaysExplicit(t *testing.T) {
	svc, db := newService(t)
	seedEvent(t, db, "evt-1", "tenant-a")

	require.NoError(t, db.Create(&PackageDefinition{
		SKU: "pkg-premium-plus", Name: "Premium Plus", Tier: "premium",
		StorageLimitBytes: 1 << 40, StorageDurationDays: 730, IsActive: true,
	}).Error)
	require.NoError(t, db.Create(&EventEntitlement{
		ID: "ent-1", EventID: "evt-1", TenantID: "tenant-a",
		Status: StatusActive, StorageLimitBytes: 1 << 40, PackageSKU: "pkg-premium-plus",
	}).Error)

	days, err := svc.StorageDurationDays(context.Background(), "evt-1", 30)
	require.NoError(t, err)
	require.Equal(t, 730, days)
}

func TestStorageDurationDaysTierFallback(t *testing.T) {
	svc, db := newService(t)
	seedEvent(t, db, "evt-1", "tenant-a")

	require.NoError(t, db.Create(&PackageDefinition{
		SKU: "pkg-standard", Name: "Standard", Tier: "standard", IsActive: true,
	}).Error)
	require.NoError(t, db.Create(&EventEntitlement{
		ID: "ent-1", EventID: "evt-1", TenantID: "tenant-a",
		Status: StatusActive, StorageLimitBytes: 1 << 30, PackageSKU: "pkg-standard",
	}).Error)

	days, err := svc.StorageDurationDays(context.Background(), "evt-1", 30)
	require.NoError(t, err)
	require.Equal(t, 180, days)
}

func TestStorageDurationDaysUnknownPackage(t *testing.T) {
	svc, db := newService(t)
	seedEvent(t, db, "evt-1", "tenant-a")

	require.NoError(t, db.Create(&EventEntitlement{
		ID: "ent-1", EventID: "evt-1", TenantID: "tenant-a",
		Status: StatusActive, StorageLimitBytes: 1 << 30, PackageSKU: "pkg-retired",
	}).Error)

	days, err := svc.StorageDurationDays(context.Background(), "evt-1", 45)
	require.NoError(t, err)
	require.Equal(t, 45, days)
}

func TestStorageDurationDaysNoEntitlement(t *testing.T) {
	svc, db := newService(t)
	seedEvent(t, db, "evt-1", "")

	days, err := svc.StorageDurationDays(context.Background(), "evt-1", 30)
	require.NoError(t, err)
	require.Equal(t, 30, days)
}
