package retention

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"eventshare-engine/pkg/config"
	"eventshare-engine/services/entitlement"
	"eventshare-engine/services/event"
	"eventshare-engine/services/media"
	"eventshare-engine/services/reservation"
	"eventshare-engine/services/testutil"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

func i64(v int64) *int64 { return &v }

func newCalculator(t *testing.T) (*WindowCalculator, *gorm.DB) {
	t.Helper()
	db := testutil.NewTestDB(t,
		&event.Event{}, &event.GuestbookEntry{}, &event.DesignAsset{},
		&entitlement.EventEntitlement{}, &entitlement.PackageDefinition{},
		&media.Item{}, &reservation.UploadReservation{},
	)
	calc := NewWindowCalculator(WindowParams{
		DB:          db,
		Entitlement: entitlement.NewService(entitlement.ServiceParams{DB: db}),
		Config:      config.Default(),
	})
	return calc, db
}

func seedEvent(t *testing.T, db *gorm.DB, id string, dateTime time.Time) {
	t.Helper()
	require.NoError(t, db.Create(&event.Event{
		ID:       id,
		OwnerID:  "host-1",
		Title:    "Garden Party",
		DateTime: dateTime,
		IsActive: true,
	}).Error)
}

func TestStorageEndsAtNilWithoutContent(t *testing.T) {
	calc, db := newCalculator(t)
	seedEvent(t, db, "evt-1", time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC))

	endsAt, err := calc.StorageEndsAt(context.Background(), "evt-1")
	require.NoError(t, err)
	require.Nil(t, endsAt)

	locked, err := calc.IsLocked(context.Background(), "evt-1")
	require.NoError(t, err)
	require.False(t, locked)
}

func TestWindowStartsAtFirstUploadNotEventDate(t *testing.T) {
	calc, db := newCalculator(t)
	eventDay := time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC)
	seedEvent(t, db, "evt-1", eventDay)

	// First upload lands the day after the event; the 14-day package
	// window runs from the upload, not from the event date.
	firstUpload := eventDay.AddDate(0, 0, 1)
	require.NoError(t, db.Create(&entitlement.PackageDefinition{
		SKU: "pkg-two-week", Name: "Two Week", Tier: "basic",
		StorageLimitBytes: 1 << 30, StorageDurationDays: 14, IsActive: true,
	}).Error)
	require.NoError(t, db.Create(&entitlement.EventEntitlement{
		ID: "ent-1", EventID: "evt-1", Status: entitlement.StatusActive,
		StorageLimitBytes: 1 << 30, PackageSKU: "pkg-two-week",
	}).Error)
	require.NoError(t, db.Create(&media.Item{
		ID: "m-1", EventID: "evt-1", Type: media.TypePhoto,
		Status: media.StatusApproved, SizeBytes: i64(100), CreatedAt: firstUpload,
	}).Error)

	endsAt, err := calc.StorageEndsAt(context.Background(), "evt-1")
	require.NoError(t, err)
	require.NotNil(t, endsAt)
	require.Equal(t, firstUpload.AddDate(0, 0, 14), *endsAt)

	calc.now = func() time.Time { return firstUpload.AddDate(0, 0, 14) }
	locked, err := calc.IsLocked(context.Background(), "evt-1")
	require.NoError(t, err)
	require.False(t, locked)

	calc.now = func() time.Time { return firstUpload.AddDate(0, 0, 15) }
	locked, err = calc.IsLocked(context.Background(), "evt-1")
	require.NoError(t, err)
	require.True(t, locked)
}

func TestFirstContentAtConsidersGuestbook(t *testing.T) {
	calc, db := newCalculator(t)
	eventDay := time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC)
	seedEvent(t, db, "evt-1", eventDay)

	entryAt := eventDay.Add(2 * time.Hour)
	mediaAt := eventDay.Add(5 * time.Hour)
	require.NoError(t, db.Create(&event.GuestbookEntry{
		ID: "g-1", EventID: "evt-1", AuthorName: "Ana", Message: "congrats",
		CreatedAt: entryAt,
	}).Error)
	require.NoError(t, db.Create(&media.Item{
		ID: "m-1", EventID: "evt-1", Type: media.TypePhoto,
		Status: media.StatusApproved, SizeBytes: i64(100), CreatedAt: mediaAt,
	}).Error)

	first, err := calc.FirstContentAt(context.Background(), "evt-1")
	require.NoError(t, err)
	require.NotNil(t, first)
	require.Equal(t, entryAt, *first)
}

func TestFirstContentAtSkipsDeletedMedia(t *testing.T) {
	calc, db := newCalculator(t)
	eventDay := time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC)
	seedEvent(t, db, "evt-1", eventDay)

	deletedAt := eventDay.Add(time.Hour)
	require.NoError(t, db.Create(&media.Item{
		ID: "m-gone", EventID: "evt-1", Type: media.TypePhoto,
		Status: media.StatusDeleted, SizeBytes: i64(100),
		CreatedAt: eventDay, DeletedAt: &deletedAt,
	}).Error)
	require.NoError(t, db.Create(&media.Item{
		ID: "m-live", EventID: "evt-1", Type: media.TypePhoto,
		Status: media.StatusApproved, SizeBytes: i64(100),
		CreatedAt: eventDay.Add(3 * time.Hour),
	}).Error)

	first, err := calc.FirstContentAt(context.Background(), "evt-1")
	require.NoError(t, err)
	require.NotNil(t, first)
	require.Equal(t, eventDay.Add(3*time.Hour), *first)
}

func TestStorageEndsAtUsesDefaultDaysWithoutEntitlement(t *testing.T) {
	calc, db := newCalculator(t)
	eventDay := time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC)
	seedEvent(t, db, "evt-1", eventDay)

	require.NoError(t, db.Create(&media.Item{
		ID: "m-1", EventID: "evt-1", Type: media.TypePhoto,
		Status: media.StatusApproved, SizeBytes: i64(100), CreatedAt: eventDay,
	}).Error)

	endsAt, err := calc.StorageEndsAt(context.Background(), "evt-1")
	require.NoError(t, err)
	require.NotNil(t, endsAt)
	require.Equal(t, eventDay.AddDate(0, 0, 30), *endsAt)
}
