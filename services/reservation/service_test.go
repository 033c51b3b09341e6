package reservation

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"eventshare-engine/pkg/config"
	"eventshare-engine/pkg/errutil"
	"eventshare-engine/pkg/objectstore"
	"eventshare-engine/services/testutil"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

type fakeGate struct {
	err   error
	calls []int64
}

func (f *fakeGate) AssertUploadWithinLimit(_ context.Context, _ string, incomingBytes int64) error {
	f.calls = append(f.calls, incomingBytes)
	return f.err
}

func newService(t *testing.T, gate AdmissionGate) (*Service, *gorm.DB, *objectstore.Memory) {
	t.Helper()
	db := testutil.NewTestDB(t, &UploadReservation{})
	store := objectstore.NewMemory()
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	svc := NewService(ServiceParams{
		DB:     db,
		Node:   node,
		Store:  store,
		Gate:   gate,
		Config: config.Default(),
	})
	return svc, db, store
}

func TestCreateReservation(t *testing.T) {
	gate := &fakeGate{}
	svc, db, store := newService(t, gate)

	start := time.Date(2026, 6, 20, 16, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return start }

	data := []byte("voice-note-bytes")
	dur := 12
	res, err := svc.Create(context.Background(), CreateInput{
		EventID:     "evt-1",
		Kind:        KindAudio,
		FileName:    "note.ogg",
		ContentType: "audio/ogg",
		Data:        data,
		DurationSec: &dur,
	})
	require.NoError(t, err)
	require.Equal(t, "evt-1", res.EventID)
	require.Equal(t, KindAudio, res.Kind)
	require.NotNil(t, res.SizeBytes)
	require.Equal(t, int64(len(data)), *res.SizeBytes)
	require.Equal(t, start.Add(30*time.Minute), res.ExpiresAt)
	require.Nil(t, res.ClaimedAt)

	require.Equal(t, []int64{int64(len(data))}, gate.calls)
	require.True(t, store.Has(res.Path))

	var saved UploadReservation
	require.NoError(t, db.Where("reservation_id = ?", res.ID).First(&saved).Error)
	require.Equal(t, res.Path, saved.Path)
}

func TestCreateRejectsUnsupportedKind(t *testing.T) {
	svc, _, _ := newService(t, &fakeGate{})

	_, err := svc.Create(context.Background(), CreateInput{
		EventID: "evt-1", Kind: Kind("video"), FileName: "clip.mp4",
		ContentType: "video/mp4", Data: []byte("bytes"),
	})
	require.Error(t, err)
	require.True(t, errutil.HasStatus(err, errutil.StatusBadRequest))
}

func TestCreateRejectedByGateStoresNothing(t *testing.T) {
	gate := &fakeGate{err: errutil.LimitExceeded("storage limit exceeded")}
	svc, db, store := newService(t, gate)

	_, err := svc.Create(context.Background(), CreateInput{
		EventID: "evt-1", Kind: KindPhoto, FileName: "a.jpg",
		ContentType: "image/jpeg", Data: []byte("bytes"),
	})
	require.Error(t, err)
	require.True(t, errutil.HasStatus(err, errutil.StatusLimitExceeded))

	require.Zero(t, store.Len())
	var count int64
	require.NoError(t, db.Model(&UploadReservation{}).Count(&count).Error)
	require.Zero(t, count)
}

func TestClaimReservation(t *testing.T) {
	svc, db, _ := newService(t, &fakeGate{})

	start := time.Date(2026, 6, 20, 16, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return start }

	res, err := svc.Create(context.Background(), CreateInput{
		EventID: "evt-1", Kind: KindPhoto, FileName: "a.jpg",
		ContentType: "image/jpeg", Data: []byte("bytes"),
	})
	require.NoError(t, err)

	svc.now = func() time.Time { return start.Add(10 * time.Minute) }
	claimed, err := svc.Claim(context.Background(), res.ID, "evt-1", "entry-1")
	require.NoError(t, err)
	require.NotNil(t, claimed.ClaimedAt)
	require.NotNil(t, claimed.EntryID)
	require.Equal(t, "entry-1", *claimed.EntryID)

	var saved UploadReservation
	require.NoError(t, db.Where("reservation_id = ?", res.ID).First(&saved).Error)
	require.NotNil(t, saved.ClaimedAt)

	// A second claim on the same reservation is rejected.
	_, err = svc.Claim(context.Background(), res.ID, "evt-1", "entry-2")
	require.Error(t, err)
	require.True(t, errutil.HasStatus(err, errutil.StatusReservationInvalid))
}

func TestClaimRejectsForeignEvent(t *testing.T) {
	svc, _, _ := newService(t, &fakeGate{})

	res, err := svc.Create(context.Background(), CreateInput{
		EventID: "evt-1", Kind: KindPhoto, FileName: "a.jpg",
		ContentType: "image/jpeg", Data: []byte("bytes"),
	})
	require.NoError(t, err)

	_, err = svc.Claim(context.Background(), res.ID, "evt-2", "entry-1")
	require.Error(t, err)
	require.True(t, errutil.HasStatus(err, errutil.StatusReservationInvalid))
}

func TestClaimRejectsExpired(t *testing.T) {
	svc, _, _ := newService(t, &fakeGate{})

	start := time.Date(2026, 6, 20, 16, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return start }

	res, err := svc.Create(context.Background(), CreateInput{
		EventID: "evt-1", Kind: KindPhoto, FileName: "a.jpg",
		ContentType: "image/jpeg", Data: []byte("bytes"),
	})
	require.NoError(t, err)

	svc.now = func() time.Time { return start.Add(31 * time.Minute) }
	_, err = svc.Claim(context.Background(), res.ID, "evt-1", "entry-1")
	require.Error(t, err)
	require.True(t, errutil.HasStatus(err, errutil.StatusReservationInvalid))
}

func TestClaimUnknownReservation(t *testing.T) {
	svc, _, _ := newService(t, &fakeGate{})

	_, err := svc.Claim(context.Background(), "r-missing", "evt-1", "entry-1")
	require.Error(t, err)
	require.True(t, errutil.HasStatus(err, errutil.StatusReservationInvalid))
}

func TestReapExpired(t *testing.T) {
	svc, db, store := newService(t, &fakeGate{})

	start := time.Date(2026, 6, 20, 16, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return start }

	expired, err := svc.Create(context.Background(), CreateInput{
		EventID: "evt-1", Kind: KindPhoto, FileName: "old.jpg",
		ContentType: "image/jpeg", Data: []byte("old"),
	})
	require.NoError(t, err)

	svc.now = func() time.Time { return start.Add(20 * time.Minute) }
	fresh, err := svc.Create(context.Background(), CreateInput{
		EventID: "evt-1", Kind: KindPhoto, FileName: "new.jpg",
		ContentType: "image/jpeg", Data: []byte("new"),
	})
	require.NoError(t, err)

	claimedRes, err := svc.Create(context.Background(), CreateInput{
		EventID: "evt-1", Kind: KindPhoto, FileName: "kept.jpg",
		ContentType: "image/jpeg", Data: []byte("kept"),
	})
	require.NoError(t, err)
	_, err = svc.Claim(context.Background(), claimedRes.ID, "evt-1", "entry-1")
	require.NoError(t, err)

	// First reservation is past its TTL, the claimed one never expires
	// from accounting, the fresh one still has time.
	svc.now = func() time.Time { return start.Add(45 * time.Minute) }
	reaped, err := svc.ReapExpired(context.Background(), 50)
	require.NoError(t, err)
	require.Equal(t, 1, reaped)

	require.False(t, store.Has(expired.Path))
	require.True(t, store.Has(fresh.Path))
	require.True(t, store.Has(claimedRes.Path))

	var count int64
	require.NoError(t, db.Model(&UploadReservation{}).Count(&count).Error)
	require.Equal(t, int64(2), count)
}

func TestReapSkipsRowWhenObjectDeleteFails(t *testing.T) {
	svc, db, store := newService(t, &fakeGate{})

	start := time.Date(2026, 6, 20, 16, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return start }

	res, err := svc.Create(context.Background(), CreateInput{
		EventID: "evt-1", Kind: KindPhoto, FileName: "a.jpg",
		ContentType: "image/jpeg", Data: []byte("bytes"),
	})
	require.NoError(t, err)

	store.FailDelete = map[string]error{res.Path: errors.New("backend unavailable")}

	svc.now = func() time.Time { return start.Add(time.Hour) }
	reaped, err := svc.ReapExpired(context.Background(), 50)
	require.NoError(t, err)
	require.Zero(t, reaped)

	// Row survives so the next sweep retries the object.
	var count int64
	require.NoError(t, db.Model(&UploadReservation{}).Count(&count).Error)
	require.Equal(t, int64(1), count)

	store.FailDelete = nil
	reaped, err = svc.ReapExpired(context.Background(), 50)
	require.NoError(t, err)
	require.Equal(t, 1, reaped)
}
