package repository

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/totegamma/memories/internal/domain"
	"github.com/totegamma/memories/internal/infra/kv"
	"github.com/totegamma/memories/internal/infra/observability"
)

const testKey = "@memories_app_recuerdos"

// countingStore records the writes that reach the wrapped store.
type countingStore struct {
	kv.Store
	mu       sync.Mutex
	writes   int
	setKeys  []string
	failSets bool
}

func (c *countingStore) Set(ctx context.Context, key string, value []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failSets {
		return errors.New("disk full")
	}
	c.writes++
	c.setKeys = append(c.setKeys, key)
	return c.Store.Set(ctx, key, value)
}

func (c *countingStore) Update(ctx context.Context, key string, fn kv.UpdateFunc) error {
	return c.Store.Update(ctx, key, func(current []byte, exists bool) ([]byte, bool, error) {
		next, write, err := fn(current, exists)
		if err == nil && write {
			c.mu.Lock()
			c.writes++
			c.mu.Unlock()
		}
		return next, write, err
	})
}

type brokenStore struct {
	kv.Store
}

func (b *brokenStore) Update(ctx context.Context, key string, fn kv.UpdateFunc) error {
	return errors.New("read-only filesystem")
}

func newTestRepository(t *testing.T) (*MemoryRepository, *countingStore, *observability.Collector) {
	t.Helper()
	local, err := kv.NewLocalStore("")
	require.NoError(t, err)
	store := &countingStore{Store: local}
	metrics := observability.NewCollector("test")
	return NewMemoryRepository(store, testKey, metrics), store, metrics
}

func ptr[T any](v T) *T { return &v }

func newRecord(id string) domain.MemoryRecord {
	return domain.MemoryRecord{
		ID:          id,
		MediaKind:   domain.MediaKindPhoto,
		MediaRef:    "file://" + id + ".jpg",
		Description: ptr("memory " + id),
		Location: &domain.Location{
			Latitude:  40.4168,
			Longitude: -3.7038,
			Timestamp: time.UnixMilli(1717171717171).UTC(),
		},
		CreatedAt: time.Date(2024, 6, 1, 12, 0, 0, 123456789, time.UTC),
	}
}

func ids(records []domain.MemoryRecord) []string {
	out := make([]string, 0, len(records))
	for _, r := range records {
		out = append(out, r.ID)
	}
	return out
}

func TestListEmptyStore(t *testing.T) {
	repo, _, _ := newTestRepository(t)

	records, err := repo.List(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, records)
	assert.Empty(t, records)
}

func TestAppendThenList(t *testing.T) {
	ctx := context.Background()
	repo, _, _ := newTestRepository(t)

	record := newRecord("a")
	require.NoError(t, repo.Append(ctx, record))

	records, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, record, records[0])
}

func TestScenarioAppendListDelete(t *testing.T) {
	ctx := context.Background()
	repo, _, _ := newTestRepository(t)

	record := domain.MemoryRecord{
		ID:          "1",
		MediaKind:   domain.MediaKindPhoto,
		MediaRef:    "file://a.jpg",
		Description: ptr(""),
		CreatedAt:   time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
	}
	require.NoError(t, repo.Append(ctx, record))

	records, err := repo.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []domain.MemoryRecord{record}, records)

	removed, err := repo.Delete(ctx, "1")
	require.NoError(t, err)
	assert.True(t, removed)

	records, err = repo.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestListPreservesInsertionOrder(t *testing.T) {
	ctx := context.Background()
	repo, _, _ := newTestRepository(t)

	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, repo.Append(ctx, newRecord(id)))
	}

	records, err := repo.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, ids(records))
}

func TestDeleteRemovesOnlyTarget(t *testing.T) {
	ctx := context.Background()
	repo, _, _ := newTestRepository(t)

	a, b := newRecord("a"), newRecord("b")
	require.NoError(t, repo.Append(ctx, a))
	require.NoError(t, repo.Append(ctx, b))

	_, err := repo.Delete(ctx, "a")
	require.NoError(t, err)

	records, err := repo.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []domain.MemoryRecord{b}, records)
}

func TestDeleteMissingIsNoop(t *testing.T) {
	ctx := context.Background()
	repo, store, _ := newTestRepository(t)

	require.NoError(t, repo.Append(ctx, newRecord("a")))
	before, err := repo.List(ctx)
	require.NoError(t, err)
	writes := store.writes

	removed, err := repo.Delete(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, removed)
	assert.Equal(t, writes, store.writes)

	after, err := repo.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestEditDescriptionSameValueDoesNotWrite(t *testing.T) {
	ctx := context.Background()
	repo, store, _ := newTestRepository(t)

	require.NoError(t, repo.Append(ctx, newRecord("a")))
	raw, err := store.Get(ctx, testKey)
	require.NoError(t, err)
	writes := store.writes

	changed, err := repo.EditDescription(ctx, "a", "memory a")
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, writes, store.writes)

	after, err := store.Get(ctx, testKey)
	require.NoError(t, err)
	assert.Equal(t, raw, after)
}

func TestEditDescriptionUpdatesOnlyTarget(t *testing.T) {
	ctx := context.Background()
	repo, _, _ := newTestRepository(t)

	a, b := newRecord("a"), newRecord("b")
	require.NoError(t, repo.Append(ctx, a))
	require.NoError(t, repo.Append(ctx, b))

	changed, err := repo.EditDescription(ctx, "a", "x")
	require.NoError(t, err)
	assert.True(t, changed)

	records, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "x", *records[0].Description)
	assert.Equal(t, a.CreatedAt, records[0].CreatedAt)
	assert.Equal(t, b, records[1])
}

func TestEditDescriptionOfAbsentDescription(t *testing.T) {
	ctx := context.Background()
	repo, _, _ := newTestRepository(t)

	record := newRecord("a")
	record.Description = nil
	require.NoError(t, repo.Append(ctx, record))

	changed, err := repo.EditDescription(ctx, "a", "")
	require.NoError(t, err)
	assert.True(t, changed)

	got, err := repo.Get(ctx, "a")
	require.NoError(t, err)
	require.NotNil(t, got.Description)
	assert.Equal(t, "", *got.Description)
}

func TestEditDescriptionMissingIsNoop(t *testing.T) {
	ctx := context.Background()
	repo, store, _ := newTestRepository(t)

	require.NoError(t, repo.Append(ctx, newRecord("a")))
	writes := store.writes

	changed, err := repo.EditDescription(ctx, "missing", "x")
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, writes, store.writes)
}

func TestAppendRejectsDuplicateID(t *testing.T) {
	ctx := context.Background()
	repo, _, _ := newTestRepository(t)

	require.NoError(t, repo.Append(ctx, newRecord("a")))

	dup := newRecord("a")
	dup.MediaRef = "file://other.jpg"
	err := repo.Append(ctx, dup)
	assert.ErrorIs(t, err, domain.ErrDuplicateID)

	records, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "file://a.jpg", records[0].MediaRef)
}

func TestAppendValidatesRecord(t *testing.T) {
	ctx := context.Background()
	repo, _, _ := newTestRepository(t)

	cases := map[string]func(r *domain.MemoryRecord){
		"empty id":       func(r *domain.MemoryRecord) { r.ID = "" },
		"unknown kind":   func(r *domain.MemoryRecord) { r.MediaKind = "audio" },
		"empty ref":      func(r *domain.MemoryRecord) { r.MediaRef = "" },
		"latitude range": func(r *domain.MemoryRecord) { r.Location.Latitude = 91 },
		"zero created":   func(r *domain.MemoryRecord) { r.CreatedAt = time.Time{} },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			record := newRecord("v")
			mutate(&record)
			err := repo.Append(ctx, record)
			var validationErr *domain.ValidationError
			assert.ErrorAs(t, err, &validationErr)
		})
	}

	records, err := repo.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestAppendPropagatesWriteFailure(t *testing.T) {
	local, err := kv.NewLocalStore("")
	require.NoError(t, err)
	metrics := observability.NewCollector("test")
	repo := NewMemoryRepository(&brokenStore{Store: local}, testKey, metrics)

	err = repo.Append(context.Background(), newRecord("a"))
	var writeErr *domain.StorageWriteError
	require.ErrorAs(t, err, &writeErr)
	assert.Equal(t, testKey, writeErr.Key)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.StorageWriteErrors))
}

func TestListFailsOpenOnCorruptData(t *testing.T) {
	ctx := context.Background()
	repo, store, metrics := newTestRepository(t)

	require.NoError(t, store.Store.Set(ctx, testKey, []byte("{not json")))

	records, err := repo.List(ctx)
	assert.NotNil(t, records)
	assert.Empty(t, records)

	var readErr *domain.StorageReadError
	require.ErrorAs(t, err, &readErr)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.StorageReadErrors))
}

func TestMutationQuarantinesCorruptData(t *testing.T) {
	ctx := context.Background()
	repo, store, metrics := newTestRepository(t)
	repo.now = func() time.Time { return time.Unix(0, 42) }

	corrupt := []byte(`[{"id":"1","tipo":"audio"}]`)
	require.NoError(t, store.Store.Set(ctx, testKey, corrupt))

	require.NoError(t, repo.Append(ctx, newRecord("a")))

	records, err := repo.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, ids(records))

	backup, err := store.Get(ctx, testKey+".corrupt.42")
	require.NoError(t, err)
	assert.Equal(t, corrupt, backup)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.QuarantinedBlobs))
}

func TestQuarantineFailureLeavesDataInPlace(t *testing.T) {
	ctx := context.Background()
	repo, store, _ := newTestRepository(t)

	corrupt := []byte("garbage")
	require.NoError(t, store.Store.Set(ctx, testKey, corrupt))
	store.failSets = true

	err := repo.Append(ctx, newRecord("a"))
	var writeErr *domain.StorageWriteError
	require.ErrorAs(t, err, &writeErr)

	raw, err := store.Store.Get(ctx, testKey)
	require.NoError(t, err)
	assert.Equal(t, corrupt, raw)
}

func TestLegacyRecordsDecode(t *testing.T) {
	ctx := context.Background()
	repo, store, _ := newTestRepository(t)

	legacy := `[
		{"id":"1717000000000","uri":"file:///a.jpg","tipo":"foto","descripcion":"Sin descripción",
		 "ubicacion":{"latitud":0,"longitud":0},"fecha":"2024-05-29T16:26:40.000Z"},
		{"id":"1717000000001","uri":"file:///b.mp4","tipo":"video","descripcion":"party",
		 "ubicacion":{"latitud":19.4326,"longitud":-99.1332,"timestamp":1717000000001},"fecha":"2024-05-29T16:26:40.001Z"}
	]`
	require.NoError(t, store.Store.Set(ctx, testKey, []byte(legacy)))

	records, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Nil(t, records[0].Location)
	assert.False(t, records[0].HasLocation())
	assert.Equal(t, domain.MediaKindPhoto, records[0].MediaKind)

	assert.Equal(t, domain.MediaKindVideo, records[1].MediaKind)
	require.NotNil(t, records[1].Location)
	assert.Equal(t, 19.4326, records[1].Location.Latitude)
	assert.Equal(t, time.UnixMilli(1717000000001).UTC(), records[1].Location.Timestamp)
	assert.Equal(t, time.Date(2024, 5, 29, 16, 26, 40, 1000000, time.UTC), records[1].CreatedAt)
}

func TestStoredLayoutOmitsMissingLocation(t *testing.T) {
	ctx := context.Background()
	repo, store, _ := newTestRepository(t)

	record := newRecord("a")
	record.Location = nil
	require.NoError(t, repo.Append(ctx, record))

	raw, err := store.Get(ctx, testKey)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(raw), `"tipo":"foto"`))
	assert.False(t, strings.Contains(string(raw), "ubicacion"))
}

func TestConcurrentAppendsKeepEveryRecord(t *testing.T) {
	ctx := context.Background()
	repo, _, _ := newTestRepository(t)

	const n = 40
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			assert.NoError(t, repo.Append(ctx, newRecord(fmt.Sprintf("r%d", i))))
		}(i)
	}
	wg.Wait()

	records, err := repo.List(ctx)
	require.NoError(t, err)
	assert.Len(t, records, n)
}

func TestGetMissing(t *testing.T) {
	repo, _, _ := newTestRepository(t)

	_, err := repo.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestClear(t *testing.T) {
	ctx := context.Background()
	repo, _, _ := newTestRepository(t)

	require.NoError(t, repo.Append(ctx, newRecord("a")))
	require.NoError(t, repo.Clear(ctx))

	records, err := repo.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestFailedSnapshotWriteLeavesNothingBehind(t *testing.T) {
	ctx := context.Background()
	local, err := kv.NewLocalStore(filepath.Join(t.TempDir(), "missing-dir", "snap.gob"))
	require.NoError(t, err)
	repo := NewMemoryRepository(local, testKey, observability.NewCollector("test"))

	err = repo.Append(ctx, newRecord("a"))
	var writeErr *domain.StorageWriteError
	require.ErrorAs(t, err, &writeErr)

	records, err := repo.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestCorruptDataIsQuarantinedOnce(t *testing.T) {
	ctx := context.Background()
	repo, store, metrics := newTestRepository(t)
	n := int64(0)
	repo.now = func() time.Time {
		n++
		return time.Unix(0, n)
	}

	require.NoError(t, store.Store.Set(ctx, testKey, []byte("garbage")))

	for i := 0; i < 3; i++ {
		removed, err := repo.Delete(ctx, "x")
		require.NoError(t, err)
		assert.False(t, removed)
	}

	assert.Equal(t, []string{testKey + ".corrupt.1"}, store.setKeys)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.QuarantinedBlobs))

	records, err := repo.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestUndecodableRecordIsSkipped(t *testing.T) {
	ctx := context.Background()
	repo, store, metrics := newTestRepository(t)
	repo.now = func() time.Time { return time.Unix(0, 7) }

	blob := []byte(`[
		{"id":"1","uri":"file:///a.jpg","tipo":"foto","fecha":"2024-05-29T16:26:40.000Z"},
		{"id":"2","uri":"file:///b.ogg","tipo":"audio","fecha":"2024-05-29T16:26:41.000Z"},
		{"id":"3","uri":"file:///c.jpg","tipo":"foto","fecha":"yesterday"}
	]`)
	require.NoError(t, store.Store.Set(ctx, testKey, blob))

	records, err := repo.List(ctx)
	var readErr *domain.StorageReadError
	require.ErrorAs(t, err, &readErr)
	assert.Equal(t, []string{"1"}, ids(records))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.StorageReadErrors))

	changed, err := repo.EditDescription(ctx, "1", "kept")
	require.NoError(t, err)
	assert.True(t, changed)

	backup, err := store.Get(ctx, testKey+".corrupt.7")
	require.NoError(t, err)
	assert.Equal(t, blob, backup)

	records, err = repo.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"1"}, ids(records))
	assert.Equal(t, "kept", records[0].DisplayDescription())
}

func TestRejectedMutationStillReplacesQuarantinedBlob(t *testing.T) {
	ctx := context.Background()
	repo, store, metrics := newTestRepository(t)
	repo.now = func() time.Time { return time.Unix(0, 9) }

	blob := []byte(`[
		{"id":"1","uri":"file:///a.jpg","tipo":"foto","fecha":"2024-05-29T16:26:40.000Z"},
		{"id":"2","uri":"file:///b.ogg","tipo":"audio","fecha":"2024-05-29T16:26:41.000Z"}
	]`)
	require.NoError(t, store.Store.Set(ctx, testKey, blob))

	for i := 0; i < 2; i++ {
		err := repo.Append(ctx, newRecord("1"))
		assert.ErrorIs(t, err, domain.ErrDuplicateID)
	}

	assert.Equal(t, []string{testKey + ".corrupt.9"}, store.setKeys)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.QuarantinedBlobs))

	records, err := repo.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"1"}, ids(records))
}
