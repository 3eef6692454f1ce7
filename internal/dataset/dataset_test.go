package dataset

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stwalsh4118/dissent/internal/models"
)

func date(s string) *time.Time {
	t, _ := time.Parse(models.DateLayout, s)
	return &t
}

func fixture() *Dataset {
	return New([]models.Event{
		{ID: 1, State: "TX", Locality: "austin", ResolvedLocality: "Austin", Date: date("2025-02-01")},
		{ID: 2, State: "TX", Locality: "Dallas", Date: date("2025-01-15")},
		{ID: 3, State: "CA", Locality: "Oakland"},
		{ID: 4, State: "TX", ResolvedLocality: "Austin", Date: date("2025-03-01")},
		{ID: 5},
	}, 0, OriginMemory, time.Time{})
}

func TestDataset_States(t *testing.T) {
	assert.Equal(t, []string{"CA", "TX"}, fixture().States())
}

func TestDataset_Cities(t *testing.T) {
	ds := fixture()

	assert.Equal(t, []string{"Austin", "Dallas"}, ds.Cities([]string{"TX"}))
	assert.Equal(t, []string{"Austin", "Dallas", "Oakland"}, ds.Cities([]string{"TX", "CA"}))
	assert.Empty(t, ds.Cities(nil))
	assert.NotNil(t, ds.Cities(nil))
}

func TestDataset_DateBounds(t *testing.T) {
	first, last := fixture().DateBounds()
	require.NotNil(t, first)
	require.NotNil(t, last)
	assert.Equal(t, "2025-01-15", first.Format(models.DateLayout))
	assert.Equal(t, "2025-03-01", last.Format(models.DateLayout))

	first, last = New(nil, 0, OriginMemory, time.Time{}).DateBounds()
	assert.Nil(t, first)
	assert.Nil(t, last)
}

func TestDataset_EmptyEventsNonNil(t *testing.T) {
	ds := New(nil, 0, OriginMemory, time.Time{})

	assert.NotNil(t, ds.Events())
	assert.Zero(t, ds.Len())
}

func TestHolder_CurrentBeforeLoad(t *testing.T) {
	h := NewHolder(nil)

	_, _, err := h.Current()
	assert.ErrorIs(t, err, ErrNotLoaded)
	assert.False(t, h.Loaded())
}

func TestHolder_ReloadBumpsVersion(t *testing.T) {
	calls := 0
	h := NewHolder(func(ctx context.Context) (*Dataset, error) {
		calls++
		return fixture(), nil
	})

	_, v1, err := h.Reload(context.Background())
	require.NoError(t, err)
	_, v2, err := h.Reload(context.Background())
	require.NoError(t, err)

	assert.Equal(t, uint64(1), v1)
	assert.Equal(t, uint64(2), v2)
	assert.Equal(t, 2, calls)

	ds, v, err := h.Current()
	require.NoError(t, err)
	assert.Equal(t, uint64(2), v)
	assert.Equal(t, 5, ds.Len())
}

func TestHolder_FailedReloadKeepsPrevious(t *testing.T) {
	boom := errors.New("disk on fire")
	fail := false
	h := NewHolder(func(ctx context.Context) (*Dataset, error) {
		if fail {
			return nil, boom
		}
		return fixture(), nil
	})
	_, _, err := h.Reload(context.Background())
	require.NoError(t, err)

	fail = true
	_, _, err = h.Reload(context.Background())
	assert.ErrorIs(t, err, boom)

	ds, v, err := h.Current()
	require.NoError(t, err)
	assert.Equal(t, uint64(1), v)
	assert.NotNil(t, ds)
}

func TestHolder_ConcurrentReaders(t *testing.T) {
	h := NewHolder(func(ctx context.Context) (*Dataset, error) { return fixture(), nil })
	h.Store(fixture())

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				ds, _, err := h.Current()
				assert.NoError(t, err)
				assert.Equal(t, 5, ds.Len())
			}
		}()
	}
	for i := 0; i < 5; i++ {
		_, _, err := h.Reload(context.Background())
		require.NoError(t, err)
	}
	wg.Wait()

	_, v, _ := h.Current()
	assert.Equal(t, uint64(6), v)
}

func TestSnapshot_RoundTrip(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "snap.db")
	src := SourceInfo{Size: 123, ModTime: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}

	damage := "graffiti"
	size := 250.0
	original := New([]models.Event{
		{ID: 1, Date: date("2025-01-01"), SizeMean: &size, PropertyDamage: &damage, Title: "Rally", Sources: []string{"http://a", ""}},
		{ID: 2, Title: "Vigil"},
	}, 2, OriginCSV, time.Time{})

	require.NoError(t, WriteSnapshot(ctx, path, original, src))

	clock := clockwork.NewFakeClockAt(time.Date(2025, 5, 5, 0, 0, 0, 0, time.UTC))
	loaded, err := ReadSnapshot(ctx, path, src, clock)
	require.NoError(t, err)

	assert.Equal(t, OriginSnapshot, loaded.Origin())
	assert.Equal(t, 2, loaded.SourceColumns())
	assert.Equal(t, clock.Now(), loaded.LoadedAt())
	assert.Equal(t, original.Events(), loaded.Events())
}

func TestSnapshot_Stale(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	path := filepath.Join(dir, "snap.db")
	src := SourceInfo{Size: 10, ModTime: time.Unix(1000, 0)}

	_, err := ReadSnapshot(ctx, path, src, nil)
	assert.ErrorIs(t, err, ErrSnapshotStale, "missing file")

	require.NoError(t, WriteSnapshot(ctx, path, fixture(), src))

	_, err = ReadSnapshot(ctx, path, SourceInfo{Size: 11, ModTime: src.ModTime}, nil)
	assert.ErrorIs(t, err, ErrSnapshotStale, "size changed")

	_, err = ReadSnapshot(ctx, path, SourceInfo{Size: 10, ModTime: time.Unix(2000, 0)}, nil)
	assert.ErrorIs(t, err, ErrSnapshotStale, "mtime changed")

	require.NoError(t, os.Remove(path))
	_, err = ReadSnapshot(ctx, path, src, nil)
	assert.ErrorIs(t, err, ErrSnapshotStale, "deleted")
}

func TestSnapshot_Rewrite(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "snap.db")
	src := SourceInfo{Size: 1, ModTime: time.Unix(1, 0)}

	require.NoError(t, WriteSnapshot(ctx, path, fixture(), src))
	require.NoError(t, WriteSnapshot(ctx, path, New([]models.Event{{ID: 1}}, 0, OriginCSV, time.Time{}), src))

	loaded, err := ReadSnapshot(ctx, path, src, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, loaded.Len())
}
