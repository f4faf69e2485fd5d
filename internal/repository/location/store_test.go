package location

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/oshokin/sos-beacon/internal/domain/sos"
)

func sample() sos.Coordinate {
	return sos.Coordinate{
		Latitude:   40.7128,
		Longitude:  -74.006,
		Accuracy:   sos.IPAccuracyMeters,
		Source:     sos.SourceIP,
		City:       "New York",
		ResolvedAt: time.Date(2026, 4, 2, 8, 30, 15, 123_000_000, time.UTC),
	}
}

// TestFileStore_NotFound verifies Load returns ErrNotFound for a missing file and user.
func TestFileStore_NotFound(t *testing.T) {
	t.Parallel()

	store := NewFileStore(filepath.Join(t.TempDir(), "missing.json"))

	_, err := store.Load(context.Background(), "u1")
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, store.Save(context.Background(), "u2", sample()))

	_, err = store.Load(context.Background(), "u1")
	require.ErrorIs(t, err, ErrNotFound)
}

// TestFileStore_SaveLoad_Roundtrip ensures entries of several users coexist.
func TestFileStore_SaveLoad_Roundtrip(t *testing.T) {
	t.Parallel()

	file := filepath.Join(t.TempDir(), "last-location.json")
	store := NewFileStore(file)

	other := sos.Coordinate{Latitude: -33.87, Longitude: 151.21, Accuracy: 8, Source: sos.SourceGPS}

	require.NoError(t, store.Save(context.Background(), "u1", sample()))
	require.NoError(t, store.Save(context.Background(), "u2", other))

	got, err := store.Load(context.Background(), "u1")
	require.NoError(t, err)
	require.Equal(t, sample(), got)

	got, err = NewFileStore(file).Load(context.Background(), "u2")
	require.NoError(t, err)
	require.Equal(t, other, got)

	info, err := os.Stat(file)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestFileStore_CorruptFile(t *testing.T) {
	t.Parallel()

	file := filepath.Join(t.TempDir(), "corrupt.json")
	require.NoError(t, os.WriteFile(file, []byte("{not json"), 0o600))

	_, err := NewFileStore(file).Load(context.Background(), "u1")
	require.Error(t, err)
	require.NotErrorIs(t, err, ErrNotFound)
}

func TestRedisStore(t *testing.T) {
	t.Parallel()

	server := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	store := NewRedisStore(client, time.Hour)

	t.Cleanup(func() { _ = store.Close() })

	ctx := context.Background()
	require.NoError(t, store.Ping(ctx))

	_, err := store.Load(ctx, "u1")
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, store.Save(ctx, "u1", sample()))
	require.True(t, server.Exists(redisKeyPrefix+"u1"))

	got, err := store.Load(ctx, "u1")
	require.NoError(t, err)
	require.Equal(t, sample(), got)

	server.FastForward(2 * time.Hour)

	_, err = store.Load(ctx, "u1")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore(t *testing.T) {
	t.Parallel()

	store := NewMemoryStore()

	_, err := store.Load(context.Background(), "u1")
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, store.Save(context.Background(), "u1", sample()))

	got, err := store.Load(context.Background(), "u1")
	require.NoError(t, err)
	require.Equal(t, sample(), got)
}
