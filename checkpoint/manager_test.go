package checkpoint

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/lineage"
	"github.com/hupe1980/lineage/blobstore"
	"github.com/hupe1980/lineage/persistence"
	"github.com/hupe1980/lineage/resource"
	"github.com/hupe1980/lineage/testutil"
)

func newCache(t *testing.T, steps int) *lineage.Cache {
	t.Helper()

	c, err := lineage.New(2)
	require.NoError(t, err)
	advance(c, 0, steps)
	return c
}

func advance(c *lineage.Cache, from, steps int) {
	rng := testutil.NewRNG(uint64(from) + 7)
	for t := from; t < from+steps; t++ {
		var ancestors []int
		if t > 0 {
			ancestors = rng.Survivors(6, 6, 3)
		}
		c.WriteState(t, rng.Batch(6, 2), ancestors, t > 0)
	}
}

func assertSame(t *testing.T, want, got *lineage.Cache) {
	t.Helper()
	require.Equal(t, want.Size(), got.Size())
	require.Equal(t, want.Particles(), got.Particles())
	for p := 0; p < want.Particles(); p++ {
		assert.Equal(t, want.Trajectory(p), got.Trajectory(p))
	}
}

func TestName(t *testing.T) {
	assert.Equal(t, "ckpt-00000000000000000042.lin", Name(42))

	seq, ok := ParseName(Name(42))
	assert.True(t, ok)
	assert.Equal(t, uint64(42), seq)

	for _, bad := range []string{"CURRENT", "ckpt-.lin", "ckpt-12.tmp", "ckpt-x.lin"} {
		_, ok := ParseName(bad)
		assert.False(t, ok, bad)
	}
}

func TestManager_SaveRestore(t *testing.T) {
	ctx := context.Background()
	store := blobstore.NewMemoryStore()
	mgr := NewManager(store)

	_, err := mgr.Restore(ctx)
	assert.ErrorIs(t, err, ErrNoCheckpoint)

	c := newCache(t, 10)
	name, err := mgr.Save(ctx, c)
	require.NoError(t, err)
	assert.Equal(t, Name(1), name)

	latest, err := mgr.Latest(ctx)
	require.NoError(t, err)
	assert.Equal(t, name, latest)

	restored, err := mgr.Restore(ctx)
	require.NoError(t, err)
	assertSame(t, c, restored)

	advance(c, 10, 5)
	name, err = mgr.Save(ctx, c)
	require.NoError(t, err)
	assert.Equal(t, Name(2), name)

	// An older checkpoint stays readable by name.
	old, err := mgr.RestoreFrom(ctx, Name(1))
	require.NoError(t, err)
	assert.Equal(t, 10, old.Size())
}

func TestManager_RestoreInto(t *testing.T) {
	ctx := context.Background()
	mgr := NewManager(blobstore.NewMemoryStore())

	c := newCache(t, 8)
	_, err := mgr.Save(ctx, c)
	require.NoError(t, err)

	target, err := lineage.New(2)
	require.NoError(t, err)
	require.NoError(t, mgr.RestoreInto(ctx, target))
	assertSame(t, c, target)

	wrongWidth, err := lineage.New(3)
	require.NoError(t, err)
	err = mgr.RestoreInto(ctx, wrongWidth)
	assert.ErrorIs(t, err, lineage.ErrWidthMismatch)
	assert.Equal(t, 0, wrongWidth.Size())
}

func TestManager_Retain(t *testing.T) {
	ctx := context.Background()
	store := blobstore.NewMemoryStore()
	mgr := NewManager(store, WithRetain(2))

	c := newCache(t, 3)
	for i := 0; i < 5; i++ {
		advance(c, c.Size(), 1)
		_, err := mgr.Save(ctx, c)
		require.NoError(t, err)
	}

	names, err := mgr.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{Name(4), Name(5)}, names)

	restored, err := mgr.Restore(ctx)
	require.NoError(t, err)
	assert.Equal(t, 8, restored.Size())
}

func TestManager_PruneKeepsCurrent(t *testing.T) {
	ctx := context.Background()
	store := blobstore.NewMemoryStore()
	mgr := NewManager(store)

	c := newCache(t, 4)
	for i := 0; i < 3; i++ {
		_, err := mgr.Save(ctx, c)
		require.NoError(t, err)
	}
	// Point CURRENT back at the oldest checkpoint.
	require.NoError(t, store.Put(ctx, CurrentName, []byte(Name(1))))

	removed, err := mgr.Prune(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	names, err := mgr.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{Name(1), Name(3)}, names)
}

func TestManager_LocalStore(t *testing.T) {
	ctx := context.Background()
	store := blobstore.NewLocalStore(t.TempDir())

	rc := resource.NewController(resource.Config{
		MaxConcurrentCheckpoints: 2,
		IOLimitBytesPerSec:       64 << 20,
	})
	mgr := NewManager(store,
		WithResourceController(rc),
		WithLogger(lineage.NoopLogger()),
		WithCacheOptions(lineage.WithSnapshotCompression(persistence.CompressionZSTD)),
	)

	c := newCache(t, 20)
	_, err := mgr.Save(ctx, c)
	require.NoError(t, err)

	restored, err := mgr.Restore(ctx)
	require.NoError(t, err)
	assertSame(t, c, restored)
}

func TestManager_CorruptCurrent(t *testing.T) {
	ctx := context.Background()
	store := blobstore.NewMemoryStore()
	mgr := NewManager(store)

	require.NoError(t, store.Put(ctx, CurrentName, []byte("../../etc/passwd")))
	_, err := mgr.Latest(ctx)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNoCheckpoint)

	require.NoError(t, store.Put(ctx, CurrentName, []byte(Name(9))))
	_, err = mgr.Restore(ctx)
	assert.ErrorIs(t, err, blobstore.ErrNotFound)

	require.NoError(t, store.Put(ctx, Name(9), []byte("not a snapshot")))
	_, err = mgr.Restore(ctx)
	assert.Error(t, err)
}

var errDiskFull = errors.New("disk full")

// failingStore fails every streaming write.
type failingStore struct {
	*blobstore.MemoryStore
	aborted bool
}

func (s *failingStore) Create(context.Context, string) (blobstore.WritableBlob, error) {
	return &failingBlob{store: s}, nil
}

type failingBlob struct {
	store *failingStore
}

func (b *failingBlob) Write([]byte) (int, error) { return 0, errDiskFull }
func (b *failingBlob) Close() error              { return nil }
func (b *failingBlob) Sync() error               { return nil }

func (b *failingBlob) Abort(context.Context) error {
	b.store.aborted = true
	return nil
}

func TestManager_SaveFailure(t *testing.T) {
	ctx := context.Background()
	store := &failingStore{MemoryStore: blobstore.NewMemoryStore()}
	mgr := NewManager(store)

	_, err := mgr.Save(ctx, newCache(t, 5))
	assert.ErrorIs(t, err, errDiskFull)
	assert.True(t, store.aborted)

	_, err = mgr.Latest(ctx)
	assert.ErrorIs(t, err, ErrNoCheckpoint, "CURRENT is only written after a complete snapshot")
}

func TestManager_SaveCancelled(t *testing.T) {
	rc := resource.NewController(resource.Config{MaxConcurrentCheckpoints: 1})
	require.True(t, rc.TryAcquireCheckpoint())
	defer rc.ReleaseCheckpoint()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	mgr := NewManager(blobstore.NewMemoryStore(), WithResourceController(rc))
	_, err := mgr.Save(ctx, newCache(t, 2))
	assert.ErrorIs(t, err, context.Canceled)
}
