package checkpoint

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/hupe1980/lineage"
	"github.com/hupe1980/lineage/blobstore"
	"github.com/hupe1980/lineage/resource"
)

const (
	// CurrentName is the blob that holds the name of the latest checkpoint.
	CurrentName = "CURRENT"

	prefix = "ckpt-"
	suffix = ".lin"
)

// ErrNoCheckpoint is returned when the store holds no committed checkpoint.
var ErrNoCheckpoint = errors.New("checkpoint: no checkpoint")

// Manager writes and reads checkpoints in a single store. A Manager is safe
// for concurrent use; saves are serialized.
type Manager struct {
	store      blobstore.BlobStore
	controller *resource.Controller
	logger     *lineage.Logger
	retain     int
	cacheOpts  []lineage.Option

	mu sync.Mutex
}

// Option configures a Manager.
type Option func(*Manager)

// WithResourceController bounds concurrent checkpoints and checkpoint IO.
func WithResourceController(rc *resource.Controller) Option {
	return func(m *Manager) {
		m.controller = rc
	}
}

// WithLogger sets the logger.
func WithLogger(l *lineage.Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.logger = l
		}
	}
}

// WithRetain keeps only the newest n checkpoints after each Save.
// Zero keeps everything.
func WithRetain(n int) Option {
	return func(m *Manager) {
		if n >= 0 {
			m.retain = n
		}
	}
}

// WithCacheOptions sets the options used for caches created by Restore.
func WithCacheOptions(opts ...lineage.Option) Option {
	return func(m *Manager) {
		m.cacheOpts = opts
	}
}

// NewManager creates a Manager over store.
func NewManager(store blobstore.BlobStore, opts ...Option) *Manager {
	m := &Manager{
		store:  store,
		logger: lineage.NoopLogger(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Name returns the blob name of checkpoint seq.
func Name(seq uint64) string {
	return fmt.Sprintf("%s%020d%s", prefix, seq, suffix)
}

// ParseName returns the sequence number encoded in a checkpoint blob name.
func ParseName(name string) (uint64, bool) {
	if !strings.HasPrefix(name, prefix) || !strings.HasSuffix(name, suffix) {
		return 0, false
	}
	seq, err := strconv.ParseUint(name[len(prefix):len(name)-len(suffix)], 10, 64)
	if err != nil {
		return 0, false
	}
	return seq, true
}

// Save writes a snapshot of c and makes it the current checkpoint.
// It returns the name of the new checkpoint blob. The cache must not be
// mutated while Save runs.
func (m *Manager) Save(ctx context.Context, c *lineage.Cache) (string, error) {
	if err := m.controller.AcquireCheckpoint(ctx); err != nil {
		return "", err
	}
	defer m.controller.ReleaseCheckpoint()

	m.mu.Lock()
	defer m.mu.Unlock()

	start := time.Now()

	names, err := m.List(ctx)
	if err != nil {
		return "", fmt.Errorf("checkpoint: save: %w", err)
	}
	var seq uint64 = 1
	if len(names) > 0 {
		last, _ := ParseName(names[len(names)-1])
		seq = last + 1
	}
	name := Name(seq)

	n, err := m.write(ctx, name, c)
	if err != nil {
		m.logger.ErrorContext(ctx, "checkpoint failed", "name", name, "error", err)
		return "", fmt.Errorf("checkpoint: save %s: %w", name, err)
	}

	if err := m.store.Put(ctx, CurrentName, []byte(name)); err != nil {
		m.logger.ErrorContext(ctx, "checkpoint commit failed", "name", name, "error", err)
		return "", fmt.Errorf("checkpoint: commit %s: %w", name, err)
	}

	m.logger.InfoContext(ctx, "checkpoint saved",
		"name", name,
		"t", c.Size(),
		"bytes", n,
		"duration", time.Since(start),
	)

	if m.retain > 0 {
		if _, err := m.prune(ctx, m.retain, name); err != nil {
			m.logger.WarnContext(ctx, "checkpoint prune failed", "error", err)
		}
	}
	return name, nil
}

func (m *Manager) write(ctx context.Context, name string, c *lineage.Cache) (int64, error) {
	w, err := m.store.Create(ctx, name)
	if err != nil {
		return 0, err
	}

	bw := bufio.NewWriter(m.controller.ThrottleWriter(ctx, w))
	n, err := c.WriteTo(bw)
	if err == nil {
		err = bw.Flush()
	}
	if err == nil {
		err = w.Sync()
	}
	if err != nil {
		abort(ctx, w)
		return n, err
	}
	return n, w.Close()
}

func abort(ctx context.Context, w blobstore.WritableBlob) {
	if a, ok := w.(blobstore.Aborter); ok {
		_ = a.Abort(ctx)
		return
	}
	_ = w.Close()
}

// Latest returns the name of the current checkpoint.
func (m *Manager) Latest(ctx context.Context) (string, error) {
	data, err := blobstore.ReadAll(ctx, m.store, CurrentName)
	if errors.Is(err, blobstore.ErrNotFound) {
		return "", ErrNoCheckpoint
	}
	if err != nil {
		return "", fmt.Errorf("checkpoint: read %s: %w", CurrentName, err)
	}

	name := strings.TrimSpace(string(data))
	if _, ok := ParseName(name); !ok {
		return "", fmt.Errorf("checkpoint: %s names %q", CurrentName, name)
	}
	return name, nil
}

// Restore loads the current checkpoint into a new cache.
func (m *Manager) Restore(ctx context.Context) (*lineage.Cache, error) {
	name, err := m.Latest(ctx)
	if err != nil {
		return nil, err
	}
	return m.RestoreFrom(ctx, name)
}

// RestoreFrom loads the named checkpoint into a new cache.
func (m *Manager) RestoreFrom(ctx context.Context, name string) (*lineage.Cache, error) {
	var c *lineage.Cache
	err := m.read(ctx, name, func(r io.Reader) error {
		var err error
		c, err = lineage.Load(r, m.cacheOpts...)
		return err
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}

// RestoreInto replaces the state of c with the current checkpoint.
// On error c is left unchanged.
func (m *Manager) RestoreInto(ctx context.Context, c *lineage.Cache) error {
	name, err := m.Latest(ctx)
	if err != nil {
		return err
	}
	return m.read(ctx, name, func(r io.Reader) error {
		_, err := c.ReadFrom(r)
		return err
	})
}

func (m *Manager) read(ctx context.Context, name string, fn func(io.Reader) error) error {
	blob, err := m.store.Open(ctx, name)
	if err != nil {
		return fmt.Errorf("checkpoint: open %s: %w", name, err)
	}
	defer func() { _ = blob.Close() }()

	r := m.controller.ThrottleReader(ctx, blobstore.NewReader(ctx, blob))
	if err := fn(bufio.NewReader(r)); err != nil {
		return fmt.Errorf("checkpoint: restore %s: %w", name, err)
	}

	m.logger.InfoContext(ctx, "checkpoint restored", "name", name, "bytes", blob.Size())
	return nil
}

// List returns the names of all checkpoint blobs, oldest first.
func (m *Manager) List(ctx context.Context) ([]string, error) {
	names, err := m.store.List(ctx, prefix)
	if err != nil {
		return nil, err
	}

	out := names[:0]
	for _, name := range names {
		if _, ok := ParseName(name); ok {
			out = append(out, name)
		}
	}
	// Zero-padded sequence numbers sort lexically.
	return out, nil
}

// Prune deletes all but the newest keep checkpoints. The current checkpoint
// is never deleted. It returns the number of blobs removed.
func (m *Manager) Prune(ctx context.Context, keep int) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	current, err := m.Latest(ctx)
	if err != nil && !errors.Is(err, ErrNoCheckpoint) {
		return 0, err
	}
	return m.prune(ctx, keep, current)
}

func (m *Manager) prune(ctx context.Context, keep int, current string) (int, error) {
	names, err := m.List(ctx)
	if err != nil {
		return 0, err
	}
	if len(names) <= keep {
		return 0, nil
	}

	removed := 0
	for _, name := range names[:len(names)-keep] {
		if name == current {
			continue
		}
		if err := m.store.Delete(ctx, name); err != nil {
			return removed, fmt.Errorf("checkpoint: delete %s: %w", name, err)
		}
		removed++
	}
	if removed > 0 {
		m.logger.DebugContext(ctx, "checkpoints pruned", "removed", removed, "kept", len(names)-removed)
	}
	return removed, nil
}
