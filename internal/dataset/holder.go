package dataset

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
)

// ErrNotLoaded is returned by Current before any dataset has been stored.
var ErrNotLoaded = errors.New("dataset not loaded")

// LoaderFunc produces a fresh dataset.
type LoaderFunc func(ctx context.Context) (*Dataset, error)

type versioned struct {
	ds      *Dataset
	version uint64
}

// Holder publishes the current dataset to concurrent readers. Each successful store bumps
// the version, which callers fold into cache keys.
type Holder struct {
	current atomic.Pointer[versioned]
	load    LoaderFunc
	mu      sync.Mutex
}

// NewHolder creates an empty holder that reloads through load.
func NewHolder(load LoaderFunc) *Holder {
	return &Holder{load: load}
}

// Current returns the current dataset and its version.
func (h *Holder) Current() (*Dataset, uint64, error) {
	v := h.current.Load()
	if v == nil {
		return nil, 0, ErrNotLoaded
	}
	return v.ds, v.version, nil
}

// Loaded reports whether a dataset is available.
func (h *Holder) Loaded() bool {
	return h.current.Load() != nil
}

// Store publishes ds as the current dataset and returns its version.
func (h *Holder) Store(ds *Dataset) uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.store(ds)
}

func (h *Holder) store(ds *Dataset) uint64 {
	var next uint64 = 1
	if prev := h.current.Load(); prev != nil {
		next = prev.version + 1
	}
	h.current.Store(&versioned{ds: ds, version: next})
	return next
}

// Reload runs the loader and publishes its result. On failure the previous dataset stays
// current. Concurrent reloads run one at a time.
func (h *Holder) Reload(ctx context.Context) (*Dataset, uint64, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.load == nil {
		return nil, 0, errors.New("dataset holder has no loader")
	}
	ds, err := h.load(ctx)
	if err != nil {
		return nil, 0, err
	}
	return ds, h.store(ds), nil
}
