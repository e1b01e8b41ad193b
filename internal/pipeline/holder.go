package pipeline

import (
	"context"
	"sync"

	"golang.org/x/sync/singleflight"
)

// Holder keeps the current Session for presentation handlers. Concurrent
// callers asking for a load share a single pipeline run. A load that started
// earlier never replaces the session of one that started later.
type Holder struct {
	p     *Pipeline
	mu    sync.RWMutex
	cur   *Session
	gen   uint64 // generation of cur
	next  uint64 // last generation handed out
	group singleflight.Group
}

// NewHolder returns an empty holder backed by p.
func NewHolder(p *Pipeline) *Holder {
	return &Holder{p: p}
}

// Current returns the loaded session, or nil before the first load.
func (h *Holder) Current() *Session {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.cur
}

// Get returns the current session, loading it on first use.
func (h *Holder) Get(ctx context.Context) (*Session, error) {
	if s := h.Current(); s != nil {
		return s, nil
	}
	return h.load(ctx, false)
}

// Refresh forces a full re-ingestion and replaces the current session.
func (h *Holder) Refresh(ctx context.Context) (*Session, error) {
	return h.load(ctx, true)
}

func (h *Holder) load(ctx context.Context, force bool) (*Session, error) {
	key := "load"
	if force {
		key = "refresh"
	}
	v, err, _ := h.group.Do(key, func() (any, error) {
		if s := h.Current(); s != nil && !force {
			return s, nil
		}
		gen := h.begin()
		s, err := h.p.IngestOrLoad(ctx, force)
		if err != nil {
			return nil, err
		}
		return h.publish(gen, s), nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Session), nil
}

// begin hands out the generation of a load about to start.
func (h *Holder) begin() uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.next++
	return h.next
}

// publish stores s unless a later load already did, and returns the
// current session.
func (h *Holder) publish(gen uint64, s *Session) *Session {
	h.mu.Lock()
	defer h.mu.Unlock()
	if gen > h.gen {
		h.cur, h.gen = s, gen
	}
	return h.cur
}
