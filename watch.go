package ensemble

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// WatchHandle is the opaque, equatable token returned for a single
// one-shot watch subscription. An application that drops a handle is
// indicating disinterest; there is no out-of-band cancellation, so an
// event already in flight is still delivered to it.
type WatchHandle struct {
	id   uuid.UUID
	path Path
	kind WatchKind
	ch   chan Event
}

// ID returns the handle's opaque identity, usable for equality checks
// and logging.
func (h *WatchHandle) ID() uuid.UUID { return h.id }

// Wait blocks until the handle's single event arrives or ctx is done.
func (h *WatchHandle) Wait(ctx context.Context) (Event, error) {
	select {
	case ev, ok := <-h.ch:
		if !ok {
			return Event{}, Closed()
		}
		return ev, nil
	case <-ctx.Done():
		return Event{}, ctx.Err()
	}
}

type watchKey struct {
	path Path
	kind WatchKind
}

// watchRegistry tracks one-shot watches keyed by (path, kind) and by
// opaque handle id. Every live watch is delivered exactly one event:
// a real change notification, or a synthetic session event on
// teardown.
type watchRegistry struct {
	mu      sync.Mutex
	byKey   map[watchKey][]*WatchHandle
	byID    map[uuid.UUID]*WatchHandle
	closed  bool
}

func newWatchRegistry() *watchRegistry {
	return &watchRegistry{
		byKey: make(map[watchKey][]*WatchHandle),
		byID:  make(map[uuid.UUID]*WatchHandle),
	}
}

// install registers a fresh watch for (path, kind). It must only be
// called once the read that accompanies the watch has already
// succeeded -- if that read fails, no watch is installed, and this
// method is never called for it.
func (r *watchRegistry) install(path Path, kind WatchKind) *WatchHandle {
	h := &WatchHandle{
		id:   uuid.New(),
		path: path,
		kind: kind,
		ch:   make(chan Event, 1),
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		// Session already tore down between the read resolving and
		// the engine installing the watch: deliver the terminal event
		// immediately rather than silently losing it.
		h.ch <- Event{Kind: EventSession, State: StateClosed}
		close(h.ch)
		return h
	}
	key := watchKey{path: path, kind: kind}
	r.byKey[key] = append(r.byKey[key], h)
	r.byID[h.id] = h
	return h
}

// dispatch delivers ev to every handle registered for (path, kind) and
// removes them -- each is one-shot.
func (r *watchRegistry) dispatch(path Path, kind WatchKind, ev Event) int {
	key := watchKey{path: path, kind: kind}
	r.mu.Lock()
	handles := r.byKey[key]
	delete(r.byKey, key)
	for _, h := range handles {
		delete(r.byID, h.id)
	}
	r.mu.Unlock()

	for _, h := range handles {
		h.ch <- ev
		close(h.ch)
	}
	return len(handles)
}

// drainAll delivers a synthetic session event to every remaining
// handle and marks the registry closed so any later install calls
// (a watch whose accompanying read was already in flight) deliver the
// terminal event immediately instead of hanging forever.
func (r *watchRegistry) drainAll(state SessionState) int {
	r.mu.Lock()
	all := make([]*WatchHandle, 0, len(r.byID))
	for _, h := range r.byID {
		all = append(all, h)
	}
	r.byKey = make(map[watchKey][]*WatchHandle)
	r.byID = make(map[uuid.UUID]*WatchHandle)
	r.closed = true
	r.mu.Unlock()

	ev := Event{Kind: EventSession, State: state}
	for _, h := range all {
		h.ch <- ev
		close(h.ch)
	}
	return len(all)
}

func (r *watchRegistry) size() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byID)
}
