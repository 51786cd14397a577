package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/room4-2/livetranslate/logging"
)

// Handle is an opaque server-issued token for resuming a session.
type Handle struct {
	Value     string
	Resumable bool
}

// Usable reports whether the handle may be offered in a setup frame.
func (h Handle) Usable() bool {
	return h.Resumable && h.Value != ""
}

// ResumptionStatus renders the handle for status displays.
func ResumptionStatus(h Handle, ok bool) string {
	if !ok {
		return "Session: N/A"
	}
	return "Session: " + h.Value
}

const storeWriteTimeout = 5 * time.Second

// Tracker holds the latest resumable handle. Updates that are not
// resumable or carry no handle clear it. When a store is attached,
// changes are persisted in the background and failures are only logged.
type Tracker struct {
	mu        sync.RWMutex
	handle    Handle
	set       bool
	version   uint64 // orders background writes so the store ends on the latest update
	persistMu sync.Mutex
	store     HandleStore
	logger    *slog.Logger
}

// NewTracker creates a tracker. store may be nil.
func NewTracker(store HandleStore, logger *slog.Logger) *Tracker {
	return &Tracker{
		store:  store,
		logger: logging.NewComponentLogger(logger, "resumption"),
	}
}

// Current returns the stored handle, if any.
func (t *Tracker) Current() (Handle, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.handle, t.set
}

// Update applies a server resumption notice.
func (t *Tracker) Update(value string, resumable bool) {
	h := Handle{Value: value, Resumable: resumable}

	t.mu.Lock()
	if h.Usable() {
		t.handle, t.set = h, true
	} else {
		t.handle, t.set = Handle{}, false
	}
	t.version++
	version := t.version
	t.mu.Unlock()

	if t.store == nil {
		return
	}
	go t.persist(h, version)
}

func (t *Tracker) persist(h Handle, version uint64) {
	t.persistMu.Lock()
	defer t.persistMu.Unlock()

	t.mu.RLock()
	stale := version != t.version
	t.mu.RUnlock()
	if stale {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), storeWriteTimeout)
	defer cancel()

	var err error
	if h.Usable() {
		err = t.store.Save(ctx, h)
	} else {
		err = t.store.Clear(ctx)
	}
	if err != nil {
		t.logger.Warn("failed to persist resumption handle", slog.Any("error", err))
	}
}

// Restore seeds the tracker from its store.
func (t *Tracker) Restore(ctx context.Context) error {
	if t.store == nil {
		return nil
	}
	h, ok, err := t.store.Load(ctx)
	if err != nil {
		return err
	}
	if !ok || !h.Usable() {
		return nil
	}
	t.mu.Lock()
	t.handle, t.set = h, true
	t.mu.Unlock()
	t.logger.Info("restored resumption handle")
	return nil
}
