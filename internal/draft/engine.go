// internal/draft/engine.go
package draft

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"loan-portal/internal/common/logger"
	"loan-portal/internal/common/metrics"
)

// State is the save indicator shown next to the form.
type State string

const (
	StateIdle   State = "idle"
	StateSaving State = "saving"
	StateSaved  State = "saved"
)

// Options tunes one engine instance. Zero values fall back to the defaults
// below.
type Options struct {
	// Debounce is the quiet period before a pending change is written.
	Debounce time.Duration
	// MaxAge bounds restore freshness: older snapshots are ignored.
	MaxAge time.Duration
	// ExcludeFields are never written and never restored.
	ExcludeFields []string

	// OnRestore is invoked with the recovered field map when a fresh snapshot
	// exists at Open time.
	OnRestore func(data map[string]interface{}, savedAt time.Time)
	// OnStateChange tracks the saving indicator.
	OnStateChange func(state State)
	// OnNotice carries user-visible confirmations (draft cleared on submit).
	OnNotice func(message string)
}

const (
	defaultDebounce = 1000 * time.Millisecond
	defaultMaxAge   = 24 * time.Hour
)

// Engine debounces and persists in-progress form state for a single form
// session. One engine per active form; discard it with Close when the form
// completes. All methods are safe for concurrent use.
type Engine struct {
	store  Store
	key    string
	origin string
	opts   Options
	logger logger.Logger

	mu          sync.Mutex
	timer       *time.Timer
	pending     map[string]interface{}
	lastPayload string
	lastSavedAt time.Time
	state       State
	closed      bool

	unsubscribe func()
	now         func() time.Time
}

// NewEngine creates an engine bound to a storage key. origin identifies this
// execution context in save events so the engine can tell its own writes from
// another tab's.
func NewEngine(store Store, key, origin string, opts Options, log logger.Logger) *Engine {
	if opts.Debounce <= 0 {
		opts.Debounce = defaultDebounce
	}
	if opts.MaxAge <= 0 {
		opts.MaxAge = defaultMaxAge
	}
	return &Engine{
		store:  store,
		key:    key,
		origin: origin,
		opts:   opts,
		logger: log.WithFields(map[string]interface{}{"component": "draft-engine", "key": key}),
		state:  StateIdle,
		now:    time.Now,
	}
}

// Open restores any fresh snapshot for the key and starts listening for save
// events from other contexts. Restore failures are silent: a missing, stale,
// or corrupt snapshot means the user simply starts fresh.
func (e *Engine) Open(ctx context.Context) error {
	snap, err := e.store.Load(ctx, e.key)
	if err != nil {
		return err
	}

	if snap != nil {
		age := e.now().Sub(snap.Timestamp)
		data := StripFields(snap.Data, e.opts.ExcludeFields)
		if age < e.opts.MaxAge && len(data) > 0 {
			e.mu.Lock()
			e.lastSavedAt = snap.Timestamp
			e.mu.Unlock()
			if e.opts.OnRestore != nil {
				e.opts.OnRestore(data, snap.Timestamp)
			}
		}
	}

	events, cancel := e.store.Subscribe(ctx, e.key)
	e.mu.Lock()
	e.unsubscribe = cancel
	e.mu.Unlock()

	go func() {
		for event := range events {
			if event.Origin == e.origin {
				continue
			}
			// Another context saved this draft. Reflect the save in the
			// indicator, but never merge its data into a form in use.
			e.mu.Lock()
			e.lastSavedAt = event.Timestamp
			e.mu.Unlock()
			e.setState(StateSaved)
		}
	}()

	return nil
}

// Update records a changed form state and (re)schedules the debounced write.
// Each call cancels the previous timer; only one timer is live per engine.
func (e *Engine) Update(data map[string]interface{}) {
	cleaned := StripFields(data, e.opts.ExcludeFields)
	payload, err := json.Marshal(cleaned)
	if err != nil {
		e.logger.Warn("draft state not serializable, skipping", map[string]interface{}{
			"error": err,
		})
		return
	}

	e.mu.Lock()
	if e.closed || string(payload) == e.lastPayload {
		e.mu.Unlock()
		return
	}
	e.pending = cleaned
	if e.timer != nil {
		e.timer.Stop()
	}
	e.timer = time.AfterFunc(e.opts.Debounce, e.flushPending)
	e.mu.Unlock()

	e.setState(StateSaving)
}

// Flush writes any pending change immediately, bypassing the debounce.
func (e *Engine) Flush() {
	e.mu.Lock()
	if e.timer != nil {
		e.timer.Stop()
		e.timer = nil
	}
	e.mu.Unlock()
	e.flushPending()
}

func (e *Engine) flushPending() {
	e.mu.Lock()
	if e.closed || e.pending == nil {
		e.mu.Unlock()
		return
	}
	data := e.pending
	e.pending = nil
	e.mu.Unlock()

	payload, err := json.Marshal(data)
	if err != nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	snap := &Snapshot{Data: data, Timestamp: e.now().UTC()}
	if err := e.store.Save(ctx, e.key, snap, e.origin); err != nil {
		metrics.DraftSaves.WithLabelValues("error").Inc()
		e.logger.WithError(err).Warn("draft save failed", nil)
		return
	}

	metrics.DraftSaves.WithLabelValues("saved").Inc()

	e.mu.Lock()
	e.lastPayload = string(payload)
	e.lastSavedAt = snap.Timestamp
	e.mu.Unlock()

	e.setState(StateSaved)
}

// Clear removes the stored snapshot and resets the dedup cache.
func (e *Engine) Clear(ctx context.Context) error {
	e.mu.Lock()
	if e.timer != nil {
		e.timer.Stop()
		e.timer = nil
	}
	e.pending = nil
	e.lastPayload = ""
	e.lastSavedAt = time.Time{}
	e.mu.Unlock()

	if err := e.store.Delete(ctx, e.key); err != nil {
		return err
	}
	e.setState(StateIdle)
	return nil
}

// ClearOnSubmit clears the draft after a successful submission and surfaces a
// confirmation to the user.
func (e *Engine) ClearOnSubmit(ctx context.Context) error {
	if err := e.Clear(ctx); err != nil {
		return err
	}
	if e.opts.OnNotice != nil {
		e.opts.OnNotice("Draft cleared")
	}
	return nil
}

// LastSavedAt returns the timestamp of the most recent save, or false when
// nothing has been saved.
func (e *Engine) LastSavedAt() (time.Time, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.lastSavedAt.IsZero() {
		return time.Time{}, false
	}
	return e.lastSavedAt, true
}

// Close stops the debounce timer and the event subscription. Pending changes
// are dropped.
func (e *Engine) Close() {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.closed = true
	if e.timer != nil {
		e.timer.Stop()
		e.timer = nil
	}
	e.pending = nil
	unsubscribe := e.unsubscribe
	e.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
}

func (e *Engine) setState(s State) {
	e.mu.Lock()
	if e.closed || e.state == s {
		e.mu.Unlock()
		return
	}
	e.state = s
	cb := e.opts.OnStateChange
	e.mu.Unlock()

	if cb != nil {
		cb(s)
	}
}

// StripFields drops excluded fields and empty values (nil, empty string) from
// the form state. Applied on every write and on every restore path, including
// restores served outside the engine.
func StripFields(data map[string]interface{}, exclude []string) map[string]interface{} {
	out := make(map[string]interface{}, len(data))
	for k, v := range data {
		if excluded(k, exclude) || empty(v) {
			continue
		}
		out[k] = v
	}
	return out
}

func excluded(field string, exclude []string) bool {
	for _, name := range exclude {
		if name == field {
			return true
		}
	}
	return false
}

func empty(v interface{}) bool {
	if v == nil {
		return true
	}
	s, ok := v.(string)
	return ok && s == ""
}
