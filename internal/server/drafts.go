// internal/server/drafts.go
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	apperrors "loan-portal/internal/common/errors"
	"loan-portal/internal/common/logger"
	"loan-portal/internal/draft"
)

// sweepInterval paces the idle-engine reaper.
const sweepInterval = 10 * time.Minute

// draftSession pairs a live engine with the last time its form touched it.
type draftSession struct {
	engine    *draft.Engine
	lastTouch time.Time
}

// DraftGateway exposes the auto-save engine over HTTP. One engine per draft
// key is kept alive while the form session is active; an engine is discarded
// on clear, or reaped once the session has gone quiet for the restore window.
type DraftGateway struct {
	store  draft.Store
	opts   draft.Options
	logger logger.Logger

	mu       sync.Mutex
	sessions map[string]*draftSession

	done      chan struct{}
	closeOnce sync.Once
}

func NewDraftGateway(store draft.Store, opts draft.Options, log logger.Logger) *DraftGateway {
	g := &DraftGateway{
		store:    store,
		opts:     opts,
		logger:   log.WithFields(map[string]interface{}{"component": "draft-gateway"}),
		sessions: make(map[string]*draftSession),
		done:     make(chan struct{}),
	}
	go g.sweep()
	return g
}

// Routes mounts the draft endpoints on r.
func (g *DraftGateway) Routes(r chi.Router) {
	r.Get("/{key}", g.handleRestore)
	r.Put("/{key}", g.handleUpdate)
	r.Post("/{key}/flush", g.handleFlush)
	r.Delete("/{key}", g.handleClear)
}

type draftRestoreResponse struct {
	Data      map[string]interface{} `json:"data,omitempty"`
	Timestamp *time.Time             `json:"timestamp,omitempty"`
}

// handleRestore returns the stored snapshot when it is fresh enough to
// restore, 204 otherwise. Stale and corrupt snapshots both read as absent,
// and excluded or empty fields are never handed back.
func (g *DraftGateway) handleRestore(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")

	snap, err := g.store.Load(r.Context(), key)
	if err != nil {
		g.writeError(w, apperrors.NewPersistenceFailedError(err))
		return
	}
	if snap == nil || time.Since(snap.Timestamp) >= g.maxAge() {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	data := draft.StripFields(snap.Data, g.opts.ExcludeFields)
	if len(data) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	g.writeJSON(w, http.StatusOK, draftRestoreResponse{
		Data:      data,
		Timestamp: &snap.Timestamp,
	})
}

// handleUpdate feeds a form-state change into the key's engine. The write is
// debounced; the response only acknowledges receipt.
func (g *DraftGateway) handleUpdate(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")

	var data map[string]interface{}
	if err := json.NewDecoder(r.Body).Decode(&data); err != nil {
		g.writeError(w, apperrors.NewInvalidEnvelopeError("draft payload must be a JSON object"))
		return
	}

	engine, err := g.engine(r, key)
	if err != nil {
		g.writeError(w, apperrors.NewPersistenceFailedError(err))
		return
	}
	engine.Update(data)

	w.WriteHeader(http.StatusAccepted)
}

// handleFlush forces the pending change out immediately, for page-unload
// beacons.
func (g *DraftGateway) handleFlush(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")

	engine, err := g.engine(r, key)
	if err != nil {
		g.writeError(w, apperrors.NewPersistenceFailedError(err))
		return
	}
	engine.Flush()

	w.WriteHeader(http.StatusNoContent)
}

// handleClear removes the draft after submission or explicit discard.
func (g *DraftGateway) handleClear(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")

	g.mu.Lock()
	session, ok := g.sessions[key]
	delete(g.sessions, key)
	g.mu.Unlock()

	if ok {
		if err := session.engine.ClearOnSubmit(r.Context()); err != nil {
			session.engine.Close()
			g.writeError(w, apperrors.NewPersistenceFailedError(err))
			return
		}
		session.engine.Close()
	} else {
		if err := g.store.Delete(r.Context(), key); err != nil {
			g.writeError(w, apperrors.NewPersistenceFailedError(err))
			return
		}
	}

	w.WriteHeader(http.StatusNoContent)
}

// engine returns the live engine for key, creating and opening one on first
// use. Every access refreshes the session's idle clock.
func (g *DraftGateway) engine(r *http.Request, key string) (*draft.Engine, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if session, ok := g.sessions[key]; ok {
		session.lastTouch = time.Now()
		return session.engine, nil
	}

	origin := chimw.GetReqID(r.Context())
	engine := draft.NewEngine(g.store, key, origin, g.opts, g.logger)
	// The subscription outlives this request, so Open does not get the
	// request context.
	if err := engine.Open(context.Background()); err != nil {
		return nil, err
	}
	g.sessions[key] = &draftSession{engine: engine, lastTouch: time.Now()}
	return engine, nil
}

func (g *DraftGateway) sweep() {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			g.reapIdle(time.Now())
		case <-g.done:
			return
		}
	}
}

// reapIdle closes engines whose session has been untouched for the restore
// window. An abandoned session would otherwise hold its store subscription
// for the life of the server. Pending changes are flushed on the way out so
// abandonment never drops the last edit.
func (g *DraftGateway) reapIdle(now time.Time) {
	idle := g.maxAge()

	g.mu.Lock()
	var expired []*draft.Engine
	for key, session := range g.sessions {
		if now.Sub(session.lastTouch) >= idle {
			expired = append(expired, session.engine)
			delete(g.sessions, key)
		}
	}
	g.mu.Unlock()

	for _, engine := range expired {
		engine.Flush()
		engine.Close()
	}
}

// Close stops the reaper and releases every live engine.
func (g *DraftGateway) Close() {
	g.closeOnce.Do(func() { close(g.done) })

	g.mu.Lock()
	sessions := g.sessions
	g.sessions = make(map[string]*draftSession)
	g.mu.Unlock()

	for _, session := range sessions {
		session.engine.Close()
	}
}

func (g *DraftGateway) maxAge() time.Duration {
	if g.opts.MaxAge <= 0 {
		return 24 * time.Hour
	}
	return g.opts.MaxAge
}

func (g *DraftGateway) writeError(w http.ResponseWriter, err error) {
	g.logger.WithError(err).Warn("draft request failed", nil)
	g.writeJSON(w, apperrors.HTTPStatus(err), apiResponse{
		Success: false,
		Message: apperrors.PublicMessage(err),
	})
}

func (g *DraftGateway) writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		g.logger.WithError(err).Warn("failed to encode response", nil)
	}
}
