// Package hub keeps live server-side sessions, one per player, and saves
// them to the document store in the background.
package hub

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/mathrealm/backend/internal/logger"
	"github.com/mathrealm/backend/internal/progression"
	"github.com/mathrealm/backend/internal/save"
	"github.com/mathrealm/backend/internal/storage"
)

const defaultSaveInterval = 30 * time.Second

// DocumentStore is the persistence the hub needs. *storage.Store satisfies it.
type DocumentStore interface {
	Claim(ctx context.Context, playerID, key string) (bool, error)
	Verify(ctx context.Context, playerID, key string) error
	PutDocument(ctx context.Context, playerID string, version int, body []byte) error
	GetDocument(ctx context.Context, playerID string) ([]byte, error)
}

// CompletedCallback is invoked for each goal completed by an operation.
type CompletedCallback func(playerID string, c progression.GoalCompleted)

// RealmUpCallback is invoked when an operation advanced the player's realm.
type RealmUpCallback func(playerID string, lu progression.LevelUp)

// Config tunes background saving.
type Config struct {
	SaveInterval time.Duration
	// IdleTimeout evicts sessions untouched for this long. Zero disables it.
	IdleTimeout time.Duration
}

// Hub serialises access to each player's session with a per-player mutex.
// Different players proceed in parallel.
type Hub struct {
	store DocumentStore
	defs  progression.Definitions
	opts  progression.Options
	cfg   Config
	now   func() time.Time

	mu      sync.Mutex
	entries map[string]*entry

	onCompleted CompletedCallback
	onRealmUp   RealmUpCallback
}

type entry struct {
	mu       sync.Mutex
	session  *progression.Session
	key      string // last key verified against the store
	dirty    bool
	evicted  bool
	lastUsed time.Time
}

// New creates a hub. Call Run in a goroutine to enable periodic saving.
func New(store DocumentStore, defs progression.Definitions, opts progression.Options, cfg Config) *Hub {
	if cfg.SaveInterval <= 0 {
		cfg.SaveInterval = defaultSaveInterval
	}
	return &Hub{
		store:   store,
		defs:    defs,
		opts:    opts,
		cfg:     cfg,
		now:     time.Now,
		entries: make(map[string]*entry),
	}
}

// OnCompleted registers the goal completion callback. Must be called before
// the hub is used.
func (h *Hub) OnCompleted(cb CompletedCallback) {
	h.onCompleted = cb
}

// OnRealmUp registers the realm advance callback. Must be called before the
// hub is used.
func (h *Hub) OnRealmUp(cb RealmUpCallback) {
	h.onRealmUp = cb
}

// Len returns the number of sessions held in memory.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.entries)
}

// lock returns the player's entry locked and authorised. The caller must
// unlock e.mu.
func (h *Hub) lock(ctx context.Context, playerID, key string) (*entry, error) {
	for {
		h.mu.Lock()
		e, ok := h.entries[playerID]
		if !ok {
			e = &entry{}
			h.entries[playerID] = e
		}
		h.mu.Unlock()

		e.mu.Lock()
		if e.evicted {
			e.mu.Unlock()
			continue
		}
		if err := h.authorize(ctx, e, playerID, key); err != nil {
			if e.session == nil {
				h.drop(playerID, e)
			}
			e.mu.Unlock()
			return nil, err
		}
		e.lastUsed = h.now()
		return e, nil
	}
}

// drop removes e from the map. e.mu must be held.
func (h *Hub) drop(playerID string, e *entry) {
	h.mu.Lock()
	if h.entries[playerID] == e {
		delete(h.entries, playerID)
	}
	h.mu.Unlock()
	e.evicted = true
}

func (h *Hub) authorize(ctx context.Context, e *entry, playerID, key string) error {
	if key != "" && e.key != "" && subtle.ConstantTimeCompare([]byte(key), []byte(e.key)) == 1 {
		return nil
	}
	if _, err := h.store.Claim(ctx, playerID, key); err != nil {
		return err
	}
	e.key = key
	return nil
}

// ensureLoaded restores the session from the store, or starts a fresh one.
func (h *Hub) ensureLoaded(ctx context.Context, playerID string, e *entry) error {
	if e.session != nil {
		return nil
	}
	var doc *save.Document
	body, err := h.store.GetDocument(ctx, playerID)
	switch {
	case err == nil:
		if doc, err = save.Decode(body); err != nil {
			logger.Warning("stored document unreadable, starting fresh", "player", playerID, "error", err)
			doc = nil
		}
	case errors.Is(err, storage.ErrNotFound):
	default:
		return fmt.Errorf("loading %s: %w", playerID, err)
	}

	s, issues, err := save.Restore(doc, h.defs, h.opts)
	if err != nil {
		return err
	}
	for _, is := range issues {
		logger.Warning("document repaired", "player", playerID, "issue", is.String())
	}
	e.session = s
	return nil
}

// Do runs fn against the player's session while holding the player lock and
// marks the session dirty. Callbacks for the returned effects fire after the
// lock is released.
func (h *Hub) Do(ctx context.Context, playerID, key string, fn func(*progression.Session) (progression.Effects, error)) error {
	e, err := h.lock(ctx, playerID, key)
	if err != nil {
		return err
	}
	if err := h.ensureLoaded(ctx, playerID, e); err != nil {
		e.mu.Unlock()
		return err
	}
	effects, err := fn(e.session)
	e.dirty = true
	e.mu.Unlock()

	h.notify(playerID, effects)
	return err
}

// View runs fn against the session without marking it dirty.
func (h *Hub) View(ctx context.Context, playerID, key string, fn func(*progression.Session)) error {
	e, err := h.lock(ctx, playerID, key)
	if err != nil {
		return err
	}
	defer e.mu.Unlock()
	if err := h.ensureLoaded(ctx, playerID, e); err != nil {
		return err
	}
	fn(e.session)
	return nil
}

// Verify checks the player's key without claiming the id or loading a
// session. Unknown players yield storage.ErrNotFound.
func (h *Hub) Verify(ctx context.Context, playerID, key string) error {
	return h.store.Verify(ctx, playerID, key)
}

func (h *Hub) notify(playerID string, effects progression.Effects) {
	if h.onRealmUp != nil && effects.LevelUp.Advanced() {
		h.onRealmUp(playerID, effects.LevelUp)
	}
	if h.onCompleted != nil {
		for _, c := range effects.Completed {
			h.onCompleted(playerID, c)
		}
	}
}

// Document returns the player's current document: the live session when one
// is held, otherwise the stored copy. It returns storage.ErrNotFound when
// neither exists.
func (h *Hub) Document(ctx context.Context, playerID, key string) (*save.Document, error) {
	e, err := h.lock(ctx, playerID, key)
	if err != nil {
		return nil, err
	}
	defer e.mu.Unlock()
	if e.session != nil {
		return save.Capture(e.session, playerID), nil
	}
	body, err := h.store.GetDocument(ctx, playerID)
	if err != nil {
		return nil, err
	}
	return save.Decode(body)
}

// PutDocument replaces the player's stored document and drops the live
// session so the next operation reloads it.
func (h *Hub) PutDocument(ctx context.Context, playerID, key string, doc *save.Document) error {
	e, err := h.lock(ctx, playerID, key)
	if err != nil {
		return err
	}
	defer e.mu.Unlock()

	doc.PlayerID = playerID
	body, err := save.Encode(doc)
	if err != nil {
		return err
	}
	if err := h.store.PutDocument(ctx, playerID, doc.Version, body); err != nil {
		return err
	}
	e.session = nil
	e.dirty = false
	return nil
}

// Evict saves and removes a player's session from memory.
func (h *Hub) Evict(ctx context.Context, playerID string) {
	h.mu.Lock()
	e, ok := h.entries[playerID]
	if ok {
		delete(h.entries, playerID)
	}
	h.mu.Unlock()
	if !ok {
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.evicted = true
	h.saveLocked(ctx, playerID, e)
}

// Save persists one player's session if it has unsaved changes.
func (h *Hub) Save(ctx context.Context, playerID string) {
	h.mu.Lock()
	e, ok := h.entries[playerID]
	h.mu.Unlock()
	if !ok {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	h.saveLocked(ctx, playerID, e)
}

func (h *Hub) saveLocked(ctx context.Context, playerID string, e *entry) {
	if !e.dirty || e.session == nil {
		return
	}
	body, err := save.Encode(save.Capture(e.session, playerID))
	if err == nil {
		err = h.store.PutDocument(ctx, playerID, save.Version, body)
	}
	if err != nil {
		logger.Warning("Failed to save session", "player", playerID, "error", err)
		return
	}
	e.dirty = false
}

// SaveAll persists every dirty session and evicts idle ones.
func (h *Hub) SaveAll(ctx context.Context) {
	h.mu.Lock()
	ids := make([]string, 0, len(h.entries))
	for id := range h.entries {
		ids = append(ids, id)
	}
	h.mu.Unlock()

	for _, id := range ids {
		h.Save(ctx, id)
	}
	if h.cfg.IdleTimeout > 0 {
		h.evictIdle(ctx)
	}
}

func (h *Hub) evictIdle(ctx context.Context) {
	cutoff := h.now().Add(-h.cfg.IdleTimeout)
	h.mu.Lock()
	var idle []string
	for id, e := range h.entries {
		if e.mu.TryLock() {
			if e.lastUsed.Before(cutoff) {
				idle = append(idle, id)
			}
			e.mu.Unlock()
		}
	}
	h.mu.Unlock()

	for _, id := range idle {
		logger.Debug("evicting idle session", "player", id)
		h.Evict(ctx, id)
	}
}

// Run saves dirty sessions every SaveInterval. It blocks until ctx is
// cancelled, then performs a final save.
func (h *Hub) Run(ctx context.Context) {
	ticker := time.NewTicker(h.cfg.SaveInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			h.SaveAll(context.WithoutCancel(ctx))
			return
		case <-ticker.C:
			h.SaveAll(ctx)
		}
	}
}
