package save

import (
	"context"
	"errors"
	"time"

	"github.com/mathrealm/backend/internal/logger"
	"github.com/mathrealm/backend/internal/progression"
)

const defaultRemoteTimeout = 5 * time.Second

// Source says where a loaded document came from.
type Source string

const (
	SourceRemote Source = "remote"
	SourceLocal  Source = "local"
	SourceFresh  Source = "fresh"
)

// Manager saves remote-then-local and loads remote, then local, then fresh.
// Remote may be nil for local-only play.
type Manager struct {
	Remote  Remote
	Local   *LocalStore
	Timeout time.Duration
}

// SaveResult reports both writes separately. Success is true when the local
// write succeeded, or when the remote one did and the local one failed.
type SaveResult struct {
	Success           bool
	PersistedRemotely bool
	RemoteErr         error
	LocalErr          error
}

// LoadResult carries the loaded document, nil when Source is SourceFresh.
type LoadResult struct {
	Document *Document
	Source   Source
}

func (m *Manager) timeout() time.Duration {
	if m.Timeout > 0 {
		return m.Timeout
	}
	return defaultRemoteTimeout
}

// Save writes doc remotely (bounded by Timeout) and then always locally.
// Failures are reported in the result, never returned.
func (m *Manager) Save(ctx context.Context, playerID string, doc *Document) SaveResult {
	var res SaveResult
	if m.Remote != nil {
		rctx, cancel := context.WithTimeout(ctx, m.timeout())
		res.RemoteErr = m.Remote.Save(rctx, playerID, doc)
		cancel()
		res.PersistedRemotely = res.RemoteErr == nil
		if res.RemoteErr != nil {
			logger.Warning("remote save failed", "player", playerID, "error", res.RemoteErr)
		}
	}

	if m.Local != nil {
		res.LocalErr = m.Local.Save(playerID, doc)
	} else {
		res.LocalErr = errors.New("no local store")
	}
	if res.LocalErr != nil {
		logger.Warning("local save failed", "player", playerID, "error", res.LocalErr)
	}

	res.Success = res.LocalErr == nil || res.PersistedRemotely
	return res
}

// Load tries the remote, then the local store. Any failure on either side
// falls through to the next; when both come up empty the result is fresh.
func (m *Manager) Load(ctx context.Context, playerID string) LoadResult {
	if m.Remote != nil {
		rctx, cancel := context.WithTimeout(ctx, m.timeout())
		doc, err := m.Remote.Load(rctx, playerID)
		cancel()
		switch {
		case err == nil:
			return LoadResult{Document: doc, Source: SourceRemote}
		case errors.Is(err, ErrNotFound):
			logger.Debug("no remote save", "player", playerID)
		default:
			logger.Warning("remote load failed", "player", playerID, "error", err)
		}
	}

	if m.Local != nil {
		doc, err := m.Local.Load(playerID)
		switch {
		case err == nil:
			return LoadResult{Document: doc, Source: SourceLocal}
		case errors.Is(err, ErrNotFound):
			logger.Debug("no local save", "player", playerID)
		default:
			logger.Warning("local load failed", "player", playerID, "error", err)
		}
	}
	return LoadResult{Source: SourceFresh}
}

// LoadSession loads playerID and restores it into a session. Restore issues
// are logged.
func (m *Manager) LoadSession(ctx context.Context, playerID string, defs progression.Definitions, opts progression.Options) (*progression.Session, Source, error) {
	res := m.Load(ctx, playerID)
	s, issues, err := Restore(res.Document, defs, opts)
	if err != nil {
		return nil, res.Source, err
	}
	for _, is := range issues {
		logger.Warning("save repaired", "player", playerID, "issue", is.String())
	}
	return s, res.Source, nil
}

// SaveSession captures s and saves it.
func (m *Manager) SaveSession(ctx context.Context, playerID string, s *progression.Session) SaveResult {
	return m.Save(ctx, playerID, Capture(s, playerID))
}
