package save

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

func TestLocalStore_SaveLoad(t *testing.T) {
	store := NewLocalStore(t.TempDir())
	if _, err := store.Load("p-1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Load missing = %v, want ErrNotFound", err)
	}

	doc := Capture(playedSession(t), "p-1")
	if err := store.Save("p-1", doc); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := store.Load("p-1")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.Player.Exp != doc.Player.Exp || got.PlayerID != "p-1" {
		t.Errorf("loaded = %+v", got.Player)
	}

	entries, _ := os.ReadDir(store.Dir())
	if len(entries) != 1 || entries[0].Name() != "p-1.json" {
		t.Errorf("dir entries = %v, want only p-1.json", entries)
	}
}

func TestLocalStore_InvalidID(t *testing.T) {
	store := NewLocalStore(t.TempDir())
	for _, id := range []string{"", "..", "a/b", `a\b`} {
		if err := store.Save(id, &Document{}); err == nil {
			t.Errorf("Save(%q) should fail", id)
		}
	}
}

func TestLocalStore_Corrupt(t *testing.T) {
	store := NewLocalStore(t.TempDir())
	path, _ := store.Path("p-1")
	if err := os.WriteFile(path, []byte("{broken"), 0o600); err != nil {
		t.Fatal(err)
	}
	_, err := store.Load("p-1")
	if err == nil || errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want parse error", err)
	}
}

func TestDefaultDir_XDG(t *testing.T) {
	t.Setenv("XDG_STATE_HOME", "/tmp/xdg")
	if got := DefaultDir(); got != filepath.Join("/tmp/xdg", appDirName) {
		t.Errorf("DefaultDir = %q", got)
	}
}

// docServer is a minimal in-memory document endpoint.
type docServer struct {
	mu   sync.Mutex
	docs map[string][]byte
	keys []string
}

func (d *docServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.keys = append(d.keys, r.Header.Get(PlayerKeyHeader))
	id := r.PathValue("id")
	switch r.Method {
	case http.MethodPut:
		body, _ := io.ReadAll(r.Body)
		d.docs[id] = body
		w.WriteHeader(http.StatusNoContent)
	case http.MethodGet:
		body, ok := d.docs[id]
		if !ok {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		w.Write(body)
	}
}

func newDocServer(t *testing.T) (*docServer, *httptest.Server) {
	t.Helper()
	d := &docServer{docs: make(map[string][]byte)}
	mux := http.NewServeMux()
	mux.Handle("/api/players/{id}/document", d)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return d, srv
}

func TestHTTPRemote(t *testing.T) {
	d, srv := newDocServer(t)
	remote := NewHTTPRemote(srv.URL, "secret", "")
	ctx := context.Background()

	if _, err := remote.Load(ctx, "p-1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Load missing = %v, want ErrNotFound", err)
	}
	doc := Capture(playedSession(t), "p-1")
	if err := remote.Save(ctx, "p-1", doc); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := remote.Load(ctx, "p-1")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.Player.Exp != doc.Player.Exp {
		t.Errorf("Exp = %d, want %d", got.Player.Exp, doc.Player.Exp)
	}
	for _, k := range d.keys {
		if k != "secret" {
			t.Errorf("player key header = %q, want secret", k)
		}
	}
}

func TestHTTPRemote_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusInternalServerError)
	}))
	defer srv.Close()
	remote := NewHTTPRemote(srv.URL, "", "")
	if err := remote.Save(context.Background(), "p-1", &Document{}); err == nil {
		t.Error("expected error from 500")
	}
	if _, err := remote.Load(context.Background(), "p-1"); err == nil || errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want non-NotFound error", err)
	}
}

// fakeRemote records calls and returns scripted results.
type fakeRemote struct {
	saveErr error
	loadDoc *Document
	loadErr error
	block   bool
	saves   int
}

func (f *fakeRemote) Save(ctx context.Context, _ string, _ *Document) error {
	f.saves++
	if f.block {
		<-ctx.Done()
		return ctx.Err()
	}
	return f.saveErr
}

func (f *fakeRemote) Load(ctx context.Context, _ string) (*Document, error) {
	if f.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return f.loadDoc, f.loadErr
}

func TestManager_Save(t *testing.T) {
	doc := Capture(newSession(t), "p-1")
	brokenDir := filepath.Join(t.TempDir(), "file")
	if err := os.WriteFile(brokenDir, nil, 0o600); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name         string
		remote       Remote
		local        *LocalStore
		wantSuccess  bool
		wantRemotely bool
	}{
		{"both ok", &fakeRemote{}, NewLocalStore(t.TempDir()), true, true},
		{"remote down", &fakeRemote{saveErr: errors.New("offline")}, NewLocalStore(t.TempDir()), true, false},
		{"local broken", &fakeRemote{}, NewLocalStore(brokenDir), true, true},
		{"both broken", &fakeRemote{saveErr: errors.New("offline")}, NewLocalStore(brokenDir), false, false},
		{"local only", nil, NewLocalStore(t.TempDir()), true, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			m := &Manager{Remote: tc.remote, Local: tc.local}
			res := m.Save(context.Background(), "p-1", doc)
			if res.Success != tc.wantSuccess || res.PersistedRemotely != tc.wantRemotely {
				t.Errorf("Save = %+v, want success=%v remotely=%v", res, tc.wantSuccess, tc.wantRemotely)
			}
		})
	}
}

func TestManager_SaveAlwaysWritesLocal(t *testing.T) {
	local := NewLocalStore(t.TempDir())
	m := &Manager{Remote: &fakeRemote{}, Local: local}
	m.Save(context.Background(), "p-1", Capture(newSession(t), "p-1"))
	if _, err := local.Load("p-1"); err != nil {
		t.Errorf("local copy missing after remote success: %v", err)
	}
}

func TestManager_RemoteTimeout(t *testing.T) {
	m := &Manager{Remote: &fakeRemote{block: true}, Local: NewLocalStore(t.TempDir()), Timeout: 20 * time.Millisecond}
	start := time.Now()
	res := m.Save(context.Background(), "p-1", Capture(newSession(t), "p-1"))
	if !errors.Is(res.RemoteErr, context.DeadlineExceeded) {
		t.Errorf("RemoteErr = %v, want deadline exceeded", res.RemoteErr)
	}
	if !res.Success {
		t.Error("local write should still make the save succeed")
	}
	if time.Since(start) > 2*time.Second {
		t.Error("timeout was not applied")
	}
}

func TestManager_Load(t *testing.T) {
	remoteDoc := Capture(playedSession(t), "p-1")
	local := NewLocalStore(t.TempDir())
	localDoc := Capture(newSession(t), "p-1")
	if err := local.Save("p-1", localDoc); err != nil {
		t.Fatal(err)
	}

	m := &Manager{Remote: &fakeRemote{loadDoc: remoteDoc}, Local: local}
	if res := m.Load(context.Background(), "p-1"); res.Source != SourceRemote || res.Document != remoteDoc {
		t.Errorf("Load = %v, want remote", res.Source)
	}

	m.Remote = &fakeRemote{loadErr: errors.New("offline")}
	if res := m.Load(context.Background(), "p-1"); res.Source != SourceLocal {
		t.Errorf("Load = %v, want local fallback", res.Source)
	}

	m.Remote = &fakeRemote{loadErr: ErrNotFound}
	m.Local = NewLocalStore(t.TempDir())
	res := m.Load(context.Background(), "p-1")
	if res.Source != SourceFresh || res.Document != nil {
		t.Errorf("Load = %+v, want fresh", res)
	}
}

func TestManager_LoadSessionFromCorruptLocal(t *testing.T) {
	local := NewLocalStore(t.TempDir())
	path, _ := local.Path("p-1")
	if err := os.WriteFile(path, []byte("garbage"), 0o600); err != nil {
		t.Fatal(err)
	}
	m := &Manager{Local: local}
	s, src, err := m.LoadSession(context.Background(), "p-1", testDefinitions(t), testOptions())
	if err != nil {
		t.Fatalf("LoadSession: %v", err)
	}
	if src != SourceFresh || s.Player.Exp != 0 {
		t.Errorf("source = %v exp = %d, want fresh", src, s.Player.Exp)
	}

	played := playedSession(t)
	if res := m.SaveSession(context.Background(), "p-1", played); !res.Success {
		t.Fatalf("SaveSession = %+v", res)
	}
	s, src, _ = m.LoadSession(context.Background(), "p-1", testDefinitions(t), testOptions())
	if src != SourceLocal || s.Player.Exp != played.Player.Exp {
		t.Errorf("reload = %v exp %d, want local exp %d", src, s.Player.Exp, played.Player.Exp)
	}
}
