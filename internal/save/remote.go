package save

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// PlayerKeyHeader carries the per-player secret on document requests.
const PlayerKeyHeader = "X-Player-Key"

// Remote is a document store reached over the network.
type Remote interface {
	Save(ctx context.Context, playerID string, doc *Document) error
	// Load returns ErrNotFound when the remote has no document.
	Load(ctx context.Context, playerID string) (*Document, error)
}

// HTTPRemote talks to the mathrealm server document API.
type HTTPRemote struct {
	baseURL   string
	playerKey string
	token     string
	client    *http.Client
}

// NewHTTPRemote creates a remote targeting baseURL (e.g.
// "http://127.0.0.1:8080"). token is the optional server auth token.
func NewHTTPRemote(baseURL, playerKey, token string) *HTTPRemote {
	return &HTTPRemote{
		baseURL:   baseURL,
		playerKey: playerKey,
		token:     token,
		client:    &http.Client{Timeout: 10 * time.Second},
	}
}

func (r *HTTPRemote) documentURL(playerID string) string {
	return r.baseURL + "/api/players/" + url.PathEscape(playerID) + "/document"
}

// Save sends PUT /api/players/{id}/document.
func (r *HTTPRemote) Save(ctx context.Context, playerID string, doc *Document) error {
	data, err := Encode(doc)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, r.documentURL(playerID), bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	r.setAuth(req)
	resp, err := r.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("PUT document: %d %s", resp.StatusCode, bytes.TrimSpace(body))
	}
	return nil
}

// Load sends GET /api/players/{id}/document.
func (r *HTTPRemote) Load(ctx context.Context, playerID string) (*Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.documentURL(playerID), nil)
	if err != nil {
		return nil, err
	}
	r.setAuth(req)
	resp, err := r.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrNotFound
	}
	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("GET document: %d %s", resp.StatusCode, bytes.TrimSpace(body))
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	return Decode(data)
}

func (r *HTTPRemote) setAuth(req *http.Request) {
	if r.token != "" {
		req.Header.Set("Authorization", "Bearer "+r.token)
	}
	if r.playerKey != "" {
		req.Header.Set(PlayerKeyHeader, r.playerKey)
	}
}
