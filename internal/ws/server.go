// Package ws serves the player HTTP API and pushes progression events to
// websocket subscribers.
package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/mathrealm/backend/internal/hub"
	"github.com/mathrealm/backend/internal/logger"
	"github.com/mathrealm/backend/internal/progression"
	"github.com/mathrealm/backend/internal/save"
	"github.com/mathrealm/backend/internal/storage"
	"github.com/shirou/gopsutil/v3/process"
)

const maxBodyBytes = 1 << 20

var errBadRequest = errors.New("bad request")

// PlayerLister lists stored players. *storage.Store satisfies it.
type PlayerLister interface {
	ListPlayers(ctx context.Context) ([]storage.PlayerInfo, error)
}

type Server struct {
	hub            *hub.Hub
	players        PlayerLister
	broadcaster    *Broadcaster
	allowedOrigins map[string]bool
	allowedHosts   map[string]bool
	authToken      string
	started        time.Time
	proc           *process.Process
}

func NewServer(h *hub.Hub, players PlayerLister, broadcaster *Broadcaster, allowedOrigins []string, authToken string) *Server {
	s := &Server{
		hub:            h,
		players:        players,
		broadcaster:    broadcaster,
		allowedOrigins: make(map[string]bool),
		allowedHosts:   make(map[string]bool),
		authToken:      authToken,
		started:        time.Now(),
	}

	for _, origin := range allowedOrigins {
		trimmed := strings.TrimSpace(origin)
		if trimmed == "" {
			continue
		}
		s.allowedOrigins[trimmed] = true
		if parsed, err := url.Parse(trimmed); err == nil && parsed.Host != "" {
			s.allowedHosts[parsed.Host] = true
		}
	}

	if proc, err := process.NewProcess(int32(os.Getpid())); err == nil {
		s.proc = proc
	} else {
		logger.Warning("process metrics unavailable", "error", err)
	}
	return s
}

func (s *Server) SetupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/ws", s.handleWS)
	mux.HandleFunc("GET /api/health", s.handleHealth)
	mux.HandleFunc("GET /api/players", s.guard(s.handleListPlayers))

	mux.HandleFunc("GET /api/players/{id}", s.guard(s.handleStatus))
	mux.HandleFunc("GET /api/players/{id}/document", s.guard(s.handleGetDocument))
	mux.HandleFunc("PUT /api/players/{id}/document", s.guard(s.handlePutDocument))

	mux.HandleFunc("POST /api/players/{id}/answer", s.guard(s.handleAnswer))
	mux.HandleFunc("POST /api/players/{id}/checkin", s.guard(s.handleCheckIn))
	mux.HandleFunc("POST /api/players/{id}/collect", s.guard(s.handleCollect))
	mux.HandleFunc("POST /api/players/{id}/zones", s.guard(s.handleEnterZone))
	mux.HandleFunc("POST /api/players/{id}/equip", s.guard(s.handleEquip))
	mux.HandleFunc("POST /api/players/{id}/unequip", s.guard(s.handleUnequip))
	mux.HandleFunc("POST /api/players/{id}/penalty", s.guard(s.handlePenalty))
	mux.HandleFunc("POST /api/players/{id}/treasures/{tid}/discover", s.guard(s.handleDiscover))
	mux.HandleFunc("POST /api/players/{id}/concepts/{cid}", s.guard(s.handleConcept))
}

// guard rejects requests without the server token.
func (s *Server) guard(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.authorize(r) {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	if !s.authorize(r) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	// Subscribing to a single player requires an existing player and its key.
	player := r.URL.Query().Get("player")
	if player != "" {
		key := playerKey(r)
		if key == "" {
			key = r.URL.Query().Get("key")
		}
		if err := s.hub.Verify(r.Context(), player, key); err != nil {
			writeError(w, err)
			return
		}
	}

	upgrader := websocket.Upgrader{
		CheckOrigin: s.checkOrigin,
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warning("ws upgrade error", "error", err)
		return
	}

	logger.Info("WebSocket client connected", "remote", r.RemoteAddr, "player", player)
	c := s.broadcaster.AddClient(conn, player)

	go func() {
		defer func() {
			s.broadcaster.RemoveClient(c)
			logger.Info("WebSocket client disconnected", "remote", r.RemoteAddr)
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

// HealthResponse is the body of GET /api/health.
type HealthResponse struct {
	Status        string  `json:"status"`
	UptimeSeconds float64 `json:"uptimeSeconds"`
	Sessions      int     `json:"sessions"`
	Clients       int     `json:"clients"`
	RSSBytes      uint64  `json:"rssBytes,omitempty"`
	CPUPercent    float64 `json:"cpuPercent,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{
		Status:        "ok",
		UptimeSeconds: time.Since(s.started).Seconds(),
		Sessions:      s.hub.Len(),
		Clients:       s.broadcaster.ClientCount(),
	}
	if s.proc != nil {
		if mem, err := s.proc.MemoryInfoWithContext(r.Context()); err == nil {
			resp.RSSBytes = mem.RSS
		}
		if cpu, err := s.proc.CPUPercentWithContext(r.Context()); err == nil {
			resp.CPUPercent = cpu
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleListPlayers(w http.ResponseWriter, r *http.Request) {
	players, err := s.players.ListPlayers(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	if players == nil {
		players = []storage.PlayerInfo{}
	}
	writeJSON(w, http.StatusOK, players)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	var st progression.Status
	err := s.hub.View(r.Context(), r.PathValue("id"), playerKey(r), func(sess *progression.Session) {
		st = sess.Status()
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	doc, err := s.hub.Document(r.Context(), r.PathValue("id"), playerKey(r))
	if err != nil {
		writeError(w, err)
		return
	}
	data, err := save.Encode(doc)
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(data)
}

func (s *Server) handlePutDocument(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, fmt.Errorf("%w: %v", errBadRequest, err))
		return
	}
	doc, err := save.Decode(data)
	if err != nil {
		writeError(w, fmt.Errorf("%w: %v", errBadRequest, err))
		return
	}
	if err := s.hub.PutDocument(r.Context(), r.PathValue("id"), playerKey(r), doc); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleAnswer(w http.ResponseWriter, r *http.Request) {
	var in progression.AnswerInput
	if !decodeBody(w, r, &in) {
		return
	}
	if in.Difficulty < progression.MinDifficulty || in.Difficulty > progression.MaxDifficulty {
		writeError(w, fmt.Errorf("%w: difficulty %d outside %d..%d", errBadRequest,
			in.Difficulty, progression.MinDifficulty, progression.MaxDifficulty))
		return
	}
	var out progression.AnswerOutcome
	s.do(w, r, &out, func(sess *progression.Session) (progression.Effects, error) {
		out = sess.SubmitAnswer(in)
		return out.Effects, nil
	})
}

func (s *Server) handleCheckIn(w http.ResponseWriter, r *http.Request) {
	var out progression.CheckInOutcome
	ok := s.do(w, r, &out, func(sess *progression.Session) (progression.Effects, error) {
		out = sess.CheckIn()
		return out.Effects, nil
	})
	if ok && out.Success {
		s.broadcaster.CheckIn(r.PathValue("id"), out.CheckInResult)
	}
}

type collectRequest struct {
	ItemID   string `json:"itemId"`
	Quantity int    `json:"quantity"`
}

func (s *Server) handleCollect(w http.ResponseWriter, r *http.Request) {
	req := collectRequest{Quantity: 1}
	if !decodeBody(w, r, &req) {
		return
	}
	var out progression.CollectOutcome
	s.do(w, r, &out, func(sess *progression.Session) (progression.Effects, error) {
		var err error
		out, err = sess.CollectItem(req.ItemID, req.Quantity)
		return out.Effects, err
	})
}

type zoneRequest struct {
	ZoneID string `json:"zoneId"`
}

func (s *Server) handleEnterZone(w http.ResponseWriter, r *http.Request) {
	var req zoneRequest
	if !decodeBody(w, r, &req) {
		return
	}
	var out progression.ZoneOutcome
	s.do(w, r, &out, func(sess *progression.Session) (progression.Effects, error) {
		var err error
		out, err = sess.EnterZone(req.ZoneID)
		return out.Effects, err
	})
}

type equipRequest struct {
	ItemID string `json:"itemId"`
}

func (s *Server) handleEquip(w http.ResponseWriter, r *http.Request) {
	var req equipRequest
	if !decodeBody(w, r, &req) {
		return
	}
	var out progression.EquipOutcome
	s.do(w, r, &out, func(sess *progression.Session) (progression.Effects, error) {
		var err error
		out, err = sess.Equip(req.ItemID)
		return progression.Effects{}, err
	})
}

type unequipRequest struct {
	Slot progression.Slot `json:"slot"`
}

type unequipResponse struct {
	Slot    progression.Slot `json:"slot"`
	Removed string           `json:"removed,omitempty"`
}

func (s *Server) handleUnequip(w http.ResponseWriter, r *http.Request) {
	var req unequipRequest
	if !decodeBody(w, r, &req) {
		return
	}
	out := unequipResponse{Slot: req.Slot}
	s.do(w, r, &out, func(sess *progression.Session) (progression.Effects, error) {
		var err error
		out.Removed, err = sess.Unequip(req.Slot)
		return progression.Effects{}, err
	})
}

type penaltyRequest struct {
	Amount uint64 `json:"amount"`
}

type penaltyResponse struct {
	Removed uint64 `json:"removed"`
	Exp     uint64 `json:"exp"`
}

func (s *Server) handlePenalty(w http.ResponseWriter, r *http.Request) {
	var req penaltyRequest
	if !decodeBody(w, r, &req) {
		return
	}
	var out penaltyResponse
	s.do(w, r, &out, func(sess *progression.Session) (progression.Effects, error) {
		out.Removed = sess.Penalize(req.Amount)
		out.Exp = sess.Player.Exp
		return progression.Effects{}, nil
	})
}

func (s *Server) handleDiscover(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("tid")
	var out progression.DiscoverOutcome
	s.do(w, r, &out, func(sess *progression.Session) (progression.Effects, error) {
		var err error
		out, err = sess.Discover(id)
		return out.Effects, err
	})
}

type conceptRequest struct {
	Delta float64 `json:"delta"`
}

func (s *Server) handleConcept(w http.ResponseWriter, r *http.Request) {
	var req conceptRequest
	if !decodeBody(w, r, &req) {
		return
	}
	id := r.PathValue("cid")
	var out progression.ConceptOutcome
	s.do(w, r, &out, func(sess *progression.Session) (progression.Effects, error) {
		var err error
		out, err = sess.UpdateConcept(id, req.Delta)
		return out.Effects, err
	})
}

// do runs fn through the hub and writes result as JSON. It reports whether
// the operation succeeded.
func (s *Server) do(w http.ResponseWriter, r *http.Request, result any, fn func(*progression.Session) (progression.Effects, error)) bool {
	if err := s.hub.Do(r.Context(), r.PathValue("id"), playerKey(r), fn); err != nil {
		writeError(w, err)
		return false
	}
	writeJSON(w, http.StatusOK, result)
	return true
}

func playerKey(r *http.Request) string {
	return r.Header.Get(save.PlayerKeyHeader)
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, fmt.Errorf("%w: %v", errBadRequest, err))
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		logger.Error("request failed", "error", err)
	}
	writeJSON(w, status, ErrorPayload{Error: err.Error()})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, storage.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, storage.ErrNotFound),
		errors.Is(err, progression.ErrUnknownGoal),
		errors.Is(err, progression.ErrUnknownItem),
		errors.Is(err, progression.ErrUnknownZone),
		errors.Is(err, progression.ErrUnknownConcept):
		return http.StatusNotFound
	case errors.Is(err, progression.ErrZoneLocked),
		errors.Is(err, progression.ErrNotOwned),
		errors.Is(err, progression.ErrInsufficientQuantity):
		return http.StatusConflict
	case errors.Is(err, errBadRequest),
		errors.Is(err, progression.ErrUnknownSlot),
		errors.Is(err, progression.ErrInvalidItem),
		errors.Is(err, progression.ErrInvalidQuantity):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) authorize(r *http.Request) bool {
	if s.authToken == "" {
		return true
	}

	if r.URL.Query().Get("token") == s.authToken {
		return true
	}

	if r.Header.Get("X-Mathrealm-Token") == s.authToken {
		return true
	}

	auth := r.Header.Get("Authorization")
	if strings.HasPrefix(auth, "Bearer ") && strings.TrimPrefix(auth, "Bearer ") == s.authToken {
		return true
	}

	return false
}

func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}

	if len(s.allowedOrigins) > 0 {
		if s.allowedOrigins[origin] {
			return true
		}
		if parsed, err := url.Parse(origin); err == nil && parsed.Host != "" {
			return s.allowedHosts[parsed.Host]
		}
		return false
	}

	parsed, err := url.Parse(origin)
	if err != nil || parsed.Host == "" {
		return false
	}
	host := parsed.Host
	if host == r.Host {
		return true
	}
	switch parsed.Hostname() {
	case "localhost", "127.0.0.1", "::1":
		return true
	}
	return false
}

func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("X-XSS-Protection", "1; mode=block")
		h.Set("Content-Security-Policy", "default-src 'self'")
		next.ServeHTTP(w, r)
	})
}

// ListenAndServe serves handler until ctx is cancelled, then shuts down
// gracefully.
func ListenAndServe(ctx context.Context, host string, port int, handler http.Handler) error {
	addr := fmt.Sprintf("%s:%d", host, port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           securityHeaders(handler),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Server listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return nil
	}
}
