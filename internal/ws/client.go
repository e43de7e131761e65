package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/mathrealm/backend/internal/logger"
	"github.com/mathrealm/backend/internal/save"
)

const (
	reconnectBaseDelay = 1 * time.Second
	reconnectMaxDelay  = 30 * time.Second
	writeTimeout       = 10 * time.Second
	pongTimeout        = 60 * time.Second
	pingInterval       = 30 * time.Second
)

// ErrRejected means the server refused the subscription (bad token or key).
// Retrying will not help.
var ErrRejected = errors.New("subscription rejected")

// Event is one decoded broadcast. Exactly one payload field is set.
type Event struct {
	Type          MessageType
	GoalCompleted *GoalCompletedPayload
	RealmUp       *RealmUpPayload
	CheckIn       *CheckInPayload
}

// Client follows a single player's live events on a mathrealm server.
type Client struct {
	url    string
	header http.Header
}

// NewClient builds a client for baseURL (e.g. "http://127.0.0.1:8080").
// token is the optional server auth token.
func NewClient(baseURL, playerID, playerKey, token string) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("server url: %w", err)
	}
	switch u.Scheme {
	case "http", "ws":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return nil, fmt.Errorf("server url: unsupported scheme %q", u.Scheme)
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/ws"
	u.RawQuery = url.Values{"player": {playerID}}.Encode()

	header := http.Header{}
	header.Set(save.PlayerKeyHeader, playerKey)
	if token != "" {
		header.Set("Authorization", "Bearer "+token)
	}
	return &Client{url: u.String(), header: header}, nil
}

// Listen delivers events to fn until ctx is done, reconnecting with
// exponential backoff when the connection drops. It returns nil on
// cancellation and ErrRejected when the server refuses the credentials.
func (c *Client) Listen(ctx context.Context, fn func(Event)) error {
	delay := reconnectBaseDelay
	for {
		conn, resp, err := websocket.DefaultDialer.DialContext(ctx, c.url, c.header)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if resp != nil && (resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden) {
				return fmt.Errorf("%w: %s", ErrRejected, resp.Status)
			}
			logger.Warning("ws dial failed", "error", err, "retry", delay)
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(delay):
			}
			delay = min(delay*2, reconnectMaxDelay)
			continue
		}

		delay = reconnectBaseDelay
		err = c.read(ctx, conn, fn)
		if ctx.Err() != nil {
			return nil
		}
		logger.Warning("ws disconnected", "error", err)
	}
}

func (c *Client) read(ctx context.Context, conn *websocket.Conn, fn func(Event)) error {
	done := make(chan struct{})
	defer close(done)
	go pingLoop(ctx, done, conn)

	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongTimeout))
	})
	conn.SetReadDeadline(time.Now().Add(pongTimeout))

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		ev, err := decodeEvent(data)
		if err != nil {
			logger.Debug("ws message skipped", "error", err)
			continue
		}
		fn(ev)
	}
}

// pingLoop keeps conn alive and closes it once ctx or done fires, which
// unblocks the reader.
func pingLoop(ctx context.Context, done <-chan struct{}, conn *websocket.Conn) {
	defer conn.Close()
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-done:
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout)); err != nil {
				return
			}
		}
	}
}

func decodeEvent(data []byte) (Event, error) {
	var msg struct {
		Type    MessageType     `json:"type"`
		Payload json.RawMessage `json:"payload"`
	}
	if err := json.Unmarshal(data, &msg); err != nil {
		return Event{}, err
	}

	ev := Event{Type: msg.Type}
	var target any
	switch msg.Type {
	case MsgGoalCompleted:
		ev.GoalCompleted = &GoalCompletedPayload{}
		target = ev.GoalCompleted
	case MsgRealmUp:
		ev.RealmUp = &RealmUpPayload{}
		target = ev.RealmUp
	case MsgCheckIn:
		ev.CheckIn = &CheckInPayload{}
		target = ev.CheckIn
	default:
		return Event{}, fmt.Errorf("unknown message type %q", msg.Type)
	}
	if err := json.Unmarshal(msg.Payload, target); err != nil {
		return Event{}, fmt.Errorf("%s payload: %w", msg.Type, err)
	}
	return ev, nil
}
