package ws

import (
	"encoding/json"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/mathrealm/backend/internal/logger"
	"github.com/mathrealm/backend/internal/progression"
)

type client struct {
	conn *websocket.Conn
	send chan []byte
	// player limits delivery to one player's events. Empty receives all.
	player string
}

func newClient(conn *websocket.Conn, player string) *client {
	c := &client{
		conn:   conn,
		send:   make(chan []byte, 64),
		player: player,
	}
	go c.writePump()
	return c
}

func (c *client) writePump() {
	defer c.conn.Close()
	for msg := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			return
		}
	}
}

func (c *client) close() {
	close(c.send)
}

// Broadcaster fans progression events out to connected websocket clients.
type Broadcaster struct {
	mu      sync.RWMutex
	clients map[*client]bool
}

func NewBroadcaster() *Broadcaster {
	return &Broadcaster{clients: make(map[*client]bool)}
}

// AddClient registers conn. When player is non-empty the client only
// receives that player's events.
func (b *Broadcaster) AddClient(conn *websocket.Conn, player string) *client {
	c := newClient(conn, player)
	b.mu.Lock()
	b.clients[c] = true
	b.mu.Unlock()
	return c
}

func (b *Broadcaster) RemoveClient(c *client) {
	b.mu.Lock()
	if _, ok := b.clients[c]; ok {
		delete(b.clients, c)
		c.close()
	}
	b.mu.Unlock()
}

// GoalCompleted matches hub.CompletedCallback.
func (b *Broadcaster) GoalCompleted(playerID string, c progression.GoalCompleted) {
	b.broadcast(playerID, WSMessage{
		Type: MsgGoalCompleted,
		Payload: GoalCompletedPayload{
			PlayerID: playerID,
			Tracker:  c.Tracker,
			GoalID:   c.GoalID,
			Name:     c.Name,
			Reward:   c.Reward,
		},
	})
}

// RealmUp matches hub.RealmUpCallback.
func (b *Broadcaster) RealmUp(playerID string, lu progression.LevelUp) {
	b.broadcast(playerID, WSMessage{
		Type: MsgRealmUp,
		Payload: RealmUpPayload{
			PlayerID: playerID,
			From:     lu.From,
			To:       lu.To,
			Crossed:  lu.Crossed,
		},
	})
}

func (b *Broadcaster) CheckIn(playerID string, res progression.CheckInResult) {
	b.broadcast(playerID, WSMessage{
		Type: MsgCheckIn,
		Payload: CheckInPayload{
			PlayerID:        playerID,
			ConsecutiveDays: res.ConsecutiveDays,
			Reward:          res.Reward,
		},
	})
}

func (b *Broadcaster) broadcast(playerID string, msg WSMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		logger.Error("broadcast marshal error", "error", err)
		return
	}

	b.mu.RLock()
	clients := make([]*client, 0, len(b.clients))
	for c := range b.clients {
		if c.player == "" || c.player == playerID {
			clients = append(clients, c)
		}
	}
	b.mu.RUnlock()

	for _, c := range clients {
		select {
		case c.send <- data:
		default:
			logger.Warning("ws client too slow, disconnecting", "remote", c.conn.RemoteAddr().String())
			b.RemoveClient(c)
		}
	}
}

func (b *Broadcaster) ClientCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.clients)
}
