// Package hub tracks every connected client and its outbound frame queue.
// It is the server's connection set: a uid is in the hub exactly as long as
// its connection is live.
package hub

import (
	"sync"

	"github.com/tylerwon/go-chat-rooms/internal/logging"
	"github.com/tylerwon/go-chat-rooms/internal/metrics"
)

type BackpressurePolicy int

const (
	PolicyDrop BackpressurePolicy = iota
	PolicyKick
)

// Client is one connection's outbound side. Frames queued on Out are encoded
// wire frames; the connection's writer goroutine drains them. Closed signals
// the writer to exit.
type Client struct {
	UID       uint64
	Out       chan []byte
	Closed    chan struct{}
	closeOnce sync.Once
}

// Close signals the client is closed (idempotent).
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		close(c.Closed)
	})
}

type Hub struct {
	mu         sync.RWMutex
	clients    map[uint64]*Client
	OutBufSize int
	Policy     BackpressurePolicy
}

// New creates a Hub with default settings.
func New() *Hub { return &Hub{clients: make(map[uint64]*Client)} }

// Add registers a client with the hub.
func (h *Hub) Add(c *Client) {
	h.mu.Lock()
	prev := len(h.clients)
	h.clients[c.UID] = c
	cur := len(h.clients)
	h.mu.Unlock()
	metrics.SetHubClients(cur)
	if prev == 0 && cur == 1 {
		logging.L().Info("clients_first_connected")
	}
}

// Remove unregisters a client and updates metrics; safe to call multiple times.
func (h *Hub) Remove(c *Client) {
	h.mu.Lock()
	cur, existed := h.clients[c.UID]
	if existed && cur == c {
		delete(h.clients, c.UID)
	}
	n := len(h.clients)
	h.mu.Unlock()
	select {
	case <-c.Closed:
	default:
		c.Close()
	}
	metrics.SetHubClients(n)
	if existed && n == 0 {
		logging.L().Info("clients_last_disconnected")
	}
}

// Get returns the client for uid, if connected.
func (h *Hub) Get(uid uint64) (*Client, bool) {
	h.mu.RLock()
	c, ok := h.clients[uid]
	h.mu.RUnlock()
	return c, ok
}

// Send queues one encoded frame for a single client honoring the
// backpressure policy. Returns false when the frame was dropped (or the
// client kicked) because its queue was full.
func (h *Hub) Send(c *Client, fr []byte) bool {
	select {
	case c.Out <- fr:
		return true
	default:
		if h.Policy == PolicyKick {
			metrics.IncHubKick()
			c.Close() // signal writer to exit; server cleans up on disconnect
		} else {
			metrics.IncHubDrop()
		}
		return false
	}
}

// Broadcast queues one encoded frame for every listed uid. Uids with no live
// client are skipped; membership cleanup is the dispatcher's job.
func (h *Hub) Broadcast(uids []uint64, fr []byte) int {
	metrics.SetBroadcastFanout(len(uids))
	sent := 0
	for _, uid := range uids {
		c, ok := h.Get(uid)
		if !ok {
			continue
		}
		if h.Send(c, fr) {
			sent++
		}
	}
	return sent
}

// Count returns the number of active clients.
func (h *Hub) Count() int { h.mu.RLock(); n := len(h.clients); h.mu.RUnlock(); return n }
