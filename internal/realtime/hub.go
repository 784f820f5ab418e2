// Package realtime fans committed changes out to connected browsers over
// server-sent events.
package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"

	"room-occupancy-backend/internal/event"
	"room-occupancy-backend/internal/metrics"
)

// Message is one encoded event as sent on the wire.
type Message struct {
	Event string
	Data  []byte
}

// Hub keeps the set of connected streams. Slow streams lose messages rather
// than hold up the others.
type Hub struct {
	mu        sync.RWMutex
	clients   map[chan Message]struct{}
	buffer    int
	heartbeat time.Duration
	dropped   atomic.Int64
}

func NewHub(buffer int, heartbeat time.Duration) *Hub {
	if buffer <= 0 {
		buffer = 16
	}
	if heartbeat <= 0 {
		heartbeat = 25 * time.Second
	}
	return &Hub{
		clients:   make(map[chan Message]struct{}),
		buffer:    buffer,
		heartbeat: heartbeat,
	}
}

// Subscribe registers a stream. The returned func unregisters it.
func (h *Hub) Subscribe() (<-chan Message, func()) {
	ch := make(chan Message, h.buffer)
	h.mu.Lock()
	h.clients[ch] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.clients, ch)
			h.mu.Unlock()
		})
	}
}

// Clients returns the number of connected streams.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Dropped returns how many messages were skipped for slow streams.
func (h *Hub) Dropped() int64 {
	return h.dropped.Load()
}

// Broadcast offers msg to every stream without blocking.
func (h *Hub) Broadcast(msg Message) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for ch := range h.clients {
		select {
		case ch <- msg:
		default:
			h.dropped.Add(1)
			metrics.TrackNotifierFailure("sse_client")
		}
	}
}

// Handle encodes the event payload and broadcasts it under the event's type.
func (h *Hub) Handle(_ context.Context, ev event.Event) error {
	data, err := json.Marshal(ev.Payload)
	if err != nil {
		return fmt.Errorf("encode %s payload: %w", ev.Type, err)
	}
	h.Broadcast(Message{Event: string(ev.Type), Data: data})
	return nil
}

// Stream serves GET /api/events.
func (h *Hub) Stream(c *gin.Context) {
	messages, unsubscribe := h.Subscribe()
	defer unsubscribe()

	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	log.Printf("Event stream opened (%d connected)", h.Clients())
	c.SSEvent("connected", "ok")
	c.Writer.Flush()

	c.Stream(func(w io.Writer) bool {
		select {
		case msg := <-messages:
			c.SSEvent(msg.Event, string(msg.Data))
			return true
		case <-ticker.C:
			c.SSEvent("heartbeat", time.Now().UTC().Format(time.RFC3339))
			return true
		case <-c.Request.Context().Done():
			return false
		}
	})
	log.Printf("Event stream closed")
}
