package gateway

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"tradesim-engine/internal/metrics"
	"tradesim-engine/internal/model"
	"tradesim-engine/internal/store/redis"
)

const (
	defaultReplaySize = 500 // envelopes kept per channel
	clientSendBuffer  = 256
)

// SnapshotFunc returns the candles a newly subscribed client starts from.
type SnapshotFunc func(symbol string, tf model.Timeframe) []model.Candle

// Hub manages WebSocket clients and fans live candles out to them.
// It implements model.CandlePublisher so the ticker can feed it directly;
// with Redis enabled it is fed by a redis.Subscriber instead.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]bool
	latest  map[string]latestEntry
	seq     int64

	// Per-channel monotonic sequence numbers for gap detection
	channelSeqs map[string]int64

	// Per-channel replay buffers for reconnect backfill
	replayBufs map[string]*ReplayBuffer

	snapshot SnapshotFunc
	m        *metrics.Metrics
}

type latestEntry struct {
	Data json.RawMessage
	TS   time.Time
	Seq  int64
}

var _ model.CandlePublisher = (*Hub)(nil)

// NewHub creates a Hub. snapshot and m may be nil.
func NewHub(snapshot SnapshotFunc, m *metrics.Metrics) *Hub {
	return &Hub{
		clients:     make(map[*Client]bool),
		latest:      make(map[string]latestEntry),
		channelSeqs: make(map[string]int64),
		replayBufs:  make(map[string]*ReplayBuffer),
		snapshot:    snapshot,
		m:           m,
	}
}

// Publish broadcasts c to subscribed clients. Never blocks on slow clients.
func (h *Hub) Publish(_ context.Context, c model.StreamCandle) error {
	h.Broadcast(c.Channel(), c.JSON())
	return nil
}

// RunSubscriber feeds the hub from Redis PubSub. Blocks until ctx is cancelled.
func (h *Hub) RunSubscriber(ctx context.Context, sub *redis.Subscriber) error {
	return sub.Run(ctx, func(c model.StreamCandle) {
		h.Broadcast(c.Channel(), c.JSON())
	})
}

// register adds a connected client.
func (h *Hub) register(c *Client) {
	h.mu.Lock()
	h.clients[c] = true
	count := len(h.clients)
	h.mu.Unlock()

	if h.m != nil {
		h.m.WSClients.Set(float64(count))
	}
	log.Printf("[gateway] ws client connected (%d total)", count)
}

// RemoveClient removes a client from the hub and closes its send queue.
func (h *Hub) RemoveClient(c *Client) {
	h.mu.Lock()
	if !h.clients[c] {
		h.mu.Unlock()
		return
	}
	delete(h.clients, c)
	count := len(h.clients)
	close(c.send)
	h.mu.Unlock()

	if h.m != nil {
		h.m.WSClients.Set(float64(count))
	}
}

// ClientCount returns the number of connected WS clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Latest returns the last payload broadcast on channel.
func (h *Hub) Latest(channel string) (json.RawMessage, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	e, ok := h.latest[channel]
	return e.Data, ok
}

// ChannelSeq returns the current sequence number for a channel.
func (h *Hub) ChannelSeq(channel string) int64 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.channelSeqs[channel]
}

// ReplaySince returns buffered envelopes on channel after seq.
// See ReplayBuffer.Since for the meaning of complete.
func (h *Hub) ReplaySince(channel string, seq int64) ([][]byte, bool) {
	h.mu.RLock()
	rb, ok := h.replayBufs[channel]
	h.mu.RUnlock()
	if !ok {
		return nil, seq == 0
	}
	return rb.Since(seq)
}

// Close disconnects every client.
func (h *Hub) Close() error {
	h.mu.Lock()
	clients := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	for _, c := range clients {
		h.RemoveClient(c)
	}
	return nil
}
