package gateway

import (
	"encoding/json"
	"log"
	"strings"
	"sync"
	"time"

	"tradesim-engine/internal/model"

	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 30 * time.Second
	readLimit  = 4096
)

// SubscribeMsg is sent by clients to start receiving a candle channel.
// Since is the last channel_seq the client saw; when set the hub replays
// missed envelopes instead of sending a snapshot.
type SubscribeMsg struct {
	Type      string `json:"type"`
	ReqID     string `json:"req_id,omitempty"`
	Symbol    string `json:"symbol"`
	Timeframe string `json:"timeframe"`
	Since     int64  `json:"since,omitempty"`
}

// SnapshotMsg is the initial state sent after SUBSCRIBE.
type SnapshotMsg struct {
	Type       string          `json:"type"`
	ReqID      string          `json:"req_id,omitempty"`
	Channel    string          `json:"channel"`
	Symbol     string          `json:"symbol"`
	Timeframe  model.Timeframe `json:"timeframe"`
	Candles    []model.Candle  `json:"candles"`
	ChannelSeq int64           `json:"channel_seq"`
}

// ErrorMsg reports a protocol error to the client.
type ErrorMsg struct {
	Type  string `json:"type"`
	ReqID string `json:"req_id,omitempty"`
	Error string `json:"error"`
}

// Client represents a single WebSocket peer.
type Client struct {
	conn *websocket.Conn
	send chan []byte
	hub  *Hub

	subMu sync.RWMutex
	subs  map[string]bool // channel names
}

func newClient(h *Hub, conn *websocket.Conn) *Client {
	return &Client{
		conn: conn,
		send: make(chan []byte, clientSendBuffer),
		hub:  h,
		subs: make(map[string]bool),
	}
}

// subscribed reports whether the client wants channel.
func (c *Client) subscribed(channel string) bool {
	c.subMu.RLock()
	defer c.subMu.RUnlock()
	return c.subs[channel]
}

// sendJSON queues v without blocking; a full queue drops the message.
func (c *Client) sendJSON(v interface{}) {
	b, err := json.Marshal(v)
	if err != nil {
		return
	}
	c.queue(b)
}

func (c *Client) sendError(reqID, msg string) {
	c.sendJSON(ErrorMsg{Type: "error", ReqID: reqID, Error: msg})
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			// Write coalescing: batch queued messages into one frame,
			// newline separated
			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(msg)

			n := len(c.send)
			for i := 0; i < n; i++ {
				next, ok := <-c.send
				if !ok {
					break
				}
				w.Write([]byte{'\n'})
				w.Write(next)
			}

			if err := w.Close(); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) readPump() {
	defer func() {
		c.hub.RemoveClient(c)
		c.conn.Close()
		log.Println("[gateway] ws client disconnected")
	}()

	c.conn.SetReadLimit(readLimit)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, msg, err := c.conn.ReadMessage()
		if err != nil {
			break
		}

		var base struct {
			Type string `json:"type"`
			Ping int64  `json:"ping"`
		}
		if json.Unmarshal(msg, &base) != nil {
			c.sendError("", "invalid JSON")
			continue
		}

		switch strings.ToUpper(base.Type) {
		case "SUBSCRIBE":
			var sub SubscribeMsg
			if err := json.Unmarshal(msg, &sub); err != nil {
				c.sendError("", "invalid SUBSCRIBE: "+err.Error())
				continue
			}
			c.handleSubscribe(sub)

		case "UNSUBSCRIBE":
			var sub SubscribeMsg
			if err := json.Unmarshal(msg, &sub); err != nil {
				continue
			}
			c.handleUnsubscribe(sub)

		default:
			if base.Ping > 0 {
				c.sendJSON(map[string]interface{}{
					"type":      "pong",
					"ping":      base.Ping,
					"server_ts": time.Now().UnixMilli(),
				})
				continue
			}
			c.sendError("", "unknown message type: "+base.Type)
		}
	}
}

func subscriptionChannel(msg SubscribeMsg) (string, string, model.Timeframe) {
	symbol := strings.ToUpper(strings.TrimSpace(msg.Symbol))
	tf := model.ParseTimeframe(msg.Timeframe)
	return model.CandleChannel(tf, symbol), symbol, tf
}

// handleSubscribe registers the channel, then sends either a replay of the
// envelopes after Since or a fresh snapshot when the gap cannot be filled.
func (c *Client) handleSubscribe(msg SubscribeMsg) {
	if strings.TrimSpace(msg.Symbol) == "" {
		c.sendError(msg.ReqID, "symbol is required")
		return
	}
	channel, symbol, tf := subscriptionChannel(msg)

	c.subMu.Lock()
	c.subs[channel] = true
	c.subMu.Unlock()

	log.Printf("[gateway] client subscribed: channel=%s since=%d", channel, msg.Since)

	if msg.Since > 0 {
		missed, complete := c.hub.ReplaySince(channel, msg.Since)
		if complete {
			for _, env := range missed {
				c.queue(env)
			}
			return
		}
	}

	snap := SnapshotMsg{
		Type:       "snapshot",
		ReqID:      msg.ReqID,
		Channel:    channel,
		Symbol:     symbol,
		Timeframe:  tf,
		Candles:    []model.Candle{},
		ChannelSeq: c.hub.ChannelSeq(channel),
	}
	if c.hub.snapshot != nil {
		if candles := c.hub.snapshot(symbol, tf); candles != nil {
			snap.Candles = candles
		}
	}
	c.sendJSON(snap)
}

func (c *Client) handleUnsubscribe(msg SubscribeMsg) {
	channel, _, _ := subscriptionChannel(msg)
	c.subMu.Lock()
	delete(c.subs, channel)
	c.subMu.Unlock()
}

// queue sends b unless the client has been removed or its queue is full.
func (c *Client) queue(b []byte) {
	c.hub.mu.RLock()
	defer c.hub.mu.RUnlock()
	if !c.hub.clients[c] {
		return
	}
	select {
	case c.send <- b:
	default:
	}
}
