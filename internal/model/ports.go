package model

import (
	"context"
	"time"
)

// ── Port interfaces ──
// These decouple the engine service from concrete storage (Redis, SQLite).

// CandlePublisher publishes live candles for fan-out to stream subscribers.
type CandlePublisher interface {
	// Publish sends a single stream candle. Implementations must not block
	// the caller for longer than their own write timeout.
	Publish(ctx context.Context, c StreamCandle) error

	// Close releases underlying resources.
	Close() error
}

// JournalEntry is a persisted record of one coaching verdict.
type JournalEntry struct {
	ID        string    `json:"id"`
	Symbol    string    `json:"symbol"`
	Side      Side      `json:"side"`
	FreeMode  bool      `json:"free_mode"`
	Action    Action    `json:"action"`
	Tag       Tag       `json:"tag"`
	ScoreBias int       `json:"score_bias"`
	Price     float64   `json:"price"`
	RSI       *float64  `json:"rsi"`
	CreatedAt time.Time `json:"created_at"`
}

// CoachingJournal records issued coaching signals.
type CoachingJournal interface {
	// Record queues an entry for persistence. Never blocks on I/O.
	Record(e JournalEntry)

	// Recent returns up to limit entries, newest first. Empty symbol matches all.
	Recent(ctx context.Context, symbol string, limit int) ([]JournalEntry, error)

	// Purge deletes entries created before cutoff and returns the count removed.
	Purge(ctx context.Context, before time.Time) (int64, error)

	// Close flushes pending entries and releases resources.
	Close() error
}
