package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"tradesim-engine/internal/metrics"
	"tradesim-engine/internal/model"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
)

const (
	defaultBatchSize  = 100
	defaultFlushDelay = 200 * time.Millisecond
	defaultQueueSize  = 1024
	defaultRecent     = 50
	maxRecent         = 500
)

// Config configures the journal.
type Config struct {
	DBPath string // path to SQLite database file, or ":memory:"
}

// Journal persists coaching verdicts. A single goroutine owns all writes
// and commits them in batched transactions; reads go through sqlx.
type Journal struct {
	db *sqlx.DB
	m  *metrics.Metrics

	mu     sync.RWMutex
	closed bool
	ch     chan model.JournalEntry
	done   chan struct{}

	now func() time.Time
}

var _ model.CoachingJournal = (*Journal)(nil)

// Open opens (or creates) the database, applies the schema and starts the
// writer goroutine. m may be nil.
func Open(cfg Config, m *metrics.Metrics) (*Journal, error) {
	if cfg.DBPath != ":memory:" {
		if dir := filepath.Dir(cfg.DBPath); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("sqlite dir: %w", err)
			}
		}
	}

	db, err := sqlx.Open("sqlite3", cfg.DBPath+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("sqlite open: %w", err)
	}

	// Single connection: one writer, and ":memory:" stays one database.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite schema: %w", err)
	}

	j := &Journal{
		db:   db,
		m:    m,
		ch:   make(chan model.JournalEntry, defaultQueueSize),
		done: make(chan struct{}),
		now:  time.Now,
	}
	go j.run()

	log.Printf("[sqlite] opened coaching journal at %s", cfg.DBPath)
	return j, nil
}

func createSchema(db *sqlx.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS coaching_journal (
			id          TEXT    PRIMARY KEY,
			symbol      TEXT    NOT NULL,
			side        TEXT    NOT NULL,
			free_mode   INTEGER NOT NULL,
			action      TEXT    NOT NULL,
			tag         TEXT    NOT NULL,
			score_bias  INTEGER NOT NULL,
			price       REAL    NOT NULL,
			rsi         REAL,
			created_at  INTEGER NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_coaching_journal_symbol_ts
			ON coaching_journal (symbol, created_at);
	`)
	return err
}

// DB returns the underlying sql.DB for health checks.
func (j *Journal) DB() *sql.DB { return j.db.DB }

// Record queues e for the writer. Missing IDs and timestamps are filled in.
// When the queue is full the entry is dropped and counted.
func (j *Journal) Record(e model.JournalEntry) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = j.now()
	}

	j.mu.RLock()
	defer j.mu.RUnlock()
	if j.closed {
		return
	}
	select {
	case j.ch <- e:
	default:
		if j.m != nil {
			j.m.JournalDrops.Inc()
		}
		log.Printf("[sqlite] journal queue full, dropping entry for %s", e.Symbol)
	}
}

// run drains the queue in batches. Flushes every defaultBatchSize entries
// OR every defaultFlushDelay, whichever first, and once more on Close.
func (j *Journal) run() {
	defer close(j.done)

	batch := make([]model.JournalEntry, 0, defaultBatchSize)
	timer := time.NewTimer(defaultFlushDelay)
	defer timer.Stop()

	flush := func() {
		if len(batch) == 0 {
			return
		}
		start := time.Now()
		if err := j.insertBatch(batch); err != nil {
			log.Printf("[sqlite] journal batch insert error: %v", err)
		} else if j.m != nil {
			j.m.JournalWrites.Add(float64(len(batch)))
			j.m.JournalCommitDur.Observe(time.Since(start).Seconds())
		}
		batch = batch[:0]
	}

	for {
		select {
		case e, ok := <-j.ch:
			if !ok {
				flush()
				return
			}
			batch = append(batch, e)
			if len(batch) >= defaultBatchSize {
				flush()
				timer.Reset(defaultFlushDelay)
			}

		case <-timer.C:
			flush()
			timer.Reset(defaultFlushDelay)
		}
	}
}

// journalRow is the storage shape of a JournalEntry.
type journalRow struct {
	ID        string          `db:"id"`
	Symbol    string          `db:"symbol"`
	Side      string          `db:"side"`
	FreeMode  bool            `db:"free_mode"`
	Action    string          `db:"action"`
	Tag       string          `db:"tag"`
	ScoreBias int             `db:"score_bias"`
	Price     float64         `db:"price"`
	RSI       sql.NullFloat64 `db:"rsi"`
	CreatedAt int64           `db:"created_at"` // unix millis
}

func toRow(e model.JournalEntry) journalRow {
	r := journalRow{
		ID:        e.ID,
		Symbol:    e.Symbol,
		Side:      string(e.Side),
		FreeMode:  e.FreeMode,
		Action:    string(e.Action),
		Tag:       string(e.Tag),
		ScoreBias: e.ScoreBias,
		Price:     e.Price,
		CreatedAt: e.CreatedAt.UnixMilli(),
	}
	if e.RSI != nil {
		r.RSI = sql.NullFloat64{Float64: *e.RSI, Valid: true}
	}
	return r
}

func (r journalRow) entry() model.JournalEntry {
	e := model.JournalEntry{
		ID:        r.ID,
		Symbol:    r.Symbol,
		Side:      model.Side(r.Side),
		FreeMode:  r.FreeMode,
		Action:    model.Action(r.Action),
		Tag:       model.Tag(r.Tag),
		ScoreBias: r.ScoreBias,
		Price:     r.Price,
		CreatedAt: time.UnixMilli(r.CreatedAt).UTC(),
	}
	if r.RSI.Valid {
		e.RSI = model.Ptr(r.RSI.Float64)
	}
	return e
}

// insertBatch inserts a batch of entries in a single transaction.
func (j *Journal) insertBatch(entries []model.JournalEntry) error {
	tx, err := j.db.Beginx()
	if err != nil {
		return err
	}

	stmt, err := tx.PrepareNamed(`
		INSERT OR REPLACE INTO coaching_journal
			(id, symbol, side, free_mode, action, tag, score_bias, price, rsi, created_at)
		VALUES
			(:id, :symbol, :side, :free_mode, :action, :tag, :score_bias, :price, :rsi, :created_at)
	`)
	if err != nil {
		tx.Rollback()
		return err
	}
	defer stmt.Close()

	for _, e := range entries {
		if _, err := stmt.Exec(toRow(e)); err != nil {
			tx.Rollback()
			return err
		}
	}

	return tx.Commit()
}

// Recent returns up to limit entries, newest first. Empty symbol matches all.
// A non-positive limit means the default page size.
func (j *Journal) Recent(ctx context.Context, symbol string, limit int) ([]model.JournalEntry, error) {
	if limit <= 0 {
		limit = defaultRecent
	}
	if limit > maxRecent {
		limit = maxRecent
	}

	var rows []journalRow
	var err error
	if symbol == "" {
		err = j.db.SelectContext(ctx, &rows, `
			SELECT * FROM coaching_journal
			ORDER BY created_at DESC, rowid DESC
			LIMIT ?`, limit)
	} else {
		err = j.db.SelectContext(ctx, &rows, `
			SELECT * FROM coaching_journal
			WHERE symbol = ?
			ORDER BY created_at DESC, rowid DESC
			LIMIT ?`, symbol, limit)
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite query coaching_journal: %w", err)
	}

	out := make([]model.JournalEntry, len(rows))
	for i, r := range rows {
		out[i] = r.entry()
	}
	return out, nil
}

// Purge deletes entries created before cutoff and returns the count removed.
func (j *Journal) Purge(ctx context.Context, before time.Time) (int64, error) {
	res, err := j.db.ExecContext(ctx, `DELETE FROM coaching_journal WHERE created_at < ?`, before.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("sqlite purge coaching_journal: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	if j.m != nil {
		j.m.JournalPruned.Add(float64(n))
	}
	return n, nil
}

// Close stops accepting entries, flushes the queue and closes the database.
func (j *Journal) Close() error {
	j.mu.Lock()
	if j.closed {
		j.mu.Unlock()
		return nil
	}
	j.closed = true
	close(j.ch)
	j.mu.Unlock()

	<-j.done
	return j.db.Close()
}
