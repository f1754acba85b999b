package redis

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"tradesim-engine/internal/metrics"
	"tradesim-engine/internal/model"

	goredis "github.com/go-redis/redis/v8"
)

const (
	// Stream trimming: a few hours of 1m candles per symbol.
	streamMaxLen     = 5000
	defaultLatestTTL = 30 * time.Minute
	defaultTimeout   = 2 * time.Second
	defaultMaxBuffer = 1000
)

// Options configures the Redis connection.
type Options struct {
	Addr     string // Redis address, e.g. "localhost:6379"
	Password string
	DB       int
}

// sendFunc performs the actual Redis writes for one candle.
type sendFunc func(ctx context.Context, c model.StreamCandle, payload []byte) error

// Publisher fans live candles out through Redis:
//   - PUBLISH  pub:candle:{tf}:{symbol}      (live subscribers)
//   - XADD     stream:candle:{tf}:{symbol}   (bounded history)
//   - SET      latest:candle:{tf}:{symbol}   (last value, with TTL)
//
// Writes go through a circuit breaker. While it is open candles are kept
// in a bounded buffer (oldest dropped first) and replayed once it closes.
type Publisher struct {
	client  *goredis.Client
	cb      *CircuitBreaker
	send    sendFunc
	m       *metrics.Metrics
	timeout time.Duration

	mu      sync.Mutex
	pending []model.StreamCandle
	maxBuf  int
}

// Connect dials Redis and pings it.
func Connect(ctx context.Context, opts Options) (*goredis.Client, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	log.Printf("[redis] connected to %s", opts.Addr)
	return client, nil
}

// NewPublisher creates a Publisher on an existing client. m may be nil.
func NewPublisher(client *goredis.Client, m *metrics.Metrics) *Publisher {
	p := newPublisher(nil, NewCircuitBreaker(5, 10*time.Second), m)
	p.client = client
	p.send = p.pipeline
	return p
}

func newPublisher(send sendFunc, cb *CircuitBreaker, m *metrics.Metrics) *Publisher {
	p := &Publisher{
		cb:      cb,
		send:    send,
		m:       m,
		timeout: defaultTimeout,
		maxBuf:  defaultMaxBuffer,
	}
	p.cb.OnStateChange = func(from, to State) {
		log.Printf("[redis] circuit breaker %s -> %s", from, to)
		if p.m != nil {
			p.m.RedisCircuitBreakerState.Set(float64(to))
			if to == StateOpen {
				p.m.RedisCircuitBreakerTrips.Inc()
			}
		}
		if to == StateClosed {
			go p.flush(context.Background())
		}
	}
	return p
}

// Client returns the underlying Redis client for health checks.
func (p *Publisher) Client() *goredis.Client { return p.client }

// Breaker exposes the circuit breaker (state inspection).
func (p *Publisher) Breaker() *CircuitBreaker { return p.cb }

// Publish writes one stream candle. A candle rejected by an open breaker
// is buffered and Publish returns nil.
func (p *Publisher) Publish(ctx context.Context, c model.StreamCandle) error {
	payload := c.JSON()
	err := p.cb.Execute(func() error {
		return p.write(ctx, c, payload)
	})
	if errors.Is(err, ErrCircuitOpen) {
		p.buffer(c)
		return nil
	}
	if err != nil {
		return fmt.Errorf("publish %s: %w", c.Channel(), err)
	}
	return nil
}

func (p *Publisher) write(ctx context.Context, c model.StreamCandle, payload []byte) error {
	start := time.Now()
	wctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	err := p.send(wctx, c, payload)
	if p.m != nil {
		p.m.RedisPublishDur.Observe(time.Since(start).Seconds())
	}
	return err
}

func (p *Publisher) pipeline(ctx context.Context, c model.StreamCandle, payload []byte) error {
	suffix := string(c.Timeframe) + ":" + c.Symbol
	pipe := p.client.Pipeline()
	pipe.Publish(ctx, c.Channel(), payload)
	pipe.XAdd(ctx, &goredis.XAddArgs{
		Stream: "stream:candle:" + suffix,
		MaxLen: streamMaxLen,
		Approx: true,
		Values: map[string]interface{}{"data": payload},
	})
	pipe.Set(ctx, "latest:candle:"+suffix, payload, defaultLatestTTL)
	_, err := pipe.Exec(ctx)
	return err
}

func (p *Publisher) buffer(c model.StreamCandle) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.pending) >= p.maxBuf {
		// Buffer full, drop oldest
		p.pending = p.pending[1:]
	}
	p.pending = append(p.pending, c)
}

// flush replays buffered candles. Candles that fail again are discarded;
// the breaker will buffer anything published after it reopens.
func (p *Publisher) flush(ctx context.Context) {
	p.mu.Lock()
	if len(p.pending) == 0 {
		p.mu.Unlock()
		return
	}
	toFlush := p.pending
	p.pending = nil
	p.mu.Unlock()

	flushed := 0
	for _, c := range toFlush {
		if err := p.write(ctx, c, c.JSON()); err != nil {
			log.Printf("[redis] flush %s: %v", c.Channel(), err)
			continue
		}
		flushed++
	}
	log.Printf("[redis] flushed %d/%d buffered candles", flushed, len(toFlush))
}

// PendingCount returns the number of buffered candles waiting to be flushed.
func (p *Publisher) PendingCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.pending)
}

// Close closes the underlying client.
func (p *Publisher) Close() error {
	if p.client == nil {
		return nil
	}
	return p.client.Close()
}
