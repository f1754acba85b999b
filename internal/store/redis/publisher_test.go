package redis

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"tradesim-engine/internal/metrics"
	"tradesim-engine/internal/model"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSink records sends and fails while down is set.
type fakeSink struct {
	mu   sync.Mutex
	down bool
	got  []model.StreamCandle
}

func (f *fakeSink) send(_ context.Context, c model.StreamCandle, _ []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.down {
		return errors.New("connection refused")
	}
	f.got = append(f.got, c)
	return nil
}

func (f *fakeSink) setDown(v bool) {
	f.mu.Lock()
	f.down = v
	f.mu.Unlock()
}

func (f *fakeSink) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.got)
}

func streamCandle(seq int64) model.StreamCandle {
	return model.StreamCandle{
		Symbol:    "BTN",
		Timeframe: model.TF1m,
		Seq:       seq,
		Candle:    model.Candle{Time: seq * 60000, Open: 1, High: 2, Low: 0.5, Close: 1.5, Volume: 10},
	}
}

func TestPublisher_PassThrough(t *testing.T) {
	sink := &fakeSink{}
	p := newPublisher(sink.send, NewCircuitBreaker(5, time.Second), nil)

	require.NoError(t, p.Publish(context.Background(), streamCandle(1)))
	assert.Equal(t, 1, sink.count())
	assert.Equal(t, 0, p.PendingCount())
}

func TestPublisher_ErrorBeforeTrip(t *testing.T) {
	sink := &fakeSink{down: true}
	p := newPublisher(sink.send, NewCircuitBreaker(5, time.Second), nil)

	err := p.Publish(context.Background(), streamCandle(1))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pub:candle:1m:BTN")
	assert.Equal(t, 0, p.PendingCount())
}

func TestPublisher_BuffersWhileOpenAndFlushesOnClose(t *testing.T) {
	m := metrics.NewMetrics()
	sink := &fakeSink{down: true}
	cb, clk := newTestBreaker(2, time.Second)
	p := newPublisher(sink.send, cb, m)

	ctx := context.Background()
	p.Publish(ctx, streamCandle(1))
	p.Publish(ctx, streamCandle(2))
	require.Equal(t, StateOpen, p.Breaker().CurrentState())
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RedisCircuitBreakerTrips))

	// Rejected by the open breaker: buffered, no error.
	require.NoError(t, p.Publish(ctx, streamCandle(3)))
	require.NoError(t, p.Publish(ctx, streamCandle(4)))
	assert.Equal(t, 2, p.PendingCount())

	sink.setDown(false)
	clk.advance(2 * time.Second)
	require.NoError(t, p.Publish(ctx, streamCandle(5)))
	assert.Equal(t, StateClosed, p.Breaker().CurrentState())

	assert.Eventually(t, func() bool { return sink.count() == 3 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, 0, p.PendingCount())
	assert.Equal(t, 0.0, testutil.ToFloat64(m.RedisCircuitBreakerState))
}

func TestPublisher_BufferDropsOldest(t *testing.T) {
	p := newPublisher(nil, NewCircuitBreaker(5, time.Second), nil)
	p.maxBuf = 3
	for i := int64(1); i <= 5; i++ {
		p.buffer(streamCandle(i))
	}
	require.Equal(t, 3, p.PendingCount())
	assert.Equal(t, int64(3), p.pending[0].Seq)
	assert.Equal(t, int64(5), p.pending[2].Seq)
}

func TestPublisher_CloseWithoutClient(t *testing.T) {
	assert.NoError(t, newPublisher(nil, NewCircuitBreaker(5, time.Second), nil).Close())
}
