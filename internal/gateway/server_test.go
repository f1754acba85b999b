package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"tradesim-engine/internal/market"
	"tradesim-engine/internal/markethours"
	"tradesim-engine/internal/metrics"
	"tradesim-engine/internal/model"
	"tradesim-engine/internal/synth"

	"github.com/gorilla/websocket"
	"github.com/pquerna/otp/totp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "JBSWY3DPEHPK3PXP"

type memJournal struct {
	mu      sync.Mutex
	entries []model.JournalEntry
}

func (j *memJournal) Record(e model.JournalEntry) {
	j.mu.Lock()
	j.entries = append(j.entries, e)
	j.mu.Unlock()
}

func (j *memJournal) Recent(_ context.Context, symbol string, limit int) ([]model.JournalEntry, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	out := []model.JournalEntry{}
	for i := len(j.entries) - 1; i >= 0 && len(out) < limit; i-- {
		if symbol == "" || j.entries[i].Symbol == symbol {
			out = append(out, j.entries[i])
		}
	}
	return out, nil
}

func (j *memJournal) Purge(_ context.Context, before time.Time) (int64, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	n := int64(len(j.entries))
	j.entries = nil
	return n, nil
}

func (j *memJournal) Close() error { return nil }

type testEnv struct {
	srv     *Server
	hub     *Hub
	journal *memJournal
	m       *metrics.Metrics
}

func newTestEnv(t *testing.T, secret string) *testEnv {
	t.Helper()
	loc := markethours.LoadLocation(markethours.DefaultZone)
	monday := time.Date(2026, 3, 9, 11, 0, 0, 0, loc)

	j := &memJournal{}
	m := metrics.NewMetrics()
	svc := market.New(market.Options{
		Session: markethours.New(loc, markethours.FixedClock{T: monday}),
		Source:  synth.NewSource(7),
		Journal: j,
		Metrics: m,
	})
	hub := NewHub(func(symbol string, tf model.Timeframe) []model.Candle {
		c, _ := svc.Candles(symbol, tf, 10)
		return c
	}, m)
	srv := NewServer(Options{Service: svc, Hub: hub, Metrics: m, AdminTOTPSecret: secret})
	return &testEnv{srv: srv, hub: hub, journal: j, m: m}
}

func (e *testEnv) do(t *testing.T, method, target string, hdr map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	for k, v := range hdr {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	e.srv.Handler().ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v), "body: %s", rec.Body.String())
}

func TestHandleCandles(t *testing.T) {
	env := newTestEnv(t, "")

	rec := env.do(t, http.MethodGet, "/api/market/candles/btn?timeframe=1h&limit=30", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var resp CandlesResponse
	decode(t, rec, &resp)
	assert.Equal(t, "BTN", resp.Symbol)
	require.Len(t, resp.Candles, 30)
	for i := 1; i < len(resp.Candles); i++ {
		assert.Equal(t, int64(time.Hour/time.Millisecond), resp.Candles[i].Time-resp.Candles[i-1].Time)
	}

	rec = env.do(t, http.MethodGet, "/api/market/candles/BTN", nil)
	decode(t, rec, &resp)
	assert.Len(t, resp.Candles, defaultCandleLimit)
}

func TestHandleCandlesBadLimit(t *testing.T) {
	env := newTestEnv(t, "")

	for _, q := range []string{"limit=0", "limit=1001", "limit=abc", "limit=-5"} {
		rec := env.do(t, http.MethodGet, "/api/market/candles/BTN?"+q, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code, q)

		var body map[string]string
		decode(t, rec, &body)
		assert.NotEmpty(t, body["error"], q)
	}
}

func TestHandleQuote(t *testing.T) {
	env := newTestEnv(t, "")

	rec := env.do(t, http.MethodGet, "/api/market/quote/usxeur", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var q model.Quote
	decode(t, rec, &q)
	assert.Equal(t, "USXEUR", q.Symbol)
	assert.Less(t, q.Bid, q.Ask)
}

func TestHandleSearch(t *testing.T) {
	env := newTestEnv(t, "")

	rec := env.do(t, http.MethodGet, "/api/assets/search?q=zzzzzz", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, "[]", rec.Body.String())

	rec = env.do(t, http.MethodGet, "/api/assets/search?class=crypto", nil)
	var results []model.Instrument
	decode(t, rec, &results)
	require.NotEmpty(t, results)
	for _, in := range results {
		assert.Equal(t, model.ClassCrypto, in.Class)
	}
}

func TestHandleCoaching(t *testing.T) {
	env := newTestEnv(t, "")

	rec := env.do(t, http.MethodGet, "/api/market/rtt/smby?side=sell&free_mode=true", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp CoachingResponse
	decode(t, rec, &resp)
	assert.Equal(t, "SMBY", resp.Symbol)
	assert.NotEmpty(t, resp.Coaching.Action)
	assert.Empty(t, resp.Coaching.Tips, "free mode carries no tips")

	rec = env.do(t, http.MethodGet, "/api/coaching/history?symbol=SMBY", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var entries []model.JournalEntry
	decode(t, rec, &entries)
	require.Len(t, entries, 1)
	assert.Equal(t, model.SideSell, entries[0].Side)
	assert.True(t, entries[0].FreeMode)

	rec = env.do(t, http.MethodGet, "/api/market/rtt/SMBY?side=short", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleStatus(t *testing.T) {
	env := newTestEnv(t, "")

	tests := []struct {
		class    string
		wantOpen bool
	}{
		{"stock", true},
		{"stocks", true},
		{"crypto", true},
		{"bonds", true},
	}
	for _, tt := range tests {
		rec := env.do(t, http.MethodGet, "/api/market/status?class="+tt.class, nil)
		require.Equal(t, http.StatusOK, rec.Code)

		var st model.MarketStatus
		decode(t, rec, &st)
		assert.Equal(t, tt.class, st.AssetClass)
		assert.Equal(t, tt.wantOpen, st.IsOpen, tt.class)
		assert.NotEmpty(t, st.Message)
	}
}

func TestHandleIndicators(t *testing.T) {
	env := newTestEnv(t, "")

	rec := env.do(t, http.MethodGet, "/api/market/indicators/BTN?limit=60", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Symbol string              `json:"symbol"`
		RSI    *float64            `json:"rsi"`
		SMA    map[string]*float64 `json:"sma"`
	}
	decode(t, rec, &resp)
	assert.Equal(t, "BTN", resp.Symbol)
	require.NotNil(t, resp.RSI)
	assert.GreaterOrEqual(t, *resp.RSI, 0.0)
	assert.LessOrEqual(t, *resp.RSI, 100.0)
	assert.NotNil(t, resp.SMA["50"])

	rec = env.do(t, http.MethodGet, "/api/market/indicators/BTN?limit=5000", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleLiveWithoutTicker(t *testing.T) {
	env := newTestEnv(t, "")

	rec := env.do(t, http.MethodGet, "/api/market/live", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp LiveResponse
	decode(t, rec, &resp)
	assert.False(t, resp.Running)
	assert.Empty(t, resp.Symbols)
}

func TestHealthAndMetrics(t *testing.T) {
	env := newTestEnv(t, "")

	rec := env.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	env.do(t, http.MethodGet, "/api/market/quote/BTN", nil)
	rec = env.do(t, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "tradesim_quotes_total 1")
	assert.Contains(t, body, `route="/api/market/quote/{symbol}"`)
}

func TestRequestIDAndCORS(t *testing.T) {
	env := newTestEnv(t, "")

	rec := env.do(t, http.MethodGet, "/api/market/quote/BTN", map[string]string{
		"X-Request-ID": "req-123",
		"Origin":       "http://localhost:3000",
	})
	assert.Equal(t, "req-123", rec.Header().Get("X-Request-ID"))
	assert.NotEmpty(t, rec.Header().Get("Access-Control-Allow-Origin"))

	rec = env.do(t, http.MethodGet, "/api/market/quote/BTN", nil)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestAdminPurge(t *testing.T) {
	t.Run("disabled without secret", func(t *testing.T) {
		env := newTestEnv(t, "")
		rec := env.do(t, http.MethodDelete, "/api/admin/coaching/history", nil)
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("rejects bad code", func(t *testing.T) {
		env := newTestEnv(t, testSecret)
		rec := env.do(t, http.MethodDelete, "/api/admin/coaching/history", map[string]string{adminOTPHeader: "000000x"})
		assert.Equal(t, http.StatusUnauthorized, rec.Code)

		rec = env.do(t, http.MethodDelete, "/api/admin/coaching/history", nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("purges with valid code", func(t *testing.T) {
		env := newTestEnv(t, testSecret)
		env.do(t, http.MethodGet, "/api/market/rtt/BTN", nil)
		env.do(t, http.MethodGet, "/api/market/rtt/USXEUR", nil)

		code, err := totp.GenerateCode(testSecret, time.Now())
		require.NoError(t, err)

		rec := env.do(t, http.MethodDelete, "/api/admin/coaching/history?before=2030-01-01T00:00:00Z",
			map[string]string{adminOTPHeader: code})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var resp PurgeResponse
		decode(t, rec, &resp)
		assert.Equal(t, int64(2), resp.Deleted)
		assert.Equal(t, 2030, resp.Before.Year())
	})

	t.Run("rejects malformed cutoff", func(t *testing.T) {
		env := newTestEnv(t, testSecret)
		code, err := totp.GenerateCode(testSecret, time.Now())
		require.NoError(t, err)

		rec := env.do(t, http.MethodDelete, "/api/admin/coaching/history?before=yesterday",
			map[string]string{adminOTPHeader: code})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

// ── WebSocket ──

func dialWS(t *testing.T, ts *httptest.Server, query string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws" + query
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

// readMessages reads frames until n newline-separated messages arrive.
func readMessages(t *testing.T, conn *websocket.Conn, n int) [][]byte {
	t.Helper()
	var out [][]byte
	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	for len(out) < n {
		_, frame, err := conn.ReadMessage()
		require.NoError(t, err)
		for _, line := range strings.Split(string(frame), "\n") {
			if line != "" {
				out = append(out, []byte(line))
			}
		}
	}
	return out
}

func TestWebSocketSnapshotThenLive(t *testing.T) {
	env := newTestEnv(t, "")
	ts := httptest.NewServer(env.srv.Handler())
	defer ts.Close()

	conn := dialWS(t, ts, "?symbol=btn&timeframe=1m")

	msgs := readMessages(t, conn, 1)
	var snap SnapshotMsg
	require.NoError(t, json.Unmarshal(msgs[0], &snap))
	assert.Equal(t, "snapshot", snap.Type)
	assert.Equal(t, "pub:candle:1m:BTN", snap.Channel)
	assert.Len(t, snap.Candles, 10)

	require.Eventually(t, func() bool { return env.hub.ClientCount() == 1 }, time.Second, 10*time.Millisecond)
	require.NoError(t, env.hub.Publish(context.Background(), testCandle("BTN", 1)))
	env.hub.Publish(context.Background(), testCandle("SMBY", 1))

	msgs = readMessages(t, conn, 1)
	var env1 envelope
	require.NoError(t, json.Unmarshal(msgs[0], &env1))
	assert.Equal(t, "candle", env1.Type)
	assert.Equal(t, "pub:candle:1m:BTN", env1.Channel)
	assert.Equal(t, int64(1), env1.ChannelSeq)
}

func TestWebSocketSubscribeReplay(t *testing.T) {
	env := newTestEnv(t, "")
	ts := httptest.NewServer(env.srv.Handler())
	defer ts.Close()

	for i := int64(1); i <= 4; i++ {
		env.hub.Publish(context.Background(), testCandle("BTN", i))
	}

	conn := dialWS(t, ts, "")
	require.NoError(t, conn.WriteJSON(SubscribeMsg{Type: "SUBSCRIBE", Symbol: "BTN", Timeframe: "1m", Since: 2}))

	msgs := readMessages(t, conn, 2)
	var seqs []int64
	for _, raw := range msgs {
		var e envelope
		require.NoError(t, json.Unmarshal(raw, &e))
		seqs = append(seqs, e.ChannelSeq)
	}
	assert.Equal(t, []int64{3, 4}, seqs)
}

func TestWebSocketErrorsAndPing(t *testing.T) {
	env := newTestEnv(t, "")
	ts := httptest.NewServer(env.srv.Handler())
	defer ts.Close()

	conn := dialWS(t, ts, "")
	require.NoError(t, conn.WriteJSON(SubscribeMsg{Type: "SUBSCRIBE", ReqID: "r1"}))

	var errMsg ErrorMsg
	require.NoError(t, json.Unmarshal(readMessages(t, conn, 1)[0], &errMsg))
	assert.Equal(t, "error", errMsg.Type)
	assert.Equal(t, "r1", errMsg.ReqID)

	require.NoError(t, conn.WriteJSON(map[string]int64{"ping": 1234}))
	var pong struct {
		Type string `json:"type"`
		Ping int64  `json:"ping"`
	}
	require.NoError(t, json.Unmarshal(readMessages(t, conn, 1)[0], &pong))
	assert.Equal(t, "pong", pong.Type)
	assert.Equal(t, int64(1234), pong.Ping)
}
