package gateway

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"

	"tradesim-engine/internal/indicator"
	"tradesim-engine/internal/model"
	"tradesim-engine/internal/ticker"

	"github.com/gorilla/mux"
)

const (
	defaultCandleLimit  = 120
	defaultHistoryLimit = 50
)

var errBadLimit = errors.New("limit must be an integer")

// CandlesResponse is returned by GET /api/market/candles/{symbol}.
type CandlesResponse struct {
	Symbol  string         `json:"symbol"`
	Candles []model.Candle `json:"candles"`
}

// CoachingResponse is returned by GET /api/market/rtt/{symbol}.
type CoachingResponse struct {
	Symbol   string               `json:"symbol"`
	Coaching model.CoachingSignal `json:"coaching"`
}

// IndicatorsResponse is returned by GET /api/market/indicators/{symbol}.
type IndicatorsResponse struct {
	Symbol    string          `json:"symbol"`
	Timeframe model.Timeframe `json:"timeframe"`
	indicator.Snapshot
}

// LiveResponse describes the live ticker.
type LiveResponse struct {
	Running   bool            `json:"running"`
	Symbols   []string        `json:"symbols"`
	Timeframe model.Timeframe `json:"timeframe,omitempty"`
	ticker.State
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("[gateway] encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func symbolVar(r *http.Request) string {
	return strings.ToUpper(strings.TrimSpace(mux.Vars(r)["symbol"]))
}

// queryInt parses an optional integer query parameter.
func queryInt(r *http.Request, key string, def int) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, errBadLimit
	}
	return n, nil
}

func (s *Server) handleCandles(w http.ResponseWriter, r *http.Request) {
	symbol := symbolVar(r)
	limit, err := queryInt(r, "limit", defaultCandleLimit)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	tf := model.ParseTimeframe(r.URL.Query().Get("timeframe"))

	candles, err := s.svc.Candles(symbol, tf, limit)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, CandlesResponse{Symbol: symbol, Candles: candles})
}

func (s *Server) handleQuote(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.svc.Quote(symbolVar(r)))
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	class := q.Get("class")
	if class == "" {
		class = "all"
	}
	results := s.svc.Search(q.Get("q"), class)
	if results == nil {
		results = []model.Instrument{}
	}
	writeJSON(w, http.StatusOK, results)
}

func (s *Server) handleCoaching(w http.ResponseWriter, r *http.Request) {
	symbol := symbolVar(r)
	q := r.URL.Query()
	side, err := model.ParseSide(q.Get("side"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	freeMode, _ := strconv.ParseBool(q.Get("free_mode"))

	sig := s.svc.Coaching(r.Context(), symbol, side, freeMode)
	writeJSON(w, http.StatusOK, CoachingResponse{Symbol: symbol, Coaching: sig})
}

// handleStatus echoes the requested class name; the service normalizes it.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	class := r.URL.Query().Get("class")
	if class == "" {
		class = string(model.ClassStock)
	}
	st := s.svc.MarketStatus(class)
	st.AssetClass = class
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleIndicators(w http.ResponseWriter, r *http.Request) {
	symbol := symbolVar(r)
	limit, err := queryInt(r, "limit", defaultCandleLimit)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	tf := model.ParseTimeframe(r.URL.Query().Get("timeframe"))

	snap, err := s.svc.Indicators(symbol, tf, limit)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, IndicatorsResponse{Symbol: symbol, Timeframe: tf, Snapshot: snap})
}

func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	if s.tick == nil {
		writeJSON(w, http.StatusOK, LiveResponse{Symbols: []string{}})
		return
	}
	writeJSON(w, http.StatusOK, LiveResponse{
		Running:   true,
		Symbols:   s.tick.Symbols(),
		Timeframe: s.tick.Timeframe(),
		State:     s.tick.State(),
	})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", defaultHistoryLimit)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	entries, err := s.svc.History(r.Context(), r.URL.Query().Get("symbol"), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "history unavailable")
		return
	}
	if entries == nil {
		entries = []model.JournalEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.health == nil {
		writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
		return
	}
	s.health.ServeHTTP(w, r)
}

// handleWS upgrades to WebSocket. symbol and timeframe query parameters
// subscribe the client immediately.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	if s.hub == nil {
		writeError(w, http.StatusServiceUnavailable, "live stream unavailable")
		return
	}
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[gateway] ws upgrade error: %v", err)
		return
	}

	client := newClient(s.hub, conn)
	s.hub.register(client)

	go client.writePump()

	q := r.URL.Query()
	if sym := q.Get("symbol"); sym != "" {
		since, _ := strconv.ParseInt(q.Get("since"), 10, 64)
		client.handleSubscribe(SubscribeMsg{
			Type:      "SUBSCRIBE",
			Symbol:    sym,
			Timeframe: q.Get("timeframe"),
			Since:     since,
		})
	}

	go client.readPump()
}
