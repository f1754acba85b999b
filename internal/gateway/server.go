package gateway

import (
	"bufio"
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"tradesim-engine/internal/logger"
	"tradesim-engine/internal/market"
	"tradesim-engine/internal/metrics"
	"tradesim-engine/internal/ticker"

	"github.com/google/uuid"
	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
)

// Options wires a Server. Ticker, Health and Metrics may be nil.
type Options struct {
	Service         *market.Service
	Hub             *Hub
	Ticker          *ticker.Ticker
	Health          *metrics.HealthStatus
	Metrics         *metrics.Metrics
	AdminTOTPSecret string
	AllowedOrigins  []string
}

// Server is the HTTP and WebSocket surface of the engine.
type Server struct {
	svc         *market.Service
	hub         *Hub
	tick        *ticker.Ticker
	health      *metrics.HealthStatus
	m           *metrics.Metrics
	adminSecret string
	origins     []string
	upgrader    websocket.Upgrader
	router      *mux.Router
	now         func() time.Time
}

// NewServer builds the router.
func NewServer(opts Options) *Server {
	origins := opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	s := &Server{
		svc:         opts.Service,
		hub:         opts.Hub,
		tick:        opts.Ticker,
		health:      opts.Health,
		m:           opts.Metrics,
		adminSecret: opts.AdminTOTPSecret,
		origins:     origins,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		now: time.Now,
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	r := mux.NewRouter()
	r.Use(s.traceMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.metricsMiddleware)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/market/candles/{symbol}", s.handleCandles).Methods(http.MethodGet)
	api.HandleFunc("/market/quote/{symbol}", s.handleQuote).Methods(http.MethodGet)
	api.HandleFunc("/market/rtt/{symbol}", s.handleCoaching).Methods(http.MethodGet)
	api.HandleFunc("/market/status", s.handleStatus).Methods(http.MethodGet)
	api.HandleFunc("/market/indicators/{symbol}", s.handleIndicators).Methods(http.MethodGet)
	api.HandleFunc("/market/live", s.handleLive).Methods(http.MethodGet)
	api.HandleFunc("/assets/search", s.handleSearch).Methods(http.MethodGet)
	api.HandleFunc("/coaching/history", s.handleHistory).Methods(http.MethodGet)
	api.HandleFunc("/admin/coaching/history", s.handlePurgeHistory).Methods(http.MethodDelete)

	r.HandleFunc("/ws", s.handleWS).Methods(http.MethodGet)
	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	if s.m != nil {
		r.Handle("/metrics", s.m.Handler()).Methods(http.MethodGet)
	}

	s.router = r
}

// Handler returns the root handler with CORS applied.
func (s *Server) Handler() http.Handler {
	return handlers.CORS(
		handlers.AllowedOrigins(s.origins),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodDelete, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Content-Type", "X-Request-ID", adminOTPHeader}),
	)(s.router)
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("http server listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

// ── Middleware ──

func (s *Server) traceMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		traceID := r.Header.Get("X-Request-ID")
		if traceID == "" {
			traceID = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", traceID)
		ctx := logger.WithTraceID(r.Context(), traceID)

		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(wrapped, r.WithContext(ctx))

		slog.Info("http request",
			append(logger.LogWithTrace(ctx),
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", wrapped.statusCode),
				slog.Duration("duration", time.Since(start)),
				slog.String("remote", r.RemoteAddr),
			)...,
		)
	})
}

func (s *Server) recoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				slog.Error("panic recovered",
					append(logger.LogWithTrace(r.Context()),
						slog.Any("error", err),
						slog.String("path", r.URL.Path),
					)...,
				)
				writeError(w, http.StatusInternalServerError, "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func (s *Server) metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.m == nil {
			next.ServeHTTP(w, r)
			return
		}
		route := r.URL.Path
		if cur := mux.CurrentRoute(r); cur != nil {
			if tpl, err := cur.GetPathTemplate(); err == nil {
				route = tpl
			}
		}
		start := time.Now()
		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(wrapped, r)

		s.m.HTTPRequests.WithLabelValues(route, strconv.Itoa(wrapped.statusCode)).Inc()
		s.m.HTTPDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

// responseWriter captures the status code. It keeps Hijack available so
// WebSocket upgrades pass through the middleware chain.
type responseWriter struct {
	http.ResponseWriter
	statusCode  int
	wroteHeader bool
}

func (rw *responseWriter) WriteHeader(code int) {
	if !rw.wroteHeader {
		rw.statusCode = code
		rw.wroteHeader = true
	}
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := rw.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	rw.statusCode = http.StatusSwitchingProtocols
	return h.Hijack()
}

func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}
