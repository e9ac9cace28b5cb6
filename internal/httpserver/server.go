// internal/httpserver/server.go
//
// HTTP server wiring for the Word Collector backend.
// Responsibilities:
//   - Router + middleware (JSON, CORS, timeouts, panic recovery, request IDs).
//   - Public endpoints: "/", "/health", "/debug/words", "/leaderboard".
//   - Game endpoints (optional auth): /game/new and /game/{id}/... commands.
//   - Live state stream: GET /game/{id}/ws (WebSocket, no handler timeout).
//   - Daily endpoints (optional auth): mounted under /daily.
//   - Auth + profile/stat endpoints: /auth/*, /stats/me, /games/mine.
//
// Notes:
//   - Sessions live in the store only; sqlite keeps accounts and finished results.
//     RunJanitor evicts finished and idle sessions.
//   - Optional auth decorates requests with user context when a valid token is present;
//     routes can still run for guests.

package httpserver

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/trace"

	"github.com/robalobadob/wordcollector/internal/auth"
	"github.com/robalobadob/wordcollector/internal/daily"
	"github.com/robalobadob/wordcollector/internal/game"
	"github.com/robalobadob/wordcollector/internal/store"
	"github.com/robalobadob/wordcollector/internal/telemetry"
	"github.com/robalobadob/wordcollector/internal/words"
)

// Options customizes how sessions are built. Zero values use the defaults.
type Options struct {
	Scheduler  game.Scheduler   // default game.WallClock
	Now        func() time.Time // default time.Now
	Words      []string         // default words.Targets()
	Dictionary game.Dictionary  // default words.Dictionary()
	BcryptCost int              // default bcrypt.DefaultCost
}

// Server bundles router, in-memory session store, and DB handle.
type Server struct {
	r      *chi.Mux
	store  store.Store
	db     *sql.DB
	daily  *daily.Store
	users  *auth.Users
	tokens *auth.Issuer
	opts   Options
	tracer trace.Tracer
	http   *http.Server

	dailyRuns *dailyServer
}

// How long sessions survive without a request before Sweep drops them.
// Unfinished daily games are kept until their date has passed.
const (
	finishedTTL = 10 * time.Minute
	idleTTL     = 2 * time.Hour
)

// New constructs a Server, installs middleware, and registers routes.
func New(st store.Store, db *sql.DB, opts Options) *Server {
	if opts.Scheduler == nil {
		opts.Scheduler = game.WallClock
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	s := &Server{
		r:      chi.NewRouter(),
		store:  st,
		db:     db,
		daily:  daily.NewStore(db),
		users:  auth.NewUsers(db, opts.BcryptCost),
		tokens: issuerFromEnv(),
		opts:   opts,
		tracer: telemetry.Tracer("httpserver"),
	}
	s.http = &http.Server{
		Handler:           s.r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	// --- middleware ---
	s.r.Use(chimw.RequestID) // add X-Request-ID
	s.r.Use(chimw.RealIP)    // set RemoteAddr from X-Forwarded-For etc.
	s.r.Use(chimw.Recoverer) // recover from panics
	s.r.Use(jsonContentType) // default JSON responses
	s.r.Use(corsFromEnv)     // credentials-friendly CORS

	// --- diagnostics ---
	s.r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"service":"wordcollector","endpoints":["/health","POST /game/new","POST /game/{id}/tap","POST /game/{id}/submit","GET /game/{id}/ws","/auth/*"]}`))
	})
	s.r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"ok":true}`))
	})
	s.r.Get("/debug/words", func(w http.ResponseWriter, r *http.Request) {
		t, d := words.Stats()
		_ = json.NewEncoder(w).Encode(map[string]int{"targets": t, "dictionary": d, "sessions": s.store.Len()})
	})

	// The stream outlives any handler timeout.
	s.r.With(s.withOptionalAuth).Get("/game/{id}/ws", s.handleStream)

	s.r.Group(func(r chi.Router) {
		r.Use(chimw.Timeout(10 * time.Second)) // bound handler time
		r.Use(s.withOptionalAuth)

		// Game endpoints: OPTIONAL AUTH (guests can play)
		s.mountGame(r)

		// Daily: OPTIONAL AUTH
		s.mountDaily(r)

		r.Get("/leaderboard", s.handleLeaderboard)

		// Auth + profile/stats
		s.mountAuthRoutes(r)
	})

	// JSON 404 for easier debugging
	s.r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "not_found")
	})

	return s
}

// Start begins serving HTTP on addr. It returns http.ErrServerClosed after Shutdown.
func (s *Server) Start(addr string) error {
	s.http.Addr = addr
	return s.http.ListenAndServe()
}

// Shutdown stops accepting connections and waits for handlers to return.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

// Sweep evicts finished sessions idle for finishedTTL, unfinished classic
// sessions idle for idleTTL, and daily sessions from earlier dates.
// Finished runs are already recorded by then. It returns the number evicted.
func (s *Server) Sweep(ctx context.Context) int {
	now := s.opts.Now()
	today := daily.DateKey(now)
	gone := s.store.Sweep(ctx, func(sess *store.Session) bool {
		idle := now.Sub(sess.LastActive())
		switch {
		case sess.Engine.GameOver():
			return idle >= finishedTTL
		case sess.Mode == modeDaily:
			return sess.Date != today
		default:
			return idle >= idleTTL
		}
	})
	for _, sess := range gone {
		sess.Engine.Close()
	}
	s.dailyRuns.forget(gone...)
	if len(gone) > 0 {
		log.Info().Int("evicted", len(gone)).Int("live", s.store.Len()).Msg("sessions swept")
	}
	return len(gone)
}

// RunJanitor calls Sweep every interval until ctx is done.
func (s *Server) RunJanitor(ctx context.Context, every time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			s.Sweep(ctx)
		}
	}
}

// Router exposes the internal router (useful for tests).
func (s *Server) Router() chi.Router { return s.r }

// ----------------------------- middleware ----------------------------------

// jsonContentType sets a default JSON Content-Type header on all responses.
func jsonContentType(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		next.ServeHTTP(w, r)
	})
}

// corsFromEnv enables credentialed CORS for a single origin.
// Uses CLIENT_ORIGIN env var; defaults to http://localhost:5173.
func corsFromEnv(next http.Handler) http.Handler {
	origin := clientOrigin()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Vary", "Origin")
		w.Header().Set("Access-Control-Allow-Origin", origin)
		w.Header().Set("Access-Control-Allow-Credentials", "true")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,DELETE,OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func clientOrigin() string {
	return getEnv("CLIENT_ORIGIN", "http://localhost:5173")
}

// ------------------------------ helpers ------------------------------------

// writeJSON encodes v with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warn().Err(err).Msg("encode response")
	}
}

// writeError writes {"error": code}.
func writeError(w http.ResponseWriter, status int, code string) {
	writeJSON(w, status, map[string]string{"error": code})
}

// engineError maps engine sentinels onto HTTP statuses.
func engineError(w http.ResponseWriter, err error) {
	status, code := engineCode(err)
	if status == http.StatusInternalServerError {
		log.Error().Err(err).Msg("engine")
	}
	writeError(w, status, code)
}

func engineCode(err error) (int, string) {
	switch {
	case errors.Is(err, game.ErrTileOutOfRange):
		return http.StatusBadRequest, "tile_out_of_range"
	case errors.Is(err, game.ErrGameOver):
		return http.StatusConflict, "game_over"
	case errors.Is(err, game.ErrOutcomePending):
		return http.StatusConflict, "outcome_pending"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

// queryInt parses an integer query parameter, falling back to def.
func queryInt(r *http.Request, key string, def int) int {
	if v := r.URL.Query().Get(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

// getEnv returns the value of k or def if unset/empty.
func getEnv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
