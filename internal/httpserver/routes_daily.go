// internal/httpserver/routes_daily.go
//
// HTTP routes for the "Daily Challenge" mode.
// Exposes three endpoints under /daily:
//   - POST /daily/new         → start today's game (or resume the running one)
//   - GET  /daily/status      → today's date and whether the caller already finished it
//   - GET  /daily/leaderboard → best results for today (or ?date=YYYY-MM-DD)
//
// Every player gets the same word order and grids for a date (seed = HMAC(salt, date)).
// Only the first finished run per player and day is recorded.

package httpserver

import (
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/robalobadob/wordcollector/internal/daily"
	"github.com/robalobadob/wordcollector/internal/game"
	"github.com/robalobadob/wordcollector/internal/store"
)

// dailyServer wraps dependencies for /daily endpoints.
type dailyServer struct {
	srv     *Server
	mu      sync.Mutex        // guards running
	running map[string]string // owner|date → session ID
}

// mountDaily registers all /daily routes.
func (s *Server) mountDaily(r chi.Router) {
	d := &dailyServer{srv: s, running: make(map[string]string)}
	s.dailyRuns = d
	r.Route("/daily", func(r chi.Router) {
		r.Post("/new", d.handleNew)
		r.Get("/status", d.handleStatus)
		r.Get("/leaderboard", d.handleLeaderboard)
	})
}

func dailySalt() string {
	return getEnv("DAILY_SALT", "local_dev_salt")
}

// owner returns the signed-in user ID or the guest cookie (setting one if needed).
func (d *dailyServer) owner(w http.ResponseWriter, r *http.Request) string {
	if me := userFrom(r); me != nil {
		return me.ID
	}
	return d.srv.ensureAnonID(w, r)
}

// dailyNewRes is returned by /daily/new.
type dailyNewRes struct {
	GameID string         `json:"gameId,omitempty"`
	Date   string         `json:"date"`
	Played bool           `json:"played"`
	State  *game.Snapshot `json:"state,omitempty"`
}

// handleNew resumes the caller's running daily session or starts one.
// A caller who already has a result for today gets Played=true and no session.
func (d *dailyServer) handleNew(w http.ResponseWriter, r *http.Request) {
	uid := d.owner(w, r)
	now := d.srv.opts.Now()
	date := daily.DateKey(now)

	played, err := d.srv.daily.AlreadyPlayed(r.Context(), uid, date)
	if err != nil {
		log.Warn().Err(err).Msg("daily already played")
	}
	if played {
		writeJSON(w, http.StatusOK, dailyNewRes{Date: date, Played: true})
		return
	}

	key := uid + "|" + date
	d.mu.Lock()
	defer d.mu.Unlock()

	if id, ok := d.running[key]; ok {
		if sess, err := d.srv.store.Get(r.Context(), id); err == nil && !sess.Engine.GameOver() {
			snap := sess.Engine.Snapshot()
			writeJSON(w, http.StatusOK, dailyNewRes{GameID: sess.ID, Date: date, State: &snap})
			return
		}
		delete(d.running, key)
	}

	sess, err := d.srv.startSession(w, r, modeDaily, daily.Seed(now, dailySalt()), date)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "save_failed")
		return
	}
	d.running[key] = sess.ID
	snap := sess.Engine.Snapshot()
	writeJSON(w, http.StatusOK, dailyNewRes{GameID: sess.ID, Date: date, State: &snap})
}

// forget drops the running entries that point at the given sessions.
func (d *dailyServer) forget(gone ...*store.Session) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, sess := range gone {
		if sess.Mode != modeDaily {
			continue
		}
		key := sess.OwnerID() + "|" + sess.Date
		if d.running[key] == sess.ID {
			delete(d.running, key)
		}
	}
}

func (d *dailyServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	date := daily.DateKey(d.srv.opts.Now())
	res := map[string]any{"date": date, "played": false}
	uid := ""
	if me := userFrom(r); me != nil {
		uid = me.ID
	} else {
		uid = anonID(r)
	}
	if uid != "" {
		played, err := d.srv.daily.AlreadyPlayed(r.Context(), uid, date)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "db_error")
			return
		}
		res["played"] = played
	}
	writeJSON(w, http.StatusOK, res)
}

// lbRes is returned by /daily/leaderboard.
type lbRes struct {
	Date string        `json:"date"`
	Top  []daily.LBRow `json:"top"`
}

// handleLeaderboard returns the leaderboard for the given date (default today).
func (d *dailyServer) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	date := r.URL.Query().Get("date")
	if date == "" {
		date = daily.DateKey(d.srv.opts.Now())
	}
	limit := queryInt(r, "limit", 20)
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	rows, err := d.srv.daily.Leaderboard(r.Context(), date, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}
	writeJSON(w, http.StatusOK, lbRes{Date: date, Top: rows})
}
