package httpserver

import (
	"context"
	"database/sql"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/robalobadob/wordcollector/internal/daily"
	"github.com/robalobadob/wordcollector/internal/game"
	"github.com/robalobadob/wordcollector/internal/store"
)

// recorder persists finished games of one session. A session can finish
// several times (Reset after game over); each run gets its own games row.
type recorder struct {
	s    *Server
	sess *store.Session

	mu       sync.Mutex
	rowID    string
	started  time.Time
	epoch    uint64
	finished bool
}

func (s *Server) newRecorder(sess *store.Session) *recorder {
	rec := &recorder{s: s, sess: sess, rowID: sess.ID, started: sess.StartedAt}
	rec.insertRow()
	return rec
}

// observe is the engine subscription. Snapshots may arrive from the request
// goroutine and from timer goroutines; older epochs are ignored.
func (rec *recorder) observe(snap game.Snapshot) {
	rec.mu.Lock()
	defer rec.mu.Unlock()
	if snap.Epoch < rec.epoch {
		return
	}
	rec.epoch = snap.Epoch

	switch {
	case snap.GameOver && !rec.finished:
		rec.finished = true
		rec.finish(snap)
	case !snap.GameOver && rec.finished:
		// reset after game over: new run
		rec.finished = false
		rec.rowID = uuid.NewString()
		rec.started = rec.s.opts.Now().UTC()
		rec.insertRow()
	}
}

// insertRow records the owner row for the current run (best effort).
func (rec *recorder) insertRow() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	owner, col := rec.sess.UserID, "user_id"
	if owner == "" {
		owner, col = rec.sess.AnonID, "anonymous_id"
	}
	_, err := rec.s.db.ExecContext(ctx,
		`INSERT INTO games (id, `+col+`, mode, status, started_at) VALUES (?,?,?,?,?)`,
		rec.rowID, owner, rec.sess.Mode, "playing", rec.started.Format(time.RFC3339))
	if err != nil {
		log.Warn().Err(err).Str("gameId", rec.sess.ID).Msg("insert game row")
	}
}

// finish stores the final score, bumps user stats, and records the daily result.
func (rec *recorder) finish(snap game.Snapshot) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	now := rec.s.opts.Now().UTC()
	tx, err := rec.s.db.BeginTx(ctx, nil)
	if err != nil {
		log.Warn().Err(err).Msg("begin finish tx")
		return
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		`UPDATE games SET status=?, score=?, words_completed=?, finished_at=? WHERE id=?`,
		"finished", snap.Score, snap.WordIndex, now.Format(time.RFC3339), rec.rowID); err != nil {
		log.Warn().Err(err).Msg("finish game")
	}
	if rec.sess.UserID != "" {
		if err := bumpStats(ctx, tx, rec.sess.UserID, snap.Score); err != nil {
			log.Warn().Err(err).Str("user", rec.sess.UserID).Msg("bump stats")
		}
	}
	if err := tx.Commit(); err != nil {
		log.Warn().Err(err).Msg("commit finish")
	}

	if rec.sess.Mode == modeDaily {
		err := rec.s.daily.InsertResult(ctx, daily.Result{
			UserID:    rec.sess.OwnerID(),
			Date:      rec.sess.Date,
			Score:     snap.Score,
			ElapsedMs: int(now.Sub(rec.started).Milliseconds()),
		})
		if err != nil {
			log.Warn().Err(err).Msg("insert daily result")
		}
	}
	log.Info().Str("gameId", rec.sess.ID).Int("score", snap.Score).Msg("game finished")
}

// bumpStats increments games played and folds score into best/total (within tx).
func bumpStats(ctx context.Context, tx *sql.Tx, userID string, score int) error {
	_, err := tx.ExecContext(ctx,
		`UPDATE users SET games_played = games_played + 1,
		                  total_score = total_score + ?,
		                  best_score = MAX(best_score, ?)
		 WHERE id=?`, score, score, userID)
	return err
}

type leaderboardRow struct {
	Username   string `json:"username"`
	Score      int    `json:"score"`
	Words      int    `json:"words"`
	FinishedAt string `json:"finishedAt"`
}

// handleLeaderboard lists the best finished classic games.
func (s *Server) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 20)
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	rows, err := s.db.QueryContext(r.Context(), `
        SELECT COALESCE(u.username, 'guest'), g.score, g.words_completed, COALESCE(g.finished_at, '')
        FROM games g LEFT JOIN users u ON u.id = g.user_id
        WHERE g.status = 'finished' AND g.mode = ?
        ORDER BY g.score DESC, g.finished_at ASC
        LIMIT ?`, modeClassic, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}
	defer rows.Close()

	out := []leaderboardRow{}
	for rows.Next() {
		var lr leaderboardRow
		if err := rows.Scan(&lr.Username, &lr.Score, &lr.Words, &lr.FinishedAt); err != nil {
			writeError(w, http.StatusInternalServerError, "db_error")
			return
		}
		out = append(out, lr)
	}
	writeJSON(w, http.StatusOK, out)
}
