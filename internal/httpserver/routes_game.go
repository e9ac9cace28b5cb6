// internal/httpserver/routes_game.go
//
// Game endpoints. Every command returns the engine snapshot taken right
// after it ran, so a client can render without a second request:
//   - POST /game/new            → start a classic session
//   - GET  /game/{id}           → current state
//   - DELETE /game/{id}         → abandon the session (nothing is recorded)
//   - POST /game/{id}/tap       → tap a tile by grid index
//   - POST /game/{id}/submit    → judge the tapped sequence
//   - POST /game/{id}/new-word  → skip to another word
//   - POST /game/{id}/reset     → restart the session

package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/robalobadob/wordcollector/internal/game"
	"github.com/robalobadob/wordcollector/internal/store"
	"github.com/robalobadob/wordcollector/internal/words"
)

const (
	modeClassic = "classic"
	modeDaily   = "daily"
)

func (s *Server) mountGame(r chi.Router) {
	r.Post("/game/new", s.handleNewGame)
	r.Get("/game/{id}", s.handleState)
	r.Delete("/game/{id}", s.handleAbandon)
	r.Post("/game/{id}/tap", s.handleTap)
	r.Post("/game/{id}/submit", s.handleSubmit)
	r.Post("/game/{id}/new-word", s.handleNewWord)
	r.Post("/game/{id}/reset", s.handleReset)
}

// newGameReq/Res payloads for POST /game/new.
type newGameReq struct {
	Mode string `json:"mode"` // "classic" (default); daily games start at /daily/new
	Seed int64  `json:"seed"` // optional fixed seed (testing)
}
type newGameRes struct {
	GameID string        `json:"gameId"`
	Mode   string        `json:"mode"`
	State  game.Snapshot `json:"state"`
}

type stateRes struct {
	State game.Snapshot `json:"state"`
}

// handleNewGame creates a classic session, starts its engine, and records an
// owner row (either user_id or anonymous_id) for history and stats.
func (s *Server) handleNewGame(w http.ResponseWriter, r *http.Request) {
	var req newGameReq
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "bad_json")
			return
		}
	}
	switch req.Mode {
	case "", modeClassic:
	case modeDaily:
		// the once-per-day rule lives in /daily/new
		writeError(w, http.StatusBadRequest, "use_daily_route")
		return
	default:
		writeError(w, http.StatusBadRequest, "bad_mode")
		return
	}

	sess, err := s.startSession(w, r, modeClassic, req.Seed, "")
	if err != nil {
		writeError(w, http.StatusInternalServerError, "save_failed")
		return
	}
	writeJSON(w, http.StatusOK, newGameRes{GameID: sess.ID, Mode: sess.Mode, State: sess.Engine.Snapshot()})
}

// startSession builds an engine for mode/seed, starts it, attaches the result
// recorder, and saves the session. The owner is the signed-in user or the
// guest cookie.
func (s *Server) startSession(w http.ResponseWriter, r *http.Request, mode string, seed int64, date string) (*store.Session, error) {
	eng := game.New(game.Config{
		Words:      s.wordList(),
		Dictionary: s.dictionary(),
		Rand:       game.NewRandom(seed),
		Scheduler:  s.opts.Scheduler,
	})
	sess := store.NewSession(mode, eng)
	sess.Date = date
	sess.StartedAt = s.opts.Now().UTC()
	sess.Touch(sess.StartedAt)
	if me := userFrom(r); me != nil {
		sess.UserID = me.ID
	} else {
		sess.AnonID = s.ensureAnonID(w, r)
	}

	_, span := s.tracer.Start(r.Context(), "game.new", trace.WithAttributes(
		attribute.String("game.id", sess.ID),
		attribute.String("game.mode", sess.Mode),
	))
	defer span.End()

	eng.Start()
	eng.Subscribe(s.newRecorder(sess).observe)
	if err := s.store.Save(r.Context(), sess); err != nil {
		span.RecordError(err)
		log.Error().Err(err).Msg("save session")
		return nil, err
	}
	log.Info().Str("gameId", sess.ID).Str("mode", sess.Mode).Msg("game started")
	return sess, nil
}

// session loads the {id} session or writes a 404.
func (s *Server) session(w http.ResponseWriter, r *http.Request) (*store.Session, bool) {
	sess, err := s.store.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			log.Error().Err(err).Msg("load session")
		}
		writeError(w, http.StatusNotFound, "not_found")
		return nil, false
	}
	sess.Touch(s.opts.Now())
	return sess, true
}

// span opens a trace span for a game command; the caller ends it.
func (s *Server) span(ctx context.Context, name string, sess *store.Session) trace.Span {
	_, span := s.tracer.Start(ctx, name)
	snap := sess.Engine.Snapshot()
	span.SetAttributes(
		attribute.String("game.id", sess.ID),
		attribute.Int("game.score", snap.Score),
		attribute.Int("game.word_index", snap.WordIndex),
	)
	return span
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, stateRes{State: sess.Engine.Snapshot()})
}

// handleAbandon stops the session's pending effects and forgets it.
// A running daily game cannot be abandoned; it stays the caller's game for the day.
func (s *Server) handleAbandon(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	if sess.Mode == modeDaily && !sess.Engine.GameOver() {
		writeError(w, http.StatusConflict, "daily_in_progress")
		return
	}
	sess.Engine.Close()
	if err := s.store.Delete(r.Context(), sess.ID); err != nil {
		log.Error().Err(err).Msg("delete session")
		writeError(w, http.StatusInternalServerError, "internal")
		return
	}
	s.dailyRuns.forget(sess)
	log.Info().Str("gameId", sess.ID).Msg("game abandoned")
	w.WriteHeader(http.StatusNoContent)
}

type tapReq struct {
	Index *int `json:"index"`
}
type tapRes struct {
	game.TapResult
	State game.Snapshot `json:"state"`
}

func (s *Server) handleTap(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	var req tapReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Index == nil {
		writeError(w, http.StatusBadRequest, "bad_json")
		return
	}
	span := s.span(r.Context(), "game.tap", sess)
	defer span.End()

	res, err := sess.Engine.Tap(*req.Index)
	if err != nil {
		span.RecordError(err)
		engineError(w, err)
		return
	}
	span.SetAttributes(attribute.Bool("tap.correct", res.Correct))
	writeJSON(w, http.StatusOK, tapRes{TapResult: res, State: sess.Engine.Snapshot()})
}

type submitRes struct {
	Outcome game.Outcome  `json:"outcome"`
	Great   bool          `json:"great"`
	State   game.Snapshot `json:"state"`
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	span := s.span(r.Context(), "game.submit", sess)
	defer span.End()

	out, err := sess.Engine.Submit()
	if err != nil {
		span.RecordError(err)
		engineError(w, err)
		return
	}
	span.SetAttributes(attribute.String("submit.outcome", string(out)))
	writeJSON(w, http.StatusOK, submitRes{Outcome: out, Great: out.Great(), State: sess.Engine.Snapshot()})
}

func (s *Server) handleNewWord(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	span := s.span(r.Context(), "game.new_word", sess)
	defer span.End()

	if err := sess.Engine.RequestNewWord(); err != nil {
		span.RecordError(err)
		engineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stateRes{State: sess.Engine.Snapshot()})
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	span := s.span(r.Context(), "game.reset", sess)
	defer span.End()

	sess.Engine.Reset()
	writeJSON(w, http.StatusOK, stateRes{State: sess.Engine.Snapshot()})
}

func (s *Server) wordList() []string {
	if len(s.opts.Words) > 0 {
		return append([]string(nil), s.opts.Words...)
	}
	return words.Targets()
}

func (s *Server) dictionary() game.Dictionary {
	if s.opts.Dictionary != nil {
		return s.opts.Dictionary
	}
	return words.Dictionary()
}
