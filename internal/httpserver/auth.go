// internal/httpserver/auth.go
//
// Account endpoints and the middleware that resolves who is calling.
//   - POST /auth/signup, /auth/login, /auth/logout
//   - GET  /auth/me, /stats/me, /games/mine (signed in only)
//
// Notes:
//   - The session token travels either as "Authorization: Bearer <jwt>" or in
//     the COOKIE_NAME cookie.
//   - Guests get a long-lived anonymous cookie; whatever they played is moved to
//     their account on signup or login.

package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/robalobadob/wordcollector/internal/auth"
)

const anonCookieName = "wordcollector_anon"

type credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// authUser is what the middleware stores in the request context.
type authUser struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

type ctxUserKey struct{}

// userFrom returns the signed-in caller, or nil for guests.
func userFrom(r *http.Request) *authUser {
	me, _ := r.Context().Value(ctxUserKey{}).(*authUser)
	return me
}

// issuerFromEnv reads JWT_SECRET and JWT_EXPIRES_DAYS (default 14).
func issuerFromEnv() *auth.Issuer {
	days := 14
	if n, err := strconv.Atoi(os.Getenv("JWT_EXPIRES_DAYS")); err == nil && n > 0 {
		days = n
	}
	return auth.NewIssuer(getEnv("JWT_SECRET", "dev_secret_change_me"), time.Duration(days)*24*time.Hour)
}

func (s *Server) mountAuthRoutes(r chi.Router) {
	r.Post("/auth/signup", s.handleSignup)
	r.Post("/auth/login", s.handleLogin)
	r.Post("/auth/logout", func(w http.ResponseWriter, r *http.Request) {
		s.setSessionCookie(w, "", time.Time{})
		writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
	})

	r.Group(func(r chi.Router) {
		r.Use(s.requireAuth)
		r.Get("/auth/me", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, userFrom(r))
		})
		r.Get("/stats/me", s.handleMyStats)
		r.Get("/games/mine", s.handleMyGames)
	})
}

type sessionRes struct {
	auth.User
	Token string `json:"token"`
}

func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	var body credentials
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "bad_json")
		return
	}
	u, err := s.users.Create(r.Context(), body.Username, body.Password)
	var verr *auth.ValidationError
	switch {
	case errors.As(err, &verr):
		writeError(w, http.StatusBadRequest, verr.Reason)
		return
	case errors.Is(err, auth.ErrUsernameTaken):
		writeError(w, http.StatusConflict, "username_taken")
		return
	case err != nil:
		log.Error().Err(err).Msg("signup")
		writeError(w, http.StatusInternalServerError, "internal")
		return
	}
	log.Info().Str("user", u.ID).Msg("signed up")
	s.signIn(w, r, u)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var body credentials
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "bad_json")
		return
	}
	u, err := s.users.Authenticate(r.Context(), body.Username, body.Password)
	if errors.Is(err, auth.ErrInvalidCredentials) {
		writeError(w, http.StatusUnauthorized, "invalid_credentials")
		return
	}
	if err != nil {
		log.Error().Err(err).Msg("login")
		writeError(w, http.StatusInternalServerError, "internal")
		return
	}
	s.signIn(w, r, u)
}

// signIn issues a token for u, sets the cookie, and claims the caller's guest history.
func (s *Server) signIn(w http.ResponseWriter, r *http.Request, u auth.User) {
	tok, exp, err := s.tokens.Issue(u)
	if err != nil {
		log.Error().Err(err).Msg("issue token")
		writeError(w, http.StatusInternalServerError, "internal")
		return
	}
	s.setSessionCookie(w, tok, exp)
	if err := s.users.ClaimGuest(r.Context(), anonID(r), u.ID); err != nil {
		log.Warn().Err(err).Str("user", u.ID).Msg("claim guest history")
	}
	writeJSON(w, http.StatusOK, sessionRes{User: u, Token: tok})
}

func (s *Server) handleMyStats(w http.ResponseWriter, r *http.Request) {
	u, err := s.users.ByID(r.Context(), userFrom(r).ID)
	if err != nil {
		writeError(w, http.StatusNotFound, "not_found")
		return
	}
	writeJSON(w, http.StatusOK, u)
}

type gameRow struct {
	ID         string `json:"id"`
	Mode       string `json:"mode"`
	Status     string `json:"status"`
	Score      int    `json:"score"`
	Words      int    `json:"words"`
	StartedAt  string `json:"startedAt"`
	FinishedAt string `json:"finishedAt,omitempty"`
}

// handleMyGames lists the caller's 50 most recent games.
func (s *Server) handleMyGames(w http.ResponseWriter, r *http.Request) {
	rows, err := s.db.QueryContext(r.Context(),
		`SELECT id, mode, status, score, words_completed, started_at, COALESCE(finished_at, '')
		 FROM games WHERE user_id = ? ORDER BY started_at DESC LIMIT 50`, userFrom(r).ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}
	defer rows.Close()

	out := []gameRow{}
	for rows.Next() {
		var g gameRow
		if err := rows.Scan(&g.ID, &g.Mode, &g.Status, &g.Score, &g.Words, &g.StartedAt, &g.FinishedAt); err != nil {
			writeError(w, http.StatusInternalServerError, "db_error")
			return
		}
		out = append(out, g)
	}
	writeJSON(w, http.StatusOK, out)
}

// ----------------------------- middleware ----------------------------------

// caller resolves the token on r to a live account.
func (s *Server) caller(r *http.Request) (*authUser, bool) {
	raw := sessionToken(r)
	if raw == "" {
		return nil, false
	}
	c, err := s.tokens.Verify(raw)
	if err != nil {
		return nil, false
	}
	// the account may have been removed since the token was issued
	if _, err := s.users.ByID(r.Context(), c.Subject); err != nil {
		return nil, false
	}
	return &authUser{ID: c.Subject, Username: c.Username}, true
}

// withOptionalAuth attaches the caller when a valid token is present and lets guests through.
func (s *Server) withOptionalAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if me, ok := s.caller(r); ok {
			r = r.WithContext(context.WithValue(r.Context(), ctxUserKey{}, me))
		}
		next.ServeHTTP(w, r)
	})
}

// requireAuth rejects requests without a valid token.
func (s *Server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		me, ok := s.caller(r)
		if !ok {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxUserKey{}, me)))
	})
}

// ------------------------------- cookies -----------------------------------

func cookieName() string {
	return getEnv("COOKIE_NAME", "wordcollector_token")
}

func sessionToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return strings.TrimSpace(h[7:])
	}
	if c, err := r.Cookie(cookieName()); err == nil {
		return c.Value
	}
	return ""
}

// newCookie applies the shared attributes. Production cookies are Secure and
// SameSite=None so a separately hosted client can send them.
func newCookie(name, value string) *http.Cookie {
	c := &http.Cookie{Name: name, Value: value, Path: "/", HttpOnly: true, SameSite: http.SameSiteLaxMode}
	if os.Getenv("NODE_ENV") == "production" {
		c.Secure = true
		c.SameSite = http.SameSiteNoneMode
	}
	return c
}

// setSessionCookie stores tok until exp; an empty tok deletes the cookie.
func (s *Server) setSessionCookie(w http.ResponseWriter, tok string, exp time.Time) {
	c := newCookie(cookieName(), tok)
	if tok == "" {
		c.MaxAge = -1
	} else {
		c.Expires = exp
	}
	http.SetCookie(w, c)
}

func anonID(r *http.Request) string {
	if c, err := r.Cookie(anonCookieName); err == nil {
		return c.Value
	}
	return ""
}

// ensureAnonID returns the caller's guest ID, issuing a cookie on first visit.
func (s *Server) ensureAnonID(w http.ResponseWriter, r *http.Request) string {
	if id := anonID(r); id != "" {
		return id
	}
	id := uuid.NewString()
	c := newCookie(anonCookieName, id)
	c.Expires = time.Now().Add(180 * 24 * time.Hour)
	http.SetCookie(w, c)
	// later lookups in this request see the same ID
	r.AddCookie(&http.Cookie{Name: anonCookieName, Value: id})
	return id
}
