// internal/httpserver/ws.go
//
// Live game stream: GET /game/{id}/ws.
//   - Every engine state change is pushed as {"type":"state","state":{...}},
//     including the delayed ones (wrong mark cleared, outcome popup cleared).
//   - Clients may also drive the game over the socket:
//     {"action":"tap","index":3} | {"action":"submit"} | {"action":"new-word"} | {"action":"reset"}
//     Rejected commands come back as {"type":"error","error":"<code>"}.
//   - A slow reader only ever misses intermediate snapshots, never the latest one.

package httpserver

import (
	"errors"
	"net/http"
	"net/url"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/robalobadob/wordcollector/internal/game"
	"github.com/robalobadob/wordcollector/internal/store"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = (wsPongWait * 9) / 10
	wsBuffer     = 16
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     checkOrigin,
}

// checkOrigin allows non-browser clients, the configured client origin, and same-host pages.
func checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || origin == clientOrigin() {
		return true
	}
	u, err := url.Parse(origin)
	return err == nil && u.Host == r.Host
}

// wsCommand is a client message.
type wsCommand struct {
	Action string `json:"action"`
	Index  *int   `json:"index,omitempty"`
}

// wsMessage is a server message.
type wsMessage struct {
	Type  string         `json:"type"` // "state" | "error"
	State *game.Snapshot `json:"state,omitempty"`
	Error string         `json:"error,omitempty"`
}

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("websocket upgrade")
		return
	}
	defer conn.Close()

	out := make(chan wsMessage, wsBuffer)
	unsubscribe := sess.Engine.Subscribe(func(snap game.Snapshot) {
		push(out, wsMessage{Type: "state", State: &snap})
	})
	defer unsubscribe()

	done := make(chan struct{})
	go s.readCommands(conn, sess, out, done)

	initial := sess.Engine.Snapshot()
	push(out, wsMessage{Type: "state", State: &initial})

	log.Debug().Str("gameId", sess.ID).Msg("stream opened")
	defer log.Debug().Str("gameId", sess.ID).Msg("stream closed")

	ping := time.NewTicker(wsPingPeriod)
	defer ping.Stop()
	for {
		select {
		case <-done:
			return
		case <-r.Context().Done():
			return
		case msg := <-out:
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteJSON(msg); err != nil {
				return
			}
		case <-ping.C:
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readCommands applies client commands until the connection fails, then closes done.
// Successful commands need no reply: the resulting snapshot reaches the
// client through the subscription.
func (s *Server) readCommands(conn *websocket.Conn, sess *store.Session, out chan wsMessage, done chan struct{}) {
	defer close(done)
	_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})
	for {
		var cmd wsCommand
		if err := conn.ReadJSON(&cmd); err != nil {
			var closeErr *websocket.CloseError
			if !errors.As(err, &closeErr) {
				log.Debug().Err(err).Str("gameId", sess.ID).Msg("stream read")
			}
			return
		}
		sess.Touch(s.opts.Now())
		if code := applyCommand(sess.Engine, cmd); code != "" {
			push(out, wsMessage{Type: "error", Error: code})
		}
	}
}

// applyCommand runs cmd against e and returns an error code, or "" on success.
func applyCommand(e *game.Engine, cmd wsCommand) string {
	var err error
	switch cmd.Action {
	case "tap":
		if cmd.Index == nil {
			return "bad_command"
		}
		_, err = e.Tap(*cmd.Index)
	case "submit":
		_, err = e.Submit()
	case "new-word":
		err = e.RequestNewWord()
	case "reset":
		e.Reset()
	default:
		return "bad_command"
	}
	if err == nil {
		return ""
	}
	_, code := engineCode(err)
	return code
}

// push enqueues msg, dropping the oldest queued message when the buffer is full.
func push(out chan wsMessage, msg wsMessage) {
	for {
		select {
		case out <- msg:
			return
		default:
		}
		select {
		case <-out:
		default:
		}
	}
}
