package admin

import (
	"net/http"
	"net/url"
	"time"

	"github.com/goodtune/pillbox/internal/events"
	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// streamMessage is one frame on the event stream.
type streamMessage struct {
	Type      string         `json:"type"`
	Timestamp int64          `json:"timestamp"`
	Payload   events.Payload `json:"payload,omitempty"`
}

func (s *Server) upgrader() websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.checkOrigin,
	}
}

// checkOrigin accepts same-host pages and any configured origin.
func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	if originAllowed(s.config.AllowedOrigins, origin) {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	return u.Host == r.Host
}

// handleEvents streams every bus event to a websocket client until it
// disconnects.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	if s.bus == nil {
		writeError(w, http.StatusNotFound, "Event stream is disabled")
		return
	}

	upgrader := s.upgrader()
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Debug().Err(err).Msg("websocket upgrade failed")
		return
	}

	sub := s.bus.Subscribe(events.EventAll)
	closed := make(chan struct{})

	s.logger.Debug().Str("remote_addr", r.RemoteAddr).Msg("Event stream client connected")

	go s.readPump(conn, closed)
	s.writePump(conn, sub, closed)

	s.bus.Unsubscribe(events.EventAll, sub)
	s.logger.Debug().Str("remote_addr", r.RemoteAddr).Msg("Event stream client disconnected")
}

// readPump discards client frames and watches for pongs and disconnects.
func (s *Server) readPump(conn *websocket.Conn, closed chan<- struct{}) {
	defer close(closed)

	conn.SetReadLimit(512)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Debug().Err(err).Msg("Event stream read error")
			}
			return
		}
	}
}

// writePump sends a hello frame, then events and periodic pings.
func (s *Server) writePump(conn *websocket.Conn, sub events.Subscriber, closed <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = conn.Close()
	}()

	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(streamMessage{Type: "hello", Timestamp: time.Now().Unix()}); err != nil {
		return
	}

	for {
		select {
		case <-closed:
			return
		case <-s.runner.Done():
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"))
			return
		case payload, ok := <-sub:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			msg := streamMessage{Timestamp: time.Now().Unix(), Payload: payload}
			if t, ok := payload["type"].(string); ok {
				msg.Type = t
			}
			if err := conn.WriteJSON(msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
