package server

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"radiation.space/internal/flux"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// WebSocket upgrader with permissive origin check for cross-origin dashboards
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// handleFluxStream sends the current reading on connect and every refreshed
// reading after that until the client goes away.
func (s *Server) handleFluxStream(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	s.metrics.StreamClientConnected()
	defer s.metrics.StreamClientDisconnected()

	updates := s.flux.Subscribe()
	defer s.flux.Unsubscribe(updates)

	log := s.log.With().Str("remote", r.RemoteAddr).Logger()
	log.Debug().Msg("Flux stream client connected")

	// The reader only handles control frames; it ends when the peer closes.
	done := make(chan struct{})
	go func() {
		defer close(done)
		conn.SetReadLimit(512)
		conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	if err := s.sendReading(conn, s.flux.Flux(r.Context())); err != nil {
		log.Debug().Err(err).Msg("Flux stream write failed")
		return
	}

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			log.Debug().Msg("Flux stream client disconnected")
			return
		case reading, ok := <-updates:
			if !ok {
				return
			}
			if err := s.sendReading(conn, reading); err != nil {
				log.Debug().Err(err).Msg("Flux stream write failed")
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (s *Server) sendReading(conn *websocket.Conn, r flux.Reading) error {
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(newFluxResponse(r))
}
