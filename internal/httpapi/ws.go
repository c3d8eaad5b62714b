package httpapi

import (
	"io"
	"net/http"

	"golang.org/x/net/websocket"

	"github.com/BrandonDHaskell/rollcall/internal/rollcall/notify"
)

// handleSessionWS streams a session's notifications. Clients fetch the
// attendance endpoint after connecting to catch up; nothing is replayed.
func (s *Server) handleSessionWS(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, err := s.sessions.Get(r.Context(), id); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.stream(notify.SessionChannel(id)).ServeHTTP(w, r)
}

func (s *Server) handleCameraWS(w http.ResponseWriter, r *http.Request) {
	s.stream(notify.CameraChannel).ServeHTTP(w, r)
}

func (s *Server) stream(channel string) websocket.Handler {
	return websocket.Handler(func(conn *websocket.Conn) {
		defer func() {
			_ = conn.Close()
		}()

		sub := s.hub.Subscribe(channel)
		defer sub.Close()

		// Clients only listen; reading detects the close.
		gone := make(chan struct{})
		go func() {
			defer close(gone)
			_, _ = io.Copy(io.Discard, conn)
		}()

		for {
			select {
			case <-gone:
				return
			case msg, ok := <-sub.C:
				if !ok {
					return
				}
				if err := websocket.JSON.Send(conn, msg); err != nil {
					s.logger.DebugContext(conn.Request().Context(), "websocket send failed", "channel", channel, "error", err)
					return
				}
			}
		}
	})
}
