package server

import (
	"net/http"

	"github.com/coder/websocket"
)

// WSHandler exposes the same line protocol over WebSocket text frames.
// The accepted connection is wrapped as a net.Conn and attached like any
// TCP session, so browser clients and raw sockets share one code path.
func (s *Server) WSHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			InsecureSkipVerify: true,
		})
		if err != nil {
			s.log.WithError(err).Warn("websocket accept failed")
			return
		}
		s.Attach(websocket.NetConn(r.Context(), conn, websocket.MessageText))
	})
}

// ServeWS runs an HTTP listener that upgrades every request on /ws.
func (s *Server) ServeWS(addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/ws", s.WSHandler())
	s.log.WithField("addr", addr).Info("websocket listening")
	return http.ListenAndServe(addr, mux)
}
