package server

import (
	"bufio"
	"net"
	"sync"

	"github.com/sirupsen/logrus"
)

// outboundBuffer bounds the per-session send queue. A client that stops
// reading loses lines rather than stalling the game.
const outboundBuffer = 64

// Session is one connected client: a blocking line-read loop feeding the
// dispatcher, and a writer goroutine draining the outbound queue so the
// coordinator never blocks on a slow connection. The name is set by the
// CONNECT handshake and never changes afterward.
type Session struct {
	srv  *Server
	conn net.Conn
	log  *logrus.Entry

	out chan string

	mu     sync.Mutex // guards the closed flag
	closed bool

	name  string
	isBot bool
}

func newSession(srv *Server, conn net.Conn) *Session {
	return &Session{
		srv:  srv,
		conn: conn,
		log:  srv.log.WithField("remote", conn.RemoteAddr().String()),
		out:  make(chan string, outboundBuffer),
	}
}

// run reads lines until the connection dies, then detaches the session.
// Runs on its own goroutine, one per connection.
func (s *Session) run() {
	go s.writeLoop()
	scanner := bufio.NewScanner(s.conn)
	for scanner.Scan() {
		s.srv.dispatch(s, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		s.log.WithError(err).Debug("session read failed")
	}
	s.srv.drop(s)
}

// writeLoop delivers queued lines in order. A write failure closes the
// connection; the read loop then detaches the session. The game itself
// keeps running without the dropped player.
func (s *Session) writeLoop() {
	for line := range s.out {
		if _, err := s.conn.Write([]byte(line + "\n")); err != nil {
			s.log.WithError(err).Warn("session write failed, dropping connection")
			s.close()
			return
		}
	}
}

// send queues one line for the client. Never blocks; when the queue is
// full the line is dropped and logged.
func (s *Session) send(line string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	select {
	case s.out <- line:
	default:
		s.log.WithField("line", line).Warn("outbound queue full, line dropped")
	}
}

// close shuts the connection down. Idempotent.
func (s *Session) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.out)
	s.conn.Close()
}
