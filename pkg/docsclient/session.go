// Package docsclient implements the interactive command-line client:
// a thin NM connection plus a READ/STREAM/WRITE-aware REPL.
package docsclient

import (
	"fmt"
	"net"
	"strconv"

	"github.com/docspp/docspp/pkg/wireproto"
)

// Session holds the client's connection to the Naming Server plus the
// login identity negotiated over it.
type Session struct {
	NM        *wireproto.Conn
	Username  string
	LocalPort int
	NMHost    string
	NMPort    int
}

// Dial connects to the Naming Server at host:port, recording the
// client's local endpoint so the REPL can report it to the user.
func Dial(host string, port int) (*Session, error) {
	conn, err := wireproto.Dial(host, port)
	if err != nil {
		return nil, fmt.Errorf("connect to naming server: %w", err)
	}
	sess := &Session{NM: conn, NMHost: host, NMPort: port}
	if _, portStr, err := net.SplitHostPort(conn.LocalAddr().String()); err == nil {
		if p, err := strconv.Atoi(portStr); err == nil {
			sess.LocalPort = p
		}
	}
	return sess, nil
}

// Welcome reads the single greeting line the Naming Server sends right
// after accept, before any LOGIN.
func (s *Session) Welcome() (string, error) {
	return s.NM.RecvLine()
}

// Login sends LOGIN <username> <local_port> and returns the NM's reply
// line verbatim.
func (s *Session) Login(username string) (string, error) {
	s.Username = username
	if err := s.NM.SendLinef("LOGIN %s %d", username, s.LocalPort); err != nil {
		return "", err
	}
	return s.NM.RecvLine()
}

// Close releases the NM connection.
func (s *Session) Close() error {
	return s.NM.Close()
}
