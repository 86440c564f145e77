// Package nmadmin implements the Naming Server's SS-registration port:
// one REGISTER per connection, then close. A registration that finds a
// previously-inactive record triggers background recovery (see
// recovery.go).
package nmadmin

import (
	"net"
	"strconv"
	"strings"
	"sync"

	"github.com/docspp/docspp/internal/logger"
	"github.com/docspp/docspp/pkg/catalog"
	"github.com/docspp/docspp/pkg/ssreg"
	"github.com/docspp/docspp/pkg/wireproto"
)

// Server accepts SS registration connections and updates SSReg
// accordingly, running recovery in the background when warranted.
type Server struct {
	Catalog  *catalog.Catalog
	SSReg    *ssreg.Registry
	BindAddr string

	mu       sync.Mutex
	listener net.Listener
	wg       sync.WaitGroup
	closed   bool
}

// NewServer builds a Server bound to the given catalog and SS registry.
func NewServer(cat *catalog.Catalog, reg *ssreg.Registry, bindAddr string) *Server {
	return &Server{Catalog: cat, SSReg: reg, BindAddr: bindAddr}
}

// Bind opens the listening socket, so callers can learn the bound
// address (e.g. when BindAddr is ":0") before Serve starts accepting.
func (s *Server) Bind() error {
	ln, err := net.Listen("tcp", s.BindAddr)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()
	return nil
}

// Serve accepts connections until Stop is called, one goroutine per
// connection, each serving exactly one REGISTER then closing.
func (s *Server) Serve() error {
	s.mu.Lock()
	ln := s.listener
	s.mu.Unlock()
	if ln == nil {
		if err := s.Bind(); err != nil {
			return err
		}
		s.mu.Lock()
		ln = s.listener
		s.mu.Unlock()
	}

	for {
		conn, err := ln.Accept()
		if err != nil {
			s.mu.Lock()
			closed := s.closed
			s.mu.Unlock()
			if closed {
				return nil
			}
			return err
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handleConn(conn)
		}()
	}
}

// Stop closes the listener and waits for in-flight registrations to finish.
func (s *Server) Stop() {
	s.mu.Lock()
	s.closed = true
	ln := s.listener
	s.mu.Unlock()
	if ln != nil {
		_ = ln.Close()
	}
	s.wg.Wait()
}

// Addr returns the bound listener address, for tests.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *Server) handleConn(conn net.Conn) {
	defer conn.Close()
	c := wireproto.NewConn(conn)

	peerIP := "127.0.0.1"
	if host, _, err := net.SplitHostPort(conn.RemoteAddr().String()); err == nil && host != "" {
		peerIP = host
	}

	line, err := c.RecvLine()
	if err != nil || line == "" {
		return
	}
	if !strings.HasPrefix(line, "REGISTER ") {
		_ = c.SendLine("ERR bad register")
		return
	}

	// REGISTER <ss_id> <client_port> <admin_port> [<ip>]. The trailing
	// ip token is accepted for wire compatibility but never trusted: the
	// TCP peer address (peerIP) is always what actually reached us.
	fields := strings.Fields(strings.TrimPrefix(line, "REGISTER "))
	if len(fields) < 3 {
		_ = c.SendLine("ERR bad args")
		return
	}
	ssid := fields[0]
	clientPort, err1 := strconv.Atoi(fields[1])
	adminPort, err2 := strconv.Atoi(fields[2])
	if err1 != nil || err2 != nil {
		_ = c.SendLine("ERR bad args")
		return
	}

	rec, recovered, err := s.SSReg.Register(ssid, peerIP, clientPort, adminPort)
	if err != nil {
		_ = c.SendLine("ERR " + err.Error())
		return
	}
	_ = c.SendLine("OK REGISTERED")
	logger.Info("NM SS registered", logger.Op("REGISTER_SS"), logger.SSID(ssid))

	if recovered {
		go s.recover(rec)
	}
}
