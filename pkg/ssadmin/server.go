// Package ssadmin implements the Storage Server's admin port: one
// command per connection, the SS closing immediately after replying.
// This is the NM→SS control path (CREATE, CREATEFOLDER, DELETE, MOVE,
// CHECKLOCK, INFO, FETCH, SYNC, UNDO, CHECKPOINT, VIEWCHECKPOINT,
// REVERT, LISTCHECKPOINTS, SEARCH), distinct from pkg/ssserver's
// long-lived client data-port protocol.
package ssadmin

import (
	"net"
	"strings"
	"sync"

	"github.com/docspp/docspp/internal/logger"
	"github.com/docspp/docspp/pkg/blobstore"
	"github.com/docspp/docspp/pkg/filelock"
	"github.com/docspp/docspp/pkg/validate"
	"github.com/docspp/docspp/pkg/wireproto"
)

// Server accepts admin-port connections and serves exactly one command
// per connection before closing it.
type Server struct {
	Blobs    *blobstore.Store
	Locks    *filelock.Table
	BindAddr string

	mu       sync.Mutex
	listener net.Listener
	wg       sync.WaitGroup
	closed   bool
}

// NewServer builds a Server bound to the given blobstore and lock table.
func NewServer(blobs *blobstore.Store, locks *filelock.Table, bindAddr string) *Server {
	return &Server{Blobs: blobs, Locks: locks, BindAddr: bindAddr}
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
// connection; each handler serves exactly one command then closes.
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

// Stop closes the listener and waits for in-flight commands to finish.
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

	line, err := c.RecvLine()
	if err != nil || line == "" {
		return
	}

	switch {
	case strings.HasPrefix(line, "CREATE "):
		s.handleCreate(c, strings.TrimPrefix(line, "CREATE "))
	case strings.HasPrefix(line, "CREATEFOLDER "):
		s.handleCreateFolder(c, strings.TrimPrefix(line, "CREATEFOLDER "))
	case strings.HasPrefix(line, "DELETE "):
		s.handleDelete(c, strings.TrimPrefix(line, "DELETE "))
	case strings.HasPrefix(line, "MOVE "):
		s.handleMove(c, strings.TrimPrefix(line, "MOVE "))
	case strings.HasPrefix(line, "CHECKLOCK "):
		s.handleCheckLock(c, strings.TrimPrefix(line, "CHECKLOCK "))
	case strings.HasPrefix(line, "INFO "):
		s.handleInfo(c, strings.TrimPrefix(line, "INFO "))
	case strings.HasPrefix(line, "FETCH "):
		s.handleFetch(c, strings.TrimPrefix(line, "FETCH "))
	case strings.HasPrefix(line, "SYNC "):
		s.handleSync(c, strings.TrimPrefix(line, "SYNC "))
	case strings.HasPrefix(line, "UNDO "):
		s.handleUndo(c, strings.TrimPrefix(line, "UNDO "))
	case strings.HasPrefix(line, "CHECKPOINT "):
		s.handleCheckpoint(c, strings.TrimPrefix(line, "CHECKPOINT "))
	case strings.HasPrefix(line, "VIEWCHECKPOINT "):
		s.handleViewCheckpoint(c, strings.TrimPrefix(line, "VIEWCHECKPOINT "))
	case strings.HasPrefix(line, "REVERT "):
		s.handleRevert(c, strings.TrimPrefix(line, "REVERT "))
	case strings.HasPrefix(line, "LISTCHECKPOINTS "):
		s.handleListCheckpoints(c, strings.TrimPrefix(line, "LISTCHECKPOINTS "))
	case strings.HasPrefix(line, "SEARCH "):
		s.handleSearch(c, strings.TrimPrefix(line, "SEARCH "))
	default:
		_ = c.SendLine("ERR unknown command")
	}
}

func (s *Server) handleCreate(c *wireproto.Conn, fname string) {
	fname = strings.TrimSpace(fname)
	if !validate.Filename(fname) {
		_ = c.SendLine("ERR invalid filename (must be alphanumeric with extension, no spaces)")
		return
	}
	if err := s.Blobs.CreateEmpty(fname); err != nil {
		logger.Info("SS CREATE", logger.Op("CREATE"), logger.Filename(fname), logger.Result("err"))
		_ = c.SendLine("ERR create")
		return
	}
	logger.Info("SS CREATE", logger.Op("CREATE"), logger.Filename(fname), logger.Result("ok"))
	_ = c.SendLine("OK created")
}

func (s *Server) handleCreateFolder(c *wireproto.Conn, fname string) {
	fname = strings.TrimSpace(fname)
	if fname == "" {
		_ = c.SendLine("ERR folder name required")
		return
	}
	if err := s.Blobs.CreateDirectory(fname); err != nil {
		logger.Info("SS CREATEFOLDER", logger.Op("CREATEFOLDER"), logger.Filename(fname), logger.Result("err"))
		_ = c.SendLine("ERR create")
		return
	}
	logger.Info("SS CREATEFOLDER", logger.Op("CREATEFOLDER"), logger.Filename(fname), logger.Result("ok"))
	_ = c.SendLine("OK created")
}

func (s *Server) handleDelete(c *wireproto.Conn, fname string) {
	fname = strings.TrimSpace(fname)
	if err := s.Blobs.Delete(fname); err != nil {
		logger.Info("SS DELETE", logger.Op("DELETE"), logger.Filename(fname), logger.Result("err"))
		_ = c.SendLine("ERR delete")
		return
	}
	logger.Info("SS DELETE", logger.Op("DELETE"), logger.Filename(fname), logger.Result("ok"))
	_ = c.SendLine("OK deleted")
}

func (s *Server) handleMove(c *wireproto.Conn, args string) {
	fields := strings.Fields(args)
	if len(fields) != 2 {
		_ = c.SendLine("ERR bad args")
		return
	}
	if err := s.Blobs.Move(fields[0], fields[1]); err != nil {
		logger.Info("SS MOVE", logger.Op("MOVE"), logger.Filename(fields[0]), logger.Result("err"))
		_ = c.SendLine("ERR move failed")
		return
	}
	logger.Info("SS MOVE", logger.Op("MOVE"), logger.Filename(fields[0]), logger.Result("ok"))
	_ = c.SendLine("OK moved")
}

func (s *Server) handleCheckLock(c *wireproto.Conn, fname string) {
	fname = strings.TrimSpace(fname)
	if s.Locks.IsLocked(fname) {
		_ = c.SendLine("ERR file locked")
		return
	}
	_ = c.SendLine("OK not locked")
}

func (s *Server) handleInfo(c *wireproto.Conn, fname string) {
	fname = strings.TrimSpace(fname)
	size, words, chars, err := s.Blobs.Stats(fname)
	if err != nil {
		logger.Info("SS INFO", logger.Op("INFO"), logger.Filename(fname), logger.Result("err"))
		_ = c.SendLine("SIZE 0 WORDS 0 CHARS 0")
		return
	}
	logger.Info("SS INFO", logger.Op("INFO"), logger.Filename(fname), logger.Result("ok"))
	_ = c.SendLinef("SIZE %d WORDS %d CHARS %d", size, words, chars)
}

func (s *Server) handleFetch(c *wireproto.Conn, fname string) {
	fname = strings.TrimSpace(fname)
	if !s.Blobs.Exists(fname) {
		logger.Info("SS FETCH", logger.Op("FETCH"), logger.Filename(fname), logger.Result("err"))
		_ = c.SendLine("ERR not found")
		return
	}
	content, err := s.Blobs.ReadLive(fname)
	if err != nil {
		_ = c.SendLine("ERR not found")
		return
	}
	logger.Info("SS FETCH", logger.Op("FETCH"), logger.Filename(fname), logger.Result("ok"))
	_ = c.SendLine("BEGIN")
	if content != "" {
		for _, line := range strings.Split(content, "\n") {
			_ = c.SendLine("L " + line)
		}
	}
	_ = c.SendLine("END")
}

// handleSync receives content lines (terminated by END) from the admin
// channel and writes them as filename's live bytes, used during
// recovery.
func (s *Server) handleSync(c *wireproto.Conn, fname string) {
	fname = strings.TrimSpace(fname)
	if fname == "" {
		_ = c.SendLine("ERR bad args")
		return
	}
	_ = c.SendLine("OK")

	lines, err := c.RecvBlock()
	if err != nil {
		return
	}
	content := strings.Join(lines, "\n")
	if err := s.Blobs.WriteLive(fname, content); err != nil {
		logger.Info("SS SYNC", logger.Op("SYNC"), logger.Filename(fname), logger.Result("err"))
		_ = c.SendLine("ERR sync failed")
		return
	}
	logger.Info("SS SYNC", logger.Op("SYNC"), logger.Filename(fname), logger.Result("ok"))
	_ = c.SendLine("OK synced")
}

func (s *Server) handleUndo(c *wireproto.Conn, fname string) {
	fname = strings.TrimSpace(fname)
	if err := s.Blobs.Undo(fname); err != nil {
		logger.Info("SS UNDO", logger.Op("UNDO"), logger.Filename(fname), logger.Result("err"))
		_ = c.SendLine("ERR undo")
		return
	}
	logger.Info("SS UNDO", logger.Op("UNDO"), logger.Filename(fname), logger.Result("ok"))
	_ = c.SendLine("OK undo")
}

func (s *Server) handleCheckpoint(c *wireproto.Conn, args string) {
	fields := strings.Fields(args)
	if len(fields) != 2 {
		_ = c.SendLine("ERR bad args")
		return
	}
	if err := s.Blobs.Checkpoint(fields[0], fields[1]); err != nil {
		logger.Info("SS CHECKPOINT", logger.Op("CHECKPOINT"), logger.Filename(fields[0]), logger.Result("err"))
		_ = c.SendLine("ERR not found")
		return
	}
	logger.Info("SS CHECKPOINT", logger.Op("CHECKPOINT"), logger.Filename(fields[0]), logger.Result("ok"))
	_ = c.SendLine("OK checkpoint created")
}

func (s *Server) handleViewCheckpoint(c *wireproto.Conn, args string) {
	fields := strings.Fields(args)
	if len(fields) != 2 {
		_ = c.SendLine("ERR bad args")
		return
	}
	content, err := s.Blobs.ViewCheckpoint(fields[0], fields[1])
	if err != nil {
		_ = c.SendLine("ERR not found")
		return
	}
	_ = c.SendLine("OK")
	_ = c.SendLine(content)
}

func (s *Server) handleRevert(c *wireproto.Conn, args string) {
	fields := strings.Fields(args)
	if len(fields) != 2 {
		_ = c.SendLine("ERR bad args")
		return
	}
	if err := s.Blobs.Revert(fields[0], fields[1]); err != nil {
		logger.Info("SS REVERT", logger.Op("REVERT"), logger.Filename(fields[0]), logger.Result("err"))
		_ = c.SendLine("ERR not found")
		return
	}
	logger.Info("SS REVERT", logger.Op("REVERT"), logger.Filename(fields[0]), logger.Result("ok"))
	_ = c.SendLine("OK reverted")
}

func (s *Server) handleListCheckpoints(c *wireproto.Conn, fname string) {
	fname = strings.TrimSpace(fname)
	tags, err := s.Blobs.ListCheckpoints(fname)
	if err != nil {
		_ = c.SendLine("ERR bad args")
		return
	}
	logger.Info("SS LISTCHECKPOINTS", logger.Op("LISTCHECKPOINTS"), logger.Filename(fname), logger.Result("ok"))
	_ = c.SendLine("CHECKPOINTS:")
	for _, tag := range tags {
		_ = c.SendLine("--> " + tag)
	}
	_ = c.SendLine("END")
}

func (s *Server) handleSearch(c *wireproto.Conn, keyword string) {
	keyword = strings.TrimSpace(keyword)
	matches, err := s.Blobs.Search(keyword)
	if err != nil {
		_ = c.SendLine("ERR bad args")
		return
	}
	logger.Info("SS SEARCH", logger.Op("SEARCH"), logger.Result("ok"), logger.Count(len(matches)))
	var lines []string
	for _, m := range matches {
		lines = append(lines, "--> "+m)
	}
	_ = c.SendLine("SEARCH RESULTS:")
	_ = c.SendBlock(lines)
}
