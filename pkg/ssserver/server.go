// Package ssserver implements the Storage Server's client-facing data
// port: READ, STREAM, and the WRITE_BEGIN/WRITE_UPDATE/WRITE_END
// sentence-lock protocol. Each connection gets an opaque session token
// (a uuid) that identifies its sentence locks and swap files; locks and
// swap files left behind by a dropped connection are reaped when the
// handler returns.
package ssserver

import (
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/docspp/docspp/internal/logger"
	"github.com/docspp/docspp/pkg/blobstore"
	"github.com/docspp/docspp/pkg/dfserrors"
	"github.com/docspp/docspp/pkg/filelock"
	"github.com/docspp/docspp/pkg/sentence"
	"github.com/docspp/docspp/pkg/wireproto"
)

// streamWordDelay paces STREAM output at one word per 100ms for
// cooperative throttling.
const streamWordDelay = 100 * time.Millisecond

// Server accepts client-port connections and serves the data-path
// protocol against a blobstore.Store and a filelock.Table.
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
// connection. It binds the listening socket first if Bind was not
// already called.
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

// Stop closes the listener and waits for in-flight connections to
// finish their current command.
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
	c := wireproto.NewConn(conn)
	defer conn.Close()

	session := uuid.NewString()
	var writeFiles []string // filenames this session has an active WRITE_BEGIN on

	defer func() {
		for _, f := range writeFiles {
			s.Locks.ReleaseSession(f, session)
			_ = s.Blobs.DiscardSwap(f, session)
		}
	}()

	if err := c.SendLine("WELCOME SS CLIENT"); err != nil {
		return
	}

	for {
		line, err := c.RecvLine()
		if err != nil {
			return
		}
		if line == "" {
			continue
		}
		switch {
		case strings.HasPrefix(line, "READ "):
			s.handleRead(c, strings.TrimPrefix(line, "READ "))
		case strings.HasPrefix(line, "STREAM "):
			s.handleStream(c, strings.TrimPrefix(line, "STREAM "))
		case strings.HasPrefix(line, "WRITE_BEGIN "):
			fname := s.handleWriteBegin(c, strings.TrimPrefix(line, "WRITE_BEGIN "), session)
			if fname != "" {
				writeFiles = appendUnique(writeFiles, fname)
			}
		case strings.HasPrefix(line, "WRITE_UPDATE "):
			s.handleWriteUpdate(c, strings.TrimPrefix(line, "WRITE_UPDATE "), session)
		case strings.HasPrefix(line, "WRITE_END"):
			s.handleWriteEnd(c, strings.TrimSpace(strings.TrimPrefix(line, "WRITE_END")), session)
		case line == "QUIT":
			_ = c.SendLine("BYE")
			return
		default:
			_ = c.SendLine("ERR unknown")
		}
	}
}

func appendUnique(list []string, v string) []string {
	for _, x := range list {
		if x == v {
			return list
		}
	}
	return append(list, v)
}

func (s *Server) handleRead(c *wireproto.Conn, fname string) {
	if !s.Blobs.Exists(fname) {
		logger.Info("SS READ", logger.Op("READ"), logger.Filename(fname), logger.Result("err"))
		_ = c.SendLine("ERR file not found")
		return
	}
	content, err := s.Blobs.ReadLive(fname)
	if err != nil {
		_ = c.SendLine("ERR file not found")
		return
	}
	_ = c.SendLine("OK")
	if content != "" {
		for _, line := range strings.Split(content, "\n") {
			_ = c.SendLine(line)
		}
	}
	_ = c.SendLine("END")
	logger.Info("SS READ", logger.Op("READ"), logger.Filename(fname), logger.Result("ok"))
}

func (s *Server) handleStream(c *wireproto.Conn, fname string) {
	content, err := s.Blobs.ReadLive(fname)
	if err != nil || !s.Blobs.Exists(fname) {
		_ = c.SendLine("ERR not found")
		return
	}
	_ = c.SendLine("OK")
	for _, word := range strings.Fields(content) {
		if err := c.SendLine(word); err != nil {
			return
		}
		time.Sleep(streamWordDelay)
	}
	_ = c.SendLine("STOP")
	logger.Info("SS STREAM", logger.Op("STREAM"), logger.Filename(fname), logger.Result("ok"))
}

func (s *Server) handleWriteBegin(c *wireproto.Conn, args, session string) (filename string) {
	fname, sidx, ok := parseFileAndInt(args)
	if !ok || sidx < 0 {
		_ = c.SendLine("ERR bad args")
		return ""
	}

	committed, err := s.Blobs.ReadLive(fname)
	if err != nil {
		_ = c.SendLine("ERR system error")
		return ""
	}
	maxAllowed := sentence.MaxAllowedIndex(committed)
	if sidx > maxAllowed {
		_ = c.SendLinef("ERR: Sentence index out of range (max: %d)", maxAllowed)
		return ""
	}

	if err := s.Locks.Acquire(fname, sidx, session); err != nil {
		if dfserrors.Is(err, dfserrors.SentenceLocked) {
			_ = c.SendLine("ERR sentence locked")
		} else {
			_ = c.SendLine("ERR " + err.Error())
		}
		return ""
	}

	if err := s.Blobs.BeginWrite(fname, session); err != nil {
		s.Locks.Release(fname, sidx, session)
		_ = c.SendLine("ERR system error")
		return ""
	}

	_ = c.SendLinef("OK lock %s %d", fname, sidx)
	logger.Info("SS WRITE_BEGIN", logger.Op("WRITE_BEGIN"), logger.Filename(fname), logger.SentenceIdx(sidx), logger.SessionID(session))
	return fname
}

func (s *Server) handleWriteUpdate(c *wireproto.Conn, args, session string) {
	fname, sidx, widx, content, ok := parseWriteUpdateArgs(args)
	if !ok {
		_ = c.SendLine("ERR bad args")
		return
	}
	if !s.Locks.Owns(fname, sidx, session) {
		_ = c.SendLine("ERR not locked by this session")
		return
	}

	swapText, err := s.Blobs.ReadSwap(fname, session)
	if err != nil {
		_ = c.SendLine("ERR system error")
		return
	}
	sents := sentence.Split(swapText)
	for sidx >= len(sents) {
		sents = append(sents, "")
	}

	words := sentence.Words(sents[sidx])
	if widx < 0 {
		_ = c.SendLine("ERR: Word index cannot be negative")
		return
	}
	maxWordIndex := len(words) + 1
	if widx > maxWordIndex {
		_ = c.SendLinef("ERR: Word index out of range (max: %d)", maxWordIndex)
		return
	}

	sents[sidx] = sentence.InsertWord(sents[sidx], widx, content)
	rebuilt := sentence.Rebuild(sents)
	if err := s.Blobs.WriteSwap(fname, session, rebuilt); err != nil {
		_ = c.SendLine("ERR system error")
		return
	}
	_ = c.SendLine("OK updated")
	logger.Info("SS WRITE_UPDATE", logger.Op("WRITE_UPDATE"), logger.Filename(fname), logger.SentenceIdx(sidx), logger.WordIdx(widx))
}

func (s *Server) handleWriteEnd(c *wireproto.Conn, args, session string) {
	fname, sidx, ok := parseFileAndInt(args)
	if !ok {
		_ = c.SendLine("ERR bad args")
		return
	}
	if !s.Locks.Owns(fname, sidx, session) {
		_ = c.SendLine("ERR not locked by this session")
		return
	}
	if err := s.Blobs.EndWrite(fname, session); err != nil {
		_ = c.SendLine("ERR system error")
		return
	}
	s.Locks.Release(fname, sidx, session)
	_ = c.SendLine("OK end")
	logger.Info("SS WRITE_END", logger.Op("WRITE_END"), logger.Filename(fname), logger.SentenceIdx(sidx))
}

func parseFileAndInt(args string) (fname string, n int, ok bool) {
	fields := strings.Fields(args)
	if len(fields) < 2 {
		return "", 0, false
	}
	v, err := strconv.Atoi(fields[1])
	if err != nil {
		return "", 0, false
	}
	return fields[0], v, true
}

// parseWriteUpdateArgs parses "<filename> <sidx> <widx> <content...>";
// content may itself contain spaces, so it is everything after the
// third field.
func parseWriteUpdateArgs(args string) (fname string, sidx, widx int, content string, ok bool) {
	parts := strings.SplitN(strings.TrimSpace(args), " ", 4)
	if len(parts) < 4 {
		return "", 0, 0, "", false
	}
	s, err1 := strconv.Atoi(parts[1])
	w, err2 := strconv.Atoi(parts[2])
	if err1 != nil || err2 != nil {
		return "", 0, 0, "", false
	}
	return parts[0], s, w, parts[3], true
}
