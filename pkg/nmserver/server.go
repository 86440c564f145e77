// Package nmserver implements the Naming Server's client-facing command
// port: one long-lived connection per client, a LOGIN-gated session, and
// the full line-command dispatch.
package nmserver

import (
	"context"
	"fmt"
	"net"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/docspp/docspp/internal/istime"
	"github.com/docspp/docspp/pkg/catalog"
	"github.com/docspp/docspp/pkg/dfserrors"
	"github.com/docspp/docspp/pkg/ssreg"
	"github.com/docspp/docspp/pkg/validate"
	"github.com/docspp/docspp/pkg/wireproto"
)

// Server accepts client-port connections and dispatches every command
// in the protocol against Catalog and SSReg.
type Server struct {
	Catalog      *catalog.Catalog
	SSReg        *ssreg.Registry
	BindAddr     string
	ExecAllowAll bool

	mu       sync.Mutex
	listener net.Listener
	wg       sync.WaitGroup
	closed   bool
}

// NewServer builds a Server bound to the given catalog and SS registry.
func NewServer(cat *catalog.Catalog, reg *ssreg.Registry, bindAddr string, execAllowAll bool) *Server {
	return &Server{Catalog: cat, SSReg: reg, BindAddr: bindAddr, ExecAllowAll: execAllowAll}
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
// connection, each serving commands until QUIT or the peer disconnects.
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

// Stop closes the listener and waits for in-flight connections to finish.
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

// session holds the per-connection state: the logged-in username (empty
// until LOGIN) and the client's advertised data port.
type session struct {
	user       string
	clientIP   string
	clientPort int
}

func (s *Server) handleConn(conn net.Conn) {
	defer conn.Close()
	c := wireproto.NewConn(conn)

	sess := &session{}
	if host, _, err := net.SplitHostPort(conn.RemoteAddr().String()); err == nil {
		sess.clientIP = host
	}

	if err := c.SendLine("WELCOME Docs++ NM. Please LOGIN <username>"); err != nil {
		return
	}

	for {
		line, err := c.RecvLine()
		if err != nil || line == "" {
			return
		}
		if s.dispatch(c, sess, line) {
			return
		}
	}
}

// dispatch handles one command line, returning true when the connection
// should close (QUIT or an unrecoverable framing error).
func (s *Server) dispatch(c *wireproto.Conn, sess *session, line string) bool {
	switch {
	case strings.HasPrefix(line, "LOGIN "):
		s.handleLogin(c, sess, strings.TrimPrefix(line, "LOGIN "))
	case strings.HasPrefix(line, "VIEW REQUEST"), strings.HasPrefix(line, "VIEWREQUEST"),
		strings.HasPrefix(line, "LISTREQUESTS"), strings.HasPrefix(line, "VIEWREQUESTS"):
		s.handleListRequests(c, sess, line)
	case line == "VIEW" || strings.HasPrefix(line, "VIEW -"):
		s.handleView(c, sess, strings.TrimPrefix(strings.TrimPrefix(line, "VIEW"), " "))
	case strings.HasPrefix(line, "CREATEFOLDER "):
		s.handleCreateFolder(c, sess, strings.TrimPrefix(line, "CREATEFOLDER "))
	case strings.HasPrefix(line, "CREATE "):
		s.handleCreate(c, sess, strings.TrimPrefix(line, "CREATE "))
	case strings.HasPrefix(line, "READ "):
		s.handleRead(c, sess, strings.TrimPrefix(line, "READ "))
	case strings.HasPrefix(line, "WRITE "):
		s.handleWrite(c, sess, strings.TrimPrefix(line, "WRITE "))
	case strings.HasPrefix(line, "STREAM "):
		s.handleStream(c, sess, strings.TrimPrefix(line, "STREAM "))
	case strings.HasPrefix(line, "EXEC "):
		s.handleExec(c, sess, strings.TrimPrefix(line, "EXEC "))
	case strings.HasPrefix(line, "INFO "):
		s.handleInfo(c, sess, strings.TrimPrefix(line, "INFO "))
	case strings.HasPrefix(line, "DELETE "):
		s.handleDelete(c, sess, strings.TrimPrefix(line, "DELETE "))
	case strings.HasPrefix(line, "UNDO "):
		s.handleUndo(c, sess, strings.TrimPrefix(line, "UNDO "))
	case strings.HasPrefix(line, "ADDACCESS "):
		s.handleAddAccess(c, sess, strings.TrimPrefix(line, "ADDACCESS "))
	case strings.HasPrefix(line, "REMACCESS "):
		s.handleRemAccess(c, sess, strings.TrimPrefix(line, "REMACCESS "))
	case strings.HasPrefix(line, "CHECKPOINT "):
		s.handleCheckpoint(c, sess, strings.TrimPrefix(line, "CHECKPOINT "))
	case strings.HasPrefix(line, "VIEWCHECKPOINT "):
		s.handleViewCheckpointCmd(c, sess, strings.TrimPrefix(line, "VIEWCHECKPOINT "))
	case strings.HasPrefix(line, "REVERT "):
		s.handleRevert(c, sess, strings.TrimPrefix(line, "REVERT "))
	case strings.HasPrefix(line, "LISTCHECKPOINTS "):
		s.handleListCheckpoints(c, sess, strings.TrimPrefix(line, "LISTCHECKPOINTS "))
	case strings.HasPrefix(line, "MOVE "):
		s.handleMove(c, sess, strings.TrimPrefix(line, "MOVE "))
	case strings.HasPrefix(line, "VIEWFOLDER "):
		s.handleViewFolder(c, strings.TrimSpace(strings.TrimPrefix(line, "VIEWFOLDER ")))
	case line == "LIST":
		s.handleList(c)
	case strings.HasPrefix(line, "REQUESTACCESS "):
		s.handleRequestAccess(c, sess, strings.TrimPrefix(line, "REQUESTACCESS "))
	case strings.HasPrefix(line, "APPROVE_REQUEST "):
		s.handleApproveRequest(c, sess, strings.TrimPrefix(line, "APPROVE_REQUEST "))
	case strings.HasPrefix(line, "SEARCH "):
		s.handleSearch(c, sess, strings.TrimPrefix(line, "SEARCH "))
	case line == "QUIT":
		_ = c.SendLine("BYE")
		return true
	default:
		_ = c.SendLine("ERR unknown command")
	}
	return false
}

// errLine renders err as a wire reply line: a *dfserrors.DFSError uses
// its own code-specific message, anything else is wrapped as a plain
// "ERR ..." line.
func errLine(err error) string {
	if dfe, ok := err.(*dfserrors.DFSError); ok {
		return dfe.WireLine()
	}
	return "ERR " + err.Error()
}

func (s *Server) requireLogin(c *wireproto.Conn, sess *session) bool {
	if sess.user == "" {
		_ = c.SendLine("ERR please LOGIN first")
		return false
	}
	return true
}

func (s *Server) handleLogin(c *wireproto.Conn, sess *session, arg string) {
	fields := strings.Fields(arg)
	if len(fields) == 0 {
		_ = c.SendLine("ERR username required")
		return
	}
	user := fields[0]
	if err := s.Catalog.LoginUser(user); err != nil {
		_ = c.SendLine(errLine(err))
		return
	}
	sess.user = user
	if len(fields) >= 2 {
		if port, err := strconv.Atoi(fields[1]); err == nil && port > 0 && port < 65536 {
			sess.clientPort = port
		}
	}
	_ = c.SendLinef("OK LOGGED IN %s", user)
}

func (s *Server) handleList(c *wireproto.Conn) {
	_ = c.SendLine("USERS:")
	var lines []string
	for _, u := range s.Catalog.Users() {
		lines = append(lines, "--> "+u)
	}
	_ = c.SendBlock(lines)
}

// noActiveSSMessage picks between two distinct "no storage server"
// replies: one for an empty registry, one for a registry that has
// members but none currently active.
func (s *Server) noActiveSSMessage() string {
	if len(s.SSReg.All()) == 0 {
		return "ERR no storage server available"
	}
	return "ERR no active storage server"
}

func (s *Server) handleCreate(c *wireproto.Conn, sess *session, arg string) {
	if !s.requireLogin(c, sess) {
		return
	}
	fname := strings.TrimSpace(arg)
	if !validate.Filename(fname) {
		_ = c.SendLine("ERR invalid filename (must be alphanumeric with extension, no spaces)")
		return
	}
	if _, ok := s.Catalog.Get(fname); ok {
		_ = c.SendLine(dfserrors.New(dfserrors.FileExists).WireLine())
		return
	}
	rec, ok := s.pickCreateTarget()
	if !ok {
		_ = c.SendLine(s.noActiveSSMessage())
		return
	}
	resp, err := adminCmd(rec, "CREATE "+fname)
	if err != nil {
		_ = c.SendLine("ERR cannot reach storage server")
		return
	}
	if !strings.HasPrefix(resp, "OK") {
		_ = c.SendLine(resp)
		return
	}
	if _, err := s.Catalog.Create(fname, sess.user, false, rec.IP, rec.ClientPort); err != nil {
		_ = c.SendLine(errLine(err))
		return
	}
	s.replicateAsync(rec.SSID, "CREATE "+fname)
	_ = c.SendLine("OK File Created Successfully!")
}

func (s *Server) handleCreateFolder(c *wireproto.Conn, sess *session, arg string) {
	if !s.requireLogin(c, sess) {
		return
	}
	fname := strings.TrimSpace(arg)
	if fname == "" {
		_ = c.SendLine("ERR folder name required")
		return
	}
	if _, ok := s.Catalog.Get(fname); ok {
		_ = c.SendLine("ERR folder exists")
		return
	}
	rec, ok := s.pickCreateTarget()
	if !ok {
		_ = c.SendLine(s.noActiveSSMessage())
		return
	}
	resp, err := adminCmd(rec, "CREATEFOLDER "+fname)
	if err != nil {
		_ = c.SendLine("ERR cannot reach storage server")
		return
	}
	if !strings.HasPrefix(resp, "OK") {
		_ = c.SendLine(resp)
		return
	}
	if _, err := s.Catalog.Create(fname, sess.user, true, rec.IP, rec.ClientPort); err != nil {
		_ = c.SendLine(errLine(err))
		return
	}
	s.replicateAsync(rec.SSID, "CREATEFOLDER "+fname)
	_ = c.SendLine("OK Folder created successfully!")
}

func (s *Server) handleRead(c *wireproto.Conn, sess *session, arg string) {
	fname := strings.TrimSpace(arg)
	e, ok := s.Catalog.Get(fname)
	if !ok {
		_ = c.SendLine(dfserrors.New(dfserrors.FileNotFound).WireLine())
		return
	}
	if sess.user == "" || !e.CanRead(sess.user) {
		_ = c.SendLine(dfserrors.New(dfserrors.NoAccess).WireLine())
		return
	}
	s.Catalog.Touch(fname)
	_ = c.SendLinef("SS %s %d", e.SSIP, e.SSClientPort)
}

func (s *Server) handleStream(c *wireproto.Conn, sess *session, arg string) {
	s.handleRead(c, sess, arg)
}

func (s *Server) handleWrite(c *wireproto.Conn, sess *session, arg string) {
	if !s.requireLogin(c, sess) {
		return
	}
	fields := strings.Fields(arg)
	if len(fields) < 2 {
		_ = c.SendLine("ERR bad args")
		return
	}
	fname := fields[0]
	if _, err := strconv.Atoi(fields[1]); err != nil {
		_ = c.SendLine("ERR bad args")
		return
	}
	e, ok := s.Catalog.Get(fname)
	if !ok {
		_ = c.SendLine(dfserrors.New(dfserrors.FileNotFound).WireLine())
		return
	}
	if !e.CanWrite(sess.user) {
		_ = c.SendLine(dfserrors.New(dfserrors.NoWriteAccess).WireLine())
		return
	}
	s.Catalog.TouchModified(fname)
	_ = c.SendLinef("SS %s %d", e.SSIP, e.SSClientPort)
}

// handleExec fetches the file from its SS, gates it against the command
// allow-list, then runs it and streams the output. Read access is
// enough to EXEC a file; writer status is deliberately not required.
func (s *Server) handleExec(c *wireproto.Conn, sess *session, arg string) {
	fname := strings.TrimSpace(arg)
	e, ok := s.Catalog.Get(fname)
	if !ok {
		_ = c.SendLine(dfserrors.New(dfserrors.FileNotFound).WireLine())
		return
	}
	if sess.user == "" || !e.CanRead(sess.user) {
		_ = c.SendLine(dfserrors.New(dfserrors.NoAccess).WireLine())
		return
	}
	rec, ok := s.SSReg.RouteFor(e.SSIP, e.SSClientPort)
	if !ok {
		_ = c.SendLine("ERR storage server unavailable")
		return
	}
	header, lines, err := adminCmdBlock(rec, "FETCH "+fname)
	if err != nil {
		_ = c.SendLine("ERR SS not reachable")
		return
	}
	if header != "BEGIN" {
		_ = c.SendLine(header)
		return
	}
	var script []string
	for _, l := range lines {
		script = append(script, strings.TrimPrefix(l, "L "))
	}
	content := strings.Join(script, "\n")
	if !execCommandAllowed(content, s.ExecAllowAll) {
		_ = c.SendLine("ERR EXEC blocked; allowed commands: echo/ls/pwd/dir/type (start NM with --exec-allow to override)")
		return
	}
	_ = c.SendLine("OK")
	out, _ := runExecScript(context.Background(), content)
	_ = c.SendBlock(out)
}

func (s *Server) handleInfo(c *wireproto.Conn, sess *session, arg string) {
	fname := strings.TrimSpace(arg)
	e, ok := s.Catalog.Get(fname)
	if !ok {
		_ = c.SendLine(dfserrors.New(dfserrors.FileNotFound).WireLine())
		return
	}
	if sess.user == "" || !e.CanRead(sess.user) {
		_ = c.SendLine(dfserrors.New(dfserrors.NoAccess).WireLine())
		return
	}
	s.Catalog.Touch(fname)
	size, words, chars := s.ssInfo(e)

	lines := []string{
		"--> File: " + e.Filename,
		"--> Owner: " + e.Owner,
		"--> Created: " + istime.Format(e.CreatedTime),
		"--> Last Modified: " + istime.Format(e.ModifiedTime),
		fmt.Sprintf("--> Size: %d bytes", size),
		fmt.Sprintf("--> Words: %d", words),
		fmt.Sprintf("--> Chars: %d", chars),
		fmt.Sprintf("--> Last Accessed: %s by %s", istime.Format(e.LastAccessTime), sess.user),
		fmt.Sprintf("--> Access: %s (RW)", e.Owner),
	}
	var readers, writers []string
	for u := range e.Readers {
		readers = append(readers, u)
	}
	for u := range e.Writers {
		writers = append(writers, u)
	}
	sort.Strings(readers)
	sort.Strings(writers)
	for _, u := range readers {
		lines = append(lines, fmt.Sprintf("--> Access: %s (R)", u))
	}
	for _, u := range writers {
		lines = append(lines, fmt.Sprintf("--> Access: %s (RW)", u))
	}
	_ = c.SendBlock(lines)
}

func (s *Server) handleDelete(c *wireproto.Conn, sess *session, arg string) {
	if !s.requireLogin(c, sess) {
		return
	}
	fname := strings.TrimSpace(arg)
	if fname == "" {
		_ = c.SendLine("ERR filename required")
		return
	}
	e, ok := s.Catalog.Get(fname)
	if !ok {
		_ = c.SendLine(dfserrors.New(dfserrors.FileNotFound).WireLine())
		return
	}
	if !e.IsOwner(sess.user) {
		_ = c.SendLine("ERR only owner can delete")
		return
	}
	rec, ok := s.SSReg.RouteFor(e.SSIP, e.SSClientPort)
	if !ok {
		_ = c.SendLine("ERR storage server for file not found or inactive")
		return
	}
	lockResp, err := adminCmd(rec, "CHECKLOCK "+fname)
	if err != nil {
		_ = c.SendLine("ERR SS not reachable")
		return
	}
	if strings.HasPrefix(lockResp, "ERR") {
		_ = c.SendLine("ERR file is locked for writing")
		return
	}
	resp, err := adminCmd(rec, "DELETE "+fname)
	if err != nil {
		_ = c.SendLine("ERR SS no response")
		return
	}
	if !strings.HasPrefix(resp, "OK") {
		_ = c.SendLine(resp)
		return
	}
	if err := s.Catalog.Delete(fname); err != nil {
		_ = c.SendLine(errLine(err))
		return
	}
	_ = c.SendLinef("OK File '%s' deleted successfully!", fname)
}

func (s *Server) handleUndo(c *wireproto.Conn, sess *session, arg string) {
	if !s.requireLogin(c, sess) {
		return
	}
	fname := strings.TrimSpace(arg)
	e, ok := s.Catalog.Get(fname)
	if !ok {
		_ = c.SendLine(dfserrors.New(dfserrors.FileNotFound).WireLine())
		return
	}
	if !e.CanWrite(sess.user) {
		_ = c.SendLine(dfserrors.New(dfserrors.NoWriteAccess).WireLine())
		return
	}
	rec, ok := s.SSReg.RouteFor(e.SSIP, e.SSClientPort)
	if !ok {
		_ = c.SendLine("ERR storage server unavailable")
		return
	}
	resp, err := adminCmd(rec, "UNDO "+fname)
	if err != nil {
		_ = c.SendLine("ERR SS no response")
		return
	}
	if strings.HasPrefix(resp, "OK") {
		_ = c.SendLine("OK Undo Successful!")
		return
	}
	_ = c.SendLine(resp)
}

func (s *Server) handleAddAccess(c *wireproto.Conn, sess *session, arg string) {
	if !s.requireLogin(c, sess) {
		return
	}
	fields := strings.Fields(arg)
	if len(fields) != 3 {
		_ = c.SendLine("ERR bad args")
		return
	}
	mode, fname, target := fields[0], fields[1], fields[2]
	e, ok := s.Catalog.Get(fname)
	if !ok {
		_ = c.SendLine(dfserrors.New(dfserrors.FileNotFound).WireLine())
		return
	}
	if !e.IsOwner(sess.user) {
		_ = c.SendLine(dfserrors.New(dfserrors.OnlyOwner).WireLine())
		return
	}
	var err error
	switch mode {
	case "-R":
		err = s.Catalog.AddReader(fname, target)
	case "-W":
		err = s.Catalog.AddWriter(fname, target)
	default:
		_ = c.SendLine("ERR mode")
		return
	}
	if err != nil {
		_ = c.SendLine(errLine(err))
		return
	}
	_ = c.SendLine("OK Access granted successfully!")
}

func (s *Server) handleRemAccess(c *wireproto.Conn, sess *session, arg string) {
	if !s.requireLogin(c, sess) {
		return
	}
	fields := strings.Fields(arg)
	if len(fields) != 2 {
		_ = c.SendLine("ERR bad args")
		return
	}
	fname, target := fields[0], fields[1]
	e, ok := s.Catalog.Get(fname)
	if !ok {
		_ = c.SendLine(dfserrors.New(dfserrors.FileNotFound).WireLine())
		return
	}
	if !e.IsOwner(sess.user) {
		_ = c.SendLine(dfserrors.New(dfserrors.OnlyOwner).WireLine())
		return
	}
	_ = s.Catalog.RemoveReader(fname, target)
	_ = s.Catalog.RemoveWriter(fname, target)
	_ = c.SendLine("OK Access removed successfully!")
}

func (s *Server) handleCheckpoint(c *wireproto.Conn, sess *session, arg string) {
	fields := strings.Fields(arg)
	if len(fields) != 2 {
		_ = c.SendLine(dfserrors.New(dfserrors.InvalidArgs).WireLine())
		return
	}
	fname, tag := fields[0], fields[1]
	e, ok := s.Catalog.Get(fname)
	if !ok {
		_ = c.SendLine(dfserrors.New(dfserrors.FileNotFound).WireLine())
		return
	}
	if sess.user == "" || !e.CanRead(sess.user) {
		_ = c.SendLine(dfserrors.New(dfserrors.NoAccess).WireLine())
		return
	}
	rec, ok := s.SSReg.RouteFor(e.SSIP, e.SSClientPort)
	if !ok {
		_ = c.SendLine("ERR storage server unavailable")
		return
	}
	resp, err := adminCmd(rec, "CHECKPOINT "+fname+" "+tag)
	if err != nil {
		_ = c.SendLine("ERR SS no response")
		return
	}
	if strings.HasPrefix(resp, "OK") {
		_ = c.SendLine("OK Checkpoint created successfully!")
		return
	}
	_ = c.SendLine(resp)
}

// handleViewCheckpointCmd answers VIEWCHECKPOINT by relaying the SS
// admin port's one-header-then-one-content-line reply, splitting the
// content back into multiple client lines: no leading "OK" on success,
// just the content lines then "END"; an SS error is forwarded as the
// single terminal reply line instead.
func (s *Server) handleViewCheckpointCmd(c *wireproto.Conn, sess *session, arg string) {
	fields := strings.Fields(arg)
	if len(fields) != 2 {
		_ = c.SendLine(dfserrors.New(dfserrors.InvalidArgs).WireLine())
		return
	}
	fname, tag := fields[0], fields[1]
	e, ok := s.Catalog.Get(fname)
	if !ok {
		_ = c.SendLine(dfserrors.New(dfserrors.FileNotFound).WireLine())
		return
	}
	if sess.user == "" || !e.CanRead(sess.user) {
		_ = c.SendLine(dfserrors.New(dfserrors.NoAccess).WireLine())
		return
	}
	rec, ok := s.SSReg.RouteFor(e.SSIP, e.SSClientPort)
	if !ok {
		_ = c.SendLine("ERR storage server unavailable")
		return
	}
	admin, err := wireproto.Dial(rec.IP, rec.AdminPort)
	if err != nil {
		_ = c.SendLine("ERR SS not reachable")
		return
	}
	defer admin.Close()
	if err := admin.SendLine("VIEWCHECKPOINT " + fname + " " + tag); err != nil {
		_ = c.SendLine("ERR SS no response")
		return
	}
	header, err := admin.RecvLine()
	if err != nil {
		_ = c.SendLine("ERR SS no response")
		return
	}
	if header != "OK" {
		_ = c.SendLine(header)
		return
	}
	content, err := admin.RecvLine()
	if err != nil {
		content = ""
	}
	hasContent := false
	for _, ln := range strings.Split(content, "\r\n") {
		for _, ln2 := range strings.Split(ln, "\n") {
			if ln2 == "" {
				continue
			}
			_ = c.SendLine(ln2)
			hasContent = true
		}
	}
	if !hasContent {
		_ = c.SendLine("")
	}
	_ = c.SendLine("END")
}

func (s *Server) handleRevert(c *wireproto.Conn, sess *session, arg string) {
	fields := strings.Fields(arg)
	if len(fields) != 2 {
		_ = c.SendLine(dfserrors.New(dfserrors.InvalidArgs).WireLine())
		return
	}
	fname, tag := fields[0], fields[1]
	e, ok := s.Catalog.Get(fname)
	if !ok {
		_ = c.SendLine(dfserrors.New(dfserrors.FileNotFound).WireLine())
		return
	}
	if sess.user == "" || !e.CanWrite(sess.user) {
		_ = c.SendLine(dfserrors.New(dfserrors.NoWriteAccess).WireLine())
		return
	}
	rec, ok := s.SSReg.RouteFor(e.SSIP, e.SSClientPort)
	if !ok {
		_ = c.SendLine("ERR storage server unavailable")
		return
	}
	resp, err := adminCmd(rec, "REVERT "+fname+" "+tag)
	if err != nil {
		_ = c.SendLine("ERR SS no response")
		return
	}
	if strings.HasPrefix(resp, "OK") {
		_ = c.SendLine("OK File reverted successfully!")
		return
	}
	_ = c.SendLine(resp)
}

func (s *Server) handleListCheckpoints(c *wireproto.Conn, sess *session, arg string) {
	fname := strings.TrimSpace(arg)
	e, ok := s.Catalog.Get(fname)
	if !ok {
		_ = c.SendLine(dfserrors.New(dfserrors.FileNotFound).WireLine())
		return
	}
	if sess.user == "" || !e.CanRead(sess.user) {
		_ = c.SendLine(dfserrors.New(dfserrors.NoAccess).WireLine())
		return
	}
	rec, ok := s.SSReg.RouteFor(e.SSIP, e.SSClientPort)
	if !ok {
		_ = c.SendLine("ERR storage server unavailable")
		return
	}
	header, lines, err := adminCmdBlock(rec, "LISTCHECKPOINTS "+fname)
	if err != nil {
		_ = c.SendLine("ERR SS no response")
		return
	}
	_ = c.SendLine(header)
	_ = c.SendBlock(lines)
}

func (s *Server) handleMove(c *wireproto.Conn, sess *session, arg string) {
	if !s.requireLogin(c, sess) {
		return
	}
	fields := strings.Fields(arg)
	if len(fields) != 2 {
		_ = c.SendLine("ERR bad args")
		return
	}
	fname, folder := fields[0], fields[1]
	e, ok := s.Catalog.Get(fname)
	if !ok {
		_ = c.SendLine("ERR file not found")
		return
	}
	folderEntry, ok := s.Catalog.Get(folder)
	if !ok || !folderEntry.IsFolder {
		_ = c.SendLine("ERR folder not found")
		return
	}
	if !e.IsOwner(sess.user) {
		_ = c.SendLine("ERR only owner can move")
		return
	}
	base := fname
	if i := strings.LastIndex(fname, "/"); i >= 0 {
		base = fname[i+1:]
	}
	newPath := folder + "/" + base
	if _, exists := s.Catalog.Get(newPath); exists {
		_ = c.SendLine("ERR target exists")
		return
	}
	if e.IsFolder && len(s.Catalog.Children(fname)) > 0 {
		_ = c.SendLine(dfserrors.New(dfserrors.FolderNotEmpty).WireLine())
		return
	}
	if !e.IsFolder {
		rec, ok := s.SSReg.RouteFor(e.SSIP, e.SSClientPort)
		if !ok {
			_ = c.SendLine("ERR storage server unavailable")
			return
		}
		resp, err := adminCmd(rec, "MOVE "+fname+" "+newPath)
		if err != nil {
			_ = c.SendLine("ERR SS no response")
			return
		}
		if !strings.HasPrefix(resp, "OK") {
			_ = c.SendLine(resp)
			return
		}
	}
	if err := s.Catalog.Move(fname, newPath); err != nil {
		_ = c.SendLine(errLine(err))
		return
	}
	if e.IsFolder {
		_ = c.SendLine("OK Folder moved successfully!")
		return
	}
	_ = c.SendLine("OK File moved successfully!")
}

func (s *Server) handleRequestAccess(c *wireproto.Conn, sess *session, arg string) {
	if !s.requireLogin(c, sess) {
		return
	}
	fname := strings.TrimSpace(arg)
	e, ok := s.Catalog.Get(fname)
	if !ok {
		_ = c.SendLine(dfserrors.New(dfserrors.FileNotFound).WireLine())
		return
	}
	if e.IsOwner(sess.user) || e.CanRead(sess.user) {
		_ = c.SendLine("ERR you already have access to this file")
		return
	}
	for _, r := range s.Catalog.RequestsForOwner(e.Owner) {
		if r.Filename == fname && strings.EqualFold(r.RequestingUser, sess.user) {
			_ = c.SendLine("ERR access request already pending")
			return
		}
	}
	if err := s.Catalog.AddRequest(fname, sess.user, catalog.AccessRead); err != nil {
		_ = c.SendLine(errLine(err))
		return
	}
	_ = c.SendLine("OK Access request submitted successfully!")
}

func (s *Server) handleApproveRequest(c *wireproto.Conn, sess *session, arg string) {
	if !s.requireLogin(c, sess) {
		return
	}
	fields := strings.Fields(arg)
	if len(fields) < 2 {
		_ = c.SendLine("ERR bad args")
		return
	}
	fname, target := fields[0], fields[1]
	mode := catalog.AccessKind("")
	if len(fields) >= 3 {
		switch fields[2] {
		case "-R":
			mode = catalog.AccessRead
		case "-W":
			mode = catalog.AccessWrite
		}
	}
	e, ok := s.Catalog.Get(fname)
	if !ok {
		_ = c.SendLine(dfserrors.New(dfserrors.FileNotFound).WireLine())
		return
	}
	if !e.IsOwner(sess.user) {
		_ = c.SendLine(dfserrors.New(dfserrors.OnlyOwner).WireLine())
		return
	}
	if err := s.Catalog.ApproveRequest(fname, target, true, mode); err != nil {
		_ = c.SendLine("ERR no pending request found")
		return
	}
	_ = c.SendLine("OK Access request approved successfully!")
}

// handleListRequests answers VIEW REQUEST/VIEWREQUEST/LISTREQUESTS/
// VIEWREQUESTS: the owner's pending requests, optionally filtered to
// one filename.
func (s *Server) handleListRequests(c *wireproto.Conn, sess *session, line string) {
	if !s.requireLogin(c, sess) {
		return
	}
	var filter string
	for _, prefix := range []string{"VIEW REQUEST", "VIEWREQUESTS", "VIEWREQUEST", "LISTREQUESTS"} {
		if strings.HasPrefix(line, prefix) {
			filter = strings.TrimSpace(strings.TrimPrefix(line, prefix))
			break
		}
	}

	reqs := s.Catalog.RequestsForOwner(sess.user)
	var lines []string
	for _, r := range reqs {
		if filter != "" && r.Filename != filter {
			continue
		}
		kind := "Read"
		if r.AccessType == catalog.AccessWrite {
			kind = "Write"
		}
		lines = append(lines, fmt.Sprintf("--> File: %s | User: %s | Type: %s | Requested: %s",
			r.Filename, r.RequestingUser, kind, istime.Format(r.RequestTime)))
	}

	_ = c.SendLine("PENDING ACCESS REQUESTS:")
	if len(lines) == 0 {
		if filter != "" {
			lines = []string{"No pending requests for this file."}
		} else {
			lines = []string{"No pending access requests."}
		}
	}
	_ = c.SendBlock(lines)
}

func (s *Server) handleSearch(c *wireproto.Conn, sess *session, arg string) {
	if !s.requireLogin(c, sess) {
		return
	}
	keyword := strings.TrimSpace(arg)
	hits := fanOutSearch(s.SSReg.Active(), keyword)

	var lines []string
	for _, name := range hits {
		e, ok := s.Catalog.Get(name)
		if !ok || !e.CanRead(sess.user) {
			continue
		}
		lines = append(lines, "--> "+name)
	}

	_ = c.SendLine("SEARCH RESULTS:")
	if len(lines) == 0 {
		lines = []string{"No files found containing the keyword."}
	}
	_ = c.SendBlock(lines)
}
