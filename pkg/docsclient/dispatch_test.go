package docsclient

import (
	"io"
	"net"
	"os"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/docspp/docspp/pkg/wireproto"
)

// fakeServer accepts exactly one connection and runs handler against it,
// returning the bound address.
func fakeServer(t *testing.T, handler func(c *wireproto.Conn)) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		handler(wireproto.NewConn(conn))
	}()

	return ln.Addr().String()
}

func dialFake(t *testing.T, addr string) *Session {
	t.Helper()
	host, portStr, err := net.SplitHostPort(addr)
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)
	sess, err := Dial(host, port)
	require.NoError(t, err)
	t.Cleanup(func() { sess.Close() })
	return sess
}

// captureStdout redirects os.Stdout for the duration of fn and returns
// everything written to it.
func captureStdout(t *testing.T, fn func()) string {
	t.Helper()
	r, w, err := os.Pipe()
	require.NoError(t, err)
	orig := os.Stdout
	os.Stdout = w
	fn()
	os.Stdout = orig
	w.Close()
	out, err := io.ReadAll(r)
	require.NoError(t, err)
	return string(out)
}

func TestLoginRoundTrip(t *testing.T) {
	addr := fakeServer(t, func(c *wireproto.Conn) {
		_ = c.SendLine("Welcome to Docs++")
		line, err := c.RecvLine()
		require.NoError(t, err)
		require.True(t, strings.HasPrefix(line, "LOGIN alice "))
		_ = c.SendLine("OK LOGGED IN alice")
	})

	sess := dialFake(t, addr)
	welcome, err := sess.Welcome()
	require.NoError(t, err)
	require.Equal(t, "Welcome to Docs++", welcome)

	reply, err := sess.Login("alice")
	require.NoError(t, err)
	require.Equal(t, "OK LOGGED IN alice", reply)
}

func TestGenericFlowPrintsUntilEnd(t *testing.T) {
	addr := fakeServer(t, func(c *wireproto.Conn) {
		line, err := c.RecvLine()
		require.NoError(t, err)
		require.Equal(t, "VIEW", line)
		_ = c.SendLine("FILES:")
		_ = c.SendBlock([]string{"--> a.txt", "--> b.txt"})
	})

	sess := dialFake(t, addr)
	r := NewREPL(sess)

	out := captureStdout(t, func() {
		quit, err := r.dispatch("VIEW")
		require.NoError(t, err)
		require.False(t, quit)
	})

	require.Contains(t, out, "FILES:")
	require.Contains(t, out, "--> a.txt")
	require.Contains(t, out, "--> b.txt")
}

func TestQuitStopsLoop(t *testing.T) {
	addr := fakeServer(t, func(c *wireproto.Conn) {
		line, err := c.RecvLine()
		require.NoError(t, err)
		require.Equal(t, "QUIT", line)
		_ = c.SendLine("BYE")
	})

	sess := dialFake(t, addr)
	r := NewREPL(sess)

	out := captureStdout(t, func() {
		quit, err := r.dispatch("QUIT")
		require.NoError(t, err)
		require.True(t, quit)
	})
	require.Contains(t, out, "BYE")
}

func TestExecFlowStreamsUntilEnd(t *testing.T) {
	addr := fakeServer(t, func(c *wireproto.Conn) {
		line, err := c.RecvLine()
		require.NoError(t, err)
		require.Equal(t, "EXEC script.txt", line)
		_ = c.SendLine("OK")
		_ = c.SendLine("hello")
		_ = c.SendLine("world")
		_ = c.SendLine("END")
	})

	sess := dialFake(t, addr)
	r := NewREPL(sess)

	out := captureStdout(t, func() {
		quit, err := r.dispatch("EXEC script.txt")
		require.NoError(t, err)
		require.False(t, quit)
	})
	require.Contains(t, out, "hello")
	require.Contains(t, out, "world")
	require.NotContains(t, out, "END")
}

func TestReadRoutesThroughStorageServer(t *testing.T) {
	ssAddr := fakeServer(t, func(c *wireproto.Conn) {
		_ = c.SendLine("Welcome SS")
		line, err := c.RecvLine()
		require.NoError(t, err)
		require.Equal(t, "READ a.txt", line)
		_ = c.SendLine("OK")
		_ = c.SendLine("hello world")
		_ = c.SendLine("END")
		line, err = c.RecvLine()
		require.NoError(t, err)
		require.Equal(t, "QUIT", line)
		_ = c.SendLine("BYE")
	})
	host, portStr, err := net.SplitHostPort(ssAddr)
	require.NoError(t, err)

	nmAddr := fakeServer(t, func(c *wireproto.Conn) {
		line, err := c.RecvLine()
		require.NoError(t, err)
		require.Equal(t, "READ a.txt", line)
		_ = c.SendLine("SS " + host + " " + portStr)
	})

	sess := dialFake(t, nmAddr)
	r := NewREPL(sess)

	out := captureStdout(t, func() {
		quit, err := r.dispatch("READ a.txt")
		require.NoError(t, err)
		require.False(t, quit)
	})
	require.Contains(t, out, "hello world")
}

func TestCompleterMatchesPrefix(t *testing.T) {
	r := &REPL{}
	matches := r.completer("crea")
	require.Contains(t, matches, "CREATE")
	require.Contains(t, matches, "CREATEFOLDER")
}

func TestHistoryPathUnderHomeDir(t *testing.T) {
	path := HistoryPath()
	if path == "" {
		t.Skip("no home directory available")
	}
	require.True(t, strings.HasSuffix(path, ".docspp_history"))
}
