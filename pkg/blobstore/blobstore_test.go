package blobstore

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "data"))
	require.NoError(t, err)
	return s
}

func TestWriteEndCommitsSwap(t *testing.T) {
	s := newStore(t)
	require.NoError(t, s.CreateEmpty("r.txt"))
	require.NoError(t, s.BeginWrite("r.txt", "sess-1"))
	require.NoError(t, s.WriteSwap("r.txt", "sess-1", "hello."))

	live, err := s.ReadLive("r.txt")
	require.NoError(t, err)
	require.Empty(t, live, "live file must not see swap content before WRITE_END")

	require.NoError(t, s.EndWrite("r.txt", "sess-1"))
	live, err = s.ReadLive("r.txt")
	require.NoError(t, err)
	require.Equal(t, "hello.", live)
}

func TestUndoRestoresPreWriteState(t *testing.T) {
	s := newStore(t)
	require.NoError(t, s.CreateEmpty("r.txt"))
	require.NoError(t, s.BeginWrite("r.txt", "sess-1"))
	require.NoError(t, s.WriteSwap("r.txt", "sess-1", "hello."))
	require.NoError(t, s.EndWrite("r.txt", "sess-1"))

	require.NoError(t, s.BeginWrite("r.txt", "sess-1"))
	require.NoError(t, s.WriteSwap("r.txt", "sess-1", "hello. world."))
	require.NoError(t, s.EndWrite("r.txt", "sess-1"))

	require.NoError(t, s.Undo("r.txt"))
	live, err := s.ReadLive("r.txt")
	require.NoError(t, err)
	require.Equal(t, "hello.", live)
}

func TestCheckpointRevertRoundTrip(t *testing.T) {
	s := newStore(t)
	require.NoError(t, s.CreateEmpty("r.txt"))
	require.NoError(t, s.BeginWrite("r.txt", "sess-1"))
	require.NoError(t, s.WriteSwap("r.txt", "sess-1", "hello."))
	require.NoError(t, s.EndWrite("r.txt", "sess-1"))

	require.NoError(t, s.Checkpoint("r.txt", "v1"))

	require.NoError(t, s.BeginWrite("r.txt", "sess-1"))
	require.NoError(t, s.WriteSwap("r.txt", "sess-1", "hello. world."))
	require.NoError(t, s.EndWrite("r.txt", "sess-1"))

	require.NoError(t, s.Revert("r.txt", "v1"))
	live, err := s.ReadLive("r.txt")
	require.NoError(t, err)
	require.Equal(t, "hello.", live)

	tags, err := s.ListCheckpoints("r.txt")
	require.NoError(t, err)
	require.Equal(t, []string{"v1"}, tags)
}

func TestWriteBeginEndNoUpdateIsByteIdentical(t *testing.T) {
	s := newStore(t)
	require.NoError(t, s.CreateEmpty("r.txt"))
	require.NoError(t, s.BeginWrite("r.txt", "sess-1"))
	require.NoError(t, s.WriteSwap("r.txt", "sess-1", "hello."))
	require.NoError(t, s.EndWrite("r.txt", "sess-1"))

	before, err := s.ReadLive("r.txt")
	require.NoError(t, err)

	require.NoError(t, s.BeginWrite("r.txt", "sess-2"))
	require.NoError(t, s.EndWrite("r.txt", "sess-2"))

	after, err := s.ReadLive("r.txt")
	require.NoError(t, err)
	require.Equal(t, before, after)
}

func TestMissingSwapAtEndWriteIsEmptyCommit(t *testing.T) {
	s := newStore(t)
	require.NoError(t, s.CreateEmpty("r.txt"))
	require.NoError(t, s.EndWrite("r.txt", "no-such-session"))
	live, err := s.ReadLive("r.txt")
	require.NoError(t, err)
	require.Empty(t, live)
}

func TestSearchFindsKeyword(t *testing.T) {
	s := newStore(t)
	require.NoError(t, s.CreateEmpty("a.txt"))
	require.NoError(t, s.BeginWrite("a.txt", "sess-1"))
	require.NoError(t, s.WriteSwap("a.txt", "sess-1", "I like pineapple."))
	require.NoError(t, s.EndWrite("a.txt", "sess-1"))

	matches, err := s.Search("PINEAPPLE")
	require.NoError(t, err)
	require.Equal(t, []string{"a.txt"}, matches)
}

func TestStats(t *testing.T) {
	s := newStore(t)
	require.NoError(t, s.CreateEmpty("a.txt"))
	require.NoError(t, s.BeginWrite("a.txt", "sess-1"))
	require.NoError(t, s.WriteSwap("a.txt", "sess-1", "hello world."))
	require.NoError(t, s.EndWrite("a.txt", "sess-1"))

	size, words, chars, err := s.Stats("a.txt")
	require.NoError(t, err)
	require.Equal(t, 12, size)
	require.Equal(t, 2, words)
	require.Equal(t, 12, chars)
}
