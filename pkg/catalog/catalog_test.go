package catalog

import (
	"testing"

	"github.com/docspp/docspp/internal/config"
	"github.com/docspp/docspp/pkg/dfserrors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLimits() config.LimitsConfig {
	return config.LimitsConfig{
		MaxFiles:          4,
		MaxAccessRequests: 4,
		MaxACLEntries:     2,
	}
}

func TestCreateAndGet(t *testing.T) {
	c, err := New(testLimits(), nil)
	require.NoError(t, err)

	e, err := c.Create("notes/a.txt", "alice", false, "127.0.0.1", 9100)
	require.NoError(t, err)
	assert.Equal(t, "alice", e.Owner)

	got, ok := c.Get("notes/a.txt")
	require.True(t, ok)
	assert.Equal(t, "127.0.0.1", got.SSIP)

	_, err = c.Create("notes/a.txt", "bob", false, "127.0.0.1", 9100)
	assert.True(t, dfserrors.Is(err, dfserrors.FileExists))
}

func TestCreateEnforcesMaxFiles(t *testing.T) {
	c, err := New(testLimits(), nil)
	require.NoError(t, err)
	for i := 0; i < 4; i++ {
		_, err := c.Create(stringsRepeat("f", i+1)+".txt", "alice", false, "", 0)
		require.NoError(t, err)
	}
	_, err = c.Create("overflow.txt", "alice", false, "", 0)
	require.Error(t, err)
}

func stringsRepeat(s string, n int) string {
	out := ""
	for i := 0; i < n; i++ {
		out += s
	}
	return out
}

func TestDeleteCompactsAndDropsRequests(t *testing.T) {
	c, err := New(testLimits(), nil)
	require.NoError(t, err)

	_, err = c.Create("a.txt", "alice", false, "", 0)
	require.NoError(t, err)
	_, err = c.Create("b.txt", "alice", false, "", 0)
	require.NoError(t, err)
	_, err = c.Create("c.txt", "alice", false, "", 0)
	require.NoError(t, err)

	require.NoError(t, c.AddRequest("b.txt", "bob", AccessRead))

	require.NoError(t, c.Delete("b.txt"))
	_, ok := c.Get("b.txt")
	assert.False(t, ok)
	_, ok = c.Get("a.txt")
	assert.True(t, ok)
	_, ok = c.Get("c.txt")
	assert.True(t, ok)

	assert.Empty(t, c.RequestsForOwner("alice"))
}

func TestMoveRejectsCollisionAndMissing(t *testing.T) {
	c, err := New(testLimits(), nil)
	require.NoError(t, err)

	_, err = c.Create("a.txt", "alice", false, "", 0)
	require.NoError(t, err)
	_, err = c.Create("b.txt", "alice", false, "", 0)
	require.NoError(t, err)

	require.NoError(t, c.Move("a.txt", "renamed.txt"))
	_, ok := c.Get("a.txt")
	assert.False(t, ok)
	got, ok := c.Get("renamed.txt")
	require.True(t, ok)
	assert.Equal(t, "alice", got.Owner)

	err = c.Move("missing.txt", "x.txt")
	assert.True(t, dfserrors.Is(err, dfserrors.FileNotFound))

	err = c.Move("renamed.txt", "b.txt")
	assert.True(t, dfserrors.Is(err, dfserrors.FileExists))
}

func TestACLGrantsAndCaseInsensitivity(t *testing.T) {
	c, err := New(testLimits(), nil)
	require.NoError(t, err)

	_, err = c.Create("a.txt", "alice", false, "", 0)
	require.NoError(t, err)

	require.NoError(t, c.AddReader("a.txt", "Bob"))
	e, _ := c.Get("a.txt")
	assert.True(t, e.CanRead("bob"))
	assert.False(t, e.CanWrite("bob"))

	require.NoError(t, c.AddWriter("a.txt", "carol"))
	e, _ = c.Get("a.txt")
	assert.True(t, e.CanWrite("CAROL"))

	require.NoError(t, c.RemoveReader("a.txt", "bob"))
	e, _ = c.Get("a.txt")
	assert.False(t, e.CanRead("bob"))
}

func TestACLMostRecentGrantWins(t *testing.T) {
	c, err := New(testLimits(), nil)
	require.NoError(t, err)
	_, err = c.Create("a.txt", "alice", false, "", 0)
	require.NoError(t, err)

	require.NoError(t, c.AddWriter("a.txt", "bob"))
	require.NoError(t, c.AddReader("a.txt", "bob"))
	e, _ := c.Get("a.txt")
	assert.True(t, e.CanRead("bob"))
	assert.False(t, e.CanWrite("bob"), "a later read grant demotes a writer")
	assert.False(t, e.Readers["bob"] && e.Writers["bob"])
}

func TestACLEnforcesMaxEntries(t *testing.T) {
	c, err := New(testLimits(), nil)
	require.NoError(t, err)
	_, err = c.Create("a.txt", "alice", false, "", 0)
	require.NoError(t, err)

	require.NoError(t, c.AddReader("a.txt", "bob"))
	require.NoError(t, c.AddWriter("a.txt", "carol"))
	err = c.AddReader("a.txt", "dave")
	assert.Error(t, err)
}

func TestAccessRequestLifecycle(t *testing.T) {
	c, err := New(testLimits(), nil)
	require.NoError(t, err)
	_, err = c.Create("a.txt", "alice", false, "", 0)
	require.NoError(t, err)

	require.NoError(t, c.AddRequest("a.txt", "bob", AccessWrite))
	require.NoError(t, c.AddRequest("a.txt", "bob", AccessRead)) // dedups to one pending entry

	pending := c.RequestsForOwner("alice")
	require.Len(t, pending, 1)
	assert.Equal(t, AccessRead, pending[0].AccessType)

	require.NoError(t, c.ApproveRequest("a.txt", "bob", true, ""))
	e, _ := c.Get("a.txt")
	assert.True(t, e.CanRead("bob"))
	assert.Empty(t, c.RequestsForOwner("alice"))

	err = c.ApproveRequest("a.txt", "bob", true, "")
	assert.Error(t, err)
}

func TestChildrenOrdering(t *testing.T) {
	limits := testLimits()
	limits.MaxFiles = 8
	c, err := New(limits, nil)
	require.NoError(t, err)
	_, err = c.Create("docs", "alice", true, "", 0)
	require.NoError(t, err)
	_, err = c.Create("docs/z.txt", "alice", false, "", 0)
	require.NoError(t, err)
	_, err = c.Create("docs/sub", "alice", true, "", 0)
	require.NoError(t, err)
	_, err = c.Create("docs/a.txt", "alice", false, "", 0)
	require.NoError(t, err)
	_, err = c.Create("docs/sub/deep.txt", "alice", false, "", 0)
	require.NoError(t, err)

	kids := c.Children("docs")
	require.Len(t, kids, 3)
	assert.Equal(t, "docs/sub", kids[0].Filename)
	assert.Equal(t, "docs/a.txt", kids[1].Filename)
	assert.Equal(t, "docs/z.txt", kids[2].Filename)
}

func TestLoginUserIdempotentAndBounded(t *testing.T) {
	limits := testLimits()
	limits.MaxUsers = 1
	c, err := New(limits, nil)
	require.NoError(t, err)

	require.NoError(t, c.LoginUser("alice"))
	require.NoError(t, c.LoginUser("ALICE")) // idempotent, case-insensitive
	assert.True(t, c.KnowsUser("alice"))
	assert.Equal(t, []string{"alice"}, c.Users())

	err = c.LoginUser("bob")
	assert.Error(t, err)
}
