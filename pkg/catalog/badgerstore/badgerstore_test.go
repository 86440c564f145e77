package badgerstore

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/docspp/docspp/pkg/catalog"
)

func TestPutLoadFiles(t *testing.T) {
	s, err := Open(t.TempDir())
	require.NoError(t, err)
	defer s.Close()

	e := &catalog.FileEntry{
		Filename:     "notes.txt",
		Owner:        "alice",
		SSIP:         "127.0.0.1",
		SSClientPort: 9100,
		Readers:      map[string]bool{"bob": true},
		Writers:      map[string]bool{},
		CreatedTime:  time.Now(),
		ModifiedTime: time.Now(),
	}
	require.NoError(t, s.PutFile(e))

	loaded, err := s.LoadFiles()
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	require.Equal(t, "notes.txt", loaded[0].Filename)
	require.True(t, loaded[0].Readers["bob"])

	require.NoError(t, s.DeleteFile("notes.txt"))
	loaded, err = s.LoadFiles()
	require.NoError(t, err)
	require.Len(t, loaded, 0)
}

func TestPutLoadRequests(t *testing.T) {
	s, err := Open(t.TempDir())
	require.NoError(t, err)
	defer s.Close()

	r := &catalog.AccessRequest{
		Filename:       "notes.txt",
		RequestingUser: "bob",
		AccessType:     catalog.AccessRead,
		RequestTime:    time.Now(),
	}
	require.NoError(t, s.PutRequest(r))

	loaded, err := s.LoadRequests()
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	require.Equal(t, "bob", loaded[0].RequestingUser)

	require.NoError(t, s.DeleteRequest("notes.txt", "bob"))
	loaded, err = s.LoadRequests()
	require.NoError(t, err)
	require.Len(t, loaded, 0)
}
