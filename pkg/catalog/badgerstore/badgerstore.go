// Package badgerstore persists the Naming Server's catalog (FileEntry
// rows, pending AccessRequests, and the known-user set) in an embedded
// Badger database, with one key-namespace prefix per record kind and
// self-describing JSON values, so a saved catalog survives rebuilds of
// the binary.
package badgerstore

import (
	"fmt"
	"strings"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/docspp/docspp/pkg/catalog"
)

const (
	prefixFile    = "f:"
	prefixRequest = "r:"
	prefixUser    = "u:"
)

func keyFile(filename string) []byte {
	return []byte(prefixFile + filename)
}

func keyRequest(filename, user string) []byte {
	return []byte(prefixRequest + filename + ":" + strings.ToLower(user))
}

func keyUser(user string) []byte {
	return []byte(prefixUser + strings.ToLower(user))
}

// Store is a catalog.Store backed by Badger: open/close lifecycle, one
// Update/View transaction per call rather than one long-lived
// transaction.
type Store struct {
	db *badger.DB
}

// Open opens (or creates) the Badger database at dir.
func Open(dir string) (*Store, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger catalog at %s: %w", dir, err)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) PutFile(e *catalog.FileEntry) error {
	val, err := encodeFile(e)
	if err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(keyFile(e.Filename), val)
	})
}

func (s *Store) DeleteFile(filename string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(keyFile(filename))
	})
}

func (s *Store) LoadFiles() ([]*catalog.FileEntry, error) {
	var out []*catalog.FileEntry
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(prefixFile)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			var e *catalog.FileEntry
			err := item.Value(func(val []byte) error {
				var decErr error
				e, decErr = decodeFile(val)
				return decErr
			})
			if err != nil {
				return err
			}
			out = append(out, e)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("load catalog files: %w", err)
	}
	return out, nil
}

func (s *Store) PutRequest(r *catalog.AccessRequest) error {
	val, err := encodeRequest(r)
	if err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(keyRequest(r.Filename, r.RequestingUser), val)
	})
}

func (s *Store) DeleteRequest(filename, user string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(keyRequest(filename, user))
	})
}

func (s *Store) PutUser(user string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(keyUser(user), []byte(user))
	})
}

func (s *Store) LoadUsers() ([]string, error) {
	var out []string
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(prefixUser)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			err := item.Value(func(val []byte) error {
				out = append(out, string(val))
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("load users: %w", err)
	}
	return out, nil
}

func (s *Store) LoadRequests() ([]*catalog.AccessRequest, error) {
	var out []*catalog.AccessRequest
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(prefixRequest)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			var r *catalog.AccessRequest
			err := item.Value(func(val []byte) error {
				var decErr error
				r, decErr = decodeRequest(val)
				return decErr
			})
			if err != nil {
				return err
			}
			out = append(out, r)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("load access requests: %w", err)
	}
	return out, nil
}
