// Package filelock implements the Storage Server's per-file,
// per-sentence lock table: one FileLock per filename with an active
// WRITE session, holding which sentence slots are owned by which
// session. Sessions are identified by a caller-supplied opaque token,
// typically a uuid.UUID.String().
package filelock

import (
	"sync"

	"github.com/docspp/docspp/pkg/dfserrors"
)

// FileLock is the sentence-slot table for one filename: which session
// (if any) owns each sentence index.
type FileLock struct {
	mu       sync.Mutex
	filename string
	slots    map[int]string // sentence idx -> owning session id
}

// Table is the SS-wide lock table: a map from filename to its FileLock,
// guarded by its own mutex. The table mutex is only ever held to find or
// create a FileLock, never together with a FileLock's mutex, so there is
// no lock-ordering cycle.
type Table struct {
	mu      sync.Mutex
	byFile  map[string]*FileLock
	maxSlot int // MAX_SENT equivalent; 0 means unbounded
}

// NewTable builds an empty lock table. maxSlot bounds sentence indices
// per file; 0 disables the bound.
func NewTable(maxSlot int) *Table {
	return &Table{byFile: make(map[string]*FileLock), maxSlot: maxSlot}
}

// getOrCreate returns the FileLock for filename, creating one if absent.
// Acquires only t.mu, per the lock-ordering invariant.
func (t *Table) getOrCreate(filename string) *FileLock {
	t.mu.Lock()
	defer t.mu.Unlock()
	fl, ok := t.byFile[filename]
	if !ok {
		fl = &FileLock{filename: filename, slots: make(map[int]string)}
		t.byFile[filename] = fl
	}
	return fl
}

// get returns the FileLock for filename if one already exists, without
// creating it (used by read-only queries like CHECKLOCK).
func (t *Table) get(filename string) (*FileLock, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	fl, ok := t.byFile[filename]
	return fl, ok
}

// compact removes filename's FileLock from the table if it now holds no
// sentence slots.
func (t *Table) compact(fl *FileLock) {
	fl.mu.Lock()
	empty := len(fl.slots) == 0
	fl.mu.Unlock()
	if !empty {
		return
	}
	t.mu.Lock()
	if cur, ok := t.byFile[fl.filename]; ok && cur == fl {
		cur.mu.Lock()
		stillEmpty := len(cur.slots) == 0
		cur.mu.Unlock()
		if stillEmpty {
			delete(t.byFile, fl.filename)
		}
	}
	t.mu.Unlock()
}

// Acquire attempts to claim sentence index sidx of filename for session,
// failing with SentenceLocked if another session already holds it.
func (t *Table) Acquire(filename string, sidx int, session string) error {
	if t.maxSlot > 0 && sidx >= t.maxSlot {
		return dfserrors.New(dfserrors.SentenceOutOfRange)
	}
	fl := t.getOrCreate(filename)
	fl.mu.Lock()
	defer fl.mu.Unlock()
	if owner, locked := fl.slots[sidx]; locked && owner != session {
		return dfserrors.New(dfserrors.SentenceLocked)
	}
	fl.slots[sidx] = session
	return nil
}

// Owns reports whether session currently holds sentence sidx of
// filename, the WRITE_UPDATE/WRITE_END precondition check.
func (t *Table) Owns(filename string, sidx int, session string) bool {
	fl, ok := t.get(filename)
	if !ok {
		return false
	}
	fl.mu.Lock()
	defer fl.mu.Unlock()
	return fl.slots[sidx] == session
}

// Release clears sentence sidx of filename if held by session (a no-op
// otherwise), then compacts the FileLock out of the table if it is now
// fully unlocked.
func (t *Table) Release(filename string, sidx int, session string) {
	fl, ok := t.get(filename)
	if !ok {
		return
	}
	fl.mu.Lock()
	if fl.slots[sidx] == session {
		delete(fl.slots, sidx)
	}
	fl.mu.Unlock()
	t.compact(fl)
}

// ReleaseSession clears every slot of filename held by session,
// invoked on disconnect-before-WRITE_END cleanup.
func (t *Table) ReleaseSession(filename, session string) []int {
	fl, ok := t.get(filename)
	if !ok {
		return nil
	}
	var released []int
	fl.mu.Lock()
	for sidx, owner := range fl.slots {
		if owner == session {
			released = append(released, sidx)
		}
	}
	for _, sidx := range released {
		delete(fl.slots, sidx)
	}
	fl.mu.Unlock()
	t.compact(fl)
	return released
}

// IsLocked reports whether any sentence of filename is currently held,
// the CHECKLOCK query and the DELETE precondition.
func (t *Table) IsLocked(filename string) bool {
	fl, ok := t.get(filename)
	if !ok {
		return false
	}
	fl.mu.Lock()
	defer fl.mu.Unlock()
	return len(fl.slots) > 0
}

// Files returns the filenames with at least one active FileLock entry,
// used by session-scoped disconnect cleanup to know where to look.
func (t *Table) Files() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]string, 0, len(t.byFile))
	for f := range t.byFile {
		out = append(out, f)
	}
	return out
}
