package catalog

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/docspp/docspp/internal/config"
	"github.com/docspp/docspp/pkg/dfserrors"
)

// lruCapacity bounds the overlay cache, independent of catalog size:
// it only needs to speed up hot repeat lookups, not hold the whole table.
const lruCapacity = 64

// Store persists catalog state across restarts. Implemented by
// pkg/catalog/badgerstore.
type Store interface {
	PutFile(e *FileEntry) error
	DeleteFile(filename string) error
	LoadFiles() ([]*FileEntry, error)

	PutRequest(r *AccessRequest) error
	DeleteRequest(filename, user string) error
	LoadRequests() ([]*AccessRequest, error)

	PutUser(user string) error
	LoadUsers() ([]string, error)
}

// Catalog is the Naming Server's in-memory file table: a slice of
// entries, a filename->slot index for O(1) average lookup, and a small
// LRU overlay.
type Catalog struct {
	mu sync.RWMutex

	entries []*FileEntry
	index   map[string]int
	cache   *lruCache

	requests []*AccessRequest

	users map[string]bool

	limits config.LimitsConfig
	store  Store
}

// New builds an empty (or store-restored) Catalog.
func New(limits config.LimitsConfig, store Store) (*Catalog, error) {
	c := &Catalog{
		index:  make(map[string]int),
		cache:  newLRUCache(lruCapacity),
		users:  make(map[string]bool),
		limits: limits,
		store:  store,
	}
	if store == nil {
		return c, nil
	}
	files, err := store.LoadFiles()
	if err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}
	for _, f := range files {
		c.index[f.Filename] = len(c.entries)
		c.entries = append(c.entries, f)
	}
	reqs, err := store.LoadRequests()
	if err != nil {
		return nil, fmt.Errorf("load access requests: %w", err)
	}
	c.requests = reqs
	users, err := store.LoadUsers()
	if err != nil {
		return nil, fmt.Errorf("load users: %w", err)
	}
	for _, u := range users {
		c.users[normalizeUser(u)] = true
	}
	return c, nil
}

// LoginUser adds user to the logged-in user set (LOGIN), enforcing the
// MaxUsers bound. Idempotent: logging in an already-known user never
// fails.
func (c *Catalog) LoginUser(user string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	u := normalizeUser(user)
	if c.users[u] {
		return nil
	}
	if c.limits.MaxUsers > 0 && len(c.users) >= c.limits.MaxUsers {
		return dfserrors.Newf(dfserrors.SystemError, "user table full (max %d)", c.limits.MaxUsers)
	}
	c.users[u] = true
	if c.store != nil {
		return c.store.PutUser(user)
	}
	return nil
}

// KnowsUser reports whether user has ever logged in.
func (c *Catalog) KnowsUser(user string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.users[normalizeUser(user)]
}

// Users returns every known username, sorted, for LIST.
func (c *Catalog) Users() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, 0, len(c.users))
	for u := range c.users {
		out = append(out, u)
	}
	sort.Strings(out)
	return out
}

// find returns the slot for filename, or -1, validating any LRU hit
// against the backing slice before trusting it.
func (c *Catalog) find(filename string) int {
	if idx, ok := c.cache.get(filename); ok {
		if idx >= 0 && idx < len(c.entries) && c.entries[idx].Filename == filename {
			return idx
		}
	}
	idx, ok := c.index[filename]
	if !ok || idx < 0 || idx >= len(c.entries) || c.entries[idx].Filename != filename {
		return -1
	}
	c.cache.put(filename, idx)
	return idx
}

// Create inserts a new file or folder entry, enforcing the MaxFiles bound.
func (c *Catalog) Create(filename, owner string, isFolder bool, ssIP string, ssPort int) (*FileEntry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.find(filename) >= 0 {
		return nil, dfserrors.New(dfserrors.FileExists)
	}
	if c.limits.MaxFiles > 0 && len(c.entries) >= c.limits.MaxFiles {
		return nil, dfserrors.Newf(dfserrors.SystemError, "catalog full (max %d files)", c.limits.MaxFiles)
	}

	now := time.Now()
	e := &FileEntry{
		Filename:       filename,
		Owner:          owner,
		IsFolder:       isFolder,
		SSIP:           ssIP,
		SSClientPort:   ssPort,
		Readers:        make(map[string]bool),
		Writers:        make(map[string]bool),
		CreatedTime:    now,
		ModifiedTime:   now,
		LastAccessTime: now,
	}
	c.insert(e)
	if c.store != nil {
		if err := c.store.PutFile(e); err != nil {
			c.removeAt(c.index[filename])
			return nil, fmt.Errorf("persist file: %w", err)
		}
	}
	return e.clone(), nil
}

func (c *Catalog) insert(e *FileEntry) {
	c.index[e.Filename] = len(c.entries)
	c.entries = append(c.entries, e)
	c.cache.put(e.Filename, len(c.entries)-1)
}

// Get returns a copy of filename's entry, or ok=false if absent.
// find() maintains the LRU cache, so this takes the full lock rather
// than RLock even though it only reads entries.
func (c *Catalog) Get(filename string) (*FileEntry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	idx := c.find(filename)
	if idx < 0 {
		return nil, false
	}
	return c.entries[idx].clone(), true
}

// Touch updates LastAccessTime for filename, best-effort (no-op if absent).
func (c *Catalog) Touch(filename string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	idx := c.find(filename)
	if idx < 0 {
		return
	}
	c.entries[idx].LastAccessTime = time.Now()
	if c.store != nil {
		_ = c.store.PutFile(c.entries[idx])
	}
}

// TouchModified bumps ModifiedTime for filename, best-effort (no-op if
// absent). This is WRITE's initiation bookkeeping, separate from UpdateStats
// which records the resulting word/char counts once the write completes.
func (c *Catalog) TouchModified(filename string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	idx := c.find(filename)
	if idx < 0 {
		return
	}
	c.entries[idx].ModifiedTime = time.Now()
	if c.store != nil {
		_ = c.store.PutFile(c.entries[idx])
	}
}

// UpdateStats records a WRITE's resulting word/char counts, bumping
// ModifiedTime and LastAccessTime.
func (c *Catalog) UpdateStats(filename string, wordCount, charCount int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	idx := c.find(filename)
	if idx < 0 {
		return dfserrors.New(dfserrors.FileNotFound)
	}
	e := c.entries[idx]
	e.WordCount = wordCount
	e.CharCount = charCount
	now := time.Now()
	e.ModifiedTime = now
	e.LastAccessTime = now
	if c.store != nil {
		return c.store.PutFile(e)
	}
	return nil
}

// Delete removes filename, swap-compacting its slot with the last entry
// (order doesn't matter; VIEW/VIEWFOLDER sort their own output), and
// drops any pending access requests for it.
func (c *Catalog) Delete(filename string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	idx := c.find(filename)
	if idx < 0 {
		return dfserrors.New(dfserrors.FileNotFound)
	}
	c.removeAt(idx)
	c.dropRequestsForFileLocked(filename)
	if c.store != nil {
		if err := c.store.DeleteFile(filename); err != nil {
			return fmt.Errorf("persist delete: %w", err)
		}
	}
	return nil
}

// removeAt swap-removes the entry at idx, fixing up the moved entry's
// index and cache entries for both the removed and moved filenames.
func (c *Catalog) removeAt(idx int) {
	removed := c.entries[idx]
	last := len(c.entries) - 1
	c.entries[idx] = c.entries[last]
	c.entries = c.entries[:last]
	delete(c.index, removed.Filename)
	c.cache.remove(removed.Filename)
	if idx != last {
		moved := c.entries[idx]
		c.index[moved.Filename] = idx
		c.cache.put(moved.Filename, idx)
	}
}

// Move renames filename to newName in place, a shallow rename; MOVE on
// a non-empty folder is refused by the caller before reaching here.
func (c *Catalog) Move(oldName, newName string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	idx := c.find(oldName)
	if idx < 0 {
		return dfserrors.New(dfserrors.FileNotFound)
	}
	if c.find(newName) >= 0 {
		return dfserrors.New(dfserrors.FileExists)
	}
	e := c.entries[idx]
	delete(c.index, oldName)
	c.cache.remove(oldName)
	e.Filename = newName
	e.ModifiedTime = time.Now()
	c.index[newName] = idx
	c.cache.put(newName, idx)
	if c.store != nil {
		if err := c.store.DeleteFile(oldName); err != nil {
			return fmt.Errorf("persist move: %w", err)
		}
		if err := c.store.PutFile(e); err != nil {
			return fmt.Errorf("persist move: %w", err)
		}
	}
	return nil
}

// List returns a snapshot of all entries, unsorted; callers (VIEW,
// VIEWFOLDER, SEARCH) apply their own ordering rules.
func (c *Catalog) List() []*FileEntry {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]*FileEntry, len(c.entries))
	for i, e := range c.entries {
		out[i] = e.clone()
	}
	return out
}

// Children returns the direct children of folder (filename has folder's
// path as a prefix followed by '/' and no further '/'), sorted folders
// before files, then lexicographically: the VIEWFOLDER ordering rule.
func (c *Catalog) Children(folder string) []*FileEntry {
	prefix := folder
	if prefix != "" {
		prefix += "/"
	}
	all := c.List()
	var kids []*FileEntry
	for _, e := range all {
		if !strings.HasPrefix(e.Filename, prefix) || e.Filename == folder {
			continue
		}
		rest := strings.TrimPrefix(e.Filename, prefix)
		if strings.Contains(rest, "/") {
			continue
		}
		kids = append(kids, e)
	}
	sort.Slice(kids, func(i, j int) bool {
		if kids[i].IsFolder != kids[j].IsFolder {
			return kids[i].IsFolder
		}
		return kids[i].Filename < kids[j].Filename
	})
	return kids
}

func (c *Catalog) setACL(filename, user string, writer bool, grant bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	idx := c.find(filename)
	if idx < 0 {
		return dfserrors.New(dfserrors.FileNotFound)
	}
	e := c.entries[idx]
	u := normalizeUser(user)
	set := e.Readers
	if writer {
		set = e.Writers
	}
	if grant {
		if c.limits.MaxACLEntries > 0 && len(e.Readers)+len(e.Writers) >= c.limits.MaxACLEntries &&
			!e.Readers[u] && !e.Writers[u] {
			return dfserrors.Newf(dfserrors.SystemError, "ACL full (max %d entries)", c.limits.MaxACLEntries)
		}
		// Most recent grant wins: a user is never in both sets at once.
		set[u] = true
		if writer {
			delete(e.Readers, u)
		} else {
			delete(e.Writers, u)
		}
	} else {
		delete(set, u)
	}
	if c.store != nil {
		return c.store.PutFile(e)
	}
	return nil
}

// AddReader grants user read access to filename (ADDACCESS -R).
func (c *Catalog) AddReader(filename, user string) error { return c.setACL(filename, user, false, true) }

// AddWriter grants user write access to filename (ADDACCESS -W).
func (c *Catalog) AddWriter(filename, user string) error { return c.setACL(filename, user, true, true) }

// RemoveReader revokes user's explicit read grant (REMACCESS -R).
func (c *Catalog) RemoveReader(filename, user string) error {
	return c.setACL(filename, user, false, false)
}

// RemoveWriter revokes user's explicit write grant (REMACCESS -W).
func (c *Catalog) RemoveWriter(filename, user string) error {
	return c.setACL(filename, user, true, false)
}

// AddRequest enqueues a REQUESTACCESS, keeping at most one pending
// request per (filename, user) pair and enforcing the MaxAccessRequests
// bound.
func (c *Catalog) AddRequest(filename, user string, kind AccessKind) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	u := normalizeUser(user)
	for _, r := range c.requests {
		if r.Filename == filename && normalizeUser(r.RequestingUser) == u {
			r.AccessType = kind
			r.RequestTime = time.Now()
			if c.store != nil {
				return c.store.PutRequest(r)
			}
			return nil
		}
	}
	if c.limits.MaxAccessRequests > 0 && len(c.requests) >= c.limits.MaxAccessRequests {
		return dfserrors.Newf(dfserrors.SystemError, "access request queue full (max %d)", c.limits.MaxAccessRequests)
	}
	r := &AccessRequest{Filename: filename, RequestingUser: user, AccessType: kind, RequestTime: time.Now()}
	c.requests = append(c.requests, r)
	if c.store != nil {
		return c.store.PutRequest(r)
	}
	return nil
}

// RequestsForOwner returns pending requests against files owner owns,
// the LISTREQUESTS/VIEWREQUESTS filter.
func (c *Catalog) RequestsForOwner(owner string) []*AccessRequest {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []*AccessRequest
	for _, r := range c.requests {
		idx := c.find(r.Filename)
		if idx < 0 || !c.entries[idx].IsOwner(owner) {
			continue
		}
		cp := *r
		out = append(out, &cp)
	}
	return out
}

// ApproveRequest grants the requested access and removes the request.
// approve=false denies it (removes without granting).
// mode overrides the access level the request was filed at (APPROVE_REQUEST's
// optional trailing -R/-W argument); "" keeps the level the request was
// filed at.
func (c *Catalog) ApproveRequest(filename, user string, approve bool, mode AccessKind) error {
	c.mu.Lock()
	var match *AccessRequest
	kept := c.requests[:0:0]
	u := normalizeUser(user)
	for _, r := range c.requests {
		if r.Filename == filename && normalizeUser(r.RequestingUser) == u && match == nil {
			match = r
			continue
		}
		kept = append(kept, r)
	}
	c.requests = kept
	c.mu.Unlock()

	if match == nil {
		return dfserrors.New(dfserrors.InvalidArgs)
	}
	if c.store != nil {
		if err := c.store.DeleteRequest(filename, user); err != nil {
			return fmt.Errorf("persist request removal: %w", err)
		}
	}
	if !approve {
		return nil
	}
	kind := match.AccessType
	if mode != "" {
		kind = mode
	}
	if kind == AccessWrite {
		return c.AddWriter(filename, user)
	}
	return c.AddReader(filename, user)
}

// dropRequestsForFileLocked removes every pending request against
// filename; callers must hold c.mu.
func (c *Catalog) dropRequestsForFileLocked(filename string) {
	kept := c.requests[:0:0]
	for _, r := range c.requests {
		if r.Filename == filename {
			if c.store != nil {
				_ = c.store.DeleteRequest(filename, r.RequestingUser)
			}
			continue
		}
		kept = append(kept, r)
	}
	c.requests = kept
}
