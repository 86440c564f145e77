// Package blobstore implements the Storage Server's on-disk persistence:
// live file blobs, swap files for in-progress WRITE sessions, one undo
// snapshot per file, and named checkpoints.
//
// Commits (WRITE_END, SYNC, UNDO, REVERT) use
// github.com/natefinch/atomic so a reader never observes a partially
// written live file: a concurrent READ sees either the pre-commit or the
// post-commit bytes, never a mix.
package blobstore

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/natefinch/atomic"

	"github.com/docspp/docspp/pkg/dfserrors"
)

// Store roots live file blobs, swap files, undo snapshots, and
// checkpoints under one data directory.
type Store struct {
	dataRoot       string
	undoRoot       string
	checkpointRoot string
}

// New builds a Store rooted at dataRoot, with undo/ and checkpoints/
// siblings created alongside it.
func New(dataRoot string) (*Store, error) {
	s := &Store{
		dataRoot:       dataRoot,
		undoRoot:       filepath.Join(dataRoot, "..", "undo"),
		checkpointRoot: filepath.Join(dataRoot, "..", "checkpoints"),
	}
	for _, dir := range []string{s.dataRoot, s.undoRoot, s.checkpointRoot} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create blobstore dir %s: %w", dir, err)
		}
	}
	return s, nil
}

// DataRoot returns the live-blob root, exposed for SEARCH's directory
// walk and VIEWFOLDER-style directory materialization of folder entries.
func (s *Store) DataRoot() string { return s.dataRoot }

func (s *Store) livePath(filename string) string {
	return filepath.Join(s.dataRoot, filepath.FromSlash(filename))
}

func (s *Store) swapPath(filename, session string) string {
	return s.livePath(filename) + ".swap." + session
}

func (s *Store) undoPath(filename string) string {
	return filepath.Join(s.undoRoot, filepath.FromSlash(filename)+".bak")
}

func (s *Store) checkpointPath(filename, tag string) string {
	return filepath.Join(s.checkpointRoot, filepath.FromSlash(filename), tag, "file")
}

func (s *Store) checkpointDir(filename string) string {
	return filepath.Join(s.checkpointRoot, filepath.FromSlash(filename))
}

func readAll(path string) (string, bool, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", false, nil
		}
		return "", false, err
	}
	return string(b), true, nil
}

func writeAtomic(path string, content string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return atomic.WriteFile(path, strings.NewReader(content))
}

// Exists reports whether filename has a committed live blob.
func (s *Store) Exists(filename string) bool {
	_, err := os.Stat(s.livePath(filename))
	return err == nil
}

// ReadLive returns the committed bytes of filename, "" if it does not
// exist. READ, STREAM, and WRITE_BEGIN's max-index check all read here.
func (s *Store) ReadLive(filename string) (string, error) {
	content, _, err := readAll(s.livePath(filename))
	return content, err
}

// CreateDirectory materializes a folder entry as a plain directory;
// folders have no backing blob.
func (s *Store) CreateDirectory(path string) error {
	return os.MkdirAll(s.livePath(path), 0o755)
}

// CreateEmpty commits an empty live blob for filename (CREATE).
func (s *Store) CreateEmpty(filename string) error {
	return writeAtomic(s.livePath(filename), "")
}

// WriteLive overwrites filename's live blob with content directly,
// bypassing the swap-file protocol: the SYNC admin command's commit
// step during recovery.
func (s *Store) WriteLive(filename, content string) error {
	return writeAtomic(s.livePath(filename), content)
}

// Delete removes filename's live blob (DELETE). Undo/checkpoint data is
// left behind.
func (s *Store) Delete(filename string) error {
	if err := os.Remove(s.livePath(filename)); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// Move renames filename's live blob to newName, creating parent
// directories as needed; undo and checkpoint data are not moved.
func (s *Store) Move(oldName, newName string) error {
	oldPath := s.livePath(oldName)
	newPath := s.livePath(newName)
	if err := os.MkdirAll(filepath.Dir(newPath), 0o755); err != nil {
		return err
	}
	if err := os.Rename(oldPath, newPath); err != nil {
		if os.IsNotExist(err) {
			return dfserrors.New(dfserrors.FileNotFound)
		}
		return err
	}
	return nil
}

// Stats returns INFO's SIZE/WORDS/CHARS triple: byte size, whitespace-
// delimited word count, and char count (== size for byte-oriented text).
func (s *Store) Stats(filename string) (size, words, chars int, err error) {
	content, ok, err := readAll(s.livePath(filename))
	if err != nil {
		return 0, 0, 0, err
	}
	if !ok {
		return 0, 0, 0, nil
	}
	return len(content), len(strings.Fields(content)), len(content), nil
}

// BeginWrite snapshots the committed bytes of filename into both a new
// swap file for session and the single undo snapshot. The latest WRITE
// always overwrites the prior undo snapshot.
func (s *Store) BeginWrite(filename, session string) error {
	content, _, err := readAll(s.livePath(filename))
	if err != nil {
		return err
	}
	if err := writeAtomic(s.swapPath(filename, session), content); err != nil {
		return fmt.Errorf("create swap file: %w", err)
	}
	if err := writeAtomic(s.undoPath(filename), content); err != nil {
		return fmt.Errorf("create undo snapshot: %w", err)
	}
	return nil
}

// ReadSwap returns session's in-progress swap bytes for filename, ""
// if no swap file exists.
func (s *Store) ReadSwap(filename, session string) (string, error) {
	content, _, err := readAll(s.swapPath(filename, session))
	return content, err
}

// WriteSwap overwrites session's swap file for filename with content,
// WRITE_UPDATE's commit target (never the live file).
func (s *Store) WriteSwap(filename, session, content string) error {
	return writeAtomic(s.swapPath(filename, session), content)
}

// EndWrite reads session's swap bytes, atomically replaces the live
// file with them, and removes the swap file: WRITE_END's commit step.
// A missing swap file commits as an empty file.
func (s *Store) EndWrite(filename, session string) error {
	content, _, err := readAll(s.swapPath(filename, session))
	if err != nil {
		return err
	}
	if err := writeAtomic(s.livePath(filename), content); err != nil {
		return fmt.Errorf("commit live file: %w", err)
	}
	if err := os.Remove(s.swapPath(filename, session)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove swap file: %w", err)
	}
	return nil
}

// DiscardSwap removes session's orphaned swap file for filename without
// committing it: the disconnect-before-WRITE_END cleanup path.
func (s *Store) DiscardSwap(filename, session string) error {
	if err := os.Remove(s.swapPath(filename, session)); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// Undo restores filename from its single undo snapshot and deletes the
// snapshot: only the most recent pre-edit state can be restored, and
// repeating UNDO once the snapshot is gone is a no-op.
func (s *Store) Undo(filename string) error {
	content, ok, err := readAll(s.undoPath(filename))
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	if err := writeAtomic(s.livePath(filename), content); err != nil {
		return fmt.Errorf("restore undo snapshot: %w", err)
	}
	if err := os.Remove(s.undoPath(filename)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove undo snapshot: %w", err)
	}
	return nil
}

// Checkpoint copies filename's current live bytes into an immutable
// named snapshot.
func (s *Store) Checkpoint(filename, tag string) error {
	content, ok, err := readAll(s.livePath(filename))
	if err != nil {
		return err
	}
	if !ok {
		return dfserrors.New(dfserrors.FileNotFound)
	}
	return writeAtomic(s.checkpointPath(filename, tag), content)
}

// ViewCheckpoint returns a checkpoint's immutable contents without
// mutating the live file.
func (s *Store) ViewCheckpoint(filename, tag string) (string, error) {
	content, ok, err := readAll(s.checkpointPath(filename, tag))
	if err != nil {
		return "", err
	}
	if !ok {
		return "", dfserrors.New(dfserrors.FileNotFound)
	}
	return content, nil
}

// Revert copies a checkpoint's bytes back onto the live file, without
// deleting the checkpoint.
func (s *Store) Revert(filename, tag string) error {
	content, ok, err := readAll(s.checkpointPath(filename, tag))
	if err != nil {
		return err
	}
	if !ok {
		return dfserrors.New(dfserrors.FileNotFound)
	}
	return writeAtomic(s.livePath(filename), content)
}

// ListCheckpoints enumerates the tag names recorded for filename, sorted.
func (s *Store) ListCheckpoints(filename string) ([]string, error) {
	entries, err := os.ReadDir(s.checkpointDir(filename))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var tags []string
	for _, e := range entries {
		if e.IsDir() {
			tags = append(tags, e.Name())
		}
	}
	sort.Strings(tags)
	return tags, nil
}

// Search scans every regular live-blob file under the data root for a
// case-insensitive substring match, returning paths relative to the
// data root, SEARCH's single-SS contribution to the NM's fan-out.
func (s *Store) Search(keyword string) ([]string, error) {
	keyword = strings.ToLower(keyword)
	var matches []string
	err := filepath.WalkDir(s.dataRoot, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if strings.Contains(d.Name(), ".swap.") {
			return nil
		}
		content, err := os.ReadFile(path)
		if err != nil {
			return nil
		}
		if strings.Contains(strings.ToLower(string(content)), keyword) {
			rel, err := filepath.Rel(s.dataRoot, path)
			if err == nil {
				matches = append(matches, filepath.ToSlash(rel))
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(matches)
	return matches, nil
}
