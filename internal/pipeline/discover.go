package pipeline

import (
	"fmt"
	"io/fs"
	"iter"
	"os"
	"path/filepath"
	"strings"
)

// Candidate is one path produced by the scanner. Err is non-nil (a
// *ScanError) when the entry stands for a directory that could not be read.
type Candidate struct {
	Path string
	Err  error
}

// ScanError reports an unreadable directory. Entries read before the
// failure are still yielded.
type ScanError struct {
	Dir string
	Err error
}

func (e *ScanError) Error() string {
	return fmt.Sprintf("cannot read directory %s: %v", e.Dir, e.Err)
}

func (e *ScanError) Unwrap() error { return e.Err }

// Scan lazily yields candidate file paths under roots, depth first. For a
// directory, its regular files are yielded before any subdirectory is
// entered, and subdirectories are entered only when recursive is set.
// Non-directory roots are yielded as given (made absolute) without an
// existence check. Each path is yielded at most once and each directory
// is read at most once, so overlapping roots never pick up outputs the
// run has already written. Symlinked directories are not followed and
// in-progress conversion temp files are skipped.
func Scan(roots []string, recursive bool) iter.Seq[Candidate] {
	return func(yield func(Candidate) bool) {
		s := scanner{
			recursive: recursive,
			seen:      make(map[string]struct{}),
			seenDirs:  make(map[string]struct{}),
			yield:     yield,
		}
		for _, root := range roots {
			if !s.root(root) {
				return
			}
		}
	}
}

type scanner struct {
	recursive bool
	seen      map[string]struct{}
	seenDirs  map[string]struct{}
	yield     func(Candidate) bool
}

func (s *scanner) root(root string) bool {
	abs, err := filepath.Abs(root)
	if err != nil {
		abs = filepath.Clean(root)
	}
	if fi, err := os.Stat(abs); err == nil && fi.IsDir() {
		return s.dir(abs)
	}
	return s.file(abs)
}

func (s *scanner) file(path string) bool {
	if _, dup := s.seen[path]; dup {
		return true
	}
	s.seen[path] = struct{}{}
	return s.yield(Candidate{Path: path})
}

// dir yields the files of one directory, then recurses. A false return
// means the consumer stopped.
func (s *scanner) dir(dir string) bool {
	key := dir
	if real, err := filepath.EvalSymlinks(dir); err == nil {
		key = real
	}
	if _, dup := s.seenDirs[key]; dup {
		return true
	}
	s.seenDirs[key] = struct{}{}

	entries, readErr := os.ReadDir(dir)

	var subdirs []string
	for _, e := range entries {
		path := filepath.Join(dir, e.Name())
		switch {
		case isTempName(e.Name()):
			// in-progress output of a running conversion
		case e.IsDir():
			subdirs = append(subdirs, path)
		case e.Type().IsRegular():
			if !s.file(path) {
				return false
			}
		case e.Type()&fs.ModeSymlink != 0:
			if fi, err := os.Stat(path); err == nil && fi.Mode().IsRegular() {
				if !s.file(path) {
					return false
				}
			}
		}
	}

	if readErr != nil {
		if !s.yield(Candidate{Path: dir, Err: &ScanError{Dir: dir, Err: readErr}}) {
			return false
		}
	}

	if !s.recursive {
		return true
	}
	for _, sub := range subdirs {
		if !s.dir(sub) {
			return false
		}
	}
	return true
}

func isTempName(name string) bool {
	return strings.Contains(name, tempMarker)
}
