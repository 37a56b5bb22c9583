package scan

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
)

// FileInfo is a candidate log file and its modification time at scan time.
type FileInfo struct {
	Path  string
	Mtime int64 // unix nanoseconds
	Size  int64
}

// Scanner enumerates the log files of one source format under Root.
type Scanner struct {
	Root string
	Ext  string // e.g. ".jsonl"

	// Exclude rejects files by path; nil keeps everything.
	Exclude func(path string) bool
}

// Scan walks Root and returns eligible files sorted by path. A missing root
// yields no files. Entries that cannot be read, or that vanish between
// listing and stat, are skipped.
func (s Scanner) Scan() ([]FileInfo, error) {
	if s.Root == "" {
		return nil, nil
	}
	if _, err := os.Stat(s.Root); errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}

	var files []FileInfo
	err := filepath.WalkDir(s.Root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == s.Root {
				return err
			}
			return nil // skip unreadable dirs
		}
		if d.IsDir() {
			return nil
		}
		if s.Ext != "" && filepath.Ext(path) != s.Ext {
			return nil
		}
		if s.Exclude != nil && s.Exclude(path) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil // vanished
		}
		if !info.Mode().IsRegular() {
			return nil
		}
		files = append(files, FileInfo{
			Path:  path,
			Mtime: info.ModTime().UnixNano(),
			Size:  info.Size(),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
	return files, nil
}
