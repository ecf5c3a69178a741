package logging

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
)

const (
	defaultMaxSize    = 10 << 20
	defaultMaxBackups = 5
)

// RotatingFile is an io.WriteCloser that appends to a log file and shifts it
// to numbered backups (all.log.1, all.log.2, ...) once it grows past MaxSize.
type RotatingFile struct {
	Path       string
	MaxSize    int64
	MaxBackups int

	mu   sync.Mutex
	file *os.File
	size int64
}

// OpenRotatingFile opens (or creates) path for appending.
func OpenRotatingFile(path string, maxSize int64, maxBackups int) (*RotatingFile, error) {
	if path == "" {
		return nil, errors.New("log path is required")
	}
	if maxSize <= 0 {
		maxSize = defaultMaxSize
	}
	if maxBackups < 0 {
		maxBackups = defaultMaxBackups
	}

	rf := &RotatingFile{Path: path, MaxSize: maxSize, MaxBackups: maxBackups}
	if err := rf.open(); err != nil {
		return nil, err
	}
	if rf.size > rf.MaxSize {
		if err := rf.rotate(); err != nil {
			rf.file.Close()
			return nil, err
		}
	}
	return rf, nil
}

func (rf *RotatingFile) Write(p []byte) (int, error) {
	rf.mu.Lock()
	defer rf.mu.Unlock()

	if rf.file == nil {
		return 0, fs.ErrClosed
	}

	// A single record larger than MaxSize still goes into an empty file.
	if rf.size > 0 && rf.size+int64(len(p)) > rf.MaxSize {
		if err := rf.rotate(); err != nil {
			return 0, err
		}
	}

	n, err := rf.file.Write(p)
	rf.size += int64(n)
	return n, err
}

func (rf *RotatingFile) Close() error {
	rf.mu.Lock()
	defer rf.mu.Unlock()

	if rf.file == nil {
		return nil
	}
	err := rf.file.Close()
	rf.file = nil
	return err
}

func (rf *RotatingFile) open() error {
	if err := os.MkdirAll(filepath.Dir(rf.Path), 0o755); err != nil {
		return fmt.Errorf("create log dir: %w", err)
	}
	f, err := os.OpenFile(rf.Path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return fmt.Errorf("stat log file: %w", err)
	}
	rf.file = f
	rf.size = info.Size()
	return nil
}

func (rf *RotatingFile) rotate() error {
	if err := rf.file.Close(); err != nil {
		return err
	}
	rf.file = nil

	if rf.MaxBackups == 0 {
		if err := removeIfExists(rf.Path); err != nil {
			return err
		}
	} else {
		if err := removeIfExists(rf.backup(rf.MaxBackups)); err != nil {
			return err
		}
		for i := rf.MaxBackups - 1; i >= 1; i-- {
			if err := renameIfExists(rf.backup(i), rf.backup(i+1)); err != nil {
				return err
			}
		}
		if err := renameIfExists(rf.Path, rf.backup(1)); err != nil {
			return err
		}
	}

	return rf.open()
}

func (rf *RotatingFile) backup(n int) string {
	return fmt.Sprintf("%s.%d", rf.Path, n)
}

func removeIfExists(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

func renameIfExists(src, dst string) error {
	if err := os.Rename(src, dst); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}
