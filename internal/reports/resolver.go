package reports

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
	"syscall"
)

type Kind int

const (
	KindNotFound Kind = iota
	KindRedirect
	KindIndex
	KindFile
)

func (k Kind) String() string {
	switch k {
	case KindRedirect:
		return "redirect"
	case KindIndex:
		return "index"
	case KindFile:
		return "file"
	default:
		return "not_found"
	}
}

// Resolution is the outcome of mapping a request onto the reports tree.
// Location is set for KindRedirect; FilePath and Info for KindIndex and
// KindFile.
type Resolution struct {
	Kind     Kind
	Location string
	FilePath string
	Info     fs.FileInfo
}

// Resolver maps /reports/<name>/<rest> requests onto files below Root.
type Resolver struct {
	Root string
}

// Resolve looks up rest inside the report directory name. trailingSlash
// reports whether the request path ended with "/". Paths that would leave
// the report directory resolve to KindNotFound without touching the disk.
func (r *Resolver) Resolve(name, rest string, trailingSlash bool) (Resolution, error) {
	if !validSegment(name) {
		return Resolution{Kind: KindNotFound}, nil
	}
	reportDir, ok := r.within(name)
	if !ok {
		return Resolution{Kind: KindNotFound}, nil
	}

	rest = strings.Trim(rest, "/")
	if rest == "" {
		info, err := stat(reportDir)
		if err != nil || info == nil || !info.IsDir() {
			return Resolution{Kind: KindNotFound}, err
		}
		if inside, err := r.resolvesInside(reportDir); err != nil || !inside {
			return Resolution{Kind: KindNotFound}, err
		}
		if !trailingSlash {
			return Resolution{Kind: KindRedirect, Location: "/reports/" + name + "/"}, nil
		}
		return r.file(filepath.Join(reportDir, "index.html"), KindIndex)
	}

	for _, seg := range strings.Split(rest, "/") {
		if !validSegment(seg) {
			return Resolution{Kind: KindNotFound}, nil
		}
	}
	target, ok := r.within(path.Join(name, rest))
	if !ok {
		return Resolution{Kind: KindNotFound}, nil
	}
	return r.file(target, KindFile)
}

func (r *Resolver) file(p string, kind Kind) (Resolution, error) {
	info, err := stat(p)
	if err != nil || info == nil || !info.Mode().IsRegular() {
		return Resolution{Kind: KindNotFound}, err
	}
	if inside, err := r.resolvesInside(p); err != nil || !inside {
		return Resolution{Kind: KindNotFound}, err
	}
	return Resolution{Kind: kind, FilePath: p, Info: info}, nil
}

// resolvesInside follows symlinks in p and reports whether the real target
// is still below the real Root.
func (r *Resolver) resolvesInside(p string) (bool, error) {
	root, err := filepath.Abs(r.Root)
	if err != nil {
		return false, err
	}
	realRoot, err := filepath.EvalSymlinks(root)
	if err != nil {
		return false, fmt.Errorf("resolve reports root: %w", err)
	}
	target, err := filepath.EvalSymlinks(p)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("resolve %s: %w", p, err)
	}
	return below(realRoot, target), nil
}

// within joins rel onto Root and confirms the result stays below Root.
func (r *Resolver) within(rel string) (string, bool) {
	root, err := filepath.Abs(r.Root)
	if err != nil {
		return "", false
	}
	cleaned := path.Clean("/" + rel)
	full := filepath.Join(root, filepath.FromSlash(cleaned))
	if !below(root, full) {
		return "", false
	}
	return full, true
}

// below reports whether p lies strictly inside dir.
func below(dir, p string) bool {
	rel, err := filepath.Rel(dir, p)
	return err == nil && rel != "." && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

func validSegment(s string) bool {
	return s != "" && s != "." && s != ".." && !strings.ContainsAny(s, "\\\x00")
}

func stat(p string) (fs.FileInfo, error) {
	info, err := os.Stat(p)
	if errors.Is(err, fs.ErrNotExist) || errors.Is(err, syscall.ENOTDIR) {
		return nil, nil
	}
	return info, err
}
