// Package tempfs provides uniquely named, disposable signal files rooted in a
// single directory.
package tempfs

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-billy/v5/util"

	"github.com/GriffinCanCode/AgentOS/termsync/internal/shared/capability"
	"github.com/GriffinCanCode/AgentOS/termsync/internal/shared/id"
)

// ErrOutsideRoot is returned when reading a path that is not under the directory
var ErrOutsideRoot = errors.New("path is outside the signal directory")

// Dir creates and reads files inside one root directory
type Dir struct {
	fs   billy.Filesystem
	perm os.FileMode
}

// New returns a Dir rooted at dir, creating it if needed. An empty dir
// means the system temporary directory.
func New(dir string) (*Dir, error) {
	if dir == "" {
		dir = os.TempDir()
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve signal directory: %w", err)
	}
	if err := os.MkdirAll(abs, 0o700); err != nil {
		return nil, fmt.Errorf("create signal directory: %w", err)
	}
	return NewWithFS(osfs.New(abs)), nil
}

// NewWithFS wraps an existing billy filesystem
func NewWithFS(fs billy.Filesystem) *Dir {
	return &Dir{fs: fs, perm: 0o600}
}

// Root returns the directory files are created in
func (d *Dir) Root() string {
	return d.fs.Root()
}

// CreateTemporaryFile creates an empty file named sig_<ulid><ext>.
func (d *Dir) CreateTemporaryFile(ext string) (capability.TempFile, error) {
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	name := id.NewSignalID().String() + ext

	f, err := d.fs.OpenFile(name, os.O_RDWR|os.O_CREATE|os.O_EXCL, d.perm)
	if err != nil {
		return nil, fmt.Errorf("create temporary file: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = d.fs.Remove(name)
		return nil, fmt.Errorf("close temporary file: %w", err)
	}

	return &File{
		fs:   d.fs,
		name: name,
		path: filepath.Join(d.fs.Root(), name),
	}, nil
}

// ReadFile returns the contents of a file under the root as text
func (d *Dir) ReadFile(path string) (string, error) {
	name, err := d.relative(path)
	if err != nil {
		return "", err
	}
	data, err := util.ReadFile(d.fs, name)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// Sweep removes signal files under the root last modified before cutoff and
// returns how many were removed. Files left behind by a crashed process are
// otherwise never reclaimed.
func (d *Dir) Sweep(cutoff time.Time) (int, error) {
	pattern := filepath.Join(d.fs.Root(), "**", id.SignalPrefix+"_*")
	matches, err := doublestar.FilepathGlob(pattern, doublestar.WithFilesOnly())
	if err != nil {
		return 0, fmt.Errorf("glob signal files: %w", err)
	}

	removed := 0
	for _, match := range matches {
		name, err := d.relative(match)
		if err != nil {
			continue
		}
		info, err := d.fs.Stat(name)
		if err != nil || !info.ModTime().Before(cutoff) {
			continue
		}
		if err := d.fs.Remove(name); err != nil && !errors.Is(err, os.ErrNotExist) {
			return removed, fmt.Errorf("remove %s: %w", match, err)
		}
		removed++
	}
	return removed, nil
}

func (d *Dir) relative(path string) (string, error) {
	if !filepath.IsAbs(path) {
		path = filepath.Join(d.fs.Root(), path)
	}
	rel, err := filepath.Rel(filepath.Clean(d.fs.Root()), filepath.Clean(path))
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s", ErrOutsideRoot, path)
	}
	return rel, nil
}

// File is a temporary file owned by one submission
type File struct {
	fs   billy.Filesystem
	name string
	path string

	once sync.Once
	err  error
}

// Path returns the absolute path of the file
func (f *File) Path() string {
	return f.path
}

// Dispose removes the file. A file that is already gone is not an error.
func (f *File) Dispose() error {
	f.once.Do(func() {
		err := f.fs.Remove(f.name)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			f.err = fmt.Errorf("remove %s: %w", f.path, err)
		}
	})
	return f.err
}
