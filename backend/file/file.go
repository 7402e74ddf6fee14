// Package file stores records as files on a go-billy filesystem.
//
// Identifiers map to paths by section: "user.42.profile" is stored at
// <root>/user/42/profile<ext>. Removing a section removes the matching file and
// directory. Segments are path-escaped so any identifier maps to a single file.
package file

import (
	"context"
	"errors"
	"io"
	"net/url"
	"os"
	"path"
	"regexp"
	"strings"
	"sync/atomic"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-billy/v5/util"

	"github.com/unkn0wn-root/entrycache/backend"
	"github.com/unkn0wn-root/entrycache/internal/wire"
)

const (
	DefaultRoot = "cache"
	DefaultExt  = ".cache"

	tmpPrefix = ".tmp-"
)

var extPattern = regexp.MustCompile(`^\.[A-Za-z0-9_-]+$`)

type Config struct {
	// Root is the directory inside the filesystem that holds every record.
	Root string
	// Ext is appended to the last identifier segment. Must start with a dot.
	Ext string
	// Perm is used for new directories. Files are created with 0o644.
	Perm os.FileMode
}

func (c Config) withDefaults() Config {
	if c.Root == "" {
		c.Root = DefaultRoot
	}
	if c.Ext == "" {
		c.Ext = DefaultExt
	}
	if c.Perm == 0 {
		c.Perm = 0o755
	}
	return c
}

func (c Config) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Root, validation.Required, validation.By(cleanRoot)),
		validation.Field(&c.Ext, validation.Required, validation.Match(extPattern)),
	)
}

func cleanRoot(v any) error {
	s, _ := v.(string)
	if s != path.Clean(s) || s == "." || s == "/" || strings.HasPrefix(s, "../") || s == ".." {
		return errors.New("must be a clean sub directory")
	}
	return nil
}

type File struct {
	fs     billy.Filesystem
	cfg    Config
	closed atomic.Bool
}

var _ backend.Backend = (*File)(nil)

// New stores records on fs. Use osfs.New(dir) for disk storage and memfs.New() in tests.
func New(fs billy.Filesystem, cfg Config) (*File, error) {
	if fs == nil {
		return nil, errors.New("file backend: nil filesystem")
	}
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &File{fs: fs, cfg: cfg}, nil
}

// Open stores records under dir on the local disk.
func Open(dir string, cfg Config) (*File, error) {
	return New(osfs.New(dir), cfg)
}

func (f *File) Write(_ context.Context, rec backend.Record) error {
	if f.closed.Load() {
		return backend.ErrClosed
	}
	b, err := wire.Encode(rec)
	if err != nil {
		return err
	}
	p := f.path(rec.Identifier)
	dir := path.Dir(p)
	if err := f.fs.MkdirAll(dir, f.cfg.Perm); err != nil {
		return err
	}

	// readers see either the old file or the new one
	tmp, err := f.fs.TempFile(dir, tmpPrefix)
	if err != nil {
		return err
	}
	name := tmp.Name()
	if _, err := tmp.Write(b); err != nil {
		_ = tmp.Close()
		_ = f.fs.Remove(name)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = f.fs.Remove(name)
		return err
	}
	if err := f.fs.Rename(name, p); err != nil {
		_ = f.fs.Remove(name)
		return err
	}
	return nil
}

func (f *File) Read(_ context.Context, identifier string) (backend.Record, bool, error) {
	if f.closed.Load() {
		return backend.Record{}, false, backend.ErrClosed
	}
	h, err := f.fs.Open(f.path(identifier))
	if err != nil {
		if os.IsNotExist(err) {
			return backend.Record{}, false, nil
		}
		return backend.Record{}, false, err
	}
	defer func() { _ = h.Close() }()

	b, err := io.ReadAll(h)
	if err != nil {
		return backend.Record{}, false, err
	}
	rec, err := wire.Decode(b)
	if err != nil {
		return backend.Record{}, false, err
	}
	if rec.Identifier != identifier {
		return backend.Record{}, false, wire.ErrCorrupt
	}
	return rec, true, nil
}

func (f *File) Remove(_ context.Context, identifier string) error {
	if f.closed.Load() {
		return backend.ErrClosed
	}
	if err := f.fs.Remove(f.path(identifier)); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// RemoveAll deletes the section's file and directory, or the whole root for "".
func (f *File) RemoveAll(_ context.Context, section string) error {
	if f.closed.Load() {
		return backend.ErrClosed
	}
	if section == "" {
		return util.RemoveAll(f.fs, f.cfg.Root)
	}
	if err := f.fs.Remove(f.path(section)); err != nil && !os.IsNotExist(err) {
		return err
	}
	return util.RemoveAll(f.fs, f.dir(section))
}

func (f *File) Close(context.Context) error {
	f.closed.Store(true)
	return nil
}

// path is the file holding identifier.
func (f *File) path(identifier string) string {
	return f.dir(identifier) + f.cfg.Ext
}

// dir is the directory holding identifier's section, without the extension.
func (f *File) dir(identifier string) string {
	segs := strings.Split(identifier, backend.SectionSeparator)
	parts := make([]string, 0, len(segs)+1)
	parts = append(parts, f.cfg.Root)
	for _, s := range segs {
		parts = append(parts, escape(s))
	}
	return path.Join(parts...)
}

// escape makes s a single path element. PathEscape never emits a bare "%",
// so it stands in for the empty segment.
func escape(s string) string {
	if s == "" {
		return "%"
	}
	return url.PathEscape(s)
}
