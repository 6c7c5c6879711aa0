package platform

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/adrg/xdg"
	"github.com/spf13/afero"

	"github.com/wippyai/hvr-interface/errors"
)

// KeyResolver looks up the engine's encryption key. ok is false when no key
// is configured; that is not an error.
type KeyResolver interface {
	ResolveKey() (key string, ok bool, err error)
}

// StaticKey is a key supplied directly. The empty key means none.
type StaticKey string

func (k StaticKey) ResolveKey() (string, bool, error) {
	return string(k), k != "", nil
}

// FileKey reads the key from a file, trimming surrounding whitespace.
// A missing file or empty Path means no key.
type FileKey struct {
	// FS defaults to the OS filesystem.
	FS   afero.Fs
	Path string
}

func (k FileKey) ResolveKey() (string, bool, error) {
	if k.Path == "" {
		return "", false, nil
	}
	fs := k.FS
	if fs == nil {
		fs = afero.NewOsFs()
	}
	data, err := afero.ReadFile(fs, k.Path)
	if os.IsNotExist(err) {
		return "", false, nil
	}
	if err != nil {
		return "", false, errors.IO(errors.PhaseInit, "read encryption key", k.Path, err)
	}
	key := strings.TrimSpace(string(data))
	return key, key != "", nil
}

// PathResolver locates the engine's native extensions and its cache.
// ok is false from CachePath when caching is disabled.
type PathResolver interface {
	ExtensionPath() string
	CachePath() (path string, ok bool)
}

// XDGPaths resolves paths under the user's XDG base directories:
//
//	extensions  $XDG_DATA_HOME/<app>/extensions
//	cache       $XDG_CACHE_HOME/<app>
//
// Non-empty overrides win.
type XDGPaths struct {
	App          string
	ExtensionDir string
	CacheDir     string
	DisableCache bool
}

// app falls back to "hvr" for ids that are not a single path element.
func (p XDGPaths) app() string {
	if CheckAppID(p.App) != nil {
		return "hvr"
	}
	return p.App
}

// CheckAppID reports whether id can name a directory under the XDG base
// directories: non-empty, a single path element and not "." or "..".
func CheckAppID(id string) error {
	if id == "" || id == "." || id == ".." ||
		strings.ContainsAny(id, `/\`) || filepath.VolumeName(id) != "" {
		return errors.New(errors.PhaseConfig, errors.KindInvalidInput).
			Path("app", "id").
			Value(id).
			Detail("must be a single path element").
			Build()
	}
	return nil
}

func (p XDGPaths) ExtensionPath() string {
	if p.ExtensionDir != "" {
		return p.ExtensionDir
	}
	return filepath.Join(xdg.DataHome, p.app(), "extensions")
}

func (p XDGPaths) CachePath() (string, bool) {
	if p.DisableCache {
		return "", false
	}
	if p.CacheDir != "" {
		return p.CacheDir, true
	}
	return filepath.Join(xdg.CacheHome, p.app()), true
}

func protectedDirs() []string {
	dirs := []string{xdg.Home, xdg.DataHome, xdg.CacheHome, xdg.ConfigHome, xdg.StateHome}
	if home, err := os.UserHomeDir(); err == nil {
		dirs = append(dirs, home)
	}
	if wd, err := os.Getwd(); err == nil {
		dirs = append(dirs, wd)
	}
	return dirs
}

// within reports whether path is parent or lies below it.
func within(parent, path string) bool {
	rel, err := filepath.Rel(parent, path)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}

// CheckResetDir rejects directories ResetDir must never delete: the empty
// path, the working directory, the home directory, the XDG base directories
// and any of their ancestors.
func CheckResetDir(dir string) error {
	if dir == "" {
		return errors.InvalidInput(errors.PhaseInit, "refusing to reset an empty cache path")
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return errors.New(errors.PhaseInit, errors.KindInvalidInput).
			Path(dir).
			Cause(err).
			Detail("resolve cache directory").
			Build()
	}
	for _, p := range protectedDirs() {
		if p == "" {
			continue
		}
		if within(abs, filepath.Clean(p)) {
			return errors.New(errors.PhaseInit, errors.KindInvalidInput).
				Path(dir).
				Value(p).
				Detail("refusing to reset cache directory %s: contains %s", abs, p).
				Build()
		}
	}
	return nil
}

// ResetDir deletes dir and everything under it, then recreates it empty.
func ResetDir(fs afero.Fs, dir string) error {
	if err := CheckResetDir(dir); err != nil {
		return err
	}
	if err := fs.RemoveAll(dir); err != nil {
		return errors.IO(errors.PhaseInit, "remove cache directory", dir, err)
	}
	if err := fs.MkdirAll(dir, 0o755); err != nil {
		return errors.IO(errors.PhaseInit, "create cache directory", dir, err)
	}
	return nil
}
