package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	log "github.com/go-pkgz/lgr"
)

// EnvPath is the environment override for the configuration file location
const EnvPath = "PHOTOMIGRATOR_CONFIG_PATH"

// ResolvePath picks the configuration file location: the environment
// override when set, otherwise Config.ini under the given base directory.
func ResolvePath(baseDir string) string {
	if p := os.Getenv(EnvPath); p != "" {
		return p
	}
	return filepath.Join(baseDir, "Config.ini")
}

// File is the persisted configuration document. Reads and writes run
// synchronously on the calling request; Save calls are serialized
// in-process and each write is a whole-file replace, never a patch.
// Concurrent writers from other processes remain unguarded.
type File struct {
	Path string
	mu   sync.Mutex
}

// NewFile creates the accessor for path
func NewFile(path string) *File {
	return &File{Path: path}
}

// Sections returns the served view: file values merged over the registry,
// in registry order. Falls back to pure defaults when the file is missing
// or unreadable.
func (f *File) Sections() []Section {
	return Merge(Load(f.Path))
}

// Writable reports whether a save would succeed: the file itself must be
// writable, or for a not-yet-existing file its directory must be.
func (f *File) Writable() bool {
	if fi, err := os.Stat(f.Path); err == nil {
		return fi.Mode().Perm()&0o200 != 0
	}
	dir := filepath.Dir(f.Path)
	fi, err := os.Stat(dir)
	return err == nil && fi.IsDir() && fi.Mode().Perm()&0o200 != 0
}

// Save builds file text from the submitted form and replaces the file
// atomically (temp file + rename). Unwritable destination is an explicit
// error surfaced to the caller.
func (f *File) Save(form map[string]string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if !f.Writable() {
		return fmt.Errorf("config destination %s is not writable", f.Path)
	}

	content := Build(form)
	tmp, err := os.CreateTemp(filepath.Dir(f.Path), ".config-*.tmp")
	if err != nil {
		return fmt.Errorf("can't create temp config file: %w", err)
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck // gone already on the happy path

	if _, err = tmp.WriteString(content); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("can't write temp config file: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("can't close temp config file: %w", err)
	}
	if err = os.Rename(tmp.Name(), f.Path); err != nil {
		return fmt.Errorf("can't replace config file %s: %w", f.Path, err)
	}
	log.Printf("[INFO] config saved to %s", f.Path)
	return nil
}
