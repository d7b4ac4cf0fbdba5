package main

import (
	"os"
	"path/filepath"

	"github.com/spf13/afero"
)

// HostFS is where the daemon looks for its config: a filesystem plus the
// working and home directories that relative lookups start from.
type HostFS struct {
	afero.Fs
	WorkDir string
	Home    string
}

// NewOSFS reads the real filesystem. A missing home directory only drops
// the per-user config location from the search.
func NewOSFS() (*HostFS, error) {
	wd, err := os.Getwd()
	if err != nil {
		return nil, err
	}
	home, _ := os.UserHomeDir()
	return &HostFS{Fs: afero.NewOsFs(), WorkDir: wd, Home: home}, nil
}

// NewMemFS is an empty in-memory host working in "/" with home "/home".
func NewMemFS() *HostFS {
	return &HostFS{Fs: afero.NewMemMapFs(), WorkDir: "/", Home: "/home"}
}

// Resolve makes path absolute against WorkDir.
func (h *HostFS) Resolve(path string) string {
	if filepath.IsAbs(path) {
		return filepath.Clean(path)
	}
	return filepath.Join(h.WorkDir, path)
}

// SearchPath lists the places a config file called name is looked for,
// in order.
func (h *HostFS) SearchPath(name string) []string {
	paths := []string{h.Resolve(name)}
	if h.Home != "" {
		paths = append(paths, filepath.Join(h.Home, ".config", "netgpio", name))
	}
	return paths
}

// FindFirst returns the first of paths that exists, or "" if none do.
func (h *HostFS) FindFirst(paths []string) (string, error) {
	for _, p := range paths {
		ok, err := afero.Exists(h.Fs, p)
		if err != nil {
			return "", err
		}
		if ok {
			return p, nil
		}
	}
	return "", nil
}
