package home

import (
	"fmt"
	"os"
	"path/filepath"
)

const (
	// DefaultDirName is the default name for the constructosaurus home directory.
	DefaultDirName = ".constructosaurus"

	// CacheDirName is the subdirectory for cached extraction results.
	CacheDirName = "cache"

	// RuntimeDirName is the subdirectory mounted into the Ollama container
	// for model blobs.
	RuntimeDirName = "ollama"

	// DrawingsDirName is the subdirectory for drawing sheet images.
	DrawingsDirName = "drawings"

	// ConfigFileName is the default config file name.
	ConfigFileName = "config.yaml"
)

// Dir represents the constructosaurus home directory structure.
type Dir struct {
	path string
}

// New creates a new Dir with the given path.
// If path is empty, uses the default (~/.constructosaurus).
func New(path string) (*Dir, error) {
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get user home directory: %w", err)
		}
		path = filepath.Join(home, DefaultDirName)
	}

	return &Dir{path: path}, nil
}

// Path returns the root path of the home directory.
func (d *Dir) Path() string {
	return d.path
}

// CachePath returns the path to the extraction result cache directory.
func (d *Dir) CachePath() string {
	return filepath.Join(d.path, CacheDirName)
}

// RuntimePath returns the host directory mounted into the Ollama container
// for model storage.
func (d *Dir) RuntimePath() string {
	return filepath.Join(d.path, RuntimeDirName)
}

// DrawingsPath returns the path to the drawings directory.
func (d *Dir) DrawingsPath() string {
	return filepath.Join(d.path, DrawingsDirName)
}

// ConfigPath returns the path to the default config file.
func (d *Dir) ConfigPath() string {
	return filepath.Join(d.path, ConfigFileName)
}

// EnsureExists creates the home directory and subdirectories if they don't exist.
func (d *Dir) EnsureExists() error {
	for _, p := range []string{d.CachePath(), d.RuntimePath(), d.DrawingsPath()} {
		if err := os.MkdirAll(p, 0o755); err != nil {
			return fmt.Errorf("failed to create %s: %w", p, err)
		}
	}
	return nil
}

// Exists returns true if the home directory exists.
func (d *Dir) Exists() bool {
	_, err := os.Stat(d.path)
	return err == nil
}

// ConfigExists returns true if the config file exists in the home directory.
func (d *Dir) ConfigExists() bool {
	_, err := os.Stat(d.ConfigPath())
	return err == nil
}

// SheetDir returns the directory for page images of a drawing set.
func (d *Dir) SheetDir(setID string) string {
	return filepath.Join(d.DrawingsPath(), setID)
}

// SheetImagePath returns the path to a specific sheet image.
// Page numbers are 1-indexed.
func (d *Dir) SheetImagePath(setID string, pageNum int) string {
	return filepath.Join(d.SheetDir(setID), fmt.Sprintf("sheet_%04d.png", pageNum))
}

// EnsureSheetDir creates the sheet image directory for a drawing set.
func (d *Dir) EnsureSheetDir(setID string) error {
	return os.MkdirAll(d.SheetDir(setID), 0o755)
}
