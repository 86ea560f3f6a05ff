// Package home defines the on-disk layout of a scriptorium installation.
package home

import (
	"fmt"
	"os"
	"path/filepath"
)

const (
	// DefaultDirName is the default name for the scriptorium home directory.
	DefaultDirName = ".scriptorium"

	// DatabaseFileName is the SQLite database file.
	DatabaseFileName = "scriptorium.db"

	// ConfigFileName is the default config file name.
	ConfigFileName = "config.yaml"

	// Book page assets live under uploads/books/{slug}.
	uploadsDirName = "uploads"
	booksDirName   = "books"
)

// Dir represents the scriptorium home directory structure.
type Dir struct {
	path string
}

// New creates a new Dir with the given path.
// If path is empty, uses the default (~/.scriptorium).
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

// DatabasePath returns the path to the SQLite database file.
func (d *Dir) DatabasePath() string {
	return filepath.Join(d.path, DatabaseFileName)
}

// ConfigPath returns the path to the default config file.
func (d *Dir) ConfigPath() string {
	return filepath.Join(d.path, ConfigFileName)
}

// BooksDir returns the root of all book asset directories.
func (d *Dir) BooksDir() string {
	return filepath.Join(d.path, uploadsDirName, booksDirName)
}

// BookDir returns the asset directory for a book slug.
func (d *Dir) BookDir(slug string) string {
	return filepath.Join(d.BooksDir(), slug)
}

// PageImagePath returns the path to one page image asset.
// Page numbers are 1-indexed.
func (d *Dir) PageImagePath(slug string, pageNumber int) string {
	return filepath.Join(d.BookDir(slug), fmt.Sprintf("page.%d.jpg", pageNumber))
}

// EnsureExists creates the home directory tree if it doesn't exist.
func (d *Dir) EnsureExists() error {
	if err := os.MkdirAll(d.BooksDir(), 0o755); err != nil {
		return fmt.Errorf("failed to create books directory: %w", err)
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
