package home

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDir_Layout(t *testing.T) {
	d, err := New("/tmp/scriptorium-test")
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	if got := d.DatabasePath(); got != "/tmp/scriptorium-test/scriptorium.db" {
		t.Errorf("DatabasePath = %s", got)
	}
	if got := d.BookDir("moby-dick"); got != "/tmp/scriptorium-test/uploads/books/moby-dick" {
		t.Errorf("BookDir = %s", got)
	}
	if got := d.PageImagePath("moby-dick", 7); got != "/tmp/scriptorium-test/uploads/books/moby-dick/page.7.jpg" {
		t.Errorf("PageImagePath = %s", got)
	}
}

func TestDir_DefaultsToUserHome(t *testing.T) {
	d, err := New("")
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	userHome, err := os.UserHomeDir()
	if err != nil {
		t.Skipf("no user home dir: %v", err)
	}
	if got := d.Path(); got != filepath.Join(userHome, DefaultDirName) {
		t.Errorf("Path = %s", got)
	}
}

func TestDir_EnsureExists(t *testing.T) {
	d, err := New(filepath.Join(t.TempDir(), "nested", "home"))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if d.Exists() {
		t.Fatal("directory should not exist yet")
	}
	if err := d.EnsureExists(); err != nil {
		t.Fatalf("EnsureExists failed: %v", err)
	}
	if !d.Exists() {
		t.Error("directory should exist")
	}
	if _, err := os.Stat(d.BooksDir()); err != nil {
		t.Errorf("books dir missing: %v", err)
	}
}
