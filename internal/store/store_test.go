package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
)

// openTestStore opens a store backed by a temp-dir database.
func openTestStore(t *testing.T) *Store {
	t.Helper()
	st, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

// seedBook creates a book with the given number of available pages and
// returns it with its pages.
func seedBook(t *testing.T, st *Store, slug string, pageCount int) (Book, []Page) {
	t.Helper()
	ctx := context.Background()
	book := Book{
		ID:         uuid.NewString(),
		Slug:       slug,
		Name:       slug,
		TotalPages: pageCount,
		CreatedAt:  time.Now().UTC(),
	}
	if err := st.CreateBook(ctx, book); err != nil {
		t.Fatalf("CreateBook failed: %v", err)
	}
	pages := make([]Page, pageCount)
	for i := range pages {
		pages[i] = Page{
			ID:         uuid.NewString(),
			BookID:     book.ID,
			PageNumber: i + 1,
			Status:     StatusAvailable,
		}
	}
	if err := st.CreatePages(ctx, pages); err != nil {
		t.Fatalf("CreatePages failed: %v", err)
	}
	return book, pages
}

func TestStore_BookRoundTrip(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	book, _ := seedBook(t, st, "moby-dick", 2)

	got, err := st.GetBook(ctx, book.ID)
	if err != nil {
		t.Fatalf("GetBook failed: %v", err)
	}
	if got.Slug != "moby-dick" || got.TotalPages != 2 || got.CompletedPages != 0 {
		t.Errorf("unexpected book: %+v", got)
	}

	bySlug, err := st.GetBookBySlug(ctx, "moby-dick")
	if err != nil {
		t.Fatalf("GetBookBySlug failed: %v", err)
	}
	if bySlug.ID != book.ID {
		t.Errorf("expected id %s, got %s", book.ID, bySlug.ID)
	}
}

func TestStore_GetBookNotFound(t *testing.T) {
	st := openTestStore(t)

	_, err := st.GetBook(context.Background(), "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	_, err = st.GetBookBySlug(context.Background(), "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestStore_DuplicateSlug(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	seedBook(t, st, "twice", 1)
	err := st.CreateBook(ctx, Book{ID: uuid.NewString(), Slug: "twice", Name: "twice", CreatedAt: time.Now()})
	if !errors.Is(err, ErrAlreadyExists) {
		t.Errorf("expected ErrAlreadyExists, got %v", err)
	}
}

func TestStore_ListBooksHidesHidden(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	seedBook(t, st, "visible", 1)
	hidden := Book{ID: uuid.NewString(), Slug: "secret", Name: "secret", Hidden: true, CreatedAt: time.Now()}
	if err := st.CreateBook(ctx, hidden); err != nil {
		t.Fatalf("CreateBook failed: %v", err)
	}

	books, err := st.ListBooks(ctx, false)
	if err != nil {
		t.Fatalf("ListBooks failed: %v", err)
	}
	if len(books) != 1 || books[0].Slug != "visible" {
		t.Errorf("expected only visible book, got %+v", books)
	}

	books, err = st.ListBooks(ctx, true)
	if err != nil {
		t.Fatalf("ListBooks failed: %v", err)
	}
	if len(books) != 2 {
		t.Errorf("expected 2 books with hidden included, got %d", len(books))
	}
}

func TestStore_AdjustCompletedPages(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	book, _ := seedBook(t, st, "counter", 3)

	if err := st.AdjustCompletedPages(ctx, book.ID, 1); err != nil {
		t.Fatalf("AdjustCompletedPages failed: %v", err)
	}
	if err := st.AdjustCompletedPages(ctx, book.ID, 1); err != nil {
		t.Fatalf("AdjustCompletedPages failed: %v", err)
	}
	if err := st.AdjustCompletedPages(ctx, book.ID, -1); err != nil {
		t.Fatalf("AdjustCompletedPages failed: %v", err)
	}

	got, err := st.GetBook(ctx, book.ID)
	if err != nil {
		t.Fatalf("GetBook failed: %v", err)
	}
	if got.CompletedPages != 1 {
		t.Errorf("expected completed_pages 1, got %d", got.CompletedPages)
	}
}

func TestStore_ClaimIfAvailable(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()
	_, pages := seedBook(t, st, "claims", 1)
	now := time.Now().UTC()

	applied, err := st.ClaimIfAvailable(ctx, pages[0].ID, "ada", now)
	if err != nil {
		t.Fatalf("ClaimIfAvailable failed: %v", err)
	}
	if !applied {
		t.Fatal("expected claim to apply on an available page")
	}

	// Second claim on the same page must not apply.
	applied, err = st.ClaimIfAvailable(ctx, pages[0].ID, "bob", now)
	if err != nil {
		t.Fatalf("ClaimIfAvailable failed: %v", err)
	}
	if applied {
		t.Error("claim applied on a page that was already in-progress")
	}

	page, err := st.GetPage(ctx, pages[0].ID)
	if err != nil {
		t.Fatalf("GetPage failed: %v", err)
	}
	if page.Status != StatusInProgress || page.ClaimedBy != "ada" {
		t.Errorf("unexpected page state: %+v", page)
	}
	if page.ClaimedAt == nil {
		t.Error("claimed_at not set")
	}
}

func TestStore_CompleteIfOwner(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()
	_, pages := seedBook(t, st, "complete", 1)
	now := time.Now().UTC()

	if _, err := st.ClaimIfAvailable(ctx, pages[0].ID, "ada", now); err != nil {
		t.Fatalf("ClaimIfAvailable failed: %v", err)
	}

	// A non-owner cannot complete.
	applied, err := st.CompleteIfOwner(ctx, pages[0].ID, "bob", now)
	if err != nil {
		t.Fatalf("CompleteIfOwner failed: %v", err)
	}
	if applied {
		t.Error("complete applied for a non-owner")
	}

	applied, err = st.CompleteIfOwner(ctx, pages[0].ID, "ada", now)
	if err != nil {
		t.Fatalf("CompleteIfOwner failed: %v", err)
	}
	if !applied {
		t.Fatal("expected complete to apply for the owner")
	}

	// Completing again must not apply (already completed).
	applied, err = st.CompleteIfOwner(ctx, pages[0].ID, "ada", now)
	if err != nil {
		t.Fatalf("CompleteIfOwner failed: %v", err)
	}
	if applied {
		t.Error("complete applied twice")
	}

	page, _ := st.GetPage(ctx, pages[0].ID)
	if page.Status != StatusCompleted || page.CompletedAt == nil {
		t.Errorf("unexpected page state: %+v", page)
	}
}

func TestStore_ForceComplete(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	tests := []struct {
		name        string
		setup       func(pageID string)
		assignTo    string
		wantApplied bool
		wantOwner   string
	}{
		{
			name:        "available page assigned to admin",
			setup:       func(string) {},
			assignTo:    "admin",
			wantApplied: true,
			wantOwner:   "admin",
		},
		{
			name:        "available page left unclaimed",
			setup:       func(string) {},
			assignTo:    "",
			wantApplied: true,
			wantOwner:   "",
		},
		{
			name: "in-progress page keeps its owner",
			setup: func(pageID string) {
				if _, err := st.ClaimIfAvailable(ctx, pageID, "ada", now); err != nil {
					t.Fatalf("ClaimIfAvailable failed: %v", err)
				}
			},
			assignTo:    "admin",
			wantApplied: true,
			wantOwner:   "ada",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, pages := seedBook(t, st, uuid.NewString()[:8], 1)
			tt.setup(pages[0].ID)

			applied, err := st.ForceComplete(ctx, pages[0].ID, tt.assignTo, now)
			if err != nil {
				t.Fatalf("ForceComplete failed: %v", err)
			}
			if applied != tt.wantApplied {
				t.Fatalf("applied = %v, want %v", applied, tt.wantApplied)
			}

			page, _ := st.GetPage(ctx, pages[0].ID)
			if page.Status != StatusCompleted {
				t.Errorf("status = %s, want completed", page.Status)
			}
			if page.ClaimedBy != tt.wantOwner {
				t.Errorf("claimed_by = %q, want %q", page.ClaimedBy, tt.wantOwner)
			}
		})
	}
}

func TestStore_ReleaseClearsOwnership(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()
	_, pages := seedBook(t, st, "release", 1)
	now := time.Now().UTC()

	if _, err := st.ClaimIfAvailable(ctx, pages[0].ID, "ada", now); err != nil {
		t.Fatalf("ClaimIfAvailable failed: %v", err)
	}

	applied, err := st.ReleaseIfOwner(ctx, pages[0].ID, "ada", StatusInProgress)
	if err != nil {
		t.Fatalf("ReleaseIfOwner failed: %v", err)
	}
	if !applied {
		t.Fatal("expected release to apply")
	}

	page, _ := st.GetPage(ctx, pages[0].ID)
	if page.Status != StatusAvailable || page.ClaimedBy != "" || page.ClaimedAt != nil {
		t.Errorf("release left residue: %+v", page)
	}
}

func TestStore_SaveTranscriptionRequiresClaim(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()
	_, pages := seedBook(t, st, "text", 1)
	now := time.Now().UTC()

	// Not claimed yet: write must not apply.
	applied, err := st.SaveTranscription(ctx, pages[0].ID, "ada", "Call me Ishmael.")
	if err != nil {
		t.Fatalf("SaveTranscription failed: %v", err)
	}
	if applied {
		t.Error("transcription saved on an unclaimed page")
	}

	if _, err := st.ClaimIfAvailable(ctx, pages[0].ID, "ada", now); err != nil {
		t.Fatalf("ClaimIfAvailable failed: %v", err)
	}
	applied, err = st.SaveTranscription(ctx, pages[0].ID, "ada", "Call me Ishmael.")
	if err != nil {
		t.Fatalf("SaveTranscription failed: %v", err)
	}
	if !applied {
		t.Fatal("expected owner write to apply")
	}

	page, _ := st.GetPage(ctx, pages[0].ID)
	if page.Text != "Call me Ishmael." {
		t.Errorf("text = %q", page.Text)
	}
}

func TestStore_CountPages(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()
	_, pages := seedBook(t, st, "count", 3)
	now := time.Now().UTC()

	if _, err := st.ClaimIfAvailable(ctx, pages[0].ID, "ada", now); err != nil {
		t.Fatalf("ClaimIfAvailable failed: %v", err)
	}
	if _, err := st.CompleteIfOwner(ctx, pages[0].ID, "ada", now); err != nil {
		t.Fatalf("CompleteIfOwner failed: %v", err)
	}

	total, completed, err := st.CountPages(ctx, pages[0].BookID)
	if err != nil {
		t.Fatalf("CountPages failed: %v", err)
	}
	if total != 3 || completed != 1 {
		t.Errorf("got total=%d completed=%d, want 3/1", total, completed)
	}
}

func TestStore_Points(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	// Unknown principal reads as zero points, not an error.
	p, err := st.GetPrincipal(ctx, "ada")
	if err != nil {
		t.Fatalf("GetPrincipal failed: %v", err)
	}
	if p.Points != 0 {
		t.Errorf("expected 0 points, got %d", p.Points)
	}

	if err := st.AddPoints(ctx, "ada", 5); err != nil {
		t.Fatalf("AddPoints failed: %v", err)
	}
	if err := st.AddPoints(ctx, "ada", 10); err != nil {
		t.Fatalf("AddPoints failed: %v", err)
	}
	if err := st.AddPoints(ctx, "ada", -10); err != nil {
		t.Fatalf("AddPoints failed: %v", err)
	}

	p, err = st.GetPrincipal(ctx, "ada")
	if err != nil {
		t.Fatalf("GetPrincipal failed: %v", err)
	}
	if p.Points != 5 {
		t.Errorf("expected 5 points, got %d", p.Points)
	}
}

func TestStore_GetPageByNumber(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()
	book, _ := seedBook(t, st, "numbered", 3)

	page, err := st.GetPageByNumber(ctx, book.ID, 2)
	if err != nil {
		t.Fatalf("GetPageByNumber failed: %v", err)
	}
	if page.PageNumber != 2 {
		t.Errorf("page_number = %d, want 2", page.PageNumber)
	}

	_, err = st.GetPageByNumber(ctx, book.ID, 9)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestStore_OpenAppliesPragmas(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	tests := []struct {
		pragma string
		want   string
	}{
		{"journal_mode", "wal"},
		{"foreign_keys", "1"},
		{"busy_timeout", "5000"},
	}
	for _, tt := range tests {
		t.Run(tt.pragma, func(t *testing.T) {
			var got string
			if err := st.db.QueryRowContext(ctx, "PRAGMA "+tt.pragma).Scan(&got); err != nil {
				t.Fatalf("PRAGMA %s failed: %v", tt.pragma, err)
			}
			if got != tt.want {
				t.Errorf("PRAGMA %s = %q, want %q", tt.pragma, got, tt.want)
			}
		})
	}
}
