package reconcile

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/pagewright/scriptorium/internal/store"
)

func newTestReconciler(t *testing.T) (*Reconciler, *store.Store) {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return New(st, nil), st
}

func seedBook(t *testing.T, st *store.Store, slug string, pageCount, completed int) store.Book {
	t.Helper()
	ctx := context.Background()
	book := store.Book{
		ID:         uuid.NewString(),
		Slug:       slug,
		Name:       slug,
		TotalPages: pageCount,
		CreatedAt:  time.Now().UTC(),
	}
	if err := st.CreateBook(ctx, book); err != nil {
		t.Fatalf("CreateBook failed: %v", err)
	}
	pages := make([]store.Page, pageCount)
	now := time.Now().UTC()
	for i := range pages {
		pages[i] = store.Page{
			ID:         uuid.NewString(),
			BookID:     book.ID,
			PageNumber: i + 1,
			Status:     store.StatusAvailable,
		}
	}
	if err := st.CreatePages(ctx, pages); err != nil {
		t.Fatalf("CreatePages failed: %v", err)
	}
	for i := 0; i < completed; i++ {
		if _, err := st.ClaimIfAvailable(ctx, pages[i].ID, "ada", now); err != nil {
			t.Fatalf("ClaimIfAvailable failed: %v", err)
		}
		if _, err := st.CompleteIfOwner(ctx, pages[i].ID, "ada", now); err != nil {
			t.Fatalf("CompleteIfOwner failed: %v", err)
		}
		if err := st.AdjustCompletedPages(ctx, book.ID, 1); err != nil {
			t.Fatalf("AdjustCompletedPages failed: %v", err)
		}
	}
	return book
}

func TestRecalculate_NoDrift(t *testing.T) {
	rec, st := newTestReconciler(t)
	book := seedBook(t, st, "clean", 3, 1)

	diff, err := rec.Recalculate(context.Background(), book.ID)
	if err != nil {
		t.Fatalf("Recalculate failed: %v", err)
	}
	if diff != nil {
		t.Errorf("expected nil diff for a clean book, got %+v", diff)
	}
}

func TestRecalculate_CorrectsInjectedDrift(t *testing.T) {
	rec, st := newTestReconciler(t)
	ctx := context.Background()
	book := seedBook(t, st, "drifted", 4, 2)

	// Simulate a crash between the page transition and the counter update.
	if err := st.SetBookCounters(ctx, book.ID, 4, 0); err != nil {
		t.Fatalf("SetBookCounters failed: %v", err)
	}

	diff, err := rec.Recalculate(ctx, book.ID)
	if err != nil {
		t.Fatalf("Recalculate failed: %v", err)
	}
	if diff == nil {
		t.Fatal("expected a diff for a drifted book")
	}
	if diff.Before.CompletedPages != 0 || diff.After.CompletedPages != 2 {
		t.Errorf("unexpected diff: %+v", diff)
	}

	got, err := st.GetBook(ctx, book.ID)
	if err != nil {
		t.Fatalf("GetBook failed: %v", err)
	}
	if got.CompletedPages != 2 || got.TotalPages != 4 {
		t.Errorf("counters not corrected: %+v", got)
	}
}

func TestRecalculate_UnknownBook(t *testing.T) {
	rec, _ := newTestReconciler(t)

	_, err := rec.Recalculate(context.Background(), "missing")
	if !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestRecalculateAll_SweepsHiddenBooks(t *testing.T) {
	rec, st := newTestReconciler(t)
	ctx := context.Background()

	seedBook(t, st, "clean", 2, 0)
	drifted := seedBook(t, st, "drifted", 2, 1)
	hidden := store.Book{
		ID:        uuid.NewString(),
		Slug:      "hidden-drifted",
		Name:      "hidden-drifted",
		Hidden:    true,
		CreatedAt: time.Now().UTC(),
	}
	if err := st.CreateBook(ctx, hidden); err != nil {
		t.Fatalf("CreateBook failed: %v", err)
	}
	if err := st.SetBookCounters(ctx, drifted.ID, 2, 0); err != nil {
		t.Fatalf("SetBookCounters failed: %v", err)
	}
	// Hidden book claims one page it does not have.
	if err := st.SetBookCounters(ctx, hidden.ID, 1, 1); err != nil {
		t.Fatalf("SetBookCounters failed: %v", err)
	}

	diffs, err := rec.RecalculateAll(ctx)
	if err != nil {
		t.Fatalf("RecalculateAll failed: %v", err)
	}
	if len(diffs) != 2 {
		t.Fatalf("diffs = %d, want 2 (visible + hidden)", len(diffs))
	}
	for _, d := range diffs {
		got, err := st.GetBook(ctx, d.BookID)
		if err != nil {
			t.Fatalf("GetBook failed: %v", err)
		}
		if got.CompletedPages != d.After.CompletedPages || got.TotalPages != d.After.TotalPages {
			t.Errorf("book %s counters do not match reported diff", d.BookSlug)
		}
	}
}
