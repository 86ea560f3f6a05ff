package ingest

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pagewright/scriptorium/internal/home"
	"github.com/pagewright/scriptorium/internal/store"
)

// fakeConverter renders pages by writing empty JPEG files, or fails.
type fakeConverter struct {
	pages int
	err   error
}

func (f *fakeConverter) Convert(ctx context.Context, documentPath, outDir string) (int, error) {
	if f.err != nil {
		return 0, f.err
	}
	for i := 1; i <= f.pages; i++ {
		path := filepath.Join(outDir, fmt.Sprintf("page.%d.jpg", i))
		if err := os.WriteFile(path, []byte("jpeg"), 0o644); err != nil {
			return 0, err
		}
	}
	return f.pages, nil
}

func newTestPipeline(t *testing.T, conv Converter) (*Pipeline, *store.Store, *home.Dir) {
	t.Helper()
	h, err := home.New(t.TempDir())
	if err != nil {
		t.Fatalf("home.New failed: %v", err)
	}
	if err := h.EnsureExists(); err != nil {
		t.Fatalf("EnsureExists failed: %v", err)
	}
	st, err := store.Open(h.DatabasePath())
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return NewPipeline(st, h, conv, nil), st, h
}

func TestIngest_Success(t *testing.T) {
	p, st, h := newTestPipeline(t, &fakeConverter{pages: 3})
	ctx := context.Background()

	result, err := p.Ingest(ctx, Request{
		Name:     "Moby Dick",
		Category: "fiction",
		Document: strings.NewReader("%PDF-1.4"),
	})
	if err != nil {
		t.Fatalf("Ingest failed: %v", err)
	}
	if result.Slug != "moby-dick" || result.PageCount != 3 {
		t.Errorf("unexpected result: %+v", result)
	}

	book, err := st.GetBook(ctx, result.BookID)
	if err != nil {
		t.Fatalf("GetBook failed: %v", err)
	}
	if book.TotalPages != 3 || book.CompletedPages != 0 || book.Category != "fiction" {
		t.Errorf("unexpected book: %+v", book)
	}

	pages, err := st.ListPages(ctx, result.BookID)
	if err != nil {
		t.Fatalf("ListPages failed: %v", err)
	}
	if len(pages) != 3 {
		t.Fatalf("pages = %d, want 3", len(pages))
	}
	for i, page := range pages {
		if page.Status != store.StatusAvailable {
			t.Errorf("page %d status = %s, want available", i+1, page.Status)
		}
		if page.PageNumber != i+1 {
			t.Errorf("page order broken: got %d at index %d", page.PageNumber, i)
		}
	}

	for n := 1; n <= 3; n++ {
		if _, err := os.Stat(h.PageImagePath(result.Slug, n)); err != nil {
			t.Errorf("missing page asset %d: %v", n, err)
		}
	}
	// The intermediate source copy must be gone.
	if _, err := os.Stat(filepath.Join(h.BookDir(result.Slug), sourceFileName)); !os.IsNotExist(err) {
		t.Errorf("source document still present: %v", err)
	}
}

func TestIngest_MissingData(t *testing.T) {
	p, _, _ := newTestPipeline(t, &fakeConverter{pages: 1})
	ctx := context.Background()

	if _, err := p.Ingest(ctx, Request{Name: "", Document: strings.NewReader("x")}); !errors.Is(err, ErrMissingData) {
		t.Errorf("missing name: expected ErrMissingData, got %v", err)
	}
	if _, err := p.Ingest(ctx, Request{Name: "Book", Document: nil}); !errors.Is(err, ErrMissingData) {
		t.Errorf("missing document: expected ErrMissingData, got %v", err)
	}
}

func TestIngest_ConverterFailureRollsBack(t *testing.T) {
	convErr := errors.New("pdftoppm exploded")
	p, st, h := newTestPipeline(t, &fakeConverter{err: convErr})
	ctx := context.Background()

	_, err := p.Ingest(ctx, Request{Name: "Broken", Document: strings.NewReader("x")})
	if err == nil {
		t.Fatal("expected ingest to fail")
	}

	var pf *PartialFailureError
	if !errors.As(err, &pf) {
		t.Fatalf("expected PartialFailureError, got %T: %v", err, err)
	}
	if !pf.RollbackOK {
		t.Error("expected rollback_performed to be true")
	}
	if !errors.Is(err, convErr) {
		t.Errorf("original error not preserved: %v", err)
	}

	// The asset directory must be unwound.
	if _, statErr := os.Stat(h.BookDir("broken")); !os.IsNotExist(statErr) {
		t.Errorf("book directory not rolled back: %v", statErr)
	}
	// And no records committed.
	if _, getErr := st.GetBookBySlug(ctx, "broken"); !errors.Is(getErr, store.ErrNotFound) {
		t.Errorf("book record survived rollback: %v", getErr)
	}
}

func TestIngest_ZeroPagesIsConversionFailure(t *testing.T) {
	p, _, h := newTestPipeline(t, &fakeConverter{pages: 0})
	ctx := context.Background()

	_, err := p.Ingest(ctx, Request{Name: "Empty", Document: strings.NewReader("x")})
	if !errors.Is(err, ErrConversionFailed) {
		t.Fatalf("expected ErrConversionFailed, got %v", err)
	}
	var pf *PartialFailureError
	if !errors.As(err, &pf) || !pf.RollbackOK {
		t.Errorf("expected rolled-back PartialFailureError, got %v", err)
	}
	if _, statErr := os.Stat(h.BookDir("empty")); !os.IsNotExist(statErr) {
		t.Error("book directory not rolled back")
	}
}

func TestIngest_SlugCollisionSuffix(t *testing.T) {
	p, _, _ := newTestPipeline(t, &fakeConverter{pages: 1})
	ctx := context.Background()

	first, err := p.Ingest(ctx, Request{Name: "Foo", Document: strings.NewReader("x")})
	if err != nil {
		t.Fatalf("first Ingest failed: %v", err)
	}
	second, err := p.Ingest(ctx, Request{Name: "Foo", Document: strings.NewReader("x")})
	if err != nil {
		t.Fatalf("second Ingest failed: %v", err)
	}

	if first.Slug != "foo" {
		t.Errorf("first slug = %q, want foo", first.Slug)
	}
	if second.Slug != "foo-1" {
		t.Errorf("second slug = %q, want foo-1", second.Slug)
	}
}

func TestIngest_SlugCollisionWithOrphanDirectory(t *testing.T) {
	p, _, h := newTestPipeline(t, &fakeConverter{pages: 1})
	ctx := context.Background()

	// A leftover asset directory with no book record still blocks the slug.
	if err := os.MkdirAll(h.BookDir("foo"), 0o755); err != nil {
		t.Fatalf("MkdirAll failed: %v", err)
	}

	result, err := p.Ingest(ctx, Request{Name: "Foo", Document: strings.NewReader("x")})
	if err != nil {
		t.Fatalf("Ingest failed: %v", err)
	}
	if result.Slug != "foo-1" {
		t.Errorf("slug = %q, want foo-1", result.Slug)
	}
}

func TestIngest_ConcurrentSameName(t *testing.T) {
	p, st, h := newTestPipeline(t, &fakeConverter{pages: 2})
	ctx := context.Background()

	const runs = 4
	type outcome struct {
		result *Result
		err    error
	}
	start := make(chan struct{})
	outcomes := make(chan outcome, runs)

	for i := 0; i < runs; i++ {
		go func() {
			<-start
			r, err := p.Ingest(ctx, Request{Name: "Foo", Document: strings.NewReader("x")})
			outcomes <- outcome{result: r, err: err}
		}()
	}
	close(start)

	slugs := make(map[string]bool)
	for i := 0; i < runs; i++ {
		o := <-outcomes
		if o.err != nil {
			t.Fatalf("Ingest failed: %v", o.err)
		}
		if slugs[o.result.Slug] {
			t.Errorf("slug %q allocated twice", o.result.Slug)
		}
		slugs[o.result.Slug] = true
	}

	// Every run kept the directory and assets it allocated.
	for slug := range slugs {
		for n := 1; n <= 2; n++ {
			if _, err := os.Stat(h.PageImagePath(slug, n)); err != nil {
				t.Errorf("missing asset for %s page %d: %v", slug, n, err)
			}
		}
	}

	books, err := st.ListBooks(ctx, true)
	if err != nil {
		t.Fatalf("ListBooks failed: %v", err)
	}
	if len(books) != runs {
		t.Errorf("expected %d books, got %d", runs, len(books))
	}
}
