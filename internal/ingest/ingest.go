// Package ingest turns an uploaded source document into a Book, its Page
// records and one image asset per page, all-or-nothing. Side effects
// commit across two systems (asset directory, database) with no shared
// transaction, so the pipeline tracks each committed effect and unwinds
// them in reverse when a later step fails.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/pagewright/scriptorium/internal/home"
	"github.com/pagewright/scriptorium/internal/store"
)

// sourceFileName is the temporary copy of the uploaded document kept in
// the book directory while conversion runs.
const sourceFileName = "source.pdf"

// slugAttempts bounds the collision suffix search. The suffix counter
// strictly increases against finite existing state, so in practice the
// loop terminates long before this.
const slugAttempts = 10000

var (
	// ErrMissingData is returned when the request lacks a name or document.
	ErrMissingData = errors.New("book name and source document are required")

	// ErrConversionFailed is returned when the converter produces zero pages.
	ErrConversionFailed = errors.New("document conversion produced no pages")
)

// PartialFailureError reports an ingestion that failed after side effects
// had been created. The original failure is preserved; RollbackOK reports
// whether every compensation succeeded.
type PartialFailureError struct {
	Err        error
	RollbackOK bool
}

func (e *PartialFailureError) Error() string {
	if e.RollbackOK {
		return fmt.Sprintf("ingestion failed (rolled back): %v", e.Err)
	}
	return fmt.Sprintf("ingestion failed (rollback incomplete): %v", e.Err)
}

func (e *PartialFailureError) Unwrap() error { return e.Err }

// Request contains the parameters for ingesting a book.
type Request struct {
	Name     string
	Category string
	Hidden   bool
	Document io.Reader
}

// Result describes a successfully ingested book.
type Result struct {
	BookID    string `json:"book_id"`
	Slug      string `json:"slug"`
	PageCount int    `json:"page_count"`
}

// Pipeline ingests uploaded documents.
type Pipeline struct {
	store     *store.Store
	home      *home.Dir
	converter Converter
	logger    *slog.Logger
}

// NewPipeline creates an ingestion pipeline.
func NewPipeline(st *store.Store, h *home.Dir, conv Converter, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{store: st, home: h, converter: conv, logger: logger}
}

// Ingest runs the full pipeline: slug allocation, asset directory and
// source persistence, conversion, Book + Page registration, source
// cleanup. Any failure after the first committed side effect triggers
// rollback and is surfaced as a PartialFailureError wrapping the
// original error.
func (p *Pipeline) Ingest(ctx context.Context, req Request) (*Result, error) {
	if strings.TrimSpace(req.Name) == "" || req.Document == nil {
		return nil, ErrMissingData
	}

	slug, dir, err := p.allocateSlug(ctx, req.Name)
	if err != nil {
		return nil, err
	}

	log := p.logger.With("book", slug)
	log.Info("starting ingest", "name", req.Name)

	var sg saga
	fail := func(err error) (*Result, error) {
		ok := sg.rollback(ctx, log)
		if !ok {
			log.Error("ingest rollback incomplete", "error", err)
		}
		return nil, &PartialFailureError{Err: err, RollbackOK: ok}
	}

	// The asset directory created by allocateSlug is the first committed
	// side effect; its compensation also covers the source copy and any
	// rendered images inside it.
	sg.push("asset directory", func(context.Context) error {
		return os.RemoveAll(dir)
	})

	srcPath := filepath.Join(dir, sourceFileName)
	src, err := os.Create(srcPath)
	if err != nil {
		return fail(fmt.Errorf("failed to persist source document: %w", err))
	}
	if _, err := io.Copy(src, req.Document); err != nil {
		src.Close()
		return fail(fmt.Errorf("failed to persist source document: %w", err))
	}
	if err := src.Close(); err != nil {
		return fail(fmt.Errorf("failed to persist source document: %w", err))
	}

	pageCount, err := p.converter.Convert(ctx, srcPath, dir)
	if err != nil {
		return fail(fmt.Errorf("document conversion failed: %w", err))
	}
	if pageCount == 0 {
		return fail(ErrConversionFailed)
	}
	log.Debug("document converted", "pages", pageCount)

	bookID := uuid.New().String()
	book := store.Book{
		ID:             bookID,
		Slug:           slug,
		Name:           req.Name,
		Category:       req.Category,
		TotalPages:     pageCount,
		CompletedPages: 0,
		Hidden:         req.Hidden,
		CreatedAt:      time.Now().UTC(),
	}
	if err := p.store.CreateBook(ctx, book); err != nil {
		return fail(fmt.Errorf("failed to create book record: %w", err))
	}
	sg.push("book records", func(ctx context.Context) error {
		if err := p.store.DeletePagesForBook(ctx, bookID); err != nil {
			return err
		}
		return p.store.DeleteBook(ctx, bookID)
	})

	pages := make([]store.Page, pageCount)
	for i := range pages {
		pages[i] = store.Page{
			ID:         uuid.New().String(),
			BookID:     bookID,
			PageNumber: i + 1,
			Status:     store.StatusAvailable,
		}
	}
	if err := p.store.CreatePages(ctx, pages); err != nil {
		return fail(fmt.Errorf("failed to create page records: %w", err))
	}

	// The source document is an intermediate artifact; the page images
	// are the final assets.
	if err := os.Remove(srcPath); err != nil {
		return fail(fmt.Errorf("failed to remove source document: %w", err))
	}

	log.Info("ingest complete", "book_id", bookID, "pages", pageCount)
	return &Result{BookID: bookID, Slug: slug, PageCount: pageCount}, nil
}

// allocateSlug derives a slug from the name and claims it by creating
// its asset directory, appending an incrementing numeric suffix on
// collision. Creating the directory is the allocation's atomicity
// point: two concurrent ingests of the same name cannot both win
// os.Mkdir on the same path, so each pipeline run exclusively owns the
// directory it got and a failing run's rollback can never remove
// another run's assets.
func (p *Pipeline) allocateSlug(ctx context.Context, name string) (string, string, error) {
	base := Slugify(name)
	for i := 0; i < slugAttempts; i++ {
		candidate := base
		if i > 0 {
			candidate = fmt.Sprintf("%s-%d", base, i)
		}
		// A book record can outlive its asset directory; never reuse
		// the slug of an existing record.
		if _, err := p.store.GetBookBySlug(ctx, candidate); err == nil {
			continue
		} else if !errors.Is(err, store.ErrNotFound) {
			return "", "", err
		}
		dir := p.home.BookDir(candidate)
		err := os.Mkdir(dir, 0o755)
		if err == nil {
			return candidate, dir, nil
		}
		if errors.Is(err, fs.ErrExist) {
			continue
		}
		return "", "", fmt.Errorf("failed to create book directory: %w", err)
	}
	return "", "", fmt.Errorf("no free slug found for %q", base)
}
