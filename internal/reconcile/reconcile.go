// Package reconcile recomputes book aggregate counters from the pages
// table and corrects drift. Counters move incrementally on the hot path;
// a crash between a page transition and its counter adjustment leaves the
// aggregate stale until a reconciliation pass runs.
package reconcile

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/pagewright/scriptorium/internal/store"
)

// Counters is a snapshot of a book's aggregate counters.
type Counters struct {
	TotalPages     int `json:"total_pages"`
	CompletedPages int `json:"completed_pages"`
}

// Diff records one corrected book: the stored counters before and the
// recomputed ground truth written in their place.
type Diff struct {
	BookID   string   `json:"book_id"`
	BookSlug string   `json:"book_slug"`
	Before   Counters `json:"before"`
	After    Counters `json:"after"`
}

// Reconciler recomputes aggregates against ground truth.
type Reconciler struct {
	store  *store.Store
	logger *slog.Logger
}

// New creates a reconciler over the given store.
func New(st *store.Store, logger *slog.Logger) *Reconciler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reconciler{store: st, logger: logger}
}

// Recalculate recounts one book's pages and overwrites the stored
// counters if they differ. Returns a Diff only when a correction was
// written.
func (r *Reconciler) Recalculate(ctx context.Context, bookID string) (*Diff, error) {
	book, err := r.store.GetBook(ctx, bookID)
	if err != nil {
		return nil, err
	}
	total, completed, err := r.store.CountPages(ctx, bookID)
	if err != nil {
		return nil, err
	}
	if total == book.TotalPages && completed == book.CompletedPages {
		return nil, nil
	}
	if err := r.store.SetBookCounters(ctx, bookID, total, completed); err != nil {
		return nil, fmt.Errorf("correct counters for %s: %w", book.Slug, err)
	}
	diff := &Diff{
		BookID:   book.ID,
		BookSlug: book.Slug,
		Before:   Counters{TotalPages: book.TotalPages, CompletedPages: book.CompletedPages},
		After:    Counters{TotalPages: total, CompletedPages: completed},
	}
	r.logger.Warn("counter drift corrected",
		"book", book.Slug,
		"total_before", diff.Before.TotalPages, "total_after", total,
		"completed_before", diff.Before.CompletedPages, "completed_after", completed)
	return diff, nil
}

// RecalculateAll sweeps every book, hidden ones included. Cost scales
// with total page count, so this is a maintenance job, never part of
// request handling.
func (r *Reconciler) RecalculateAll(ctx context.Context) ([]Diff, error) {
	books, err := r.store.ListBooks(ctx, true)
	if err != nil {
		return nil, err
	}
	var diffs []Diff
	for _, b := range books {
		if err := ctx.Err(); err != nil {
			return diffs, err
		}
		diff, err := r.Recalculate(ctx, b.ID)
		if err != nil {
			return diffs, fmt.Errorf("recalculate %s: %w", b.Slug, err)
		}
		if diff != nil {
			diffs = append(diffs, *diff)
		}
	}
	return diffs, nil
}

// Run sweeps all books at the given interval until the context is
// cancelled. Drift from a sweep is logged; errors do not stop the loop.
func (r *Reconciler) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	r.logger.Info("reconciler started", "interval", interval)
	for {
		select {
		case <-ctx.Done():
			r.logger.Info("reconciler stopped")
			return
		case <-ticker.C:
			diffs, err := r.RecalculateAll(ctx)
			if err != nil {
				r.logger.Error("reconciliation sweep failed", "error", err)
				continue
			}
			if len(diffs) > 0 {
				r.logger.Warn("reconciliation sweep corrected drift", "books", len(diffs))
			}
		}
	}
}
