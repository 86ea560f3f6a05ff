package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Status is the lifecycle state of a page.
type Status string

const (
	StatusAvailable  Status = "available"
	StatusInProgress Status = "in-progress"
	StatusCompleted  Status = "completed"
)

// Page is a single scanned page of a book.
//
// ClaimedBy is empty iff the page is available, with one exception: a page
// force-completed by an admin to an explicitly unclaimed state.
type Page struct {
	ID          string     `json:"id"`
	BookID      string     `json:"book_id"`
	PageNumber  int        `json:"page_number"`
	Status      Status     `json:"status"`
	ClaimedBy   string     `json:"claimed_by,omitempty"`
	ClaimedAt   *time.Time `json:"claimed_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Text        string     `json:"text,omitempty"`
}

const pageColumns = `id, book_id, page_number, status, claimed_by, claimed_at, completed_at, text`

func scanPage(row interface{ Scan(...any) error }) (Page, error) {
	var p Page
	var status string
	var claimedAt, completedAt sql.NullInt64
	err := row.Scan(&p.ID, &p.BookID, &p.PageNumber, &status,
		&p.ClaimedBy, &claimedAt, &completedAt, &p.Text)
	if err != nil {
		return Page{}, err
	}
	p.Status = Status(status)
	if claimedAt.Valid {
		t := fromMillis(claimedAt.Int64)
		p.ClaimedAt = &t
	}
	if completedAt.Valid {
		t := fromMillis(completedAt.Int64)
		p.CompletedAt = &t
	}
	return p, nil
}

// CreatePages inserts all pages in one transaction. Used by ingestion so
// a book's page set appears as a single logical step.
func (s *Store) CreatePages(ctx context.Context, pages []Page) error {
	if len(pages) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("create pages: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO pages (`+pageColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("create pages: %w", err)
	}
	defer stmt.Close()

	for _, p := range pages {
		status := p.Status
		if status == "" {
			status = StatusAvailable
		}
		_, err := stmt.ExecContext(ctx, p.ID, p.BookID, p.PageNumber, string(status),
			p.ClaimedBy, nullMillis(p.ClaimedAt), nullMillis(p.CompletedAt), p.Text)
		if err != nil {
			if isUniqueViolation(err) {
				return ErrAlreadyExists
			}
			return fmt.Errorf("create page %d: %w", p.PageNumber, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("create pages: %w", err)
	}
	return nil
}

// GetPage returns a page by id.
func (s *Store) GetPage(ctx context.Context, id string) (Page, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+pageColumns+` FROM pages WHERE id = ?`, id)
	p, err := scanPage(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Page{}, ErrNotFound
		}
		return Page{}, fmt.Errorf("get page: %w", err)
	}
	return p, nil
}

// GetPageByNumber returns a book's page by its 1-based page number.
func (s *Store) GetPageByNumber(ctx context.Context, bookID string, pageNumber int) (Page, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+pageColumns+` FROM pages WHERE book_id = ? AND page_number = ?`,
		bookID, pageNumber)
	p, err := scanPage(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Page{}, ErrNotFound
		}
		return Page{}, fmt.Errorf("get page by number: %w", err)
	}
	return p, nil
}

// ListPages returns all pages of a book in page order.
func (s *Store) ListPages(ctx context.Context, bookID string) ([]Page, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+pageColumns+` FROM pages WHERE book_id = ? ORDER BY page_number ASC`,
		bookID)
	if err != nil {
		return nil, fmt.Errorf("list pages: %w", err)
	}
	defer rows.Close()

	var pages []Page
	for rows.Next() {
		p, err := scanPage(rows)
		if err != nil {
			return nil, fmt.Errorf("list pages: %w", err)
		}
		pages = append(pages, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list pages: %w", err)
	}
	return pages, nil
}

// DeletePagesForBook removes all page records of a book. Deleting pages of
// an absent book is a no-op so the ingestion compensation is idempotent.
func (s *Store) DeletePagesForBook(ctx context.Context, bookID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM pages WHERE book_id = ?`, bookID); err != nil {
		return fmt.Errorf("delete pages: %w", err)
	}
	return nil
}

// CountPages recounts a book's pages from ground truth.
func (s *Store) CountPages(ctx context.Context, bookID string) (total, completed int, err error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0)
		   FROM pages WHERE book_id = ?`,
		string(StatusCompleted), bookID)
	if err := row.Scan(&total, &completed); err != nil {
		return 0, 0, fmt.Errorf("count pages: %w", err)
	}
	return total, completed, nil
}

// The transition methods below each execute exactly one conditional UPDATE:
// the WHERE clause carries the full precondition, and the reported row
// count tells the caller whether the transition was applied. Of two
// concurrent callers racing on the same page, at most one observes true.

// ClaimIfAvailable claims an available page for principalID.
func (s *Store) ClaimIfAvailable(ctx context.Context, pageID, principalID string, at time.Time) (bool, error) {
	return s.transition(ctx, `claim`,
		`UPDATE pages SET status = ?, claimed_by = ?, claimed_at = ?, completed_at = NULL
		  WHERE id = ? AND status = ?`,
		string(StatusInProgress), principalID, toMillis(at), pageID, string(StatusAvailable))
}

// ReclaimIfOwner refreshes a claim the principal already holds on an
// in-progress page. Idempotent retry path for claim.
func (s *Store) ReclaimIfOwner(ctx context.Context, pageID, principalID string, at time.Time) (bool, error) {
	return s.transition(ctx, `reclaim`,
		`UPDATE pages SET claimed_at = ?
		  WHERE id = ? AND status = ? AND claimed_by = ?`,
		toMillis(at), pageID, string(StatusInProgress), principalID)
}

// ReopenIfCompletedOwner moves a completed page the principal owns back to
// in-progress. The caller must decrement the book's completed counter
// exactly once when this reports true.
func (s *Store) ReopenIfCompletedOwner(ctx context.Context, pageID, principalID string, at time.Time) (bool, error) {
	return s.transition(ctx, `reopen`,
		`UPDATE pages SET status = ?, claimed_at = ?, completed_at = NULL
		  WHERE id = ? AND status = ? AND claimed_by = ?`,
		string(StatusInProgress), toMillis(at), pageID, string(StatusCompleted), principalID)
}

// CompleteIfOwner completes an in-progress page the principal owns.
func (s *Store) CompleteIfOwner(ctx context.Context, pageID, principalID string, at time.Time) (bool, error) {
	return s.transition(ctx, `complete`,
		`UPDATE pages SET status = ?, completed_at = ?
		  WHERE id = ? AND status = ? AND claimed_by = ?`,
		string(StatusCompleted), toMillis(at), pageID, string(StatusInProgress), principalID)
}

// ForceComplete completes a page regardless of owner (admin path). Pages
// that are available or in-progress qualify. If the page is unclaimed and
// assignTo is non-empty, ownership is assigned to assignTo; an existing
// owner is never overwritten, and an empty assignTo leaves the page
// explicitly unclaimed.
func (s *Store) ForceComplete(ctx context.Context, pageID, assignTo string, at time.Time) (bool, error) {
	return s.transition(ctx, `force complete`,
		`UPDATE pages SET status = ?, completed_at = ?,
		        claimed_by = CASE WHEN claimed_by = '' THEN ? ELSE claimed_by END,
		        claimed_at = CASE WHEN claimed_by = '' AND ? != '' THEN ? ELSE claimed_at END
		  WHERE id = ? AND status IN (?, ?)`,
		string(StatusCompleted), toMillis(at),
		assignTo, assignTo, toMillis(at),
		pageID, string(StatusAvailable), string(StatusInProgress))
}

// UncompleteIfOwner reverts a completed page the principal owns to
// in-progress. The caller decrements the completed counter when true.
func (s *Store) UncompleteIfOwner(ctx context.Context, pageID, principalID string) (bool, error) {
	return s.transition(ctx, `uncomplete`,
		`UPDATE pages SET status = ?, completed_at = NULL
		  WHERE id = ? AND status = ? AND claimed_by = ?`,
		string(StatusInProgress), pageID, string(StatusCompleted), principalID)
}

// ReleaseIfOwner returns a page the principal owns to available, matching
// only the given prior status so the caller knows whether a completed
// counter decrement is owed.
func (s *Store) ReleaseIfOwner(ctx context.Context, pageID, principalID string, from Status) (bool, error) {
	return s.transition(ctx, `release`,
		`UPDATE pages SET status = ?, claimed_by = '', claimed_at = NULL, completed_at = NULL
		  WHERE id = ? AND status = ? AND claimed_by = ?`,
		string(StatusAvailable), pageID, string(from), principalID)
}

// ForceRelease returns a page to available regardless of owner (admin
// path), matching only the given prior status.
func (s *Store) ForceRelease(ctx context.Context, pageID string, from Status) (bool, error) {
	return s.transition(ctx, `force release`,
		`UPDATE pages SET status = ?, claimed_by = '', claimed_at = NULL, completed_at = NULL
		  WHERE id = ? AND status = ?`,
		string(StatusAvailable), pageID, string(from))
}

// SaveTranscription writes a page's transcription text if the principal
// holds the claim. Reports false when the page is not in-progress under
// that principal.
func (s *Store) SaveTranscription(ctx context.Context, pageID, principalID, text string) (bool, error) {
	return s.transition(ctx, `save transcription`,
		`UPDATE pages SET text = ?
		  WHERE id = ? AND status = ? AND claimed_by = ?`,
		text, pageID, string(StatusInProgress), principalID)
}

func (s *Store) transition(ctx context.Context, op, query string, args ...any) (bool, error) {
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("%s page: %w", op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%s page: %w", op, err)
	}
	return n == 1, nil
}
