package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"
)

// Book is a single ingested book and its aggregate page counters.
//
// TotalPages and CompletedPages are maintained incrementally by page
// transitions and may drift after a crash between a page update and the
// counter update; the reconciler corrects them from the pages table.
type Book struct {
	ID             string    `json:"id"`
	Slug           string    `json:"slug"`
	Name           string    `json:"name"`
	Category       string    `json:"category"`
	TotalPages     int       `json:"total_pages"`
	CompletedPages int       `json:"completed_pages"`
	Hidden         bool      `json:"hidden"`
	EditingInfo    string    `json:"editing_info,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

const bookColumns = `id, slug, name, category, total_pages, completed_pages, hidden, editing_info, created_at`

func scanBook(row interface{ Scan(...any) error }) (Book, error) {
	var b Book
	var hidden int
	var createdAt int64
	err := row.Scan(&b.ID, &b.Slug, &b.Name, &b.Category,
		&b.TotalPages, &b.CompletedPages, &hidden, &b.EditingInfo, &createdAt)
	if err != nil {
		return Book{}, err
	}
	b.Hidden = hidden != 0
	b.CreatedAt = fromMillis(createdAt)
	return b, nil
}

// CreateBook inserts a book record. Returns ErrAlreadyExists if the slug
// is taken.
func (s *Store) CreateBook(ctx context.Context, b Book) error {
	if strings.TrimSpace(b.ID) == "" {
		return fmt.Errorf("book id is required")
	}
	if strings.TrimSpace(b.Slug) == "" {
		return fmt.Errorf("book slug is required")
	}
	createdAt := b.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	hidden := 0
	if b.Hidden {
		hidden = 1
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO books (`+bookColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		b.ID, b.Slug, b.Name, b.Category, b.TotalPages, b.CompletedPages,
		hidden, b.EditingInfo, toMillis(createdAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrAlreadyExists
		}
		return fmt.Errorf("create book: %w", err)
	}
	return nil
}

// GetBook returns a book by id.
func (s *Store) GetBook(ctx context.Context, id string) (Book, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+bookColumns+` FROM books WHERE id = ?`, id)
	b, err := scanBook(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Book{}, ErrNotFound
		}
		return Book{}, fmt.Errorf("get book: %w", err)
	}
	return b, nil
}

// GetBookBySlug returns a book by its slug.
func (s *Store) GetBookBySlug(ctx context.Context, slug string) (Book, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+bookColumns+` FROM books WHERE slug = ?`, slug)
	b, err := scanBook(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Book{}, ErrNotFound
		}
		return Book{}, fmt.Errorf("get book by slug: %w", err)
	}
	return b, nil
}

// ListBooks returns all books ordered by name. Hidden books are excluded
// unless includeHidden is set.
func (s *Store) ListBooks(ctx context.Context, includeHidden bool) ([]Book, error) {
	query := `SELECT ` + bookColumns + ` FROM books ORDER BY name ASC`
	if !includeHidden {
		query = `SELECT ` + bookColumns + ` FROM books WHERE hidden = 0 ORDER BY name ASC`
	}
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list books: %w", err)
	}
	defer rows.Close()

	var books []Book
	for rows.Next() {
		b, err := scanBook(rows)
		if err != nil {
			return nil, fmt.Errorf("list books: %w", err)
		}
		books = append(books, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list books: %w", err)
	}
	return books, nil
}

// DeleteBook removes a book record. Deleting an absent book is a no-op.
func (s *Store) DeleteBook(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM books WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete book: %w", err)
	}
	return nil
}

// AdjustCompletedPages applies a signed increment to a book's completed
// counter. Each transition that changes completion status calls this with
// exactly +1 or -1; it is never a recomputation.
func (s *Store) AdjustCompletedPages(ctx context.Context, bookID string, delta int) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE books SET completed_pages = completed_pages + ? WHERE id = ?`,
		delta, bookID)
	if err != nil {
		return fmt.Errorf("adjust completed pages: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("adjust completed pages: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// SetBookCounters overwrites both aggregate counters. Used only by the
// reconciler after recounting from the pages table.
func (s *Store) SetBookCounters(ctx context.Context, bookID string, totalPages, completedPages int) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE books SET total_pages = ?, completed_pages = ? WHERE id = ?`,
		totalPages, completedPages, bookID)
	if err != nil {
		return fmt.Errorf("set book counters: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("set book counters: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// SetEditingInfo replaces a book's editing instructions blob.
func (s *Store) SetEditingInfo(ctx context.Context, bookID, info string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE books SET editing_info = ? WHERE id = ?`, info, bookID)
	if err != nil {
		return fmt.Errorf("set editing info: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("set editing info: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3lib.SQLITE_CONSTRAINT_UNIQUE:
			return true
		}
	}
	return strings.Contains(strings.ToLower(err.Error()), "unique constraint failed")
}
