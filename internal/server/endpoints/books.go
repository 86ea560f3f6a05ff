package endpoints

import (
	"errors"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/pagewright/scriptorium/internal/api"
	"github.com/pagewright/scriptorium/internal/auth"
	"github.com/pagewright/scriptorium/internal/store"
	"github.com/pagewright/scriptorium/internal/svcctx"
)

// ListBooksEndpoint handles GET /api/books.
type ListBooksEndpoint struct{}

func (e *ListBooksEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/books", e.handler
}

func (e *ListBooksEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		List books
//	@Description	Lists books with their aggregate counters; hidden books require admin
//	@Tags			books
//	@Produce		json
//	@Success		200	{array}		store.Book
//	@Failure		500	{object}	ErrorResponse
//	@Router			/api/books [get]
func (e *ListBooksEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	p := auth.FromRequest(r)
	books, err := svcctx.StoreFrom(r.Context()).ListBooks(r.Context(), p.Admin)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if books == nil {
		books = []store.Book{}
	}
	writeJSON(w, http.StatusOK, books)
}

func (e *ListBooksEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "books",
		Short: "List books",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var books []store.Book
			if err := client.Get(cmd.Context(), "/api/books", &books); err != nil {
				return err
			}
			return api.Output(books)
		},
	}
}

// GetBookEndpoint handles GET /api/books/{slug}.
type GetBookEndpoint struct{}

func (e *GetBookEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/books/{slug}", e.handler
}

func (e *GetBookEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		Get a book by slug
//	@Description	Returns one book with its aggregate counters
//	@Tags			books
//	@Produce		json
//	@Param			slug	path		string	true	"Book slug"
//	@Success		200		{object}	store.Book
//	@Failure		404		{object}	ErrorResponse
//	@Failure		500		{object}	ErrorResponse
//	@Router			/api/books/{slug} [get]
func (e *GetBookEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	slug := r.PathValue("slug")
	if slug == "" {
		writeError(w, http.StatusBadRequest, "book slug is required")
		return
	}

	book, err := svcctx.StoreFrom(r.Context()).GetBookBySlug(r.Context(), slug)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "book not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	// Hidden books are invisible to non-admins.
	if book.Hidden && !auth.FromRequest(r).Admin {
		writeError(w, http.StatusNotFound, "book not found")
		return
	}

	writeJSON(w, http.StatusOK, book)
}

func (e *GetBookEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "book <slug>",
		Short: "Get a book by slug",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var book store.Book
			if err := client.Get(cmd.Context(), "/api/books/"+args[0], &book); err != nil {
				return err
			}
			return api.Output(book)
		},
	}
}
