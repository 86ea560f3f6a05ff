package endpoints

import (
	"errors"
	"net/http"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/pagewright/scriptorium/internal/api"
	"github.com/pagewright/scriptorium/internal/auth"
	"github.com/pagewright/scriptorium/internal/store"
	"github.com/pagewright/scriptorium/internal/svcctx"
)

// visibleBook resolves a slug to a book, treating hidden books as absent
// for non-admins. Returns false after writing the error response.
func visibleBook(w http.ResponseWriter, r *http.Request, slug string) (store.Book, bool) {
	book, err := svcctx.StoreFrom(r.Context()).GetBookBySlug(r.Context(), slug)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "book not found")
			return store.Book{}, false
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return store.Book{}, false
	}
	if book.Hidden && !auth.FromRequest(r).Admin {
		writeError(w, http.StatusNotFound, "book not found")
		return store.Book{}, false
	}
	return book, true
}

// ListPagesEndpoint handles GET /api/books/{slug}/pages.
type ListPagesEndpoint struct{}

func (e *ListPagesEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/books/{slug}/pages", e.handler
}

func (e *ListPagesEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		List a book's pages
//	@Description	Lists pages with status and ownership, ordered by page number
//	@Tags			pages
//	@Produce		json
//	@Param			slug	path		string	true	"Book slug"
//	@Success		200		{array}		store.Page
//	@Failure		404		{object}	ErrorResponse
//	@Failure		500		{object}	ErrorResponse
//	@Router			/api/books/{slug}/pages [get]
func (e *ListPagesEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	book, ok := visibleBook(w, r, r.PathValue("slug"))
	if !ok {
		return
	}

	pages, err := svcctx.StoreFrom(r.Context()).ListPages(r.Context(), book.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if pages == nil {
		pages = []store.Page{}
	}
	writeJSON(w, http.StatusOK, pages)
}

func (e *ListPagesEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "pages <book-slug>",
		Short: "List a book's pages",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var pages []store.Page
			if err := client.Get(cmd.Context(), "/api/books/"+args[0]+"/pages", &pages); err != nil {
				return err
			}
			return api.Output(pages)
		},
	}
}

// GetPageEndpoint handles GET /api/pages/{id}.
type GetPageEndpoint struct{}

func (e *GetPageEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/pages/{id}", e.handler
}

func (e *GetPageEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		Get a page by ID
//	@Description	Returns one page with status, ownership and transcription text
//	@Tags			pages
//	@Produce		json
//	@Param			id	path		string	true	"Page ID"
//	@Success		200	{object}	store.Page
//	@Failure		404	{object}	ErrorResponse
//	@Failure		500	{object}	ErrorResponse
//	@Router			/api/pages/{id} [get]
func (e *GetPageEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "page id is required")
		return
	}

	page, err := svcctx.StoreFrom(r.Context()).GetPage(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "page not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (e *GetPageEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "page <page-id>",
		Short: "Get a page by ID",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var page store.Page
			if err := client.Get(cmd.Context(), "/api/pages/"+args[0], &page); err != nil {
				return err
			}
			return api.Output(page)
		},
	}
}

// PageImageEndpoint handles GET /api/books/{slug}/pages/{n}/image.
type PageImageEndpoint struct{}

func (e *PageImageEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/books/{slug}/pages/{n}/image", e.handler
}

func (e *PageImageEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		Serve a page's scanned image
//	@Description	Serves the JPEG asset for one page of a book
//	@Tags			pages
//	@Produce		image/jpeg
//	@Param			slug	path	string	true	"Book slug"
//	@Param			n		path	int		true	"Page number (1-based)"
//	@Success		200
//	@Failure		404	{object}	ErrorResponse
//	@Router			/api/books/{slug}/pages/{n}/image [get]
func (e *PageImageEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	book, ok := visibleBook(w, r, r.PathValue("slug"))
	if !ok {
		return
	}

	n, err := strconv.Atoi(r.PathValue("n"))
	if err != nil || n < 1 {
		writeError(w, http.StatusBadRequest, "invalid page number")
		return
	}

	path := svcctx.HomeFrom(r.Context()).PageImagePath(book.Slug, n)
	if _, err := os.Stat(path); err != nil {
		writeError(w, http.StatusNotFound, "page image not found")
		return
	}

	// Page scans never change after ingestion.
	w.Header().Set("Cache-Control", "public, max-age=86400, immutable")
	http.ServeFile(w, r, path)
}

func (e *PageImageEndpoint) Command(getServerURL func() string) *cobra.Command {
	return nil
}
