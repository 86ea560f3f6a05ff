package endpoints

import (
	"io"
	"net/http"
	"os"

	"github.com/spf13/cobra"

	"github.com/pagewright/scriptorium/internal/api"
	"github.com/pagewright/scriptorium/internal/auth"
	"github.com/pagewright/scriptorium/internal/editinfo"
	"github.com/pagewright/scriptorium/internal/svcctx"
)

// GetEditingInfoEndpoint handles GET /api/books/{slug}/editing-info.
type GetEditingInfoEndpoint struct{}

func (e *GetEditingInfoEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/books/{slug}/editing-info", e.handler
}

func (e *GetEditingInfoEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		Get a book's editing instructions
//	@Description	Returns the instructional sections shown to editors before transcribing
//	@Tags			books
//	@Produce		json
//	@Param			slug	path		string	true	"Book slug"
//	@Success		200		{object}	editinfo.Info
//	@Failure		404		{object}	ErrorResponse
//	@Failure		500		{object}	ErrorResponse
//	@Router			/api/books/{slug}/editing-info [get]
func (e *GetEditingInfoEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	book, ok := visibleBook(w, r, r.PathValue("slug"))
	if !ok {
		return
	}

	info, err := editinfo.Parse(book.EditingInfo)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if info.Sections == nil {
		info.Sections = []editinfo.Section{}
	}
	writeJSON(w, http.StatusOK, info)
}

func (e *GetEditingInfoEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "editing-info <book-slug>",
		Short: "Get a book's editing instructions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var info editinfo.Info
			if err := client.Get(cmd.Context(), "/api/books/"+args[0]+"/editing-info", &info); err != nil {
				return err
			}
			return api.Output(info)
		},
	}
}

// SetEditingInfoEndpoint handles PUT /api/books/{slug}/editing-info.
type SetEditingInfoEndpoint struct{}

func (e *SetEditingInfoEndpoint) Route() (string, string, http.HandlerFunc) {
	return "PUT", "/api/books/{slug}/editing-info", e.handler
}

func (e *SetEditingInfoEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		Replace a book's editing instructions
//	@Description	Validates known section shapes and stores the full instruction set; admin only
//	@Tags			books
//	@Accept			json
//	@Produce		json
//	@Param			slug	path		string			true	"Book slug"
//	@Param			request	body		editinfo.Info	true	"Editing instructions"
//	@Success		200		{object}	editinfo.Info
//	@Failure		400		{object}	ErrorResponse
//	@Failure		403		{object}	ErrorResponse
//	@Failure		404		{object}	ErrorResponse
//	@Router			/api/books/{slug}/editing-info [put]
func (e *SetEditingInfoEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	p := auth.FromRequest(r)
	if !p.Valid() {
		writeError(w, http.StatusUnauthorized, "no principal on request")
		return
	}
	if !p.Admin {
		writeError(w, http.StatusForbidden, "admin rights required")
		return
	}

	book, ok := visibleBook(w, r, r.PathValue("slug"))
	if !ok {
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read request body")
		return
	}

	// Parse validates known section shapes and preserves unknown kinds.
	info, err := editinfo.Parse(string(body))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	blob, err := editinfo.Encode(info)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := svcctx.StoreFrom(r.Context()).SetEditingInfo(r.Context(), book.ID, blob); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func (e *SetEditingInfoEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "set-editing-info <book-slug> <info-file>",
		Short: "Replace a book's editing instructions from a JSON file",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[1])
			if err != nil {
				return err
			}
			info, err := editinfo.Parse(string(data))
			if err != nil {
				return err
			}
			client := api.NewClient(getServerURL())
			var resp editinfo.Info
			if err := client.Put(cmd.Context(), "/api/books/"+args[0]+"/editing-info", info, &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
}
