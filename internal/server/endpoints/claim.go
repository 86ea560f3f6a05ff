package endpoints

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/pagewright/scriptorium/internal/api"
	"github.com/pagewright/scriptorium/internal/auth"
	"github.com/pagewright/scriptorium/internal/claim"
	"github.com/pagewright/scriptorium/internal/store"
	"github.com/pagewright/scriptorium/internal/svcctx"
)

// editorFromRequest extracts the principal and enforces the gates shared
// by every page mutation: an identity must be present and the terms of
// service accepted. Returns false after writing the error response.
func editorFromRequest(w http.ResponseWriter, r *http.Request) (auth.Principal, bool) {
	p := auth.FromRequest(r)
	if !p.Valid() {
		writeError(w, http.StatusUnauthorized, "no principal on request")
		return auth.Principal{}, false
	}
	if !p.TermsAccepted {
		writeError(w, http.StatusForbidden, "terms of service not accepted")
		return auth.Principal{}, false
	}
	return p, true
}

// claimErrorStatus maps the claim service's error taxonomy to HTTP codes.
// Unauthorized maps to 404 so ownership of hidden work is not leaked.
func claimErrorStatus(err error) int {
	switch {
	case errors.Is(err, claim.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, claim.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, claim.ErrInvalidState):
		return http.StatusBadRequest
	case errors.Is(err, claim.ErrUnauthorized):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// ClaimRequest is the body for POST /api/pages/claim.
type ClaimRequest struct {
	BookSlug   string `json:"book_slug"`
	PageNumber int    `json:"page_number"`
}

// ClaimPageEndpoint handles POST /api/pages/claim.
type ClaimPageEndpoint struct{}

func (e *ClaimPageEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/api/pages/claim", e.handler
}

func (e *ClaimPageEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		Claim a page for editing
//	@Description	Assigns editing ownership of a page to the calling principal
//	@Tags			pages
//	@Accept			json
//	@Produce		json
//	@Param			request	body		ClaimRequest	true	"Page to claim"
//	@Success		200		{object}	store.Page
//	@Failure		400		{object}	ErrorResponse
//	@Failure		403		{object}	ErrorResponse
//	@Failure		404		{object}	ErrorResponse
//	@Failure		409		{object}	ErrorResponse
//	@Router			/api/pages/claim [post]
func (e *ClaimPageEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	p, ok := editorFromRequest(w, r)
	if !ok {
		return
	}

	var req ClaimRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.BookSlug == "" || req.PageNumber < 1 {
		writeError(w, http.StatusBadRequest, "book_slug and page_number are required")
		return
	}

	page, err := svcctx.ClaimsFrom(r.Context()).Claim(r.Context(), req.BookSlug, req.PageNumber, p)
	if err != nil {
		writeError(w, claimErrorStatus(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (e *ClaimPageEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "claim <book-slug> <page-number>",
		Short: "Claim a page for editing",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var pageNumber int
			if _, err := fmt.Sscanf(args[1], "%d", &pageNumber); err != nil {
				return fmt.Errorf("invalid page number %q", args[1])
			}
			client := api.NewClient(getServerURL())
			var page store.Page
			req := ClaimRequest{BookSlug: args[0], PageNumber: pageNumber}
			if err := client.Post(cmd.Context(), "/api/pages/claim", req, &page); err != nil {
				return err
			}
			return api.Output(page)
		},
	}
}

// CompleteRequest is the optional body for POST /api/pages/{id}/complete.
type CompleteRequest struct {
	// LeaveUnclaimed keeps an unclaimed page unclaimed when an admin
	// force-completes it, instead of assigning it to the admin.
	LeaveUnclaimed bool `json:"leave_unclaimed,omitempty"`
}

// CompletePageEndpoint handles POST /api/pages/{id}/complete.
type CompletePageEndpoint struct{}

func (e *CompletePageEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/api/pages/{id}/complete", e.handler
}

func (e *CompletePageEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		Mark a page as completed
//	@Description	Completes an in-progress page the principal owns; admins may complete any non-completed page
//	@Tags			pages
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string			true	"Page ID"
//	@Param			request	body		CompleteRequest	false	"Admin options"
//	@Success		200		{object}	store.Page
//	@Failure		400		{object}	ErrorResponse
//	@Failure		404		{object}	ErrorResponse
//	@Router			/api/pages/{id}/complete [post]
func (e *CompletePageEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	p, ok := editorFromRequest(w, r)
	if !ok {
		return
	}
	id := r.PathValue("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "page id is required")
		return
	}

	var req CompleteRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	page, err := svcctx.ClaimsFrom(r.Context()).Complete(r.Context(), id, p, req.LeaveUnclaimed)
	if err != nil {
		writeError(w, claimErrorStatus(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (e *CompletePageEndpoint) Command(getServerURL func() string) *cobra.Command {
	var leaveUnclaimed bool
	cmd := &cobra.Command{
		Use:   "complete <page-id>",
		Short: "Mark a page as completed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var page store.Page
			req := CompleteRequest{LeaveUnclaimed: leaveUnclaimed}
			if err := client.Post(cmd.Context(), "/api/pages/"+args[0]+"/complete", req, &page); err != nil {
				return err
			}
			return api.Output(page)
		},
	}
	cmd.Flags().BoolVar(&leaveUnclaimed, "leave-unclaimed", false, "admin: do not assign an unclaimed page on completion")
	return cmd
}

// UncompletePageEndpoint handles POST /api/pages/{id}/uncomplete.
type UncompletePageEndpoint struct{}

func (e *UncompletePageEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/api/pages/{id}/uncomplete", e.handler
}

func (e *UncompletePageEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		Revert a completed page to in-progress
//	@Description	Undoes the completion of a page the principal owns, reversing the counter and points exactly
//	@Tags			pages
//	@Produce		json
//	@Param			id	path		string	true	"Page ID"
//	@Success		200	{object}	store.Page
//	@Failure		400	{object}	ErrorResponse
//	@Router			/api/pages/{id}/uncomplete [post]
func (e *UncompletePageEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	p, ok := editorFromRequest(w, r)
	if !ok {
		return
	}
	id := r.PathValue("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "page id is required")
		return
	}

	page, err := svcctx.ClaimsFrom(r.Context()).Uncomplete(r.Context(), id, p)
	if err != nil {
		writeError(w, claimErrorStatus(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (e *UncompletePageEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "uncomplete <page-id>",
		Short: "Revert a completed page to in-progress",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var page store.Page
			if err := client.Post(cmd.Context(), "/api/pages/"+args[0]+"/uncomplete", nil, &page); err != nil {
				return err
			}
			return api.Output(page)
		},
	}
}

// ReleasePageEndpoint handles POST /api/pages/{id}/release.
type ReleasePageEndpoint struct{}

func (e *ReleasePageEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/api/pages/{id}/release", e.handler
}

func (e *ReleasePageEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		Release a page back to available
//	@Description	Clears ownership and timestamps; owners release their own pages, admins any page
//	@Tags			pages
//	@Produce		json
//	@Param			id	path		string	true	"Page ID"
//	@Success		200	{object}	store.Page
//	@Failure		404	{object}	ErrorResponse
//	@Router			/api/pages/{id}/release [post]
func (e *ReleasePageEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	p, ok := editorFromRequest(w, r)
	if !ok {
		return
	}
	id := r.PathValue("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "page id is required")
		return
	}

	page, err := svcctx.ClaimsFrom(r.Context()).Release(r.Context(), id, p)
	if err != nil {
		writeError(w, claimErrorStatus(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (e *ReleasePageEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "release <page-id>",
		Short: "Release a page back to available",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var page store.Page
			if err := client.Post(cmd.Context(), "/api/pages/"+args[0]+"/release", nil, &page); err != nil {
				return err
			}
			return api.Output(page)
		},
	}
}

// SaveTextRequest is the body for PUT /api/pages/{id}/text.
type SaveTextRequest struct {
	Text string `json:"text"`
}

// SaveTextEndpoint handles PUT /api/pages/{id}/text.
type SaveTextEndpoint struct{}

func (e *SaveTextEndpoint) Route() (string, string, http.HandlerFunc) {
	return "PUT", "/api/pages/{id}/text", e.handler
}

func (e *SaveTextEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		Save transcription text for a page
//	@Description	Writes transcription content; only the principal actively editing the page may save
//	@Tags			pages
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string			true	"Page ID"
//	@Param			request	body		SaveTextRequest	true	"Transcription content"
//	@Success		200		{object}	store.Page
//	@Failure		400		{object}	ErrorResponse
//	@Failure		404		{object}	ErrorResponse
//	@Router			/api/pages/{id}/text [put]
func (e *SaveTextEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	p, ok := editorFromRequest(w, r)
	if !ok {
		return
	}
	id := r.PathValue("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "page id is required")
		return
	}

	var req SaveTextRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	page, err := svcctx.ClaimsFrom(r.Context()).SaveText(r.Context(), id, p, req.Text)
	if err != nil {
		writeError(w, claimErrorStatus(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (e *SaveTextEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "save-text <page-id> <text>",
		Short: "Save transcription text for a page",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var page store.Page
			req := SaveTextRequest{Text: args[1]}
			if err := client.Put(cmd.Context(), "/api/pages/"+args[0]+"/text", req, &page); err != nil {
				return err
			}
			return api.Output(page)
		},
	}
}
