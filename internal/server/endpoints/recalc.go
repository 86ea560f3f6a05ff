package endpoints

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/pagewright/scriptorium/internal/api"
	"github.com/pagewright/scriptorium/internal/auth"
	"github.com/pagewright/scriptorium/internal/reconcile"
	"github.com/pagewright/scriptorium/internal/store"
	"github.com/pagewright/scriptorium/internal/svcctx"
)

// RecalcRequest is the body for POST /api/admin/recalc.
type RecalcRequest struct {
	// Scope is "book" (requires BookID) or "all".
	Scope  string `json:"scope"`
	BookID string `json:"book_id,omitempty"`
}

// RecalcResponse reports the corrections a reconciliation pass wrote.
type RecalcResponse struct {
	UpdatedCount int              `json:"updated_count"`
	Diffs        []reconcile.Diff `json:"diffs"`
}

// RecalcEndpoint handles POST /api/admin/recalc.
type RecalcEndpoint struct{}

func (e *RecalcEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/api/admin/recalc", e.handler
}

func (e *RecalcEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		Reconcile book counters
//	@Description	Recounts pages and overwrites drifted book aggregates; admin only
//	@Tags			admin
//	@Accept			json
//	@Produce		json
//	@Param			request	body		RecalcRequest	true	"Reconciliation scope"
//	@Success		200		{object}	RecalcResponse
//	@Failure		400		{object}	ErrorResponse
//	@Failure		403		{object}	ErrorResponse
//	@Failure		404		{object}	ErrorResponse
//	@Router			/api/admin/recalc [post]
func (e *RecalcEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	p := auth.FromRequest(r)
	if !p.Valid() {
		writeError(w, http.StatusUnauthorized, "no principal on request")
		return
	}
	if !p.Admin {
		writeError(w, http.StatusForbidden, "admin rights required")
		return
	}

	var req RecalcRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	rec := svcctx.ReconcilerFrom(r.Context())
	resp := RecalcResponse{Diffs: []reconcile.Diff{}}

	switch req.Scope {
	case "book":
		if req.BookID == "" {
			writeError(w, http.StatusBadRequest, "book_id is required for scope book")
			return
		}
		diff, err := rec.Recalculate(r.Context(), req.BookID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				writeError(w, http.StatusNotFound, "book not found")
				return
			}
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		if diff != nil {
			resp.Diffs = append(resp.Diffs, *diff)
		}
	case "all":
		diffs, err := rec.RecalculateAll(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		resp.Diffs = append(resp.Diffs, diffs...)
	default:
		writeError(w, http.StatusBadRequest, "scope must be \"book\" or \"all\"")
		return
	}

	resp.UpdatedCount = len(resp.Diffs)
	writeJSON(w, http.StatusOK, resp)
}

func (e *RecalcEndpoint) Command(getServerURL func() string) *cobra.Command {
	var scope, bookID string
	cmd := &cobra.Command{
		Use:   "recalc",
		Short: "Reconcile book counters against the pages table",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp RecalcResponse
			req := RecalcRequest{Scope: scope, BookID: bookID}
			if err := client.Post(cmd.Context(), "/api/admin/recalc", req, &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
	cmd.Flags().StringVar(&scope, "scope", "all", "reconciliation scope: book or all")
	cmd.Flags().StringVar(&bookID, "book-id", "", "book to reconcile (scope book)")
	return cmd
}
