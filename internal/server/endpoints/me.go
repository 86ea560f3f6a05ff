package endpoints

import (
	"net/http"

	"github.com/spf13/cobra"

	"github.com/pagewright/scriptorium/internal/api"
	"github.com/pagewright/scriptorium/internal/auth"
	"github.com/pagewright/scriptorium/internal/svcctx"
)

// MeResponse describes the calling principal as the server sees it.
type MeResponse struct {
	ID            string `json:"id"`
	Admin         bool   `json:"admin"`
	TermsAccepted bool   `json:"terms_accepted"`
	Points        int    `json:"points"`
}

// MeEndpoint handles GET /api/me.
type MeEndpoint struct{}

func (e *MeEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/me", e.handler
}

func (e *MeEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		Get the calling principal
//	@Description	Returns the identity headers as parsed plus the accumulated points balance
//	@Tags			principals
//	@Produce		json
//	@Success		200	{object}	MeResponse
//	@Failure		401	{object}	ErrorResponse
//	@Router			/api/me [get]
func (e *MeEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	p := auth.FromRequest(r)
	if !p.Valid() {
		writeError(w, http.StatusUnauthorized, "no principal on request")
		return
	}

	rec, err := svcctx.StoreFrom(r.Context()).GetPrincipal(r.Context(), p.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, MeResponse{
		ID:            p.ID,
		Admin:         p.Admin,
		TermsAccepted: p.TermsAccepted,
		Points:        rec.Points,
	})
}

func (e *MeEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "me",
		Short: "Show the calling principal and points balance",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp MeResponse
			if err := client.Get(cmd.Context(), "/api/me", &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
}
