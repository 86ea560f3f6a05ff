package endpoints

import (
	"errors"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/pagewright/scriptorium/internal/api"
	"github.com/pagewright/scriptorium/internal/auth"
	"github.com/pagewright/scriptorium/internal/ingest"
	"github.com/pagewright/scriptorium/internal/svcctx"
)

// maxUploadMemory caps in-memory multipart parsing; larger parts spill
// to temp files.
const maxUploadMemory = 32 << 20

// IngestResponse is the response for a successful ingestion.
type IngestResponse struct {
	BookID    string `json:"book_id"`
	Slug      string `json:"slug"`
	PageCount int    `json:"page_count"`
}

// IngestErrorResponse annotates a failed ingestion with the rollback
// outcome of the compensation pass.
type IngestErrorResponse struct {
	Error             string `json:"error"`
	RollbackPerformed bool   `json:"rollback_performed"`
}

// IngestEndpoint handles POST /api/books/ingest.
type IngestEndpoint struct{}

func (e *IngestEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/api/books/ingest", e.handler
}

func (e *IngestEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		Ingest a scanned book
//	@Description	Uploads a PDF, converts it to page images and registers the book and its pages; admin only
//	@Tags			books
//	@Accept			multipart/form-data
//	@Produce		json
//	@Param			document	formData	file	true	"Scanned book PDF"
//	@Param			name		formData	string	true	"Book name"
//	@Param			category	formData	string	false	"Book category"
//	@Param			hidden		formData	bool	false	"Hide from non-admin listings"
//	@Success		200			{object}	IngestResponse
//	@Failure		400			{object}	ErrorResponse
//	@Failure		403			{object}	ErrorResponse
//	@Failure		500			{object}	IngestErrorResponse
//	@Router			/api/books/ingest [post]
func (e *IngestEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	p := auth.FromRequest(r)
	if !p.Valid() {
		writeError(w, http.StatusUnauthorized, "no principal on request")
		return
	}
	if !p.Admin {
		writeError(w, http.StatusForbidden, "admin rights required")
		return
	}

	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart body")
		return
	}

	file, _, err := r.FormFile("document")
	if err != nil {
		writeError(w, http.StatusBadRequest, "document file is required")
		return
	}
	defer file.Close()

	req := ingest.Request{
		Name:     r.FormValue("name"),
		Category: r.FormValue("category"),
		Hidden:   r.FormValue("hidden") == "true",
		Document: file,
	}

	result, err := svcctx.IngestFrom(r.Context()).Ingest(r.Context(), req)
	if err != nil {
		if errors.Is(err, ingest.ErrMissingData) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		var pf *ingest.PartialFailureError
		if errors.As(err, &pf) {
			writeJSON(w, http.StatusInternalServerError, IngestErrorResponse{
				Error:             pf.Err.Error(),
				RollbackPerformed: pf.RollbackOK,
			})
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, IngestResponse{
		BookID:    result.BookID,
		Slug:      result.Slug,
		PageCount: result.PageCount,
	})
}

func (e *IngestEndpoint) Command(getServerURL func() string) *cobra.Command {
	var name, category string
	var hidden bool
	cmd := &cobra.Command{
		Use:   "ingest <pdf-file>",
		Short: "Ingest a scanned book PDF",
		Long: `Ingest a scanned book as a new transcription project.

The PDF is uploaded to the server, converted to one JPEG per page, and
registered as a book whose pages are all available for claiming.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if name == "" {
				return errors.New("--name is required")
			}
			client := api.NewClient(getServerURL())
			fields := map[string]string{
				"name":     name,
				"category": category,
			}
			if hidden {
				fields["hidden"] = "true"
			}
			var resp IngestResponse
			if err := client.PostFile(cmd.Context(), "/api/books/ingest", "document", args[0], fields, &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "Book name (required)")
	cmd.Flags().StringVar(&category, "category", "", "Book category")
	cmd.Flags().BoolVar(&hidden, "hidden", false, "Hide the book from non-admin listings")
	return cmd
}
