package endpoints

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/dajtuba/constructosaurus-sub001/internal/api"
	"github.com/dajtuba/constructosaurus-sub001/internal/crosscheck"
	"github.com/dajtuba/constructosaurus-sub001/internal/ensemble"
	"github.com/dajtuba/constructosaurus-sub001/internal/svcctx"
)

// ExtractRequest is the request body for extraction runs. Exactly one of
// ImagePath, ImageB64, or Set must be given. ImagePath is resolved on the
// server's filesystem; Set addresses a sheet image stored under the server's
// drawings directory by set ID and page number.
type ExtractRequest struct {
	ImagePath        string                          `json:"image_path,omitempty"`
	ImageB64         string                          `json:"image_b64,omitempty"`
	Set              string                          `json:"set,omitempty"`
	Page             int                             `json:"page"`
	Discipline       string                          `json:"discipline,omitempty"`
	Focus            string                          `json:"focus,omitempty"`
	TargetConfidence float64                         `json:"target_confidence,omitempty"`
	MaxMethod        string                          `json:"max_method,omitempty"`
	Calculated       []crosscheck.CalculatedQuantity `json:"calculated,omitempty"`
	RequestID        string                          `json:"request_id,omitempty"`
}

// ExtractEndpoint handles POST /api/v1/extract.
type ExtractEndpoint struct{}

func (e *ExtractEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/api/v1/extract", e.handler
}

func (e *ExtractEndpoint) RequiresInit() bool { return true }

func (e *ExtractEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	var req ExtractRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.ImagePath == "" && req.ImageB64 == "" && req.Set == "" {
		writeError(w, http.StatusBadRequest, "image_path, image_b64, or set is required")
		return
	}

	var image []byte
	if req.ImageB64 != "" {
		data, err := base64.StdEncoding.DecodeString(req.ImageB64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "image_b64 is not valid base64")
			return
		}
		image = data
	}

	if req.ImagePath == "" && image == nil {
		if req.Page < 1 {
			writeError(w, http.StatusBadRequest, "set addressing requires a page number of 1 or higher")
			return
		}
		h := svcctx.HomeFrom(r.Context())
		if h == nil {
			writeError(w, http.StatusServiceUnavailable, "home directory not initialized")
			return
		}
		req.ImagePath = h.SheetImagePath(req.Set, req.Page)
	}

	controller := svcctx.ControllerFrom(r.Context())
	if controller == nil {
		writeError(w, http.StatusServiceUnavailable, "extraction controller not initialized")
		return
	}

	result, err := controller.Extract(r.Context(), ensemble.ExtractRequest{
		Image:            image,
		ImagePath:        req.ImagePath,
		PageNumber:       req.Page,
		Discipline:       req.Discipline,
		Focus:            req.Focus,
		TargetConfidence: req.TargetConfidence,
		MaxMethod:        req.MaxMethod,
		Calculated:       req.Calculated,
		RequestID:        req.RequestID,
	})
	if err != nil {
		if errors.Is(err, ensemble.ErrNoModelsReady) {
			writeError(w, http.StatusServiceUnavailable, err.Error())
			return
		}
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func (e *ExtractEndpoint) Command(getServerURL func() string) *cobra.Command {
	var (
		page       int
		discipline string
		focus      string
		target     float64
		maxMethod  string
		sendPath   bool
	)
	cmd := &cobra.Command{
		Use:   "extract <image>",
		Short: "Extract structural quantities from a drawing image",
		Long: `Extract structural quantities from a drawing page image.

The image is read locally and sent to the server as base64. Use
--server-path when the path is visible to the server's filesystem and
you want to skip the upload.

The ladder escalates through extraction tiers until the target
confidence is reached; --max-method caps how far it may go
(single, multi_pass, multi_model, full_ensemble).`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			req := ExtractRequest{
				Page:             page,
				Discipline:       discipline,
				Focus:            focus,
				TargetConfidence: target,
				MaxMethod:        maxMethod,
			}

			if sendPath {
				abs, err := filepath.Abs(args[0])
				if err != nil {
					return fmt.Errorf("invalid path %s: %w", args[0], err)
				}
				req.ImagePath = abs
			} else {
				data, err := os.ReadFile(args[0])
				if err != nil {
					return fmt.Errorf("failed to read image: %w", err)
				}
				req.ImageB64 = base64.StdEncoding.EncodeToString(data)
			}

			client := api.NewClient(getServerURL())
			var resp ensemble.EscalationResult
			if err := client.Post(ctx, "/api/v1/extract", req, &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
	cmd.Flags().IntVar(&page, "page", 0, "Page number recorded on the result")
	cmd.Flags().StringVar(&discipline, "discipline", "", "Drawing discipline (structural, architectural, ...)")
	cmd.Flags().StringVar(&focus, "focus", "", "Extraction focus hint (e.g. \"beam schedule\")")
	cmd.Flags().Float64Var(&target, "target", 0, "Target confidence (0 uses the server default)")
	cmd.Flags().StringVar(&maxMethod, "max-method", "", "Highest tier the ladder may reach")
	cmd.Flags().BoolVar(&sendPath, "server-path", false, "Send the path instead of uploading the image")
	return cmd
}
