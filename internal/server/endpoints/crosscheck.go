package endpoints

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"

	"github.com/spf13/cobra"

	"github.com/dajtuba/constructosaurus-sub001/internal/api"
	"github.com/dajtuba/constructosaurus-sub001/internal/crosscheck"
	"github.com/dajtuba/constructosaurus-sub001/internal/extraction"
	"github.com/dajtuba/constructosaurus-sub001/internal/svcctx"
)

// CrosscheckRequest carries schedule rows and independently calculated
// quantities to compare.
type CrosscheckRequest struct {
	ScheduleRows []map[string]any                `json:"schedule_rows"`
	Calculated   []crosscheck.CalculatedQuantity `json:"calculated"`
}

// CrosscheckResponse lists the quantity discrepancies found.
type CrosscheckResponse struct {
	Discrepancies []extraction.QuantityDiscrepancy `json:"discrepancies"`
}

// CrosscheckEndpoint handles POST /api/v1/crosscheck. It is a pure
// computation and works even before the model runtime is up.
type CrosscheckEndpoint struct{}

func (e *CrosscheckEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/api/v1/crosscheck", e.handler
}

func (e *CrosscheckEndpoint) RequiresInit() bool { return false }

func (e *CrosscheckEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	var req CrosscheckRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.Calculated) == 0 {
		writeError(w, http.StatusBadRequest, "calculated is required")
		return
	}

	opts := crosscheck.DefaultOptions()
	if mgr := svcctx.ConfigFrom(r.Context()); mgr != nil {
		cc := mgr.Get().Crosscheck
		opts = crosscheck.Options{MinorPct: cc.MinorPct, ModeratePct: cc.ModeratePct}
	}

	discrepancies := crosscheck.CrossCheck(req.ScheduleRows, req.Calculated, opts)
	if discrepancies == nil {
		discrepancies = []extraction.QuantityDiscrepancy{}
	}
	writeJSON(w, http.StatusOK, CrosscheckResponse{Discrepancies: discrepancies})
}

func (e *CrosscheckEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "crosscheck <request.json>",
		Short: "Cross-check schedule quantities against calculated takeoffs",
		Long: `Cross-check schedule quantities against independently calculated ones.

The argument is a JSON file with the request body:

  {
    "schedule_rows": [{"mark": "B1", "qty": 10}, ...],
    "calculated":    [{"item": "B1", "quantity": 13, "source": "plan takeoff"}, ...]
  }`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("failed to read request file: %w", err)
			}
			var req CrosscheckRequest
			if err := json.Unmarshal(data, &req); err != nil {
				return fmt.Errorf("invalid request file: %w", err)
			}

			client := api.NewClient(getServerURL())
			var resp CrosscheckResponse
			if err := client.Post(cmd.Context(), "/api/v1/crosscheck", req, &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
}
