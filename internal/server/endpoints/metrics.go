package endpoints

import (
	"net/http"
	"net/url"

	"github.com/spf13/cobra"

	"github.com/dajtuba/constructosaurus-sub001/internal/api"
	"github.com/dajtuba/constructosaurus-sub001/internal/metrics"
	"github.com/dajtuba/constructosaurus-sub001/internal/svcctx"
)

// MetricsSummaryEndpoint handles GET /api/v1/metrics/summary.
type MetricsSummaryEndpoint struct{}

func (e *MetricsSummaryEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/v1/metrics/summary", e.handler
}

func (e *MetricsSummaryEndpoint) RequiresInit() bool { return false }

func (e *MetricsSummaryEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	recorder := svcctx.RecorderFrom(r.Context())
	if recorder == nil {
		writeError(w, http.StatusServiceUnavailable, "metrics recorder not initialized")
		return
	}

	f := metrics.Filter{
		RequestID: r.URL.Query().Get("request_id"),
		Method:    r.URL.Query().Get("method"),
		Provider:  r.URL.Query().Get("provider"),
		Model:     r.URL.Query().Get("model"),
	}

	writeJSON(w, http.StatusOK, recorder.GetSummary(f))
}

func (e *MetricsSummaryEndpoint) Command(getServerURL func() string) *cobra.Command {
	var requestID, method, provider, model string

	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Summarize recorded inference calls",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())

			q := url.Values{}
			if requestID != "" {
				q.Set("request_id", requestID)
			}
			if method != "" {
				q.Set("method", method)
			}
			if provider != "" {
				q.Set("provider", provider)
			}
			if model != "" {
				q.Set("model", model)
			}
			path := "/api/v1/metrics/summary"
			if len(q) > 0 {
				path += "?" + q.Encode()
			}

			var resp metrics.Summary
			if err := client.Get(cmd.Context(), path, &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}

	cmd.Flags().StringVar(&requestID, "request", "", "Filter by request ID")
	cmd.Flags().StringVar(&method, "method", "", "Filter by extraction method")
	cmd.Flags().StringVar(&provider, "provider", "", "Filter by provider")
	cmd.Flags().StringVar(&model, "model", "", "Filter by model")

	return cmd
}
