package endpoints

import (
	"fmt"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/dajtuba/constructosaurus-sub001/internal/api"
	"github.com/dajtuba/constructosaurus-sub001/internal/cache"
	"github.com/dajtuba/constructosaurus-sub001/internal/svcctx"
)

// CacheStatsResponse reports cache state and counters.
type CacheStatsResponse struct {
	Enabled bool        `json:"enabled"`
	Stats   cache.Stats `json:"stats"`
}

// CacheStatsEndpoint handles GET /api/v1/cache/stats.
type CacheStatsEndpoint struct{}

func (e *CacheStatsEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/v1/cache/stats", e.handler
}

func (e *CacheStatsEndpoint) RequiresInit() bool { return false }

func (e *CacheStatsEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	c := svcctx.CacheFrom(r.Context())
	if c == nil {
		writeJSON(w, http.StatusOK, CacheStatsResponse{Enabled: false})
		return
	}
	writeJSON(w, http.StatusOK, CacheStatsResponse{Enabled: true, Stats: c.Stats()})
}

func (e *CacheStatsEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show extraction cache statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp CacheStatsResponse
			if err := client.Get(cmd.Context(), "/api/v1/cache/stats", &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
}

// CachePurgeResponse reports how many entries a purge removed.
type CachePurgeResponse struct {
	Enabled bool `json:"enabled"`
	Removed int  `json:"removed"`
}

// CachePurgeEndpoint handles POST /api/v1/cache/purge.
type CachePurgeEndpoint struct{}

func (e *CachePurgeEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/api/v1/cache/purge", e.handler
}

func (e *CachePurgeEndpoint) RequiresInit() bool { return false }

func (e *CachePurgeEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	c := svcctx.CacheFrom(r.Context())
	if c == nil {
		writeJSON(w, http.StatusOK, CachePurgeResponse{Enabled: false})
		return
	}

	removed, err := c.Purge()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, CachePurgeResponse{Enabled: true, Removed: removed})
}

func (e *CachePurgeEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "purge",
		Short: "Remove expired and corrupt cache entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp CachePurgeResponse
			if err := client.Post(cmd.Context(), "/api/v1/cache/purge", nil, &resp); err != nil {
				return err
			}
			if !resp.Enabled {
				fmt.Println("Cache is disabled")
				return nil
			}
			fmt.Printf("Removed %d entries\n", resp.Removed)
			return nil
		},
	}
}
