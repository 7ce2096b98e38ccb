package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/dajtuba/constructosaurus-sub001/internal/analysis"
	"github.com/dajtuba/constructosaurus-sub001/internal/api"
	"github.com/dajtuba/constructosaurus-sub001/internal/cache"
	"github.com/dajtuba/constructosaurus-sub001/internal/config"
	"github.com/dajtuba/constructosaurus-sub001/internal/crosscheck"
	"github.com/dajtuba/constructosaurus-sub001/internal/ensemble"
	"github.com/dajtuba/constructosaurus-sub001/internal/metrics"
	"github.com/dajtuba/constructosaurus-sub001/internal/ollama"
	"github.com/dajtuba/constructosaurus-sub001/internal/providers"
)

var (
	extractPage       int
	extractDiscipline string
	extractFocus      string
	extractTarget     float64
	extractMaxMethod  string
	extractCalcFile   string
)

var extractCmd = &cobra.Command{
	Use:   "extract <image>",
	Short: "Extract structural quantities from a drawing image locally",
	Long: `Extract structural quantities from a drawing page image without going
through the server.

The extraction ladder runs in-process against the configured Ollama
runtime, which must already be up (constructosaurus ollama start, or an
external runtime with ollama.managed: false). Results are cached under
the home directory the same way the server caches them.

Pass --calculated a JSON file of independently calculated quantities
([{"item": "B1", "quantity": 13, "source": "plan takeoff"}]) to
cross-check extracted schedule totals in the same run.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		h, err := getHome()
		if err != nil {
			return err
		}

		cfgMgr, err := config.NewManager(cfgFile)
		if err != nil {
			return err
		}
		cfg := cfgMgr.Get()
		logger := newLogger(cfg.Logging)

		// Same runtime resolution as the server: managed containers publish
		// on localhost at the configured port.
		runtimeURL := config.ResolveEnvVars(cfg.Ollama.BaseURL)
		if cfg.Ollama.Managed {
			runtimeURL = fmt.Sprintf("http://localhost:%s", cfg.Ollama.Port)
		}
		if err := ollama.NewClient(runtimeURL).HealthCheck(ctx); err != nil {
			return fmt.Errorf("runtime not reachable at %s (try 'constructosaurus ollama start'): %w", runtimeURL, err)
		}

		rc := cfg.ToRegistryConfig()
		rc.BaseURL = runtimeURL
		registry := providers.NewRegistryFromConfig(rc)
		registry.SetLogger(logger)

		var resultCache *cache.Cache
		if cfg.Cache.Enabled {
			dir := cfg.Cache.Dir
			if dir == "" {
				dir = h.CachePath()
			}
			resultCache, err = cache.New(cache.Config{
				Dir:    dir,
				TTL:    time.Duration(cfg.Cache.TTLHours) * time.Hour,
				Logger: logger,
			})
			if err != nil {
				return fmt.Errorf("failed to open cache: %w", err)
			}
		}

		var calculated []crosscheck.CalculatedQuantity
		if extractCalcFile != "" {
			data, err := os.ReadFile(extractCalcFile)
			if err != nil {
				return fmt.Errorf("failed to read calculated quantities: %w", err)
			}
			if err := json.Unmarshal(data, &calculated); err != nil {
				return fmt.Errorf("invalid calculated quantities file: %w", err)
			}
		}

		analysisTimeout := time.Duration(cfg.Analysis.TimeoutSeconds) * time.Second
		controller := ensemble.NewController(ensemble.ControllerDeps{
			Registry:     registry,
			Cache:        resultCache,
			Preprocessor: analysis.NewPreprocessor(cfg.Analysis.PreprocessorURL, analysisTimeout, logger),
			GridCounter:  analysis.NewGridCounter(cfg.Analysis.GridURL, analysisTimeout, logger),
			Recorder:     metrics.NewRecorder(0),
			Logger:       logger,
		}, ensemble.ControllerConfig{
			TargetConfidence: cfg.Escalation.TargetConfidence,
			Passes:           cfg.Escalation.Passes,
			Parallelism:      cfg.Escalation.Parallelism,
			PassTimeout:      time.Duration(cfg.Escalation.PassTimeoutSeconds) * time.Second,
			MaxMethod:        cfg.Escalation.MaxMethod,
			SingleCeiling:    cfg.Confidence.SinglePassCeiling,
			EnsembleCeiling:  cfg.Confidence.EnsembleCeiling,
			Crosscheck: crosscheck.Options{
				MinorPct:    cfg.Crosscheck.MinorPct,
				ModeratePct: cfg.Crosscheck.ModeratePct,
			},
		})

		abs, err := filepath.Abs(args[0])
		if err != nil {
			return fmt.Errorf("invalid path %s: %w", args[0], err)
		}

		result, err := controller.Extract(ctx, ensemble.ExtractRequest{
			ImagePath:        abs,
			PageNumber:       extractPage,
			Discipline:       extractDiscipline,
			Focus:            extractFocus,
			TargetConfidence: extractTarget,
			MaxMethod:        extractMaxMethod,
			Calculated:       calculated,
		})
		if err != nil {
			return err
		}
		return api.Output(result)
	},
}

func init() {
	extractCmd.Flags().IntVar(&extractPage, "page", 0, "Page number recorded on the result")
	extractCmd.Flags().StringVar(&extractDiscipline, "discipline", "", "Drawing discipline (structural, architectural, ...)")
	extractCmd.Flags().StringVar(&extractFocus, "focus", "", "Extraction focus hint (e.g. \"beam schedule\")")
	extractCmd.Flags().Float64Var(&extractTarget, "target", 0, "Target confidence (0 uses the configured default)")
	extractCmd.Flags().StringVar(&extractMaxMethod, "max-method", "", "Highest tier the ladder may reach")
	extractCmd.Flags().StringVar(&extractCalcFile, "calculated", "", "JSON file of calculated quantities to cross-check")

	rootCmd.AddCommand(extractCmd)
}
