package ensemble

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/dajtuba/constructosaurus-sub001/internal/analysis"
	"github.com/dajtuba/constructosaurus-sub001/internal/cache"
	"github.com/dajtuba/constructosaurus-sub001/internal/crosscheck"
	"github.com/dajtuba/constructosaurus-sub001/internal/extraction"
	"github.com/dajtuba/constructosaurus-sub001/internal/metrics"
	"github.com/dajtuba/constructosaurus-sub001/internal/prompts"
	"github.com/dajtuba/constructosaurus-sub001/internal/providers"
)

// DefaultTargetConfidence stops the ladder once a tier reaches it.
const DefaultTargetConfidence = 0.90

// ErrNoModelsReady means the registry has no vision clients to run, either
// because none are configured or the runtime has none of them loaded.
var ErrNoModelsReady = errors.New("no vision models ready")

// ExtractRequest is one extraction job. Image takes precedence over
// ImagePath when both are set.
type ExtractRequest struct {
	Image      []byte
	ImagePath  string
	PageNumber int
	Discipline string
	Focus      string

	// TargetConfidence stops the ladder once reached; zero uses the
	// configured default.
	TargetConfidence float64

	// MaxMethod caps how far the ladder may escalate; empty uses the
	// configured default.
	MaxMethod string

	// Calculated quantities trigger a cross-check against the extracted
	// schedule rows; discrepancies land on the result record.
	Calculated []crosscheck.CalculatedQuantity

	RequestID string
}

// EscalationResult is the ladder's final answer for one request.
type EscalationResult struct {
	Record            *extraction.Record   `json:"record"`
	Confidence        float64              `json:"confidence"`
	EstimatedAccuracy float64              `json:"estimated_accuracy"`
	Method            string               `json:"method"`
	TierTimings       []metrics.TierTiming `json:"tier_timings"`
	SpeedPenalty      float64              `json:"speed_penalty"`
	CostClass         string               `json:"cost_class"`
	ResourceNote      string               `json:"resource_note,omitempty"`
	RecommendedFor    []string             `json:"recommended_for,omitempty"`
	TotalTime         float64              `json:"total_time_seconds"`
	FromCache         bool                 `json:"from_cache"`
	RequestID         string               `json:"request_id,omitempty"`

	// Error is set when every executed tier failed and the record is the
	// empty fallback.
	Error string `json:"error,omitempty"`
}

// ControllerConfig tunes the ladder. Zero values use the documented
// defaults.
type ControllerConfig struct {
	TargetConfidence float64
	Passes           int
	Parallelism      int
	PassTimeout      time.Duration
	MaxMethod        string
	SingleCeiling    float64
	EnsembleCeiling  float64
	Crosscheck       crosscheck.Options
}

// ControllerDeps wires the controller's collaborators. Registry is required;
// a nil cache, preprocessor, or grid counter simply disables that concern.
type ControllerDeps struct {
	Registry     *providers.Registry
	Cache        *cache.Cache
	Preprocessor *analysis.Preprocessor
	GridCounter  *analysis.GridCounter
	Recorder     *metrics.Recorder
	Logger       *slog.Logger
}

// Controller walks the escalation ladder for extraction requests. It is safe
// for concurrent use; per-request state lives on the stack.
type Controller struct {
	registry *providers.Registry
	cache    *cache.Cache
	pre      *analysis.Preprocessor
	grids    *analysis.GridCounter
	recorder *metrics.Recorder
	cfg      ControllerConfig
	logger   *slog.Logger
}

// NewController builds a controller from its collaborators.
func NewController(deps ControllerDeps, cfg ControllerConfig) *Controller {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Recorder == nil {
		deps.Recorder = metrics.NewRecorder(0)
	}
	if cfg.TargetConfidence <= 0 {
		cfg.TargetConfidence = DefaultTargetConfidence
	}
	if cfg.MaxMethod == "" {
		cfg.MaxMethod = MethodFullEnsemble
	}
	return &Controller{
		registry: deps.Registry,
		cache:    deps.Cache,
		pre:      deps.Preprocessor,
		grids:    deps.GridCounter,
		recorder: deps.Recorder,
		cfg:      cfg,
		logger:   deps.Logger,
	}
}

// Recorder exposes the metrics recorder backing this controller.
func (c *Controller) Recorder() *metrics.Recorder {
	return c.recorder
}

// tierOutcome is one tier's contribution to the ladder.
type tierOutcome struct {
	method     string
	record     *extraction.Record
	confidence float64
	agreement  float64
	elapsed    time.Duration
	fromCache  bool
	err        error
}

// ladder carries one request's accumulated state across tiers.
type ladder struct {
	req      PassRequest
	digest   string
	fp       string
	primary  providers.VisionClient
	distinct []providers.VisionClient
	mp       MultiPassResult
	mm       MultiModelResult
	logger   *slog.Logger
}

// Extract runs the escalation ladder: single pass, then multi-pass
// consensus, then multi-model consensus, then the full ensemble, stopping at
// the first tier whose confidence reaches the target. Tier failures are
// absorbed as zero-confidence results; the only hard errors are an unusable
// request, no ready models, or caller cancellation.
func (c *Controller) Extract(ctx context.Context, req ExtractRequest) (*EscalationResult, error) {
	start := time.Now()

	image := req.Image
	if len(image) == 0 && req.ImagePath != "" {
		data, err := os.ReadFile(req.ImagePath)
		if err != nil {
			return nil, fmt.Errorf("failed to read image: %w", err)
		}
		image = data
	}
	if len(image) == 0 {
		return nil, errors.New("extraction needs an image or an image path")
	}

	if req.RequestID == "" {
		req.RequestID = uuid.New().String()
	}
	target := req.TargetConfidence
	if target <= 0 {
		target = c.cfg.TargetConfidence
	}
	maxMethod := req.MaxMethod
	if maxMethod == "" {
		maxMethod = c.cfg.MaxMethod
	}
	if !KnownMethod(maxMethod) {
		return nil, fmt.Errorf("unknown extraction method %q", maxMethod)
	}
	maxRank := MethodRank(maxMethod)

	logger := c.logger.With("request_id", req.RequestID, "page", req.PageNumber)

	clients, err := c.registry.ReadyModels(ctx)
	if err != nil {
		logger.Warn("model readiness probe failed, assuming registered models", "error", err)
		clients = c.registry.VisionClients()
	}
	if len(clients) == 0 {
		return nil, ErrNoModelsReady
	}

	// The cache key is the source image content; preprocessing output does
	// not change identity.
	digest := cache.ImageDigest(image)

	image = c.pre.Enhance(ctx, image)
	grid := c.grids.Count(ctx, image)
	if grid != nil {
		logger.Info("grid detected", "bays", grid.Bays())
	}

	l := &ladder{
		req: PassRequest{
			Image:      image,
			PageNumber: req.PageNumber,
			Discipline: req.Discipline,
			Focus:      req.Focus,
			Grid:       grid,
			Timeout:    c.cfg.PassTimeout,
			Ceiling:    c.cfg.SingleCeiling,
			RequestID:  req.RequestID,
		},
		digest:   digest,
		fp:       prompts.Fingerprint(),
		primary:  clients[0],
		distinct: DistinctModels(clients),
		logger:   logger,
	}

	var (
		timings  []metrics.TierTiming
		terminal tierOutcome
		best     *tierOutcome
	)

	for _, method := range Methods() {
		if MethodRank(method) > maxRank {
			break
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if method == MethodMultiModel && len(l.distinct) < 2 {
			logger.Info("fewer than two distinct models ready, multi-pass result is terminal",
				"distinct", len(l.distinct))
			break
		}

		outcome := c.runTier(ctx, l, method)
		timings = append(timings, metrics.TierTiming{
			Method:     method,
			Seconds:    outcome.elapsed.Seconds(),
			Confidence: outcome.confidence,
			Cached:     outcome.fromCache,
		})
		terminal = outcome
		if outcome.err == nil && (best == nil || outcome.confidence > best.confidence) {
			o := outcome
			best = &o
		}

		if outcome.err == nil && !outcome.fromCache && ctx.Err() == nil {
			c.storeTier(l, outcome, timings)
		}

		if outcome.confidence >= target {
			break
		}
	}

	// A failed terminal tier falls back to the best earlier result; when
	// everything failed the empty record goes out with the error attached.
	final := terminal
	if final.err != nil && best != nil {
		final = *best
	}

	rec := final.record
	if rec == nil {
		rec = extraction.NewRecord(req.PageNumber)
	}
	if len(req.Calculated) > 0 {
		rec.Discrepancies = crosscheck.CrossCheck(rec.ScheduleRows(), req.Calculated, c.cfg.Crosscheck)
	}

	result := &EscalationResult{
		Record:            rec,
		Confidence:        final.confidence,
		EstimatedAccuracy: EstimatedAccuracy(final.method, final.confidence),
		Method:            final.method,
		TierTimings:       timings,
		SpeedPenalty:      SpeedPenalty(timings),
		CostClass:         CostClass(final.method),
		ResourceNote:      ResourceNote(final.method),
		RecommendedFor:    RecommendedFor(final.method),
		TotalTime:         time.Since(start).Seconds(),
		FromCache:         final.fromCache,
		RequestID:         req.RequestID,
	}
	if final.err != nil {
		result.Error = final.err.Error()
	}

	logger.Info("extraction complete",
		"method", result.Method,
		"confidence", result.Confidence,
		"speed_penalty", result.SpeedPenalty,
		"from_cache", result.FromCache,
		"total_seconds", result.TotalTime)
	return result, nil
}

// runTier serves one tier from cache when possible, otherwise computes it
// and updates the ladder's consensus state.
func (c *Controller) runTier(ctx context.Context, l *ladder, method string) tierOutcome {
	tierStart := time.Now()

	if entry, ok := c.cache.Get(l.digest, method, l.fp); ok {
		elapsed := time.Since(tierStart)
		c.recorder.RecordCacheHit(metrics.RecordOpts{
			RequestID: l.req.RequestID,
			Page:      l.req.PageNumber,
			Method:    method,
		}, elapsed)
		l.logger.Info("tier served from cache", "method", method, "confidence", entry.Confidence)

		// Reconstruct enough consensus state for a later combine step. A
		// cached tier counts as one usable consensus.
		switch method {
		case MethodMultiPass:
			l.mp = MultiPassResult{
				Record:     entry.Record,
				Confidence: entry.Confidence,
				Agreement:  entry.Agreement,
				Succeeded:  1,
			}
		case MethodMultiModel:
			l.mm = MultiModelResult{
				Record:     entry.Record,
				Confidence: entry.Confidence,
				Succeeded:  1,
			}
		}
		return tierOutcome{
			method:     method,
			record:     entry.Record,
			confidence: entry.Confidence,
			agreement:  entry.Agreement,
			elapsed:    elapsed,
			fromCache:  true,
		}
	}

	switch method {
	case MethodSingle:
		pr := SinglePass(ctx, l.primary, l.req)
		c.recordPass(method, 1, pr)
		l.logger.Info("single pass complete",
			"model", pr.Model,
			"confidence", pr.Confidence,
			"counts", pr.Record.Counts())
		return tierOutcome{
			method:     method,
			record:     pr.Record,
			confidence: pr.Confidence,
			elapsed:    time.Since(tierStart),
			err:        pr.Err,
		}

	case MethodMultiPass:
		mp := MultiPass(ctx, l.primary, l.req, MultiPassConfig{
			Passes:      c.cfg.Passes,
			Parallelism: c.cfg.Parallelism,
		})
		l.mp = mp
		for i, pr := range mp.PassResults {
			c.recordPass(method, i+1, pr)
		}
		l.logger.Info("multi-pass consensus complete",
			"passes", mp.Passes,
			"succeeded", mp.Succeeded,
			"agreement", mp.Agreement,
			"confidence", mp.Confidence)
		var err error
		if mp.Failed() {
			err = fmt.Errorf("all %d passes failed", mp.Passes)
		}
		return tierOutcome{
			method:     method,
			record:     mp.Record,
			confidence: mp.Confidence,
			agreement:  mp.Agreement,
			elapsed:    time.Since(tierStart),
			err:        err,
		}

	case MethodMultiModel:
		mm := MultiModel(ctx, l.distinct, l.req, MultiModelConfig{
			Parallelism: c.cfg.Parallelism,
		})
		l.mm = mm
		for i, pr := range mm.PassResults {
			c.recordPass(method, i+1, pr)
		}
		l.logger.Info("multi-model consensus complete",
			"models", mm.Models,
			"succeeded", mm.Succeeded,
			"confidence", mm.Confidence)
		var err error
		if mm.Failed() {
			err = fmt.Errorf("all %d models failed", len(mm.Models))
		}
		return tierOutcome{
			method:     method,
			record:     mm.Record,
			confidence: mm.Confidence,
			elapsed:    time.Since(tierStart),
			err:        err,
		}

	default: // MethodFullEnsemble
		rec, conf := Combine(l.mp, l.mm, l.req.PageNumber, c.cfg.EnsembleCeiling)
		var err error
		if l.mp.Failed() && l.mm.Failed() {
			err = errors.New("both consensus sources failed")
		}
		l.logger.Info("full ensemble combined", "confidence", conf, "counts", rec.Counts())
		return tierOutcome{
			method:     method,
			record:     rec,
			confidence: conf,
			elapsed:    time.Since(tierStart),
			err:        err,
		}
	}
}

// recordPass files one inference call with the metrics recorder.
func (c *Controller) recordPass(method string, pass int, pr PassResult) {
	if pr.SchemaErr != nil {
		c.logger.Warn("strict parse deviates from extraction schema",
			"model", pr.Model, "method", method, "error", pr.SchemaErr)
	}
	opts := metrics.RecordOpts{
		Method: method,
		Pass:   pass,
	}
	if pr.Record != nil {
		opts.Page = pr.Record.PageNumber
		opts.ParseMethod = pr.Record.ParseMethod
	}
	if pr.Vision != nil {
		c.recorder.RecordVisionCall(opts, pr.Vision)
		return
	}
	if pr.Err != nil {
		c.recorder.RecordError(opts, pr.Alias, pr.Model, errorType(pr.Err), pr.Elapsed)
	}
}

// storeTier caches a successful tier result along with the performance
// picture as of that tier.
func (c *Controller) storeTier(l *ladder, outcome tierOutcome, timings []metrics.TierTiming) {
	report := BuildReport(outcome.method, timings)
	err := c.cache.Store(cache.Entry{
		Digest:         l.digest,
		Method:         outcome.method,
		Fingerprint:    l.fp,
		Record:         outcome.record,
		Confidence:     outcome.confidence,
		Agreement:      outcome.agreement,
		ProcessingTime: outcome.elapsed.Seconds(),
		Performance:    &report,
	})
	if err != nil {
		l.logger.Warn("failed to cache tier result", "method", outcome.method, "error", err)
	}
}

// errorType buckets a pass failure for metrics.
func errorType(err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return providers.ErrorTypeTimeout
	case errors.Is(err, context.Canceled):
		return providers.ErrorTypeCancelled
	default:
		if _, ok := providers.IsRateLimitError(err); ok {
			return providers.ErrorTypeRateLimited
		}
		return providers.ErrorTypeHTTP
	}
}
