package ensemble

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/dajtuba/constructosaurus-sub001/internal/cache"
	"github.com/dajtuba/constructosaurus-sub001/internal/crosscheck"
	"github.com/dajtuba/constructosaurus-sub001/internal/extraction"
	"github.com/dajtuba/constructosaurus-sub001/internal/prompts"
	"github.com/dajtuba/constructosaurus-sub001/internal/providers"
)

const plainBeams = `{"beams": [{"mark": "B1"}]}`

func newTestController(t *testing.T, cfg ControllerConfig, deps ControllerDeps, clients ...providers.VisionClient) *Controller {
	t.Helper()
	if deps.Registry == nil {
		reg := providers.NewRegistry()
		for i, client := range clients {
			// Alias prefix pins rank order to the argument order.
			reg.RegisterVision(fmt.Sprintf("%02d-%s", i, client.Name()), client)
		}
		deps.Registry = reg
	}
	return NewController(deps, cfg)
}

func TestController_SingleTierMeetsTarget(t *testing.T) {
	client := providers.NewMockVisionClient()
	client.ResponseText = richResponse
	c := newTestController(t, ControllerConfig{TargetConfidence: 0.85}, ControllerDeps{}, client)

	res, err := c.Extract(context.Background(), ExtractRequest{
		Image:      []byte("sheet"),
		PageNumber: 3,
	})
	if err != nil {
		t.Fatalf("Extract() error: %v", err)
	}

	if res.Method != MethodSingle {
		t.Errorf("Method = %q, want single", res.Method)
	}
	if res.Confidence != extraction.SinglePassCeiling {
		t.Errorf("Confidence = %v, want %v", res.Confidence, extraction.SinglePassCeiling)
	}
	if want := extraction.SinglePassCeiling * 0.90; res.EstimatedAccuracy != want {
		t.Errorf("EstimatedAccuracy = %v, want %v", res.EstimatedAccuracy, want)
	}
	if res.CostClass != CostLow {
		t.Errorf("CostClass = %q, want low", res.CostClass)
	}
	if len(res.TierTimings) != 1 || res.TierTimings[0].Method != MethodSingle {
		t.Errorf("TierTimings = %+v, want a single entry", res.TierTimings)
	}
	if res.SpeedPenalty != 1.0 {
		t.Errorf("SpeedPenalty = %v, want 1.0 for a single-tier run", res.SpeedPenalty)
	}
	if res.Error != "" {
		t.Errorf("Error = %q, want empty", res.Error)
	}
	if client.RequestCount() != 1 {
		t.Errorf("RequestCount = %d, want 1", client.RequestCount())
	}

	metricsTaken := c.Recorder().Snapshot()
	if len(metricsTaken) != 1 || metricsTaken[0].Method != MethodSingle || !metricsTaken[0].Success {
		t.Errorf("recorded metrics = %+v, want one successful single-pass call", metricsTaken)
	}
}

func TestController_EscalatesUntilTargetMet(t *testing.T) {
	primary := providers.NewMockVisionClient()
	primary.ResponseText = richResponse
	secondary := mockModel("secondary", "llama3.2-vision:11b", richResponse)

	c := newTestController(t, ControllerConfig{TargetConfidence: 0.88}, ControllerDeps{}, primary, secondary)

	res, err := c.Extract(context.Background(), ExtractRequest{Image: []byte("sheet"), PageNumber: 1})
	if err != nil {
		t.Fatalf("Extract() error: %v", err)
	}

	// Single tops out at 0.85 and the ladder keeps going; multi-pass hits
	// the 0.90 consensus cap and stops there.
	if res.Method != MethodMultiPass {
		t.Errorf("Method = %q, want multi_pass", res.Method)
	}
	if res.Confidence < 0.88 {
		t.Errorf("Confidence = %v, want at least the target", res.Confidence)
	}
	if len(res.TierTimings) != 2 {
		t.Fatalf("TierTimings = %+v, want single then multi_pass", res.TierTimings)
	}
	if res.CostClass != CostMedium {
		t.Errorf("CostClass = %q, want medium", res.CostClass)
	}
	if primary.RequestCount() != 1+DefaultPasses {
		t.Errorf("primary RequestCount = %d, want %d", primary.RequestCount(), 1+DefaultPasses)
	}
	if secondary.RequestCount() != 0 {
		t.Error("second model should not be consulted once the target is met")
	}
	if res.SpeedPenalty <= 1.0 {
		t.Errorf("SpeedPenalty = %v, want > 1.0 after escalating", res.SpeedPenalty)
	}
}

func TestController_MultiModelGate(t *testing.T) {
	primary := providers.NewMockVisionClient()
	primary.ResponseText = plainBeams
	facade := mockModel("facade", "mock-model", plainBeams)

	c := newTestController(t, ControllerConfig{}, ControllerDeps{}, primary, facade)

	res, err := c.Extract(context.Background(), ExtractRequest{Image: []byte("sheet"), PageNumber: 1})
	if err != nil {
		t.Fatalf("Extract() error: %v", err)
	}

	// Two aliases, one underlying model: multi-model and full-ensemble are
	// unreachable, so the below-target multi-pass result is terminal.
	if res.Method != MethodMultiPass {
		t.Errorf("Method = %q, want multi_pass", res.Method)
	}
	if res.Error != "" {
		t.Errorf("Error = %q, want empty for a successful terminal tier", res.Error)
	}
	if len(res.TierTimings) != 2 {
		t.Errorf("TierTimings = %+v, want the ladder cut after multi_pass", res.TierTimings)
	}
	if facade.RequestCount() != 0 {
		t.Error("duplicate-model alias should never be consulted")
	}
}

func TestController_MultiModelTierMeetsTarget(t *testing.T) {
	primary := providers.NewMockVisionClient()
	// Single pass and the three consensus passes see sparse output; the
	// cross-model pass sees the rich one.
	primary.Responses = []string{plainBeams, plainBeams, plainBeams, plainBeams}
	primary.ResponseText = richResponse
	secondary := mockModel("secondary", "llama3.2-vision:11b", richResponse)

	c := newTestController(t, ControllerConfig{}, ControllerDeps{}, primary, secondary)

	res, err := c.Extract(context.Background(), ExtractRequest{Image: []byte("sheet"), PageNumber: 1})
	if err != nil {
		t.Fatalf("Extract() error: %v", err)
	}

	if res.Method != MethodMultiModel {
		t.Errorf("Method = %q, want multi_model", res.Method)
	}
	if res.Confidence < DefaultTargetConfidence {
		t.Errorf("Confidence = %v, want at least %v", res.Confidence, DefaultTargetConfidence)
	}
	if res.CostClass != CostHigh {
		t.Errorf("CostClass = %q, want high", res.CostClass)
	}
	if len(res.TierTimings) != 3 {
		t.Errorf("TierTimings = %+v, want three tiers", res.TierTimings)
	}
	if secondary.RequestCount() != 1 {
		t.Errorf("secondary RequestCount = %d, want 1", secondary.RequestCount())
	}
}

func TestController_FullLadder(t *testing.T) {
	primary := providers.NewMockVisionClient()
	primary.ResponseText = richResponse
	secondary := mockModel("secondary", "llama3.2-vision:11b", richResponse)

	c := newTestController(t, ControllerConfig{TargetConfidence: 0.95}, ControllerDeps{}, primary, secondary)

	res, err := c.Extract(context.Background(), ExtractRequest{Image: []byte("sheet"), PageNumber: 2})
	if err != nil {
		t.Fatalf("Extract() error: %v", err)
	}

	if res.Method != MethodFullEnsemble {
		t.Errorf("Method = %q, want full_ensemble", res.Method)
	}
	if res.Confidence != extraction.EnsembleCeiling {
		t.Errorf("Confidence = %v, want the ensemble ceiling", res.Confidence)
	}
	if res.EstimatedAccuracy != res.Confidence {
		t.Errorf("EstimatedAccuracy = %v, want confidence times 1.00", res.EstimatedAccuracy)
	}
	if len(res.TierTimings) != 4 {
		t.Fatalf("TierTimings = %+v, want all four tiers", res.TierTimings)
	}
	for i, method := range Methods() {
		if res.TierTimings[i].Method != method {
			t.Errorf("TierTimings[%d].Method = %q, want %q", i, res.TierTimings[i].Method, method)
		}
	}
	// 1 single + 3 consensus passes + 1 cross-model pass.
	if primary.RequestCount() != 5 {
		t.Errorf("primary RequestCount = %d, want 5", primary.RequestCount())
	}
	if secondary.RequestCount() != 1 {
		t.Errorf("secondary RequestCount = %d, want 1", secondary.RequestCount())
	}
	// The merged record keeps the cross-confirmed entries.
	if len(res.Record.Beams) != 1 || len(res.Record.Joists) != 1 {
		t.Errorf("record counts = %v, want the agreed beams and joists", res.Record.Counts())
	}
	if len(res.Record.Schedules) != 1 {
		t.Errorf("schedules = %+v, want carried wholesale", res.Record.Schedules)
	}
}

func TestController_AllTiersFail(t *testing.T) {
	client := providers.NewMockVisionClient()
	client.ShouldFail = true

	c := newTestController(t, ControllerConfig{}, ControllerDeps{}, client)

	res, err := c.Extract(context.Background(), ExtractRequest{Image: []byte("sheet"), PageNumber: 9})
	if err != nil {
		t.Fatalf("Extract() should absorb tier failures, got: %v", err)
	}

	if res.Error == "" {
		t.Error("expected Error to surface the terminal failure")
	}
	if res.Confidence != 0 {
		t.Errorf("Confidence = %v, want 0", res.Confidence)
	}
	if res.Record == nil || !res.Record.IsEmpty() {
		t.Errorf("Record = %+v, want the empty fallback", res.Record)
	}
	if res.Record.PageNumber != 9 {
		t.Errorf("PageNumber = %d, want 9", res.Record.PageNumber)
	}
	if res.Method != MethodMultiPass {
		t.Errorf("Method = %q, want the terminal multi_pass", res.Method)
	}
}

func TestController_TerminalFailureFallsBackToBestSuccess(t *testing.T) {
	client := providers.NewMockVisionClient()
	client.ResponseText = plainBeams
	client.FailAfter = 1

	c := newTestController(t, ControllerConfig{}, ControllerDeps{}, client)

	res, err := c.Extract(context.Background(), ExtractRequest{Image: []byte("sheet"), PageNumber: 1})
	if err != nil {
		t.Fatalf("Extract() error: %v", err)
	}

	// The single pass succeeded at 0.70, every consensus pass failed. The
	// answer is the successful single result, not the failed terminal tier.
	if res.Method != MethodSingle {
		t.Errorf("Method = %q, want the single fallback", res.Method)
	}
	if res.Error != "" {
		t.Errorf("Error = %q, want empty when an earlier tier succeeded", res.Error)
	}
	if math.Abs(res.Confidence-0.70) > 1e-9 {
		t.Errorf("Confidence = %v, want 0.70", res.Confidence)
	}
	if len(res.Record.Beams) != 1 {
		t.Errorf("beams = %+v, want the single pass result", res.Record.Beams)
	}
	if len(res.TierTimings) != 2 {
		t.Errorf("TierTimings = %+v, want both attempted tiers on record", res.TierTimings)
	}
}

func TestController_CacheRoundTrip(t *testing.T) {
	cc, err := cache.New(cache.Config{Dir: t.TempDir()})
	if err != nil {
		t.Fatalf("cache.New() error: %v", err)
	}
	client := providers.NewMockVisionClient()
	client.ResponseText = richResponse

	c := newTestController(t, ControllerConfig{TargetConfidence: 0.85}, ControllerDeps{Cache: cc}, client)

	image := []byte("sheet for caching")
	first, err := c.Extract(context.Background(), ExtractRequest{Image: image, PageNumber: 4})
	if err != nil {
		t.Fatalf("first Extract() error: %v", err)
	}
	if first.FromCache {
		t.Error("first run cannot be served from cache")
	}

	// The tier result is now on disk under the source image digest.
	entry, ok := cc.Get(cache.ImageDigest(image), MethodSingle, prompts.Fingerprint())
	if !ok {
		t.Fatal("expected the single tier to be cached")
	}
	if entry.Confidence != extraction.SinglePassCeiling {
		t.Errorf("cached Confidence = %v, want %v", entry.Confidence, extraction.SinglePassCeiling)
	}
	if entry.Performance == nil || entry.Performance.CostClass != CostLow {
		t.Errorf("cached Performance = %+v, want the single-tier report", entry.Performance)
	}

	second, err := c.Extract(context.Background(), ExtractRequest{Image: image, PageNumber: 4})
	if err != nil {
		t.Fatalf("second Extract() error: %v", err)
	}
	if !second.FromCache {
		t.Error("second run should be served from cache")
	}
	if second.Confidence != first.Confidence {
		t.Errorf("cached Confidence = %v, want %v", second.Confidence, first.Confidence)
	}
	if len(second.TierTimings) != 1 || !second.TierTimings[0].Cached {
		t.Errorf("TierTimings = %+v, want one cached tier", second.TierTimings)
	}
	if second.SpeedPenalty != 1.0 {
		t.Errorf("SpeedPenalty = %v, want 1.0 without a measured baseline", second.SpeedPenalty)
	}
	if client.RequestCount() != 1 {
		t.Errorf("RequestCount = %d, want the model untouched on the second run", client.RequestCount())
	}

	stats := cc.Stats()
	if stats.Hits != 2 || stats.Misses != 1 {
		t.Errorf("stats = %d hits %d misses, want 2 and 1", stats.Hits, stats.Misses)
	}
}

func TestController_MidLadderCacheHit(t *testing.T) {
	cc, err := cache.New(cache.Config{Dir: t.TempDir()})
	if err != nil {
		t.Fatalf("cache.New() error: %v", err)
	}

	image := []byte("sheet with cached consensus")
	cached := extraction.NewRecord(1)
	cached.Beams = []extraction.Entry{{"mark": "B7"}}
	if err := cc.Store(cache.Entry{
		Digest:      cache.ImageDigest(image),
		Method:      MethodMultiPass,
		Fingerprint: prompts.Fingerprint(),
		Record:      cached,
		Confidence:  0.88,
		Agreement:   0.9,
	}); err != nil {
		t.Fatalf("Store() error: %v", err)
	}

	client := providers.NewMockVisionClient()
	client.ResponseText = plainBeams
	c := newTestController(t, ControllerConfig{TargetConfidence: 0.95}, ControllerDeps{Cache: cc}, client)

	res, err := c.Extract(context.Background(), ExtractRequest{Image: image, PageNumber: 1})
	if err != nil {
		t.Fatalf("Extract() error: %v", err)
	}

	// Single computes live, multi-pass comes off disk, the single-model
	// gate ends the ladder there.
	if res.Method != MethodMultiPass {
		t.Errorf("Method = %q, want multi_pass", res.Method)
	}
	if !res.FromCache {
		t.Error("terminal tier came from cache, FromCache should say so")
	}
	if res.Confidence != 0.88 {
		t.Errorf("Confidence = %v, want the cached 0.88", res.Confidence)
	}
	if got := res.Record.Beams[0].Mark(); got != "B7" {
		t.Errorf("beam mark = %q, want the cached B7", got)
	}
	if client.RequestCount() != 1 {
		t.Errorf("RequestCount = %d, want only the single tier computed", client.RequestCount())
	}
	if len(res.TierTimings) != 2 || res.TierTimings[0].Cached || !res.TierTimings[1].Cached {
		t.Errorf("TierTimings = %+v, want live single then cached multi_pass", res.TierTimings)
	}
}

func TestController_MaxMethodCapsLadder(t *testing.T) {
	client := providers.NewMockVisionClient()
	client.ResponseText = plainBeams

	c := newTestController(t, ControllerConfig{}, ControllerDeps{}, client)

	res, err := c.Extract(context.Background(), ExtractRequest{
		Image:     []byte("sheet"),
		MaxMethod: MethodSingle,
	})
	if err != nil {
		t.Fatalf("Extract() error: %v", err)
	}
	if res.Method != MethodSingle {
		t.Errorf("Method = %q, want single", res.Method)
	}
	if math.Abs(res.Confidence-0.70) > 1e-9 {
		t.Errorf("Confidence = %v, want 0.70 below target but capped", res.Confidence)
	}
	if len(res.TierTimings) != 1 {
		t.Errorf("TierTimings = %+v, want one tier", res.TierTimings)
	}

	t.Run("unknown method rejected", func(t *testing.T) {
		_, err := c.Extract(context.Background(), ExtractRequest{
			Image:     []byte("sheet"),
			MaxMethod: "turbo",
		})
		if err == nil || !strings.Contains(err.Error(), "unknown extraction method") {
			t.Errorf("err = %v, want unknown method rejection", err)
		}
	})
}

func TestMethodLadderOrder(t *testing.T) {
	for i, m := range Methods() {
		if MethodRank(m) != i {
			t.Errorf("MethodRank(%q) = %d, want %d", m, MethodRank(m), i)
		}
		if !KnownMethod(m) {
			t.Errorf("KnownMethod(%q) = false", m)
		}
	}
	if KnownMethod("turbo") {
		t.Error("KnownMethod(turbo) = true")
	}
	if MethodRank("turbo") != -1 {
		t.Errorf("MethodRank(turbo) = %d, want -1", MethodRank("turbo"))
	}
}

func TestController_EscalationOrderMonotone(t *testing.T) {
	cases := []struct {
		target float64
		want   string
	}{
		{0.70, MethodSingle},
		{0.85, MethodSingle},
		{0.88, MethodMultiPass},
		{0.93, MethodFullEnsemble},
	}

	prevRank := -1
	for _, tc := range cases {
		primary := providers.NewMockVisionClient()
		primary.ResponseText = richResponse
		secondary := mockModel("secondary", "llama3.2-vision:11b", richResponse)
		c := newTestController(t, ControllerConfig{}, ControllerDeps{}, primary, secondary)

		res, err := c.Extract(context.Background(), ExtractRequest{
			Image:            []byte("sheet"),
			TargetConfidence: tc.target,
		})
		if err != nil {
			t.Fatalf("Extract(target=%v) error: %v", tc.target, err)
		}
		if res.Method != tc.want {
			t.Errorf("target %v: Method = %q, want %q", tc.target, res.Method, tc.want)
		}
		if rank := MethodRank(res.Method); rank < prevRank {
			t.Errorf("target %v: ladder went backwards to rank %d", tc.target, rank)
		} else {
			prevRank = rank
		}
	}
}

func TestController_CrosscheckAgainstCalculated(t *testing.T) {
	client := providers.NewMockVisionClient()
	client.ResponseText = richResponse

	c := newTestController(t, ControllerConfig{TargetConfidence: 0.80}, ControllerDeps{}, client)

	res, err := c.Extract(context.Background(), ExtractRequest{
		Image:      []byte("sheet"),
		PageNumber: 3,
		Calculated: []crosscheck.CalculatedQuantity{
			{Item: "B1", Quantity: 13, Source: "plan takeoff"},
		},
	})
	if err != nil {
		t.Fatalf("Extract() error: %v", err)
	}

	// The rich schedule states qty 10 for B1; the caller counted 13.
	if len(res.Record.Discrepancies) != 1 {
		t.Fatalf("Discrepancies = %+v, want one", res.Record.Discrepancies)
	}
	d := res.Record.Discrepancies[0]
	if d.Item != "B1" || d.ScheduleQty != 10 || d.CalculatedQty != 13 {
		t.Errorf("discrepancy = %+v, want B1 10 vs 13", d)
	}
	if d.Severity != extraction.SeverityMajor {
		t.Errorf("Severity = %q, want major at 30%%", d.Severity)
	}
}

func TestController_CrosscheckStaysOutOfCache(t *testing.T) {
	cc, err := cache.New(cache.Config{Dir: t.TempDir()})
	if err != nil {
		t.Fatalf("cache.New() error: %v", err)
	}

	client := providers.NewMockVisionClient()
	client.ResponseText = richResponse
	c := newTestController(t, ControllerConfig{TargetConfidence: 0.80}, ControllerDeps{Cache: cc}, client)

	image := []byte("sheet")
	if _, err := c.Extract(context.Background(), ExtractRequest{Image: image, PageNumber: 3}); err != nil {
		t.Fatalf("Extract() warm-up error: %v", err)
	}

	// A cache hit cross-checked against caller-supplied counts gets its
	// discrepancies attached per request.
	res, err := c.Extract(context.Background(), ExtractRequest{
		Image:      image,
		PageNumber: 3,
		Calculated: []crosscheck.CalculatedQuantity{
			{Item: "B1", Quantity: 99, Source: "plan takeoff"},
		},
	})
	if err != nil {
		t.Fatalf("Extract() error: %v", err)
	}
	if !res.FromCache {
		t.Error("second request should be served from cache")
	}
	if len(res.Record.Discrepancies) != 1 {
		t.Fatalf("Discrepancies = %+v, want one", res.Record.Discrepancies)
	}

	// A later hit with no counts of its own must see the record as stored.
	res, err = c.Extract(context.Background(), ExtractRequest{Image: image, PageNumber: 3})
	if err != nil {
		t.Fatalf("Extract() error: %v", err)
	}
	if !res.FromCache {
		t.Error("third request should be served from cache")
	}
	if len(res.Record.Discrepancies) != 0 {
		t.Errorf("Discrepancies = %+v, an earlier request's cross-check leaked into the cache", res.Record.Discrepancies)
	}
}

func TestController_RequestValidation(t *testing.T) {
	client := providers.NewMockVisionClient()
	client.ResponseText = richResponse
	c := newTestController(t, ControllerConfig{TargetConfidence: 0.80}, ControllerDeps{}, client)

	t.Run("missing image", func(t *testing.T) {
		_, err := c.Extract(context.Background(), ExtractRequest{PageNumber: 1})
		if err == nil || !strings.Contains(err.Error(), "needs an image") {
			t.Errorf("err = %v, want missing-image rejection", err)
		}
	})

	t.Run("unreadable path", func(t *testing.T) {
		_, err := c.Extract(context.Background(), ExtractRequest{
			ImagePath: filepath.Join(t.TempDir(), "missing.png"),
		})
		if err == nil || !strings.Contains(err.Error(), "failed to read image") {
			t.Errorf("err = %v, want read failure", err)
		}
	})

	t.Run("image path read", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "page.png")
		if err := os.WriteFile(path, []byte("raster"), 0o644); err != nil {
			t.Fatal(err)
		}
		res, err := c.Extract(context.Background(), ExtractRequest{ImagePath: path, PageNumber: 2})
		if err != nil {
			t.Fatalf("Extract() error: %v", err)
		}
		if res.Confidence != extraction.SinglePassCeiling {
			t.Errorf("Confidence = %v, want the file extracted normally", res.Confidence)
		}
	})

	t.Run("no models", func(t *testing.T) {
		empty := NewController(ControllerDeps{Registry: providers.NewRegistry()}, ControllerConfig{})
		_, err := empty.Extract(context.Background(), ExtractRequest{Image: []byte("sheet")})
		if err == nil || !strings.Contains(err.Error(), "no vision models ready") {
			t.Errorf("err = %v, want no-models rejection", err)
		}
	})

	t.Run("cancelled context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := c.Extract(ctx, ExtractRequest{Image: []byte("sheet")})
		if !errors.Is(err, context.Canceled) {
			t.Errorf("err = %v, want context.Canceled", err)
		}
	})
}

func TestController_RequestID(t *testing.T) {
	t.Run("explicit id propagates", func(t *testing.T) {
		client := newCaptureClient()
		client.ResponseText = richResponse
		c := newTestController(t, ControllerConfig{TargetConfidence: 0.80}, ControllerDeps{}, client)

		res, err := c.Extract(context.Background(), ExtractRequest{
			Image:     []byte("sheet"),
			RequestID: "req-42",
		})
		if err != nil {
			t.Fatalf("Extract() error: %v", err)
		}
		if res.RequestID != "req-42" {
			t.Errorf("RequestID = %q, want req-42", res.RequestID)
		}
		reqs := client.requests()
		if len(reqs) != 1 || reqs[0].RequestID != "req-42" {
			t.Errorf("vision RequestID = %+v, want req-42 on the wire", reqs)
		}
	})

	t.Run("generated when absent", func(t *testing.T) {
		client := providers.NewMockVisionClient()
		client.ResponseText = richResponse
		c := newTestController(t, ControllerConfig{TargetConfidence: 0.80}, ControllerDeps{}, client)

		res, err := c.Extract(context.Background(), ExtractRequest{Image: []byte("sheet")})
		if err != nil {
			t.Fatalf("Extract() error: %v", err)
		}
		if res.RequestID == "" {
			t.Error("expected a generated request id")
		}
	})
}
