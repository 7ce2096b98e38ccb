package ensemble

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dajtuba/constructosaurus-sub001/internal/extraction"
	"github.com/dajtuba/constructosaurus-sub001/internal/providers"
)

// Consensus-tier tuning constants. The cap keeps repeated sampling of the
// same weights from claiming full-ensemble certainty; the bonus rewards
// passes that actually agree with each other.
const (
	DefaultPasses      = 3
	DefaultParallelism = 2
	ConsensusCap       = 0.90
	AgreementBonus     = 0.05
)

// MultiPassConfig bounds the repetition tier.
type MultiPassConfig struct {
	Passes      int
	Parallelism int
	Cap         float64
}

// MultiPassResult is the merged outcome of repeated passes on one model.
// Agreement is the mean vote fraction of the entries that survived the
// majority merge; it feeds the full-ensemble combiner's vote weights.
type MultiPassResult struct {
	Record      *extraction.Record
	Confidence  float64
	Agreement   float64
	Passes      int
	Succeeded   int
	PassResults []PassResult
	Elapsed     time.Duration
}

// Failed reports whether no pass produced a usable result.
func (r MultiPassResult) Failed() bool {
	return r.Succeeded == 0
}

// MultiPass runs the same extraction several times against one model and
// keeps what a strict majority of the successful passes agree on. Failed
// passes contribute zero votes; a model that hallucinates an item once in
// three passes loses it here.
func MultiPass(ctx context.Context, client providers.VisionClient, req PassRequest, cfg MultiPassConfig) MultiPassResult {
	start := time.Now()
	passes := cfg.Passes
	if passes <= 0 {
		passes = DefaultPasses
	}
	parallelism := cfg.Parallelism
	if parallelism <= 0 {
		parallelism = DefaultParallelism
	}

	results := make([]PassResult, passes)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(parallelism)
	for i := range results {
		g.Go(func() error {
			pr := req
			if req.RequestID != "" {
				pr.RequestID = fmt.Sprintf("%s-pass%d", req.RequestID, i+1)
			}
			results[i] = SinglePass(gctx, client, pr)
			return nil
		})
	}
	g.Wait()

	out := MultiPassResult{
		Record:      extraction.NewRecord(req.PageNumber),
		Passes:      passes,
		PassResults: results,
		Elapsed:     time.Since(start),
	}

	var confSum float64
	for _, r := range results {
		if r.Err == nil {
			out.Succeeded++
			confSum += r.Confidence
		}
	}
	if out.Succeeded == 0 {
		return out
	}

	majority := out.Succeeded/2 + 1
	var fractions []float64
	for _, cat := range extraction.CategoryNames() {
		tally := newVoteTally()
		for _, r := range results {
			if r.Err != nil {
				continue
			}
			tally.add(r.Record.Category(cat))
		}
		var kept []extraction.Entry
		for _, key := range tally.order {
			if tally.votes[key] >= majority {
				kept = append(kept, tally.entries[key])
				fractions = append(fractions, float64(tally.votes[key])/float64(out.Succeeded))
			}
		}
		if len(kept) > 0 {
			out.Record.SetCategory(cat, kept)
		}
	}
	if len(fractions) > 0 {
		var sum float64
		for _, f := range fractions {
			sum += f
		}
		out.Agreement = sum / float64(len(fractions))
	}

	// Collections without mark keys cannot vote; take them from the
	// strongest individual pass.
	if best := bestPass(results); best != nil {
		copyUnvoted(out.Record, best.Record)
	}

	ceiling := cfg.Cap
	if ceiling <= 0 {
		ceiling = ConsensusCap
	}
	conf := confSum/float64(out.Succeeded) + AgreementBonus*out.Agreement
	if conf > ceiling {
		conf = ceiling
	}
	out.Confidence = conf
	return out
}

// voteTally counts, per normalized mark, how many sources produced an entry
// in one category. The first appearance of each mark supplies the field
// values, so callers control precedence through iteration order.
type voteTally struct {
	order   []string
	entries map[string]extraction.Entry
	votes   map[string]int
}

func newVoteTally() *voteTally {
	return &voteTally{
		entries: make(map[string]extraction.Entry),
		votes:   make(map[string]int),
	}
}

// add counts each mark at most once per source. Entries without a mark are
// excluded from voting entirely.
func (t *voteTally) add(entries []extraction.Entry) {
	seen := make(map[string]bool)
	for _, e := range entries {
		key := extraction.NormalizeMark(e.Mark())
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		if _, ok := t.entries[key]; !ok {
			t.entries[key] = e
			t.order = append(t.order, key)
		}
		t.votes[key]++
	}
}

// bestPass returns the successful pass with the highest confidence, or nil
// when every pass failed.
func bestPass(results []PassResult) *PassResult {
	var best *PassResult
	for i := range results {
		r := &results[i]
		if r.Err != nil {
			continue
		}
		if best == nil || r.Confidence > best.Confidence {
			best = r
		}
	}
	return best
}

// copyUnvoted transfers the collections that are not mark-keyed.
func copyUnvoted(dst, src *extraction.Record) {
	dst.Schedules = src.Schedules
	dst.Dimensions = src.Dimensions
	dst.ItemCounts = src.ItemCounts
	if src.Grid != nil {
		dst.Grid = src.Grid
	}
}
