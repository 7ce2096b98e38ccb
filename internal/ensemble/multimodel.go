package ensemble

import (
	"context"
	"fmt"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dajtuba/constructosaurus-sub001/internal/extraction"
	"github.com/dajtuba/constructosaurus-sub001/internal/providers"
)

// MultiModelConfig bounds the cross-model tier.
type MultiModelConfig struct {
	Parallelism int
	Cap         float64
}

// MultiModelResult is the merged outcome of one pass per distinct model.
type MultiModelResult struct {
	Record      *extraction.Record
	Confidence  float64
	Models      []string
	Succeeded   int
	PassResults []PassResult
	Elapsed     time.Duration
}

// Failed reports whether no model produced a usable result.
func (r MultiModelResult) Failed() bool {
	return r.Succeeded == 0
}

// DistinctModels filters clients to one per underlying model tag, keeping
// the incoming rank order. Two registry aliases backed by the same model do
// not count as independent opinions.
func DistinctModels(clients []providers.VisionClient) []providers.VisionClient {
	seen := make(map[string]bool)
	var out []providers.VisionClient
	for _, c := range clients {
		if seen[c.Model()] {
			continue
		}
		seen[c.Model()] = true
		out = append(out, c)
	}
	return out
}

// MultiModel runs one extraction per distinct model, concurrently, and keeps
// entries at least two models agree on. When only one model produced a
// category there is nobody to cross-vote it, so that model's entries are
// trusted wholesale. The caller is responsible for the two-model gate; a
// single-client call still works and degrades to that model's own result.
func MultiModel(ctx context.Context, clients []providers.VisionClient, req PassRequest, cfg MultiModelConfig) MultiModelResult {
	start := time.Now()
	clients = DistinctModels(clients)

	parallelism := cfg.Parallelism
	if parallelism <= 0 {
		parallelism = DefaultParallelism
	}

	results := make([]PassResult, len(clients))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(parallelism)
	for i, client := range clients {
		g.Go(func() error {
			pr := req
			if req.RequestID != "" {
				pr.RequestID = fmt.Sprintf("%s-%s", req.RequestID, client.Name())
			}
			results[i] = SinglePass(gctx, client, pr)
			return nil
		})
	}
	g.Wait()

	out := MultiModelResult{
		Record:      extraction.NewRecord(req.PageNumber),
		PassResults: results,
		Elapsed:     time.Since(start),
	}
	for _, c := range clients {
		out.Models = append(out.Models, c.Model())
	}

	var succ []PassResult
	var confSum float64
	for _, r := range results {
		if r.Err == nil {
			succ = append(succ, r)
			confSum += r.Confidence
			out.Succeeded++
		}
	}
	if out.Succeeded == 0 {
		return out
	}

	// Strongest model first, so on agreement its field values win.
	sort.SliceStable(succ, func(i, j int) bool { return succ[i].Confidence > succ[j].Confidence })

	for _, cat := range extraction.CategoryNames() {
		tally := newVoteTally()
		producers := 0
		for _, r := range succ {
			entries := r.Record.Category(cat)
			if len(entries) > 0 {
				producers++
			}
			tally.add(entries)
		}

		var kept []extraction.Entry
		switch {
		case producers == 0:
		case producers == 1:
			for _, r := range succ {
				if entries := r.Record.Category(cat); len(entries) > 0 {
					kept = entries
					break
				}
			}
		default:
			for _, key := range tally.order {
				if tally.votes[key] >= 2 {
					kept = append(kept, tally.entries[key])
				}
			}
		}
		if len(kept) > 0 {
			out.Record.SetCategory(cat, kept)
		}
	}

	if best := bestPass(results); best != nil {
		copyUnvoted(out.Record, best.Record)
	}

	ceiling := cfg.Cap
	if ceiling <= 0 {
		ceiling = ConsensusCap
	}
	conf := confSum / float64(out.Succeeded)
	if out.Succeeded >= 2 {
		conf += AgreementBonus
	}
	if conf > ceiling {
		conf = ceiling
	}
	out.Confidence = conf
	return out
}
