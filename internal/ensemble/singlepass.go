package ensemble

import (
	"context"
	"time"

	"github.com/dajtuba/constructosaurus-sub001/internal/extraction"
	"github.com/dajtuba/constructosaurus-sub001/internal/prompts"
	"github.com/dajtuba/constructosaurus-sub001/internal/providers"
)

// PassRequest carries everything one extraction pass needs. Image holds the
// prepared page raster; Grid is optional context from the grid counter and is
// rendered into the prompt when present.
type PassRequest struct {
	Image      []byte
	PageNumber int
	Discipline string
	Focus      string
	Grid       *extraction.GridInfo

	// Timeout bounds the inference call; zero uses the client default.
	Timeout time.Duration

	// Ceiling caps the confidence score; zero uses the single-pass default.
	Ceiling float64

	RequestID string
}

// PassResult is the outcome of one extraction pass. A failed inference call
// yields an empty record with zero confidence and a non-nil Err; it is never
// a hard error, so consensus tiers can treat it as an abstention.
type PassResult struct {
	Record     *extraction.Record
	Confidence float64
	Raw        string
	Elapsed    time.Duration
	Alias      string
	Model      string
	Vision     *providers.VisionResult
	Err        error

	// SchemaErr reports a schema mismatch on a strictly parsed payload.
	// Informational only; the record still counts.
	SchemaErr error
}

// SinglePass runs one extraction against one model: build the prompts, call
// the model, parse whatever comes back, and score the result. It serves as
// the ladder's first tier and as the worker body for both consensus tiers.
func SinglePass(ctx context.Context, client providers.VisionClient, req PassRequest) PassResult {
	start := time.Now()
	result := PassResult{
		Alias:  client.Name(),
		Model:  client.Model(),
		Record: extraction.NewRecord(req.PageNumber),
	}

	vreq := &providers.VisionRequest{
		SystemPrompt: prompts.SystemPrompt(req.Discipline),
		Prompt: prompts.UserPrompt(prompts.UserPromptData{
			PageNumber: req.PageNumber,
			Grid:       req.Grid,
			Focus:      req.Focus,
		}),
		Image:     req.Image,
		Format:    extraction.ResponseSchemaJSON(),
		Timeout:   req.Timeout,
		RequestID: req.RequestID,
	}

	vres, err := client.Complete(ctx, vreq)
	result.Vision = vres
	result.Elapsed = time.Since(start)
	if err != nil {
		result.Err = err
		return result
	}

	result.Raw = vres.Text
	rec := extraction.Parse(vres.Text, req.PageNumber)
	if rec.ParseMethod == extraction.ParseStrict {
		result.SchemaErr = extraction.Validate([]byte(extraction.JSONSpan(vres.Text)))
	}
	if rec.Grid == nil && req.Grid != nil {
		rec.Grid = req.Grid
	}
	result.Record = rec
	result.Confidence = extraction.ScoreWithCeiling(rec, req.Ceiling)
	return result
}
