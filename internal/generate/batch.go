package generate

import (
	"context"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/michaelshimeles/youpac-ai-sub001/internal/apperr"
)

// Item statuses in a batch result.
const (
	ItemSucceeded = "success"
	ItemFailed    = "failed"
	ItemCancelled = "cancelled"
)

type BatchResult struct {
	Index     int       `json:"index"`
	AgentType AgentType `json:"agentType"`
	Status    string    `json:"status"`
	Response  *Response `json:"response,omitempty"`
	Error     string    `json:"error,omitempty"`
}

type BatchSummary struct {
	Results   []BatchResult `json:"results"`
	Succeeded int           `json:"succeeded"`
	Failed    int           `json:"failed"`
	Cancelled bool          `json:"cancelled"`
}

// Batch runs several generation requests with bounded concurrency. One
// item's failure never affects its siblings.
type Batch struct {
	gen       *Generator
	limit     int
	cancelled atomic.Bool
}

// NewBatch creates a batch running at most limit requests at once.
func (g *Generator) NewBatch(limit int) *Batch {
	if limit < 1 {
		limit = 1
	}
	return &Batch{gen: g, limit: limit}
}

// Cancel marks the batch cancelled. Items that have not started are
// skipped; calls already in flight run to completion. Run also cancels the
// batch when its context is done.
func (b *Batch) Cancel() { b.cancelled.Store(true) }

func (b *Batch) Cancelled() bool { return b.cancelled.Load() }

// Run generates every request and reports per-item outcomes in input order.
func (b *Batch) Run(ctx context.Context, reqs []Request) BatchSummary {
	results := make([]BatchResult, len(reqs))
	stop := context.AfterFunc(ctx, b.Cancel)
	defer stop()

	// A plain Group: returning nil from every goroutine keeps one failure
	// from cancelling the others.
	var eg errgroup.Group
	eg.SetLimit(b.limit)
	for i, req := range reqs {
		eg.Go(func() error {
			r := BatchResult{Index: i, AgentType: req.AgentType}
			if b.cancelled.Load() {
				r.Status = ItemCancelled
				results[i] = r
				return nil
			}
			resp, err := b.gen.Generate(ctx, req)
			switch {
			case err != nil && ctx.Err() != nil:
				r.Status = ItemCancelled
			case err != nil:
				b.gen.logger.Warn("batch item failed", "index", i, "agent_type", req.AgentType, "error", err)
				r.Status = ItemFailed
				r.Error = apperr.UserMessage(err)
			default:
				r.Status = ItemSucceeded
				r.Response = &resp
			}
			results[i] = r
			return nil
		})
	}
	eg.Wait()
	if ctx.Err() != nil {
		b.Cancel()
	}

	sum := BatchSummary{Results: results, Cancelled: b.cancelled.Load()}
	for _, r := range results {
		switch r.Status {
		case ItemSucceeded:
			sum.Succeeded++
		case ItemFailed:
			sum.Failed++
		}
	}
	return sum
}

// GenerateMultiple runs reqs as one batch.
func (g *Generator) GenerateMultiple(ctx context.Context, reqs []Request, limit int) BatchSummary {
	return g.NewBatch(limit).Run(ctx, reqs)
}
