package semantic

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// maxEntityTokenEstimate caps the per-entity estimate so one pathological
// file cannot dominate scheduling.
const maxEntityTokenEstimate = 100000

// EstimateEntityTokens approximates the prompt cost of an entity at four
// characters per token.
func EstimateEntityTokens(input EntityInput) int {
	chars := len(input.Name) + len(input.FilePath) + len(input.SourceCode) + len(input.Documentation)
	est := chars / 4
	if est < 1 {
		est = 1
	}
	if est > maxEntityTokenEstimate {
		est = maxEntityTokenEstimate
	}
	return est
}

// Batch is a group of entities extracted together.
type Batch struct {
	Entities []EntityInput
	Tokens   int
}

// BuildBatches packs entities into batches of at most maxBatchTokens.
// An entity whose own estimate exceeds the budget gets a batch to itself.
// A final batch under minBatchTokens is merged into the previous one when
// the merge still fits the budget.
func (e *Extractor) BuildBatches(entities []EntityInput) []Batch {
	var batches []Batch
	var cur Batch

	flush := func() {
		if len(cur.Entities) > 0 {
			batches = append(batches, cur)
			cur = Batch{}
		}
	}

	for _, entity := range entities {
		tokens := EstimateEntityTokens(entity)
		if tokens >= e.opts.MaxBatchTokens {
			flush()
			batches = append(batches, Batch{Entities: []EntityInput{entity}, Tokens: tokens})
			continue
		}
		if cur.Tokens+tokens > e.opts.MaxBatchTokens {
			flush()
		}
		cur.Entities = append(cur.Entities, entity)
		cur.Tokens += tokens
	}
	flush()

	if n := len(batches); n >= 2 {
		last, prev := batches[n-1], batches[n-2]
		if last.Tokens < e.opts.MinBatchTokens && prev.Tokens+last.Tokens <= e.opts.MaxBatchTokens {
			prev.Entities = append(prev.Entities, last.Entities...)
			prev.Tokens += last.Tokens
			batches = append(batches[:n-2], prev)
		}
	}
	return batches
}

// ExtractAll extracts features for all entities, batch by batch, with
// per-batch parallelism bounded by the CPU count. The result is indexed
// identically to the input slice.
func (e *Extractor) ExtractAll(ctx context.Context, entities []EntityInput) ([]*Feature, error) {
	features := make([]*Feature, len(entities))

	offset := 0
	for _, batch := range e.BuildBatches(entities) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(runtime.NumCPU())
		for i := range batch.Entities {
			pos := offset + i
			input := batch.Entities[i]
			g.Go(func() error {
				features[pos] = e.Extract(gctx, input)
				return gctx.Err()
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
		offset += len(batch.Entities)
	}
	return features, nil
}
