package indexer

import (
	"context"
	"sync"

	"chessrag/internal/chunker"
	"chessrag/internal/gametree"
)

// Job is one record queued for chunking.
type Job struct {
	Source string
	Seq    int
	Game   *gametree.Game
}

// Outcome is the chunking result of one Job. Err is set when the engine rejected the record.
type Outcome struct {
	Job    Job
	Result *chunker.Result
	Err    error
}

// ChunkAll chunks jobs concurrently with at most workers records in flight.
// Outcomes are returned in the order of jobs whatever the scheduling, so the output
// does not depend on the worker count. It returns ctx.Err() if ctx is cancelled first.
func ChunkAll(ctx context.Context, engine *chunker.Engine, jobs []Job, workers int) ([]Outcome, error) {
	if workers < 1 {
		workers = 1
	}
	outcomes := make([]Outcome, len(jobs))
	sem := make(chan struct{}, workers)
	var wg sync.WaitGroup

	for i, job := range jobs {
		select {
		case <-ctx.Done():
			wg.Wait()
			return nil, ctx.Err()
		case sem <- struct{}{}:
		}

		wg.Add(1)
		go func(i int, job Job) {
			defer wg.Done()
			defer func() { <-sem }()

			res, err := engine.Chunk(job.Source, job.Seq, job.Game)
			outcomes[i] = Outcome{Job: job, Result: res, Err: err}
		}(i, job)
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return outcomes, nil
}
