package service

import (
	"context"

	"multimesh/internal/loader"

	"golang.org/x/sync/errgroup"
)

// BatchResult is the outcome of one manifest job
type BatchResult struct {
	Job    loader.Job
	Result *ConvertResult
	Err    error
}

// RunBatch runs every job of m and returns one result per job, in manifest
// order. A failing job does not stop the others. At most the configured
// number of workers convert at once; each conversion is still a single
// sequential parse.
func (s *MeshService) RunBatch(ctx context.Context, m *loader.Manifest) []BatchResult {
	results := make([]BatchResult, len(m.Jobs))

	var g errgroup.Group
	g.SetLimit(s.workers)
	for i, job := range m.Jobs {
		results[i].Job = job
		g.Go(func() error {
			res, err := s.ConvertFile(ctx, ConvertRequest{
				Source:    job.Source,
				Target:    job.Target,
				From:      job.From,
				To:        job.To,
				Overwrite: m.Overwrite,
			})
			results[i].Result = res
			results[i].Err = err
			return nil
		})
	}
	g.Wait()

	failed := 0
	for _, r := range results {
		if r.Err != nil {
			failed++
		}
	}
	s.logger.Info("batch finished", "jobs", len(results), "failed", failed)
	s.eventBus.Publish(Event{
		Type:    EventBatchCompleted,
		Payload: map[string]int{"jobs": len(results), "failed": failed},
	})
	return results
}
