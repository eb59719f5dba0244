package odometry

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// BatchResult is the outcome for one sequence of a batch run.
type BatchResult struct {
	Sequence   string
	Trajectory *Trajectory
	Err        error
}

// SequenceFunc processes one sequence end to end.
type SequenceFunc func(ctx context.Context, sequence string) (*Trajectory, error)

// RunBatch processes independent sequences with at most workers running at
// once. A failing sequence is reported in its result and does not stop the
// others; only ctx cancellation does. Results keep the input order.
func RunBatch(ctx context.Context, sequences []string, workers int, fn SequenceFunc) []BatchResult {
	if workers <= 0 {
		workers = 1
	}
	results := make([]BatchResult, len(sequences))
	var g errgroup.Group
	g.SetLimit(workers)
	for i, seq := range sequences {
		results[i].Sequence = seq
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				results[i].Err = wrapSequence(seq, -1, err)
				return nil
			}
			traj, err := fn(ctx, seq)
			results[i].Trajectory = traj
			results[i].Err = wrapSequence(seq, -1, err)
			return nil
		})
	}
	_ = g.Wait()
	return results
}
