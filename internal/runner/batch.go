package runner

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"matchday/internal/match"
)

// Outcome is one finished match of a batch.
type Outcome struct {
	Request Request
	Result  *match.Result
	Err     error
}

// RunBatch plays every request with at most workers matches at a time and
// returns the outcomes in request order. A match that fails is reported in
// its Outcome; only cancellation of ctx aborts the batch.
func RunBatch(ctx context.Context, reqs []Request, base match.Options, workers int) ([]Outcome, error) {
	out := make([]Outcome, len(reqs))

	g, gctx := errgroup.WithContext(ctx)
	if workers > 0 {
		g.SetLimit(workers)
	}
	for i := range reqs {
		i := i
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			out[i] = playOne(gctx, reqs[i], base)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return out, err
	}
	return out, ctx.Err()
}

func playOne(ctx context.Context, req Request, base match.Options) Outcome {
	o := Outcome{Request: req}
	agents, err := o.Request.Lineup(base.Field)
	if err != nil {
		o.Err = err
		return o
	}

	opts := base
	opts.Seed = req.Seed
	if opts.Label == "" {
		opts.Label = fmt.Sprintf("seed-%d", req.Seed)
	}
	m, err := match.New(agents, opts)
	if err != nil {
		o.Err = err
		return o
	}
	o.Result, o.Err = m.Run(ctx)
	return o
}
