// Package query fans per-point work out over a fixed pool of workers.
package query

import (
	"context"
	"runtime"

	"github.com/rotisserie/eris"
	"golang.org/x/sync/errgroup"
)

// Executor runs batches of independent per-point queries. The zero value
// uses one worker per CPU.
type Executor struct {
	workers int
}

// New returns an Executor with the given worker count; values below 1 mean
// one worker per CPU.
func New(workers int) *Executor {
	return &Executor{workers: workers}
}

// Workers returns the effective worker count.
func (ex *Executor) Workers() int {
	if ex == nil || ex.workers < 1 {
		return runtime.NumCPU()
	}
	return ex.workers
}

// partitions splits [0,n) into at most Workers() contiguous ranges.
func (ex *Executor) partitions(n int) [][2]int {
	w := min(ex.Workers(), n)
	if w < 1 {
		return nil
	}
	parts := make([][2]int, 0, w)
	size, rem := n/w, n%w
	lo := 0
	for i := range w {
		hi := lo + size
		if i < rem {
			hi++
		}
		parts = append(parts, [2]int{lo, hi})
		lo = hi
	}
	return parts
}

// Map calls fn for every i in [0,n) and returns the results in index order.
// The first error cancels the remaining work and is returned.
func Map[T any](ctx context.Context, ex *Executor, n int, fn func(i int) (T, error)) ([]T, error) {
	out := make([]T, n)
	g, gctx := errgroup.WithContext(ctx)
	for _, part := range ex.partitions(n) {
		g.Go(func() error {
			for i := part[0]; i < part[1]; i++ {
				if i%1024 == 0 && gctx.Err() != nil {
					return gctx.Err()
				}
				v, err := fn(i)
				if err != nil {
					return err
				}
				out[i] = v
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, eris.Wrap(err, "query: map")
	}
	return out, nil
}

// Fold reduces [0,n) with one accumulator per worker. step folds index i into
// an accumulator; merge combines the per-worker accumulators in partition
// order once every worker is done. A is expected to be a reference type.
func Fold[A any](ctx context.Context, ex *Executor, n int, newAcc func() A, step func(acc A, i int) error, merge func(dst, src A)) (A, error) {
	parts := ex.partitions(n)
	accs := make([]A, len(parts))
	g, gctx := errgroup.WithContext(ctx)
	for w, part := range parts {
		accs[w] = newAcc()
		g.Go(func() error {
			acc := accs[w]
			for i := part[0]; i < part[1]; i++ {
				if i%1024 == 0 && gctx.Err() != nil {
					return gctx.Err()
				}
				if err := step(acc, i); err != nil {
					return err
				}
			}
			return nil
		})
	}

	result := newAcc()
	if err := g.Wait(); err != nil {
		return result, eris.Wrap(err, "query: fold")
	}
	for _, acc := range accs {
		merge(result, acc)
	}
	return result, nil
}

// Sweep runs pass once per parameter, in parallel, and returns the results
// in parameter order.
func Sweep[P, R any](ctx context.Context, ex *Executor, params []P, pass func(ctx context.Context, p P) (R, error)) ([]R, error) {
	out := make([]R, len(params))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(ex.Workers())
	for i, p := range params {
		g.Go(func() error {
			r, err := pass(gctx, p)
			if err != nil {
				return err
			}
			out[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, eris.Wrap(err, "query: sweep")
	}
	return out, nil
}
