// Package workpool runs embarrassingly-parallel I/O side work on a bounded
// set of workers. It is not used for ordering-sensitive task flow.
package workpool

import (
	"runtime"

	"golang.org/x/sync/errgroup"
)

// Pool bounds concurrent side work. The zero limit defaults to CPU count
// plus two, a reasonable width for I/O-bound jobs.
type Pool struct {
	g errgroup.Group
}

// New creates a pool with the given worker limit; limit <= 0 uses the
// default.
func New(limit int) *Pool {
	if limit <= 0 {
		limit = runtime.NumCPU() + 2
	}
	p := &Pool{}
	p.g.SetLimit(limit)
	return p
}

// Submit queues fn, blocking if the pool is at its limit.
func (p *Pool) Submit(fn func() error) {
	p.g.Go(fn)
}

// Wait blocks until all submitted work finishes and returns the first
// error encountered.
func (p *Pool) Wait() error {
	return p.g.Wait()
}
