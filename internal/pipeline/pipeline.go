// Package pipeline provides a generic staged execution engine. A pipeline is
// an ordered list of stages; each stage is one or more workers applying the
// same function to messages pulled from the previous stage. It runs either
// single-threaded (depth-first, no queues) or with one goroutine per worker
// and a bounded queue between adjacent stages.
package pipeline

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
)

// ErrDrop is returned by a stage function to discard the current message.
// A dropped message never reaches a later stage.
var ErrDrop = errors.New("pipeline: message dropped")

// StageFunc transforms one input message into zero, one, or many output
// messages. Returning ErrDrop discards the input; any other error is a
// worker fault that aborts the whole run.
type StageFunc func(msg any) ([]any, error)

// Stage is one step of a pipeline with a worker count. Workers share the
// stage's input and output queues in parallel mode; sequential mode only
// ever exercises the function once per message.
type Stage struct {
	Fn      StageFunc
	Workers int
}

func (s Stage) workers() int {
	if s.Workers < 1 {
		return 1
	}
	return s.Workers
}

// Source supplies the pipeline's initial messages. Next returns ok=false
// once the source is exhausted.
type Source interface {
	Next() (any, bool)
}

// SourceFunc adapts a function to the Source interface.
type SourceFunc func() (any, bool)

// Next implements Source.
func (f SourceFunc) Next() (any, bool) { return f() }

// SliceSource returns a Source yielding the given messages in order.
func SliceSource(msgs ...any) Source {
	i := 0
	return SourceFunc(func() (any, bool) {
		if i >= len(msgs) {
			return nil, false
		}
		v := msgs[i]
		i++
		return v, true
	})
}

// Pipeline executes a stage list over a message source.
type Pipeline struct {
	source Source
	stages []Stage

	aborted atomic.Bool
	queues  []*queue // set only during a parallel run
	qmu     sync.Mutex
}

// New builds a pipeline. At least one stage is required.
func New(source Source, stages ...Stage) *Pipeline {
	return &Pipeline{source: source, stages: stages}
}

// Abort requests a cooperative stop. Every queue is force-closed so workers
// blocked on a send or receive unblock immediately.
func (p *Pipeline) Abort() {
	if p.aborted.Swap(true) {
		return
	}
	p.qmu.Lock()
	for _, q := range p.queues {
		q.forceClose()
	}
	p.qmu.Unlock()
}

// Run executes the pipeline single-threaded: each source message is pushed
// depth-first through the first worker of every stage. No queues are used.
func (p *Pipeline) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if p.aborted.Load() {
			return nil
		}
		msg, ok := p.source.Next()
		if !ok {
			return nil
		}
		if err := p.feed(ctx, 0, msg); err != nil {
			return err
		}
	}
}

func (p *Pipeline) feed(ctx context.Context, idx int, msg any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if idx >= len(p.stages) {
		return nil
	}
	outs, err := p.stages[idx].Fn(msg)
	if errors.Is(err, ErrDrop) {
		return nil
	}
	if err != nil {
		return err
	}
	for _, out := range outs {
		if err := p.feed(ctx, idx+1, out); err != nil {
			return err
		}
	}
	return nil
}

// RunParallel executes the pipeline with one goroutine per stage worker and
// a bounded queue between adjacent stages. The first worker fault aborts
// every other worker; all workers are joined before that fault is returned.
// Cancelling ctx aborts the run the same way and returns ctx.Err().
func (p *Pipeline) RunParallel(ctx context.Context, queueSize int) error {
	if len(p.stages) == 0 {
		return nil
	}

	queues := make([]*queue, len(p.stages)-1)
	for i := range queues {
		queues[i] = newQueue(queueSize)
	}
	p.qmu.Lock()
	p.queues = queues
	p.qmu.Unlock()

	// Producer references are taken up front so a queue cannot close
	// before its feeding stage has started.
	for i, st := range p.stages[:len(p.stages)-1] {
		for w := 0; w < st.workers(); w++ {
			queues[i].acquire()
		}
	}

	src := &lockedSource{src: p.source}
	var g errgroup.Group

	watchDone := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			p.Abort()
		case <-watchDone:
		}
	}()

	for i, st := range p.stages {
		var in, out *queue
		if i > 0 {
			in = queues[i-1]
		}
		if i < len(queues) {
			out = queues[i]
		}
		for w := 0; w < st.workers(); w++ {
			fn := st.Fn
			first := i == 0
			g.Go(func() error {
				return p.work(first, src, fn, in, out)
			})
		}
	}

	err := g.Wait()
	close(watchDone)
	if err != nil {
		return err
	}
	return ctx.Err()
}

func (p *Pipeline) work(first bool, src *lockedSource, fn StageFunc, in, out *queue) error {
	if out != nil {
		defer out.release()
	}
	for {
		if p.aborted.Load() {
			return nil
		}
		var msg any
		var ok bool
		if first {
			msg, ok = src.next()
		} else {
			msg, ok = in.get()
		}
		if !ok {
			return nil
		}
		outs, err := fn(msg)
		if errors.Is(err, ErrDrop) {
			continue
		}
		if err != nil {
			p.Abort()
			return err
		}
		if out == nil {
			continue
		}
		for _, o := range outs {
			if !out.put(o) {
				return nil
			}
		}
	}
}

// lockedSource serializes Next calls when several first-stage workers share
// one source.
type lockedSource struct {
	mu  sync.Mutex
	src Source
}

func (s *lockedSource) next() (any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.src.Next()
}
