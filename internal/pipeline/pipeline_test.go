package pipeline

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// collector is a terminal stage that records every message it sees.
type collector struct {
	mu   sync.Mutex
	msgs []int
}

func (c *collector) stage() Stage {
	return Stage{Fn: func(msg any) ([]any, error) {
		c.mu.Lock()
		c.msgs = append(c.msgs, msg.(int))
		c.mu.Unlock()
		return nil, nil
	}}
}

func (c *collector) sorted() []int {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := append([]int(nil), c.msgs...)
	sort.Ints(out)
	return out
}

func double(msg any) ([]any, error) {
	return []any{msg.(int) * 2}, nil
}

func TestRunSequential(t *testing.T) {
	sink := &collector{}
	p := New(SliceSource(1, 2, 3), Stage{Fn: double}, sink.stage())

	require.NoError(t, p.Run(context.Background()))
	assert.Equal(t, []int{2, 4, 6}, sink.msgs, "sequential mode preserves order")
}

func TestRunParallelSameTerminalSet(t *testing.T) {
	msgs := make([]any, 50)
	for i := range msgs {
		msgs[i] = i
	}

	seq := &collector{}
	require.NoError(t, New(SliceSource(msgs...), Stage{Fn: double}, seq.stage()).Run(context.Background()))

	par := &collector{}
	p := New(SliceSource(msgs...), Stage{Fn: double, Workers: 4}, par.stage())
	require.NoError(t, p.RunParallel(context.Background(), 4))

	assert.Equal(t, seq.sorted(), par.sorted(), "both modes yield the same terminal set")
}

func TestDropNeverReachesNextStage(t *testing.T) {
	dropOdd := Stage{Fn: func(msg any) ([]any, error) {
		if msg.(int)%2 == 1 {
			return nil, ErrDrop
		}
		return []any{msg}, nil
	}}

	sink := &collector{}
	p := New(SliceSource(1, 2, 3, 4, 5), dropOdd, sink.stage())
	require.NoError(t, p.Run(context.Background()))
	assert.Equal(t, []int{2, 4}, sink.msgs)

	sink2 := &collector{}
	p2 := New(SliceSource(1, 2, 3, 4, 5), dropOdd, sink2.stage())
	require.NoError(t, p2.RunParallel(context.Background(), 2))
	assert.Equal(t, []int{2, 4}, sink2.sorted())
}

func TestFanOut(t *testing.T) {
	fan := Stage{Fn: func(msg any) ([]any, error) {
		n := msg.(int)
		return []any{n, n, n}, nil
	}}

	sink := &collector{}
	p := New(SliceSource(7), fan, sink.stage())
	require.NoError(t, p.RunParallel(context.Background(), 1))
	assert.Equal(t, []int{7, 7, 7}, sink.sorted(), "fan-out of k yields k messages")
}

func TestWorkerFaultAbortsRun(t *testing.T) {
	boom := errors.New("boom")
	faulty := Stage{Fn: func(msg any) ([]any, error) {
		if msg.(int) == 3 {
			return nil, boom
		}
		return []any{msg}, nil
	}, Workers: 2}

	msgs := make([]any, 100)
	for i := range msgs {
		msgs[i] = i
	}

	sink := &collector{}
	p := New(SliceSource(msgs...), faulty, Stage{Fn: double, Workers: 2}, sink.stage())
	err := p.RunParallel(context.Background(), 2)
	require.Error(t, err)
	assert.ErrorIs(t, err, boom, "the first fault is what the caller observes")
}

func TestFaultInSequentialMode(t *testing.T) {
	boom := errors.New("boom")
	p := New(SliceSource(1), Stage{Fn: func(any) ([]any, error) { return nil, boom }})
	assert.ErrorIs(t, p.Run(context.Background()), boom)
}

func TestContextCancelAbortsParallelRun(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	started := make(chan struct{})
	var once sync.Once
	slow := Stage{Fn: func(msg any) ([]any, error) {
		once.Do(func() { close(started) })
		time.Sleep(5 * time.Millisecond)
		return []any{msg}, nil
	}}

	src := SourceFunc(func() (any, bool) { return 1, true }) // endless
	p := New(src, slow, Stage{Fn: double}, (&collector{}).stage())

	done := make(chan error, 1)
	go func() { done <- p.RunParallel(ctx, 2) }()

	<-started
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("pipeline did not stop after cancellation")
	}
}

func TestQueueCloseAfterDrain(t *testing.T) {
	q := newQueue(2)
	q.acquire()
	require.True(t, q.put("a"))
	require.True(t, q.put("b"))
	q.release()

	v, ok := q.get()
	require.True(t, ok)
	assert.Equal(t, "a", v)
	v, ok = q.get()
	require.True(t, ok)
	assert.Equal(t, "b", v)

	_, ok = q.get()
	assert.False(t, ok, "drained queue with no producers returns poison")
	assert.False(t, q.put("c"), "send to closed queue is a no-op")
}

func TestQueueForceCloseUnblocksReceiver(t *testing.T) {
	q := newQueue(1)
	q.acquire()

	done := make(chan struct{})
	go func() {
		_, ok := q.get()
		assert.False(t, ok)
		close(done)
	}()

	time.Sleep(10 * time.Millisecond)
	q.forceClose()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("receiver still blocked after force-close")
	}
}

func TestQueueForceCloseUnblocksSender(t *testing.T) {
	q := newQueue(1)
	q.acquire()
	require.True(t, q.put(1))

	done := make(chan struct{})
	go func() {
		assert.False(t, q.put(2), "blocked send returns false once closed")
		close(done)
	}()

	time.Sleep(10 * time.Millisecond)
	q.forceClose()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sender still blocked after force-close")
	}
}
