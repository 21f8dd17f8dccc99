package workpool

import (
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPoolRunsAllWork(t *testing.T) {
	p := New(3)
	var n atomic.Int64
	for i := 0; i < 20; i++ {
		p.Submit(func() error {
			n.Add(1)
			return nil
		})
	}
	require.NoError(t, p.Wait())
	assert.EqualValues(t, 20, n.Load())
}

func TestPoolReturnsFirstError(t *testing.T) {
	p := New(2)
	boom := errors.New("boom")
	p.Submit(func() error { return boom })
	p.Submit(func() error { return nil })
	assert.ErrorIs(t, p.Wait(), boom)
}

func TestPoolBoundsConcurrency(t *testing.T) {
	p := New(2)
	var cur, max atomic.Int64
	for i := 0; i < 10; i++ {
		p.Submit(func() error {
			c := cur.Add(1)
			for {
				m := max.Load()
				if c <= m || max.CompareAndSwap(m, c) {
					break
				}
			}
			cur.Add(-1)
			return nil
		})
	}
	require.NoError(t, p.Wait())
	assert.LessOrEqual(t, max.Load(), int64(2))
}
