package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
)

// PoolStats counts the jobs a pool ran.
type PoolStats struct {
	Completed int64 `json:"completed"`
	Failed    int64 `json:"failed"`
	Panics    int64 `json:"panics"`
}

// errPoolClosed is returned when work is submitted after Wait.
var errPoolClosed = errors.New("batch pool is closed")

// pool bounds how many batch jobs run at once.
type pool struct {
	sem    chan struct{}
	wg     sync.WaitGroup
	stats  PoolStats
	mu     sync.Mutex
	closed bool
}

func newPool(size int) *pool {
	if size <= 0 {
		size = 1
	}
	return &pool{sem: make(chan struct{}, size)}
}

// Go runs fn on its own goroutine once a slot is free. It blocks while the
// pool is at capacity and gives up when ctx is done. A panic in fn is
// recovered and reported through onPanic.
func (p *pool) Go(ctx context.Context, fn func(ctx context.Context) error, onPanic func(error)) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	select {
	case p.sem <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}

	// wg.Add must happen under the lock so Wait cannot miss it.
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		<-p.sem
		return errPoolClosed
	}
	p.wg.Add(1)
	p.mu.Unlock()

	go func() {
		defer func() {
			if r := recover(); r != nil {
				atomic.AddInt64(&p.stats.Panics, 1)
				atomic.AddInt64(&p.stats.Failed, 1)
				if onPanic != nil {
					onPanic(fmt.Errorf("panic: %v", r))
				}
			}
			<-p.sem
			p.wg.Done()
		}()

		if err := fn(ctx); err != nil {
			atomic.AddInt64(&p.stats.Failed, 1)
			return
		}
		atomic.AddInt64(&p.stats.Completed, 1)
	}()
	return nil
}

// Wait closes the pool and blocks until every submitted job has finished.
func (p *pool) Wait() PoolStats {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()

	p.wg.Wait()
	return PoolStats{
		Completed: atomic.LoadInt64(&p.stats.Completed),
		Failed:    atomic.LoadInt64(&p.stats.Failed),
		Panics:    atomic.LoadInt64(&p.stats.Panics),
	}
}
