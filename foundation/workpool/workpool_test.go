package workpool

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/matryer/is"
)

type testWorker struct {
	id      int
	active  *int32
	maxSeen *int32
	closed  *int32
}

func (w *testWorker) Process(_ context.Context, item string) (string, error) {
	current := atomic.AddInt32(w.active, 1)
	defer atomic.AddInt32(w.active, -1)
	for {
		seen := atomic.LoadInt32(w.maxSeen)
		if current <= seen || atomic.CompareAndSwapInt32(w.maxSeen, seen, current) {
			break
		}
	}
	time.Sleep(2 * time.Millisecond)
	switch item {
	case "fail":
		return "", errors.New("store unavailable")
	case "panic":
		panic("corrupt snapshot")
	}
	return fmt.Sprintf("worker %d result(%s)", w.id, item), nil
}

func (w *testWorker) Close() error {
	atomic.AddInt32(w.closed, 1)
	return nil
}

type testPool struct {
	active  int32
	maxSeen int32
	closed  int32
	built   int32
}

func (p *testPool) newWorker(id int) (Worker[string], error) {
	atomic.AddInt32(&p.built, 1)
	return &testWorker{id: id, active: &p.active, maxSeen: &p.maxSeen, closed: &p.closed}, nil
}

func discardLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

func TestRun_SettlesEveryItem(t *testing.T) {
	is := is.New(t)
	pool := &testPool{}
	items := []string{"a", "fail", "b", "panic", "c", "d", "e"}

	var settledMu sync.Mutex
	settledItems := make(map[string]bool)
	outcomes, err := Run(context.Background(), discardLogger(), 3, pool.newWorker, items, func(o Outcome[string]) {
		settledMu.Lock()
		defer settledMu.Unlock()
		settledItems[o.Item] = true
	})
	is.NoErr(err)
	is.Equal(len(outcomes), len(items))
	is.Equal(len(settledItems), len(items))

	for i, outcome := range outcomes {
		is.Equal(outcome.Item, items[i])
		is.True(outcome.WorkerId >= 1 && outcome.WorkerId <= 3)
	}
	is.Equal(outcomes[1].Err.Error(), "store unavailable")

	var panicErr *PanicError
	is.True(errors.As(outcomes[3].Err, &panicErr))
	is.Equal(panicErr.Value, "corrupt snapshot")
	is.True(len(panicErr.Stack) > 0)

	is.Equal(outcomes[0].Summary, fmt.Sprintf("worker %d result(a)", outcomes[0].WorkerId))

	succeeded, failed := Counts(outcomes)
	is.Equal(succeeded, 5)
	is.Equal(failed, 2)

	is.Equal(atomic.LoadInt32(&pool.built), int32(3))
	is.Equal(atomic.LoadInt32(&pool.closed), int32(3))
	is.True(atomic.LoadInt32(&pool.maxSeen) <= 3)
}

func TestRun_PoolSize(t *testing.T) {
	tests := []struct {
		name      string
		size      int
		items     int
		wantBuilt int32
	}{
		{name: "fewer items than workers", size: 8, items: 2, wantBuilt: 2},
		{name: "single worker", size: 1, items: 5, wantBuilt: 1},
		{name: "default size", size: 0, items: 1, wantBuilt: 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			is := is.New(t)
			pool := &testPool{}
			items := make([]string, tt.items)
			for i := range items {
				items[i] = fmt.Sprintf("item-%d", i)
			}
			outcomes, err := Run(context.Background(), discardLogger(), tt.size, pool.newWorker, items, nil)
			is.NoErr(err)
			is.Equal(len(outcomes), tt.items)
			is.Equal(pool.built, tt.wantBuilt)
			is.Equal(pool.closed, tt.wantBuilt)
			is.True(pool.maxSeen <= tt.wantBuilt)
		})
	}
}

func TestRun_NoItems(t *testing.T) {
	is := is.New(t)
	pool := &testPool{}
	outcomes, err := Run(context.Background(), discardLogger(), 4, pool.newWorker, nil, nil)
	is.NoErr(err)
	is.Equal(len(outcomes), 0)
	is.Equal(pool.built, int32(0))
}

func TestRun_WorkerCreationFailure(t *testing.T) {
	is := is.New(t)
	pool := &testPool{}
	newWorker := func(id int) (Worker[string], error) {
		if id == 3 {
			return nil, errors.New("connection refused")
		}
		return pool.newWorker(id)
	}
	processed := 0
	_, err := Run(context.Background(), discardLogger(), 4, newWorker, []string{"a", "b", "c", "d"},
		func(o Outcome[string]) { processed++ })
	is.True(err != nil)
	is.Equal(processed, 0)
	is.Equal(pool.built, int32(2))
	// workers built before the failure are closed
	is.Equal(pool.closed, int32(2))
}

func TestRun_CancelledContext(t *testing.T) {
	is := is.New(t)
	pool := &testPool{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	outcomes, err := Run(ctx, discardLogger(), 2, pool.newWorker, []string{"a", "b", "c"}, nil)
	is.NoErr(err)
	is.Equal(len(outcomes), 3)
	for _, outcome := range outcomes {
		is.True(errors.Is(outcome.Err, context.Canceled))
	}
	is.Equal(pool.closed, int32(2))
}
