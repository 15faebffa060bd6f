// Package workpool runs a batch of work items through a fixed number of workers, collecting the outcome of every item.
// A failing or panicking item never stops the rest of the batch
package workpool

import (
	"context"
	"fmt"
	logger "log"
	"runtime"
	"runtime/debug"
	"sync"
	"time"
)

// Worker processes work items one at a time. Each Worker owns its own resources (connections, caches)
// and is never shared between goroutines
type Worker[T any] interface {
	// Process handles item and returns a one line summary of the work done
	Process(ctx context.Context, item T) (string, error)
	// Close releases the Worker's resources after the batch has drained
	Close() error
}

// Outcome is the settled result of one work item
type Outcome[T any] struct {
	Item     T
	WorkerId int
	Summary  string
	Err      error
	Elapsed  time.Duration
}

// Failed returns true if the item did not complete
func (o Outcome[T]) Failed() bool {
	return o.Err != nil
}

// PanicError is the error an item settles with when its Worker panics while processing it
type PanicError struct {
	Value interface{}
	Stack []byte
}

func (p *PanicError) Error() string {
	return fmt.Sprintf("worker panic: %v", p.Value)
}

// DefaultSize is half the available processors, at least 1
func DefaultSize() int {
	size := runtime.NumCPU() / 2
	if size < 1 {
		return 1
	}
	return size
}

type job[T any] struct {
	index int
	item  T
}

// Run processes items with size workers built by newWorker, calling onSettled once for each item as it completes.
// onSettled is never called concurrently and may be nil.
// Returns the Outcome of every item in the order of items. Items not yet dispatched when ctx is done settle
// with ctx's error. An error is only returned when a Worker could not be built, in which case no item is processed
func Run[T any](ctx context.Context,
	log *logger.Logger,
	size int,
	newWorker func(id int) (Worker[T], error),
	items []T,
	onSettled func(Outcome[T])) ([]Outcome[T], error) {

	if len(items) == 0 {
		return nil, nil
	}
	if size < 1 {
		size = DefaultSize()
	}
	if size > len(items) {
		size = len(items)
	}

	workers := make([]Worker[T], 0, size)
	for id := 1; id <= size; id++ {
		worker, err := newWorker(id)
		if err != nil {
			closeWorkers(log, workers)
			return nil, fmt.Errorf("unable to create worker %d: %w", id, err)
		}
		workers = append(workers, worker)
	}
	defer closeWorkers(log, workers)

	jobs := make(chan job[T])
	settled := make(chan settledJob[T])

	wg := sync.WaitGroup{}
	for i, worker := range workers {
		wg.Add(1)
		go runWorker(ctx, &wg, i+1, worker, jobs, settled)
	}

	go dispatch(ctx, items, jobs, settled)

	outcomes := make([]Outcome[T], len(items))
	for range items {
		s := <-settled
		outcomes[s.index] = s.outcome
		if onSettled != nil {
			onSettled(s.outcome)
		}
	}
	wg.Wait()
	return outcomes, nil
}

type settledJob[T any] struct {
	index   int
	outcome Outcome[T]
}

// dispatch sends each item to the workers, settling the remainder with ctx's error once ctx is done
func dispatch[T any](ctx context.Context, items []T, jobs chan<- job[T], settled chan<- settledJob[T]) {
	defer close(jobs)
	for i, item := range items {
		if ctx.Err() == nil {
			select {
			case jobs <- job[T]{index: i, item: item}:
				continue
			case <-ctx.Done():
			}
		}
		settled <- settledJob[T]{index: i, outcome: Outcome[T]{Item: item, Err: ctx.Err()}}
	}
}

func runWorker[T any](ctx context.Context,
	wg *sync.WaitGroup,
	id int,
	worker Worker[T],
	jobs <-chan job[T],
	settled chan<- settledJob[T]) {
	defer wg.Done()
	for j := range jobs {
		start := time.Now()
		summary, err := process(ctx, worker, j.item)
		settled <- settledJob[T]{
			index: j.index,
			outcome: Outcome[T]{
				Item:     j.item,
				WorkerId: id,
				Summary:  summary,
				Err:      err,
				Elapsed:  time.Since(start),
			},
		}
	}
}

func process[T any](ctx context.Context, worker Worker[T], item T) (summary string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Value: r, Stack: debug.Stack()}
		}
	}()
	return worker.Process(ctx, item)
}

func closeWorkers[T any](log *logger.Logger, workers []Worker[T]) {
	for i, worker := range workers {
		if err := worker.Close(); err != nil {
			log.Printf("error closing worker %d: %v", i+1, err)
		}
	}
}

// Counts returns the number of succeeded and failed outcomes
func Counts[T any](outcomes []Outcome[T]) (succeeded int, failed int) {
	for _, outcome := range outcomes {
		if outcome.Failed() {
			failed++
		} else {
			succeeded++
		}
	}
	return
}
