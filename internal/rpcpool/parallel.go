package rpcpool

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"
)

// Task is one unit of work for ParallelFetch.
type Task[T any] func(ctx context.Context) (T, error)

// Result pairs a task's value with its own error.
type Result[T any] struct {
	Index int
	Value T
	Err   error
}

// ParallelFetch runs tasks with at most concurrency in flight. A new task starts
// as soon as any running one finishes. Failures are reported per task; nothing
// is retried. Results are returned in task order.
func ParallelFetch[T any](ctx context.Context, concurrency int, tasks []Task[T]) []Result[T] {
	results := make([]Result[T], len(tasks))
	if len(tasks) == 0 {
		return results
	}
	if concurrency <= 0 {
		concurrency = 1
	}

	sem := semaphore.NewWeighted(int64(concurrency))
	var wg sync.WaitGroup
	for i, task := range tasks {
		results[i].Index = i
		err := ctx.Err()
		if err == nil {
			err = sem.Acquire(ctx, 1)
		}
		if err != nil {
			for j := i; j < len(tasks); j++ {
				results[j] = Result[T]{Index: j, Err: err}
			}
			break
		}
		wg.Add(1)
		go func(i int, task Task[T]) {
			defer wg.Done()
			defer sem.Release(1)
			value, err := task(ctx)
			results[i] = Result[T]{Index: i, Value: value, Err: err}
		}(i, task)
	}
	wg.Wait()
	return results
}
