package async

import (
	"context"
	"fmt"
	"time"

	"github.com/m-mizutani/goerr/v2"
)

// ErrTimeout is reported in Result.Err when the deadline fires before the task returns
var ErrTimeout = goerr.New("task timed out")

// Result is the envelope produced by RunWithTimeout. Exactly one of Data/Err is meaningful,
// selected by Success.
type Result[T any] struct {
	Name     string
	Success  bool
	Data     T
	Err      error
	TimedOut bool
	Duration time.Duration
}

type outcome[T any] struct {
	data T
	err  error
}

// RunWithTimeout executes fn with its own deadline and always returns an envelope.
// On timeout the task context is cancelled and its eventual result is discarded;
// the goroutine may keep running until fn observes the cancellation.
// A panic inside fn is converted into a failed envelope.
func RunWithTimeout[T any](ctx context.Context, name string, timeout time.Duration, fn func(ctx context.Context) (T, error)) Result[T] {
	start := time.Now()
	taskCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	// buffered so a late sender never blocks after we stop listening
	ch := make(chan outcome[T], 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				ch <- outcome[T]{err: goerr.New("panic in task", goerr.V("task", name), goerr.V("panic", fmt.Sprint(r)))}
			}
		}()
		data, err := fn(taskCtx)
		ch <- outcome[T]{data: data, err: err}
	}()

	result := Result[T]{Name: name}
	select {
	case out := <-ch:
		result.Duration = time.Since(start)
		if out.err != nil {
			result.Err = out.err
			// a task that returns its own deadline error is still a timeout
			result.TimedOut = taskCtx.Err() == context.DeadlineExceeded && ctx.Err() == nil
			return result
		}
		result.Success = true
		result.Data = out.data
		return result

	case <-taskCtx.Done():
		result.Duration = time.Since(start)
		if ctx.Err() != nil {
			result.Err = goerr.Wrap(ctx.Err(), "parent context done", goerr.V("task", name))
			return result
		}
		result.TimedOut = true
		result.Err = goerr.Wrap(ErrTimeout, "task exceeded deadline",
			goerr.V("task", name),
			goerr.V("timeout", timeout.String()),
		)
		return result
	}
}
