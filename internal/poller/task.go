package poller

import (
	"context"
	"sync"
)

// Task is a scoped handle on a background loop. Stop cancels the loop and
// waits for it to return; after that nothing the loop started is applied.
type Task struct {
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

func Go(ctx context.Context, fn func(ctx context.Context)) *Task {
	ctx, cancel := context.WithCancel(ctx)
	t := &Task{cancel: cancel, done: make(chan struct{})}
	go func() {
		defer close(t.done)
		fn(ctx)
	}()
	return t
}

func (t *Task) Stop() {
	if t == nil {
		return
	}
	t.once.Do(t.cancel)
	<-t.done
}

func (t *Task) Done() <-chan struct{} {
	return t.done
}
