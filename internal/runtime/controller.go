package runtime

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"zerostack-chat/internal/logging"
)

// Task is a background loop that runs until its context is canceled.
type Task func(ctx context.Context) error

// Controller runs named background tasks, at most one per name, under a
// shared root context.
type Controller struct {
	rootCtx context.Context
	logger  *logging.Logger

	mu      sync.Mutex
	cancels map[string]context.CancelFunc
	wg      sync.WaitGroup
}

func NewController(rootCtx context.Context, logger *logging.Logger) *Controller {
	if logger == nil {
		panic("runtime.NewController: logger must not be nil")
	}
	if rootCtx == nil {
		rootCtx = context.Background()
	}
	return &Controller{
		rootCtx: rootCtx,
		logger:  logger.Component("runtime"),
		cancels: make(map[string]context.CancelFunc),
	}
}

// Start launches task under name. onExit, when set, receives the task's
// error after it returns.
func (c *Controller) Start(name string, task Task, onExit func(error)) error {
	if task == nil {
		return errors.New("runtime: task must not be nil")
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, running := c.cancels[name]; running {
		return fmt.Errorf("%s is already running", name)
	}
	ctx, cancel := context.WithCancel(c.rootCtx)
	c.cancels[name] = cancel
	c.logger.Debug("background task started", logging.Field("task", name))

	c.wg.Go(func() {
		defer cancel()
		runErr := task(ctx)
		if errors.Is(runErr, context.Canceled) || errors.Is(runErr, context.DeadlineExceeded) {
			c.logger.Debug("background task exited due to context cancellation", logging.Field("task", name))
			runErr = nil
		} else if runErr != nil {
			c.logger.Warn("background task exited with error", logging.Field("task", name), logging.Field("error", runErr))
		} else {
			c.logger.Debug("background task exited", logging.Field("task", name))
		}
		c.mu.Lock()
		delete(c.cancels, name)
		c.mu.Unlock()

		if onExit != nil {
			onExit(runErr)
		}
	})
	return nil
}

func (c *Controller) Stop(name string) {
	c.mu.Lock()
	cancel := c.cancels[name]
	c.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

func (c *Controller) StopAll() {
	c.mu.Lock()
	cancels := make([]context.CancelFunc, 0, len(c.cancels))
	for _, cancel := range c.cancels {
		cancels = append(cancels, cancel)
	}
	c.mu.Unlock()
	for _, cancel := range cancels {
		cancel()
	}
}

// Wait blocks until every task has returned, or until timeout when it is
// positive. It reports whether all tasks finished.
func (c *Controller) Wait(timeout time.Duration) bool {
	waitDone := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(waitDone)
	}()
	if timeout <= 0 {
		<-waitDone
		return true
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-waitDone:
		return true
	case <-timer.C:
		return false
	}
}

func (c *Controller) StopAndWait(timeout time.Duration) bool {
	c.StopAll()
	return c.Wait(timeout)
}

func (c *Controller) IsRunning(name string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, running := c.cancels[name]
	return running
}
