package group

import (
	"context"
	"sync"
)

type (
	void = struct{}

	Context = context.Context
	Cause   = error

	// Group runs jobs in goroutines bound to a shared context.
	// The first job returning an error cancels the group with an *Error cause.
	Group struct {
		Context
		cancel context.CancelCauseFunc
		tasks  map[*Task]void
		wg     sync.WaitGroup
		sync.Mutex
	}
)

func (g *Group) Cancel(cause Cause) {
	g.Lock()
	defer g.Unlock()
	g.cancel(cause)
}

// RunNamed starts j unless the group is already done.
// name identifies the task in the cancellation cause.
func (g *Group) RunNamed(name string, j Job) {
	g.Lock()
	defer g.Unlock()

	g.run(name, j)
}

func (g *Group) run(name string, j Job) {
	select {
	case <-g.Done():
		// skip new tasks if we are done
		return
	default:
	}

	task := &Task{
		name: name,
		fn:   j,
	}
	g.tasks[task] = void{}

	g.wg.Add(1)
	go g.runTask(task)
}

func (g *Group) runTask(task *Task) {
	defer g.wg.Done()

	err := task.fn(g.Context)
	g.Lock()
	defer g.Unlock()
	delete(g.tasks, task)

	if err != nil {
		g.cancel(&Error{
			Err:  err,
			task: task,
		})
	}
}

// Len reports the number of tasks which are still running.
func (g *Group) Len() int {
	g.Lock()
	defer g.Unlock()
	return len(g.tasks)
}

// Wait blocks until the group is canceled and all tasks returned,
// or until ctx is done. It returns the cancellation cause.
func (g *Group) Wait(ctx Context) error {
	select {
	case <-ctx.Done():
		return context.Cause(ctx)
	case <-g.Done():
		err := context.Cause(g)
		g.wg.Wait() // wait for group to drain
		return err
	}
}

func New(ctx Context) *Group {
	ctx, cancel := context.WithCancelCause(ctx)
	return &Group{
		Context: ctx,
		cancel:  cancel,
		tasks:   map[*Task]void{},
	}
}
