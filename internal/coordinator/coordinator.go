// Package coordinator implements the Task Coordinator: the async entry
// point that multiplexes many concurrent requests over a bounded pool of
// Reasoning Loop workers while keeping the execution plane healthy.
//
// Job tracking follows a Job/Status shape with cancellation via a stored
// context.CancelFunc, generalized from a single async tool call to a
// whole recursion tree. The global concurrency permit uses
// golang.org/x/sync's weighted semaphore — the idiomatic fit for a
// bounded pool of global permits, where a hand-rolled buffered-channel
// semaphore would just reimplement it.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/haasonsaas/rlmd/internal/observability"
	"github.com/haasonsaas/rlmd/internal/recursion"
	"github.com/haasonsaas/rlmd/pkg/rlmtypes"
)

// DefaultWorkerPoolSize is the default count of reasoning workers (spec
// §4.8 "a pool of P reasoning workers (default 3)").
const DefaultWorkerPoolSize = 3

// DefaultConcurrency is the default count of global in-flight-task
// permits ("a global semaphore of C permits (default 5)").
const DefaultConcurrency = 5

// Task is one unit of work submitted to the Coordinator (: "a
// task is {query, context_text, options}").
type Task struct {
	Query       string
	ContextText string
	OwnerTag    string

	// MaxDepthOverride, if > 0, overrides the Controller's configured
	// max_depth for this task's entire recursion tree.
	MaxDepthOverride int
	// LimitsOverride, if non-zero, overrides the Controller's configured
	// per-execution sandbox limits for this task's entire recursion tree.
	LimitsOverride rlmtypes.Limits
	// ModelOverride, if set, pins the root model for this task (
	// /infer's optional `model` field). Sub-level model selection is
	// unaffected.
	ModelOverride string
}

// Result is one task's outcome (Output).
type Result struct {
	Answer        string
	RecursionID   string
	UsageTotal    rlmtypes.UsageRecord
	PerLevelUsage []recursion.LevelUsage
	WallclockMs   int64
	Error         error
}

// Future is a handle to a submitted task's eventual Result.
type Future struct {
	id     string
	done   chan struct{}
	cancel context.CancelFunc

	mu     sync.Mutex
	result Result
}

// ID returns the task's unique id.
func (f *Future) ID() string { return f.id }

// Cancel cancels the whole recursion tree of this task (
// "Cancellation of a future cancels the whole tree of that task").
// Cancellation is cooperative: in-flight Model Client/Transport calls
// observe ctx.Done() at their next checkpoint, they are not interrupted
// mid-call.
func (f *Future) Cancel() { f.cancel() }

// Wait blocks until the task completes or ctx is done, whichever comes
// first. Waiting does not cancel the task; use Cancel for that.
func (f *Future) Wait(ctx context.Context) (Result, error) {
	select {
	case <-f.done:
		f.mu.Lock()
		defer f.mu.Unlock()
		return f.result, f.result.Error
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}

func (f *Future) complete(r Result) {
	f.mu.Lock()
	f.result = r
	f.mu.Unlock()
	close(f.done)
}

type queuedTask struct {
	task   Task
	ctx    context.Context
	future *Future
}

// Coordinator multiplexes submitted Tasks over a bounded worker pool and
// a global concurrency permit.
type Coordinator struct {
	controller *recursion.Controller
	sem        *semaphore.Weighted
	queue      chan *queuedTask

	workerCount int
	permits     int64

	wg sync.WaitGroup

	metrics *observability.Metrics
	onFatal func(*rlmtypes.ModelError)
}

// Option configures a Coordinator at construction time.
type Option func(*Coordinator)

// WithWorkerPoolSize overrides DefaultWorkerPoolSize.
func WithWorkerPoolSize(n int) Option {
	return func(c *Coordinator) {
		if n > 0 {
			c.workerCount = n
		}
	}
}

// WithConcurrency overrides DefaultConcurrency.
func WithConcurrency(n int64) Option {
	return func(c *Coordinator) {
		if n > 0 {
			c.permits = n
		}
	}
}

// WithMetrics attaches a Prometheus metrics sink.
func WithMetrics(m *observability.Metrics) Option {
	return func(c *Coordinator) { c.metrics = m }
}

// WithOnFatalModelError registers a callback invoked whenever a task fails
// with an authentication ModelError. Authentication failures mean the
// configured credentials are bad for every future task too, not just this
// one, so the Coordinator itself can't recover by retrying or by routing
// around it — only the process owner can (reload credentials, exit and let
// a supervisor restart, page someone). The Coordinator has no opinion on
// which of those the caller wants, so it just reports the error upward.
func WithOnFatalModelError(fn func(*rlmtypes.ModelError)) Option {
	return func(c *Coordinator) { c.onFatal = fn }
}

// New builds a Coordinator over the given Recursion Controller and starts
// its worker pool. Call Close to drain and stop it.
func New(controller *recursion.Controller, opts ...Option) *Coordinator {
	c := &Coordinator{
		controller:  controller,
		workerCount: DefaultWorkerPoolSize,
		permits:     DefaultConcurrency,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.sem = semaphore.NewWeighted(c.permits)
	// The queue never needs to hold more than c.permits tasks: a task only
	// reaches the queue after acquiring a permit, and it only releases that
	// permit once a worker has dequeued and finished it. Sizing the buffer
	// to c.permits means Submit's channel send below never blocks.
	c.queue = make(chan *queuedTask, c.permits)

	for i := 0; i < c.workerCount; i++ {
		c.wg.Add(1)
		go c.worker()
	}
	return c
}

// Submit acquires one of the C global permits (: "a task
// acquires one permit before submit returns a running future"), enqueues
// the task in FIFO order, and returns immediately with a Future.
// Submit blocks only while waiting for a permit (or for ctx to be done);
// it never waits for a worker to become free.
func (c *Coordinator) Submit(ctx context.Context, task Task) (*Future, error) {
	if err := c.sem.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("coordinator: acquiring permit: %w", err)
	}

	taskCtx, cancel := context.WithCancel(context.Background())
	future := &Future{id: uuid.NewString(), done: make(chan struct{}), cancel: cancel}
	qt := &queuedTask{task: task, ctx: taskCtx, future: future}

	c.queue <- qt
	if c.metrics != nil {
		c.metrics.SetCoordinatorQueueDepth(len(c.queue))
	}
	return future, nil
}

// SubmitBatch submits each task in order, stopping at the first error.
// Already-submitted futures are returned alongside the error so the
// caller can still wait on or cancel them.
func (c *Coordinator) SubmitBatch(ctx context.Context, tasks []Task) ([]*Future, error) {
	futures := make([]*Future, 0, len(tasks))
	for _, t := range tasks {
		f, err := c.Submit(ctx, t)
		if err != nil {
			return futures, err
		}
		futures = append(futures, f)
	}
	return futures, nil
}

// Close stops accepting new work from the FIFO queue once all enqueued
// tasks have been dequeued, and waits for in-flight tasks to finish.
// Close does not cancel in-flight tasks; call Future.Cancel first for
// that.
func (c *Coordinator) Close() {
	close(c.queue)
	c.wg.Wait()
}

func (c *Coordinator) worker() {
	defer c.wg.Done()
	for qt := range c.queue {
		c.runTask(qt)
	}
}

func (c *Coordinator) runTask(qt *queuedTask) {
	defer c.sem.Release(1)

	start := time.Now()
	usage := recursion.NewUsageCollector()
	ctx := recursion.WithUsageCollector(qt.ctx, usage)
	ctx = recursion.WithOverrides(ctx, qt.task.MaxDepthOverride, qt.task.LimitsOverride)
	ctx = recursion.WithModelOverride(ctx, qt.task.ModelOverride)

	res, err := c.controller.Run(ctx, "", 0, qt.task.OwnerTag, effectiveQuery(qt.task))

	result := Result{
		WallclockMs: time.Since(start).Milliseconds(),
	}
	if err != nil {
		result.Error = err
		if c.metrics != nil {
			c.metrics.RecordCoordinatorTask("error")
		}
		var modelErr *rlmtypes.ModelError
		if c.onFatal != nil && errors.As(err, &modelErr) && modelErr.Fatal() && modelErr.Kind == rlmtypes.ErrorAuthentication {
			c.onFatal(modelErr)
		}
	} else {
		result.Answer = res.Answer
		result.RecursionID = res.RecursionID
		if c.metrics != nil {
			c.metrics.RecordCoordinatorTask("ok")
		}
	}
	for _, lu := range usage.Entries() {
		result.UsageTotal.Add(lu.Usage)
	}
	result.PerLevelUsage = usage.Entries()

	qt.future.complete(result)
}

// effectiveQuery folds a task's context_text into the user query seen by
// the root Reasoning Loop. context_text has no dedicated slot in
// rlmtypes.Message (defines Message as role/content/tool_calls
// only), so it is prepended as a labeled block rather than invented as a
// new message role.
func effectiveQuery(t Task) string {
	if t.ContextText == "" {
		return t.Query
	}
	return fmt.Sprintf("Context:\n%s\n\nQuery:\n%s", t.ContextText, t.Query)
}
