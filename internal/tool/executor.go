package tool

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/sirupsen/logrus"

	"github.com/stupiduntilnot/toolhost/internal/control"
)

// Audit receives tool invocation lifecycle notifications.
type Audit interface {
	CallStarted(call Call)
	CallFinished(res Result)
}

// Executor dispatches calls to registered tools. It never panics or
// returns a Go error across the boundary: every failure is normalized
// into a Result.
type Executor struct {
	registry *Registry
	audit    Audit
	log      *logrus.Entry

	breakerMu sync.Mutex
	breaker   *control.CircuitBreaker
}

func NewExecutor(registry *Registry) *Executor {
	return &Executor{
		registry: registry,
		log:      logrus.WithField("component", "executor"),
	}
}

// WithAudit wires an invocation audit sink.
func (e *Executor) WithAudit(a Audit) *Executor {
	e.audit = a
	return e
}

// WithBreaker wires a circuit breaker that fails calls fast after
// repeated timeouts or execution failures.
func (e *Executor) WithBreaker(b *control.CircuitBreaker) *Executor {
	e.breaker = b
	return e
}

// Execute runs one call to completion and always returns a settled Result.
func (e *Executor) Execute(ctx context.Context, call Call) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			e.log.WithField("tool", call.Name).Errorf("tool panicked: %v", r)
			res = e.finish(call, errorResult(call, NewExecutionFailed(
				fmt.Sprintf("tool panicked: %v", r), nil,
			)))
		}
	}()

	if e.audit != nil {
		e.audit.CallStarted(call)
	}

	if ctx.Err() != nil {
		return e.finish(call, errorResult(call, NewAborted()))
	}
	name := strings.TrimSpace(call.Name)
	if name == "" {
		return e.finish(call, errorResult(call,
			NewValidationFailed("tool name is empty", "empty_tool_name")))
	}
	t, ok := e.registry.Get(name)
	if !ok {
		return e.finish(call, errorResult(call, NewNotFound(name)))
	}
	if !e.breakerAllows() {
		return e.finish(call, errorResult(call, &Error{
			Code:      CodeExecutionFailed,
			Message:   "circuit open: tool execution suspended after repeated failures",
			Retryable: true,
			Details:   map[string]any{"reason": "circuit_open"},
		}))
	}

	out, err := t.Execute(ctx, call.Arguments)

	// A cancellation during execution overrides a non-error outcome; a
	// tool's own cooperative cancellation result takes precedence.
	if err == nil && ctx.Err() != nil {
		err = NewAborted()
	}
	if err != nil {
		r := errorResult(call, Normalize(err))
		r.Value = out // partial payload survives an aborted run
		return e.finish(call, r)
	}
	return e.finish(call, Result{CallID: call.ID, Name: call.Name, Value: out})
}

// ExecuteAll fans calls out concurrently. Every call settles, and results
// are index-aligned with the input regardless of completion order.
func (e *Executor) ExecuteAll(ctx context.Context, calls []Call) []Result {
	results := make([]Result, len(calls))
	var wg sync.WaitGroup
	for i, call := range calls {
		wg.Add(1)
		go func(i int, call Call) {
			defer wg.Done()
			results[i] = e.Execute(ctx, call)
		}(i, call)
	}
	wg.Wait()
	return results
}

// ExecuteSequential runs calls strictly in order, checking the context
// before each one and stopping with the results so far the moment it
// fires.
func (e *Executor) ExecuteSequential(ctx context.Context, calls []Call) []Result {
	results := make([]Result, 0, len(calls))
	for _, call := range calls {
		if ctx.Err() != nil {
			return results
		}
		results = append(results, e.Execute(ctx, call))
	}
	return results
}

// ExecuteWithTimeout races one call against a timer. A non-positive
// timeout fails immediately.
func (e *Executor) ExecuteWithTimeout(ctx context.Context, call Call, timeout time.Duration) Result {
	if timeout <= 0 {
		return errorResult(call, NewTimeout(0))
	}
	tctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan Result, 1)
	go func() {
		done <- e.Execute(tctx, call)
	}()
	select {
	case res := <-done:
		return res
	case <-tctx.Done():
		if errors.Is(tctx.Err(), context.DeadlineExceeded) {
			return errorResult(call, NewTimeout(timeout.Milliseconds()))
		}
		return errorResult(call, NewAborted())
	}
}

// ExecuteWithRetry re-runs a call while its failure is classified as
// retryable, with exponential backoff between attempts.
func (e *Executor) ExecuteWithRetry(ctx context.Context, call Call, maxTries uint) Result {
	operation := func() (Result, error) {
		res := e.Execute(ctx, call)
		if res.ErrorDetail != nil && res.ErrorDetail.Retryable {
			return res, res.ErrorDetail
		}
		return res, nil
	}
	res, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxTries(maxTries),
	)
	if err != nil {
		return errorResult(call, Normalize(err))
	}
	return res
}

func (e *Executor) finish(call Call, res Result) Result {
	e.recordBreaker(res)
	if e.audit != nil {
		e.audit.CallFinished(res)
	}
	return res
}

func (e *Executor) breakerAllows() bool {
	if e.breaker == nil {
		return true
	}
	e.breakerMu.Lock()
	defer e.breakerMu.Unlock()
	return e.breaker.Allow(time.Now())
}

func (e *Executor) recordBreaker(res Result) {
	if e.breaker == nil {
		return
	}
	e.breakerMu.Lock()
	defer e.breakerMu.Unlock()
	if res.OK() {
		e.breaker.RecordSuccess()
		return
	}
	if res.ErrorDetail == nil {
		return
	}
	// Deterministic rejections never trip the breaker.
	switch res.ErrorDetail.Code {
	case CodeTimeout, CodeExecutionFailed:
		e.breaker.RecordFailure(string(res.ErrorDetail.Code), time.Now())
	}
}

func errorResult(call Call, e *Error) Result {
	return Result{
		CallID:      call.ID,
		Name:        call.Name,
		ErrorText:   e.Message,
		ErrorDetail: e,
	}
}
