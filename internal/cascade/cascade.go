// Package cascade drives ordered lists of independent strategies and stops at
// the first one that succeeds.
package cascade

import (
	"context"
	"errors"
	"fmt"
)

// Strategy is one independent way of producing Out from In.
type Strategy[In, Out any] interface {
	Name() string
	Attempt(ctx context.Context, in In) (Out, error)
}

// Func adapts a plain function to Strategy.
type Func[In, Out any] struct {
	Label string
	Fn    func(ctx context.Context, in In) (Out, error)
}

func (f Func[In, Out]) Name() string { return f.Label }

func (f Func[In, Out]) Attempt(ctx context.Context, in In) (Out, error) { return f.Fn(ctx, in) }

// Failure records why a single strategy did not succeed.
type Failure struct {
	Strategy string
	Err      error
}

func (f Failure) Error() string { return f.Strategy + ": " + f.Err.Error() }

func (f Failure) Unwrap() error { return f.Err }

// Result is the outcome of running a chain.
// Index is -1 when no strategy succeeded.
type Result[Out any] struct {
	Value    Out
	Index    int
	Strategy string
	Failures []Failure
}

// OK reports whether some strategy succeeded.
func (r Result[Out]) OK() bool { return r.Index >= 0 }

// Err joins every recorded failure, or returns nil on success.
func (r Result[Out]) Err() error {
	if r.OK() {
		return nil
	}
	if len(r.Failures) == 0 {
		return errors.New("cascade: no strategies")
	}
	errs := make([]error, 0, len(r.Failures))
	for _, f := range r.Failures {
		errs = append(errs, f)
	}
	return errors.Join(errs...)
}

// Observer is notified after every attempt. It may be nil.
type Observer func(name string, err error)

// First tries each strategy in order and returns at the first success.
// Later strategies are never attempted once one succeeds. A panicking strategy
// counts as a failure. A canceled context stops the chain.
func First[In, Out any](ctx context.Context, in In, obs Observer, strategies ...Strategy[In, Out]) Result[Out] {
	res := Result[Out]{Index: -1}
	for i, s := range strategies {
		if err := ctx.Err(); err != nil {
			res.Failures = append(res.Failures, Failure{Strategy: s.Name(), Err: err})
			break
		}
		out, err := attempt(ctx, s, in)
		if obs != nil {
			obs(s.Name(), err)
		}
		if err != nil {
			res.Failures = append(res.Failures, Failure{Strategy: s.Name(), Err: err})
			continue
		}
		res.Value = out
		res.Index = i
		res.Strategy = s.Name()
		return res
	}
	return res
}

func attempt[In, Out any](ctx context.Context, s Strategy[In, Out], in In) (out Out, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return s.Attempt(ctx, in)
}
