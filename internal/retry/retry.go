package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

const (
	defaultMaxRetries   = 15
	defaultInitialDelay = time.Second
	defaultMaxDelay     = 30 * time.Second
	defaultMaxElapsed   = 10 * time.Minute
	defaultMultiplier   = 2.0
)

// ErrRetryExhausted is matched by every *RetryExhaustedError.
var ErrRetryExhausted = errors.New("retry exhausted")

// RetryExhaustedError reports an operation that kept failing until the
// retry budget ran out. Err is the last failure observed.
type RetryExhaustedError struct {
	Op       string
	Attempts int
	Err      error
}

func (e *RetryExhaustedError) Error() string {
	return fmt.Sprintf("%s: retry exhausted after %d attempts: %v", e.Op, e.Attempts, e.Err)
}

func (e *RetryExhaustedError) Unwrap() error {
	return e.Err
}

func (e *RetryExhaustedError) Is(target error) bool {
	return target == ErrRetryExhausted
}

type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err as not worth retrying. The caller returns the
// wrapped error immediately.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err was marked with Permanent.
func IsPermanent(err error) bool {
	var perm *permanentError
	return errors.As(err, &perm)
}

// Observer receives retry lifecycle events.
type Observer interface {
	OnRetry(op string, attempt int, delay time.Duration, err error)
	OnExhausted(op string, attempts int, err error)
}

type nopObserver struct{}

func (nopObserver) OnRetry(string, int, time.Duration, error) {}
func (nopObserver) OnExhausted(string, int, error)            {}

// Option configures a Caller.
type Option func(*Caller)

func WithMaxRetries(n int) Option {
	return func(c *Caller) {
		if n < 0 {
			n = 0
		}
		c.maxRetries = n
	}
}

func WithInitialDelay(d time.Duration) Option {
	return func(c *Caller) {
		if d > 0 {
			c.initialDelay = d
		}
	}
}

// WithMaxDelay caps a single wait. Zero disables the cap.
func WithMaxDelay(d time.Duration) Option {
	return func(c *Caller) {
		if d >= 0 {
			c.maxDelay = d
		}
	}
}

// WithMaxElapsed caps the cumulative wait of one Run. Zero disables the cap.
func WithMaxElapsed(d time.Duration) Option {
	return func(c *Caller) {
		if d >= 0 {
			c.maxElapsed = d
		}
	}
}

func WithMultiplier(m float64) Option {
	return func(c *Caller) {
		if m >= 1 {
			c.multiplier = m
		}
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(c *Caller) {
		if logger != nil {
			c.logger = logger
		}
	}
}

func WithObserver(observer Observer) Option {
	return func(c *Caller) {
		if observer != nil {
			c.observer = observer
		}
	}
}

// Caller runs operations with bounded retries and exponential backoff.
// A Caller holds no per-call state and is safe for concurrent use.
type Caller struct {
	maxRetries   int
	initialDelay time.Duration
	maxDelay     time.Duration
	maxElapsed   time.Duration
	multiplier   float64
	logger       *zap.Logger
	observer     Observer

	sleep func(ctx context.Context, d time.Duration) error
}

func New(opts ...Option) *Caller {
	c := &Caller{
		maxRetries:   defaultMaxRetries,
		initialDelay: defaultInitialDelay,
		maxDelay:     defaultMaxDelay,
		maxElapsed:   defaultMaxElapsed,
		multiplier:   defaultMultiplier,
		logger:       zap.NewNop(),
		observer:     nopObserver{},
		sleep:        sleepContext,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// MaxRetries returns the number of retries after the first attempt.
func (c *Caller) MaxRetries() int {
	return c.maxRetries
}

// Run calls fn until it succeeds, returns a Permanent error, the context
// is done, or the retry budget is spent.
func (c *Caller) Run(ctx context.Context, op string, fn func(context.Context) error) error {
	delay := c.initialDelay
	var waited time.Duration

	for attempt := 1; ; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}

		var perm *permanentError
		if errors.As(err, &perm) {
			return perm.err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		if attempt > c.maxRetries || (c.maxElapsed > 0 && waited+delay > c.maxElapsed) {
			c.observer.OnExhausted(op, attempt, err)
			c.logger.Error("retry exhausted",
				zap.String("op", op),
				zap.Int("attempts", attempt),
				zap.Error(err),
			)
			return &RetryExhaustedError{Op: op, Attempts: attempt, Err: err}
		}

		c.observer.OnRetry(op, attempt, delay, err)
		c.logger.Warn("operation failed, retrying",
			zap.String("op", op),
			zap.Int("attempt", attempt),
			zap.Duration("delay", delay),
			zap.Error(err),
		)

		if err := c.sleep(ctx, delay); err != nil {
			return err
		}
		waited += delay
		delay = c.nextDelay(delay)
	}
}

// Do is Run for operations that produce a value.
func Do[T any](ctx context.Context, c *Caller, op string, fn func(context.Context) (T, error)) (T, error) {
	var out T
	err := c.Run(ctx, op, func(ctx context.Context) error {
		value, err := fn(ctx)
		if err != nil {
			return err
		}
		out = value
		return nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return out, nil
}

func (c *Caller) nextDelay(delay time.Duration) time.Duration {
	next := time.Duration(float64(delay) * c.multiplier)
	if next < delay {
		// overflow
		next = delay
	}
	if c.maxDelay > 0 && next > c.maxDelay {
		next = c.maxDelay
	}
	if next < delay {
		next = delay
	}
	return next
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	select {
	case <-ctx.Done():
		timer.Stop()
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
