package retry

import (
	"context"
	"errors"
	"time"
)

const (
	// DefaultMaxAttempts bounds the number of calls made for one operation.
	DefaultMaxAttempts = 4
	// DefaultBaseDelay is the pause before the first retry.
	DefaultBaseDelay = time.Second
	// DefaultMultiplier grows the pause between consecutive retries.
	DefaultMultiplier = 2.0
)

// Sleeper pauses between attempts and returns early when the context ends.
type Sleeper interface {
	Sleep(executionContext context.Context, duration time.Duration) error
}

// Classifier reports whether a failed attempt may be repeated.
type Classifier func(attemptError error) bool

// Operation is a single attempt of a retried call.
type Operation func(executionContext context.Context) error

// Policy retries an operation with exponential backoff.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	Multiplier  float64
	Classifier  Classifier
	Sleeper     Sleeper
}

// ContextSleeper waits on a timer or the context, whichever ends first.
type ContextSleeper struct{}

// Sleep implements Sleeper.
func (ContextSleeper) Sleep(executionContext context.Context, duration time.Duration) error {
	if duration <= 0 {
		return executionContext.Err()
	}
	timer := time.NewTimer(duration)
	defer timer.Stop()
	select {
	case <-executionContext.Done():
		return executionContext.Err()
	case <-timer.C:
		return nil
	}
}

// NewPolicy builds a policy with the provided classifier and default backoff parameters.
func NewPolicy(classifier Classifier) Policy {
	return Policy{
		MaxAttempts: DefaultMaxAttempts,
		BaseDelay:   DefaultBaseDelay,
		Multiplier:  DefaultMultiplier,
		Classifier:  classifier,
		Sleeper:     ContextSleeper{},
	}
}

// Do runs the operation until it succeeds, fails permanently, or exhausts the attempt budget.
// The error from the final attempt is returned unchanged.
func (policy Policy) Do(executionContext context.Context, operation Operation) error {
	maxAttempts := policy.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	sleeper := policy.Sleeper
	if sleeper == nil {
		sleeper = ContextSleeper{}
	}

	var lastError error
	for attemptIndex := 0; attemptIndex < maxAttempts; attemptIndex++ {
		lastError = operation(executionContext)
		if lastError == nil {
			return nil
		}
		if executionContext.Err() != nil || !policy.retryable(lastError) {
			return lastError
		}
		if attemptIndex == maxAttempts-1 {
			break
		}
		if sleepError := sleeper.Sleep(executionContext, policy.Delay(attemptIndex)); sleepError != nil {
			return errors.Join(lastError, sleepError)
		}
	}
	return lastError
}

// Delay returns the pause that follows the given zero-based attempt.
func (policy Policy) Delay(attemptIndex int) time.Duration {
	multiplier := policy.Multiplier
	if multiplier < 1 {
		multiplier = 1
	}
	delay := float64(policy.BaseDelay)
	for step := 0; step < attemptIndex; step++ {
		delay *= multiplier
	}
	return time.Duration(delay)
}

func (policy Policy) retryable(attemptError error) bool {
	if errors.Is(attemptError, context.Canceled) {
		return false
	}
	if policy.Classifier == nil {
		return true
	}
	return policy.Classifier(attemptError)
}
