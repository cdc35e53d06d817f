package retry_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/temirov/repogov/internal/retry"
)

var (
	errTransientFailure = errors.New("transient failure")
	errPermanentFailure = errors.New("permanent failure")
)

type recordingSleeper struct {
	durations []time.Duration
}

func (sleeper *recordingSleeper) Sleep(executionContext context.Context, duration time.Duration) error {
	sleeper.durations = append(sleeper.durations, duration)
	return executionContext.Err()
}

func classifyTransient(attemptError error) bool {
	return errors.Is(attemptError, errTransientFailure)
}

func TestPolicyDo(testInstance *testing.T) {
	testCases := []struct {
		name              string
		failures          []error
		expectedAttempts  int
		expectedDurations []time.Duration
		expectedError     error
	}{
		{
			name:             "first_attempt_succeeds",
			failures:         nil,
			expectedAttempts: 1,
		},
		{
			name:              "recovers_after_transient_failures",
			failures:          []error{errTransientFailure, errTransientFailure},
			expectedAttempts:  3,
			expectedDurations: []time.Duration{time.Second, 2 * time.Second},
		},
		{
			name:              "exhausts_attempt_budget",
			failures:          []error{errTransientFailure, errTransientFailure, errTransientFailure, errTransientFailure, errTransientFailure},
			expectedAttempts:  4,
			expectedDurations: []time.Duration{time.Second, 2 * time.Second, 4 * time.Second},
			expectedError:     errTransientFailure,
		},
		{
			name:             "permanent_failure_fails_fast",
			failures:         []error{errPermanentFailure},
			expectedAttempts: 1,
			expectedError:    errPermanentFailure,
		},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			sleeper := &recordingSleeper{}
			policy := retry.NewPolicy(classifyTransient)
			policy.Sleeper = sleeper

			attempts := 0
			operationError := policy.Do(context.Background(), func(context.Context) error {
				attempts++
				if attempts <= len(testCase.failures) {
					return testCase.failures[attempts-1]
				}
				return nil
			})

			require.Equal(testInstance, testCase.expectedAttempts, attempts)
			require.Equal(testInstance, testCase.expectedDurations, sleeper.durations)
			if testCase.expectedError == nil {
				require.NoError(testInstance, operationError)
			} else {
				require.ErrorIs(testInstance, operationError, testCase.expectedError)
			}
		})
	}
}

func TestPolicyStopsWhenContextCanceled(testInstance *testing.T) {
	executionContext, cancel := context.WithCancel(context.Background())
	sleeper := &recordingSleeper{}
	policy := retry.NewPolicy(classifyTransient)
	policy.Sleeper = sleeper

	attempts := 0
	operationError := policy.Do(executionContext, func(context.Context) error {
		attempts++
		cancel()
		return errTransientFailure
	})

	require.Equal(testInstance, 1, attempts)
	require.Empty(testInstance, sleeper.durations)
	require.ErrorIs(testInstance, operationError, errTransientFailure)
}

func TestPolicyDelay(testInstance *testing.T) {
	policy := retry.Policy{BaseDelay: 500 * time.Millisecond, Multiplier: 3}
	require.Equal(testInstance, 500*time.Millisecond, policy.Delay(0))
	require.Equal(testInstance, 1500*time.Millisecond, policy.Delay(1))
	require.Equal(testInstance, 4500*time.Millisecond, policy.Delay(2))
}
