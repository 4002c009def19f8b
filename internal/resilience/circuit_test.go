package resilience

import (
	"context"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testBreaker(threshold int) *CircuitBreaker {
	return NewCircuitBreaker(CircuitBreakerConfig{
		FailureThreshold: threshold,
		ResetTimeout:     time.Minute,
	})
}

func failCall(ctx context.Context) (int, error) { return 0, eris.New("provider down") }

func okCall(ctx context.Context) (int, error) { return 1, nil }

func TestCircuitBreaker_OpensAfterThreshold(t *testing.T) {
	cb := testBreaker(3)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := Execute(ctx, cb, failCall)
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrCircuitOpen)
	}
	assert.Equal(t, CircuitOpen, cb.State())

	_, err := Execute(ctx, cb, okCall)
	assert.ErrorIs(t, err, ErrCircuitOpen)
}

func TestCircuitBreaker_SuccessResetsFailureRun(t *testing.T) {
	cb := testBreaker(3)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, _ = Execute(ctx, cb, failCall) //nolint:errcheck
		_, err := Execute(ctx, cb, okCall)
		require.NoError(t, err)
	}
	assert.Equal(t, CircuitClosed, cb.State())
}

func TestCircuitBreaker_HalfOpenProbeCloses(t *testing.T) {
	cb := testBreaker(1)
	ctx := context.Background()

	_, _ = Execute(ctx, cb, failCall) //nolint:errcheck
	assert.Equal(t, CircuitOpen, cb.State())

	// Reset timeout elapses; the next call is a probe.
	cb.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
	assert.Equal(t, CircuitHalfOpen, cb.State())

	val, err := Execute(ctx, cb, okCall)
	require.NoError(t, err)
	assert.Equal(t, 1, val)
	assert.Equal(t, CircuitClosed, cb.State())
}

func TestCircuitBreaker_FailedProbeReopens(t *testing.T) {
	cb := testBreaker(1)
	ctx := context.Background()

	_, _ = Execute(ctx, cb, failCall) //nolint:errcheck
	cb.now = func() time.Time { return time.Now().Add(2 * time.Minute) }

	_, err := Execute(ctx, cb, failCall)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrCircuitOpen)

	// Reopened, and the fresh failure timestamp blocks calls again.
	_, err = Execute(ctx, cb, okCall)
	assert.ErrorIs(t, err, ErrCircuitOpen)
}

func TestCircuitBreaker_ResetClosesCircuit(t *testing.T) {
	cb := testBreaker(1)
	ctx := context.Background()

	_, _ = Execute(ctx, cb, failCall) //nolint:errcheck
	assert.Equal(t, CircuitOpen, cb.State())

	cb.Reset()
	assert.Equal(t, CircuitClosed, cb.State())

	_, err := Execute(ctx, cb, okCall)
	assert.NoError(t, err)
}

func TestCircuitBreaker_StateChangeHook(t *testing.T) {
	var transitions []string
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		FailureThreshold: 1,
		ResetTimeout:     time.Minute,
		OnStateChange: func(from, to CircuitState) {
			transitions = append(transitions, from.String()+"->"+to.String())
		},
	})

	_, _ = Execute(context.Background(), cb, failCall) //nolint:errcheck
	cb.Reset()
	assert.Equal(t, []string{"closed->open", "open->closed"}, transitions)
}

func TestCircuitStateString(t *testing.T) {
	assert.Equal(t, "closed", CircuitClosed.String())
	assert.Equal(t, "open", CircuitOpen.String())
	assert.Equal(t, "half-open", CircuitHalfOpen.String())
	assert.Equal(t, "unknown", CircuitState(99).String())
}

func TestFromCircuitConfig(t *testing.T) {
	cfg := FromCircuitConfig(9, 120)
	assert.Equal(t, 9, cfg.FailureThreshold)
	assert.Equal(t, 2*time.Minute, cfg.ResetTimeout)

	cfg = FromCircuitConfig(0, 0)
	assert.Equal(t, 5, cfg.FailureThreshold)
	assert.Equal(t, 30*time.Second, cfg.ResetTimeout)
}
