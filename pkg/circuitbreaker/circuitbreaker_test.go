package circuitbreaker

import (
	"errors"
	"testing"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/require"
)

func TestReadyToTrip(t *testing.T) {
	tests := []struct {
		name   string
		counts gobreaker.Counts
		trip   bool
	}{
		{"no requests", gobreaker.Counts{}, false},
		{"below cap", gobreaker.Counts{Requests: 5, TotalFailures: 5}, false},
		{"low ratio", gobreaker.Counts{Requests: 20, TotalFailures: 5}, false},
		{"trips", gobreaker.Counts{Requests: 20, TotalFailures: 15}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.trip, readyToTrip(tt.counts))
		})
	}
}

func TestCircuitBreakerOpens(t *testing.T) {
	cb := NewCircuitBreaker("test")
	require.Equal(t, "test", cb.Name())

	failure := errors.New("failure")
	for i := 0; i <= MaxNumOfFailingRequests; i++ {
		_, err := cb.Execute(func() (interface{}, error) { return nil, failure })
		require.ErrorIs(t, err, failure)
	}

	_, err := cb.Execute(func() (interface{}, error) { return nil, nil })
	require.ErrorIs(t, err, gobreaker.ErrOpenState)
}
