package externaldata

import (
	"errors"
	"testing"
	"time"

	"github.com/sony/gobreaker"
)

func TestNewBreaker_TripsAfterConsecutiveFailures(t *testing.T) {
	b := NewBreaker("test-provider-trip", BreakerSpec{MaxFailures: 3, OpenTimeout: time.Minute, HalfOpenReqs: 1})

	failing := func() (interface{}, error) { return nil, errors.New("boom") }

	for i := 0; i < 3; i++ {
		_, _ = b.Execute(failing)
	}

	if b.State() != gobreaker.StateOpen {
		t.Errorf("State() = %v, want StateOpen after 3 consecutive failures", b.State())
	}
}

func TestNewBreaker_StaysClosedOnIntermittentSuccess(t *testing.T) {
	b := NewBreaker("test-provider-stable", BreakerSpec{MaxFailures: 3, OpenTimeout: time.Minute, HalfOpenReqs: 1})

	_, _ = b.Execute(func() (interface{}, error) { return nil, errors.New("boom") })
	_, _ = b.Execute(func() (interface{}, error) { return "ok", nil })
	_, _ = b.Execute(func() (interface{}, error) { return nil, errors.New("boom") })

	if b.State() != gobreaker.StateClosed {
		t.Errorf("State() = %v, want StateClosed (a success should reset the consecutive-failure streak)", b.State())
	}
}

func TestStateValue(t *testing.T) {
	tests := []struct {
		state gobreaker.State
		want  float64
	}{
		{gobreaker.StateClosed, 0},
		{gobreaker.StateHalfOpen, 1},
		{gobreaker.StateOpen, 2},
	}
	for _, tt := range tests {
		if got := stateValue(tt.state); got != tt.want {
			t.Errorf("stateValue(%v) = %v, want %v", tt.state, got, tt.want)
		}
	}
}
