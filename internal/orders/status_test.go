package orders

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestForwardTransitions(t *testing.T) {
	assert.True(t, CanTransition(StatusPending, StatusConfirmed))
	assert.True(t, CanTransition(StatusConfirmed, StatusShipped))
	assert.True(t, CanTransition(StatusShipped, StatusDelivered))
}

func TestNoSkippingOrGoingBack(t *testing.T) {
	assert.False(t, CanTransition(StatusPending, StatusShipped))
	assert.False(t, CanTransition(StatusPending, StatusDelivered))
	assert.False(t, CanTransition(StatusConfirmed, StatusDelivered))
	assert.False(t, CanTransition(StatusConfirmed, StatusPending))
	assert.False(t, CanTransition(StatusShipped, StatusConfirmed))
}

func TestNoSelfTransition(t *testing.T) {
	for _, s := range []Status{StatusPending, StatusConfirmed, StatusShipped, StatusDelivered, StatusCancelled} {
		assert.False(t, CanTransition(s, s), "self transition for %s", s)
	}
}

func TestTerminalStatesHaveNoSuccessor(t *testing.T) {
	for _, s := range []Status{StatusPending, StatusConfirmed, StatusShipped, StatusDelivered, StatusCancelled} {
		assert.False(t, CanTransition(StatusDelivered, s))
		assert.False(t, CanTransition(StatusCancelled, s))
	}
	assert.True(t, Terminal(StatusDelivered))
	assert.True(t, Terminal(StatusCancelled))
	assert.False(t, Terminal(StatusShipped))
}

func TestCancellable(t *testing.T) {
	assert.True(t, Cancellable(StatusPending))
	assert.True(t, Cancellable(StatusConfirmed))
	assert.False(t, Cancellable(StatusShipped))
	assert.False(t, Cancellable(StatusDelivered))
	assert.False(t, Cancellable(StatusCancelled))
}
