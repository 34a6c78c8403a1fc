package events

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfirmRoundTrip(t *testing.T) {
	bus := NewBus()

	go func() {
		req := <-bus.Requests()
		assert.Equal(t, "Update available", req.Title)
		req.Respond(true)
	}()

	ok, err := bus.Confirm(context.Background(), "Update available", "Install 1.4.0?")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestConfirmContextCancelled(t *testing.T) {
	bus := NewBus()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	// nobody answers
	go func() { <-bus.Requests() }()

	_, err := bus.Confirm(ctx, "t", "m")
	require.Error(t, err)
}

func TestPublishNeverBlocks(t *testing.T) {
	bus := NewBus()

	// no consumer; the channel fills and further events are dropped
	for i := 0; i < 1000; i++ {
		bus.Publish(Status{Stage: "Downloading", Percent: i % 100})
	}
}
