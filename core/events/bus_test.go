package events

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

type testEvent struct {
	topic string
	n     int
}

func (e testEvent) Topic() string { return e.topic }

func TestBus_Publish(t *testing.T) {
	ctx := context.Background()
	bus := NewBus(nil)

	var got []string
	bus.Subscribe("a", func(ctx context.Context, e Event) error {
		got = append(got, "first")
		return nil
	})
	bus.Subscribe("a", func(ctx context.Context, e Event) error {
		got = append(got, "second")
		return errors.New("boom")
	})
	bus.Subscribe("a", func(ctx context.Context, e Event) error {
		got = append(got, "third")
		panic("oops")
	})
	unsubscribe := bus.Subscribe("a", func(ctx context.Context, e Event) error {
		got = append(got, "removed")
		return nil
	})
	bus.Subscribe("b", func(ctx context.Context, e Event) error {
		got = append(got, "other topic")
		return nil
	})
	unsubscribe()

	err := bus.Publish(ctx, testEvent{topic: "a"})
	assert.EqualError(t, err, "boom")
	assert.Equal(t, []string{"first", "second", "third"}, got)

	got = nil
	assert.NoError(t, bus.Publish(ctx, testEvent{topic: "c"}))
	assert.Empty(t, got)
}
