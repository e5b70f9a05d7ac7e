package realtime

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubscriptionReceivesMatchingEvents(t *testing.T) {
	hub := NewHub()
	sub := hub.Subscribe(
		Topic{Table: TableNewsItems, Types: []EventType{EventInsert}},
		Topic{Table: TableUserReadItems},
	)
	defer sub.Close()

	hub.Publish(Event{Table: TableNewsItems, Type: EventDelete, Record: "ignored"})
	hub.Publish(Event{Table: TablePanes, Type: EventUpdate, Record: "ignored"})
	hub.Publish(Event{Table: TableNewsItems, Type: EventInsert, Record: "n1"})
	hub.Publish(Event{Table: TableUserReadItems, Type: EventDelete, Record: "r1"})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	evt, err := sub.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, "n1", evt.Record)

	evt, err = sub.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, "r1", evt.Record)
}

func TestNextBlocksUntilPublish(t *testing.T) {
	hub := NewHub()
	sub := hub.Subscribe(Topic{Table: TableNewsItems})
	defer sub.Close()

	go func() {
		time.Sleep(10 * time.Millisecond)
		hub.Publish(Event{Table: TableNewsItems, Type: EventInsert, Record: 1})
	}()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	evt, err := sub.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, evt.Record)
}

func TestCloseStopsDelivery(t *testing.T) {
	hub := NewHub()
	sub := hub.Subscribe(Topic{Table: TableNewsItems})
	hub.Publish(Event{Table: TableNewsItems, Type: EventInsert})

	sub.Close()
	sub.Close()
	assert.Equal(t, 0, hub.SubscriberCount())

	hub.Publish(Event{Table: TableNewsItems, Type: EventInsert})
	_, err := sub.Next(context.Background())
	assert.True(t, errors.Is(err, ErrClosed))
}

func TestCloseUnblocksReader(t *testing.T) {
	hub := NewHub()
	sub := hub.Subscribe(Topic{Table: TableNewsItems})

	errc := make(chan error, 1)
	go func() {
		_, err := sub.Next(context.Background())
		errc <- err
	}()

	time.Sleep(10 * time.Millisecond)
	sub.Close()

	select {
	case err := <-errc:
		assert.ErrorIs(t, err, ErrClosed)
	case <-time.After(time.Second):
		t.Fatal("Next did not return after Close")
	}
}

func TestNextHonoursContext(t *testing.T) {
	hub := NewHub()
	sub := hub.Subscribe(Topic{Table: TableNewsItems})
	defer sub.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := sub.Next(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
