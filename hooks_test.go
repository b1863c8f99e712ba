package logship

import (
	"context"
	"testing"

	"github.com/hyp3rd/ewrap"
	"github.com/stretchr/testify/require"
)

func TestRegisterHookFiresForKind(t *testing.T) {
	ClearHooks()
	t.Cleanup(ClearHooks)

	var fired []EventKind

	RegisterHook(EventDropped, func(_ context.Context, event *Event) {
		fired = append(fired, event.Kind)
	})

	FireHooks(context.Background(), &Event{Kind: EventDropped, Records: 3})
	FireHooks(context.Background(), &Event{Kind: EventDelivered, Records: 1})

	require.Equal(t, []EventKind{EventDropped}, fired, "hooks only fire for their kind")
}

func TestRegisterHookInvalidKindFiresForAll(t *testing.T) {
	ClearHooks()
	t.Cleanup(ClearHooks)

	count := 0

	RegisterHook(EventKind(255), func(_ context.Context, _ *Event) {
		count++
	})

	FireHooks(context.Background(), &Event{Kind: EventDelivered})
	FireHooks(context.Background(), &Event{Kind: EventDropped})
	FireHooks(context.Background(), &Event{Kind: EventBreakerOpened})

	require.Equal(t, 3, count)
}

func TestHooksRunInRegistrationOrder(t *testing.T) {
	ClearHooks()
	t.Cleanup(ClearHooks)

	var order []int

	RegisterHook(EventRequeued, func(_ context.Context, _ *Event) { order = append(order, 1) })
	RegisterHook(EventRequeued, func(_ context.Context, _ *Event) { order = append(order, 2) })

	FireHooks(context.Background(), &Event{Kind: EventRequeued})
	require.Equal(t, []int{1, 2}, order)
}

func TestHookReceivesEventError(t *testing.T) {
	ClearHooks()
	t.Cleanup(ClearHooks)

	cause := ewrap.New("delivery failed")

	var got error

	RegisterHook(EventDropped, func(_ context.Context, event *Event) {
		got = event.Err
	})

	FireHooks(context.Background(), &Event{Kind: EventDropped, Err: cause})
	require.ErrorIs(t, got, cause)
}

func TestFireHooksIgnoresNilEventAndHook(t *testing.T) {
	ClearHooks()
	t.Cleanup(ClearHooks)

	RegisterHook(EventDelivered, nil)

	require.NotPanics(t, func() {
		FireHooks(context.Background(), nil)
		FireHooks(context.Background(), &Event{Kind: EventDelivered})
	})
}

func TestEventKindIsValid(t *testing.T) {
	t.Parallel()

	require.True(t, EventDelivered.IsValid())
	require.True(t, EventSuppression.IsValid())
	require.False(t, eventKindCount.IsValid())
}
