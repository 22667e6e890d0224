package log

import "context"

// EventKey is the context key under which the current wide event is stored.
const EventKey contextKey = "wideEvent"

// ContextWithEvent returns a copy of ctx carrying e.
func ContextWithEvent(ctx context.Context, e *Event) context.Context {
	return context.WithValue(ctx, EventKey, e)
}

// EventFromContext returns a wide event from context when present.
func EventFromContext(ctx context.Context) *Event {
	event, ok := ctx.Value(EventKey).(*Event)
	if !ok {
		return nil
	}

	return event
}
