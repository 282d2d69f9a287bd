package core

import "context"

// Mirror forwards room events between hub instances. Events published by
// this process must not come back through Subscribe.
type Mirror interface {
	Publish(ctx context.Context, ev *Event) error
	Subscribe(ctx context.Context) (<-chan *Event, error)
}
