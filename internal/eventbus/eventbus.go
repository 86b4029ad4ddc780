package eventbus

import (
	"context"
	"reflect"
	"sync"
	"sync/atomic"
)

// Handler processes events of type T.
type Handler[T any] func(context.Context, T)

type entry struct {
	id int64
	fn func(context.Context, any)
}

// Bus is an in-process dispatcher routing events to handlers by the
// event's dynamic type. Dispatch is synchronous and in subscription
// order.
type Bus struct {
	mu      sync.RWMutex
	nextID  int64
	entries map[reflect.Type][]entry
}

// New creates an empty Bus.
func New() *Bus { return &Bus{entries: map[reflect.Type][]entry{}} }

func (b *Bus) subscribe(t reflect.Type, fn func(context.Context, any)) (unsubscribe func()) {
	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.entries[t] = append(b.entries[t], entry{id: id, fn: fn})
	b.mu.Unlock()
	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		es := b.entries[t]
		for i, e := range es {
			if e.id == id {
				b.entries[t] = append(es[:i:i], es[i+1:]...)
				break
			}
		}
		if len(b.entries[t]) == 0 {
			delete(b.entries, t)
		}
	}
}

func (b *Bus) emit(ctx context.Context, e any) {
	b.mu.RLock()
	es := append([]entry(nil), b.entries[reflect.TypeOf(e)]...)
	b.mu.RUnlock()
	for _, en := range es {
		en.fn(ctx, e)
	}
}

var global atomic.Pointer[Bus]

// Use installs b as the process-wide bus. A nil bus drops all events.
func Use(b *Bus) { global.Store(b) }

// Subscribe registers h for events of type T on the global bus. The
// returned function removes the subscription. Subscribing while no bus
// is installed is a no-op.
func Subscribe[T any](h Handler[T]) (unsubscribe func()) {
	b := global.Load()
	if b == nil {
		return func() {}
	}
	t := reflect.TypeOf((*T)(nil)).Elem()
	return b.subscribe(t, func(ctx context.Context, e any) { h(ctx, e.(T)) })
}

// Publish dispatches e to the global bus subscribers of its type.
func Publish[T any](ctx context.Context, e T) {
	if b := global.Load(); b != nil {
		b.emit(ctx, e)
	}
}
