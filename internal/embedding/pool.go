package embedding

import "context"

// slotPool hands out a fixed set of reusable resources. acquire blocks until one is free or
// ctx is done; nothing is held while a caller uses its slot.
type slotPool[T any] struct {
	slots chan T
}

func newSlotPool[T any](items []T) *slotPool[T] {
	p := &slotPool[T]{slots: make(chan T, len(items))}
	for _, it := range items {
		p.slots <- it
	}
	return p
}

func (p *slotPool[T]) acquire(ctx context.Context) (T, error) {
	select {
	case s := <-p.slots:
		return s, nil
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

func (p *slotPool[T]) release(s T) {
	p.slots <- s
}

// drain removes and returns every slot currently free.
func (p *slotPool[T]) drain() []T {
	var out []T
	for {
		select {
		case s := <-p.slots:
			out = append(out, s)
		default:
			return out
		}
	}
}
