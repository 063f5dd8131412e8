// Package bus implements the Order Bus: a latency-ordered, one-directional
// message channel carrying order snapshots between a Local and an
// Exchange processor (spec §4.3).
//
// The teacher's RingBufferSemaphoreBatchSafe/TradeRingBufferBatchSafe
// (matching/disruptor_semaphore_batch_safe.go,
// matching/trade_ringbuffer_batch_safe.go) solve the same "producer hands
// items to a consumer" shape but for a concurrent multi-goroutine
// matching engine: semaphore-gated ring slots, batched consumer caches,
// runtime.LockOSThread pinning. None of that applies here — spec §5 makes
// the engine single-threaded and cooperative by design, so an Order Bus
// is read and written from the same goroutine that owns both ends. What
// survives from the teacher's design is the shape: a fixed append point
// and a cached frontmost timestamp, so reading it is O(1); DrainFrontmost
// rescans the remaining items once per drain to refresh it.
package bus

import "hftbacktest-go/domain"

// message pairs an order snapshot with the timestamp at which the
// receiving side may observe it.
type message struct {
	order     domain.Order
	receiveTS int64
}

// Bus is an ordered sequence of pending messages. Append calls must
// supply non-decreasing receiveTS values (the latency models guarantee
// this); FrontmostTimestamp is the minimum pending receiveTS, cached and
// recomputed by a rescan of the remaining items after every drain.
type Bus struct {
	items     []message
	frontmost int64 // 0 means "nothing pending"
}

// New constructs an empty bus.
func New() *Bus {
	return &Bus{}
}

// FrontmostTimestamp returns the receive_ts of the earliest pending
// message, or 0 if the bus is empty.
func (b *Bus) FrontmostTimestamp() int64 {
	return b.frontmost
}

// Len returns the number of pending messages.
func (b *Bus) Len() int {
	return len(b.items)
}

// Append inserts an order snapshot to arrive at receiveTS. receiveTS must
// be >= the timestamp of the last appended message (bus monotonicity,
// spec testable property 5); violating that is a caller bug, not a
// recoverable runtime condition in a single-threaded replay, so Append
// returns an error rather than silently reordering.
func (b *Bus) Append(order domain.Order, receiveTS int64) error {
	if len(b.items) > 0 && receiveTS < b.items[len(b.items)-1].receiveTS {
		return domain.ErrOutOfOrderAppend
	}
	b.items = append(b.items, message{order: order, receiveTS: receiveTS})
	if b.frontmost == 0 || receiveTS < b.frontmost {
		b.frontmost = receiveTS
	}
	return nil
}

// Peek returns the i-th pending message without removing it.
func (b *Bus) Peek(i int) (domain.Order, int64, error) {
	if i < 0 || i >= len(b.items) {
		return domain.Order{}, 0, domain.ErrEmptyPeek
	}
	m := b.items[i]
	return m.order, m.receiveTS, nil
}

// Delete removes the i-th pending message. The caller is responsible for
// recomputing FrontmostTimestamp afterwards (RecomputeFrontmost) once it
// has finished deleting every item due at the current frontmost —
// deleting one at a time and recomputing after each would be quadratic
// for no benefit, since the consumer always drains a whole batch sharing
// the same receive_ts before it needs the next frontmost.
func (b *Bus) Delete(i int) {
	if i < 0 || i >= len(b.items) {
		return
	}
	b.items = append(b.items[:i], b.items[i+1:]...)
}

// RecomputeFrontmost scans the remaining items for the new minimum
// receive_ts. Call after a batch of Delete calls.
func (b *Bus) RecomputeFrontmost() {
	next := int64(0)
	for _, m := range b.items {
		if next == 0 || m.receiveTS < next {
			next = m.receiveTS
		}
	}
	b.frontmost = next
}

// DrainFrontmost removes and returns every message whose receiveTS equals
// the current frontmost, insertion order preserved (spec testable
// property 5 / ordering guarantee 5: equal-receive_ts messages are
// processed in append order).
func (b *Bus) DrainFrontmost() []domain.Order {
	if len(b.items) == 0 {
		return nil
	}
	target := b.frontmost
	var drained []domain.Order
	remaining := b.items[:0:0]
	for _, m := range b.items {
		if m.receiveTS == target {
			drained = append(drained, m.order)
		} else {
			remaining = append(remaining, m)
		}
	}
	b.items = remaining
	b.RecomputeFrontmost()
	return drained
}

// Reset empties the bus, used when a processor is reset for a fresh run.
func (b *Bus) Reset() {
	b.items = nil
	b.frontmost = 0
}
