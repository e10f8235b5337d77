package ports

import "context"

// CounterStore issues sequence numbers for one scope key at a time.
//
// IncrementAndGet creates the counter at 1 when the key is new, otherwise
// increments and returns the new value, all as a single indivisible step at
// the storage layer: two concurrent callers with the same key never observe
// the same integer. There is deliberately no peek operation; a counter is
// never read without also incrementing.
type CounterStore interface {
	IncrementAndGet(ctx context.Context, key string) (int64, error)
}
