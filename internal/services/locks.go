package services

import "sync"

// keyedMutex serializes work per key. The response cycle uses one lock per
// thread id so concurrent triggers on the same thread cannot interleave
// their delete-then-insert sequences; triggers on different threads run in
// parallel. Entries are never reclaimed; the population is bounded by the
// number of live threads.
type keyedMutex struct {
	mu sync.Mutex
	m  map[string]*sync.Mutex
}

// Lock acquires the mutex for key and returns the unlock func.
func (k *keyedMutex) Lock(key string) func() {
	k.mu.Lock()
	if k.m == nil {
		k.m = make(map[string]*sync.Mutex)
	}
	l, ok := k.m[key]
	if !ok {
		l = &sync.Mutex{}
		k.m[key] = l
	}
	k.mu.Unlock()

	l.Lock()
	return l.Unlock
}
