package entry

import "sync"

// Subscription is the handle returned when registering an observer.
type Subscription struct {
	once    sync.Once
	release func()
}

// Release unsubscribes the observer. It is safe to call more than once.
func (s *Subscription) Release() {
	s.once.Do(s.release)
}

// Observers is a set of callbacks notified of values of type T. The zero
// value is ready to use.
type Observers[T any] struct {
	mu   sync.Mutex
	next int
	fns  map[int]func(T)
}

// Observe registers f.
func (o *Observers[T]) Observe(f func(T)) *Subscription {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.fns == nil {
		o.fns = make(map[int]func(T))
	}
	id := o.next
	o.next++
	o.fns[id] = f

	return &Subscription{release: func() {
		o.mu.Lock()
		defer o.mu.Unlock()
		delete(o.fns, id)
	}}
}

// Notify calls every registered observer with v. Observers are called
// without holding any lock and may release their subscription.
func (o *Observers[T]) Notify(v T) {
	o.mu.Lock()
	fns := make([]func(T), 0, len(o.fns))
	for _, f := range o.fns {
		fns = append(fns, f)
	}
	o.mu.Unlock()

	for _, f := range fns {
		f(v)
	}
}
