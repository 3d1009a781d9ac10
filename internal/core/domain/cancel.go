package domain

import (
	"sync"
	"sync/atomic"
)

// CancelFlag is a set-once cooperative cancellation token. Setting it never
// interrupts work already in flight; it only prevents new work from starting.
type CancelFlag struct {
	once sync.Once
	set  atomic.Bool
	done chan struct{}
}

// NewCancelFlag returns an unset flag.
func NewCancelFlag() *CancelFlag {
	return &CancelFlag{done: make(chan struct{})}
}

// Set raises the flag. Subsequent calls are no-ops.
func (f *CancelFlag) Set() {
	f.once.Do(func() {
		f.set.Store(true)
		close(f.done)
	})
}

// IsSet reports whether the flag has been raised. A nil flag is never set.
func (f *CancelFlag) IsSet() bool {
	if f == nil {
		return false
	}
	return f.set.Load()
}

// Done returns a channel closed when the flag is raised.
func (f *CancelFlag) Done() <-chan struct{} {
	if f == nil {
		return nil
	}
	return f.done
}
