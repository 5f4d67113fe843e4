package cabi

import (
	"fmt"
	"sync"
)

// Handle is the opaque number stored in the inner field of the C structs.
// Zero is never issued.
type Handle uintptr

// ContractViolation is the panic value raised when a caller breaks the
// boundary contract: a null or freed handle, an empty key, invalid UTF-8 or a
// shape mismatch. Crossing the cgo boundary turns it into a process abort.
type ContractViolation struct {
	Op     string
	Reason string
}

func (c ContractViolation) Error() string {
	return "minijinja: contract violation in " + c.Op + ": " + c.Reason
}

// Violate panics with a ContractViolation for op.
func Violate(op, format string, args ...any) {
	panic(ContractViolation{Op: op, Reason: fmt.Sprintf(format, args...)})
}

// Table maps handles to Go objects so that C memory never holds Go pointers.
// The mutex is only held for the map access itself.
type Table[T any] struct {
	mu    sync.Mutex
	next  Handle
	items map[Handle]T
}

// NewTable returns an empty handle table.
func NewTable[T any]() *Table[T] {
	return &Table[T]{items: make(map[Handle]T)}
}

// Put stores item and returns its new handle.
func (t *Table[T]) Put(item T) Handle {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.next++
	t.items[t.next] = item
	return t.next
}

// Get resolves h. A zero or released handle is a contract violation.
func (t *Table[T]) Get(op string, h Handle) T {
	t.mu.Lock()
	item, ok := t.items[h]
	t.mu.Unlock()
	if !ok {
		if h == 0 {
			Violate(op, "null handle")
		}
		Violate(op, "handle %d is not live", h)
	}
	return item
}

// With resolves h and calls fn while the table is locked, so that h cannot
// be taken concurrently. fn must not touch the table.
func (t *Table[T]) With(op string, h Handle, fn func(T)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	item, ok := t.items[h]
	if !ok {
		if h == 0 {
			Violate(op, "null handle")
		}
		Violate(op, "handle %d is not live", h)
	}
	fn(item)
}

// Take removes h and returns what it referred to. Taking the zero handle
// reports false so that freeing null stays a no-op; taking a released
// handle is a double free.
func (t *Table[T]) Take(op string, h Handle) (T, bool) {
	var zero T
	if h == 0 {
		return zero, false
	}
	t.mu.Lock()
	item, ok := t.items[h]
	delete(t.items, h)
	t.mu.Unlock()
	if !ok {
		Violate(op, "handle %d released twice", h)
	}
	return item, true
}

// Len reports the number of live handles.
func (t *Table[T]) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.items)
}
