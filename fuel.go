package minijinja

import (
	"math"
	"sync/atomic"
)

// fuelTracker counts down the fuel budget of one render. Every evaluated
// statement and loop iteration burns one unit.
type fuelTracker struct {
	remaining atomic.Int64
}

func newFuelTracker(fuel uint64) *fuelTracker {
	tracker := &fuelTracker{}
	tracker.remaining.Store(int64(min(fuel, math.MaxInt64)))
	return tracker
}

func (f *fuelTracker) consume(amount int64) error {
	if f.remaining.Add(-amount) < 0 {
		return NewError(ErrOutOfFuel, "")
	}
	return nil
}
