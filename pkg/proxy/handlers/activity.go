package handlers

import "sync/atomic"

// Activity counts in-flight gateway requests and streaming sessions. A
// worker drains until the count reaches zero.
type Activity struct {
	n atomic.Int64
}

// Begin marks the start of a unit of work.
func (a *Activity) Begin() { a.n.Add(1) }

// End marks the end of a unit of work started with Begin.
func (a *Activity) End() { a.n.Add(-1) }

// Count returns the number of in-flight units.
func (a *Activity) Count() int64 { return a.n.Load() }
