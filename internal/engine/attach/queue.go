// Package attach defers linking new renderer objects into the live graph and
// spreads the work over frames.
package attach

import (
	"time"

	"github.com/Faultbox/scenemirror/internal/engine/scenegraph"
)

// DefaultBudget is the per-frame attach budget.
const DefaultBudget = 2 * time.Millisecond

// Clock is the time source used to measure attach cost.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// Queue attaches objects in push order, parents before children. An object
// whose parent is not yet live waits until the parent attaches and then
// jumps ahead of the regular queue.
type Queue struct {
	graph  *scenegraph.Graph
	clock  Clock
	budget time.Duration

	ready   []scenegraph.Ref
	pending []scenegraph.Ref
	waiting map[scenegraph.Ref][]scenegraph.Ref
	queued  map[scenegraph.Ref]struct{}

	// OnAttach runs after each object is linked. Its cost counts against
	// the budget.
	OnAttach func(o *scenegraph.Object)
}

// New creates a queue. A zero budget selects DefaultBudget and a nil clock
// the wall clock.
func New(graph *scenegraph.Graph, budget time.Duration, clock Clock) *Queue {
	if budget <= 0 {
		budget = DefaultBudget
	}
	if clock == nil {
		clock = SystemClock{}
	}
	return &Queue{
		graph:   graph,
		clock:   clock,
		budget:  budget,
		waiting: make(map[scenegraph.Ref][]scenegraph.Ref),
		queued:  make(map[scenegraph.Ref]struct{}),
	}
}

// Budget returns the per-frame budget.
func (q *Queue) Budget() time.Duration {
	return q.budget
}

// SetBudget changes the per-frame budget. Non-positive values restore the default.
func (q *Queue) SetBudget(d time.Duration) {
	if d <= 0 {
		d = DefaultBudget
	}
	q.budget = d
}

// Push enqueues ref for attachment. Pushing a queued ref is a no-op.
func (q *Queue) Push(ref scenegraph.Ref) {
	if _, ok := q.queued[ref]; ok {
		return
	}
	q.queued[ref] = struct{}{}
	q.pending = append(q.pending, ref)
}

// Queued reports whether ref is pending or waiting.
func (q *Queue) Queued(ref scenegraph.Ref) bool {
	_, ok := q.queued[ref]
	return ok
}

// Remove drops ref wherever it sits. It reports whether ref was queued.
func (q *Queue) Remove(ref scenegraph.Ref) bool {
	if _, ok := q.queued[ref]; !ok {
		return false
	}
	delete(q.queued, ref)
	q.ready = removeRef(q.ready, ref)
	q.pending = removeRef(q.pending, ref)
	for parent, list := range q.waiting {
		list = removeRef(list, ref)
		if len(list) == 0 {
			delete(q.waiting, parent)
			continue
		}
		q.waiting[parent] = list
	}
	return true
}

// Requeue moves ref back to the end of the queue, for example after its
// parent changed while it was waiting.
func (q *Queue) Requeue(ref scenegraph.Ref) {
	q.Remove(ref)
	q.Push(ref)
}

// Pending returns the number of objects in the queue proper.
func (q *Queue) Pending() int {
	return len(q.ready) + len(q.pending)
}

// Waiting returns the number of objects held until their parent attaches.
func (q *Queue) Waiting() int {
	n := 0
	for _, list := range q.waiting {
		n += len(list)
	}
	return n
}

// Drain attaches queued objects until the queue empties or the budget is
// spent, and returns how many were attached. The budget is checked after
// each attach, so at least one object attaches per call when one is ready.
func (q *Queue) Drain() int {
	start := q.clock.Now()
	attached := 0
	for {
		ref, ok := q.next()
		if !ok {
			return attached
		}
		obj, ok := q.graph.Get(ref)
		if !ok {
			delete(q.queued, ref)
			continue
		}
		if obj.Attached {
			delete(q.queued, ref)
			q.release(ref)
			continue
		}
		if !q.graph.CanAttach(ref) {
			q.waiting[obj.Parent] = append(q.waiting[obj.Parent], ref)
			continue
		}

		q.graph.Attach(ref)
		delete(q.queued, ref)
		attached++
		if q.OnAttach != nil {
			q.OnAttach(obj)
		}
		q.release(ref)

		if q.clock.Now().Sub(start) >= q.budget {
			return attached
		}
	}
}

func (q *Queue) next() (scenegraph.Ref, bool) {
	if len(q.ready) > 0 {
		ref := q.ready[0]
		q.ready = q.ready[1:]
		return ref, true
	}
	if len(q.pending) > 0 {
		ref := q.pending[0]
		q.pending = q.pending[1:]
		return ref, true
	}
	return scenegraph.NoRef, false
}

// release moves every object waiting on parent to the front of the queue.
func (q *Queue) release(parent scenegraph.Ref) {
	children, ok := q.waiting[parent]
	if !ok {
		return
	}
	delete(q.waiting, parent)
	q.ready = append(q.ready, children...)
}

func removeRef(list []scenegraph.Ref, ref scenegraph.Ref) []scenegraph.Ref {
	for i, r := range list {
		if r == ref {
			return append(list[:i], list[i+1:]...)
		}
	}
	return list
}
