package attach

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Faultbox/scenemirror/internal/engine/scenegraph"
	"github.com/Faultbox/scenemirror/internal/ids"
)

type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

// costly makes every attach advance the clock by cost.
func costly(q *Queue, clock *fakeClock, cost time.Duration, order *[]scenegraph.Ref) {
	q.OnAttach = func(o *scenegraph.Object) {
		clock.Advance(cost)
		if order != nil {
			*order = append(*order, o.Ref)
		}
	}
}

// tree builds a forest of depth levels with fanout children per node and
// returns every created ref in creation (parent-first) order.
func tree(t *testing.T, g *scenegraph.Graph, roots, fanout, depth int) []scenegraph.Ref {
	t.Helper()
	var all []scenegraph.Ref
	level := []scenegraph.Ref{}
	for i := 0; i < roots; i++ {
		o, err := g.Create(scenegraph.KindGroup, ids.ID(len(all)+1), scenegraph.RootRef)
		require.NoError(t, err)
		level = append(level, o.Ref)
		all = append(all, o.Ref)
	}
	for d := 1; d < depth; d++ {
		var next []scenegraph.Ref
		for _, p := range level {
			for i := 0; i < fanout; i++ {
				o, err := g.Create(scenegraph.KindGroup, ids.ID(len(all)+1), p)
				require.NoError(t, err)
				next = append(next, o.Ref)
				all = append(all, o.Ref)
			}
		}
		level = next
	}
	return all
}

func TestDefaults(t *testing.T) {
	q := New(scenegraph.New(), 0, nil)
	assert.Equal(t, DefaultBudget, q.Budget())
	q.SetBudget(5 * time.Millisecond)
	assert.Equal(t, 5*time.Millisecond, q.Budget())
	q.SetBudget(-1)
	assert.Equal(t, DefaultBudget, q.Budget())
	assert.Zero(t, q.Drain())
}

func TestChildWaitsForParent(t *testing.T) {
	g := scenegraph.New()
	parent, _ := g.Create(scenegraph.KindGroup, 1, scenegraph.RootRef)
	child, _ := g.Create(scenegraph.KindGroup, 2, parent.Ref)
	other, _ := g.Create(scenegraph.KindGroup, 3, scenegraph.RootRef)

	clock := &fakeClock{}
	q := New(g, time.Hour, clock)
	var order []scenegraph.Ref
	costly(q, clock, 0, &order)

	q.Push(child.Ref)
	q.Push(parent.Ref)
	q.Push(other.Ref)
	assert.Equal(t, 3, q.Pending())

	assert.Equal(t, 3, q.Drain())
	// The child jumps ahead of other as soon as its parent attaches.
	assert.Equal(t, []scenegraph.Ref{parent.Ref, child.Ref, other.Ref}, order)
	assert.True(t, child.Attached)
	assert.Zero(t, q.Pending())
	assert.Zero(t, q.Waiting())
}

func TestBudgetSpreadsBurstAcrossFrames(t *testing.T) {
	g := scenegraph.New()
	refs := tree(t, g, 4, 3, 3) // 4 + 12 + 36
	n := len(refs)

	shuffled := append([]scenegraph.Ref(nil), refs...)
	rand.New(rand.NewSource(7)).Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})

	clock := &fakeClock{}
	q := New(g, 2*time.Millisecond, clock)
	var order []scenegraph.Ref
	costly(q, clock, time.Millisecond, &order)
	const maxPerFrame = 2

	for _, r := range shuffled {
		q.Push(r)
	}

	frames := 0
	for q.Pending()+q.Waiting() > 0 {
		got := q.Drain()
		assert.LessOrEqual(t, got, maxPerFrame)
		frames++
		require.Less(t, frames, 10*n, "queue does not make progress")
	}

	assert.Len(t, order, n)
	assert.GreaterOrEqual(t, frames, n/maxPerFrame)

	seen := make(map[scenegraph.Ref]bool)
	for _, r := range order {
		o, ok := g.Get(r)
		require.True(t, ok)
		if o.Parent != scenegraph.RootRef {
			assert.True(t, seen[o.Parent], "ref %d attached before its parent %d", r, o.Parent)
		}
		seen[r] = true
	}
}

func TestRemoveCancelsPendingAndWaiting(t *testing.T) {
	g := scenegraph.New()
	parent, _ := g.Create(scenegraph.KindGroup, 1, scenegraph.RootRef)
	child, _ := g.Create(scenegraph.KindGroup, 2, parent.Ref)
	lone, _ := g.Create(scenegraph.KindGroup, 3, scenegraph.RootRef)

	clock := &fakeClock{}
	q := New(g, 2*time.Millisecond, clock)
	costly(q, clock, 3*time.Millisecond, nil)

	q.Push(child.Ref)
	q.Push(lone.Ref)
	q.Push(parent.Ref)

	// child goes to waiting, lone attaches and exhausts the budget.
	assert.Equal(t, 1, q.Drain())
	assert.Equal(t, 1, q.Waiting())
	assert.Equal(t, 1, q.Pending())

	assert.True(t, q.Remove(child.Ref))
	assert.True(t, q.Remove(parent.Ref))
	assert.False(t, q.Remove(parent.Ref))
	assert.Zero(t, q.Waiting())
	assert.Zero(t, q.Pending())

	assert.Zero(t, q.Drain())
	assert.False(t, parent.Attached)
	assert.False(t, child.Attached)
}

func TestDisposedObjectsAreSkipped(t *testing.T) {
	g := scenegraph.New()
	a, _ := g.Create(scenegraph.KindGroup, 1, scenegraph.RootRef)
	b, _ := g.Create(scenegraph.KindGroup, 2, scenegraph.RootRef)

	q := New(g, time.Hour, &fakeClock{})
	q.Push(a.Ref)
	q.Push(b.Ref)
	q.Push(b.Ref)
	assert.Equal(t, 2, q.Pending())
	g.Dispose(a.Ref)

	assert.Equal(t, 1, q.Drain())
	assert.False(t, q.Queued(a.Ref))
	assert.True(t, b.Attached)
}
