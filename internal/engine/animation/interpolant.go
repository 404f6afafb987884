package animation

import (
	"sort"

	"github.com/Faultbox/scenemirror/pkg/math"
)

// Interpolant samples a keyframe track. Evaluate writes one value of the
// track's value size into out.
type Interpolant interface {
	Evaluate(t float32, out []float32)
}

// keyframes is the shared sampling state of every interpolant.
type keyframes struct {
	times  []float32
	values []float32
	size   int
}

// segment returns the key index i such that times[i] <= t < times[i+1] and
// the normalized position within that segment. t outside the track clamps to
// the first or last key, reported with i == -1 or i == last.
func (k *keyframes) segment(t float32) (int, float32, float32) {
	n := len(k.times)
	if n == 0 || t <= k.times[0] {
		return -1, 0, 0
	}
	if t >= k.times[n-1] {
		return n - 1, 0, 0
	}
	i := sort.Search(n, func(i int) bool { return k.times[i] > t }) - 1
	dt := k.times[i+1] - k.times[i]
	if dt <= 0 {
		return i, 0, 0
	}
	return i, (t - k.times[i]) / dt, dt
}

// copyKey copies value key i into out. stride and offset select the value
// within a key for layouts that store tangents alongside.
func (k *keyframes) copyKey(i, stride, offset int, out []float32) {
	start := i*stride + offset
	copy(out[:k.size], k.values[start:start+k.size])
}

// Linear interpolates component-wise between adjacent keys.
type Linear struct{ keyframes }

// NewLinear creates a linear interpolant over times and values of size.
func NewLinear(times, values []float32, size int) *Linear {
	return &Linear{keyframes{times, values, size}}
}

func (l *Linear) Evaluate(t float32, out []float32) {
	i, s, _ := l.segment(t)
	if i < 0 {
		l.copyKey(0, l.size, 0, out)
		return
	}
	if i >= len(l.times)-1 || s == 0 {
		l.copyKey(i, l.size, 0, out)
		return
	}
	a := l.values[i*l.size:]
	b := l.values[(i+1)*l.size:]
	for c := 0; c < l.size; c++ {
		out[c] = math.Lerp(a[c], b[c], s)
	}
}

// Step holds each key's value until the next key.
type Step struct{ keyframes }

// NewStep creates a step interpolant.
func NewStep(times, values []float32, size int) *Step {
	return &Step{keyframes{times, values, size}}
}

func (st *Step) Evaluate(t float32, out []float32) {
	i, _, _ := st.segment(t)
	if i < 0 {
		i = 0
	}
	st.copyKey(i, st.size, 0, out)
}

// QuaternionLinear slerps between rotation keys.
type QuaternionLinear struct{ keyframes }

// NewQuaternionLinear creates a slerp interpolant over xyzw keys.
func NewQuaternionLinear(times, values []float32) *QuaternionLinear {
	return &QuaternionLinear{keyframes{times, values, 4}}
}

func (q *QuaternionLinear) Evaluate(t float32, out []float32) {
	i, s, _ := q.segment(t)
	if i < 0 {
		q.copyKey(0, 4, 0, out)
		return
	}
	if i >= len(q.times)-1 || s == 0 {
		q.copyKey(i, 4, 0, out)
		return
	}
	a := quatAt(q.values, i*4)
	b := quatAt(q.values, (i+1)*4)
	r := a.Slerp(b, s).Array()
	copy(out, r[:])
}

// CubicSpline is a Hermite spline whose keys each carry an in-tangent, a
// value and an out-tangent, in that order. size is the size of one value,
// not of the whole key.
type CubicSpline struct{ keyframes }

// NewCubicSpline creates a cubic spline interpolant. values holds
// 3*size floats per key.
func NewCubicSpline(times, values []float32, size int) *CubicSpline {
	return &CubicSpline{keyframes{times, values, size}}
}

func (c *CubicSpline) Evaluate(t float32, out []float32) {
	c.hermite(t, out)
}

// hermite evaluates the spline into out. Outside the track the nearest key's
// value is used.
func (c *CubicSpline) hermite(t float32, out []float32) {
	stride := c.size * 3
	i, s, dt := c.segment(t)
	if i < 0 {
		c.copyKey(0, stride, c.size, out)
		return
	}
	if i >= len(c.times)-1 || dt == 0 {
		c.copyKey(i, stride, c.size, out)
		return
	}

	s2 := s * s
	s3 := s2 * s
	h00 := 2*s3 - 3*s2 + 1
	h10 := s3 - 2*s2 + s
	h01 := -2*s3 + 3*s2
	h11 := s3 - s2

	k0 := i * stride
	k1 := (i + 1) * stride
	for j := 0; j < c.size; j++ {
		p0 := c.values[k0+c.size+j]
		m0 := c.values[k0+2*c.size+j] * dt
		p1 := c.values[k1+c.size+j]
		m1 := c.values[k1+j] * dt
		out[j] = h00*p0 + h10*m0 + h01*p1 + h11*m1
	}
}

// QuaternionCubicSpline is CubicSpline over xyzw keys with the result
// renormalized to a unit rotation.
type QuaternionCubicSpline struct{ CubicSpline }

// NewQuaternionCubicSpline creates a rotation spline interpolant.
func NewQuaternionCubicSpline(times, values []float32) *QuaternionCubicSpline {
	return &QuaternionCubicSpline{CubicSpline{keyframes{times, values, 4}}}
}

func (q *QuaternionCubicSpline) Evaluate(t float32, out []float32) {
	q.hermite(t, out)
	r := quatAt(out, 0).Normalize().Array()
	copy(out, r[:])
}

func quatAt(values []float32, offset int) math.Quat {
	return math.Quat{X: values[offset], Y: values[offset+1], Z: values[offset+2], W: values[offset+3]}
}
