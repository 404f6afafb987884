package protocol

import "github.com/Faultbox/scenemirror/internal/ids"

// ElementType is the number of components per accessor element.
type ElementType uint8

const (
	Scalar ElementType = iota
	Vec2
	Vec3
	Vec4
	Mat4
)

// Size returns the component count of one element.
func (t ElementType) Size() int {
	switch t {
	case Vec2:
		return 2
	case Vec3:
		return 3
	case Vec4:
		return 4
	case Mat4:
		return 16
	default:
		return 1
	}
}

var elementNames = [...]string{"scalar", "vec2", "vec3", "vec4", "mat4"}

func (t ElementType) String() string {
	if int(t) < len(elementNames) {
		return elementNames[t]
	}
	return "unknown"
}

// ComponentType is the storage type of accessor components.
type ComponentType uint8

const (
	Float32 ComponentType = iota
	Int8
	Uint8
	Int16
	Uint16
	Uint32
)

// normalizedMax is the divisor used when a normalized integer is read as float.
func (c ComponentType) normalizedMax() float32 {
	switch c {
	case Int8:
		return 127
	case Uint8:
		return 255
	case Int16:
		return 32767
	case Uint16:
		return 65535
	case Uint32:
		return 4294967295
	default:
		return 1
	}
}

// AccessorDef is a typed numeric buffer. Float components live in Floats,
// integer components in Ints. Accessors are immutable once created.
type AccessorDef struct {
	Name       string
	Type       ElementType
	Component  ComponentType
	Normalized bool
	Floats     []float32
	Ints       []uint32
}

func (*AccessorDef) Kind() ids.Kind { return ids.KindAccessor }

func (d *AccessorDef) clone() Definition {
	c := *d
	c.Floats = append([]float32(nil), d.Floats...)
	c.Ints = append([]uint32(nil), d.Ints...)
	return &c
}

// ItemSize returns the number of components per element.
func (d *AccessorDef) ItemSize() int {
	return d.Type.Size()
}

// Count returns the number of elements.
func (d *AccessorDef) Count() int {
	n := len(d.Floats)
	if d.Component != Float32 {
		n = len(d.Ints)
	}
	return n / d.ItemSize()
}

// AsFloats returns the buffer as float32, applying integer normalization
// when the accessor is flagged normalized.
func (d *AccessorDef) AsFloats() []float32 {
	if d.Component == Float32 {
		return d.Floats
	}
	out := make([]float32, len(d.Ints))
	div := float32(1)
	if d.Normalized {
		div = d.Component.normalizedMax()
	}
	for i, v := range d.Ints {
		if d.Component == Int8 || d.Component == Int16 {
			out[i] = float32(int32(v)) / div
			continue
		}
		out[i] = float32(v) / div
	}
	return out
}

// AsUints returns integer components, truncating floats.
func (d *AccessorDef) AsUints() []uint32 {
	if d.Component != Float32 {
		return d.Ints
	}
	out := make([]uint32, len(d.Floats))
	for i, v := range d.Floats {
		out[i] = uint32(v)
	}
	return out
}

// FloatAccessor is a convenience constructor for float data.
func FloatAccessor(t ElementType, data []float32) *AccessorDef {
	return &AccessorDef{Type: t, Component: Float32, Floats: data}
}

// IndexAccessor is a convenience constructor for uint32 index data.
func IndexAccessor(data []uint32) *AccessorDef {
	return &AccessorDef{Type: Scalar, Component: Uint32, Ints: data}
}
