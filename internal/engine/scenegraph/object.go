// Package scenegraph is the renderer-side object graph. Objects live in an
// arena keyed by Ref; parent and child links are Refs, never pointers.
package scenegraph

import (
	"fmt"

	"github.com/Faultbox/scenemirror/internal/engine/geometry"
	"github.com/Faultbox/scenemirror/internal/engine/material"
	"github.com/Faultbox/scenemirror/internal/ids"
	"github.com/Faultbox/scenemirror/pkg/math"
)

// Ref is an arena handle. Refs are never reused.
type Ref uint64

const (
	// NoRef is the absent handle.
	NoRef Ref = 0
	// RootRef is the implicit scene root. It is always attached and never disposed.
	RootRef Ref = 1
)

// Kind classifies renderer objects.
type Kind uint8

const (
	KindGroup Kind = iota
	KindBone
	KindPrimitive
	KindSkinnedPrimitive
	KindVisual
)

var kindNames = [...]string{"group", "bone", "primitive", "skinned", "visual"}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", k)
}

// Skeleton is a bound pose: bones in joint order paired with their inverse
// bind matrices.
type Skeleton struct {
	Bones       []Ref
	InverseBind []math.Mat4
}

// Object is the renderer-owned counterpart of a node, primitive or bone.
type Object struct {
	Ref    Ref
	Kind   Kind
	Source ids.ID
	Name   string

	Parent   Ref
	Children []Ref

	Position math.Vec3
	Rotation math.Quat
	Scale    math.Vec3
	Visible  bool

	// Attached is set once the object is linked into the live graph,
	// that is, reachable from the root.
	Attached bool
	Disposed bool

	Geometry     *geometry.Geometry
	Material     *material.Material
	MorphWeights []float32
	Skeleton     *Skeleton

	world      math.Mat4
	worldDirty bool
}

// Renderable reports whether the object draws geometry.
func (o *Object) Renderable() bool {
	return o.Kind == KindPrimitive || o.Kind == KindSkinnedPrimitive || o.Kind == KindVisual
}

// Morphable reports whether the object carries morph targets.
func (o *Object) Morphable() bool {
	return o.Geometry != nil && o.Geometry.MorphTargetCount() > 0
}

// Local returns the local transform matrix.
func (o *Object) Local() math.Mat4 {
	return math.Compose(o.Position, o.Rotation, o.Scale)
}
