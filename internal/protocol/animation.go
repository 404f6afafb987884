package protocol

import "github.com/Faultbox/scenemirror/internal/ids"

// Path is the node property an animation channel drives.
type Path uint8

const (
	PathTranslation Path = iota
	PathRotation
	PathScale
	PathWeights
)

var pathNames = [...]string{"translation", "rotation", "scale", "weights"}

func (p Path) String() string {
	if int(p) < len(pathNames) {
		return pathNames[p]
	}
	return "unknown"
}

// Interpolation is a sampler interpolation mode.
type Interpolation uint8

const (
	InterpLinear Interpolation = iota
	InterpStep
	InterpCubicSpline
)

var interpNames = [...]string{"LINEAR", "STEP", "CUBICSPLINE"}

func (i Interpolation) String() string {
	if int(i) < len(interpNames) {
		return interpNames[i]
	}
	return "unknown"
}

// ChannelDef drives one property of one node from a sampler.
type ChannelDef struct {
	Target        ids.ID
	Path          Path
	Input         ids.ID
	Output        ids.ID
	Interpolation Interpolation
}

// AnimationDef is a named set of channels.
type AnimationDef struct {
	Name     string
	Channels []ChannelDef
}

func (*AnimationDef) Kind() ids.Kind { return ids.KindAnimation }

func (d *AnimationDef) clone() Definition {
	c := *d
	c.Channels = append([]ChannelDef(nil), d.Channels...)
	return &c
}
