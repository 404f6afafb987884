package material

import (
	"fmt"

	"github.com/jinzhu/copier"

	"github.com/Faultbox/scenemirror/internal/ids"
)

// VariantKey identifies a variant: a base material plus the structural
// fixups the bound geometry requires.
type VariantKey struct {
	Material       ids.ID
	UV2            bool
	FlatShading    bool
	VertexColors   bool
	FlippedTangent bool
}

// Structural reports whether the key asks for any fixup. A key without
// fixups resolves to the base material itself.
func (k VariantKey) Structural() bool {
	return k.UV2 || k.FlatShading || k.VertexColors || k.FlippedTangent
}

func (k VariantKey) String() string {
	return fmt.Sprintf("%s[uv2=%t flat=%t vc=%t flipY=%t]", k.Material, k.UV2, k.FlatShading, k.VertexColors, k.FlippedTangent)
}

// cloneVariant copies base into a fresh material and patches it for key.
// Texture bindings stay shared with the base.
func cloneVariant(base *Material, key VariantKey) (*Material, error) {
	v := &Material{}
	if err := rederive(v, base, key); err != nil {
		return nil, err
	}
	return v, nil
}

// rederive overwrites v with base's current state and reapplies key.
// The identity of v is preserved so bound primitives keep pointing at it.
func rederive(v *Material, base *Material, key VariantKey) error {
	version := v.Version
	if err := copier.Copy(v, base); err != nil {
		return fmt.Errorf("cloning material %s: %w", base.ID, err)
	}
	v.Maps = base.Maps
	v.Variant = true
	v.Disposed = false
	v.UV2 = key.UV2
	v.FlatShading = key.FlatShading
	v.VertexColors = key.VertexColors
	v.FlippedTangent = key.FlippedTangent
	if key.FlippedTangent {
		v.NormalScale[1] = -v.NormalScale[1]
	}
	v.Version = version + 1
	return nil
}
