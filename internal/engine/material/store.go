package material

import (
	"github.com/Faultbox/scenemirror/internal/ids"
	"github.com/Faultbox/scenemirror/internal/protocol"
)

// Store owns textures, base materials and their variants. The fallback
// material is supplied by the caller and is never disposed.
type Store struct {
	fallback  *Material
	textures  map[ids.ID]*Texture
	materials map[ids.ID]*Material
	variants  map[VariantKey]*Material
	byBase    map[ids.ID][]VariantKey
}

// NewStore creates a store using fallback for primitives without a material.
func NewStore(fallback *Material) *Store {
	return &Store{
		fallback:  fallback,
		textures:  make(map[ids.ID]*Texture),
		materials: make(map[ids.ID]*Material),
		variants:  make(map[VariantKey]*Material),
		byBase:    make(map[ids.ID][]VariantKey),
	}
}

// Fallback returns the default material.
func (s *Store) Fallback() *Material {
	return s.fallback
}

// AddTexture creates a texture.
func (s *Store) AddTexture(id ids.ID, def *protocol.TextureDef) error {
	if _, ok := s.textures[id]; ok {
		return ids.Protocol(ids.KindTexture, id, "create", "duplicate create")
	}
	s.textures[id] = &Texture{
		ID:      id,
		Name:    def.Name,
		Image:   def.Image,
		Width:   def.Width,
		Height:  def.Height,
		Sampler: def.Sampler,
	}
	return nil
}

// Texture returns the texture for id.
func (s *Store) Texture(id ids.ID) (*Texture, bool) {
	t, ok := s.textures[id]
	return t, ok
}

// RemoveTexture disposes a texture. Materials still bound to it keep a
// disposed handle until they are updated.
func (s *Store) RemoveTexture(id ids.ID) bool {
	t, ok := s.textures[id]
	if !ok {
		return false
	}
	t.Disposed = true
	delete(s.textures, id)
	return true
}

// checkTextures verifies every referenced texture exists.
func (s *Store) checkTextures(id ids.ID, op string, refs []*protocol.TextureRef) error {
	for _, ref := range refs {
		if ref == nil {
			continue
		}
		if _, ok := s.textures[ref.Texture]; !ok {
			return ids.Missing(ids.KindMaterial, id, op, ids.KindTexture, ref.Texture)
		}
	}
	return nil
}

func (s *Store) lookupTexture(id ids.ID) *Texture {
	return s.textures[id]
}

// Add creates a base material. A texture that was never created aborts the
// material with a missing-dependency error.
func (s *Store) Add(id ids.ID, def *protocol.MaterialDef) error {
	if _, ok := s.materials[id]; ok {
		return ids.Protocol(ids.KindMaterial, id, "create", "duplicate create")
	}
	if err := s.checkTextures(id, "create", def.Textures[:]); err != nil {
		return err
	}
	m := &Material{ID: id}
	m.apply(def, s.lookupTexture)
	s.materials[id] = m
	return nil
}

// Get returns the base material for id.
func (s *Store) Get(id ids.ID) (*Material, bool) {
	m, ok := s.materials[id]
	return m, ok
}

// Resolve returns the base material for id, the fallback for None, or a
// missing-dependency error on behalf of the requesting entity.
func (s *Store) Resolve(kind ids.Kind, owner ids.ID, op string, id ids.ID) (*Material, error) {
	if !id.Valid() {
		return s.fallback, nil
	}
	m, ok := s.materials[id]
	if !ok {
		return nil, ids.Missing(kind, owner, op, ids.KindMaterial, id)
	}
	return m, nil
}

// Update patches a base material in place and re-derives its variants so
// primitives bound to them observe the change.
func (s *Store) Update(id ids.ID, p *protocol.MaterialPatch) error {
	m, ok := s.materials[id]
	if !ok {
		return ids.Protocol(ids.KindMaterial, id, "update", "update before create")
	}

	var refs []*protocol.TextureRef
	for _, opt := range p.Textures {
		if v, set := opt.Get(); set {
			refs = append(refs, v)
		}
	}
	if err := s.checkTextures(id, "update", refs); err != nil {
		return err
	}

	if v, ok := p.Name.Get(); ok {
		m.Name = v
	}
	if v, ok := p.BaseColor.Get(); ok {
		m.BaseColor = v
	}
	if v, ok := p.Metallic.Get(); ok {
		m.Metallic = v
	}
	if v, ok := p.Roughness.Get(); ok {
		m.Roughness = v
	}
	if v, ok := p.Emissive.Get(); ok {
		m.Emissive = v
	}
	if v, ok := p.NormalScale.Get(); ok {
		m.NormalScale = [2]float32{v, v}
	}
	if v, ok := p.OcclusionStrength.Get(); ok {
		m.OcclusionStrength = v
	}
	if v, ok := p.AlphaMode.Get(); ok {
		m.AlphaMode = v
	}
	if v, ok := p.AlphaCutoff.Get(); ok {
		m.AlphaCutoff = v
	}
	if v, ok := p.DoubleSided.Get(); ok {
		m.DoubleSided = v
	}
	for slot, opt := range p.Textures {
		ref, set := opt.Get()
		if !set {
			continue
		}
		if ref == nil {
			m.Maps[slot] = nil
			continue
		}
		m.Maps[slot] = &Binding{Texture: s.textures[ref.Texture], Info: ref.Info}
	}
	m.Version++

	for _, key := range s.byBase[id] {
		if err := rederive(s.variants[key], m, key); err != nil {
			return err
		}
	}
	return nil
}

// Remove disposes a base material and every variant derived from it.
func (s *Store) Remove(id ids.ID) bool {
	m, ok := s.materials[id]
	if !ok {
		return false
	}
	m.Disposed = true
	delete(s.materials, id)
	for _, key := range s.byBase[id] {
		s.variants[key].Disposed = true
		delete(s.variants, key)
	}
	delete(s.byBase, id)
	return true
}

// Variant returns the material to bind for key. A key without fixups yields
// the base material; otherwise a cached clone is returned, created on first
// use. The base material is never modified.
func (s *Store) Variant(base *Material, key VariantKey) (*Material, error) {
	if !key.Structural() {
		return base, nil
	}
	if v, ok := s.variants[key]; ok {
		return v, nil
	}
	v, err := cloneVariant(base, key)
	if err != nil {
		return nil, err
	}
	s.variants[key] = v
	s.byBase[key.Material] = append(s.byBase[key.Material], key)
	return v, nil
}

// Stats reports store sizes.
type Stats struct {
	Textures  int
	Materials int
	Variants  int
}

// Stats returns current store sizes.
func (s *Store) Stats() Stats {
	return Stats{
		Textures:  len(s.textures),
		Materials: len(s.materials),
		Variants:  len(s.variants),
	}
}
