package ids

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryIssuesUniqueIDs(t *testing.T) {
	r := NewRegistry()
	seen := make(map[ID]bool)
	for _, k := range []Kind{KindNode, KindMesh, KindMaterial, KindTexture, KindAccessor, KindAnimation, KindNode} {
		id := r.New(k)
		require.True(t, id.Valid())
		assert.False(t, seen[id], "id %s issued twice", id)
		seen[id] = true
		assert.Equal(t, k, r.Kind(id))
	}
	assert.Equal(t, 7, r.Count())
}

func TestRegistryNeverReusesRetired(t *testing.T) {
	r := NewRegistry()
	a := r.New(KindNode)
	require.True(t, r.Retire(a))
	assert.False(t, r.Live(a))
	assert.False(t, r.Retire(a), "second retire is a no-op")

	b := r.New(KindNode)
	assert.NotEqual(t, a, b)
	assert.True(t, r.Live(b))
}

func TestRegistryUnknownID(t *testing.T) {
	r := NewRegistry()
	assert.Equal(t, KindNone, r.Kind(42))
	assert.False(t, r.Live(42))
	assert.False(t, r.Retire(42))
}

func TestEntityErrorClassification(t *testing.T) {
	err := Protocol(KindNode, 7, "update", "no create seen")
	assert.True(t, IsProtocol(err))
	assert.False(t, IsMissing(err))
	assert.Contains(t, err.Error(), "node")
	assert.Contains(t, err.Error(), "#7")

	err = Missing(KindMaterial, 3, "create", KindTexture, 9)
	assert.True(t, IsMissing(err))

	var ee *EntityError
	require.True(t, errors.As(err, &ee))
	assert.Equal(t, KindMaterial, ee.Kind)
	assert.Equal(t, ID(3), ee.ID)
	assert.Contains(t, err.Error(), "texture #9")
}
