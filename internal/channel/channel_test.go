package channel

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Faultbox/scenemirror/internal/ids"
	"github.com/Faultbox/scenemirror/internal/protocol"
)

func createNode(id ids.ID) protocol.Message {
	return &protocol.Create{ID: id, Def: &protocol.NodeDef{Transform: protocol.IdentityTRS()}}
}

func TestOrderPreservedAcrossGoroutines(t *testing.T) {
	ch := New(8)
	ctx := context.Background()
	const n = 500

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 1; i <= n; i++ {
			assert.NoError(t, ch.Send(ctx, createNode(ids.ID(i))))
		}
	}()

	for i := 1; i <= n; i++ {
		env, err := ch.Recv(ctx)
		require.NoError(t, err)
		assert.Equal(t, uint64(i), env.Seq)
		assert.Equal(t, ids.ID(i), env.Msg.Target())
		assert.Equal(t, ch.Session(), env.Session)
	}
	wg.Wait()
}

func TestSendRejectsOutOfOrderTraffic(t *testing.T) {
	ch := New(16)
	ctx := context.Background()

	err := ch.Send(ctx, &protocol.Update{ID: 1, Patch: &protocol.NodePatch{}})
	assert.True(t, ids.IsProtocol(err), "update before create")

	require.NoError(t, ch.Send(ctx, createNode(1)))
	assert.True(t, ids.IsProtocol(ch.Send(ctx, createNode(1))), "duplicate create")

	err = ch.Send(ctx, &protocol.Update{ID: 1, Patch: &protocol.MaterialPatch{}})
	assert.True(t, ids.IsProtocol(err), "kind mismatch")

	require.NoError(t, ch.Send(ctx, &protocol.Dispose{ID: 1, EntityKind: ids.KindNode}))
	err = ch.Send(ctx, &protocol.Update{ID: 1, Patch: &protocol.NodePatch{}})
	assert.True(t, ids.IsProtocol(err), "update after dispose")

	assert.NoError(t, ch.Send(ctx, &protocol.Dispose{ID: 1, EntityKind: ids.KindNode}), "repeat dispose passes through")
	assert.Equal(t, 3, ch.Len())
}

func TestSendCopiesBuffers(t *testing.T) {
	ch := New(4)
	data := []float32{1, 2, 3}
	require.NoError(t, ch.Send(context.Background(), &protocol.Create{ID: 1, Def: protocol.FloatAccessor(protocol.Vec3, data)}))
	data[0] = 42

	env, ok := ch.TryRecv()
	require.True(t, ok)
	assert.Equal(t, float32(1), env.Msg.(*protocol.Create).Def.(*protocol.AccessorDef).Floats[0])
}

func TestCloseDrainsThenFails(t *testing.T) {
	ch := New(4)
	ctx := context.Background()
	require.NoError(t, ch.Send(ctx, createNode(1)))
	ch.Close()

	assert.ErrorIs(t, ch.Send(ctx, createNode(2)), ErrClosed)

	_, err := ch.Recv(ctx)
	require.NoError(t, err)
	_, err = ch.Recv(ctx)
	assert.ErrorIs(t, err, ErrClosed)
}

func TestRecvHonorsContext(t *testing.T) {
	ch := New(1)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := ch.Recv(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestDrain(t *testing.T) {
	ch := New(8)
	ctx := context.Background()
	for i := 1; i <= 5; i++ {
		require.NoError(t, ch.Send(ctx, createNode(ids.ID(i))))
	}
	assert.Len(t, ch.Drain(2), 2)
	assert.Len(t, ch.Drain(0), 3)
	assert.Empty(t, ch.Drain(0))
}

func TestDispatcher(t *testing.T) {
	d := NewDispatcher()
	var got ids.ID
	d.Register(ids.KindNode, protocol.OpCreate, func(msg protocol.Message) error {
		got = msg.Target()
		return nil
	})

	require.NoError(t, d.Dispatch(createNode(5)))
	assert.Equal(t, ids.ID(5), got)

	err := d.Dispatch(&protocol.Dispose{ID: 5, EntityKind: ids.KindNode})
	assert.True(t, ids.IsProtocol(err))
}
