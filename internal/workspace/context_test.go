package workspace

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestClientCount_IncrementDecrement(t *testing.T) {
	ctx := newTestContext(t)
	require.Equal(t, 1, ctx.IncrementClients())
	require.Equal(t, 2, ctx.IncrementClients())
	require.Equal(t, 1, ctx.DecrementClients())
	require.Equal(t, 0, ctx.DecrementClients())
}

func TestClientCount_DoubleDisconnectClampsAtZero(t *testing.T) {
	ctx := newTestContext(t)
	require.Equal(t, 0, ctx.DecrementClients())
	require.Equal(t, 0, ctx.ClientCount())
}

func TestWorker_FailedMutationIsDroppedNotFatal(t *testing.T) {
	ctx := newTestContext(t)
	// An edit_status against a node id that does not exist should be
	// logged and dropped by the worker, not crash it — later mutations
	// must still be processed.
	ctx.Enqueue(&Mutation{Kind: OpEditStatus, Kind2: "node", ID: "missing", Value: "run"})
	ctx.Enqueue(&Mutation{Kind: OpAddNode, Label: "a"})
	waitDrain(t, ctx)

	g, err := ctx.Store.Load()
	require.NoError(t, err)
	require.Len(t, g.NodeList(), 1)
	require.Equal(t, "a", g.NodeList()[0].Label)
}
