package workspace

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/workforce-hq/workforce/internal/graph"
)

func TestApply_AddNodeThenEditStatus(t *testing.T) {
	dir := t.TempDir()
	store := graph.NewStore(filepath.Join(dir, "wf.graphml"), graph.NewGraphMLCodec())

	require.NoError(t, apply(store, &Mutation{Kind: OpAddNode, Label: "build"}))

	g, err := store.Load()
	require.NoError(t, err)
	require.Len(t, g.NodeList(), 1)
	id := g.NodeList()[0].ID

	require.NoError(t, apply(store, &Mutation{Kind: OpEditStatus, Kind2: graph.KindNode, ID: id, Value: "run"}))
	g, err = store.Load()
	require.NoError(t, err)
	require.Equal(t, graph.NodeStatusRun, g.Nodes[id].Status)
}

func TestApply_UnknownOpKindIsNoop(t *testing.T) {
	dir := t.TempDir()
	store := graph.NewStore(filepath.Join(dir, "wf.graphml"), graph.NewGraphMLCodec())
	require.NoError(t, apply(store, &Mutation{Kind: OpKind("bogus")}))
}

func TestApply_RemoveNodeNotFoundSurfacesError(t *testing.T) {
	dir := t.TempDir()
	store := graph.NewStore(filepath.Join(dir, "wf.graphml"), graph.NewGraphMLCodec())
	err := apply(store, &Mutation{Kind: OpRemoveNode, NodeID: "missing"})
	require.Error(t, err)
}
