package graph

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGraphMLRoundTrip(t *testing.T) {
	g := New()
	g.Wrapper = "bash -c '{}'"
	g.addNodeOrdered(&Node{ID: "a", Label: "echo hi", X: 1.5, Y: -2, Status: NodeStatusRan})
	g.addNodeOrdered(&Node{ID: "b", Label: "echo bye"})
	g.addEdgeOrdered(&Edge{ID: "e1", Source: "a", Target: "b", EdgeType: EdgeTypeNonBlocking, Status: EdgeStatusToRun})

	var buf bytes.Buffer
	codec := NewGraphMLCodec()
	require.NoError(t, codec.Encode(&buf, g))

	decoded, err := codec.Decode(&buf)
	require.NoError(t, err)

	require.Equal(t, g.Wrapper, decoded.Wrapper)
	require.Len(t, decoded.NodeList(), 2)
	require.Equal(t, "echo hi", decoded.Nodes["a"].Label)
	require.Equal(t, NodeStatusRan, decoded.Nodes["a"].Status)
	require.InDelta(t, 1.5, decoded.Nodes["a"].X, 1e-9)
	require.Len(t, decoded.EdgeList(), 1)
	require.Equal(t, EdgeTypeNonBlocking, decoded.Edges["e1"].EdgeType)
	require.Equal(t, EdgeStatusToRun, decoded.Edges["e1"].Status)
}

func TestGraphMLRoundTrip_ExecutionRecord(t *testing.T) {
	g := New()
	g.addNodeOrdered(&Node{
		ID: "a", Label: "echo hi",
		Command: "bash -c 'echo hi'", Stdout: "hi\n", Stderr: "", PID: 1234, ErrorCode: "0",
	})

	var buf bytes.Buffer
	codec := NewGraphMLCodec()
	require.NoError(t, codec.Encode(&buf, g))

	decoded, err := codec.Decode(&buf)
	require.NoError(t, err)
	require.Equal(t, "bash -c 'echo hi'", decoded.Nodes["a"].Command)
	require.Equal(t, "hi\n", decoded.Nodes["a"].Stdout)
	require.Equal(t, 1234, decoded.Nodes["a"].PID)
	require.Equal(t, "0", decoded.Nodes["a"].ErrorCode)
}
