package graph

import "testing"

func buildLinear() *Graph {
	g := New()
	g.addNodeOrdered(&Node{ID: "a"})
	g.addNodeOrdered(&Node{ID: "b"})
	g.addNodeOrdered(&Node{ID: "c"})
	g.addEdgeOrdered(&Edge{ID: "e1", Source: "a", Target: "b", EdgeType: EdgeTypeBlocking})
	g.addEdgeOrdered(&Edge{ID: "e2", Source: "b", Target: "c", EdgeType: EdgeTypeBlocking})
	return g
}

func TestHasBlockingCycle_Acyclic(t *testing.T) {
	g := buildLinear()
	if g.HasBlockingCycle() {
		t.Fatal("expected no cycle in a linear chain")
	}
}

func TestHasBlockingCycle_Cyclic(t *testing.T) {
	g := New()
	g.addNodeOrdered(&Node{ID: "x"})
	g.addNodeOrdered(&Node{ID: "y"})
	g.addEdgeOrdered(&Edge{ID: "e1", Source: "x", Target: "y", EdgeType: EdgeTypeBlocking})
	g.addEdgeOrdered(&Edge{ID: "e2", Source: "y", Target: "x", EdgeType: EdgeTypeBlocking})

	if !g.HasBlockingCycle() {
		t.Fatal("expected cycle between x and y")
	}
}

func TestHasBlockingCycle_NonBlockingIgnored(t *testing.T) {
	g := New()
	g.addNodeOrdered(&Node{ID: "x"})
	g.addNodeOrdered(&Node{ID: "y"})
	g.addEdgeOrdered(&Edge{ID: "e1", Source: "x", Target: "y", EdgeType: EdgeTypeNonBlocking})
	g.addEdgeOrdered(&Edge{ID: "e2", Source: "y", Target: "x", EdgeType: EdgeTypeNonBlocking})

	if g.HasBlockingCycle() {
		t.Fatal("non-blocking edges must not count toward blocking-cycle detection")
	}
}

func TestRoots_FullGraph(t *testing.T) {
	g := buildLinear()
	roots := g.Roots(nil)
	if len(roots) != 1 || roots[0] != "a" {
		t.Fatalf("expected [a], got %v", roots)
	}
}

func TestRoots_InducedSubgraph(t *testing.T) {
	g := buildLinear()
	// Selecting {b, c}: b's only incoming edge comes from a, outside the
	// selection, so within this induced subgraph b is a root.
	roots := g.Roots(map[string]bool{"b": true, "c": true})
	if len(roots) != 1 || roots[0] != "b" {
		t.Fatalf("expected [b], got %v", roots)
	}
}

func TestCloneIsIndependent(t *testing.T) {
	g := buildLinear()
	clone := g.Clone()
	clone.Nodes["a"].Status = NodeStatusRan

	if g.Nodes["a"].Status == NodeStatusRan {
		t.Fatal("mutating the clone must not affect the original")
	}
}

func TestRemoveNodeCascade(t *testing.T) {
	g := buildLinear()
	g.removeNodeCascade("b")

	if _, ok := g.Nodes["b"]; ok {
		t.Fatal("node b should be gone")
	}
	if len(g.EdgeList()) != 0 {
		t.Fatalf("expected both edges touching b to be removed, got %d left", len(g.EdgeList()))
	}
}
