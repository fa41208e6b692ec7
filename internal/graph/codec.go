package graph

import "io"

// Codec reads and writes the canonical on-disk representation of a Graph.
// The workspace server injects a Codec into Store so the wire format (§6,
// "canonical codec is GraphML-compatible") can be swapped without touching
// the mutation operations below.
type Codec interface {
	Decode(r io.Reader) (*Graph, error)
	Encode(w io.Writer, g *Graph) error
}
