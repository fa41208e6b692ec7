package graph

import (
	"encoding/xml"
	"fmt"
	"io"
	"strconv"
)

// GraphMLCodec implements Codec against a GraphML-compatible subset: one
// <graph> element holding <node>/<edge> elements, each carrying <data
// key="...">value</data> children for the attributes of §3. This is the
// canonical codec named by §6; no general-purpose GraphML library appears
// anywhere in the reference corpus, so it is hand-rolled on encoding/xml
// (see DESIGN.md for the justification).
type GraphMLCodec struct{}

func NewGraphMLCodec() *GraphMLCodec { return &GraphMLCodec{} }

type xmlData struct {
	Key   string `xml:"key,attr"`
	Value string `xml:",chardata"`
}

type xmlNode struct {
	ID   string    `xml:"id,attr"`
	Data []xmlData `xml:"data"`
}

type xmlEdge struct {
	ID     string    `xml:"id,attr"`
	Source string    `xml:"source,attr"`
	Target string    `xml:"target,attr"`
	Data   []xmlData `xml:"data"`
}

type xmlGraph struct {
	EdgeDefault string    `xml:"edgedefault,attr"`
	Data        []xmlData `xml:"data"`
	Nodes       []xmlNode `xml:"node"`
	Edges       []xmlEdge `xml:"edge"`
}

type xmlGraphML struct {
	XMLName xml.Name `xml:"graphml"`
	Graph   xmlGraph `xml:"graph"`
}

func dataValue(data []xmlData, key string) (string, bool) {
	for _, d := range data {
		if d.Key == key {
			return d.Value, true
		}
	}
	return "", false
}

func (c *GraphMLCodec) Decode(r io.Reader) (*Graph, error) {
	var doc xmlGraphML
	if err := xml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("graphml: decode: %w", err)
	}

	g := New()
	if wrapper, ok := dataValue(doc.Graph.Data, "wrapper"); ok {
		g.Wrapper = wrapper
	}

	for _, xn := range doc.Graph.Nodes {
		n := &Node{ID: xn.ID}
		if v, ok := dataValue(xn.Data, "label"); ok {
			n.Label = v
		}
		if v, ok := dataValue(xn.Data, "x"); ok {
			n.X, _ = strconv.ParseFloat(v, 64)
		}
		if v, ok := dataValue(xn.Data, "y"); ok {
			n.Y, _ = strconv.ParseFloat(v, 64)
		}
		if v, ok := dataValue(xn.Data, "status"); ok {
			n.Status = NodeStatus(v)
		}
		if v, ok := dataValue(xn.Data, "command"); ok {
			n.Command = v
		}
		if v, ok := dataValue(xn.Data, "stdout"); ok {
			n.Stdout = v
		}
		if v, ok := dataValue(xn.Data, "stderr"); ok {
			n.Stderr = v
		}
		if v, ok := dataValue(xn.Data, "pid"); ok {
			n.PID, _ = strconv.Atoi(v)
		}
		if v, ok := dataValue(xn.Data, "error_code"); ok {
			n.ErrorCode = v
		}
		g.addNodeOrdered(n)
	}

	for _, xe := range doc.Graph.Edges {
		e := &Edge{ID: xe.ID, Source: xe.Source, Target: xe.Target, EdgeType: EdgeTypeBlocking}
		if v, ok := dataValue(xe.Data, "edge_type"); ok && v != "" {
			e.EdgeType = EdgeType(v)
		}
		if v, ok := dataValue(xe.Data, "status"); ok {
			e.Status = EdgeStatus(v)
		}
		g.addEdgeOrdered(e)
	}

	return g, nil
}

func (c *GraphMLCodec) Encode(w io.Writer, g *Graph) error {
	doc := xmlGraphML{
		Graph: xmlGraph{
			EdgeDefault: "directed",
			Data:        []xmlData{{Key: "wrapper", Value: g.Wrapper}},
		},
	}

	for _, n := range g.NodeList() {
		xn := xmlNode{ID: n.ID}
		xn.Data = append(xn.Data,
			xmlData{Key: "label", Value: n.Label},
			xmlData{Key: "x", Value: strconv.FormatFloat(n.X, 'f', -1, 64)},
			xmlData{Key: "y", Value: strconv.FormatFloat(n.Y, 'f', -1, 64)},
			xmlData{Key: "status", Value: string(n.Status)},
		)
		if n.Command != "" || n.Stdout != "" || n.Stderr != "" || n.PID != 0 || n.ErrorCode != "" {
			xn.Data = append(xn.Data,
				xmlData{Key: "command", Value: n.Command},
				xmlData{Key: "stdout", Value: n.Stdout},
				xmlData{Key: "stderr", Value: n.Stderr},
				xmlData{Key: "pid", Value: strconv.Itoa(n.PID)},
				xmlData{Key: "error_code", Value: n.ErrorCode},
			)
		}
		doc.Graph.Nodes = append(doc.Graph.Nodes, xn)
	}

	for _, e := range g.EdgeList() {
		xe := xmlEdge{ID: e.ID, Source: e.Source, Target: e.Target}
		xe.Data = append(xe.Data,
			xmlData{Key: "edge_type", Value: string(e.EdgeType)},
			xmlData{Key: "status", Value: string(e.Status)},
		)
		doc.Graph.Edges = append(doc.Graph.Edges, xe)
	}

	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	if _, err := w.Write([]byte(xml.Header)); err != nil {
		return err
	}
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("graphml: encode: %w", err)
	}
	return enc.Flush()
}
