package statemachine

import (
	"bytes"
	"fmt"
	"io"

	"github.com/goccy/go-graphviz"
	"github.com/goccy/go-graphviz/cgraph"
	"github.com/pkg/errors"
)

// ExportDOT writes the transition table as a Graphviz DOT document. The initial state is drawn
// as a double circle and every edge is labelled with its input.
func (m *Machine[S, I]) ExportDOT(w io.Writer) (err error) {
	g := graphviz.New()
	graph, err := g.Graph(graphviz.Name(m.name))
	if err != nil {
		return errors.Wrap(err, "creating graph")
	}
	defer func() {
		if closeErr := graph.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
		if closeErr := g.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()
	graph.SetRankDir(cgraph.LRRank)

	nodes := map[S]*cgraph.Node{}
	for _, s := range m.States() {
		n, err := graph.CreateNode(fmt.Sprint(s))
		if err != nil {
			return errors.Wrapf(err, "creating node %v", s)
		}
		n.SetLabel(fmt.Sprint(s))
		if s == m.initial {
			n.SetShape(cgraph.DoubleCircleShape)
		}
		nodes[s] = n
	}
	for i, tr := range m.order {
		e, err := graph.CreateEdge(fmt.Sprintf("t%d", i), nodes[tr.From], nodes[tr.To])
		if err != nil {
			return errors.Wrapf(err, "creating edge %v -> %v", tr.From, tr.To)
		}
		e.SetLabel(fmt.Sprint(tr.Input))
	}

	var buf bytes.Buffer
	if err := g.Render(graph, graphviz.XDOT, &buf); err != nil {
		return errors.Wrap(err, "rendering graph")
	}
	_, err = w.Write(buf.Bytes())
	return err
}
