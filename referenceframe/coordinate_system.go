package referenceframe

import (
	"github.com/pkg/errors"

	"go.igtrack.org/tracking/transform"
)

// CoordinateSystem is the handle an entity keeps to its own node. The handle is a graph plus an
// index; it never points at other nodes.
type CoordinateSystem struct {
	graph *Graph
	id    NodeID
}

// ID returns the node handle.
func (cs *CoordinateSystem) ID() NodeID {
	return cs.id
}

// Graph returns the graph this coordinate system lives in.
func (cs *CoordinateSystem) Graph() *Graph {
	return cs.graph
}

// Name returns the node name.
func (cs *CoordinateSystem) Name() string {
	return cs.graph.Name(cs.id)
}

func (cs *CoordinateSystem) checkSameGraph(other *CoordinateSystem) error {
	if other == nil {
		return errors.Wrap(ErrUnknownNode, "nil coordinate system")
	}
	if other.graph != cs.graph {
		return errors.Wrapf(ErrForeignNode, "%q and %q", cs.Name(), other.Name())
	}
	return nil
}

// SetTransformAndParent attaches this node below parent with tf as its transform to parent.
func (cs *CoordinateSystem) SetTransformAndParent(tf transform.Transform, parent *CoordinateSystem) error {
	if err := cs.checkSameGraph(parent); err != nil {
		return err
	}
	return cs.graph.SetTransformAndParent(cs.id, tf, parent.id)
}

// DetachFromParent makes this node a root.
func (cs *CoordinateSystem) DetachFromParent() error {
	return cs.graph.DetachFromParent(cs.id)
}

// Parent returns the parent handle. ok is false for roots.
func (cs *CoordinateSystem) Parent() (parent *CoordinateSystem, ok bool) {
	id, ok := cs.graph.Parent(cs.id)
	if !ok {
		return nil, false
	}
	return &CoordinateSystem{graph: cs.graph, id: id}, true
}

// IsChildOf reports whether parent is the direct parent of this node.
func (cs *CoordinateSystem) IsChildOf(parent *CoordinateSystem) bool {
	p, ok := cs.Parent()
	return ok && parent != nil && p.graph == parent.graph && p.id == parent.id
}

// TransformToParent returns the transform into the parent. ok is false for roots.
func (cs *CoordinateSystem) TransformToParent() (transform.Transform, bool) {
	return cs.graph.TransformToParent(cs.id)
}

// ComputeTransformTo returns the transform taking coordinates in this system into target.
func (cs *CoordinateSystem) ComputeTransformTo(target *CoordinateSystem) (transform.Transform, error) {
	if err := cs.checkSameGraph(target); err != nil {
		return transform.Transform{}, err
	}
	return cs.graph.ComputeTransform(cs.id, target.id)
}

// Traceback returns the names from this node up to its root.
func (cs *CoordinateSystem) Traceback() ([]string, error) {
	ids, err := cs.graph.Traceback(cs.id)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(ids))
	for _, id := range ids {
		names = append(names, cs.graph.Name(id))
	}
	return names, nil
}
