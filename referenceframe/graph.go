// Package referenceframe maintains the tree of coordinate systems linking trackers, tools and
// displayed objects, and computes the transform between any two of them.
package referenceframe

import (
	"sync"

	"github.com/pkg/errors"

	"go.igtrack.org/tracking/transform"
)

// NodeID is a stable handle to a node in a Graph.
type NodeID int

// NoParent marks a root node.
const NoParent NodeID = -1

type node struct {
	name     string
	parent   NodeID
	toParent transform.Transform
	alive    bool
}

// Graph is an arena of coordinate systems. Parent links are indices into the arena, so
// detaching or removing a node never leaves a dangling reference. It is safe for concurrent use;
// each node is expected to be written only by the entity that owns it.
type Graph struct {
	mu    sync.RWMutex
	nodes []node
}

// NewGraph returns an empty graph.
func NewGraph() *Graph {
	return &Graph{}
}

// NewCoordinateSystem adds a root node holding an identity transform.
func (g *Graph) NewCoordinateSystem(name string) *CoordinateSystem {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.nodes = append(g.nodes, node{name: name, parent: NoParent, toParent: transform.Identity(), alive: true})
	return &CoordinateSystem{graph: g, id: NodeID(len(g.nodes) - 1)}
}

func (g *Graph) lookup(id NodeID) (*node, error) {
	if id < 0 || int(id) >= len(g.nodes) || !g.nodes[id].alive {
		return nil, errors.Wrapf(ErrUnknownNode, "node %d", id)
	}
	return &g.nodes[id], nil
}

// Name returns the name given to a node.
func (g *Graph) Name(id NodeID) string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	n, err := g.lookup(id)
	if err != nil {
		return ""
	}
	return n.name
}

// Names returns the names of all live nodes in creation order.
func (g *Graph) Names() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	var names []string
	for _, n := range g.nodes {
		if n.alive {
			names = append(names, n.name)
		}
	}
	return names
}

// Parent returns the parent of id. ok is false for roots.
func (g *Graph) Parent(id NodeID) (parent NodeID, ok bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	n, err := g.lookup(id)
	if err != nil || n.parent == NoParent {
		return NoParent, false
	}
	return n.parent, true
}

// Children returns the direct children of id.
func (g *Graph) Children(id NodeID) []NodeID {
	g.mu.RLock()
	defer g.mu.RUnlock()
	var children []NodeID
	for i, n := range g.nodes {
		if n.alive && n.parent == id {
			children = append(children, NodeID(i))
		}
	}
	return children
}

// TransformToParent returns the transform from id into its parent. ok is false for roots.
func (g *Graph) TransformToParent(id NodeID) (tf transform.Transform, ok bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	n, err := g.lookup(id)
	if err != nil || n.parent == NoParent {
		return transform.Transform{}, false
	}
	return n.toParent, true
}

// SetTransformAndParent detaches id from its current parent and attaches it below parent with
// the given transform, in one step. It fails with ErrCycle if parent is id or one of its
// descendants.
func (g *Graph) SetTransformAndParent(id NodeID, tf transform.Transform, parent NodeID) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	child, err := g.lookup(id)
	if err != nil {
		return err
	}
	parentNode, err := g.lookup(parent)
	if err != nil {
		return err
	}
	for cur := parent; cur != NoParent; cur = g.nodes[cur].parent {
		if cur == id {
			return NewCycleError(child.name, parentNode.name)
		}
	}
	child.parent = parent
	child.toParent = tf
	return nil
}

// DetachFromParent makes id a root. Its stored transform is kept but no longer used.
func (g *Graph) DetachFromParent(id NodeID) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	n, err := g.lookup(id)
	if err != nil {
		return err
	}
	n.parent = NoParent
	return nil
}

// Remove deletes id. Its children become roots.
func (g *Graph) Remove(id NodeID) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	n, err := g.lookup(id)
	if err != nil {
		return err
	}
	for i := range g.nodes {
		if g.nodes[i].alive && g.nodes[i].parent == id {
			g.nodes[i].parent = NoParent
		}
	}
	n.alive = false
	n.parent = NoParent
	return nil
}

// Traceback returns id followed by each of its ancestors up to its root.
func (g *Graph) Traceback(id NodeID) ([]NodeID, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.traceback(id)
}

func (g *Graph) traceback(id NodeID) ([]NodeID, error) {
	if _, err := g.lookup(id); err != nil {
		return nil, err
	}
	var chain []NodeID
	for cur := id; cur != NoParent; cur = g.nodes[cur].parent {
		chain = append(chain, cur)
	}
	return chain, nil
}

// ComputeTransform returns the transform taking coordinates in src into dst. Both ancestor
// chains are walked to their lowest common ancestor; each side is composed leaf to root and the
// dst side is inverted. The result's window is the overlap of every edge on the path and its
// error is the sum of their errors. Nodes with no common ancestor yield ErrDisconnected.
func (g *Graph) ComputeTransform(src, dst NodeID) (transform.Transform, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	srcChain, err := g.traceback(src)
	if err != nil {
		return transform.Transform{}, err
	}
	dstChain, err := g.traceback(dst)
	if err != nil {
		return transform.Transform{}, err
	}

	srcDepth := make(map[NodeID]int, len(srcChain))
	for i, id := range srcChain {
		srcDepth[id] = i
	}
	lcaSrc, lcaDst := -1, -1
	for i, id := range dstChain {
		if depth, ok := srcDepth[id]; ok {
			lcaSrc, lcaDst = depth, i
			break
		}
	}
	if lcaSrc < 0 {
		return transform.Transform{}, NewDisconnectedError(g.nodes[src].name, g.nodes[dst].name)
	}

	srcToAncestor := g.composeUpward(srcChain[:lcaSrc])
	dstToAncestor := g.composeUpward(dstChain[:lcaDst])
	return transform.Compose(dstToAncestor.Inverse(), srcToAncestor), nil
}

// composeUpward composes the parent edges of chain, a leaf-first list of nodes, so that the
// leaf's edge is applied first.
func (g *Graph) composeUpward(chain []NodeID) transform.Transform {
	out := transform.NeutralIdentity()
	for _, id := range chain {
		out = transform.Compose(g.nodes[id].toParent, out)
	}
	return out
}
