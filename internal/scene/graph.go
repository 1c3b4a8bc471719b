// Package scene keeps hierarchical placements in a flat arena. Nodes are
// addressed by stable integer handles and only store their parent handle,
// so there are no parent/child pointer cycles to manage.
package scene

import (
	"errors"
	"fmt"

	"github.com/go-gl/mathgl/mgl32"
)

type Handle int32

// NoParent marks a root node.
const NoParent Handle = -1

var ErrNoNode = errors.New("scene: no such node")

type node struct {
	name     string
	parent   Handle
	local    mgl32.Mat4
	children []Handle
}

type Graph struct {
	nodes []node
}

func New() *Graph { return &Graph{} }

func (g *Graph) Len() int { return len(g.nodes) }

func (g *Graph) valid(h Handle) bool { return h >= 0 && int(h) < len(g.nodes) }

// Add appends a node under parent. Parents always precede their children in
// the arena, which World and Walk rely on.
func (g *Graph) Add(parent Handle, name string, local mgl32.Mat4) (Handle, error) {
	if parent != NoParent && !g.valid(parent) {
		return 0, fmt.Errorf("%w: parent %d", ErrNoNode, parent)
	}
	h := Handle(len(g.nodes))
	g.nodes = append(g.nodes, node{name: name, parent: parent, local: local})
	if parent != NoParent {
		g.nodes[parent].children = append(g.nodes[parent].children, h)
	}
	return h, nil
}

func (g *Graph) SetLocal(h Handle, local mgl32.Mat4) error {
	if !g.valid(h) {
		return fmt.Errorf("%w: %d", ErrNoNode, h)
	}
	g.nodes[h].local = local
	return nil
}

func (g *Graph) Local(h Handle) mgl32.Mat4 { return g.nodes[h].local }
func (g *Graph) Parent(h Handle) Handle    { return g.nodes[h].parent }
func (g *Graph) Name(h Handle) string      { return g.nodes[h].name }

func (g *Graph) Children(h Handle) []Handle {
	out := make([]Handle, len(g.nodes[h].children))
	copy(out, g.nodes[h].children)
	return out
}

// World composes the local transforms from the root down to h.
func (g *Graph) World(h Handle) (mgl32.Mat4, error) {
	if !g.valid(h) {
		return mgl32.Mat4{}, fmt.Errorf("%w: %d", ErrNoNode, h)
	}
	m := g.nodes[h].local
	for p := g.nodes[h].parent; p != NoParent; p = g.nodes[p].parent {
		m = g.nodes[p].local.Mul4(m)
	}
	return m, nil
}

// Walk visits every node in arena order with its world transform, computing
// each transform once. Returning false stops the walk.
func (g *Graph) Walk(fn func(h Handle, world mgl32.Mat4) bool) {
	worlds := make([]mgl32.Mat4, len(g.nodes))
	for i, n := range g.nodes {
		if n.parent == NoParent {
			worlds[i] = n.local
		} else {
			worlds[i] = worlds[n.parent].Mul4(n.local)
		}
		if !fn(Handle(i), worlds[i]) {
			return
		}
	}
}
