package scene

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"

	"voxelkit.ai/internal/format/vox"
)

// Instance is one model referenced by a shape node, with the world placement
// of its local voxel grid.
type Instance struct {
	Name      string
	Node      Handle
	Model     int
	Placement mgl32.Mat4
}

// maxDepth bounds hierarchy recursion; real files nest a handful of levels.
const maxDepth = 64

// FromVox rebuilds the scene hierarchy of f into a Graph. Files without a
// scene graph yield one unplaced instance per model.
//
// Every shape gets its own node below its transform, holding the pivot
// offset that centres the model on the transform origin.
func FromVox(f *vox.File) (*Graph, []Instance, error) {
	g := New()
	if len(f.Nodes) == 0 {
		out := make([]Instance, 0, len(f.Models))
		for i := range f.Models {
			name := fmt.Sprintf("model %d", i)
			h, _ := g.Add(NoParent, name, mgl32.Ident4())
			out = append(out, Instance{Name: name, Node: h, Model: i, Placement: mgl32.Ident4()})
		}
		return g, out, nil
	}

	root, ok := f.Nodes[0]
	if !ok || root.Kind != vox.NodeTransform {
		return nil, nil, fmt.Errorf("scene: vox root node 0 must be a transform")
	}
	b := &voxBuilder{f: f, g: g, seen: map[int32]bool{}}
	if err := b.visit(0, NoParent, ""); err != nil {
		return nil, nil, err
	}
	out := make([]Instance, 0, len(b.shapes))
	for _, s := range b.shapes {
		w, err := g.World(s.Node)
		if err != nil {
			return nil, nil, err
		}
		s.Placement = w
		out = append(out, s)
	}
	return g, out, nil
}

type voxBuilder struct {
	f      *vox.File
	g      *Graph
	seen   map[int32]bool
	shapes []Instance
	depth  int
}

func (b *voxBuilder) visit(id int32, parent Handle, name string) error {
	if b.seen[id] {
		return fmt.Errorf("scene: vox node %d referenced twice", id)
	}
	b.seen[id] = true
	if b.depth++; b.depth > maxDepth {
		return fmt.Errorf("scene: vox hierarchy deeper than %d", maxDepth)
	}
	defer func() { b.depth-- }()

	n, ok := b.f.Nodes[id]
	if !ok {
		return fmt.Errorf("scene: vox node %d missing", id)
	}
	switch n.Kind {
	case vox.NodeTransform:
		rot, err := VoxRotation(n.Frame.Rotation)
		if err != nil {
			return fmt.Errorf("node %d: %w", id, err)
		}
		t := n.Frame.Translation
		local := mgl32.Translate3D(float32(t[0]), float32(t[1]), float32(t[2])).Mul4(rot)
		h, err := b.g.Add(parent, n.Name, local)
		if err != nil {
			return err
		}
		return b.visit(n.Child, h, n.Name)
	case vox.NodeGroup:
		h, err := b.g.Add(parent, n.Name, mgl32.Ident4())
		if err != nil {
			return err
		}
		for _, c := range n.Children {
			if err := b.visit(c, h, ""); err != nil {
				return err
			}
		}
		return nil
	case vox.NodeShape:
		for _, m := range n.Models {
			if m < 0 || int(m) >= len(b.f.Models) {
				return fmt.Errorf("scene: shape %d references model %d of %d", id, m, len(b.f.Models))
			}
			size := b.f.Models[m].Size
			pivot := mgl32.Translate3D(-float32(size[0]/2), -float32(size[1]/2), -float32(size[2]/2))
			label := name
			if label == "" {
				label = fmt.Sprintf("model %d", m)
			}
			h, err := b.g.Add(parent, label, pivot)
			if err != nil {
				return err
			}
			b.shapes = append(b.shapes, Instance{Name: label, Node: h, Model: int(m)})
		}
		return nil
	default:
		return fmt.Errorf("scene: vox node %d has unknown kind %d", id, n.Kind)
	}
}
