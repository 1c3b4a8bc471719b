package vox

import (
	"fmt"
	"strconv"
	"strings"
)

type NodeKind int

const (
	NodeTransform NodeKind = iota + 1
	NodeGroup
	NodeShape
)

// Frame is the first animation frame of a transform node.
type Frame struct {
	Translation [3]int32
	// Rotation is the packed rotation byte (_r); 4 is the identity.
	Rotation uint8
}

type Node struct {
	ID    int32
	Kind  NodeKind
	Name  string
	Attrs map[string]string

	// Transform nodes.
	Child int32
	Layer int32
	Frame Frame

	// Group nodes.
	Children []int32

	// Shape nodes.
	Models []int32
}

const identityRotation = 0b0000100 // row0 -> x, row1 -> y, all positive

func parseNodes(chunks []Chunk) (map[int32]Node, error) {
	nodes := map[int32]Node{}
	for _, c := range chunks {
		var (
			n   Node
			err error
		)
		switch c.ID {
		case "nTRN":
			n, err = parseTransform(c.Content)
		case "nGRP":
			n, err = parseGroup(c.Content)
		case "nSHP":
			n, err = parseShape(c.Content)
		default:
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("%s: %w", c.ID, err)
		}
		if _, dup := nodes[n.ID]; dup {
			return nil, fmt.Errorf("vox: duplicate scene node id %d", n.ID)
		}
		nodes[n.ID] = n
	}
	return nodes, nil
}

func parseTransform(b []byte) (Node, error) {
	r := &reader{b: b}
	n := Node{Kind: NodeTransform, Frame: Frame{Rotation: identityRotation}}
	n.ID = r.int32("node id")
	n.Attrs = r.dict("node attributes")
	n.Child = r.int32("child id")
	_ = r.int32("reserved id")
	n.Layer = r.int32("layer id")
	frames := r.count("frame count")
	for i := 0; i < frames && r.err == nil; i++ {
		d := r.dict("frame")
		if i > 0 || r.err != nil {
			continue
		}
		if s, ok := d["_t"]; ok {
			t, err := parseTranslation(s)
			if err != nil {
				return n, err
			}
			n.Frame.Translation = t
		}
		if s, ok := d["_r"]; ok {
			v, err := strconv.ParseUint(s, 10, 8)
			if err != nil {
				return n, fmt.Errorf("vox: bad _r value %q", s)
			}
			n.Frame.Rotation = uint8(v)
		}
	}
	n.Name = n.Attrs["_name"]
	return n, r.err
}

func parseGroup(b []byte) (Node, error) {
	r := &reader{b: b}
	n := Node{Kind: NodeGroup}
	n.ID = r.int32("node id")
	n.Attrs = r.dict("node attributes")
	count := r.count("child count")
	if r.err == nil && count*4 > r.remaining() {
		r.fail("group children")
	}
	for i := 0; i < count && r.err == nil; i++ {
		n.Children = append(n.Children, r.int32("child id"))
	}
	n.Name = n.Attrs["_name"]
	return n, r.err
}

func parseShape(b []byte) (Node, error) {
	r := &reader{b: b}
	n := Node{Kind: NodeShape}
	n.ID = r.int32("node id")
	n.Attrs = r.dict("node attributes")
	count := r.count("model count")
	for i := 0; i < count && r.err == nil; i++ {
		n.Models = append(n.Models, r.int32("model id"))
		_ = r.dict("model attributes")
	}
	n.Name = n.Attrs["_name"]
	return n, r.err
}

func parseTranslation(s string) ([3]int32, error) {
	var t [3]int32
	f := strings.Fields(s)
	if len(f) != 3 {
		return t, fmt.Errorf("vox: bad _t value %q", s)
	}
	for i, p := range f {
		v, err := strconv.ParseInt(p, 10, 32)
		if err != nil {
			return t, fmt.Errorf("vox: bad _t value %q", s)
		}
		t[i] = int32(v)
	}
	return t, nil
}
