package domain

import (
	"fmt"
	"slices"
)

// EntityKind is the category of a mesh primitive
type EntityKind int

const (
	// KindNode is a mesh node/vertex.
	KindNode EntityKind = iota
	// KindElement is a mesh element/face/volume.
	KindElement
	// KindVector is a per-mesh vector such as a normal.
	KindVector
	// KindOther is anything that fits none of the above.
	KindOther
)

// EntityKinds lists every kind in serialization order.
var EntityKinds = []EntityKind{KindNode, KindElement, KindVector, KindOther}

func (k EntityKind) String() string {
	switch k {
	case KindNode:
		return "node"
	case KindElement:
		return "element"
	case KindVector:
		return "vector"
	case KindOther:
		return "other"
	default:
		return fmt.Sprintf("EntityKind(%d)", int(k))
	}
}

// ParseEntityKind parses the String form of a kind.
func ParseEntityKind(s string) (EntityKind, error) {
	for _, k := range EntityKinds {
		if k.String() == s {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown entity kind %q", s)
}

// Entity is a mesh primitive with attributes.
//
// The set of implementations is closed: *Node, *Element, *Vector and *Other.
type Entity interface {
	Kind() EntityKind
	Attributes() *Attributes
	entity()
}

// Node is a mesh vertex. Position has one component per mesh dimension.
type Node struct {
	Position []float64
	Attrs    Attributes
}

func (*Node) Kind() EntityKind          { return KindNode }
func (n *Node) Attributes() *Attributes { return &n.Attrs }
func (*Node) entity()                   {}

// Element references nodes by index. Indices are kept exactly as the source
// format wrote them; no base conversion is applied.
type Element struct {
	Indices []int
	Attrs   Attributes
}

func (*Element) Kind() EntityKind          { return KindElement }
func (e *Element) Attributes() *Attributes { return &e.Attrs }
func (*Element) entity()                   {}

// Vector is a free vector with one component per mesh dimension.
type Vector struct {
	Components []float64
	Attrs      Attributes
}

func (*Vector) Kind() EntityKind          { return KindVector }
func (v *Vector) Attributes() *Attributes { return &v.Attrs }
func (*Vector) entity()                   {}

// Other carries attributes only.
type Other struct {
	Attrs Attributes
}

func (*Other) Kind() EntityKind          { return KindOther }
func (o *Other) Attributes() *Attributes { return &o.Attrs }
func (*Other) entity()                   {}

// Clone returns a deep copy.
func (n *Node) Clone() *Node {
	return &Node{Position: slices.Clone(n.Position), Attrs: n.Attrs.Clone()}
}

// Clone returns a deep copy.
func (e *Element) Clone() *Element {
	return &Element{Indices: slices.Clone(e.Indices), Attrs: e.Attrs.Clone()}
}

// Clone returns a deep copy.
func (v *Vector) Clone() *Vector {
	return &Vector{Components: slices.Clone(v.Components), Attrs: v.Attrs.Clone()}
}

// Clone returns a deep copy.
func (o *Other) Clone() *Other {
	return &Other{Attrs: o.Attrs.Clone()}
}

// CloneEntity deep-copies any entity.
func CloneEntity(e Entity) Entity {
	switch v := e.(type) {
	case *Node:
		return v.Clone()
	case *Element:
		return v.Clone()
	case *Vector:
		return v.Clone()
	case *Other:
		return v.Clone()
	default:
		return nil
	}
}
