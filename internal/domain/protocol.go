package domain

import (
	"iter"

	"multimesh/internal/mesherr"
)

// Target receives a mesh pushed by a format parser.
//
// Per group the calls arrive in the order GroupBegin, zero or more Add calls,
// GroupEnd. SetDimension is invoked before the first group.
type Target interface {
	SetDimension(dim int) error

	// GroupBegin is invoked immediately before the entities of a group.
	GroupBegin(group GroupData) error

	// AddEntity receives every entity for which the target has no
	// kind-specialized method.
	AddEntity(entity Entity, group GroupData) error

	// GroupEnd is invoked immediately after the entities of a group.
	GroupEnd(group GroupData) error
}

// NodeTarget is implemented by targets that store nodes specially.
type NodeTarget interface {
	AddNode(node *Node, group GroupData) error
}

// ElementTarget is implemented by targets that store elements specially.
type ElementTarget interface {
	AddElement(element *Element, group GroupData) error
}

// VectorTarget is implemented by targets that store vectors specially.
type VectorTarget interface {
	AddVector(vector *Vector, group GroupData) error
}

// DeliverNode hands a node to t, preferring AddNode over AddEntity.
func DeliverNode(t Target, node *Node, group GroupData) error {
	if nt, ok := t.(NodeTarget); ok {
		return nt.AddNode(node, group)
	}
	return t.AddEntity(node, group)
}

// DeliverElement hands an element to t, preferring AddElement over AddEntity.
func DeliverElement(t Target, element *Element, group GroupData) error {
	if et, ok := t.(ElementTarget); ok {
		return et.AddElement(element, group)
	}
	return t.AddEntity(element, group)
}

// DeliverVector hands a vector to t, preferring AddVector over AddEntity.
func DeliverVector(t Target, vector *Vector, group GroupData) error {
	if vt, ok := t.(VectorTarget); ok {
		return vt.AddVector(vector, group)
	}
	return t.AddEntity(vector, group)
}

// Deliver dispatches any entity to the matching Deliver helper.
func Deliver(t Target, entity Entity, group GroupData) error {
	switch e := entity.(type) {
	case *Node:
		return DeliverNode(t, e, group)
	case *Element:
		return DeliverElement(t, e, group)
	case *Vector:
		return DeliverVector(t, e, group)
	default:
		return t.AddEntity(entity, group)
	}
}

// MeshMetadata describes a whole mesh.
type MeshMetadata struct {
	// Dimension is usually 2 or 3; 0 when never set.
	Dimension int
}

// GroupMetadata describes one readable group.
type GroupMetadata struct {
	Name Name
	Len  int
}

// Source exposes a mesh to a format writer.
type Source interface {
	Metadata() MeshMetadata

	// Groups yields the groups of one kind in insertion order. Every call
	// starts a new traversal and none of them mutate the source.
	Groups(kind EntityKind) iter.Seq[SourceGroup]
}

// SourceGroup gives random access to the entities of one group.
type SourceGroup interface {
	Metadata() GroupMetadata

	// ItemAt returns an owned copy of the i-th entity, or false once
	// i >= Metadata().Len.
	ItemAt(i int) (Entity, bool)
}

// Copy replays src into dst through the push protocol, assigning fresh group
// UIDs. Groups are replayed kind by kind in EntityKinds order.
func Copy(src Source, dst Target) error {
	if dim := src.Metadata().Dimension; dim > 0 {
		if err := dst.SetDimension(dim); err != nil {
			return err
		}
	}

	var uid uint64
	for _, kind := range EntityKinds {
		for sg := range src.Groups(kind) {
			md := sg.Metadata()
			uid++
			gd := NewGroupData(uid, md.Name, md.Len, kind)
			if err := dst.GroupBegin(gd); err != nil {
				return err
			}
			for i := 0; i < md.Len; i++ {
				item, ok := sg.ItemAt(i)
				if !ok {
					return mesherr.BrokenInvariant("group %s reports %d items but item %d is missing", md.Name, md.Len, i)
				}
				if err := Deliver(dst, item, gd); err != nil {
					return err
				}
			}
			if err := dst.GroupEnd(gd); err != nil {
				return err
			}
		}
	}
	return nil
}
