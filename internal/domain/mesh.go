package domain

import (
	"iter"

	"multimesh/internal/mesherr"
)

// noGroup marks a kind with no open group.
const noGroup = -1

// Mesh is a face-vertex mesh: typed groups of nodes, elements, vectors and
// other entities plus a scalar dimension.
//
// It is not optimized for any particular workload; it is the default
// container that parsers fill and writers read.
type Mesh struct {
	dimension int

	nodes    []*Group[Node]
	elements []*Group[Element]
	vectors  []*Group[Vector]
	others   []*Group[Other]

	// open holds, per kind, the index of the group currently accepting
	// entities, or noGroup.
	open [4]int
}

// NewMesh creates an empty mesh with dimension 0.
func NewMesh() *Mesh {
	return &Mesh{open: [4]int{noGroup, noGroup, noGroup, noGroup}}
}

// Dimension returns the mesh dimension, 0 when never set.
func (m *Mesh) Dimension() int { return m.dimension }

// NodeGroups returns the node groups. The slice must not be modified.
func (m *Mesh) NodeGroups() []*Group[Node] { return m.nodes }

// ElementGroups returns the element groups. The slice must not be modified.
func (m *Mesh) ElementGroups() []*Group[Element] { return m.elements }

// VectorGroups returns the vector groups. The slice must not be modified.
func (m *Mesh) VectorGroups() []*Group[Vector] { return m.vectors }

// OtherGroups returns the other groups. The slice must not be modified.
func (m *Mesh) OtherGroups() []*Group[Other] { return m.others }

func (m *Mesh) groupCount() int {
	return len(m.nodes) + len(m.elements) + len(m.vectors) + len(m.others)
}

// MaxDimension bounds the coordinate count of a node. Readers reject larger
// dimensions since every node allocates one slot per coordinate.
const MaxDimension = 255

// SetDimension sets the mesh dimension. Changing it once groups exist would
// invalidate stored positions, so that is rejected.
func (m *Mesh) SetDimension(dim int) error {
	if m.groupCount() > 0 && dim != m.dimension {
		return mesherr.BrokenInvariant("dimension change from %d to %d after groups were added", m.dimension, dim)
	}
	m.dimension = dim
	return nil
}

// GroupBegin appends a new group and makes it the open group of its kind.
func (m *Mesh) GroupBegin(group GroupData) error {
	kind := group.Kind()
	switch kind {
	case KindNode:
		m.nodes = append(m.nodes, NewGroup[Node](group))
		m.open[kind] = len(m.nodes) - 1
	case KindElement:
		m.elements = append(m.elements, NewGroup[Element](group))
		m.open[kind] = len(m.elements) - 1
	case KindVector:
		m.vectors = append(m.vectors, NewGroup[Vector](group))
		m.open[kind] = len(m.vectors) - 1
	case KindOther:
		m.others = append(m.others, NewGroup[Other](group))
		m.open[kind] = len(m.others) - 1
	default:
		return mesherr.BrokenInvariant("group %s has invalid kind %s", group.Name(), kind)
	}
	return nil
}

// GroupEnd closes the open group. Ending any other group is a protocol error.
func (m *Mesh) GroupEnd(group GroupData) error {
	if _, err := m.openData(group); err != nil {
		return err
	}
	m.open[group.Kind()] = noGroup
	return nil
}

// openData checks that group is the open group of its kind.
func (m *Mesh) openData(group GroupData) (int, error) {
	kind := group.Kind()
	if kind < KindNode || kind > KindOther {
		return 0, mesherr.BrokenInvariant("group %s has invalid kind %s", group.Name(), kind)
	}
	idx := m.open[kind]
	if idx == noGroup {
		return 0, mesherr.BrokenInvariant("no open %s group, GroupBegin was not invoked for %s (uid %d)", kind, group.Name(), group.UID())
	}

	var current GroupData
	switch kind {
	case KindNode:
		current = m.nodes[idx].Data
	case KindElement:
		current = m.elements[idx].Data
	case KindVector:
		current = m.vectors[idx].Data
	default:
		current = m.others[idx].Data
	}
	if !current.Same(group) {
		return 0, mesherr.BrokenInvariant("group %s (uid %d) is not the open %s group (uid %d)", group.Name(), group.UID(), kind, current.UID())
	}
	return idx, nil
}

func (m *Mesh) checkKind(e Entity, group GroupData) error {
	if e.Kind() != group.Kind() {
		return mesherr.BrokenInvariant("%s entity added to %s group %s", e.Kind(), group.Kind(), group.Name())
	}
	return nil
}

// AddNode appends a node to the open node group.
func (m *Mesh) AddNode(node *Node, group GroupData) error {
	if err := m.checkKind(node, group); err != nil {
		return err
	}
	idx, err := m.openData(group)
	if err != nil {
		return err
	}
	g := m.nodes[idx]
	g.Items = append(g.Items, *node.Clone())
	return nil
}

// AddElement appends an element to the open element group.
func (m *Mesh) AddElement(element *Element, group GroupData) error {
	if err := m.checkKind(element, group); err != nil {
		return err
	}
	idx, err := m.openData(group)
	if err != nil {
		return err
	}
	g := m.elements[idx]
	g.Items = append(g.Items, *element.Clone())
	return nil
}

// AddVector appends a vector to the open vector group.
func (m *Mesh) AddVector(vector *Vector, group GroupData) error {
	if err := m.checkKind(vector, group); err != nil {
		return err
	}
	idx, err := m.openData(group)
	if err != nil {
		return err
	}
	g := m.vectors[idx]
	g.Items = append(g.Items, *vector.Clone())
	return nil
}

// AddEntity stores any entity in the open group of the same kind.
func (m *Mesh) AddEntity(entity Entity, group GroupData) error {
	switch e := entity.(type) {
	case *Node:
		return m.AddNode(e, group)
	case *Element:
		return m.AddElement(e, group)
	case *Vector:
		return m.AddVector(e, group)
	case *Other:
		if err := m.checkKind(e, group); err != nil {
			return err
		}
		idx, err := m.openData(group)
		if err != nil {
			return err
		}
		g := m.others[idx]
		g.Items = append(g.Items, *e.Clone())
		return nil
	default:
		return mesherr.BrokenInvariant("unsupported entity type %T", entity)
	}
}

// Metadata implements Source.
func (m *Mesh) Metadata() MeshMetadata {
	return MeshMetadata{Dimension: m.dimension}
}

// Groups implements Source.
func (m *Mesh) Groups(kind EntityKind) iter.Seq[SourceGroup] {
	switch kind {
	case KindNode:
		return groupSeq(m.nodes, func(n *Node) Entity { return n.Clone() })
	case KindElement:
		return groupSeq(m.elements, func(e *Element) Entity { return e.Clone() })
	case KindVector:
		return groupSeq(m.vectors, func(v *Vector) Entity { return v.Clone() })
	case KindOther:
		return groupSeq(m.others, func(o *Other) Entity { return o.Clone() })
	default:
		return func(func(SourceGroup) bool) {}
	}
}

func groupSeq[E any](groups []*Group[E], clone func(*E) Entity) iter.Seq[SourceGroup] {
	return func(yield func(SourceGroup) bool) {
		for _, g := range groups {
			if !yield(groupView[E]{group: g, clone: clone}) {
				return
			}
		}
	}
}

// groupView adapts a typed group to SourceGroup.
type groupView[E any] struct {
	group *Group[E]
	clone func(*E) Entity
}

func (v groupView[E]) Metadata() GroupMetadata {
	return GroupMetadata{Name: v.group.Data.Name(), Len: len(v.group.Items)}
}

func (v groupView[E]) ItemAt(i int) (Entity, bool) {
	if i < 0 || i >= len(v.group.Items) {
		return nil, false
	}
	return v.clone(&v.group.Items[i]), true
}
