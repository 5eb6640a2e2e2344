package domain

// UnknownSize is the size hint of a group whose length is not announced.
const UnknownSize = -1

// GroupData describes a group of entities while it is being parsed.
//
// Two GroupData values denote the same group exactly when their UIDs are
// equal. Name, kind and size take no part in identity, so a group reopened
// later in a stream under the same name is a different group.
type GroupData struct {
	uid  uint64
	name Name
	size int
	kind EntityKind
}

// NewGroupData creates group metadata. The uid comes from the driving
// parser's monotonic counter; size < 0 means no hint.
func NewGroupData(uid uint64, name Name, size int, kind EntityKind) GroupData {
	if size < 0 {
		size = UnknownSize
	}
	return GroupData{uid: uid, name: name, size: size, kind: kind}
}

// UID returns the parse-scoped identity.
func (g GroupData) UID() uint64 { return g.uid }

// Name returns the validated group name.
func (g GroupData) Name() Name { return g.name }

// Kind returns the kind of every entity in the group.
func (g GroupData) Kind() EntityKind { return g.kind }

// SizeHint returns the announced entity count, if any. It is a capacity hint,
// not a bound.
func (g GroupData) SizeHint() (int, bool) {
	if g.size < 0 {
		return 0, false
	}
	return g.size, true
}

// Same reports whether g and other are the same group.
func (g GroupData) Same(other GroupData) bool {
	return g.uid == other.uid
}

// Group owns the entities of one group.
type Group[E any] struct {
	Data  GroupData
	Items []E
}

// maxReserve caps up-front allocation so a forged count in a file header
// cannot exhaust memory before a single entity is read.
const maxReserve = 1 << 20

// NewGroup allocates storage, reserving the size hint when present.
func NewGroup[E any](data GroupData) *Group[E] {
	g := &Group[E]{Data: data}
	if n, ok := data.SizeHint(); ok {
		g.Items = make([]E, 0, min(n, maxReserve))
	}
	return g
}

// Len returns the number of entities.
func (g *Group[E]) Len() int {
	return len(g.Items)
}
