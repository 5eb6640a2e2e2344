package domain

import (
	"cmp"
	"iter"
	"slices"
	"strconv"
)

// AttrName identifies an attribute either by position or by key.
//
// Formats that list attribute values without names (MEDIT reference ids)
// use Index; formats with named properties (PLY) use Key.
type AttrName struct {
	key   string
	index int
	isKey bool
}

// Index returns a positional attribute name.
func Index(i int) AttrName {
	return AttrName{index: i}
}

// Key returns a nominal attribute name.
func Key(k string) AttrName {
	return AttrName{key: k, isKey: true}
}

// IsKey reports whether the name is nominal.
func (n AttrName) IsKey() bool {
	return n.isKey
}

// Index returns the position and true for positional names.
func (n AttrName) Index() (int, bool) {
	if n.isKey {
		return 0, false
	}
	return n.index, true
}

// Key returns the key and true for nominal names.
func (n AttrName) Key() (string, bool) {
	if !n.isKey {
		return "", false
	}
	return n.key, true
}

// Compare orders names: every Index before every Key, then by value.
func (n AttrName) Compare(other AttrName) int {
	if n.isKey != other.isKey {
		if n.isKey {
			return 1
		}
		return -1
	}
	if n.isKey {
		return cmp.Compare(n.key, other.key)
	}
	return cmp.Compare(n.index, other.index)
}

func (n AttrName) String() string {
	if n.isKey {
		return n.key
	}
	return "#" + strconv.Itoa(n.index)
}

// Attribute is a single name/value pair.
type Attribute struct {
	Name  AttrName
	Value string
}

// Attributes is an ordered attribute store. Names are unique; entries are
// kept sorted by AttrName so At enumerates them in a stable order.
//
// The zero value is empty and ready to use.
type Attributes struct {
	entries []Attribute
}

// NewAttributes builds a store from pairs; later pairs win on duplicate names.
func NewAttributes(pairs ...Attribute) Attributes {
	var a Attributes
	for _, p := range pairs {
		a.Set(p.Name, p.Value)
	}
	return a
}

func (a *Attributes) search(name AttrName) (int, bool) {
	return slices.BinarySearchFunc(a.entries, name, func(e Attribute, n AttrName) int {
		return e.Name.Compare(n)
	})
}

// Get returns the value stored under name.
func (a *Attributes) Get(name AttrName) (string, bool) {
	i, ok := a.search(name)
	if !ok {
		return "", false
	}
	return a.entries[i].Value, true
}

// At returns the i-th attribute in name order. It reports false for every
// index outside 0..Len()-1.
func (a *Attributes) At(i int) (AttrName, string, bool) {
	if i < 0 || i >= len(a.entries) {
		return AttrName{}, "", false
	}
	e := a.entries[i]
	return e.Name, e.Value, true
}

// Set stores value under name, overwriting any previous value.
func (a *Attributes) Set(name AttrName, value string) {
	i, ok := a.search(name)
	if ok {
		a.entries[i].Value = value
		return
	}
	a.entries = slices.Insert(a.entries, i, Attribute{Name: name, Value: value})
}

// Len returns the number of attributes.
func (a *Attributes) Len() int {
	return len(a.entries)
}

// All iterates attributes in name order.
func (a *Attributes) All() iter.Seq2[AttrName, string] {
	return func(yield func(AttrName, string) bool) {
		for _, e := range a.entries {
			if !yield(e.Name, e.Value) {
				return
			}
		}
	}
}

// Clone returns an independent copy.
func (a *Attributes) Clone() Attributes {
	return Attributes{entries: slices.Clone(a.entries)}
}
