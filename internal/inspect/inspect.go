// Package inspect prints human-readable summaries of meshes.
package inspect

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"slices"
	"strings"
	"text/tabwriter"

	"multimesh/internal/domain"
	"multimesh/internal/mesherr"

	"github.com/dustin/go-humanize"
	"github.com/zeebo/xxh3"
)

var sections = []struct {
	title string
	kind  domain.EntityKind
}{
	{"Node groups", domain.KindNode},
	{"Element groups", domain.KindElement},
	{"Vector groups", domain.KindVector},
	{"Other groups", domain.KindOther},
}

// GroupSummary describes one group of a mesh.
type GroupSummary struct {
	Kind        domain.EntityKind
	Name        domain.Name
	Len         int
	Attributes  []string
	Fingerprint uint64
}

// Summarize collects a GroupSummary for every group of src, kind by kind.
func Summarize(src domain.Source) ([]GroupSummary, error) {
	var out []GroupSummary
	for _, s := range sections {
		for g := range src.Groups(s.kind) {
			sum, err := summarizeGroup(g, s.kind)
			if err != nil {
				return nil, err
			}
			out = append(out, sum)
		}
	}
	return out, nil
}

func summarizeGroup(g domain.SourceGroup, kind domain.EntityKind) (GroupSummary, error) {
	md := g.Metadata()
	sum := GroupSummary{Kind: kind, Name: md.Name, Len: md.Len}

	var names []domain.AttrName
	h := xxh3.New()
	for i := range md.Len {
		item, ok := g.ItemAt(i)
		if !ok {
			return GroupSummary{}, mesherr.BrokenInvariant("group %s reports %d items but item %d is missing", md.Name, md.Len, i)
		}
		hashEntity(h, item)
		for name := range item.Attributes().All() {
			names = append(names, name)
		}
	}

	slices.SortFunc(names, domain.AttrName.Compare)
	names = slices.CompactFunc(names, func(a, b domain.AttrName) bool { return a.Compare(b) == 0 })
	for _, n := range names {
		sum.Attributes = append(sum.Attributes, n.String())
	}
	sum.Fingerprint = h.Sum64()
	return sum, nil
}

// hashEntity feeds a length-prefixed encoding of e into h so that distinct
// entities cannot produce the same byte stream.
func hashEntity(h *xxh3.Hasher, e domain.Entity) {
	var buf [8]byte
	writeUint := func(v uint64) {
		binary.LittleEndian.PutUint64(buf[:], v)
		h.Write(buf[:])
	}
	writeString := func(s string) {
		writeUint(uint64(len(s)))
		h.WriteString(s)
	}

	writeUint(uint64(e.Kind()))
	switch v := e.(type) {
	case *domain.Node:
		writeUint(uint64(len(v.Position)))
		for _, f := range v.Position {
			writeUint(math.Float64bits(f))
		}
	case *domain.Vector:
		writeUint(uint64(len(v.Components)))
		for _, f := range v.Components {
			writeUint(math.Float64bits(f))
		}
	case *domain.Element:
		writeUint(uint64(len(v.Indices)))
		for _, idx := range v.Indices {
			writeUint(uint64(idx))
		}
	}

	attrs := e.Attributes()
	writeUint(uint64(attrs.Len()))
	for name, value := range attrs.All() {
		if key, ok := name.Key(); ok {
			writeUint(1)
			writeString(key)
		} else {
			idx, _ := name.Index()
			writeUint(0)
			writeUint(uint64(idx))
		}
		writeString(value)
	}
}

// WriteMetadata writes the dimension of src followed by a table of groups
// per entity kind.
func WriteMetadata(w io.Writer, src domain.Source) error {
	groups, err := Summarize(src)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "General metadata")
	fmt.Fprintln(tw, "----------------")
	fmt.Fprintf(tw, "Mesh dimension: %d\n\n", src.Metadata().Dimension)

	for _, s := range sections {
		fmt.Fprintf(tw, "%s:\n", s.title)

		n := 0
		for _, g := range groups {
			if g.Kind != s.kind {
				continue
			}
			if n == 0 {
				fmt.Fprintln(tw, "#\tname\tlen\tattrs\tfingerprint")
			}
			attrs := "-"
			if len(g.Attributes) > 0 {
				attrs = strings.Join(g.Attributes, ",")
			}
			fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%016x\n", n, g.Name.Raw(), humanize.Comma(int64(g.Len)), attrs, g.Fingerprint)
			n++
		}
		if n == 0 {
			fmt.Fprintln(tw, "There are no such groups.")
		}
	}

	if err := tw.Flush(); err != nil {
		return mesherr.Io(err)
	}
	return nil
}
