package codec

import (
	"bufio"
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"

	"multimesh/internal/domain"
	"multimesh/internal/mesherr"
)

// plyTypes are the scalar type names a PLY header may declare.
var plyTypes = []string{
	"char", "uchar", "short", "ushort", "int", "uint", "float", "double",
	"int8", "uint8", "int16", "uint16", "int32", "uint32", "float32", "float64",
}

// PlyCodec reads and writes ASCII PLY documents.
//
// Every PLY element block maps to a group of Other entities named after the
// element, with one Key attribute per property. Property values are kept as
// written; list properties store their items joined by single spaces.
type PlyCodec struct{}

// NewPlyCodec creates a new PLY codec
func NewPlyCodec() *PlyCodec {
	return &PlyCodec{}
}

// Format returns the codec format identifier
func (c *PlyCodec) Format() string {
	return "ply"
}

type plyProperty struct {
	name string
	list bool
}

type plyElement struct {
	name       domain.Name
	count      int
	properties []plyProperty
}

// Deserialize parses a PLY document into t.
func (c *PlyCodec) Deserialize(r io.Reader, t domain.Target) error {
	tok, err := readTokenizer(r)
	if err != nil {
		return err
	}

	elements, err := readPlyHeader(tok)
	if err != nil {
		return err
	}

	var uid uint64
	for _, el := range elements {
		uid++
		group := domain.NewGroupData(uid, el.name, el.count, domain.KindOther)
		if err := t.GroupBegin(group); err != nil {
			return mesherr.External(err)
		}
		for range el.count {
			entity, err := readPlyRow(tok, el)
			if err != nil {
				return err
			}
			if err := domain.Deliver(t, entity, group); err != nil {
				return mesherr.External(err)
			}
		}
		if err := t.GroupEnd(group); err != nil {
			return mesherr.External(err)
		}
	}
	return nil
}

func readPlyHeader(tok *tokenizer) ([]*plyElement, error) {
	magic, ok := tok.Next()
	if !ok || magic != "ply" {
		return nil, mesherr.Syntax(tok.Line(), "document does not begin with ply")
	}
	if len(tok.RestOfLine()) > 0 {
		return nil, mesherr.Syntax(tok.Line(), "unexpected tokens after ply")
	}

	var elements []*plyElement
	for {
		keyword, ok := tok.Next()
		if !ok {
			return nil, mesherr.Syntax(tok.Line(), "missing end_header")
		}

		switch keyword {
		case "format":
			encoding, err := tok.ExpectInLine("format encoding")
			if err != nil {
				return nil, err
			}
			version, err := tok.ExpectInLine("format version")
			if err != nil {
				return nil, err
			}
			if encoding != "ascii" || version != "1.0" {
				return nil, mesherr.Unsupported("PLY format %s %s, only ascii 1.0 is supported", encoding, version)
			}
		case "comment", "obj_info":
			tok.RestOfLine()
			continue
		case "element":
			raw, err := tok.ExpectInLine("element name")
			if err != nil {
				return nil, err
			}
			name, ok := domain.ParseName(raw, domain.FormatPly, domain.KindOther)
			if !ok {
				return nil, mesherr.Syntax(tok.Line(), "invalid element name %q", raw)
			}
			count, err := tok.CountInLine("element count")
			if err != nil {
				return nil, err
			}
			elements = append(elements, &plyElement{name: name, count: count})
		case "property":
			if len(elements) == 0 {
				return nil, mesherr.Syntax(tok.Line(), "property declared before any element")
			}
			prop, err := readPlyProperty(tok)
			if err != nil {
				return nil, err
			}
			el := elements[len(elements)-1]
			if slices.ContainsFunc(el.properties, func(p plyProperty) bool { return p.name == prop.name }) {
				return nil, mesherr.Syntax(tok.Line(), "duplicate property %q in element %s", prop.name, el.name.Raw())
			}
			el.properties = append(el.properties, prop)
		case "end_header":
			if len(tok.RestOfLine()) > 0 {
				return nil, mesherr.Syntax(tok.Line(), "unexpected tokens after end_header")
			}
			return elements, nil
		default:
			return nil, mesherr.Syntax(tok.Line(), "unknown header keyword %q", keyword)
		}

		if rest := tok.RestOfLine(); len(rest) > 0 {
			return nil, mesherr.Syntax(tok.Line(), "unexpected tokens %q after %s", strings.Join(rest, " "), keyword)
		}
	}
}

func readPlyProperty(tok *tokenizer) (plyProperty, error) {
	typ, err := tok.ExpectInLine("property type")
	if err != nil {
		return plyProperty{}, err
	}

	list := typ == "list"
	if list {
		for _, what := range []string{"list count type", "list item type"} {
			if typ, err = tok.ExpectInLine(what); err != nil {
				return plyProperty{}, err
			}
			if !slices.Contains(plyTypes, typ) {
				return plyProperty{}, mesherr.Syntax(tok.Line(), "unknown %s %q", what, typ)
			}
		}
	} else if !slices.Contains(plyTypes, typ) {
		return plyProperty{}, mesherr.Syntax(tok.Line(), "unknown property type %q", typ)
	}

	name, err := tok.ExpectInLine("property name")
	if err != nil {
		return plyProperty{}, err
	}
	return plyProperty{name: name, list: list}, nil
}

func readPlyRow(tok *tokenizer, el *plyElement) (*domain.Other, error) {
	entity := &domain.Other{}
	for _, prop := range el.properties {
		if !prop.list {
			value, err := tok.Expect(prop.name)
			if err != nil {
				return nil, err
			}
			entity.Attrs.Set(domain.Key(prop.name), value)
			continue
		}

		n, err := tok.Count(prop.name + " length")
		if err != nil {
			return nil, err
		}
		items := make([]string, 0, min(n, maxListReserve))
		for range n {
			item, err := tok.Expect(prop.name + " item")
			if err != nil {
				return nil, err
			}
			items = append(items, item)
		}
		entity.Attrs.Set(domain.Key(prop.name), strings.Join(items, " "))
	}
	return entity, nil
}

// maxListReserve bounds the allocation made for a declared list length.
const maxListReserve = 256

// plyColumn is one property of a written element block.
type plyColumn struct {
	attr domain.AttrName
	name string
	list bool
}

// plyBlock is the header plan for one group.
type plyBlock struct {
	group   domain.SourceGroup
	name    string
	kind    domain.EntityKind
	coords  int
	indices bool
	columns []plyColumn
}

// Serialize writes src as an ASCII PLY document.
//
// Every group name must be a PLY name. Node groups get x, y, z float
// properties, vector groups nx, ny, nz, and element groups a vertex_indices
// list; each is followed by the union of the group's attributes. Attribute
// values containing a space are declared as float lists.
func (c *PlyCodec) Serialize(src domain.Source, w io.Writer) error {
	var blocks []*plyBlock
	for _, kind := range domain.EntityKinds {
		for g := range src.Groups(kind) {
			block, err := planPlyBlock(g, kind)
			if err != nil {
				return err
			}
			blocks = append(blocks, block)
		}
	}

	bw := bufio.NewWriter(w)
	fmt.Fprintln(bw, "ply")
	fmt.Fprintln(bw, "format ascii 1.0")
	fmt.Fprintln(bw, "comment generated by multimesh")
	for _, b := range blocks {
		b.writeHeader(bw)
	}
	fmt.Fprintln(bw, "end_header")

	for _, b := range blocks {
		if err := b.writeRows(bw); err != nil {
			return err
		}
	}

	if err := bw.Flush(); err != nil {
		return mesherr.Io(err)
	}
	return nil
}

func planPlyBlock(g domain.SourceGroup, kind domain.EntityKind) (*plyBlock, error) {
	md := g.Metadata()
	name, err := md.Name.As(domain.FormatPly)
	if err != nil {
		return nil, err
	}

	b := &plyBlock{group: g, name: name, kind: kind, indices: kind == domain.KindElement}
	lists := make(map[domain.AttrName]bool)
	for i := range md.Len {
		item, ok := g.ItemAt(i)
		if !ok {
			return nil, mesherr.BrokenInvariant("group %s reports %d items but item %d is missing", md.Name, md.Len, i)
		}

		var coords int
		switch e := item.(type) {
		case *domain.Node:
			coords = len(e.Position)
		case *domain.Vector:
			coords = len(e.Components)
		}
		if i == 0 {
			b.coords = coords
		} else if coords != b.coords {
			return nil, mesherr.BrokenInvariant("group %s mixes %d and %d coordinates", md.Name, b.coords, coords)
		}

		for attr, value := range item.Attributes().All() {
			list := value == "" || strings.ContainsAny(value, " \t")
			lists[attr] = lists[attr] || list
		}
	}

	for attr, list := range lists {
		b.columns = append(b.columns, plyColumn{attr: attr, name: plyColumnName(attr), list: list})
	}
	slices.SortFunc(b.columns, func(x, y plyColumn) int { return x.attr.Compare(y.attr) })

	// A header with a repeated property name cannot be read back.
	taken := make(map[string]bool)
	for _, prop := range b.fixedProperties() {
		taken[prop] = true
	}
	for _, col := range b.columns {
		if taken[col.name] {
			return nil, mesherr.Unsupported("attribute %s of group %s collides with PLY property %q", col.attr, md.Name, col.name)
		}
		taken[col.name] = true
	}
	return b, nil
}

// fixedProperties returns the property names written before the attribute
// columns: the axes, then vertex_indices for elements.
func (b *plyBlock) fixedProperties() []string {
	prefix := ""
	if b.kind == domain.KindVector {
		prefix = "n"
	}
	props := make([]string, 0, b.coords+1)
	for i := range b.coords {
		props = append(props, plyAxisName(prefix, i))
	}
	if b.indices {
		props = append(props, "vertex_indices")
	}
	return props
}

func plyColumnName(attr domain.AttrName) string {
	if key, ok := attr.Key(); ok {
		return key
	}
	idx, _ := attr.Index()
	return "attr" + strconv.Itoa(idx)
}

func plyAxisName(prefix string, i int) string {
	if i < 3 {
		return prefix + string("xyz"[i])
	}
	return prefix + "x" + strconv.Itoa(i)
}

func (b *plyBlock) writeHeader(w *bufio.Writer) {
	fmt.Fprintf(w, "element %s %d\n", b.name, b.group.Metadata().Len)

	for _, prop := range b.fixedProperties() {
		if prop == "vertex_indices" {
			fmt.Fprintln(w, "property list uchar int vertex_indices")
		} else {
			fmt.Fprintf(w, "property float %s\n", prop)
		}
	}
	for _, col := range b.columns {
		if col.list {
			fmt.Fprintf(w, "property list uchar float %s\n", col.name)
		} else {
			fmt.Fprintf(w, "property float %s\n", col.name)
		}
	}
}

func (b *plyBlock) writeRows(w *bufio.Writer) error {
	md := b.group.Metadata()
	for i := range md.Len {
		item, ok := b.group.ItemAt(i)
		if !ok {
			return mesherr.BrokenInvariant("group %s reports %d items but item %d is missing", md.Name, md.Len, i)
		}

		var fields []string
		switch e := item.(type) {
		case *domain.Node:
			for _, v := range e.Position {
				fields = append(fields, formatFloat(v))
			}
		case *domain.Vector:
			for _, v := range e.Components {
				fields = append(fields, formatFloat(v))
			}
		case *domain.Element:
			if len(e.Indices) > 255 {
				return mesherr.Unsupported("element with %d node indices exceeds the PLY list limit", len(e.Indices))
			}
			fields = append(fields, strconv.Itoa(len(e.Indices)))
			for _, idx := range e.Indices {
				fields = append(fields, strconv.Itoa(idx))
			}
		}

		for _, col := range b.columns {
			value, ok := item.Attributes().Get(col.attr)
			switch {
			case col.list:
				items := strings.Fields(value)
				fields = append(fields, strconv.Itoa(len(items)))
				fields = append(fields, items...)
			case ok:
				fields = append(fields, value)
			default:
				fields = append(fields, "0")
			}
		}

		w.WriteString(strings.Join(fields, " "))
		w.WriteByte('\n')
	}
	return nil
}
