package codec

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"multimesh/internal/domain"
	"multimesh/internal/mesherr"
)

// MeditCodec reads and writes the ASCII MEDIT mesh format.
type MeditCodec struct{}

// NewMeditCodec creates a new MEDIT codec
func NewMeditCodec() *MeditCodec {
	return &MeditCodec{}
}

// Format returns the codec format identifier
func (c *MeditCodec) Format() string {
	return "medit"
}

// Deserialize parses a MEDIT document into t.
//
// Parsing stops at the first error; whatever t received before that point
// must be discarded by the caller. Anything after the End keyword is ignored.
func (c *MeditCodec) Deserialize(r io.Reader, t domain.Target) error {
	tok, err := readTokenizer(r)
	if err != nil {
		return err
	}
	p := &meditParser{tok: tok, target: t}
	return p.run()
}

type meditParser struct {
	tok       *tokenizer
	target    domain.Target
	dimension int
	uid       uint64
}

func (p *meditParser) run() error {
	for {
		keyword, ok := p.tok.Next()
		if !ok {
			return nil
		}

		switch keyword {
		case "MeshVersionFormatted":
			version, err := p.tok.Expect("version")
			if err != nil {
				return err
			}
			if version != "1" {
				return mesherr.Unsupported("MEDIT version %q (line %d)", version, p.tok.Line())
			}
		case "Dimension":
			dim, err := p.tok.Count("dimension")
			if err != nil {
				return err
			}
			if dim == 0 {
				return mesherr.Syntax(p.tok.Line(), "dimension must be positive")
			}
			if dim > domain.MaxDimension {
				return mesherr.Syntax(p.tok.Line(), "dimension %d exceeds %d", dim, domain.MaxDimension)
			}
			p.dimension = dim
			if err := p.target.SetDimension(dim); err != nil {
				return mesherr.External(err)
			}
		case "End":
			return nil
		default:
			// A comment where a keyword is expected runs to the end of its line.
			if strings.HasPrefix(keyword, "#") {
				p.tok.RestOfLine()
				continue
			}
			if name, ok := domain.ParseName(keyword, domain.FormatMedit, domain.KindNode); ok {
				if err := p.nodes(name); err != nil {
					return err
				}
				continue
			}
			if name, ok := domain.ParseName(keyword, domain.FormatMedit, domain.KindElement); ok {
				if err := p.elements(name); err != nil {
					return err
				}
				continue
			}
			return mesherr.Syntax(p.tok.Line(), "unsupported keyword %q", keyword)
		}
	}
}

func (p *meditParser) begin(name domain.Name, kind domain.EntityKind) (domain.GroupData, int, error) {
	count, err := p.tok.Count(name.Raw() + " count")
	if err != nil {
		return domain.GroupData{}, 0, err
	}
	p.uid++
	group := domain.NewGroupData(p.uid, name, count, kind)
	if err := p.target.GroupBegin(group); err != nil {
		return domain.GroupData{}, 0, mesherr.External(err)
	}
	return group, count, nil
}

func (p *meditParser) nodes(name domain.Name) error {
	if p.dimension == 0 {
		return mesherr.Syntax(p.tok.Line(), "%s before Dimension", name.Raw())
	}
	group, count, err := p.begin(name, domain.KindNode)
	if err != nil {
		return err
	}

	// Only vertices carry a reference id.
	withRef := name.Raw() == "Vertices"
	for range count {
		node := &domain.Node{Position: make([]float64, p.dimension)}
		for i := range node.Position {
			if node.Position[i], err = p.tok.Float("coordinate"); err != nil {
				return err
			}
		}
		if withRef {
			ref, err := p.tok.FloatText("vertex reference")
			if err != nil {
				return err
			}
			node.Attrs.Set(domain.Index(0), ref)
		}
		if err := domain.DeliverNode(p.target, node, group); err != nil {
			return mesherr.External(err)
		}
	}

	if err := p.target.GroupEnd(group); err != nil {
		return mesherr.External(err)
	}
	return nil
}

func (p *meditParser) elements(name domain.Name) error {
	arity, _ := domain.MeditArity(name.Raw())
	group, count, err := p.begin(name, domain.KindElement)
	if err != nil {
		return err
	}

	for range count {
		element := &domain.Element{Indices: make([]int, arity)}
		for i := range element.Indices {
			if element.Indices[i], err = p.tok.Count("node index"); err != nil {
				return err
			}
		}
		ref, err := p.tok.FloatText("element reference")
		if err != nil {
			return err
		}
		element.Attrs.Set(domain.Index(0), ref)
		if err := domain.DeliverElement(p.target, element, group); err != nil {
			return mesherr.External(err)
		}
	}

	if err := p.target.GroupEnd(group); err != nil {
		return mesherr.External(err)
	}
	return nil
}

// Serialize writes src as a MEDIT document.
//
// Node groups come first, then vector groups, then element groups. Groups
// of other entities have no MEDIT representation and are rejected before
// anything is written.
func (c *MeditCodec) Serialize(src domain.Source, w io.Writer) error {
	for g := range src.Groups(domain.KindOther) {
		return mesherr.Unsupported("MEDIT cannot represent other group %s", g.Metadata().Name)
	}

	dim := src.Metadata().Dimension
	if dim <= 0 {
		return mesherr.BrokenInvariant("mesh dimension %d cannot be written as MEDIT", dim)
	}

	bw := bufio.NewWriter(w)
	fmt.Fprintln(bw, "MeshVersionFormatted 1")
	fmt.Fprintln(bw, "# MEDIT mesh file, generated by multimesh")
	fmt.Fprintf(bw, "Dimension %d\n\n", dim)

	mw := &meditWriter{w: bw, dim: dim}
	for _, kind := range []domain.EntityKind{domain.KindNode, domain.KindVector, domain.KindElement} {
		for g := range src.Groups(kind) {
			if err := mw.group(g, kind); err != nil {
				return err
			}
		}
	}
	fmt.Fprintln(bw, "End")

	// bufio keeps the first write error and reports it here.
	if err := bw.Flush(); err != nil {
		return mesherr.Io(err)
	}
	return nil
}

type meditWriter struct {
	w   *bufio.Writer
	dim int
}

func (mw *meditWriter) group(g domain.SourceGroup, kind domain.EntityKind) error {
	md := g.Metadata()
	name, err := md.Name.As(domain.FormatMedit)
	if err != nil {
		return err
	}

	arity := 0
	if kind == domain.KindElement {
		var ok bool
		if arity, ok = domain.MeditArity(name); !ok {
			return mesherr.Unsupported("%q is not a MEDIT element keyword", name)
		}
	}

	fmt.Fprintf(mw.w, "%s\n%d\n", name, md.Len)
	for i := range md.Len {
		item, ok := g.ItemAt(i)
		if !ok {
			return mesherr.BrokenInvariant("group %s reports %d items but item %d is missing", md.Name, md.Len, i)
		}
		switch e := item.(type) {
		case *domain.Node:
			err = mw.node(e, name == "Vertices")
		case *domain.Vector:
			err = mw.coords(e.Components, "vector")
			if err == nil {
				mw.w.WriteByte('\n')
			}
		case *domain.Element:
			err = mw.element(e, arity)
		default:
			err = mesherr.BrokenInvariant("%s entity in %s group %s", item.Kind(), kind, md.Name)
		}
		if err != nil {
			return err
		}
	}
	mw.w.WriteByte('\n')
	return nil
}

func (mw *meditWriter) coords(values []float64, what string) error {
	if len(values) != mw.dim {
		return mesherr.BrokenInvariant("%s has %d coordinates in a %d-dimensional mesh", what, len(values), mw.dim)
	}
	for i, v := range values {
		if i > 0 {
			mw.w.WriteByte(' ')
		}
		mw.w.WriteString(formatFloat(v))
	}
	return nil
}

func (mw *meditWriter) node(n *domain.Node, withRef bool) error {
	if err := mw.coords(n.Position, "node"); err != nil {
		return err
	}
	if withRef {
		mw.w.WriteByte(' ')
		mw.w.WriteString(reference(&n.Attrs))
	}
	mw.w.WriteByte('\n')
	return nil
}

func (mw *meditWriter) element(e *domain.Element, arity int) error {
	if len(e.Indices) != arity {
		return mesherr.BrokenInvariant("element has %d node indices, expected %d", len(e.Indices), arity)
	}
	for _, idx := range e.Indices {
		mw.w.WriteString(strconv.Itoa(idx))
		mw.w.WriteByte(' ')
	}
	mw.w.WriteString(reference(&e.Attrs))
	mw.w.WriteByte('\n')
	return nil
}

// reference returns the MEDIT reference id stored as the first positional
// attribute, defaulting to 0.
func reference(attrs *domain.Attributes) string {
	if v, ok := attrs.Get(domain.Index(0)); ok && v != "" {
		return v
	}
	return "0"
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
