package codec

import (
	"errors"
	"fmt"

	"multimesh/internal/domain"
	"multimesh/internal/mesherr"
)

// document is the interchange form shared by the YAML and JSON codecs. It
// keeps every group's name together with the format and kind it was
// validated for, so a round trip loses nothing.
type document struct {
	Dimension int             `yaml:"dimension" json:"dimension"`
	Groups    []documentGroup `yaml:"groups" json:"groups"`
}

type documentGroup struct {
	Name     string           `yaml:"name" json:"name"`
	Format   string           `yaml:"format" json:"format"`
	Kind     string           `yaml:"kind" json:"kind"`
	Entities []documentEntity `yaml:"entities" json:"entities"`
}

type documentEntity struct {
	Position   []float64           `yaml:"position,flow,omitempty" json:"position,omitempty"`
	Indices    []int               `yaml:"indices,flow,omitempty" json:"indices,omitempty"`
	Components []float64           `yaml:"components,flow,omitempty" json:"components,omitempty"`
	Attributes []documentAttribute `yaml:"attributes,omitempty" json:"attributes,omitempty"`
}

// documentAttribute sets exactly one of Index and Key.
type documentAttribute struct {
	Index *int    `yaml:"index,omitempty" json:"index,omitempty"`
	Key   *string `yaml:"key,omitempty" json:"key,omitempty"`
	Value string  `yaml:"value" json:"value"`
}

// buildDocument reads src through the pull protocol.
func buildDocument(src domain.Source) (*document, error) {
	doc := &document{Dimension: src.Metadata().Dimension, Groups: []documentGroup{}}

	for _, kind := range domain.EntityKinds {
		for g := range src.Groups(kind) {
			md := g.Metadata()
			dg := documentGroup{
				Name:     md.Name.Raw(),
				Format:   md.Name.Format().String(),
				Kind:     kind.String(),
				Entities: make([]documentEntity, 0, md.Len),
			}
			for i := range md.Len {
				item, ok := g.ItemAt(i)
				if !ok {
					return nil, mesherr.BrokenInvariant("group %s reports %d items but item %d is missing", md.Name, md.Len, i)
				}
				dg.Entities = append(dg.Entities, toDocumentEntity(item))
			}
			doc.Groups = append(doc.Groups, dg)
		}
	}
	return doc, nil
}

func toDocumentEntity(e domain.Entity) documentEntity {
	var de documentEntity
	switch v := e.(type) {
	case *domain.Node:
		de.Position = v.Position
	case *domain.Element:
		de.Indices = v.Indices
	case *domain.Vector:
		de.Components = v.Components
	}

	for name, value := range e.Attributes().All() {
		attr := documentAttribute{Value: value}
		if key, ok := name.Key(); ok {
			attr.Key = &key
		} else {
			idx, _ := name.Index()
			attr.Index = &idx
		}
		de.Attributes = append(de.Attributes, attr)
	}
	return de
}

// replay pushes doc into t, validating every group name and assigning UIDs
// in document order.
func (doc *document) replay(t domain.Target) error {
	if doc.Dimension < 0 {
		return mesherr.Syntax(0, "negative dimension %d", doc.Dimension)
	}
	if doc.Dimension > domain.MaxDimension {
		return mesherr.Syntax(0, "dimension %d exceeds %d", doc.Dimension, domain.MaxDimension)
	}
	if doc.Dimension > 0 {
		if err := t.SetDimension(doc.Dimension); err != nil {
			return mesherr.External(err)
		}
	}

	for gi, dg := range doc.Groups {
		format, err := domain.ParseFormat(dg.Format)
		if err != nil {
			return mesherr.Syntax(0, "group %d: %v", gi, err)
		}
		kind, err := domain.ParseEntityKind(dg.Kind)
		if err != nil {
			return mesherr.Syntax(0, "group %d: %v", gi, err)
		}
		name, ok := domain.ParseName(dg.Name, format, kind)
		if !ok {
			return mesherr.Syntax(0, "group %d: %q is not a valid %s %s group name", gi, dg.Name, format, kind)
		}

		group := domain.NewGroupData(uint64(gi+1), name, len(dg.Entities), kind)
		if err := t.GroupBegin(group); err != nil {
			return mesherr.External(err)
		}
		for ei, de := range dg.Entities {
			entity, err := de.entity(kind)
			if err != nil {
				return mesherr.Syntax(0, "group %d entity %d: %v", gi, ei, err)
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

func (de documentEntity) entity(kind domain.EntityKind) (domain.Entity, error) {
	var e domain.Entity
	switch kind {
	case domain.KindNode:
		if de.Indices != nil || de.Components != nil {
			return nil, errFieldMismatch(kind)
		}
		e = &domain.Node{Position: de.Position}
	case domain.KindElement:
		if de.Position != nil || de.Components != nil {
			return nil, errFieldMismatch(kind)
		}
		for _, idx := range de.Indices {
			if idx < 0 {
				return nil, fmt.Errorf("negative node index %d", idx)
			}
		}
		e = &domain.Element{Indices: de.Indices}
	case domain.KindVector:
		if de.Position != nil || de.Indices != nil {
			return nil, errFieldMismatch(kind)
		}
		e = &domain.Vector{Components: de.Components}
	default:
		if de.Position != nil || de.Indices != nil || de.Components != nil {
			return nil, errFieldMismatch(kind)
		}
		e = &domain.Other{}
	}

	attrs := e.Attributes()
	for _, a := range de.Attributes {
		switch {
		case a.Index != nil && a.Key == nil:
			if *a.Index < 0 {
				return nil, fmt.Errorf("negative attribute index %d", *a.Index)
			}
			attrs.Set(domain.Index(*a.Index), a.Value)
		case a.Key != nil && a.Index == nil:
			attrs.Set(domain.Key(*a.Key), a.Value)
		default:
			return nil, errors.New("attribute must set exactly one of index and key")
		}
	}
	return e, nil
}

func errFieldMismatch(kind domain.EntityKind) error {
	return fmt.Errorf("fields do not match a %s entity", kind)
}

func decodeError(format string, err error) error {
	return &mesherr.Error{Kind: mesherr.KindSyntax, Message: "failed to parse " + format, Err: err}
}
