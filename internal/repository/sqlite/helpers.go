package sqlite

import (
	"fmt"
	"time"

	"multimesh/internal/domain"

	"github.com/fxamacker/cbor/v2"
)

// ============================================================================
// Time Conversion Helpers
// ============================================================================

// timeLayout is fixed-width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// timeToText formats t for storage; SQLite has no native time type.
func timeToText(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

// textToTime parses a stored timestamp
func textToTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid timestamp %q: %w", s, err)
	}
	return t, nil
}

// ============================================================================
// Entity Payload Encoding
// ============================================================================

var (
	payloadEncMode cbor.EncMode
	payloadDecMode cbor.DecMode
)

func init() {
	var err error

	encOpts := cbor.EncOptions{
		Sort:          cbor.SortCanonical,
		IndefLength:   cbor.IndefLengthForbidden,
		NilContainers: cbor.NilContainerAsNull,
	}
	payloadEncMode, err = encOpts.EncMode()
	if err != nil {
		panic(fmt.Sprintf("failed to create payload CBOR encoder mode: %v", err))
	}

	decOpts := cbor.DecOptions{
		DupMapKey:   cbor.DupMapKeyEnforcedAPF,
		IndefLength: cbor.IndefLengthForbidden,
	}
	payloadDecMode, err = decOpts.DecMode()
	if err != nil {
		panic(fmt.Sprintf("failed to create payload CBOR decoder mode: %v", err))
	}
}

// entityPayload is the stored form of one entity. The entity kind is a
// column of the owning group.
type entityPayload struct {
	Position   []float64     `cbor:"1,keyasint,omitempty"`
	Indices    []int         `cbor:"2,keyasint,omitempty"`
	Components []float64     `cbor:"3,keyasint,omitempty"`
	Attrs      []attrPayload `cbor:"4,keyasint,omitempty"`
}

type attrPayload struct {
	Index int    `cbor:"1,keyasint,omitempty"`
	Key   string `cbor:"2,keyasint,omitempty"`
	IsKey bool   `cbor:"3,keyasint,omitempty"`
	Value string `cbor:"4,keyasint"`
}

// encodeEntity converts an entity to its CBOR payload
func encodeEntity(e domain.Entity) ([]byte, error) {
	var p entityPayload
	switch v := e.(type) {
	case *domain.Node:
		p.Position = v.Position
	case *domain.Element:
		p.Indices = v.Indices
	case *domain.Vector:
		p.Components = v.Components
	}

	for name, value := range e.Attributes().All() {
		a := attrPayload{Value: value}
		if key, ok := name.Key(); ok {
			a.Key, a.IsKey = key, true
		} else {
			a.Index, _ = name.Index()
		}
		p.Attrs = append(p.Attrs, a)
	}

	data, err := payloadEncMode.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("failed to encode entity: %w", err)
	}
	return data, nil
}

// decodeEntity rebuilds an entity of the given kind from its payload
func decodeEntity(kind domain.EntityKind, data []byte) (domain.Entity, error) {
	var p entityPayload
	if err := payloadDecMode.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("failed to decode entity: %w", err)
	}

	var e domain.Entity
	switch kind {
	case domain.KindNode:
		e = &domain.Node{Position: p.Position}
	case domain.KindElement:
		e = &domain.Element{Indices: p.Indices}
	case domain.KindVector:
		e = &domain.Vector{Components: p.Components}
	default:
		e = &domain.Other{}
	}

	attrs := e.Attributes()
	for _, a := range p.Attrs {
		if a.IsKey {
			attrs.Set(domain.Key(a.Key), a.Value)
		} else {
			attrs.Set(domain.Index(a.Index), a.Value)
		}
	}
	return e, nil
}
