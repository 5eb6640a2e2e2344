package domain

import (
	"fmt"
	"slices"
	"strings"

	"multimesh/internal/mesherr"
)

// Format identifies the file format a group name originated in.
type Format int

const (
	FormatMedit Format = iota
	FormatPly
)

// Formats lists the naming formats.
var Formats = []Format{FormatMedit, FormatPly}

func (f Format) String() string {
	switch f {
	case FormatMedit:
		return "medit"
	case FormatPly:
		return "ply"
	default:
		return fmt.Sprintf("Format(%d)", int(f))
	}
}

// ParseFormat parses the String form of a format.
func ParseFormat(s string) (Format, error) {
	for _, f := range Formats {
		if f.String() == s {
			return f, nil
		}
	}
	return 0, fmt.Errorf("unknown naming format %q", s)
}

var (
	meditNodes = []string{
		"Vertices", // x_i y_i [z_i] ref_i
		"Normals",  // x_i y_i [z_i]
		"Tangents", // x_i y_i [z_i]
	}
	meditVectors = []string{
		"Normals",
		"Tangents",
	}
	meditElements = []string{
		"Edges",
		"Triangles",
		"Quadrilaterals",
		"Tetrahedra",
		"Hexahedra",
	}
	meditOther = []string{
		"Ridges",
		"RequiredEdges",
		"Corners",
		"RequiredVertices",
		"NormalAtVertices",
		"NormalAtTriangleVertices",
		"NormalAtQuadrilateralVertices",
		"TangentAtEdges",
	}

	meditArity = map[string]int{
		"Edges":          2,
		"Triangles":      3,
		"Quadrilaterals": 4,
		"Tetrahedra":     4,
		"Hexahedra":      8,
	}
)

func meditWhitelist(kind EntityKind) []string {
	switch kind {
	case KindNode:
		return meditNodes
	case KindElement:
		return meditElements
	case KindVector:
		return meditVectors
	default:
		return meditOther
	}
}

// MeditArity returns the number of node indices of a MEDIT element keyword.
func MeditArity(name string) (int, bool) {
	n, ok := meditArity[name]
	return n, ok
}

// Name is a validated group name together with the format and kind it was
// validated for.
type Name struct {
	raw    string
	format Format
	kind   EntityKind
}

// ParseName validates raw against the whitelist of format and kind.
//
// MEDIT names must appear in the fixed keyword tables. PLY has no naming
// convention, so any non-empty single token is accepted.
func ParseName(raw string, format Format, kind EntityKind) (Name, bool) {
	switch format {
	case FormatMedit:
		if !slices.Contains(meditWhitelist(kind), raw) {
			return Name{}, false
		}
	case FormatPly:
		if raw == "" || strings.ContainsAny(raw, " \t\r\n") {
			return Name{}, false
		}
	default:
		return Name{}, false
	}
	return Name{raw: raw, format: format, kind: kind}, true
}

// Raw returns the name as written in its originating format.
func (n Name) Raw() string { return n.raw }

// Format returns the originating format.
func (n Name) Format() Format { return n.format }

// Kind returns the entity kind the name was validated for.
func (n Name) Kind() EntityKind { return n.kind }

func (n Name) String() string {
	return n.format.String() + ":" + n.raw
}

// As projects the name into format f. Only the originating format is
// supported; synonym mapping between formats is not defined.
func (n Name) As(f Format) (string, error) {
	if f != n.format {
		return "", mesherr.Unsupported("cannot project %s name %q to %s", n.format, n.raw, f)
	}
	return n.raw, nil
}
