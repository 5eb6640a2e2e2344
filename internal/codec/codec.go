// Package codec reads and writes meshes in the supported file formats.
//
// Parsers drive a domain.Target through the push protocol; writers pull from
// a domain.Source. Neither side knows the concrete mesh container.
package codec

import (
	"io"

	"multimesh/internal/domain"
)

// Deserializer parses a document and pushes its contents into a target.
type Deserializer interface {
	Deserialize(r io.Reader, t domain.Target) error
	Format() string
}

// Serializer writes a mesh read through the pull protocol.
type Serializer interface {
	Serialize(src domain.Source, w io.Writer) error
	Format() string
}
