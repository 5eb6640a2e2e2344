package codec

import (
	"io"

	"multimesh/internal/domain"
	"multimesh/internal/mesherr"

	"gopkg.in/yaml.v3"
)

// YAMLCodec handles the YAML interchange document
type YAMLCodec struct{}

// NewYAMLCodec creates a new YAML codec
func NewYAMLCodec() *YAMLCodec {
	return &YAMLCodec{}
}

// Format returns the codec format identifier
func (c *YAMLCodec) Format() string {
	return "yaml"
}

// Deserialize reads a YAML interchange document into t
func (c *YAMLCodec) Deserialize(r io.Reader, t domain.Target) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return mesherr.Io(err)
	}

	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return decodeError("YAML", err)
	}
	return doc.replay(t)
}

// Serialize writes src as a YAML interchange document
func (c *YAMLCodec) Serialize(src domain.Source, w io.Writer) error {
	doc, err := buildDocument(src)
	if err != nil {
		return err
	}

	encoder := yaml.NewEncoder(w)
	encoder.SetIndent(2)

	if err := encoder.Encode(doc); err != nil {
		return mesherr.Io(err)
	}
	if err := encoder.Close(); err != nil {
		return mesherr.Io(err)
	}
	return nil
}
