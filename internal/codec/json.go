package codec

import (
	"encoding/json"
	"errors"
	"io"

	"multimesh/internal/domain"
	"multimesh/internal/mesherr"
)

// JSONCodec handles the JSON interchange document
type JSONCodec struct{}

// NewJSONCodec creates a new JSON codec
func NewJSONCodec() *JSONCodec {
	return &JSONCodec{}
}

// Format returns the codec format identifier
func (c *JSONCodec) Format() string {
	return "json"
}

// Deserialize reads a JSON interchange document into t
func (c *JSONCodec) Deserialize(r io.Reader, t domain.Target) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return mesherr.Io(err)
	}

	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return decodeError("JSON", err)
	}
	return doc.replay(t)
}

// Serialize writes src as a JSON interchange document
func (c *JSONCodec) Serialize(src domain.Source, w io.Writer) error {
	doc, err := buildDocument(src)
	if err != nil {
		return err
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")

	if err := encoder.Encode(doc); err != nil {
		// NaN and infinite coordinates have no JSON form.
		var valueErr *json.UnsupportedValueError
		if errors.As(err, &valueErr) {
			return mesherr.Unsupported("JSON cannot represent %s", valueErr.Str)
		}
		return mesherr.Io(err)
	}
	return nil
}
