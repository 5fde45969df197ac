package codec

import (
	"encoding/json"
	"fmt"
	"io"

	"graphwatch/internal/domain"
)

// JSONCodec handles JSON import/export of the fetched payload shape
type JSONCodec struct{}

// NewJSONCodec creates a new JSON codec
func NewJSONCodec() *JSONCodec {
	return &JSONCodec{}
}

// Format returns the codec format identifier
func (c *JSONCodec) Format() string {
	return "json"
}

// ContentType is the media type of exported documents
func (c *JSONCodec) ContentType() string {
	return "application/json"
}

// Parse imports graph data from JSON. Misspelled keys are errors; stats and
// adjacency in the document are recomputed.
func (c *JSONCodec) Parse(r io.Reader) (*domain.Graph, error) {
	g := domain.NewGraph()
	decoder := json.NewDecoder(r)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(g); err != nil {
		return nil, fmt.Errorf("failed to parse JSON: %w", err)
	}
	g.Refresh()
	return g, nil
}

// Export exports graph data to JSON
func (c *JSONCodec) Export(g *domain.Graph, w io.Writer) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")

	if err := encoder.Encode(g); err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}
	return nil
}
