package report

import (
	"encoding/json"
	"io"
)

// JSONEmitter renders an analysis run as a single JSON document
type JSONEmitter struct{}

func (e *JSONEmitter) Name() string          { return "json" }
func (e *JSONEmitter) FileExtension() string { return ".json" }

func (e *JSONEmitter) Emit(w io.Writer, in *Input) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(in)
}
