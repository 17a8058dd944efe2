package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/mesh-intelligence/nestmut/pkg/types"
)

// write prints v as indented JSON in --json mode and as YAML otherwise.
func (a *app) write(w io.Writer, v any) error {
	if a.jsonMode {
		out, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return fmt.Errorf("marshal JSON: %w", err)
		}
		_, err = fmt.Fprintln(w, string(out))
		return err
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("marshal YAML: %w", err)
	}
	return enc.Close()
}

// summary is the row printed by doc list.
type summary struct {
	ID        string    `json:"document_id" yaml:"document_id"`
	Name      string    `json:"name" yaml:"name"`
	Kind      string    `json:"kind" yaml:"kind"`
	Schema    string    `json:"schema,omitempty" yaml:"schema,omitempty"`
	Version   int64     `json:"version" yaml:"version"`
	UpdatedAt time.Time `json:"updated_at" yaml:"updated_at"`
}

func summarize(d *types.Document) summary {
	return summary{
		ID:        d.DocumentID,
		Name:      d.Name,
		Kind:      d.Kind,
		Schema:    d.Schema,
		Version:   d.Version,
		UpdatedAt: d.UpdatedAt,
	}
}
