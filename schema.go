package mfsstore

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// IndexDefinition describes how one column is indexed
type IndexDefinition struct {
	Unique bool `json:"unique"`
}

// Column is one indexed document field
type Column struct {
	Name string
	IndexDefinition
}

// Schema is the ordered set of indexed columns.
//
// It decodes from and encodes to the JSON object form
//
//	{"currentTeam": {"unique": false}, "email": {"unique": true}}
//
// keeping the column order of the source document.
type Schema []Column

// NewSchema builds a schema from columns in order
func NewSchema(columns ...Column) Schema {
	return Schema(columns)
}

// Unique declares a unique column
func Unique(name string) Column {
	return Column{Name: name, IndexDefinition: IndexDefinition{Unique: true}}
}

// Multi declares a non-unique column
func Multi(name string) Column {
	return Column{Name: name}
}

// Lookup returns the definition of a column
func (s Schema) Lookup(name string) (IndexDefinition, bool) {
	for _, c := range s {
		if c.Name == name {
			return c.IndexDefinition, true
		}
	}
	return IndexDefinition{}, false
}

// Names returns column names in schema order
func (s Schema) Names() []string {
	names := make([]string, len(s))
	for i, c := range s {
		names[i] = c.Name
	}
	return names
}

// Validate rejects empty and duplicate column names
func (s Schema) Validate() error {
	seen := make(map[string]bool, len(s))
	for i, c := range s {
		if c.Name == "" {
			return WithContext(ErrInvalidConfig, map[string]interface{}{
				"field":  "Schema",
				"index":  i,
				"reason": "column name is required",
			})
		}
		if seen[c.Name] {
			return WithContext(ErrInvalidConfig, map[string]interface{}{
				"field":  "Schema",
				"column": c.Name,
				"reason": "duplicate column",
			})
		}
		seen[c.Name] = true
	}
	return nil
}

func (s Schema) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, c := range s {
		if i > 0 {
			buf.WriteByte(',')
		}
		name, err := json.Marshal(c.Name)
		if err != nil {
			return nil, err
		}
		def, err := json.Marshal(c.IndexDefinition)
		if err != nil {
			return nil, err
		}
		buf.Write(name)
		buf.WriteByte(':')
		buf.Write(def)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON walks the object token by token; a map would lose the
// column order.
func (s *Schema) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))

	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("schema: expected object, got %v", tok)
	}

	var out Schema
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		name, ok := tok.(string)
		if !ok {
			return fmt.Errorf("schema: expected column name, got %v", tok)
		}
		var def IndexDefinition
		if err := dec.Decode(&def); err != nil {
			return fmt.Errorf("schema: column %q: %w", name, err)
		}
		out = append(out, Column{Name: name, IndexDefinition: def})
	}
	if _, err := dec.Token(); err != nil {
		return err
	}

	*s = out
	return out.Validate()
}
