package course

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"
)

var (
	// ErrNotFound is returned when no course document exists for a class level.
	ErrNotFound = errors.New("course not found")

	// ErrInvalidDocument is returned when a course document fails validation.
	ErrInvalidDocument = errors.New("invalid course document")
)

//go:embed schema.json
var schemaJSON []byte

var compiledSchema = sync.OnceValues(func() (*gojsonschema.Schema, error) {
	return gojsonschema.NewSchema(gojsonschema.NewBytesLoader(schemaJSON))
})

// Decode validates a JSON course document and returns the course model.
func Decode(data []byte) (*Course, error) {
	schema, err := compiledSchema()
	if err != nil {
		return nil, fmt.Errorf("compiling course schema: %w", err)
	}

	result, err := schema.Validate(gojsonschema.NewBytesLoader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		return nil, fmt.Errorf("%w: %s", ErrInvalidDocument, strings.Join(msgs, "; "))
	}

	var c Course
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}

	if err := normalize(&c); err != nil {
		return nil, err
	}
	return &c, nil
}

// DecodeYAML converts a YAML course document to JSON and decodes it with the
// same validation as Decode.
func DecodeYAML(data []byte) (*Course, error) {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	return Decode(raw)
}

// normalize maps chapter type aliases and rejects duplicate entity ids.
// Module and chapter ids share one namespace in a progress record.
func normalize(c *Course) error {
	seen := make(map[string]bool)
	for mi := range c.Modules {
		m := &c.Modules[mi]
		if seen[m.ID] {
			return fmt.Errorf("%w: duplicate id %q", ErrInvalidDocument, m.ID)
		}
		seen[m.ID] = true

		for ci := range m.Chapters {
			ch := &m.Chapters[ci]
			if seen[ch.ID] {
				return fmt.Errorf("%w: duplicate id %q", ErrInvalidDocument, ch.ID)
			}
			seen[ch.ID] = true

			if t, ok := typeAliases[string(ch.Type)]; ok {
				ch.Type = t
			}
		}
	}
	return nil
}
