package persona

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

type catalog struct {
	Personas []Persona `yaml:"personas"`
}

// LoadFile reads a YAML persona catalog of the form:
//
//	personas:
//	  - id: recovery-coach
//	    name: AI 康复顾问
//	    instruction: 你是一位专业的产后康复教练……
func LoadFile(path string) ([]Persona, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read persona catalog: %w", err)
	}
	return Parse(raw)
}

// Parse decodes and validates a YAML persona catalog.
func Parse(raw []byte) ([]Persona, error) {
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)

	var c catalog
	if err := dec.Decode(&c); err != nil {
		return nil, fmt.Errorf("decode persona catalog: %w", err)
	}
	if len(c.Personas) == 0 {
		return nil, fmt.Errorf("persona catalog is empty")
	}

	seen := make(map[string]struct{}, len(c.Personas))
	for i, p := range c.Personas {
		id := strings.TrimSpace(p.ID)
		if id == "" {
			return nil, fmt.Errorf("persona #%d: id is required", i+1)
		}
		if strings.TrimSpace(p.Instruction) == "" {
			return nil, fmt.Errorf("persona %s: instruction is required", id)
		}
		if _, dup := seen[id]; dup {
			return nil, fmt.Errorf("persona %s: duplicate id", id)
		}
		seen[id] = struct{}{}
		c.Personas[i].ID = id
	}
	return c.Personas, nil
}
