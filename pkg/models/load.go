package models

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ParseDescription decodes a YAML schema description.
func ParseDescription(data []byte) (*Description, error) {
	var desc Description
	if err := yaml.Unmarshal(data, &desc); err != nil {
		return nil, fmt.Errorf("parsing schema description: %w", err)
	}
	return &desc, nil
}

// LoadDescription reads a YAML schema description from a file.
func LoadDescription(path string) (*Description, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading schema description %s: %w", path, err)
	}
	return ParseDescription(data)
}
