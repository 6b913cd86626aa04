package threshold

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

const (
	APIVersion  = "aegis/v1"
	CatalogKind = "ThresholdCatalog"
)

// LoadFile reads a catalog document and builds a catalog from it
func LoadFile(path string) (*Catalog, error) {
	file, err := parseYAMLFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to parse catalog %s: %w", path, err)
	}

	catalog, err := NewCatalog(file.Thresholds)
	if err != nil {
		return nil, fmt.Errorf("catalog %s: %w", path, err)
	}

	return catalog, nil
}

// Marshal renders specs as a catalog document
func Marshal(specs []Spec) ([]byte, error) {
	return yaml.Marshal(File{
		APIVersion: APIVersion,
		Kind:       CatalogKind,
		Thresholds: specs,
	})
}

// parseYAMLFile parses a single YAML file into a catalog document
func parseYAMLFile(filePath string) (*File, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, err
	}

	var file File
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, err
	}

	return &file, nil
}
