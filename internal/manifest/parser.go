package manifest

import (
	"fmt"
	"os"
	"path/filepath"

	"go.yaml.in/yaml/v3"
)

// Parse reads a manifest file and returns only the base fields.
// Useful for quick type and identity detection without full parsing.
func Parse(path string) (*Base, error) {
	data, err := readFile(path)
	if err != nil {
		return nil, err
	}

	var base Base
	if err := yaml.Unmarshal(data, &base); err != nil {
		return nil, fmt.Errorf("parsing manifest %s: %w", path, err)
	}

	return &base, nil
}

// ParseFile reads a manifest file, detects its type, and returns the
// fully typed manifest struct: *Package or *Project.
func ParseFile(path string) (interface{}, error) {
	data, err := readFile(path)
	if err != nil {
		return nil, err
	}

	typeName, err := detectType(data)
	if err != nil {
		return nil, fmt.Errorf("detecting manifest type in %s: %w", path, err)
	}

	switch typeName {
	case TypePackage:
		return parseTyped[Package](data, path)
	case TypeProject:
		return parseTyped[Project](data, path)
	default:
		return nil, fmt.Errorf("unknown manifest type %q in %s", typeName, path)
	}
}

// ParsePackage reads a manifest file and parses it as a package
// manifest, rejecting other manifest types.
func ParsePackage(path string) (*Package, error) {
	data, err := readFile(path)
	if err != nil {
		return nil, err
	}
	typeName, err := detectType(data)
	if err != nil {
		return nil, fmt.Errorf("detecting manifest type in %s: %w", path, err)
	}
	if typeName != TypePackage {
		return nil, fmt.Errorf("manifest %s has type %q, expected %q", path, typeName, TypePackage)
	}
	return parseTyped[Package](data, path)
}

// ParseProject reads a manifest file and parses it as a project
// manifest, rejecting other manifest types.
func ParseProject(path string) (*Project, error) {
	data, err := readFile(path)
	if err != nil {
		return nil, err
	}
	typeName, err := detectType(data)
	if err != nil {
		return nil, fmt.Errorf("detecting manifest type in %s: %w", path, err)
	}
	if typeName != TypeProject {
		return nil, fmt.Errorf("manifest %s has type %q, expected %q", path, typeName, TypeProject)
	}
	return parseTyped[Project](data, path)
}

// LoadPackage parses <dir>/agentpack.yaml as a package manifest.
func LoadPackage(dir string) (*Package, error) {
	return ParsePackage(filepath.Join(dir, Filename))
}

// LoadProject parses <root>/agentpack.yaml as a project manifest. A
// missing file is not an error: projects without a manifest simply
// have no declared dependencies or profiles, and a nil Project is
// returned.
func LoadProject(root string) (*Project, error) {
	path := filepath.Join(root, Filename)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, nil
	}
	return ParseProject(path)
}

// parseTyped unmarshals YAML data into a typed manifest struct.
func parseTyped[T any](data []byte, path string) (*T, error) {
	var m T
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parsing manifest %s: %w", path, err)
	}
	return &m, nil
}

// detectType unmarshals YAML data into a generic map and extracts the
// type field.
func detectType(data []byte) (string, error) {
	var raw map[string]interface{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return "", fmt.Errorf("unmarshaling YAML: %w", err)
	}

	typeVal, ok := raw["type"]
	if !ok {
		return "", fmt.Errorf("manifest missing required 'type' field")
	}

	typeName, ok := typeVal.(string)
	if !ok {
		return "", fmt.Errorf("manifest 'type' field is not a string")
	}

	return typeName, nil
}

// readFile reads the contents of a file at the given path.
func readFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading file %s: %w", path, err)
	}
	return data, nil
}
