package registry

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// DefaultConfigPath is used when neither the caller nor CONFIG names a file.
const DefaultConfigPath = "wban_params.yaml"

// Loader handles loading WBAN configuration documents
type Loader struct {
	configPath string
}

// NewLoader creates a new configuration loader
func NewLoader(configPath string) *Loader {
	return &Loader{
		configPath: configPath,
	}
}

// Path returns the file the loader reads after applying overrides.
func (l *Loader) Path() string {
	if configPath := os.Getenv("CONFIG"); configPath != "" {
		return configPath
	}
	if l.configPath == "" {
		return DefaultConfigPath
	}
	return l.configPath
}

// Load reads and validates the configuration. An explicitly named file must
// exist; when nothing was named and the default file is absent the built-in
// document is returned.
func (l *Loader) Load() (*Document, error) {
	path := l.Path()
	explicit := path != DefaultConfigPath || l.configPath == DefaultConfigPath

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) && !explicit {
			return DefaultDocument(), nil
		}
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	doc, err := LoadDocumentFromBytes(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return doc, nil
}

// LoadDocumentFromBytes parses and validates a YAML document. Unknown keys
// are rejected.
func LoadDocumentFromBytes(data []byte) (*Document, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var doc Document
	if err := dec.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: empty document", ErrInvalidConfig)
		}
		return nil, fmt.Errorf("%w: failed to parse YAML config: %w", ErrInvalidConfig, err)
	}
	if err := doc.Validate(); err != nil {
		return nil, err
	}
	return &doc, nil
}

// Save writes the document as YAML to the loader's path.
func (l *Loader) Save(doc *Document) error {
	configPath := l.Path()

	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to marshal YAML: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
