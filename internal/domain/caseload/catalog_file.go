package caseload

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

//go:embed default_catalog.yaml
var defaultCatalog []byte

// DefaultCatalog returns the catalog compiled into the binary.
func DefaultCatalog() (*Catalog, error) {
	spec, err := decodeYAML(defaultCatalog)
	if err != nil {
		return nil, fmt.Errorf("decode built-in catalog: %w", err)
	}
	return NewCatalog(spec)
}

// LoadCatalogFile reads a YAML (.yaml, .yml) or TOML (.toml) catalog. An
// empty path selects the built-in catalog.
func LoadCatalogFile(path string) (*Catalog, error) {
	if path == "" {
		return DefaultCatalog()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog %s: %w", path, err)
	}

	var spec CatalogSpec
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		spec, err = decodeYAML(data)
	case ".toml":
		_, err = toml.Decode(string(data), &spec)
	default:
		return nil, fmt.Errorf("unsupported catalog format %q", filepath.Ext(path))
	}
	if err != nil {
		return nil, fmt.Errorf("decode catalog %s: %w", path, err)
	}
	return NewCatalog(spec)
}

func decodeYAML(data []byte) (CatalogSpec, error) {
	var spec CatalogSpec
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&spec); err != nil {
		return CatalogSpec{}, err
	}
	return spec, nil
}
