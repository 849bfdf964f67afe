package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Store is where `talentscout config set` persists settings. Keys are dotted
// ("server.port"); values are kept as the raw text the user gave.
type Store interface {
	Lookup(key string) (string, bool)
	Set(key, value string) error
}

// yamlFile keeps settings grouped by section:
//
//	server:
//	  port: "8600"
//	llm:
//	  cache_enabled: "false"
type yamlFile struct {
	path     string
	sections map[string]map[string]string
}

func openYAMLFile(path string) (*yamlFile, error) {
	f := &yamlFile{path: path, sections: map[string]map[string]string{}}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return f, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &f.sections); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	if f.sections == nil {
		f.sections = map[string]map[string]string{}
	}
	return f, nil
}

func splitKey(key string) (section, name string) {
	section, name, _ = strings.Cut(key, ".")
	return section, name
}

func (f *yamlFile) Lookup(key string) (string, bool) {
	section, name := splitKey(key)
	v, ok := f.sections[section][name]
	return v, ok
}

func (f *yamlFile) Set(key, value string) error {
	section, name := splitKey(key)
	if f.sections[section] == nil {
		f.sections[section] = map[string]string{}
	}
	f.sections[section][name] = value

	data, err := yaml.Marshal(f.sections)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(f.path), 0o700); err != nil {
		return fmt.Errorf("creating config dir: %w", err)
	}
	return os.WriteFile(f.path, data, 0o600)
}
