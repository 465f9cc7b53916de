package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ErrReadYaml is returned when the configuration file cannot be decoded.
var ErrReadYaml = errors.New("reading yaml config")

// DurationWrapper is a time.Duration written as a human readable string.
type DurationWrapper struct {
	time.Duration
}

// MarshalText implements encoding.TextMarshaler.
func (d DurationWrapper) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *DurationWrapper) UnmarshalText(text []byte) error {
	duration, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = duration
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d DurationWrapper) MarshalYAML() (any, error) {
	return d.String(), nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *DurationWrapper) UnmarshalYAML(value *yaml.Node) error {
	return d.UnmarshalText([]byte(value.Value))
}

// SaveAsYaml writes the configuration to ConfigPath, documenting each key with its comment tag.
func (c *Config) SaveAsYaml() error {
	configPath := c.ConfigPath()
	if err := os.MkdirAll(filepath.Dir(configPath), 0o750); err != nil {
		return fmt.Errorf("could not create directory %q: %w", filepath.Dir(configPath), err)
	}

	var root yaml.Node
	if err := root.Encode(c); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	annotate(&root, reflect.TypeOf(*c))

	f, err := os.OpenFile(configPath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer f.Close()

	enc := yaml.NewEncoder(f)
	enc.SetIndent(2)
	if err := enc.Encode(&root); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return enc.Close()
}

// annotate copies the comment struct tags of t onto the keys of a mapping node.
func annotate(node *yaml.Node, t reflect.Type) {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if node.Kind == yaml.DocumentNode {
		for _, child := range node.Content {
			annotate(child, t)
		}
		return
	}
	if node.Kind != yaml.MappingNode || t.Kind() != reflect.Struct {
		return
	}

	fields := make(map[string]reflect.StructField, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		name, _, _ := strings.Cut(f.Tag.Get("yaml"), ",")
		if name == "" || name == "-" {
			continue
		}
		fields[name] = f
	}

	for i := 0; i+1 < len(node.Content); i += 2 {
		key, value := node.Content[i], node.Content[i+1]
		f, ok := fields[key.Value]
		if !ok {
			continue
		}
		if comment := f.Tag.Get("comment"); comment != "" {
			key.HeadComment = comment
		}
		annotate(value, f.Type)
	}
}
