package confloader

import (
	"fmt"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// DefaultEnvPrefix is the server's environment variable prefix.
const DefaultEnvPrefix = "WAYPOINT_"

// envSectionSep joins sections in variable names; single underscores stay
// inside key names such as data_dir.
const envSectionSep = "__"

// Loader unmarshals layered configuration into a struct with koanf tags.
type Loader struct {
	file      string
	envPrefix string
	overrides map[string]any
}

type Option func(*Loader)

// WithConfigFile reads the YAML file at path. A missing file is an error.
func WithConfigFile(path string) Option {
	return func(l *Loader) { l.file = path }
}

// WithEnvPrefix changes the environment variable prefix.
func WithEnvPrefix(prefix string) Option {
	return func(l *Loader) { l.envPrefix = prefix }
}

// WithOverrides applies dotted keys ("storage.backend") above every other
// source. Empty string values are skipped so unset flags do not clear
// settings.
func WithOverrides(values map[string]any) Option {
	return func(l *Loader) {
		if l.overrides == nil {
			l.overrides = make(map[string]any)
		}
		for k, v := range values {
			if s, ok := v.(string); ok && s == "" {
				continue
			}
			l.overrides[k] = v
		}
	}
}

func NewLoader(opts ...Option) *Loader {
	l := &Loader{envPrefix: DefaultEnvPrefix}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load merges the sources into target. Fields no source mentions keep their
// current value.
func (l *Loader) Load(target any) error {
	k := koanf.New(".")

	if l.file != "" {
		if err := k.Load(file.Provider(l.file), yaml.Parser()); err != nil {
			return fmt.Errorf("load config file %s: %w", l.file, err)
		}
	}

	prefix := l.envPrefix
	keyOf := func(name string) string {
		name = strings.ToLower(strings.TrimPrefix(name, prefix))
		return strings.ReplaceAll(name, envSectionSep, ".")
	}
	if err := k.Load(env.Provider(prefix, ".", keyOf), nil); err != nil {
		return fmt.Errorf("load environment: %w", err)
	}

	if len(l.overrides) > 0 {
		if err := k.Load(nested(l.overrides), nil); err != nil {
			return fmt.Errorf("load overrides: %w", err)
		}
	}

	if err := k.UnmarshalWithConf("", target, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return fmt.Errorf("unmarshal config: %w", err)
	}
	return nil
}

// nested is a koanf provider over dotted keys.
type nested map[string]any

func (n nested) ReadBytes() ([]byte, error) {
	return nil, fmt.Errorf("confloader: overrides have no byte form")
}

func (n nested) Read() (map[string]any, error) {
	out := make(map[string]any)
	for key, v := range n {
		parts := strings.Split(key, ".")
		m := out
		for _, p := range parts[:len(parts)-1] {
			child, ok := m[p].(map[string]any)
			if !ok {
				child = make(map[string]any)
				m[p] = child
			}
			m = child
		}
		m[parts[len(parts)-1]] = v
	}
	return out, nil
}
