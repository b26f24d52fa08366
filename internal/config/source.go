package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	explainerrors "logexplain/internal/errors"

	"github.com/joho/godotenv"
	toml "github.com/pelletier/go-toml/v2"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
)

// Source is one layer of settings, looked up by key.
type Source interface {
	// Name identifies the layer in diagnostics.
	Name() string

	// Lookup returns the raw value for key and whether the layer sets it.
	Lookup(key string) (string, bool)
}

// Chain consults its sources in order; the first that sets a key wins.
type Chain []Source

// Lookup returns the winning value for key and the name of its source.
func (c Chain) Lookup(key string) (value, source string, ok bool) {
	for _, s := range c {
		if s == nil {
			continue
		}
		if v, found := s.Lookup(key); found {
			return v, s.Name(), true
		}
	}
	return "", "", false
}

// MapSource serves settings from a fixed map.
type MapSource struct {
	name   string
	values map[string]string
}

// NewMapSource creates a source over values.
func NewMapSource(name string, values map[string]string) *MapSource {
	if values == nil {
		values = map[string]string{}
	}
	return &MapSource{name: name, values: values}
}

// Name returns the source name.
func (m *MapSource) Name() string {
	return m.name
}

// Lookup returns the value for key.
func (m *MapSource) Lookup(key string) (string, bool) {
	v, ok := m.values[key]
	return v, ok
}

// Keys returns the keys the source sets, sorted.
func (m *MapSource) Keys() []string {
	keys := make([]string, 0, len(m.values))
	for k := range m.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Defaults returns the built-in settings.
func Defaults() *MapSource {
	return NewMapSource("default", map[string]string{
		KeyModel:       DefaultModel,
		KeyLines:       fmt.Sprint(DefaultLines),
		KeyTemperature: fmt.Sprint(DefaultTemperature),
		KeyMaxTokens:   "0",
		KeyTimeout:     DefaultTimeout.String(),
		KeyFormat:      "text",
		KeyLogLevel:    "warn",
	})
}

// LookupFunc matches os.LookupEnv.
type LookupFunc func(name string) (string, bool)

// EnvSource reads settings from environment variables.
type EnvSource struct {
	name   string
	lookup LookupFunc
}

// NewEnvSource creates an environment source; a nil lookup means os.LookupEnv.
func NewEnvSource(lookup LookupFunc) *EnvSource {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	return &EnvSource{name: "env", lookup: lookup}
}

// Name returns the source name.
func (e *EnvSource) Name() string {
	return e.name
}

// Lookup checks each variable name bound to key. Empty values count as unset.
func (e *EnvSource) Lookup(key string) (string, bool) {
	for _, name := range EnvNames(key) {
		if v, ok := e.lookup(name); ok && v != "" {
			return v, true
		}
	}
	return "", false
}

// EnvNames returns the variables consulted for key, highest priority first.
func EnvNames(key string) []string {
	names := []string{EnvPrefix + strings.ToUpper(key)}
	switch key {
	case KeyAPIKey:
		names = []string{CredentialEnv}
	case KeyBaseURL:
		names = append(names, "OPENAI_BASE_URL")
	}
	return names
}

// LoadEnvFile reads a dotenv file without touching the process environment.
// A missing file yields an empty source.
func LoadEnvFile(path string) (Source, error) {
	name := "env-file"
	if path == "" {
		return NewMapSource(name, nil), nil
	}

	values, err := godotenv.Read(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return NewMapSource(name, nil), nil
		}
		return nil, explainerrors.NewConfigInvalidError(fmt.Sprintf("failed to read env file %s", path), err)
	}

	return &EnvSource{
		name: name + ":" + path,
		lookup: func(n string) (string, bool) {
			v, ok := values[n]
			return v, ok
		},
	}, nil
}

// LoadFile reads a YAML (.yaml, .yml) or TOML (.toml) settings file into a
// source. Top-level keys map to settings; nested tables are ignored.
func LoadFile(path string) (*MapSource, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, explainerrors.NewConfigMissingError(path)
		}
		return nil, explainerrors.NewConfigInvalidError(fmt.Sprintf("failed to read %s", path), err)
	}

	raw := map[string]any{}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &raw)
	case ".toml":
		err = toml.Unmarshal(data, &raw)
	default:
		return nil, explainerrors.NewConfigInvalidError(
			fmt.Sprintf("unsupported config format %q (want .yaml, .yml or .toml)", ext), nil)
	}
	if err != nil {
		return nil, explainerrors.NewConfigInvalidError(fmt.Sprintf("failed to parse %s", path), err)
	}

	values := make(map[string]string, len(raw))
	for k, v := range raw {
		switch v.(type) {
		case map[string]any, []any, nil:
			continue
		}
		values[normalizeKey(k)] = fmt.Sprint(v)
	}

	return NewMapSource("file:"+path, values), nil
}

// FlagSource exposes command-line flags the user explicitly set.
type FlagSource struct {
	flags   *pflag.FlagSet
	mapping map[string]string
}

// NewFlagSource binds setting keys to flag names.
func NewFlagSource(flags *pflag.FlagSet, mapping map[string]string) *FlagSource {
	return &FlagSource{flags: flags, mapping: mapping}
}

// Name returns the source name.
func (f *FlagSource) Name() string {
	return "flag"
}

// Lookup returns the flag value for key when the flag was changed.
func (f *FlagSource) Lookup(key string) (string, bool) {
	if f.flags == nil {
		return "", false
	}
	name, ok := f.mapping[key]
	if !ok {
		return "", false
	}
	flag := f.flags.Lookup(name)
	if flag == nil || !flag.Changed {
		return "", false
	}
	return flag.Value.String(), true
}

func normalizeKey(k string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(k)), "-", "_")
}
