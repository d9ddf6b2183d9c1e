package conductor

import (
	"bytes"
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/go-viper/mapstructure/v2"
	"github.com/santhosh-tekuri/jsonschema/v6"
	"github.com/spf13/cast"
)

// Config holds application settings loaded from a JSON document.
//
// Top-level keys not starting with "$" or "#" become attributes. "$defaults"
// and "$overrides" are kept separately and consulted by Lookup. Attributes
// are write-once, so every component holding the same *Config observes the
// same values for the lifetime of the process.
type Config struct {
	version   string
	defaults  map[string]any
	overrides map[string]any

	mu    sync.RWMutex
	attrs map[string]any
}

// ConfigOption customises config construction.
type ConfigOption func(*configOptions) error

type configOptions struct {
	schema *jsonschema.Schema
}

// WithSchema validates the config attributes against a JSON Schema document.
func WithSchema(schema []byte) ConfigOption {
	return func(o *configOptions) error {
		doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(schema))
		if err != nil {
			return fmt.Errorf("conductor: config schema: %w", err)
		}
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource("config.schema.json", doc); err != nil {
			return fmt.Errorf("conductor: config schema: %w", err)
		}
		compiled, err := compiler.Compile("config.schema.json")
		if err != nil {
			return fmt.Errorf("conductor: config schema: %w", err)
		}
		o.schema = compiled
		return nil
	}
}

// NewConfig parses a JSON config document.
func NewConfig(document string, opts ...ConfigOption) (*Config, error) {
	return parseConfig([]byte(document), opts...)
}

// LoadConfig reads and parses a JSON config file. The file goes through the
// same checks as a router file.
func LoadConfig(path string, opts ...ConfigOption) (*Config, error) {
	data, err := readDocument("config", path)
	if err != nil {
		return nil, err
	}
	return parseConfig(data, opts...)
}

func parseConfig(data []byte, opts ...ConfigOption) (*Config, error) {
	var o configOptions
	for _, opt := range opts {
		if err := opt(&o); err != nil {
			return nil, err
		}
	}

	doc, err := decodeDocument("config", data)
	if err != nil {
		return nil, err
	}

	version, err := checkVersion("config", doc, ConfigVersion)
	if err != nil {
		return nil, err
	}

	defaults, err := subMap("config", doc, "$defaults")
	if err != nil {
		return nil, err
	}
	overrides, err := subMap("config", doc, "$overrides")
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		version:   version,
		defaults:  defaults,
		overrides: overrides,
		attrs:     make(map[string]any, len(doc)),
	}
	for key, value := range doc {
		if isReservedKey(key) {
			continue
		}
		if err := cfg.Set(key, value); err != nil {
			return nil, err
		}
	}

	if o.schema != nil {
		if err := validateSchema(o.schema, cfg.attrs); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// validateSchema round-trips the attributes through the schema library's own
// decoder so numbers are represented the way it expects.
func validateSchema(schema *jsonschema.Schema, attrs map[string]any) error {
	raw, err := json.Marshal(attrs)
	if err != nil {
		return fmt.Errorf("conductor: config schema: %w", err)
	}
	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		return fmt.Errorf("conductor: config schema: %w", err)
	}
	if err := schema.Validate(inst); err != nil {
		return fmt.Errorf("conductor: %w: %v", ErrSchemaViolation, err)
	}
	return nil
}

// Set defines a new attribute. Redefining an existing one fails with
// ErrImmutableAttribute.
func (c *Config) Set(name string, value any) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.attrs == nil {
		c.attrs = make(map[string]any)
	}
	if _, exists := c.attrs[name]; exists {
		return fmt.Errorf("conductor: unable to set attribute %q: %w", name, ErrImmutableAttribute)
	}
	c.attrs[name] = cloneValue(value)
	return nil
}

// Version returns the document's "$version".
func (c *Config) Version() string { return c.version }

// Defaults returns a copy of the "$defaults" mapping.
func (c *Config) Defaults() map[string]any { return cloneMap(c.defaults) }

// Overrides returns a copy of the "$overrides" mapping.
func (c *Config) Overrides() map[string]any { return cloneMap(c.overrides) }

// Get returns a copy of the attribute value and whether it exists.
func (c *Config) Get(name string) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.attrs[name]
	return cloneValue(v), ok
}

// Has reports whether the attribute exists.
func (c *Config) Has(name string) bool {
	_, ok := c.Get(name)
	return ok
}

// Keys returns the attribute names in sorted order.
func (c *Config) Keys() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Sorted(maps.Keys(c.attrs))
}

// Attributes returns a copy of all attributes.
func (c *Config) Attributes() map[string]any {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return cloneMap(c.attrs)
}

// Lookup resolves name from overrides, then attributes, then defaults. The
// value is a copy; changing it does not change the config.
func (c *Config) Lookup(name string) (any, bool) {
	if v, ok := c.overrides[name]; ok {
		return cloneValue(v), true
	}
	if v, ok := c.Get(name); ok {
		return v, true
	}
	v, ok := c.defaults[name]
	return cloneValue(v), ok
}

// cloneValue deep-copies the maps and slices a JSON document decodes into.
func cloneValue(v any) any {
	switch v := v.(type) {
	case map[string]any:
		return cloneMap(v)
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = cloneValue(item)
		}
		return out
	default:
		return v
	}
}

func cloneMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = cloneValue(v)
	}
	return out
}

func (c *Config) lookup(name string) any {
	v, _ := c.Lookup(name)
	return v
}

// String returns the resolved value as a string, or "" when missing.
func (c *Config) String(name string) string { return cast.ToString(c.lookup(name)) }

// Int returns the resolved value as an int, or 0 when missing.
func (c *Config) Int(name string) int { return cast.ToInt(c.lookup(name)) }

// Bool returns the resolved value as a bool, or false when missing.
func (c *Config) Bool(name string) bool { return cast.ToBool(c.lookup(name)) }

// StringSlice returns the resolved value as a []string.
func (c *Config) StringSlice(name string) []string { return cast.ToStringSlice(c.lookup(name)) }

// StringMap returns the resolved value as a map[string]any.
func (c *Config) StringMap(name string) map[string]any { return cast.ToStringMap(c.lookup(name)) }

// Decode copies the resolved value into out, which must be a pointer.
// Struct fields are matched by their `mapstructure` tags.
func (c *Config) Decode(name string, out any) error {
	v, ok := c.Lookup(name)
	if !ok {
		return fmt.Errorf("conductor: config attribute %q is not set", name)
	}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		WeaklyTypedInput: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
	})
	if err != nil {
		return fmt.Errorf("conductor: decode %q: %w", name, err)
	}
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("conductor: decode %q: %w", name, err)
	}
	return nil
}
