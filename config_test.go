package conductor

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConfig(t *testing.T) {
	cfg, err := NewConfig(`{"$version":"0.1","site_name":"Demo"}`)
	require.NoError(t, err)

	assert.Equal(t, "0.1", cfg.Version())
	assert.Equal(t, "Demo", cfg.String("site_name"))
	assert.Empty(t, cfg.Defaults())
	assert.Empty(t, cfg.Overrides())

	err = cfg.Set("site_name", "Other")
	assert.ErrorIs(t, err, ErrImmutableAttribute)
	assert.Equal(t, "Demo", cfg.String("site_name"))
}

func TestNewConfigReservedKeys(t *testing.T) {
	cfg, err := NewConfig(`{
		"$version": "0.1",
		"$defaults": {"theme": "light", "page_size": 20},
		"$overrides": {"theme": "dark"},
		"$private": true,
		"# comment": "ignored",
		"theme": "system",
		"title": "Fruit"
	}`)
	require.NoError(t, err)

	assert.Equal(t, []string{"theme", "title"}, cfg.Keys())
	assert.False(t, cfg.Has("$private"))
	assert.False(t, cfg.Has("# comment"))
	assert.Equal(t, map[string]any{"theme": "light", "page_size": float64(20)}, cfg.Defaults())
	assert.Equal(t, map[string]any{"theme": "dark"}, cfg.Overrides())
}

func TestNewConfigErrors(t *testing.T) {
	tests := []struct {
		name     string
		document string
		want     error
	}{
		{"malformed", `{"$version": "0.1",`, ErrParse},
		{"not an object", `["0.1"]`, ErrParse},
		{"null", `null`, ErrParse},
		{"trailing data", `{"$version":"0.1"} {}`, ErrParse},
		{"missing version", `{"site_name":"Demo"}`, ErrVersionMismatch},
		{"wrong version", `{"$version":"0.2"}`, ErrVersionMismatch},
		{"numeric version", `{"$version":0.1}`, ErrVersionMismatch},
		{"defaults not an object", `{"$version":"0.1","$defaults":[1]}`, ErrParse},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewConfig(tt.document)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestConfigSetIsWriteOnce(t *testing.T) {
	cfg, err := NewConfig(`{"$version":"0.1"}`)
	require.NoError(t, err)

	for _, name := range []string{"a", "b", "c", "d"} {
		require.NoError(t, cfg.Set(name, name+"-value"))
	}
	for _, name := range []string{"a", "b", "c", "d"} {
		assert.ErrorIs(t, cfg.Set(name, "again"), ErrImmutableAttribute)
		assert.Equal(t, name+"-value", cfg.String(name))
	}
}

func TestConfigSetConcurrent(t *testing.T) {
	cfg, err := NewConfig(`{"$version":"0.1"}`)
	require.NoError(t, err)

	const writers = 16
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if cfg.Set("leader", i) == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 1, wins)
}

func TestConfigLookup(t *testing.T) {
	cfg, err := NewConfig(`{
		"$version": "0.1",
		"$defaults": {"theme": "light", "page_size": "20", "debug": "true"},
		"$overrides": {"title": "Overridden"},
		"title": "Fruit",
		"theme": "system"
	}`)
	require.NoError(t, err)

	v, ok := cfg.Lookup("title")
	assert.True(t, ok)
	assert.Equal(t, "Overridden", v, "overrides win")

	assert.Equal(t, "system", cfg.String("theme"), "attributes beat defaults")
	assert.Equal(t, 20, cfg.Int("page_size"), "defaults are the fallback")
	assert.True(t, cfg.Bool("debug"))

	_, ok = cfg.Lookup("missing")
	assert.False(t, ok)
	assert.Equal(t, "", cfg.String("missing"))

	raw, ok := cfg.Get("title")
	assert.True(t, ok)
	assert.Equal(t, "Fruit", raw, "Get ignores overrides")
}

func TestConfigTypedAccessors(t *testing.T) {
	cfg, err := NewConfig(`{
		"$version": "0.1",
		"fruits": ["apple", "pear"],
		"prices": {"apple": 1.5},
		"port": 8080
	}`)
	require.NoError(t, err)

	assert.Equal(t, []string{"apple", "pear"}, cfg.StringSlice("fruits"))
	assert.Equal(t, map[string]any{"apple": 1.5}, cfg.StringMap("prices"))
	assert.Equal(t, 8080, cfg.Int("port"))
	assert.Equal(t, "8080", cfg.String("port"))
}

func TestConfigAttributesIsACopy(t *testing.T) {
	cfg, err := NewConfig(`{"$version":"0.1","title":"Fruit"}`)
	require.NoError(t, err)

	attrs := cfg.Attributes()
	attrs["title"] = "Changed"
	attrs["extra"] = true

	assert.Equal(t, "Fruit", cfg.String("title"))
	assert.False(t, cfg.Has("extra"))
}

func TestConfigValuesCannotBeChangedThroughCopies(t *testing.T) {
	cfg, err := NewConfig(`{
		"$version": "0.1",
		"$defaults": {"currency": "USD"},
		"$overrides": {"theme": "dark"},
		"store": {"name": "Fruit", "stalls": ["north", "south"]}
	}`)
	require.NoError(t, err)

	cfg.Overrides()["theme"] = "light"
	cfg.Defaults()["currency"] = "EUR"
	assert.Equal(t, "dark", cfg.String("theme"))
	assert.Equal(t, "USD", cfg.String("currency"))

	store, ok := cfg.Get("store")
	require.True(t, ok)
	store.(map[string]any)["name"] = "Other"
	store.(map[string]any)["stalls"].([]any)[0] = "east"

	cfg.StringMap("store")["name"] = "Another"

	looked, _ := cfg.Lookup("store")
	looked.(map[string]any)["name"] = "Yet another"

	assert.Equal(t, map[string]any{"name": "Fruit", "stalls": []any{"north", "south"}}, cfg.StringMap("store"))
}

func TestConfigSetCopiesValue(t *testing.T) {
	cfg, err := NewConfig(`{"$version":"0.1"}`)
	require.NoError(t, err)

	prices := map[string]any{"apple": 1.5}
	require.NoError(t, cfg.Set("prices", prices))
	prices["apple"] = 9.0

	assert.Equal(t, map[string]any{"apple": 1.5}, cfg.StringMap("prices"))
}

func TestConfigDecode(t *testing.T) {
	cfg, err := NewConfig(`{
		"$version": "0.1",
		"store": {"name": "Fruit", "timeout": "5s", "tags": "fresh,local", "stalls": "3"}
	}`)
	require.NoError(t, err)

	var store struct {
		Name    string        `mapstructure:"name"`
		Timeout time.Duration `mapstructure:"timeout"`
		Tags    []string      `mapstructure:"tags"`
		Stalls  int           `mapstructure:"stalls"`
	}
	require.NoError(t, cfg.Decode("store", &store))
	assert.Equal(t, "Fruit", store.Name)
	assert.Equal(t, 5*time.Second, store.Timeout)
	assert.Equal(t, []string{"fresh", "local"}, store.Tags)
	assert.Equal(t, 3, store.Stalls)

	assert.Error(t, cfg.Decode("missing", &store))
}

func TestConfigWithSchema(t *testing.T) {
	schema := []byte(`{
		"type": "object",
		"required": ["site_name"],
		"properties": {
			"site_name": {"type": "string"},
			"port": {"type": "integer", "minimum": 1}
		}
	}`)

	t.Run("valid", func(t *testing.T) {
		cfg, err := NewConfig(`{"$version":"0.1","site_name":"Demo","port":8080}`, WithSchema(schema))
		require.NoError(t, err)
		assert.Equal(t, "Demo", cfg.String("site_name"))
	})

	t.Run("reserved keys are not validated", func(t *testing.T) {
		_, err := NewConfig(`{"$version":"0.1","site_name":"Demo","$defaults":{"port":"x"}}`, WithSchema(schema))
		assert.NoError(t, err)
	})

	t.Run("missing required", func(t *testing.T) {
		_, err := NewConfig(`{"$version":"0.1","port":8080}`, WithSchema(schema))
		assert.ErrorIs(t, err, ErrSchemaViolation)
	})

	t.Run("wrong type", func(t *testing.T) {
		_, err := NewConfig(`{"$version":"0.1","site_name":"Demo","port":0}`, WithSchema(schema))
		assert.ErrorIs(t, err, ErrSchemaViolation)
	})

	t.Run("invalid schema", func(t *testing.T) {
		_, err := NewConfig(`{"$version":"0.1"}`, WithSchema([]byte(`{"type": 12}`)))
		assert.Error(t, err)
		assert.NotErrorIs(t, err, ErrSchemaViolation)
	})
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()

	t.Run("reads the file", func(t *testing.T) {
		path := filepath.Join(dir, "config.json")
		require.NoError(t, os.WriteFile(path, []byte(`{"$version":"0.1","site_name":"Demo"}`), 0o644))

		cfg, err := LoadConfig(path)
		require.NoError(t, err)
		assert.Equal(t, "Demo", cfg.String("site_name"))
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := LoadConfig(filepath.Join(dir, "absent.json"))
		assert.ErrorIs(t, err, ErrFileNotFound)
	})

	t.Run("wrong extension", func(t *testing.T) {
		path := filepath.Join(dir, "config.yaml")
		require.NoError(t, os.WriteFile(path, []byte(`site_name: Demo`), 0o644))

		_, err := LoadConfig(path)
		assert.ErrorIs(t, err, ErrInvalidFormat)
	})
}
