package conductor

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noopRenderer(*Context) error { return nil }

func TestRegistry(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register("renderers/random.go", noopRenderer))
	assert.Equal(t, 1, reg.Len())

	t.Run("relative and absolute paths name the same module", func(t *testing.T) {
		abs, err := filepath.Abs("renderers/random.go")
		require.NoError(t, err)

		fn, err := reg.Load(abs)
		require.NoError(t, err)
		assert.NotNil(t, fn)

		_, err = reg.Load("./renderers/../renderers/random.go")
		assert.NoError(t, err)
	})

	t.Run("one entry point per module", func(t *testing.T) {
		err := reg.Register("renderers/random.go", noopRenderer)
		assert.Error(t, err)
		assert.Equal(t, 1, reg.Len())
	})

	t.Run("nil renderer", func(t *testing.T) {
		assert.Error(t, reg.Register("renderers/nil.go", nil))
	})

	t.Run("unknown module", func(t *testing.T) {
		_, err := reg.Load("renderers/unknown.go")
		assert.ErrorIs(t, err, ErrHandlerNotFound)
	})
}

type stubLoader struct {
	fn  Renderer
	err error
}

func (s stubLoader) Load(string) (Renderer, error) { return s.fn, s.err }

func TestChainLoader(t *testing.T) {
	notFound := stubLoader{err: ErrHandlerNotFound}
	found := stubLoader{fn: noopRenderer}
	broken := stubLoader{err: errors.New("plugin was built with a different version of package")}

	t.Run("falls through not found", func(t *testing.T) {
		fn, err := ChainLoader{notFound, found}.Load("x.go")
		require.NoError(t, err)
		assert.NotNil(t, fn)
	})

	t.Run("stops at other errors", func(t *testing.T) {
		_, err := ChainLoader{broken, found}.Load("x.go")
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrHandlerNotFound)
	})

	t.Run("exhausted", func(t *testing.T) {
		_, err := ChainLoader{notFound, notFound}.Load("x.go")
		assert.ErrorIs(t, err, ErrHandlerNotFound)
	})

	t.Run("empty", func(t *testing.T) {
		_, err := ChainLoader{}.Load("x.go")
		assert.ErrorIs(t, err, ErrHandlerNotFound)
	})
}

func TestPluginLoaderRejectsNonPlugins(t *testing.T) {
	_, err := PluginLoader{}.Load("renderers/random.go")
	assert.ErrorIs(t, err, ErrHandlerNotFound)
}

func TestPluginLoaderOpenFailure(t *testing.T) {
	path := writeFile(t, t.TempDir(), "broken.so", "not an elf file")
	_, err := PluginLoader{}.Load(path)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrHandlerNotFound)
}

func TestLoadModule(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "form.go", "package renderers\n")

	reg := NewRegistry()
	require.NoError(t, reg.Register(path, noopRenderer))

	fn, err := loadModule(reg, path)
	require.NoError(t, err)
	assert.NotNil(t, fn)

	_, err = loadModule(reg, filepath.Join(dir, "missing.go"))
	assert.ErrorIs(t, err, ErrFileNotFound)

	// registered but absent on disk
	require.NoError(t, reg.Register(filepath.Join(dir, "ghost.go"), noopRenderer))
	_, err = loadModule(reg, filepath.Join(dir, "ghost.go"))
	assert.ErrorIs(t, err, ErrFileNotFound)
}
