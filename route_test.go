package conductor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoutePath(t *testing.T) {
	tests := map[string]string{
		"page/about":         "/about",
		"page/home":          "/home",
		"page/":              "/",
		"page":               "/",
		"api/v1/fruit":       "/v1/fruit",
		"page/fruit/<fruit>": "/fruit/<fruit>",
	}
	for key, want := range tests {
		t.Run(key, func(t *testing.T) {
			assert.Equal(t, want, routePath(key))
		})
	}
}

func TestEndpointName(t *testing.T) {
	tests := map[string]string{
		"page/home":          "page_home",
		"page/fruit/<fruit>": "page_fruit__fruit_",
		"api/v1.2/x-y":       "api_v1_2_x_y",
		"already_clean":      "already_clean",
		"page/café":          "page_caf_",
	}
	for key, want := range tests {
		t.Run(key, func(t *testing.T) {
			assert.Equal(t, want, endpointName(key))
		})
	}
}

func TestFiberPattern(t *testing.T) {
	tests := map[string]string{
		"/about":                   "/about",
		"/fruit/<fruit>":           "/fruit/:fruit",
		"/fruit/<string:fruit>":    "/fruit/:fruit",
		"/order/<int:id>":          "/order/:id<int>",
		"/price/<float:amount>":    "/price/:amount<float>",
		"/basket/<uuid:basket_id>": "/basket/:basket_id<guid>",
		"/files/<path:rest>":       "/files/*",
		"/a/<x>/b/<int:y>":         "/a/:x/b/:y<int>",
	}
	for path, want := range tests {
		t.Run(path, func(t *testing.T) {
			assert.Equal(t, want, fiberPattern(path))
		})
	}
}

func TestIsErrorRouteKey(t *testing.T) {
	assert.True(t, isErrorRouteKey("@error/404"))
	assert.True(t, isErrorRouteKey("@error"))
	assert.True(t, isErrorRouteKey("@errors/404"))
	assert.True(t, isErrorRouteKey("@error404"))
	assert.False(t, isErrorRouteKey("page/@error"))
}

func TestParseErrorCode(t *testing.T) {
	code, err := parseErrorCode("@error/404")
	require.NoError(t, err)
	assert.Equal(t, 404, code)

	code, err = parseErrorCode("@error/500/extra")
	require.NoError(t, err)
	assert.Equal(t, 500, code)

	for _, key := range []string{"@error", "@error/", "@error/abc", "@error/42", "@error/600", "@error404", "@errors/404"} {
		t.Run(key, func(t *testing.T) {
			_, err := parseErrorCode(key)
			assert.ErrorIs(t, err, ErrInvalidRouteData)

			var re *RouteError
			require.ErrorAs(t, err, &re)
			assert.Equal(t, key, re.Key)
		})
	}
}

func TestParseMethods(t *testing.T) {
	tests := []struct {
		name  string
		route map[string]any
		want  []string
		err   error
	}{
		{"default", map[string]any{}, []string{"GET"}, nil},
		{"explicit", map[string]any{"$methods": []any{"GET", "POST"}}, []string{"GET", "POST"}, nil},
		{"all allowed", map[string]any{"$methods": []any{"PUT", "DELETE"}}, []string{"PUT", "DELETE"}, nil},
		{"duplicates collapse", map[string]any{"$methods": []any{"GET", "GET"}}, []string{"GET"}, nil},
		{"string", map[string]any{"$methods": "GET"}, nil, ErrInvalidMethodList},
		{"object", map[string]any{"$methods": map[string]any{"GET": true}}, nil, ErrInvalidMethodList},
		{"empty", map[string]any{"$methods": []any{}}, nil, ErrInvalidMethodList},
		{"patch", map[string]any{"$methods": []any{"GET", "PATCH"}}, nil, ErrInvalidMethod},
		{"lowercase", map[string]any{"$methods": []any{"get"}}, nil, ErrInvalidMethod},
		{"number", map[string]any{"$methods": []any{float64(1)}}, nil, ErrInvalidMethod},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseMethods("page/x", tt.route)
			if tt.err != nil {
				assert.ErrorIs(t, err, tt.err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseDefinition(t *testing.T) {
	t.Run("template route", func(t *testing.T) {
		def, raw, err := parseDefinition("page/home", map[string]any{
			"template": "home.html",
			"$global":  []any{"choices"},
			"color":    "red",
		})
		require.NoError(t, err)
		assert.Equal(t, "home.html", def.Template)
		assert.Empty(t, def.Renderer)
		assert.Equal(t, []string{"choices"}, def.Globals)
		assert.Equal(t, []string{"GET"}, def.Methods)
		assert.Equal(t, "red", raw["color"])
	})

	t.Run("renderer alias", func(t *testing.T) {
		def, _, err := parseDefinition("page/x", map[string]any{"renderer": "renderers/x.go"})
		require.NoError(t, err)
		assert.Equal(t, "renderers/x.go", def.Renderer)
	})

	t.Run("python-renderer wins over alias", func(t *testing.T) {
		def, _, err := parseDefinition("page/x", map[string]any{
			"python-renderer": "a.go",
			"renderer":        "b.go",
		})
		require.NoError(t, err)
		assert.Equal(t, "a.go", def.Renderer)
	})

	t.Run("not a mapping", func(t *testing.T) {
		for _, value := range []any{"home.html", []any{"x"}, float64(1), nil, true} {
			_, _, err := parseDefinition("page/home", value)
			assert.ErrorIs(t, err, ErrInvalidRouteData)
		}
		_, _, err := parseDefinition("page/home", "home.html")
		assert.Contains(t, err.Error(), "got string")
		assert.Contains(t, err.Error(), "page/home")
	})

	t.Run("no render target", func(t *testing.T) {
		_, _, err := parseDefinition("page/home", map[string]any{"$methods": []any{"GET"}})
		assert.ErrorIs(t, err, ErrMissingRenderTarget)
	})

	t.Run("wrong field type", func(t *testing.T) {
		_, _, err := parseDefinition("page/home", map[string]any{"template": []any{"a"}})
		assert.ErrorIs(t, err, ErrInvalidRouteData)
	})
}

func TestComputeMeta(t *testing.T) {
	t.Run("normal route", func(t *testing.T) {
		raw := map[string]any{"template": "home.html"}
		def, _, err := parseDefinition("page/home", raw)
		require.NoError(t, err)

		meta := computeMeta("page/home", 0, def, raw)
		assert.Equal(t, "page/home", meta.RawRoute)
		assert.Equal(t, "/home", meta.Path)
		assert.Equal(t, "/home", meta.Pattern)
		assert.Equal(t, 200, meta.ErrorCode)
		assert.Equal(t, []string{"GET"}, meta.Methods)
		assert.Equal(t, "page_home", meta.Endpoint)
		assert.Equal(t, "home.html", meta.Template)
		assert.False(t, meta.IsErrorRoute())
	})

	t.Run("explicit endpoint", func(t *testing.T) {
		raw := map[string]any{"template": "f.html", "$endpointurl": "fruit"}
		def, _, err := parseDefinition("page/fruit/<name>", raw)
		require.NoError(t, err)

		meta := computeMeta("page/fruit/<name>", 0, def, raw)
		assert.Equal(t, "fruit", meta.Endpoint)
		assert.Equal(t, "/fruit/:name", meta.Pattern)
	})

	t.Run("error route", func(t *testing.T) {
		raw := map[string]any{"template": "404.html", "$methods": []any{"GET"}}
		def, _, err := parseDefinition("@error/404", raw)
		require.NoError(t, err)

		meta := computeMeta("@error/404", 404, def, raw)
		assert.Equal(t, 404, meta.ErrorCode)
		assert.True(t, meta.IsErrorRoute())
		assert.Empty(t, meta.Pattern)
		assert.Empty(t, meta.Endpoint)
	})

	t.Run("route data is a copy", func(t *testing.T) {
		raw := map[string]any{"template": "home.html"}
		def, _, err := parseDefinition("page/home", raw)
		require.NoError(t, err)

		meta := computeMeta("page/home", 0, def, raw)
		raw["template"] = "changed.html"
		assert.Equal(t, "home.html", meta.Data["template"])
	})
}

func TestRouteMetaValue(t *testing.T) {
	meta := &RouteMeta{
		RawRoute:  "page/fruit/<fruit>",
		Data:      map[string]any{"template": "fruit.html"},
		Path:      "/fruit/<fruit>",
		Pattern:   "/fruit/:fruit",
		ErrorCode: 200,
		Methods:   []string{"GET"},
		Globals:   []string{"fruit_dict"},
		Endpoint:  "fruit",
		Template:  "fruit.html",
		Renderer:  "renderers/fruit.go",
	}

	assert.Equal(t, "page/fruit/<fruit>", meta.Value("raw_route"))
	assert.Equal(t, "/fruit/<fruit>", meta.Value("route"))
	assert.Equal(t, 200, meta.Value("error_code"))
	assert.Equal(t, []string{"fruit_dict"}, meta.Value("globals_list"))
	assert.Equal(t, "renderers/fruit.go", meta.Value("renderer"))
	assert.Nil(t, meta.Value("unknown"))

	values := meta.Values()
	assert.Len(t, values, 10)
	assert.Equal(t, "fruit", values["endpoint"])

	methods := meta.Value("methods").([]string)
	methods[0] = "POST"
	assert.Equal(t, []string{"GET"}, meta.Methods, "Value returns copies")
}
