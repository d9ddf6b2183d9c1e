package testsupport

import (
	"net/http"
	"net/url"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/karloscodes/conductor"
)

func TestNewTestServer(t *testing.T) {
	dir := t.TempDir()
	module := WriteFile(t, dir, "renderers/echo.go", "package renderers\n")

	registry := conductor.NewRegistry()
	require.NoError(t, registry.Register(module, func(ctx *conductor.Context) error {
		return ctx.JSON(fiber.Map{
			"method": ctx.Method(),
			"name":   ctx.FormValue("name"),
			"greet":  ctx.Global("greeting"),
		})
	}))

	globals := conductor.NewGlobals()
	globals.Set("greeting", "hello")

	ts := NewTestServer(t, TestServerOptions{
		Router: RouterDocument(t, conductor.RouterVersion, map[string]any{
			"api/echo": map[string]any{
				"python-renderer": module,
				"$methods":        []string{"GET", "POST"},
				"$global":         []string{"greeting"},
			},
		}),
		Globals: globals,
		Loader:  registry,
	})

	resp := ts.Get("/echo")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"method":"GET","name":"","greet":"hello"}`, ReadBody(t, resp))

	resp = ts.PostForm("/echo", url.Values{"name": {"ada"}})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"method":"POST","name":"ada","greet":"hello"}`, ReadBody(t, resp))

	assert.Len(t, ts.Router.Routes(), 1)
	assert.Contains(t, ts.Server.Endpoints(), "api_echo")
}
