package conductor

import (
	"fmt"
	"net/http"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/template/html/v2"
)

// templateExt is the extension of template files named in a router file.
const templateExt = ".html"

// newViewsFromConfig builds the html view engine from the templates directory
// or filesystem. It returns nil when neither is configured.
func newViewsFromConfig(cfg *ServerConfig) (fiber.Views, error) {
	var engine *html.Engine
	switch {
	case cfg.TemplatesFS != nil:
		engine = html.NewFileSystem(http.FS(cfg.TemplatesFS), templateExt)
	case cfg.TemplatesDirectory != "":
		engine = html.New(cfg.TemplatesDirectory, templateExt)
	default:
		return nil, nil
	}

	engine.AddFuncMap(TemplateFuncs())
	if cfg.Environment == "development" {
		engine.Reload(true)
	}
	if err := engine.Load(); err != nil {
		return nil, fmt.Errorf("conductor: load templates: %w", err)
	}
	return engine, nil
}

// TemplateFuncs returns the helpers available in every template.
func TemplateFuncs() map[string]any {
	return map[string]any{
		// dict builds a map from key/value pairs, for passing several values
		// to a nested template.
		"dict": func(values ...any) (map[string]any, error) {
			if len(values)%2 != 0 {
				return nil, fmt.Errorf("dict: odd number of arguments")
			}
			out := make(map[string]any, len(values)/2)
			for i := 0; i < len(values); i += 2 {
				key, ok := values[i].(string)
				if !ok {
					return nil, fmt.Errorf("dict: key %v is not a string", values[i])
				}
				out[key] = values[i+1]
			}
			return out, nil
		},
		"truncate": func(s string, length int) string {
			runes := []rune(s)
			if len(runes) <= length {
				return s
			}
			return string(runes[:max(length, 0)]) + "..."
		},
		"join":     strings.Join,
		"upper":    strings.ToUpper,
		"lower":    strings.ToLower,
		"contains": strings.Contains,
		"title": func(s string) string {
			r, size := utf8.DecodeRuneInString(s)
			if size == 0 {
				return s
			}
			return string(unicode.ToUpper(r)) + s[size:]
		},
		"add": func(a, b int) int { return a + b },
		"sub": func(a, b int) int { return a - b },
	}
}
