package testsupport

import (
	"io"
	"io/fs"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/karloscodes/conductor"
)

// TestServerOptions configures NewTestServer.
type TestServerOptions struct {
	// Router is the router file content. Renderer paths in it are resolved
	// against the working directory.
	Router string

	Globals     *conductor.Globals
	Config      *conductor.Config
	Loader      conductor.ModuleLoader
	TemplatesFS fs.FS

	// ServerConfig overrides the defaults. Logger, Globals, Config and
	// TemplatesFS from the options above are applied on top of it.
	ServerConfig *conductor.ServerConfig
}

// TestServer is an activated conductor Server under test.
type TestServer struct {
	t      testing.TB
	Server *conductor.Server
	Router *conductor.Router
}

// NewTestServer creates a server, parses opts.Router and activates it.
// Failures end the test.
func NewTestServer(t testing.TB, opts TestServerOptions) *TestServer {
	t.Helper()

	cfg := opts.ServerConfig
	if cfg == nil {
		cfg = conductor.DefaultServerConfig()
		cfg.Environment = "test"
		cfg.EnableRequestLogger = false
	}
	cfg.Logger = NewTestLogger()
	if opts.Globals != nil {
		cfg.Globals = opts.Globals
	}
	if opts.Config != nil {
		cfg.Config = opts.Config
	}
	if opts.TemplatesFS != nil {
		cfg.TemplatesFS = opts.TemplatesFS
	}

	server, err := conductor.NewServer(cfg)
	if err != nil {
		t.Fatalf("testsupport: create server: %v", err)
	}

	var routerOpts []conductor.RouterOption
	if opts.Loader != nil {
		routerOpts = append(routerOpts, conductor.WithLoader(opts.Loader))
	}
	router, err := conductor.ParseRouter("router.json", []byte(opts.Router), routerOpts...)
	if err != nil {
		t.Fatalf("testsupport: parse router: %v", err)
	}
	if err := router.Activate(server); err != nil {
		t.Fatalf("testsupport: activate router: %v", err)
	}

	return &TestServer{t: t, Server: server, Router: router}
}

// Do sends req to the server.
func (ts *TestServer) Do(req *http.Request) *http.Response {
	ts.t.Helper()
	resp, err := ts.Server.Test(req, -1)
	if err != nil {
		ts.t.Fatalf("testsupport: request failed: %v", err)
	}
	return resp
}

// Request performs a request with an optional body.
func (ts *TestServer) Request(method, path string, body ...string) *http.Response {
	ts.t.Helper()
	var bodyReader io.Reader
	if len(body) > 0 {
		bodyReader = strings.NewReader(body[0])
	}
	return ts.Do(httptest.NewRequest(method, path, bodyReader))
}

// Get performs a GET request.
func (ts *TestServer) Get(path string) *http.Response {
	return ts.Request(http.MethodGet, path)
}

// PostForm performs a form-encoded POST request.
func (ts *TestServer) PostForm(path string, form url.Values) *http.Response {
	ts.t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return ts.Do(req)
}
