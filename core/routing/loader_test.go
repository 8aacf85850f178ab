package routing

import (
	"net/http"
	"testing"
	"testing/fstest"

	"github.com/gorilla/mux"

	"github.com/spinal-tech/spinal/core/client"
)

func routeUnit(content string) *fstest.MapFile {
	return &fstest.MapFile{Data: []byte(content)}
}

func echo(text string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(text))
	}
}

func testLoader(t *testing.T) *Loader {
	t.Helper()
	registry := NewHandlerRegistry().
		Handler("home", echo("home")).
		Handler("login", echo("login")).
		Handler("users", echo("users")).
		Handler("user", func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("user " + mux.Vars(r)["id"]))
		})
	return &Loader{Handlers: registry}
}

func TestDiscover(t *testing.T) {
	fsys := fstest.MapFS{
		"routes/index.json": routeUnit(
			`{"router":true,"routes":[{"method":"GET","path":"","handler":"home"}]}`),
		"routes/login.json": routeUnit(
			`{"router":true,"routes":[{"method":"POST","path":"","handler":"login"}]}`),
		"routes/api/users/index.json": routeUnit(
			`{"router":true,"routes":[{"method":"GET","path":"","handler":"users"}]}`),
		"routes/readme.txt": routeUnit("not a route unit"),
	}
	units, err := Discover(fsys, "routes", testLoader(t))
	if err != nil {
		t.Fatal(err)
	}
	if len(units) != 3 {
		t.Fatalf("expected 3 units, got %d", len(units))
	}
	seen := map[string]bool{}
	for _, u := range units {
		seen[u.Name] = true
	}
	for _, name := range []string{"index", "login", "api/users/index"} {
		if !seen[name] {
			t.Fatalf("unit %s not discovered", name)
		}
	}
}

func TestDiscoverSkipsMalformedUnits(t *testing.T) {
	fsys := fstest.MapFS{
		"routes/good.json": routeUnit(
			`{"router":true,"routes":[{"method":"GET","path":"","handler":"home"}]}`),
		"routes/no-marker.json": routeUnit(
			`{"routes":[{"method":"GET","path":"","handler":"home"}]}`),
		"routes/broken.json": routeUnit(`{"router":`),
		"routes/unknown-handler.json": routeUnit(
			`{"router":true,"routes":[{"method":"GET","path":"","handler":"nope"}]}`),
	}
	units, err := Discover(fsys, "routes", testLoader(t))
	if err != nil {
		t.Fatal(err)
	}
	if len(units) != 1 || units[0].Name != "good" {
		t.Fatalf("expected only the good unit, got %v", units)
	}
}

func TestLoadMissingMarker(t *testing.T) {
	loader := testLoader(t)
	_, err := loader.Load("broken", []byte(`{"routes":[]}`))
	if err == nil {
		t.Fatal("a unit without the router marker must not load")
	}
}

func TestLoadModelWithoutMounter(t *testing.T) {
	loader := testLoader(t)
	_, err := loader.Load("users", []byte(`{"router":true,"model":"user"}`))
	if err == nil {
		t.Fatal("a model unit without a model mounter must not load")
	}
}

func TestLoadUse(t *testing.T) {
	called := false
	registry := NewHandlerRegistry().
		Handler("home", echo("home")).
		Middleware("audit", func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				called = true
				next.ServeHTTP(w, r)
			})
		})
	loader := &Loader{Handlers: registry}
	handle, err := loader.Load("home", []byte(
		`{"router":true,"use":["audit"],"routes":[{"method":"GET","path":"","handler":"home"}]}`))
	if err != nil {
		t.Fatal(err)
	}

	router := mux.NewRouter()
	binder := Binder{Router: router}
	binder.Bind([]Unit{NewUnit("home", handle)})

	c := client.NewWithRouter(router)
	if status, _ := c.Get("/home", nil); status != http.StatusOK {
		t.Fatalf("expected 200, got %d", status)
	}
	if !called {
		t.Fatal("middleware was not invoked")
	}
}

func bindTree(t *testing.T, fsys fstest.MapFS, loader *Loader) client.Client {
	t.Helper()
	units, err := Discover(fsys, "routes", loader)
	if err != nil {
		t.Fatal(err)
	}
	router := mux.NewRouter()
	binder := Binder{Router: router}
	binder.Bind(units)
	return client.NewWithRouter(router)
}

func TestBindTree(t *testing.T) {
	fsys := fstest.MapFS{
		"routes/index.json": routeUnit(
			`{"router":true,"routes":[{"method":"GET","path":"","handler":"home"}]}`),
		"routes/login.json": routeUnit(
			`{"router":true,"routes":[{"method":"POST","path":"","handler":"login"}]}`),
		"routes/api/users/index.json": routeUnit(
			`{"router":true,"routes":[{"method":"GET","path":"","handler":"users"},{"method":"GET","path":"/@id","handler":"user"}]}`),
	}
	c := bindTree(t, fsys, testLoader(t))

	testCases := []struct {
		method string
		path   string
		status int
		body   string
	}{
		{"GET", "/", http.StatusOK, "home"},
		{"POST", "/login", http.StatusOK, "login"},
		{"GET", "/api/users", http.StatusOK, "users"},
		{"GET", "/api/users/42", http.StatusOK, "user 42"},
	}
	for _, tc := range testCases {
		status, body, _, err := c.RawDo(tc.method, tc.path, nil)
		if err != nil {
			t.Fatal(err)
		}
		if status != tc.status {
			t.Fatalf("%s %s: expected %d, got %d", tc.method, tc.path, tc.status, status)
		}
		if string(body) != tc.body {
			t.Fatalf("%s %s: expected body %q, got %q", tc.method, tc.path, tc.body, string(body))
		}
	}
}

func TestBindIgnore(t *testing.T) {
	fsys := fstest.MapFS{
		"routes/hidden.json": routeUnit(
			`{"router":true,"ignore":true,"routes":[{"method":"GET","path":"","handler":"home"}]}`),
	}
	c := bindTree(t, fsys, testLoader(t))
	if status, _ := c.Get("/hidden", nil); status == http.StatusOK {
		t.Fatal("ignored unit must not be mounted")
	}
}

func TestBindLocationOverride(t *testing.T) {
	fsys := fstest.MapFS{
		"routes/legacy.json": routeUnit(
			`{"router":true,"location":"v2/accounts","routes":[{"method":"GET","path":"","handler":"home"}]}`),
	}
	c := bindTree(t, fsys, testLoader(t))
	if status, _ := c.Get("/v2/accounts", nil); status != http.StatusOK {
		t.Fatal("location override not honored")
	}
	if status, _ := c.Get("/legacy", nil); status == http.StatusOK {
		t.Fatal("overridden unit must not mount at its file path")
	}
}

func TestBindModelUnit(t *testing.T) {
	registry := NewHandlerRegistry()
	loader := &Loader{
		Handlers: registry,
		MountModel: func(model string, sub *mux.Router) error {
			sub.HandleFunc("/all", echo("all "+model)).Methods(http.MethodGet)
			return nil
		},
	}
	fsys := fstest.MapFS{
		"routes/api/notes.json": routeUnit(`{"router":true,"model":"note"}`),
	}
	c := bindTree(t, fsys, loader)
	status, body, _, err := c.RawDo(http.MethodGet, "/api/notes/all", nil)
	if err != nil {
		t.Fatal(err)
	}
	if status != http.StatusOK || string(body) != "all note" {
		t.Fatalf("model unit not mounted: %d %q", status, string(body))
	}
}
