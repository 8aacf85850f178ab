package routing

import (
	"fmt"
	"io/fs"
	"net/http"
	"strings"

	"github.com/goccy/go-json"
	"github.com/gorilla/mux"

	"github.com/spinal-tech/spinal/core/logger"
)

// HandlerRegistry maps names to handler and middleware strategies. Route
// files reference entries by name; nothing in a route file is ever evaluated
// as code.
type HandlerRegistry struct {
	handlers   map[string]http.HandlerFunc
	middleware map[string]mux.MiddlewareFunc
}

// NewHandlerRegistry creates an empty registry.
func NewHandlerRegistry() *HandlerRegistry {
	return &HandlerRegistry{
		handlers:   make(map[string]http.HandlerFunc),
		middleware: make(map[string]mux.MiddlewareFunc),
	}
}

// Handler registers a named handler strategy.
func (r *HandlerRegistry) Handler(name string, fn http.HandlerFunc) *HandlerRegistry {
	r.handlers[name] = fn
	return r
}

// Middleware registers a named middleware strategy.
func (r *HandlerRegistry) Middleware(name string, mw mux.MiddlewareFunc) *HandlerRegistry {
	r.middleware[name] = mw
	return r
}

// routeFile is the on-disk shape of a route unit.
type routeFile struct {
	Router      bool     `json:"router"` // identity marker, mandatory
	Location    string   `json:"location"`
	Ignore      bool     `json:"ignore"`
	MergeParams bool     `json:"merge_params"`
	Model       string   `json:"model"`
	Use         []string `json:"use"`
	Routes      []struct {
		Method  string `json:"method"`
		Path    string `json:"path"`
		Handler string `json:"handler"`
	} `json:"routes"`
}

// Loader turns route files into router handles.
type Loader struct {
	// Handlers resolves named handler and middleware strategies.
	Handlers *HandlerRegistry
	// MountModel mounts the generated endpoints of a model at the unit's
	// mount point. Mandatory for route files that declare a model.
	MountModel func(model string, sub *mux.Router) error
}

// Load parses a single route file into a handle.
func (l *Loader) Load(name string, data []byte) (*RouterHandle, error) {
	var file routeFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("route unit %s: %w", name, err)
	}
	if !file.Router {
		return nil, fmt.Errorf("route unit %s lacks the router marker", name)
	}

	handle := NewHandle()
	handle.Location = file.Location
	handle.Ignore = file.Ignore
	handle.MergeParams = file.MergeParams

	for _, use := range file.Use {
		mw, ok := l.Handlers.middleware[use]
		if !ok {
			return nil, fmt.Errorf("route unit %s references unknown middleware %q", name, use)
		}
		handle.Use(mw)
	}
	for _, route := range file.Routes {
		fn, ok := l.Handlers.handlers[route.Handler]
		if !ok {
			return nil, fmt.Errorf("route unit %s references unknown handler %q", name, route.Handler)
		}
		handle.Handle(strings.ToUpper(route.Method), route.Path, fn)
	}
	if file.Model != "" {
		if l.MountModel == nil {
			return nil, fmt.Errorf("route unit %s declares model %q but no model mounter is configured", name, file.Model)
		}
		model := file.Model
		handle.Mount(func(sub *mux.Router) error {
			return l.MountModel(model, sub)
		})
	}
	return handle, nil
}

// Discover recursively loads every .json route unit under dir in fsys and
// returns the units in discovery order. Malformed units are reported as load
// errors and skipped, they never abort discovery.
func Discover(fsys fs.FS, dir string, loader *Loader) ([]Unit, error) {
	rlog := logger.Default()
	var units []Unit
	err := fs.WalkDir(fsys, dir, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if entry.IsDir() || !strings.HasSuffix(path, ".json") {
			return nil
		}
		name := strings.TrimSuffix(strings.TrimPrefix(path, dir+"/"), ".json")
		data, err := fs.ReadFile(fsys, path)
		if err != nil {
			rlog.WithError(err).Errorln("cannot read route unit", path)
			return nil
		}
		handle, err := loader.Load(name, data)
		if err != nil {
			rlog.WithError(err).Errorln("cannot load router", name)
			return nil
		}
		units = append(units, NewUnit(name, handle))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return units, nil
}
