/*Package routing turns a file tree of route units into an ordered route
table and mounts it on a gorilla/mux router.

Discovery walks a directory of JSON route files, loads each one as a typed
unit, orders the units deterministically and binds them. Deeper paths bind
first so specific routes take precedence over shallow catch-alls, and a
directory's own index route is mounted after its children.
*/
package routing

import (
	"net/http"

	"github.com/gorilla/mux"
)

// RouterHandle is the payload of a route unit: where to mount, whether to
// skip, and the ordered middleware and handler entries to register there.
type RouterHandle struct {
	// Location overrides the mount point derived from the unit's path.
	Location string
	// Ignore excludes the unit from binding entirely.
	Ignore bool
	// MergeParams lets handlers see path parameters of the parent mount.
	// Subrouters inherit parent variables, so this is the default behavior
	// of the transport; the flag is kept for route files that state it.
	MergeParams bool

	middleware []mux.MiddlewareFunc
	routes     []routeEntry
	mounters   []func(*mux.Router) error
}

type routeEntry struct {
	method  string
	path    string
	handler http.HandlerFunc
}

// NewHandle creates an empty router handle.
func NewHandle() *RouterHandle {
	return &RouterHandle{}
}

// Use appends a middleware to the handle.
func (h *RouterHandle) Use(mw mux.MiddlewareFunc) *RouterHandle {
	h.middleware = append(h.middleware, mw)
	return h
}

// Handle appends a method/path handler to the handle.
func (h *RouterHandle) Handle(method, path string, fn http.HandlerFunc) *RouterHandle {
	h.routes = append(h.routes, routeEntry{method: method, path: path, handler: fn})
	return h
}

// Mount appends a mount function which receives the subrouter at the
// handle's mount point. The CRUD synthesizer plugs in here.
func (h *RouterHandle) Mount(fn func(*mux.Router) error) *RouterHandle {
	h.mounters = append(h.mounters, fn)
	return h
}

// apply registers the handle's entries on the subrouter, in order.
func (h *RouterHandle) apply(sub *mux.Router) error {
	for _, mw := range h.middleware {
		sub.Use(mw)
	}
	for _, entry := range h.routes {
		sub.HandleFunc(entry.path, entry.handler).Methods(entry.method)
		// a bare path answers on the trailing-slash form as well, so a
		// root index unit stays reachable at /
		if entry.path == "" {
			sub.HandleFunc("/", entry.handler).Methods(entry.method)
		}
	}
	for _, mount := range h.mounters {
		if err := mount(sub); err != nil {
			return err
		}
	}
	return nil
}
