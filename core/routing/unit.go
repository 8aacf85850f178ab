package routing

import (
	"sort"
	"strings"
)

// Unit is one discovered route unit: its logical path relative to the
// scanned root (extension stripped), its depth, and its payload. Units are
// produced once at discovery time and immutable thereafter.
type Unit struct {
	Name   string
	Depth  int
	Handle *RouterHandle
}

// NewUnit creates a unit for the given logical path.
func NewUnit(name string, handle *RouterHandle) Unit {
	return Unit{
		Name:   name,
		Depth:  strings.Count(name, "/"),
		Handle: handle,
	}
}

// baseName returns the last path segment of the unit's name.
func (u Unit) baseName() string {
	if i := strings.LastIndex(u.Name, "/"); i >= 0 {
		return u.Name[i+1:]
	}
	return u.Name
}

// indexRank is 0 for non-index units and 1 for index units, so that a
// directory's own index route sorts after its children at the same depth.
func (u Unit) indexRank() int {
	if u.baseName() == "index" {
		return 1
	}
	return 0
}

// Order sorts units into binding order: depth descending, non-index before
// index at equal depth, lexicographic name as the tiebreak. The order is
// total, so the input order never influences the result.
func Order(units []Unit) {
	sort.Slice(units, func(i, j int) bool {
		a, b := units[i], units[j]
		if a.Depth != b.Depth {
			return a.Depth > b.Depth
		}
		if a.indexRank() != b.indexRank() {
			return a.indexRank() < b.indexRank()
		}
		return a.Name < b.Name
	})
}

// mountPath computes the mount point for a unit: the explicit location
// override if set, the parent path for index units, the unit's own name
// otherwise. Segments starting with the parameter sentinel '@' are rewritten
// to the transport's named-parameter syntax.
func mountPath(u Unit) string {
	if u.Handle.Location != "" {
		return "/" + rewriteParams(u.Handle.Location)
	}
	name := u.Name
	if u.baseName() == "index" {
		name = strings.TrimSuffix(name, "index")
		name = strings.TrimSuffix(name, "/")
	}
	return "/" + rewriteParams(name)
}

// rewriteParams turns path segments like "@id" into mux's "{id}".
func rewriteParams(path string) string {
	segments := strings.Split(path, "/")
	for i, segment := range segments {
		if strings.HasPrefix(segment, "@") && len(segment) > 1 {
			segments[i] = "{" + segment[1:] + "}"
		}
	}
	return strings.Join(segments, "/")
}
