/*Package resolve substitutes model placeholders in client-supplied filter
payloads.

A string leaf starting with the sentinel prefix "@@@" names a model; if the
model registry knows the name, the leaf is replaced in place with the model
handle. Unresolvable names are left verbatim, which is not an error.
*/
package resolve

import (
	"strings"
)

// Sentinel is the reserved prefix marking a string leaf as a model
// placeholder.
const Sentinel = "@@@"

// Resolve walks node and replaces every sentinel-prefixed string leaf with
// the handle registered under the remaining name. Mapping and sequence nodes
// are traversed recursively, nil values are skipped, and a nil node is a
// no-op.
//
// The input must be acyclic; no cycle detection is performed.
func Resolve(node any, models map[string]any) {
	switch n := node.(type) {
	case map[string]any:
		for key, value := range n {
			if value == nil {
				continue
			}
			if replacement, ok := resolveLeaf(value, models); ok {
				n[key] = replacement
				continue
			}
			Resolve(value, models)
		}
	case []any:
		for i, value := range n {
			if value == nil {
				continue
			}
			if replacement, ok := resolveLeaf(value, models); ok {
				n[i] = replacement
				continue
			}
			Resolve(value, models)
		}
	}
}

func resolveLeaf(value any, models map[string]any) (any, bool) {
	s, ok := value.(string)
	if !ok || !strings.HasPrefix(s, Sentinel) {
		return nil, false
	}
	name := strings.TrimPrefix(s, Sentinel)
	if handle, ok := models[name]; ok {
		return handle, true
	}
	// unresolvable placeholder stays as the raw string
	return nil, false
}
