/*Package descriptor holds the passive model metadata the framework is driven by.

A Descriptor lists a model's attributes together with their constraints:
nullability, foreign-key references, identity and timestamp markers, and
the ownership marker used for owner injection on create. Descriptors are
read-only to the rest of the framework; the persistence layer owns them.
*/
package descriptor

import (
	"fmt"
)

// Attribute describes a single model attribute.
type Attribute struct {
	Name      string `json:"name"`
	Type      string `json:"type"`
	AllowNull bool   `json:"allow_null"`
	Reference bool   `json:"reference"`
	Identity  bool   `json:"identity"`
	Timestamp bool   `json:"timestamp"`
	Owner     bool   `json:"owner"`
}

// Descriptor describes a model: its name and its ordered attributes.
// Attribute names are unique within a descriptor.
type Descriptor struct {
	Name       string      `json:"model"`
	Attributes []Attribute `json:"attributes"`
}

// Validate checks the descriptor invariants: a non-empty name, at least one
// attribute, unique attribute names and at most one identity and one owner
// attribute.
func (d *Descriptor) Validate() error {
	if d.Name == "" {
		return fmt.Errorf("descriptor without model name")
	}
	if len(d.Attributes) == 0 {
		return fmt.Errorf("model %s has no attributes", d.Name)
	}
	seen := make(map[string]bool, len(d.Attributes))
	identities, owners := 0, 0
	for _, a := range d.Attributes {
		if a.Name == "" {
			return fmt.Errorf("model %s has an attribute without name", d.Name)
		}
		if seen[a.Name] {
			return fmt.Errorf("model %s has duplicate attribute %s", d.Name, a.Name)
		}
		seen[a.Name] = true
		if a.Identity {
			identities++
		}
		if a.Owner {
			owners++
		}
	}
	if identities > 1 {
		return fmt.Errorf("model %s has more than one identity attribute", d.Name)
	}
	if owners > 1 {
		return fmt.Errorf("model %s has more than one owner attribute", d.Name)
	}
	return nil
}

// AttributeNames returns the names of all attributes, in declaration order.
func (d *Descriptor) AttributeNames() []string {
	names := make([]string, len(d.Attributes))
	for i, a := range d.Attributes {
		names[i] = a.Name
	}
	return names
}

// Attribute returns the attribute with the given name.
func (d *Descriptor) Attribute(name string) (Attribute, bool) {
	for _, a := range d.Attributes {
		if a.Name == name {
			return a, true
		}
	}
	return Attribute{}, false
}

// HasAttribute returns true if the model has an attribute with the given name.
func (d *Descriptor) HasAttribute(name string) bool {
	_, ok := d.Attribute(name)
	return ok
}

// Identity returns the identity attribute.
func (d *Descriptor) Identity() (Attribute, bool) {
	for _, a := range d.Attributes {
		if a.Identity {
			return a, true
		}
	}
	return Attribute{}, false
}

// Owner returns the ownership attribute, the one that receives the
// authenticated identity on create when the caller did not supply it.
func (d *Descriptor) Owner() (Attribute, bool) {
	for _, a := range d.Attributes {
		if a.Owner {
			return a, true
		}
	}
	return Attribute{}, false
}

// RequiredFields derives the required fields of the model: every attribute
// that is a foreign-key reference or explicitly non-nullable, excluding
// identity, timestamp and ownership attributes. The identity attribute itself
// is required when includeIdentity is set.
func (d *Descriptor) RequiredFields(includeIdentity bool) []string {
	fields := []string{}
	for _, a := range d.Attributes {
		if a.Timestamp || a.Owner {
			continue
		}
		if a.Identity {
			if includeIdentity {
				fields = append(fields, a.Name)
			}
			continue
		}
		if a.Reference || !a.AllowNull {
			fields = append(fields, a.Name)
		}
	}
	return fields
}
