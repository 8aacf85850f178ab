/*Package core holds the small set of types shared across the spinal framework.
 */
package core

import (
	"fmt"
	"strings"

	"github.com/goccy/go-json"
)

// Operation represents a modifying storage operation on a model collection.
type Operation string

// all supported operations
const (
	OperationCreate Operation = "create"
	OperationRead   Operation = "read"
	OperationUpdate Operation = "update"
	OperationDelete Operation = "delete"
	OperationList   Operation = "list"
)

// UnmarshalJSON is a custom JSON unmarshaller
func (o *Operation) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*o = Operation(s)
	switch *o {
	case OperationCreate, OperationRead, OperationUpdate, OperationDelete, OperationList:
		return nil
	default:
		return fmt.Errorf("%s is not a valid Operation", s)
	}
}

// Notifier is an interface to receive notifications about model mutations.
// The generated create/update/delete endpoints call Notify after the
// storage operation succeeded.
type Notifier interface {
	Notify(model string, operation Operation, payload []byte)
}

// PropertyNameToHeader converts spinal JSON property names to the header
// key used on the wire. Example: "total_rows" becomes "totalRows".
func PropertyNameToHeader(property string) string {
	parts := strings.Split(property, "_")
	var b strings.Builder
	first := true
	for _, s := range parts {
		if len(s) == 0 {
			continue
		}
		s = strings.ToLower(s)
		if first {
			first = false
			b.WriteString(s)
			continue
		}
		runes := []rune(s)
		if r := runes[0]; 'a' <= r && r <= 'z' {
			runes[0] = r + 'A' - 'a'
		}
		b.WriteString(string(runes))
	}
	return b.String()
}
