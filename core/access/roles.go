package access

import (
	"context"
)

// RoleStore is the role membership capability.
//
// Add uses find-or-create semantics: adding a role the owner already holds
// is a no-op, duplicates never accumulate. Remove deletes at most one
// membership row.
type RoleStore interface {
	Add(ctx context.Context, ownerID, role string) error
	Remove(ctx context.Context, ownerID, role string) error
	// Has reports whether the owner holds the role.
	Has(ctx context.Context, ownerID, role string) (bool, error)
	// HasAll reports whether the owner holds every one of the roles,
	// evaluated as an exact count match over the distinct set.
	HasAll(ctx context.Context, ownerID string, roles []string) (bool, error)
}
