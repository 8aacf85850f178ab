/*Package store defines the persistence capability the framework consumes,
plus a postgres implementation of it.

The generated endpoints never talk SQL themselves; everything goes through
the Store interface, which reports failures as typed errors so the HTTP
layer can map them to the response taxonomy.
*/
package store

import (
	"context"
)

// Record is a single persisted model instance.
type Record = map[string]any

// Filter restricts a query to records whose attributes equal the given
// values. A nil filter matches everything.
type Filter = map[string]any

// Page describes pagination and ordering of a list query. An empty Order
// means collection-native order.
type Page struct {
	Offset int
	Limit  int
	Order  string
}

// Result is a page of records together with the total count over the whole
// filtered collection.
type Result struct {
	Rows  []Record
	Total int
}

// Store is the persistence capability consumed by the generated endpoints.
type Store interface {
	// Create persists a new record and returns it, identity and timestamps
	// filled in.
	Create(ctx context.Context, model string, payload Record) (Record, error)
	// FindByID returns the record with the given identity, or ErrNotFound.
	FindByID(ctx context.Context, model string, id string) (Record, error)
	// Find returns the first record matching the filter, or ErrNotFound.
	Find(ctx context.Context, model string, filter Filter) (Record, error)
	// Update applies a partial update to the record with the given identity
	// and returns the updated record.
	Update(ctx context.Context, model string, id string, payload Record) (Record, error)
	// Destroy deletes the record with the given identity and returns its
	// prior state.
	Destroy(ctx context.Context, model string, id string) (Record, error)
	// Count returns the number of records matching the filter.
	Count(ctx context.Context, model string, filter Filter) (int, error)
	// FindAndCountAll returns one page of matching records plus the total
	// count. An empty collection yields an empty page, not an error.
	FindAndCountAll(ctx context.Context, model string, filter Filter, page Page) (*Result, error)
}
