// Package store provides product storage: the clause builder, the pagination
// calculator and the PostgreSQL-backed ProductStore.
package store

import (
	"context"
	"time"
)

// Product represents a product row. Nullable columns map to pointers.
type Product struct {
	ID          int64
	Name        string
	Description *string
	Price       float64
	Stock       int32
	Category    *string
	ImagePath   *string
	CreatedAt   time.Time
	UpdatedAt   *time.Time
}

// NewProduct carries the fields of a product to be inserted.
type NewProduct struct {
	Name        string
	Description string
	Price       float64
	Stock       int32
	Category    string
	ImagePath   *string
}

// ProductStore is an interface for product storage operations.
// It abstracts the underlying data store, allowing for different implementations (e.g., in-memory, database).
type ProductStore interface {
	// FindByID retrieves a single product by its unique identifier.
	// Returns ErrProductNotFound if no product exists with the given ID.
	FindByID(ctx context.Context, id int64) (*Product, error)

	// List returns the page of products matching the filter, newest first.
	// Returns an empty slice if no products match.
	List(ctx context.Context, filter ListFilter, limit, offset int) ([]Product, error)

	// Count returns the number of products matching the filter. It uses the
	// same predicate fragments as List so pagination stays consistent with
	// the returned page.
	Count(ctx context.Context, filter ListFilter) (int, error)

	// Categories returns the distinct non-null categories in use, sorted.
	Categories(ctx context.Context) ([]string, error)

	// Create inserts a new product row and returns it with the
	// server-assigned id and created_at.
	Create(ctx context.Context, p NewProduct) (*Product, error)

	// Update applies the patch to an existing row and touches updated_at.
	// Returns ErrProductNotFound if no product exists with the given ID and
	// ErrNothingToUpdate if the patch is empty.
	Update(ctx context.Context, id int64, patch ProductPatch) (*Product, error)

	// Delete removes a product row by its ID.
	// Returns ErrProductNotFound if no product exists with the given ID.
	Delete(ctx context.Context, id int64) error
}
