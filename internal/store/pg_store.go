package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	cerrors "github.com/mitienda/catalog/internal/errors"
)

const productColumns = "id, name, description, price, stock, category, image_path, created_at, updated_at"

// PgStore implements ProductStore using PostgreSQL as the data store.
// Statements are assembled from clause-builder fragments; because fragment
// order is deterministic, each filter shape yields one statement text and
// pgx's per-connection statement cache reuses the prepared plan.
type PgStore struct {
	db *pgxpool.Pool
}

// NewPgStore creates a new instance of ProductStore using a PostgreSQL connection pool.
func NewPgStore(dbp *pgxpool.Pool) *PgStore {
	return &PgStore{db: dbp}
}

// FindByID retrieves a product by its unique identifier.
// Returns ErrProductNotFound if no product exists with the given ID.
func (p *PgStore) FindByID(ctx context.Context, id int64) (*Product, error) {
	query := fmt.Sprintf("SELECT %s FROM products WHERE id = $1", productColumns)
	product, err := scanProduct(p.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, cerrors.ErrProductNotFound
		}
		return nil, fmt.Errorf("failed to find product by ID: %w", err)
	}
	return product, nil
}

// List retrieves the products matching the filter, newest first, bounded by
// limit/offset.
func (p *PgStore) List(ctx context.Context, filter ListFilter, limit, offset int) ([]Product, error) {
	frags := ReadFragments(filter, 1)
	args := fragmentArgs(frags)
	query := fmt.Sprintf("SELECT %s FROM products %s ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d",
		productColumns, whereSQL(frags), len(args)+1, len(args)+2)
	args = append(args, limit, offset)

	rows, err := p.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	defer rows.Close()

	products := make([]Product, 0)
	for rows.Next() {
		product, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan product row: %w", err)
		}
		products = append(products, *product)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read product rows: %w", err)
	}
	return products, nil
}

// Count returns the number of products matching the filter, using the same
// predicate fragments as List.
func (p *PgStore) Count(ctx context.Context, filter ListFilter) (int, error) {
	frags := ReadFragments(filter, 1)
	query := fmt.Sprintf("SELECT COUNT(*) FROM products %s", whereSQL(frags))

	var total int
	if err := p.db.QueryRow(ctx, query, fragmentArgs(frags)...).Scan(&total); err != nil {
		return 0, fmt.Errorf("failed to count products: %w", err)
	}
	return total, nil
}

// Categories returns the distinct non-null categories in use, sorted.
func (p *PgStore) Categories(ctx context.Context) ([]string, error) {
	rows, err := p.db.Query(ctx, "SELECT DISTINCT category FROM products WHERE category IS NOT NULL ORDER BY category")
	if err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}
	defer rows.Close()

	categories := make([]string, 0)
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, fmt.Errorf("failed to scan category row: %w", err)
		}
		categories = append(categories, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read category rows: %w", err)
	}
	return categories, nil
}

// Create inserts a new product row and returns it with the server-assigned
// id and created_at.
func (p *PgStore) Create(ctx context.Context, np NewProduct) (*Product, error) {
	query := fmt.Sprintf(`INSERT INTO products (name, description, price, stock, category, image_path)
		VALUES ($1, $2, $3, $4, $5, $6) RETURNING %s`, productColumns)

	product, err := scanProduct(p.db.QueryRow(ctx, query,
		np.Name,
		nullIfEmpty(np.Description),
		np.Price,
		np.Stock,
		nullIfEmpty(np.Category),
		np.ImagePath,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to create product: %w", err)
	}
	return product, nil
}

// Update applies the patch's assignment fragments plus an updated_at touch.
// Returns ErrProductNotFound if no product exists with the given ID and
// ErrNothingToUpdate for an empty patch.
func (p *PgStore) Update(ctx context.Context, id int64, patch ProductPatch) (*Product, error) {
	if patch.IsEmpty() {
		return nil, cerrors.ErrNothingToUpdate
	}

	frags := WriteFragments(patch, 1)
	args := fragmentArgs(frags)
	query := fmt.Sprintf("UPDATE products SET %s, updated_at = now() WHERE id = $%d RETURNING %s",
		setSQL(frags), len(args)+1, productColumns)
	args = append(args, id)

	product, err := scanProduct(p.db.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, cerrors.ErrProductNotFound
		}
		return nil, fmt.Errorf("failed to update product: %w", err)
	}
	return product, nil
}

// Delete removes a product row by its unique identifier.
// Returns ErrProductNotFound if no product exists with the given ID.
func (p *PgStore) Delete(ctx context.Context, id int64) error {
	tag, err := p.db.Exec(ctx, "DELETE FROM products WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("failed to delete product: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return cerrors.ErrProductNotFound
	}
	return nil
}

// scanProduct reads one product row from a pgx.Row.
func scanProduct(row pgx.Row) (*Product, error) {
	var product Product
	err := row.Scan(
		&product.ID,
		&product.Name,
		&product.Description,
		&product.Price,
		&product.Stock,
		&product.Category,
		&product.ImagePath,
		&product.CreatedAt,
		&product.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &product, nil
}
