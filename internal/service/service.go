// Package service implements the product business logic: validation,
// listing with filters and pagination, and the image staging protocol that
// keeps the asset store consistent with product rows.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/mitienda/catalog/internal/assets"
	cerrors "github.com/mitienda/catalog/internal/errors"
	"github.com/mitienda/catalog/internal/store"
)

// Listing defaults and bounds for per_page.
const (
	DefaultPerPage = 10
	MaxPerPage     = 100
)

// AssetStore abstracts the image asset manager.
type AssetStore interface {
	// Store validates and persists an image candidate, returning its reference.
	Store(up assets.Upload) (string, error)
	// Remove deletes a stored asset. Returns assets.ErrNotFound when the
	// reference does not exist; callers treat that as already-clean.
	Remove(ref string) error
}

// ProductService defines the methods for managing products.
type ProductService interface {
	// FindByID retrieves a single product by its unique identifier.
	// Returns ErrProductNotFound if no product exists with the given ID.
	FindByID(ctx context.Context, id int64) (*ProductDto, error)

	// List returns one page of products matching the query, together with
	// the pagination descriptor used to fetch it.
	List(ctx context.Context, q ListQuery) (*ProductPage, error)

	// Categories returns the distinct categories in use.
	Categories(ctx context.Context) ([]string, error)

	// Create validates the input, stages the optional image and inserts the
	// row. A failed insert rolls back the staged image.
	Create(ctx context.Context, dto ProductCreateDto, image *assets.Upload) (*ProductDto, error)

	// Update applies a partial update. A replacement image is staged before
	// the row update and the prior image removed only after it succeeds.
	Update(ctx context.Context, id int64, dto ProductUpdateDto, image *assets.Upload) (*ProductDto, error)

	// Delete removes the row, then removes its image best-effort.
	Delete(ctx context.Context, id int64) error
}

// Service implements ProductService on top of a ProductStore and an AssetStore.
type Service struct {
	repository store.ProductStore
	assets     AssetStore
	logger     *slog.Logger
}

// NewService creates a new instance of ProductService with the provided stores.
func NewService(repo store.ProductStore, assetStore AssetStore, logger *slog.Logger) *Service {
	return &Service{
		repository: repo,
		assets:     assetStore,
		logger:     logger.With("component", "service"),
	}
}

// ProductCreateDto represents the data transfer object for creating a new product.
// Price and Stock are pointers so "absent" is distinguishable from zero; Stock
// is decoded as a float so a fractional value can be rejected rather than
// silently truncated.
type ProductCreateDto struct {
	Name        string   `json:"name"        validate:"required,max=255"`
	Description string   `json:"description" validate:"max=2000"`
	Price       *float64 `json:"price"       validate:"required"`
	Stock       *float64 `json:"stock"       validate:"required"`
	Category    string   `json:"category"    validate:"max=255"`
}

// ProductUpdateDto represents a partial update. Nil fields are left
// untouched in storage; RemoveImage clears the image without a replacement.
type ProductUpdateDto struct {
	Name        *string  `json:"name"        validate:"omitempty,max=255"`
	Description *string  `json:"description" validate:"omitempty,max=2000"`
	Price       *float64 `json:"price"`
	Stock       *float64 `json:"stock"`
	Category    *string  `json:"category"    validate:"omitempty,max=255"`
	RemoveImage bool     `json:"remove_image"`
}

// IsEmpty reports whether the update carries no changes at all.
func (d ProductUpdateDto) IsEmpty() bool {
	return d.Name == nil && d.Description == nil && d.Price == nil &&
		d.Stock == nil && d.Category == nil && !d.RemoveImage
}

// ProductDto represents the data transfer object for a product.
type ProductDto struct {
	ID          int64      `json:"id"`
	Name        string     `json:"name"`
	Description *string    `json:"description"`
	Price       float64    `json:"price"`
	Stock       int32      `json:"stock"`
	Category    *string    `json:"category"`
	ImagePath   *string    `json:"image_path"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   *time.Time `json:"updated_at"`
}

// ListQuery carries the optional listing inputs.
type ListQuery struct {
	Page     int
	PerPage  int
	Search   string
	Category string
}

// ProductPage is one page of products plus its pagination descriptor.
type ProductPage struct {
	Items []ProductDto
	Page  store.Page
}

// FindByID retrieves a product by its ID and returns it as a ProductDto.
// Returns ErrProductNotFound if no product exists with the given ID.
func (s *Service) FindByID(ctx context.Context, id int64) (*ProductDto, error) {
	product, err := s.repository.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch product %d: %w", id, err)
	}
	return toDto(product), nil
}

// List counts the matching rows, computes the pagination window and fetches
// the page. Both round-trips use the same filter fragments, so the reported
// total_pages is consistent with the returned page.
func (s *Service) List(ctx context.Context, q ListQuery) (*ProductPage, error) {
	perPage := q.PerPage
	if perPage <= 0 {
		perPage = DefaultPerPage
	}
	if perPage > MaxPerPage {
		perPage = MaxPerPage
	}

	filter := store.ListFilter{Search: strings.TrimSpace(q.Search), Category: strings.TrimSpace(q.Category)}

	total, err := s.repository.Count(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to count products: %w", err)
	}

	page := store.Paginate(total, perPage, q.Page)

	products, err := s.repository.List(ctx, filter, page.PerPage, page.Offset)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch products: %w", err)
	}

	items := make([]ProductDto, len(products))
	for i := range products {
		items[i] = *toDto(&products[i])
	}
	return &ProductPage{Items: items, Page: page}, nil
}

// Categories returns the distinct categories in use.
func (s *Service) Categories(ctx context.Context) ([]string, error) {
	categories, err := s.repository.Categories(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch categories: %w", err)
	}
	return categories, nil
}

// Create validates first, then stages the image, then inserts the row.
// If the insert fails after the image was stored, the image is removed again
// so no orphaned asset survives the failed operation.
func (s *Service) Create(ctx context.Context, dto ProductCreateDto, image *assets.Upload) (*ProductDto, error) {
	if err := validateCreate(dto); err != nil {
		return nil, err
	}

	var imagePath *string
	if image != nil {
		ref, err := s.stageImage(*image)
		if err != nil {
			return nil, err
		}
		imagePath = &ref
	}

	product, err := s.repository.Create(ctx, store.NewProduct{
		Name:        strings.TrimSpace(dto.Name),
		Description: strings.TrimSpace(dto.Description),
		Price:       *dto.Price,
		Stock:       int32(*dto.Stock),
		Category:    strings.TrimSpace(dto.Category),
		ImagePath:   imagePath,
	})
	if err != nil {
		if imagePath != nil {
			s.rollbackImage(ctx, *imagePath)
		}
		return nil, fmt.Errorf("failed to create product: %w", err)
	}
	return toDto(product), nil
}

// Update confirms the row exists, validates the provided fields, stages a
// replacement image when supplied, updates the row and only then removes the
// superseded image. A failed row update rolls back the staged image and
// leaves the prior one referenced and intact.
func (s *Service) Update(ctx context.Context, id int64, dto ProductUpdateDto, image *assets.Upload) (*ProductDto, error) {
	current, err := s.repository.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch product %d: %w", id, err)
	}

	if err := validateUpdate(dto); err != nil {
		return nil, err
	}
	if dto.IsEmpty() && image == nil {
		return nil, cerrors.ErrNothingToUpdate
	}

	patch := store.ProductPatch{
		Name:        trimmed(dto.Name),
		Description: trimmed(dto.Description),
		Price:       dto.Price,
		Category:    trimmed(dto.Category),
	}
	if dto.Stock != nil {
		stock := int32(*dto.Stock)
		patch.Stock = &stock
	}

	var staged *string
	switch {
	case image != nil:
		ref, err := s.stageImage(*image)
		if err != nil {
			return nil, err
		}
		staged = &ref
		patch.Image = &store.ImagePatch{Path: &ref}
	case dto.RemoveImage:
		patch.Image = &store.ImagePatch{Path: nil}
	}

	updated, err := s.repository.Update(ctx, id, patch)
	if err != nil {
		if staged != nil {
			s.rollbackImage(ctx, *staged)
		}
		return nil, fmt.Errorf("failed to update product %d: %w", id, err)
	}

	// The row now references the new state; the prior asset is superseded
	// and can be evicted. A missing file is already-clean, anything else is
	// an audit concern, not a failure of the completed update.
	if (staged != nil || dto.RemoveImage) && current.ImagePath != nil {
		if err := s.assets.Remove(*current.ImagePath); err != nil && !errors.Is(err, assets.ErrNotFound) {
			s.logger.WarnContext(ctx, "failed to remove superseded image",
				"product_id", id, "asset", *current.ImagePath, "error", err)
		}
	}
	return toDto(updated), nil
}

// Delete captures the image reference, deletes the row, and then removes the
// image best-effort. An asset-removal failure is logged, not surfaced: the
// row is already gone and a dangling file is a cleanup concern, not a
// data-integrity one.
func (s *Service) Delete(ctx context.Context, id int64) error {
	current, err := s.repository.FindByID(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to fetch product %d: %w", id, err)
	}

	if err := s.repository.Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete product %d: %w", id, err)
	}

	if current.ImagePath != nil {
		if err := s.assets.Remove(*current.ImagePath); err != nil && !errors.Is(err, assets.ErrNotFound) {
			s.logger.WarnContext(ctx, "failed to remove image of deleted product",
				"product_id", id, "asset", *current.ImagePath, "error", err)
		}
	}
	return nil
}

// stageImage stores an image candidate, mapping a validation rejection to a
// ValidationError and any other failure to a wrapped asset error.
func (s *Service) stageImage(up assets.Upload) (string, error) {
	ref, err := s.assets.Store(up)
	if err != nil {
		if errors.Is(err, assets.ErrInvalidImage) {
			return "", cerrors.NewValidationError(err.Error())
		}
		return "", fmt.Errorf("failed to store image: %w", err)
	}
	return ref, nil
}

// rollbackImage undoes a staged image after a failed row write. A rollback
// failure is logged distinctly so orphaned assets can be audited out-of-band;
// the caller still reports the original failure.
func (s *Service) rollbackImage(ctx context.Context, ref string) {
	if err := s.assets.Remove(ref); err != nil && !errors.Is(err, assets.ErrNotFound) {
		s.logger.ErrorContext(ctx, "image rollback failed, asset orphaned",
			"asset", ref, "error", err)
	}
}

func validateCreate(dto ProductCreateDto) error {
	var problems []string
	if strings.TrimSpace(dto.Name) == "" {
		problems = append(problems, "name must not be empty")
	}
	if dto.Price == nil || *dto.Price < 0 {
		problems = append(problems, "price must be a number greater than or equal to 0")
	}
	if dto.Stock == nil || *dto.Stock < 0 || *dto.Stock != math.Trunc(*dto.Stock) {
		problems = append(problems, "stock must be an integer greater than or equal to 0")
	}
	if len(problems) > 0 {
		return cerrors.NewValidationError(problems...)
	}
	return nil
}

func validateUpdate(dto ProductUpdateDto) error {
	var problems []string
	if dto.Name != nil && strings.TrimSpace(*dto.Name) == "" {
		problems = append(problems, "name must not be empty")
	}
	if dto.Price != nil && *dto.Price < 0 {
		problems = append(problems, "price must be a number greater than or equal to 0")
	}
	if dto.Stock != nil && (*dto.Stock < 0 || *dto.Stock != math.Trunc(*dto.Stock)) {
		problems = append(problems, "stock must be an integer greater than or equal to 0")
	}
	if len(problems) > 0 {
		return cerrors.NewValidationError(problems...)
	}
	return nil
}

func trimmed(s *string) *string {
	if s == nil {
		return nil
	}
	t := strings.TrimSpace(*s)
	return &t
}

// toDto converts a store.Product to a ProductDto.
func toDto(product *store.Product) *ProductDto {
	return &ProductDto{
		ID:          product.ID,
		Name:        product.Name,
		Description: product.Description,
		Price:       product.Price,
		Stock:       product.Stock,
		Category:    product.Category,
		ImagePath:   product.ImagePath,
		CreatedAt:   product.CreatedAt,
		UpdatedAt:   product.UpdatedAt,
	}
}
