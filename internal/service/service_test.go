package service

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/mitienda/catalog/internal/assets"
	cerrors "github.com/mitienda/catalog/internal/errors"
	"github.com/mitienda/catalog/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockProductStore is a mock implementation of the ProductStore interface.
// Each operation records that it ran and returns the configured result.
type mockProductStore struct {
	product  *store.Product
	products []store.Product
	total    int

	findErr   error
	listErr   error
	countErr  error
	createErr error
	updateErr error
	deleteErr error

	createCalled bool
	updateCalled bool
	deleteCalled bool
	lastPatch    store.ProductPatch
	lastNew      store.NewProduct
	lastLimit    int
	lastOffset   int
	lastFilter   store.ListFilter
}

func (m *mockProductStore) FindByID(_ context.Context, _ int64) (*store.Product, error) {
	return m.product, m.findErr
}

func (m *mockProductStore) List(_ context.Context, filter store.ListFilter, limit, offset int) ([]store.Product, error) {
	m.lastFilter = filter
	m.lastLimit = limit
	m.lastOffset = offset
	return m.products, m.listErr
}

func (m *mockProductStore) Count(_ context.Context, filter store.ListFilter) (int, error) {
	m.lastFilter = filter
	return m.total, m.countErr
}

func (m *mockProductStore) Categories(_ context.Context) ([]string, error) {
	return []string{"home", "toys"}, nil
}

func (m *mockProductStore) Create(_ context.Context, p store.NewProduct) (*store.Product, error) {
	m.createCalled = true
	m.lastNew = p
	return m.product, m.createErr
}

func (m *mockProductStore) Update(_ context.Context, _ int64, patch store.ProductPatch) (*store.Product, error) {
	m.updateCalled = true
	m.lastPatch = patch
	return m.product, m.updateErr
}

func (m *mockProductStore) Delete(_ context.Context, _ int64) error {
	m.deleteCalled = true
	return m.deleteErr
}

// mockAssetStore records the order of Store/Remove calls so tests can assert
// the staging and rollback protocol.
type mockAssetStore struct {
	storeErr  error
	removeErr error

	nextRef string
	stored  []string
	removed []string
	calls   []string
}

func (m *mockAssetStore) Store(_ assets.Upload) (string, error) {
	m.calls = append(m.calls, "store")
	if m.storeErr != nil {
		return "", m.storeErr
	}
	ref := m.nextRef
	if ref == "" {
		ref = "img_new.png"
	}
	m.stored = append(m.stored, ref)
	return ref, nil
}

func (m *mockAssetStore) Remove(ref string) error {
	m.calls = append(m.calls, "remove:"+ref)
	if m.removeErr != nil {
		return m.removeErr
	}
	m.removed = append(m.removed, ref)
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func upload() *assets.Upload {
	return &assets.Upload{Size: 4, Content: bytes.NewReader([]byte("data"))}
}

func ptr[T any](v T) *T { return &v }

func sampleProduct() *store.Product {
	return &store.Product{
		ID:        42,
		Name:      "Lamp",
		Price:     19.99,
		Stock:     5,
		CreatedAt: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}
}

func Test_Service_FindByID(t *testing.T) {
	testCases := []struct {
		name        string
		mockStore   *mockProductStore
		expectError error
	}{
		{
			name:      "Success - product found",
			mockStore: &mockProductStore{product: sampleProduct()},
		},
		{
			name:        "Error - product not found",
			mockStore:   &mockProductStore{findErr: cerrors.ErrProductNotFound},
			expectError: cerrors.ErrProductNotFound,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			// given
			service := NewService(tc.mockStore, &mockAssetStore{}, testLogger())
			// when
			found, err := service.FindByID(context.Background(), 42)
			// then
			if tc.expectError != nil {
				assert.ErrorIs(t, err, tc.expectError)
				assert.Nil(t, found)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, int64(42), found.ID)
			assert.Equal(t, "Lamp", found.Name)
		})
	}
}

func Test_Service_List_ClampsPerPageAndPage(t *testing.T) {
	// given 95 matching products and an out-of-range request
	mockStore := &mockProductStore{total: 95, products: []store.Product{*sampleProduct()}}
	service := NewService(mockStore, &mockAssetStore{}, testLogger())

	// when
	page, err := service.List(context.Background(), ListQuery{Page: 42, PerPage: 500, Search: "  lamp ", Category: "home"})

	// then per_page is capped and the page clamped to the last one
	require.NoError(t, err)
	assert.Equal(t, MaxPerPage, page.Page.PerPage)
	assert.Equal(t, 1, page.Page.TotalPages)
	assert.Equal(t, 1, page.Page.Current)
	assert.Equal(t, 95, page.Page.Total)
	// the store receives the clamped window and the trimmed filter
	assert.Equal(t, MaxPerPage, mockStore.lastLimit)
	assert.Equal(t, 0, mockStore.lastOffset)
	assert.Equal(t, store.ListFilter{Search: "lamp", Category: "home"}, mockStore.lastFilter)
}

func Test_Service_List_DefaultsPerPage(t *testing.T) {
	mockStore := &mockProductStore{total: 25}
	service := NewService(mockStore, &mockAssetStore{}, testLogger())

	page, err := service.List(context.Background(), ListQuery{Page: 2})

	require.NoError(t, err)
	assert.Equal(t, DefaultPerPage, page.Page.PerPage)
	assert.Equal(t, 10, mockStore.lastOffset)
}

func Test_Service_Create(t *testing.T) {
	validDto := ProductCreateDto{Name: "Lamp", Price: ptr(19.99), Stock: ptr(5.0)}

	t.Run("Success - without image", func(t *testing.T) {
		// given
		mockStore := &mockProductStore{product: sampleProduct()}
		mockAssets := &mockAssetStore{}
		service := NewService(mockStore, mockAssets, testLogger())
		// when
		created, err := service.Create(context.Background(), validDto, nil)
		// then
		require.NoError(t, err)
		assert.Equal(t, int64(42), created.ID)
		assert.Empty(t, mockAssets.calls)
		assert.Nil(t, mockStore.lastNew.ImagePath)
	})

	t.Run("Success - image staged before insert", func(t *testing.T) {
		// given
		mockStore := &mockProductStore{product: sampleProduct()}
		mockAssets := &mockAssetStore{nextRef: "img_a.png"}
		service := NewService(mockStore, mockAssets, testLogger())
		// when
		_, err := service.Create(context.Background(), validDto, upload())
		// then
		require.NoError(t, err)
		require.NotNil(t, mockStore.lastNew.ImagePath)
		assert.Equal(t, "img_a.png", *mockStore.lastNew.ImagePath)
		assert.Equal(t, []string{"store"}, mockAssets.calls)
	})

	t.Run("Error - validation fails before any side effect", func(t *testing.T) {
		// given a dto with several problems
		mockStore := &mockProductStore{}
		mockAssets := &mockAssetStore{}
		service := NewService(mockStore, mockAssets, testLogger())
		dto := ProductCreateDto{Name: "   ", Price: ptr(-1.0), Stock: ptr(2.5)}
		// when
		created, err := service.Create(context.Background(), dto, upload())
		// then all problems are reported and nothing was touched
		var vErr *cerrors.ValidationError
		require.ErrorAs(t, err, &vErr)
		assert.Len(t, vErr.Problems, 3)
		assert.Nil(t, created)
		assert.False(t, mockStore.createCalled)
		assert.Empty(t, mockAssets.calls)
	})

	t.Run("Error - fractional stock is rejected", func(t *testing.T) {
		service := NewService(&mockProductStore{}, &mockAssetStore{}, testLogger())
		dto := ProductCreateDto{Name: "Lamp", Price: ptr(19.99), Stock: ptr(2.5)}

		_, err := service.Create(context.Background(), dto, nil)

		var vErr *cerrors.ValidationError
		require.ErrorAs(t, err, &vErr)
		assert.Contains(t, vErr.Problems[0], "stock")
	})

	t.Run("Error - invalid image maps to validation error", func(t *testing.T) {
		mockStore := &mockProductStore{}
		mockAssets := &mockAssetStore{storeErr: assets.ErrInvalidImage}
		service := NewService(mockStore, mockAssets, testLogger())

		_, err := service.Create(context.Background(), validDto, upload())

		var vErr *cerrors.ValidationError
		require.ErrorAs(t, err, &vErr)
		assert.False(t, mockStore.createCalled)
	})

	t.Run("Error - failed insert rolls back the staged image", func(t *testing.T) {
		// given an insert that fails after the image was stored
		insertErr := errors.New("insert failed")
		mockStore := &mockProductStore{createErr: insertErr}
		mockAssets := &mockAssetStore{nextRef: "img_a.png"}
		service := NewService(mockStore, mockAssets, testLogger())
		// when
		_, err := service.Create(context.Background(), validDto, upload())
		// then the staged asset was removed again
		require.ErrorIs(t, err, insertErr)
		assert.Equal(t, []string{"store", "remove:img_a.png"}, mockAssets.calls)
	})
}

func Test_Service_Update(t *testing.T) {
	existing := sampleProduct()
	existing.ImagePath = ptr("img_old.png")

	t.Run("Success - fields only leave assets untouched", func(t *testing.T) {
		// given
		mockStore := &mockProductStore{product: existing}
		mockAssets := &mockAssetStore{}
		service := NewService(mockStore, mockAssets, testLogger())
		// when
		_, err := service.Update(context.Background(), 42, ProductUpdateDto{Name: ptr("New name")}, nil)
		// then
		require.NoError(t, err)
		assert.Empty(t, mockAssets.calls)
		require.NotNil(t, mockStore.lastPatch.Name)
		assert.Equal(t, "New name", *mockStore.lastPatch.Name)
		assert.Nil(t, mockStore.lastPatch.Image)
	})

	t.Run("Success - replacement stages new before removing old", func(t *testing.T) {
		// given
		mockStore := &mockProductStore{product: existing}
		mockAssets := &mockAssetStore{nextRef: "img_new.png"}
		service := NewService(mockStore, mockAssets, testLogger())
		// when
		_, err := service.Update(context.Background(), 42, ProductUpdateDto{}, upload())
		// then the old asset goes only after the row update succeeded
		require.NoError(t, err)
		assert.Equal(t, []string{"store", "remove:img_old.png"}, mockAssets.calls)
		require.NotNil(t, mockStore.lastPatch.Image)
		require.NotNil(t, mockStore.lastPatch.Image.Path)
		assert.Equal(t, "img_new.png", *mockStore.lastPatch.Image.Path)
	})

	t.Run("Success - remove image clears the column and evicts the asset", func(t *testing.T) {
		// given
		mockStore := &mockProductStore{product: existing}
		mockAssets := &mockAssetStore{}
		service := NewService(mockStore, mockAssets, testLogger())
		// when
		_, err := service.Update(context.Background(), 42, ProductUpdateDto{RemoveImage: true}, nil)
		// then
		require.NoError(t, err)
		require.NotNil(t, mockStore.lastPatch.Image)
		assert.Nil(t, mockStore.lastPatch.Image.Path)
		assert.Equal(t, []string{"remove:img_old.png"}, mockAssets.calls)
	})

	t.Run("Success - missing old asset is already clean", func(t *testing.T) {
		// given an old reference whose file is already gone
		mockStore := &mockProductStore{product: existing}
		mockAssets := &mockAssetStore{nextRef: "img_new.png", removeErr: assets.ErrNotFound}
		service := NewService(mockStore, mockAssets, testLogger())
		// when
		updated, err := service.Update(context.Background(), 42, ProductUpdateDto{}, upload())
		// then the update still succeeds
		require.NoError(t, err)
		assert.NotNil(t, updated)
	})

	t.Run("Error - nothing to update", func(t *testing.T) {
		service := NewService(&mockProductStore{product: existing}, &mockAssetStore{}, testLogger())

		_, err := service.Update(context.Background(), 42, ProductUpdateDto{}, nil)

		assert.ErrorIs(t, err, cerrors.ErrNothingToUpdate)
	})

	t.Run("Error - unknown product fails before staging", func(t *testing.T) {
		// given
		mockAssets := &mockAssetStore{}
		service := NewService(&mockProductStore{findErr: cerrors.ErrProductNotFound}, mockAssets, testLogger())
		// when
		_, err := service.Update(context.Background(), 42, ProductUpdateDto{}, upload())
		// then no asset was written for the missing row
		assert.ErrorIs(t, err, cerrors.ErrProductNotFound)
		assert.Empty(t, mockAssets.calls)
	})

	t.Run("Error - failed row update rolls back staged image, keeps old", func(t *testing.T) {
		// given a row update that fails after the new image was staged
		updateErr := errors.New("update failed")
		mockStore := &mockProductStore{product: existing, updateErr: updateErr}
		mockAssets := &mockAssetStore{nextRef: "img_new.png"}
		service := NewService(mockStore, mockAssets, testLogger())
		// when
		_, err := service.Update(context.Background(), 42, ProductUpdateDto{}, upload())
		// then only the staged asset is removed, never the old one
		require.ErrorIs(t, err, updateErr)
		assert.Equal(t, []string{"store", "remove:img_new.png"}, mockAssets.calls)
	})

	t.Run("Error - validation failure leaves assets untouched", func(t *testing.T) {
		mockAssets := &mockAssetStore{}
		service := NewService(&mockProductStore{product: existing}, mockAssets, testLogger())

		_, err := service.Update(context.Background(), 42, ProductUpdateDto{Price: ptr(-5.0)}, upload())

		var vErr *cerrors.ValidationError
		require.ErrorAs(t, err, &vErr)
		assert.Empty(t, mockAssets.calls)
	})
}

func Test_Service_Delete(t *testing.T) {
	existing := sampleProduct()
	existing.ImagePath = ptr("img_old.png")

	t.Run("Success - row first, then the asset", func(t *testing.T) {
		// given
		mockStore := &mockProductStore{product: existing}
		mockAssets := &mockAssetStore{}
		service := NewService(mockStore, mockAssets, testLogger())
		// when
		err := service.Delete(context.Background(), 42)
		// then
		require.NoError(t, err)
		assert.True(t, mockStore.deleteCalled)
		assert.Equal(t, []string{"remove:img_old.png"}, mockAssets.calls)
	})

	t.Run("Success - asset removal failure does not fail the delete", func(t *testing.T) {
		// given
		mockStore := &mockProductStore{product: existing}
		mockAssets := &mockAssetStore{removeErr: errors.New("disk error")}
		service := NewService(mockStore, mockAssets, testLogger())
		// when
		err := service.Delete(context.Background(), 42)
		// then the row is gone and the error was swallowed
		assert.NoError(t, err)
		assert.True(t, mockStore.deleteCalled)
	})

	t.Run("Success - product without image skips asset removal", func(t *testing.T) {
		mockAssets := &mockAssetStore{}
		service := NewService(&mockProductStore{product: sampleProduct()}, mockAssets, testLogger())

		err := service.Delete(context.Background(), 42)

		require.NoError(t, err)
		assert.Empty(t, mockAssets.calls)
	})

	t.Run("Error - unknown product keeps the asset", func(t *testing.T) {
		mockAssets := &mockAssetStore{}
		service := NewService(&mockProductStore{findErr: cerrors.ErrProductNotFound}, mockAssets, testLogger())

		err := service.Delete(context.Background(), 42)

		assert.ErrorIs(t, err, cerrors.ErrProductNotFound)
		assert.Empty(t, mockAssets.calls)
	})

	t.Run("Error - failed row delete keeps the asset", func(t *testing.T) {
		deleteErr := errors.New("delete failed")
		mockAssets := &mockAssetStore{}
		service := NewService(&mockProductStore{product: existing, deleteErr: deleteErr}, mockAssets, testLogger())

		err := service.Delete(context.Background(), 42)

		assert.ErrorIs(t, err, deleteErr)
		assert.Empty(t, mockAssets.calls)
	})
}
