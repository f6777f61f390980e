// Package ui serves the server-rendered browsing interface: product listing
// with search and filters, detail pages and the add/edit/delete forms.
package ui

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/mitienda/catalog/internal/assets"
	cerrors "github.com/mitienda/catalog/internal/errors"
	"github.com/mitienda/catalog/internal/platform/web"
	"github.com/mitienda/catalog/internal/service"
	"github.com/mitienda/catalog/internal/store"
)

// maxFormMemory bounds the in-memory part of multipart form parsing; larger
// file parts spill to disk.
const maxFormMemory = 1 << 20

type Handler struct {
	service     service.ProductService
	templates   *templates
	uploadsPath string
	logger      *slog.Logger
}

// NewHandler creates the UI handler. uploadsPath is the URL prefix under
// which stored images are served, e.g. "/uploads".
func NewHandler(svc service.ProductService, uploadsPath string, logger *slog.Logger) (*Handler, error) {
	t, err := newTemplates()
	if err != nil {
		return nil, err
	}
	return &Handler{
		service:     svc,
		templates:   t,
		uploadsPath: strings.TrimSuffix(uploadsPath, "/"),
		logger:      logger.With("component", "ui"),
	}, nil
}

// RegisterRoutes registers the HTML routes for the browsing interface.
func (h *Handler) RegisterRoutes(r *chi.Mux) {
	r.Get("/", h.Index)
	r.Get("/products/new", h.NewForm)
	r.Post("/products/new", h.Create)
	r.Get("/products/{id}", h.Show)
	r.Get("/products/{id}/edit", h.EditForm)
	r.Post("/products/{id}/edit", h.Update)
	r.Get("/products/{id}/delete", h.ConfirmDelete)
	r.Post("/products/{id}/delete", h.Delete)
}

// basePage is the data shared by every rendered page.
type basePage struct {
	Title       string
	Flash       *Flash
	CSRFToken   string
	UploadsPath string
}

// Index renders the product listing with search, category filter and pagination.
func (h *Handler) Index(w http.ResponseWriter, r *http.Request) {
	mLogger := h.loggerWithReqID(r)
	q := service.ListQuery{
		Page:     web.QueryInt(r, "page", 1),
		PerPage:  service.DefaultPerPage,
		Search:   r.URL.Query().Get("search"),
		Category: r.URL.Query().Get("category"),
	}

	page, err := h.service.List(r.Context(), q)
	if err != nil {
		// Rendering the empty shell here avoids a redirect loop while the
		// database is down.
		mLogger.ErrorContext(r.Context(), "Error retrieving product list", "error", err)
		data := struct {
			basePage
			Products   []service.ProductDto
			Pagination store.Page
			Categories []string
			Search     string
			Category   string
		}{
			basePage: h.base(w, r, "Product Catalog"),
			Search:   q.Search,
			Category: q.Category,
		}
		data.Flash = &Flash{Type: "error", Message: "Could not load the product catalog."}
		h.render(w, r, "list.html", data)
		return
	}
	categories, err := h.service.Categories(r.Context())
	if err != nil {
		mLogger.ErrorContext(r.Context(), "Error retrieving categories", "error", err)
		categories = nil
	}

	data := struct {
		basePage
		Products   []service.ProductDto
		Pagination store.Page
		Categories []string
		Search     string
		Category   string
	}{
		basePage:   h.base(w, r, "Product Catalog"),
		Products:   page.Items,
		Pagination: page.Page,
		Categories: categories,
		Search:     q.Search,
		Category:   q.Category,
	}
	h.render(w, r, "list.html", data)
}

// Show renders a single product.
func (h *Handler) Show(w http.ResponseWriter, r *http.Request) {
	mLogger := h.loggerWithReqID(r)
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	product, err := h.service.FindByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, cerrors.ErrProductNotFound) {
			setFlash(w, "error", "Product not found")
			http.Redirect(w, r, "/", http.StatusSeeOther)
			return
		}
		mLogger.ErrorContext(r.Context(), "Error retrieving product", "ID", id, "error", err)
		h.renderFailure(w, r, "Could not load the product.")
		return
	}

	data := struct {
		basePage
		Product *service.ProductDto
	}{
		basePage: h.base(w, r, product.Name),
		Product:  product,
	}
	h.render(w, r, "detail.html", data)
}

// productForm carries submitted form values back into a re-rendered form.
type productForm struct {
	Name        string
	Description string
	Price       string
	Stock       string
	Category    string
}

// NewForm renders the empty add-product form.
func (h *Handler) NewForm(w http.ResponseWriter, r *http.Request) {
	h.renderAddForm(w, r, productForm{}, nil)
}

// Create handles the add-product form submission, including the optional
// image upload.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	mLogger := h.loggerWithReqID(r)
	if err := r.ParseMultipartForm(maxFormMemory); err != nil {
		h.renderAddForm(w, r, productForm{}, []string{"Could not read the submitted form."})
		return
	}
	if !verifyCSRF(r) {
		http.Error(w, "Invalid CSRF token", http.StatusForbidden)
		return
	}

	form, dto, problems := parseCreateForm(r)
	if len(problems) > 0 {
		h.renderAddForm(w, r, form, problems)
		return
	}

	image, err := formImage(r)
	if err != nil {
		h.renderAddForm(w, r, form, []string{"Could not read the uploaded image."})
		return
	}

	created, err := h.service.Create(r.Context(), dto, image)
	if err != nil {
		var vErr *cerrors.ValidationError
		if errors.As(err, &vErr) {
			h.renderAddForm(w, r, form, vErr.Problems)
			return
		}
		mLogger.ErrorContext(r.Context(), "Error creating product", "error", err)
		h.renderAddForm(w, r, form, []string{"The product could not be saved. Try again."})
		return
	}

	mLogger.InfoContext(r.Context(), "Product created", "ID", created.ID, "Name", created.Name)
	setFlash(w, "success", "Product added successfully")
	http.Redirect(w, r, fmt.Sprintf("/products/%d", created.ID), http.StatusSeeOther)
}

// EditForm renders the edit form pre-filled with the current product.
func (h *Handler) EditForm(w http.ResponseWriter, r *http.Request) {
	mLogger := h.loggerWithReqID(r)
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	product, err := h.service.FindByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, cerrors.ErrProductNotFound) {
			setFlash(w, "error", "Product not found")
			http.Redirect(w, r, "/", http.StatusSeeOther)
			return
		}
		mLogger.ErrorContext(r.Context(), "Error retrieving product for edit", "ID", id, "error", err)
		h.renderFailure(w, r, "Could not load the product.")
		return
	}
	h.renderEditForm(w, r, product, formFromProduct(product), nil)
}

// Update handles the edit form submission: optional image replacement or
// removal plus the regular fields.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	mLogger := h.loggerWithReqID(r)
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	product, err := h.service.FindByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, cerrors.ErrProductNotFound) {
			setFlash(w, "error", "Product not found")
			http.Redirect(w, r, "/", http.StatusSeeOther)
			return
		}
		mLogger.ErrorContext(r.Context(), "Error retrieving product for update", "ID", id, "error", err)
		h.renderFailure(w, r, "Could not load the product.")
		return
	}

	if err := r.ParseMultipartForm(maxFormMemory); err != nil {
		h.renderEditForm(w, r, product, formFromProduct(product), []string{"Could not read the submitted form."})
		return
	}
	if !verifyCSRF(r) {
		http.Error(w, "Invalid CSRF token", http.StatusForbidden)
		return
	}

	form, dto, problems := parseUpdateForm(r)
	if len(problems) > 0 {
		h.renderEditForm(w, r, product, form, problems)
		return
	}

	image, err := formImage(r)
	if err != nil {
		h.renderEditForm(w, r, product, form, []string{"Could not read the uploaded image."})
		return
	}

	updated, err := h.service.Update(r.Context(), id, dto, image)
	if err != nil {
		var vErr *cerrors.ValidationError
		switch {
		case errors.As(err, &vErr):
			h.renderEditForm(w, r, product, form, vErr.Problems)
		case errors.Is(err, cerrors.ErrNothingToUpdate):
			h.renderEditForm(w, r, product, form, []string{"No changes to save."})
		default:
			mLogger.ErrorContext(r.Context(), "Error updating product", "ID", id, "error", err)
			h.renderEditForm(w, r, product, form, []string{"The product could not be saved. Try again."})
		}
		return
	}

	mLogger.InfoContext(r.Context(), "Product updated", "ID", updated.ID, "Name", updated.Name)
	setFlash(w, "success", "Product updated successfully")
	http.Redirect(w, r, fmt.Sprintf("/products/%d", updated.ID), http.StatusSeeOther)
}

// ConfirmDelete renders the delete confirmation page.
func (h *Handler) ConfirmDelete(w http.ResponseWriter, r *http.Request) {
	mLogger := h.loggerWithReqID(r)
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	product, err := h.service.FindByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, cerrors.ErrProductNotFound) {
			setFlash(w, "error", "Product not found")
			http.Redirect(w, r, "/", http.StatusSeeOther)
			return
		}
		mLogger.ErrorContext(r.Context(), "Error retrieving product for deletion", "ID", id, "error", err)
		h.renderFailure(w, r, "Could not load the product.")
		return
	}

	data := struct {
		basePage
		Product *service.ProductDto
	}{
		basePage: h.base(w, r, "Delete "+product.Name),
		Product:  product,
	}
	h.render(w, r, "delete.html", data)
}

// Delete handles the delete confirmation submission.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	mLogger := h.loggerWithReqID(r)
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	if err := r.ParseForm(); err != nil || !verifyCSRF(r) {
		http.Error(w, "Invalid CSRF token", http.StatusForbidden)
		return
	}

	if err := h.service.Delete(r.Context(), id); err != nil {
		if errors.Is(err, cerrors.ErrProductNotFound) {
			setFlash(w, "error", "Product not found")
		} else {
			mLogger.ErrorContext(r.Context(), "Error deleting product", "ID", id, "error", err)
			setFlash(w, "error", "The product could not be deleted. Try again.")
		}
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}

	mLogger.InfoContext(r.Context(), "Product deleted", "ID", id)
	setFlash(w, "success", "Product deleted successfully")
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (h *Handler) base(w http.ResponseWriter, r *http.Request, title string) basePage {
	return basePage{
		Title:       title,
		Flash:       popFlash(w, r),
		CSRFToken:   csrfToken(w, r),
		UploadsPath: h.uploadsPath,
	}
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, page string, data any) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := h.templates.render(w, page, data); err != nil {
		h.loggerWithReqID(r).ErrorContext(r.Context(), "Error rendering template", "template", page, "error", err)
	}
}

// renderFailure shows the listing page shell with an inline error flash.
func (h *Handler) renderFailure(w http.ResponseWriter, r *http.Request, message string) {
	setFlash(w, "error", message)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (h *Handler) renderAddForm(w http.ResponseWriter, r *http.Request, form productForm, problems []string) {
	data := struct {
		basePage
		Form     productForm
		Problems []string
	}{
		basePage: h.base(w, r, "Add Product"),
		Form:     form,
		Problems: problems,
	}
	h.render(w, r, "add.html", data)
}

func (h *Handler) renderEditForm(w http.ResponseWriter, r *http.Request, product *service.ProductDto, form productForm, problems []string) {
	data := struct {
		basePage
		Product  *service.ProductDto
		Form     productForm
		Problems []string
	}{
		basePage: h.base(w, r, "Edit "+product.Name),
		Product:  product,
		Form:     form,
		Problems: problems,
	}
	h.render(w, r, "edit.html", data)
}

func (h *Handler) pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		setFlash(w, "error", "Invalid product id")
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return 0, false
	}
	return id, true
}

// parseCreateForm converts the submitted form into a create DTO, collecting
// human-readable problems for malformed numbers.
func parseCreateForm(r *http.Request) (productForm, service.ProductCreateDto, []string) {
	form := productForm{
		Name:        strings.TrimSpace(r.FormValue("name")),
		Description: strings.TrimSpace(r.FormValue("description")),
		Price:       strings.TrimSpace(r.FormValue("price")),
		Stock:       strings.TrimSpace(r.FormValue("stock")),
		Category:    strings.TrimSpace(r.FormValue("category")),
	}

	var problems []string
	dto := service.ProductCreateDto{
		Name:        form.Name,
		Description: form.Description,
		Category:    form.Category,
	}
	if price, err := strconv.ParseFloat(form.Price, 64); err == nil {
		dto.Price = &price
	} else {
		problems = append(problems, "price must be a number greater than or equal to 0")
	}
	if stock, err := strconv.ParseFloat(form.Stock, 64); err == nil {
		dto.Stock = &stock
	} else {
		problems = append(problems, "stock must be an integer greater than or equal to 0")
	}
	return form, dto, problems
}

// parseUpdateForm converts the edit form into an update DTO. The form always
// submits every field, so all fields are present in the patch.
func parseUpdateForm(r *http.Request) (productForm, service.ProductUpdateDto, []string) {
	form := productForm{
		Name:        strings.TrimSpace(r.FormValue("name")),
		Description: strings.TrimSpace(r.FormValue("description")),
		Price:       strings.TrimSpace(r.FormValue("price")),
		Stock:       strings.TrimSpace(r.FormValue("stock")),
		Category:    strings.TrimSpace(r.FormValue("category")),
	}

	var problems []string
	dto := service.ProductUpdateDto{
		Name:        &form.Name,
		Description: &form.Description,
		Category:    &form.Category,
		RemoveImage: r.FormValue("remove_image") != "",
	}
	if price, err := strconv.ParseFloat(form.Price, 64); err == nil {
		dto.Price = &price
	} else {
		problems = append(problems, "price must be a number greater than or equal to 0")
	}
	if stock, err := strconv.ParseFloat(form.Stock, 64); err == nil {
		dto.Stock = &stock
	} else {
		problems = append(problems, "stock must be an integer greater than or equal to 0")
	}
	return form, dto, problems
}

// formImage extracts the optional uploaded image from the multipart form.
// Returns nil when no file was submitted.
func formImage(r *http.Request) (*assets.Upload, error) {
	file, header, err := r.FormFile("image")
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return nil, nil
		}
		return nil, err
	}
	if header.Size == 0 {
		_ = file.Close()
		return nil, nil
	}
	return &assets.Upload{Size: header.Size, Content: file}, nil
}

func formFromProduct(p *service.ProductDto) productForm {
	form := productForm{
		Name:  p.Name,
		Price: strconv.FormatFloat(p.Price, 'f', 2, 64),
		Stock: strconv.FormatInt(int64(p.Stock), 10),
	}
	if p.Description != nil {
		form.Description = *p.Description
	}
	if p.Category != nil {
		form.Category = *p.Category
	}
	return form
}

// loggerWithReqID creates a logger with the request ID from the context.
func (h *Handler) loggerWithReqID(r *http.Request) *slog.Logger {
	reqID := middleware.GetReqID(r.Context())
	return h.logger.With("request_id", reqID)
}
