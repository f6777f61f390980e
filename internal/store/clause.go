package store

import (
	"fmt"
	"strings"
)

// Fragment is one predicate or assignment unit of a statement, paired with
// exactly one bound parameter. Values never appear in the SQL text.
type Fragment struct {
	SQL string
	Arg any
}

// ListFilter holds the optional read-mode inputs for product listings.
type ListFilter struct {
	Search   string
	Category string
}

// ReadFragments turns the filter into predicate fragments, numbering
// positional placeholders from start. Empty inputs contribute no fragment.
// Fragment order is fixed (search, category) so the generated statement text
// is reproducible and pgx's statement cache keys stay stable.
func ReadFragments(f ListFilter, start int) []Fragment {
	var frags []Fragment
	n := start
	if f.Search != "" {
		frags = append(frags, Fragment{
			SQL: fmt.Sprintf("name ILIKE $%d", n),
			Arg: "%" + f.Search + "%",
		})
		n++
	}
	if f.Category != "" {
		frags = append(frags, Fragment{
			SQL: fmt.Sprintf("category = $%d", n),
			Arg: f.Category,
		})
		n++
	}
	return frags
}

// ProductPatch holds the optional write-mode inputs for a partial update.
// A nil field means "leave untouched"; Image distinguishes "don't touch"
// (nil) from "set to a path or clear" (non-nil, see ImagePatch).
type ProductPatch struct {
	Name        *string
	Description *string
	Price       *float64
	Stock       *int32
	Category    *string
	Image       *ImagePatch
}

// ImagePatch sets the image_path column. A nil Path clears it.
type ImagePatch struct {
	Path *string
}

// IsEmpty reports whether the patch carries no assignments.
func (p ProductPatch) IsEmpty() bool {
	return p.Name == nil && p.Description == nil && p.Price == nil &&
		p.Stock == nil && p.Category == nil && p.Image == nil
}

// WriteFragments turns the patch into assignment fragments in a fixed column
// order (name, description, price, stock, category, image_path), numbering
// positional placeholders from start. Empty description/category strings are
// bound as NULL, matching the listing's "no category" semantics.
func WriteFragments(p ProductPatch, start int) []Fragment {
	var frags []Fragment
	n := start
	add := func(column string, arg any) {
		frags = append(frags, Fragment{
			SQL: fmt.Sprintf("%s = $%d", column, n),
			Arg: arg,
		})
		n++
	}
	if p.Name != nil {
		add("name", *p.Name)
	}
	if p.Description != nil {
		add("description", nullIfEmpty(*p.Description))
	}
	if p.Price != nil {
		add("price", *p.Price)
	}
	if p.Stock != nil {
		add("stock", *p.Stock)
	}
	if p.Category != nil {
		add("category", nullIfEmpty(*p.Category))
	}
	if p.Image != nil {
		if p.Image.Path != nil {
			add("image_path", *p.Image.Path)
		} else {
			add("image_path", nil)
		}
	}
	return frags
}

// whereSQL joins predicate fragments into a WHERE clause, or returns the
// empty string when there are no fragments (matches all rows).
func whereSQL(frags []Fragment) string {
	if len(frags) == 0 {
		return ""
	}
	parts := make([]string, len(frags))
	for i, f := range frags {
		parts[i] = f.SQL
	}
	return "WHERE " + strings.Join(parts, " AND ")
}

// setSQL joins assignment fragments into the body of a SET clause.
func setSQL(frags []Fragment) string {
	parts := make([]string, len(frags))
	for i, f := range frags {
		parts[i] = f.SQL
	}
	return strings.Join(parts, ", ")
}

// fragmentArgs collects the bound parameters in fragment order.
func fragmentArgs(frags []Fragment) []any {
	args := make([]any, len(frags))
	for i, f := range frags {
		args[i] = f.Arg
	}
	return args
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
