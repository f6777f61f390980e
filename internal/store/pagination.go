package store

// Page describes one pagination window. It is pure data computed by
// Paginate; the same descriptor drives both the LIMIT/OFFSET query and the
// pagination payload returned to clients.
type Page struct {
	Current    int  `json:"current_page"`
	PerPage    int  `json:"per_page"`
	Total      int  `json:"total"`
	TotalPages int  `json:"total_pages"`
	Offset     int  `json:"-"`
	HasPrev    bool `json:"-"`
	HasNext    bool `json:"-"`
}

// Paginate computes a clamped, well-formed page descriptor. An out-of-range
// requested page (zero, negative, beyond the last page) is silently clamped
// into [1, max(totalPages,1)], never an error. With zero items the single
// defined page is page 1 with no navigation.
func Paginate(totalItems, perPage, page int) Page {
	if perPage < 1 {
		perPage = 1
	}
	if totalItems < 0 {
		totalItems = 0
	}

	totalPages := (totalItems + perPage - 1) / perPage

	current := page
	if current < 1 {
		current = 1
	}
	if totalPages > 0 && current > totalPages {
		current = totalPages
	}
	if totalPages == 0 {
		current = 1
	}

	return Page{
		Current:    current,
		PerPage:    perPage,
		Total:      totalItems,
		TotalPages: totalPages,
		Offset:     (current - 1) * perPage,
		HasPrev:    current > 1,
		HasNext:    current < totalPages,
	}
}
