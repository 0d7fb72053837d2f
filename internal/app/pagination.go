package app

// PageMeta is the meta block every paginated listing carries.
type PageMeta struct {
	Total       int `json:"total"`
	PerPage     int `json:"perPage"`
	CurrentPage int `json:"currentPage"`
	LastPage    int `json:"lastPage"`
}

// Paginated wraps a page of results with its meta block.
type Paginated struct {
	Data any      `json:"data"`
	Meta PageMeta `json:"meta"`
}

func paginate(data any, total, page, perPage int) Paginated {
	lastPage := (total + perPage - 1) / perPage
	if lastPage < 1 {
		lastPage = 1
	}
	return Paginated{
		Data: data,
		Meta: PageMeta{
			Total:       total,
			PerPage:     perPage,
			CurrentPage: page,
			LastPage:    lastPage,
		},
	}
}

// clampPage normalizes raw page/perPage query values. Pages start at 1
// and perPage is capped at max to keep listing queries bounded.
func clampPage(page, perPage, defaultPerPage, max int) (int, int) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = defaultPerPage
	}
	if perPage > max {
		perPage = max
	}
	return page, perPage
}
