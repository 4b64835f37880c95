package db

// Page selects a slice of an ordered listing. Number is 1-based.
type Page struct {
	Number int
	Size   int
}

// NewPage clamps number to at least 1 and falls back to defaultSize when
// size is not positive.
func NewPage(number, size, defaultSize int) Page {
	if number < 1 {
		number = 1
	}
	if size <= 0 {
		size = defaultSize
	}
	return Page{Number: number, Size: size}
}

// Offset is the number of rows skipped before the page.
func (p Page) Offset() int {
	if p.Number < 1 {
		return 0
	}
	return (p.Number - 1) * p.Size
}

// Pagination describes a page of results. Pages past the end are empty,
// not errors.
type Pagination struct {
	Page    int
	PerPage int
	Total   int64
}

// Paginate builds the pagination of page over total rows.
func Paginate(page Page, total int64) Pagination {
	return Pagination{Page: page.Number, PerPage: page.Size, Total: total}
}

// Pages is the number of pages needed for Total rows.
func (p Pagination) Pages() int {
	if p.PerPage <= 0 || p.Total == 0 {
		return 0
	}
	return int((p.Total + int64(p.PerPage) - 1) / int64(p.PerPage))
}

// HasPrev reports whether a previous page exists.
func (p Pagination) HasPrev() bool {
	return p.Page > 1
}

// HasNext reports whether a following page exists.
func (p Pagination) HasNext() bool {
	return p.Page < p.Pages()
}
