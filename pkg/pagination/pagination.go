package pagination

const (
	// DefaultPageSize is the standard page size when one is not provided.
	DefaultPageSize = 20
	// MaxPageSize caps how many rows any list query can request.
	MaxPageSize = 100
)

// Params holds page pagination inputs from controllers or services.
// Listings are ordered by the immutable (created_at, id) composite key, so a
// given page is stable under concurrent inserts.
type Params struct {
	Page     int
	PageSize int
}

// Normalize clamps the page to >= 1 and the page size to the configured
// default and maximum.
func (p Params) Normalize() Params {
	if p.Page <= 0 {
		p.Page = 1
	}
	if p.PageSize <= 0 {
		p.PageSize = DefaultPageSize
	}
	if p.PageSize > MaxPageSize {
		p.PageSize = MaxPageSize
	}
	return p
}

// Offset returns the row offset for the normalized params.
func (p Params) Offset() int {
	return (p.Page - 1) * p.PageSize
}

// Pages returns the total page count for the given row total.
func (p Params) Pages(total int64) int64 {
	if p.PageSize <= 0 {
		return 0
	}
	pages := total / int64(p.PageSize)
	if total%int64(p.PageSize) != 0 {
		pages++
	}
	return pages
}

// Meta is the pagination block echoed in list responses.
type Meta struct {
	Total    int64 `json:"total"`
	Page     int   `json:"page"`
	PageSize int   `json:"page_size"`
	Pages    int64 `json:"pages"`
}

// MetaFor builds the response metadata for the normalized params.
func MetaFor(p Params, total int64) Meta {
	return Meta{
		Total:    total,
		Page:     p.Page,
		PageSize: p.PageSize,
		Pages:    p.Pages(total),
	}
}
