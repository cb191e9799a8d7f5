package entity

const (
	DefaultPerPage = 12
	MaxPerPage     = 50
)

// Criteria used to narrow down a video listing. Empty fields match everything.
type VideoFilter struct {
	Search  string // Case-insensitive substring of the title or the description.
	Subject string // Case-insensitive substring of the subject.
	OwnerId string // Exact owner identifier.
}

// A 1-indexed page request.
type PageRequest struct {
	Page    int `json:"page" validate:"min=1"`
	PerPage int `json:"per_page" validate:"min=1,max=50"`
}

func (p PageRequest) Offset() int { return (p.Page - 1) * p.PerPage }

// A page of a listing.
type Page struct {
	Items      []*Video `json:"videos"`
	Total      int64    `json:"total"`
	Page       int      `json:"page"`
	PerPage    int      `json:"per_page"`
	TotalPages int      `json:"total_pages"`
}

func NewPage(items []*Video, total int64, req PageRequest) *Page {
	if items == nil {
		items = []*Video{}
	}
	return &Page{
		Items:      items,
		Total:      total,
		Page:       req.Page,
		PerPage:    req.PerPage,
		TotalPages: TotalPages(total, req.PerPage),
	}
}

// Get the number of pages needed to hold total items.
func TotalPages(total int64, perPage int) int {
	if total <= 0 || perPage <= 0 {
		return 0
	}
	return int((total + int64(perPage) - 1) / int64(perPage))
}
