package utils

import "github.com/gofiber/fiber/v2"

const maxPageSize = 100

// Pagination carries the page window a list endpoint resolved from the
// query string, plus the totals filled in after the query runs.
type Pagination struct {
	Page   int   `json:"page"`
	Limit  int   `json:"limit"`
	Offset int   `json:"-"`
	Total  int64 `json:"total"`
	Pages  int   `json:"pages"`
}

// GetPagination reads page and limit from the query string, falling
// back to the given defaults. The limit is clamped so a client cannot
// request unbounded result sets.
func GetPagination(c *fiber.Ctx, defaultPage, defaultLimit int) Pagination {
	page := c.QueryInt("page", defaultPage)
	if page < 1 {
		page = defaultPage
	}
	limit := c.QueryInt("limit", defaultLimit)
	if limit < 1 {
		limit = defaultLimit
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	return Pagination{
		Page:   page,
		Limit:  limit,
		Offset: (page - 1) * limit,
	}
}

// SetTotal records the result count and derives the page count.
func (p *Pagination) SetTotal(total int64) {
	p.Total = total
	p.Pages = int((total + int64(p.Limit) - 1) / int64(p.Limit))
}

// PaginatedResponse is the envelope every list endpoint returns.
type PaginatedResponse struct {
	Data       interface{} `json:"data"`
	Pagination Pagination  `json:"pagination"`
}

func NewPaginatedResponse(data interface{}, p Pagination) PaginatedResponse {
	return PaginatedResponse{Data: data, Pagination: p}
}
