package models

const (
	DefaultPageLimit = 50
	MaxPageLimit     = 200
)

// PageRequest is a limit/offset window.
type PageRequest struct {
	Limit  int
	Offset int
}

// Normalized clamps the window to sane bounds.
func (p PageRequest) Normalized() PageRequest {
	if p.Limit <= 0 {
		p.Limit = DefaultPageLimit
	}
	if p.Limit > MaxPageLimit {
		p.Limit = MaxPageLimit
	}
	if p.Offset < 0 {
		p.Offset = 0
	}
	return p
}

// PageInfo describes the window that produced a Page.
type PageInfo struct {
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
	Total  int `json:"total"`
}

// Page is one window of a listing.
type Page[T any] struct {
	Data []T      `json:"data"`
	Page PageInfo `json:"page"`
}

// NewPage builds a page, never returning a nil Data slice.
func NewPage[T any](data []T, req PageRequest, total int) Page[T] {
	if data == nil {
		data = []T{}
	}
	return Page[T]{Data: data, Page: PageInfo{Limit: req.Limit, Offset: req.Offset, Total: total}}
}
