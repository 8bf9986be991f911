// Package domain contains the ETF catalog model served by the backend API.
package domain

// Envelope is the backend response wrapper.
type Envelope[T any] struct {
	Success    bool        `json:"success"`
	Data       T           `json:"data"`
	Pagination *Pagination `json:"pagination,omitempty"`
	Error      string      `json:"error,omitempty"`
	Message    string      `json:"message,omitempty"`
}

// Reason returns the backend's error text, or fallback when it sent none.
func (e Envelope[T]) Reason(fallback string) string {
	switch {
	case e.Error != "":
		return e.Error
	case e.Message != "":
		return e.Message
	default:
		return fallback
	}
}

// Pagination describes one page of a listing.
type Pagination struct {
	Page       int `json:"page" yaml:"page"`
	Limit      int `json:"limit" yaml:"limit"`
	Total      int `json:"total" yaml:"total"`
	TotalPages int `json:"totalPages" yaml:"totalPages"`
}

// HasNext reports whether another page follows.
func (p Pagination) HasNext() bool {
	return p.Page < p.TotalPages
}

// Page is a listing with its pagination.
type Page[T any] struct {
	Items      []T        `json:"items" yaml:"items"`
	Pagination Pagination `json:"pagination" yaml:"pagination"`
}
