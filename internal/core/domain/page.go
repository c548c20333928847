package domain

const (
	DefaultPageLimit = 20
	MaxPageLimit     = 100
)

// PageRequest is an offset/limit window.
type PageRequest struct {
	Offset int
	Limit  int
}

// Normalize clamps the request into the allowed window.
func (p PageRequest) Normalize() PageRequest {
	if p.Offset < 0 {
		p.Offset = 0
	}
	if p.Limit <= 0 {
		p.Limit = DefaultPageLimit
	}
	if p.Limit > MaxPageLimit {
		p.Limit = MaxPageLimit
	}
	return p
}

// Page is one window of results plus the total match count.
type Page[T any] struct {
	Items  []T
	Total  int64
	Offset int
	Limit  int
}

// HasMore reports whether rows exist past this window.
func (p Page[T]) HasMore() bool {
	return int64(p.Offset+len(p.Items)) < p.Total
}
