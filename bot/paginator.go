package bot

import "fmt"

// ErrPageOutOfRange is returned when a paginator is constructed for a page
// the sequence does not have. Buttons always encode in-range pages, so
// hitting this means the underlying data changed under a stale button.
var ErrPageOutOfRange = fmt.Errorf("page out of range")

// Paginator presents one element at a time from a finite ordered sequence.
// Pages are 1-based; every screen in the shop shows exactly one item.
type Paginator[T any] struct {
	items []T
	page  int
}

// NewPaginator wraps items at the given page. It rejects an empty sequence
// and out-of-range pages explicitly instead of returning empty results.
func NewPaginator[T any](items []T, page int) (*Paginator[T], error) {
	if len(items) == 0 || page < 1 || page > len(items) {
		return nil, fmt.Errorf("%w: page %d of %d", ErrPageOutOfRange, page, len(items))
	}
	return &Paginator[T]{items: items, page: page}, nil
}

// Item returns the element at the current page.
func (p *Paginator[T]) Item() T {
	return p.items[p.page-1]
}

// HasNext reports whether a page exists after the current one.
func (p *Paginator[T]) HasNext() bool {
	return p.page < len(p.items)
}

// HasPrevious reports whether a page exists before the current one.
func (p *Paginator[T]) HasPrevious() bool {
	return p.page > 1
}

// Page returns the current 1-based page number.
func (p *Paginator[T]) Page() int {
	return p.page
}

// Len returns the sequence length.
func (p *Paginator[T]) Len() int {
	return len(p.items)
}
