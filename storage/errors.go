package storage

import "errors"

// NotFound sentinels indicate a lookup by a stale id, typically from a button
// on a screen rendered before the entity was deleted. Callers must surface
// them to the user rather than crash.
var (
	ErrBannerNotFound   = errors.New("banner not found")
	ErrCategoryNotFound = errors.New("category not found")
	ErrProductNotFound  = errors.New("product not found")
	ErrCartLineNotFound = errors.New("cart line not found")
	ErrOrderNotFound    = errors.New("order not found")
)
