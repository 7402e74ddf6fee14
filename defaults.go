package entrycache

// DefaultStorage is the backend used when neither the caller nor cache.storage names one.
const DefaultStorage = "file"

// coalesce returns def when v is the zero value of T - otherwise v.
func coalesce[T comparable](v, def T) T {
	var zero T
	if v == zero {
		return def
	}
	return v
}
