package entrycache

import "context"

// GetAs is Entry.Get returning a typed value.
func GetAs[T any](ctx context.Context, e *Entry, opts ...GetOption) (T, error) {
	var out T
	err := e.Get(ctx, &out, opts...)
	return out, err
}

// CallAs is Entry.Call with a typed compute function.
func CallAs[T any](ctx context.Context, e *Entry, compute func(context.Context) (T, error), opts ...SetOption) (T, error) {
	var out T
	err := e.Call(ctx, func(ctx context.Context) (any, error) {
		return compute(ctx)
	}, &out, opts...)
	return out, err
}

// Fetch is Cache.Call with a typed compute function.
func Fetch[T any](ctx context.Context, c *Cache, id any, compute func(context.Context) (T, error), opts ...SetOption) (T, error) {
	var out T
	err := c.Call(ctx, id, func(ctx context.Context) (any, error) {
		return compute(ctx)
	}, &out, opts...)
	return out, err
}
