package util

import "cmp"

// Clamp limits v to the closed range [lo, hi]
func Clamp[T cmp.Ordered](v, lo, hi T) T {
	return max(lo, min(v, hi))
}

// Deref returns *p, or def when p is nil
func Deref[T any](p *T, def T) T {
	if p == nil {
		return def
	}
	return *p
}

func Ptr[T any](v T) *T { return &v }
