// Package utils holds helpers for the optional fields of portal payloads.
package utils

import "strings"

// Deref returns *v, or the zero value when v is nil.
func Deref[T any](v *T) T {
	var zero T
	return DerefOr(v, zero)
}

func DerefOr[T any](v *T, fallback T) T {
	if v == nil {
		return fallback
	}
	return *v
}

func Ptr[T any](v T) *T {
	return &v
}

// OptionalString is nil for a blank s. Optional brief fields are omitted
// from requests rather than sent empty.
func OptionalString(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
