package cache

import "strings"

// Key identifies one cached resource, most general part first,
// e.g. Key{"briefs", "detail", "42"}.
type Key []string

func (k Key) String() string {
	return strings.Join(k, "/")
}

// HasPrefix reports whether k starts with every part of prefix.
// An empty prefix matches every key.
func (k Key) HasPrefix(prefix Key) bool {
	if len(prefix) > len(k) {
		return false
	}
	for i, part := range prefix {
		if k[i] != part {
			return false
		}
	}
	return true
}

// Kind is the resource kind, the first part of the key.
func (k Key) Kind() string {
	if len(k) == 0 {
		return ""
	}
	return k[0]
}

func (k Key) clone() Key {
	return append(Key(nil), k...)
}

// Ref names a server record that cache entries may contain.
type Ref struct {
	Kind string
	ID   string
}
