package types

import "strings"

// MemoryType selects which part of the memory store a query searches
type MemoryType string

const (
	MemoryTypeEvent        MemoryType = "event"
	MemoryTypePattern      MemoryType = "pattern"
	MemoryTypeRelationship MemoryType = "relationship"
)

// IsValid checks if the memory type is valid
func (t MemoryType) IsValid() bool {
	switch t {
	case MemoryTypeEvent,
		MemoryTypePattern,
		MemoryTypeRelationship:
		return true
	default:
		return false
	}
}

// String returns the string representation of the memory type
func (t MemoryType) String() string {
	return string(t)
}

// ParseMemoryType normalizes plural and mixed-case spellings. Unknown values
// return false instead of an error because query never fails.
func ParseMemoryType(s string) (MemoryType, bool) {
	normalized := strings.ToLower(strings.TrimSpace(s))
	normalized = strings.TrimSuffix(normalized, "s")
	if normalized == "relationship" || normalized == "relation" {
		return MemoryTypeRelationship, true
	}
	t := MemoryType(normalized)
	return t, t.IsValid()
}
