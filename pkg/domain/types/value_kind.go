package types

import "fmt"

// ValueKind is the runtime tag of a stored entity property value
type ValueKind string

const (
	ValueKindNumber     ValueKind = "number"
	ValueKindText       ValueKind = "text"
	ValueKindBoolean    ValueKind = "boolean"
	ValueKindStructured ValueKind = "structured"
)

// AllValueKinds returns all valid value kinds
func AllValueKinds() []ValueKind {
	return []ValueKind{
		ValueKindNumber,
		ValueKindText,
		ValueKindBoolean,
		ValueKindStructured,
	}
}

// IsValid checks if the value kind is valid
func (k ValueKind) IsValid() bool {
	switch k {
	case ValueKindNumber,
		ValueKindText,
		ValueKindBoolean,
		ValueKindStructured:
		return true
	default:
		return false
	}
}

// String returns the string representation of the value kind
func (k ValueKind) String() string {
	return string(k)
}

// ParseValueKind parses a string into a ValueKind
func ParseValueKind(s string) (ValueKind, error) {
	kind := ValueKind(s)
	if !kind.IsValid() {
		return "", fmt.Errorf("invalid value kind: %s", s)
	}
	return kind, nil
}
