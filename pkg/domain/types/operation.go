package types

import (
	"fmt"
	"strings"
)

// ModifyOperation is the operation applied by the modify tool
type ModifyOperation string

const (
	ModifySet      ModifyOperation = "set"
	ModifyAdd      ModifyOperation = "add"
	ModifySubtract ModifyOperation = "subtract"
	ModifyMultiply ModifyOperation = "multiply"
	ModifyAppend   ModifyOperation = "append"
	ModifyRemove   ModifyOperation = "remove"
	ModifyCreate   ModifyOperation = "create"
)

// AllModifyOperations returns all valid modify operations
func AllModifyOperations() []ModifyOperation {
	return []ModifyOperation{
		ModifySet,
		ModifyAdd,
		ModifySubtract,
		ModifyMultiply,
		ModifyAppend,
		ModifyRemove,
		ModifyCreate,
	}
}

// IsValid checks if the modify operation is valid
func (o ModifyOperation) IsValid() bool {
	switch o {
	case ModifySet,
		ModifyAdd,
		ModifySubtract,
		ModifyMultiply,
		ModifyAppend,
		ModifyRemove,
		ModifyCreate:
		return true
	default:
		return false
	}
}

// IsArithmetic reports whether the operation requires numeric operands
func (o ModifyOperation) IsArithmetic() bool {
	return o == ModifyAdd || o == ModifySubtract || o == ModifyMultiply
}

// String returns the string representation of the modify operation
func (o ModifyOperation) String() string {
	return string(o)
}

// ParseModifyOperation parses a modify operation case-insensitively
func ParseModifyOperation(s string) (ModifyOperation, error) {
	op := ModifyOperation(strings.ToLower(strings.TrimSpace(s)))
	if !op.IsValid() {
		return "", fmt.Errorf("invalid modify operation: %s", s)
	}
	return op, nil
}

// ComputeOperation is the operation evaluated by the compute tool
type ComputeOperation string

const (
	ComputeSum     ComputeOperation = "sum"
	ComputeAverage ComputeOperation = "average"
	ComputeMin     ComputeOperation = "min"
	ComputeMax     ComputeOperation = "max"
	ComputeCount   ComputeOperation = "count"
	ComputeCompare ComputeOperation = "compare"
	ComputeConcat  ComputeOperation = "concat"
)

// AllComputeOperations returns all valid compute operations
func AllComputeOperations() []ComputeOperation {
	return []ComputeOperation{
		ComputeSum,
		ComputeAverage,
		ComputeMin,
		ComputeMax,
		ComputeCount,
		ComputeCompare,
		ComputeConcat,
	}
}

// IsValid checks if the compute operation is valid
func (o ComputeOperation) IsValid() bool {
	switch o {
	case ComputeSum,
		ComputeAverage,
		ComputeMin,
		ComputeMax,
		ComputeCount,
		ComputeCompare,
		ComputeConcat:
		return true
	default:
		return false
	}
}

// String returns the string representation of the compute operation
func (o ComputeOperation) String() string {
	return string(o)
}

// ParseComputeOperation parses a compute operation, accepting a few common
// spellings produced by language models.
func ParseComputeOperation(s string) (ComputeOperation, error) {
	normalized := strings.ToLower(strings.TrimSpace(s))
	switch normalized {
	case "avg", "mean":
		normalized = string(ComputeAverage)
	case "concatenate", "concatenation", "join":
		normalized = string(ComputeConcat)
	case "comparison", "cmp":
		normalized = string(ComputeCompare)
	}

	op := ComputeOperation(normalized)
	if !op.IsValid() {
		return "", fmt.Errorf("invalid compute operation: %s", s)
	}
	return op, nil
}
