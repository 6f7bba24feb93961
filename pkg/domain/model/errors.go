package model

import (
	"errors"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/stratagem/pkg/domain/types"
)

// Validation errors raised by the world, the memory store and the primitive tools
var (
	ErrNotFound            = goerr.New("entity not found")
	ErrDuplicateEntity     = goerr.New("entity already exists")
	ErrInvalidOperation    = goerr.New("invalid operation")
	ErrInsufficientAmount  = goerr.New("insufficient amount")
	ErrInvalidConfidence   = goerr.New("confidence must be within [0, 1]")
	ErrInvalidIntensity    = goerr.New("intensity must be non-negative")
	ErrInvalidRelationship = goerr.New("invalid relationship")
	ErrTypeMismatch        = goerr.New("type mismatch")
	ErrMalformedAction     = goerr.New("malformed action")
	ErrUnknownTool         = goerr.New("unknown tool")
)

// Context keys for error values
const (
	EntityIDKey  = "entity_id"
	PropertyKey  = "property"
	OperationKey = "operation"
	ValueKey     = "value"
	ToolKey      = "tool"
	ActorKey     = "actor"
)

var failureKinds = []struct {
	err  error
	kind types.FailureKind
}{
	{ErrNotFound, types.FailureNotFound},
	{ErrDuplicateEntity, types.FailureDuplicateEntity},
	{ErrInvalidOperation, types.FailureInvalidOperation},
	{ErrInsufficientAmount, types.FailureInsufficientAmount},
	{ErrInvalidConfidence, types.FailureInvalidConfidence},
	{ErrInvalidIntensity, types.FailureInvalidIntensity},
	{ErrInvalidRelationship, types.FailureInvalidRelationship},
	{ErrTypeMismatch, types.FailureTypeMismatch},
	{ErrMalformedAction, types.FailureMalformedAction},
	{ErrUnknownTool, types.FailureUnknownTool},
}

// FailureKindOf maps an error returned by a primitive tool to its failure kind.
// Errors outside the validation taxonomy are reported as FailureInternal.
func FailureKindOf(err error) types.FailureKind {
	if err == nil {
		return types.FailureNone
	}
	for _, fk := range failureKinds {
		if errors.Is(err, fk.err) {
			return fk.kind
		}
	}
	return types.FailureInternal
}
