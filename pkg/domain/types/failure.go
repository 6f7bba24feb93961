package types

// FailureKind classifies why a primitive tool invocation failed
type FailureKind string

const (
	FailureNone                FailureKind = ""
	FailureNotFound            FailureKind = "NotFound"
	FailureDuplicateEntity     FailureKind = "DuplicateEntity"
	FailureInvalidOperation    FailureKind = "InvalidOperation"
	FailureInsufficientAmount  FailureKind = "InsufficientAmount"
	FailureInvalidConfidence   FailureKind = "InvalidConfidence"
	FailureInvalidIntensity    FailureKind = "InvalidIntensity"
	FailureInvalidRelationship FailureKind = "InvalidRelationship"
	FailureTypeMismatch        FailureKind = "TypeMismatch"
	FailureMalformedAction     FailureKind = "MalformedAction"
	FailureUnknownTool         FailureKind = "UnknownTool"
	FailureProposer            FailureKind = "ProposerFailure"
	FailureInternal            FailureKind = "Internal"
)

// AllFailureKinds returns every failure kind except FailureNone
func AllFailureKinds() []FailureKind {
	return []FailureKind{
		FailureNotFound,
		FailureDuplicateEntity,
		FailureInvalidOperation,
		FailureInsufficientAmount,
		FailureInvalidConfidence,
		FailureInvalidIntensity,
		FailureInvalidRelationship,
		FailureTypeMismatch,
		FailureMalformedAction,
		FailureUnknownTool,
		FailureProposer,
		FailureInternal,
	}
}

// String returns the string representation of the failure kind
func (k FailureKind) String() string {
	return string(k)
}
