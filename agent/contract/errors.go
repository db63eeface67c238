package contract

import "errors"

var (
	ErrModelInvoke     = errors.New("model invoke failed")
	ErrSchemaViolation = errors.New("model response violates schema")
	ErrPromptMissing   = errors.New("required prompt is missing")
	ErrValidation      = errors.New("validation failed")

	// ErrUpstream marks failures of an external collaborator (gateway, store backend).
	ErrUpstream        = errors.New("upstream call failed")
	ErrEmptyMessage    = errors.New("outgoing message is empty")
	ErrUnknownReason   = errors.New("unknown feedback reason")
	ErrFormComplete    = errors.New("feedback form already complete")
	ErrVersionConflict = errors.New("summary version conflict")
)
