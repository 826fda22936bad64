package main

import (
	"context"
	"errors"

	"github.com/emdx-dev/emdx/internal/types"
)

// classifyErr maps a facade error to one of the exit codes spec.md 7
// defines. Unrecognised errors fall back to exitGeneric.
func classifyErr(err error) int {
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, context.Canceled), errors.Is(err, types.ErrCancelled):
		return exitCancelled
	case errors.Is(err, types.ErrNotFound):
		return exitNotFound
	case errors.Is(err, types.ErrInvalidTitle),
		errors.Is(err, types.ErrEmptyQuery),
		errors.Is(err, types.ErrSelfLink),
		errors.Is(err, types.ErrDuplicateLink),
		errors.Is(err, types.ErrCycle),
		errors.Is(err, types.ErrEpicParent),
		errors.Is(err, types.ErrEpicNoParent),
		errors.Is(err, types.ErrInvalidTransition),
		errors.Is(err, types.ErrSequenceTaken):
		return exitInvalid
	default:
		return exitGeneric
	}
}

// classifyKind gives --json error envelopes a stable machine-readable kind
// string, independent of the (free-text) error message.
func classifyKind(err error) string {
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, types.ErrCancelled):
		return "cancelled"
	case errors.Is(err, types.ErrNotFound):
		return "not_found"
	case errors.Is(err, types.ErrSoftDeleted):
		return "soft_deleted"
	case errors.Is(err, types.ErrCorrupt):
		return "corrupt"
	case errors.Is(err, types.ErrLocked):
		return "locked"
	case errors.Is(err, types.ErrToolMissing):
		return "tool_missing"
	case errors.Is(err, types.ErrInvalidTitle),
		errors.Is(err, types.ErrEmptyQuery),
		errors.Is(err, types.ErrSelfLink),
		errors.Is(err, types.ErrDuplicateLink),
		errors.Is(err, types.ErrCycle),
		errors.Is(err, types.ErrEpicParent),
		errors.Is(err, types.ErrEpicNoParent),
		errors.Is(err, types.ErrInvalidTransition),
		errors.Is(err, types.ErrSequenceTaken):
		return "invalid_input"
	default:
		return "internal"
	}
}
