package booking

import "fmt"

// EngineError is a typed engine failure. Errors with the same code compare
// equal under errors.Is, so callers match on the exported sentinels below
// while messages stay specific.
type EngineError struct {
	Code    string
	Message string
}

func (e *EngineError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *EngineError) Is(target error) bool {
	t, ok := target.(*EngineError)
	return ok && t.Code == e.Code
}

const (
	CodeNotFound          = "notFound"
	CodeForbidden         = "forbidden"
	CodeInvalidTransition = "invalidTransition"
	CodeSlotConflict      = "slotConflict"
	CodeOverlap           = "overlap"
	CodeStaleAction       = "staleAction"
	CodeOrphan            = "orphan"
)

var (
	ErrNotFound          = &EngineError{Code: CodeNotFound, Message: "booking or slot not found"}
	ErrForbidden         = &EngineError{Code: CodeForbidden, Message: "actor not authorized for this transition"}
	ErrInvalidTransition = &EngineError{Code: CodeInvalidTransition, Message: "illegal status transition"}
	ErrSlotConflict      = &EngineError{Code: CodeSlotConflict, Message: "slot is not available"}
	ErrOverlap           = &EngineError{Code: CodeOverlap, Message: "slot overlaps an existing slot"}
	ErrStaleAction       = &EngineError{Code: CodeStaleAction, Message: "session action is replayed or obsolete"}
	ErrOrphan            = &EngineError{Code: CodeOrphan, Message: "booking references a deleted slot"}
)

func notFoundErr(format string, args ...any) error {
	return &EngineError{Code: CodeNotFound, Message: fmt.Sprintf(format, args...)}
}

func forbiddenErr(format string, args ...any) error {
	return &EngineError{Code: CodeForbidden, Message: fmt.Sprintf(format, args...)}
}

func invalidTransitionErr(format string, args ...any) error {
	return &EngineError{Code: CodeInvalidTransition, Message: fmt.Sprintf(format, args...)}
}

func slotConflictErr(format string, args ...any) error {
	return &EngineError{Code: CodeSlotConflict, Message: fmt.Sprintf(format, args...)}
}

func overlapErr(format string, args ...any) error {
	return &EngineError{Code: CodeOverlap, Message: fmt.Sprintf(format, args...)}
}
