package allocation

import (
	"errors"
	"fmt"

	"github.com/quantfolio/allocator/internal/domain"
)

// ErrNoData signals that the user has no accounts. The engine treats it as
// benign and returns an empty row sequence.
var ErrNoData = errors.New("no accounts for user")

// ValidationError reports an inconsistent policy scope: explicit percentages
// exceed 100, or an explicit-cash set does not sum to 100 within tolerance.
// Recoverable by the caller; identifies the offending scope.
type ValidationError struct {
	Reason  string
	Scope   domain.ScopeType
	ScopeID int64
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid policy targets for %s scope %d: %s", e.Scope, e.ScopeID, e.Reason)
}

// ComputationError marks a broken internal invariant, e.g. a rollup that does
// not match the sum of its children. Always a defect, never a user error.
type ComputationError struct {
	Msg string
}

func (e *ComputationError) Error() string {
	return "computation invariant violated: " + e.Msg
}

func computationErrorf(format string, args ...interface{}) *ComputationError {
	return &ComputationError{Msg: fmt.Sprintf(format, args...)}
}
