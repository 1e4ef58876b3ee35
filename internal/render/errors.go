package render

import (
	"fmt"

	"github.com/set-night/memoirbot/internal/domain"
)

// Error reports a failed render attempt. It matches domain.ErrRenderFailed.
type Error struct {
	Flow      domain.FlowType
	SessionID string
	Op        string
	Timeout   bool
	Err       error
}

func (e *Error) Error() string {
	if e.Timeout {
		return fmt.Sprintf("render %s session %s: %s: timed out: %v", e.Flow, e.SessionID, e.Op, e.Err)
	}
	return fmt.Sprintf("render %s session %s: %s: %v", e.Flow, e.SessionID, e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool { return target == domain.ErrRenderFailed }
