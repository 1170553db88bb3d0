package approval

import "fmt"

// ExternalActionError reports an outbound transport action that kept failing
// after retries. The status transition it followed is already committed; the
// caller must surface the error, not roll anything back.
type ExternalActionError struct {
	Action string
	Err    error
}

func (e *ExternalActionError) Error() string {
	return fmt.Sprintf("external action %q failed: %v", e.Action, e.Err)
}

func (e *ExternalActionError) Unwrap() error {
	return e.Err
}
