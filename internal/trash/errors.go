package trash

import "fmt"

const (
	cloneFailureTemplateConstant = "clone of %s failed: %v"
	pushFailureTemplateConstant  = "%s of %s failed: %v"
)

// CloneFailureError reports that a working copy could not be produced.
type CloneFailureError struct {
	Repository string
	Cause      error
}

// Error describes the clone failure.
func (cloneError CloneFailureError) Error() string {
	return fmt.Sprintf(cloneFailureTemplateConstant, cloneError.Repository, cloneError.Cause)
}

// Unwrap exposes the underlying failure.
func (cloneError CloneFailureError) Unwrap() error {
	return cloneError.Cause
}

// PushFailureError reports that moved paths could not be staged, committed, or pushed. The
// working copy is discarded and nothing is rolled back on the remote.
type PushFailureError struct {
	Repository string
	Stage      string
	Cause      error
}

// Error describes the failed stage.
func (pushError PushFailureError) Error() string {
	return fmt.Sprintf(pushFailureTemplateConstant, pushError.Stage, pushError.Repository, pushError.Cause)
}

// Unwrap exposes the underlying failure.
func (pushError PushFailureError) Unwrap() error {
	return pushError.Cause
}
