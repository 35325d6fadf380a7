package mutcache

import (
	"fmt"
)

// ClearError reports a Clear call where both the token bump and the entry
// delete failed, leaving the key potentially serving a stale value.
type ClearError struct {
	Key     string
	BumpErr error
	DelErr  error
}

func (e *ClearError) Error() string {
	switch {
	case e.BumpErr != nil && e.DelErr != nil:
		return fmt.Sprintf("clear %q failed: token bump and delete failed: bump=%v; delete=%v",
			e.Key, e.BumpErr, e.DelErr)
	case e.BumpErr != nil:
		return fmt.Sprintf("clear %q: token bump failed: %v", e.Key, e.BumpErr)
	case e.DelErr != nil:
		return fmt.Sprintf("clear %q: delete failed: %v", e.Key, e.DelErr)
	default:
		return fmt.Sprintf("clear %q: unknown error", e.Key)
	}
}

func (e *ClearError) Unwrap() []error {
	errs := make([]error, 0, 2)
	if e.BumpErr != nil {
		errs = append(errs, e.BumpErr)
	}
	if e.DelErr != nil {
		errs = append(errs, e.DelErr)
	}
	return errs
}
