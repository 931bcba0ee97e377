package bootstrap

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidConfiguration is returned by NewLight when the configuration
	// or its instrumentation key is missing.
	ErrInvalidConfiguration = errors.New("invalid input configuration")
	ErrNotLoaded            = errors.New("bootstrap: snippet is not loaded")
)

// CallError describes one failed queued call.
type CallError struct {
	Index       int
	Description string
	Err         error
}

func (e *CallError) Error() string {
	return fmt.Sprintf("queued call %d failed: %s", e.Index, e.Description)
}

func (e *CallError) Unwrap() error {
	return e.Err
}

// invoke runs call, turning a returned error or a panic into a *CallError.
func invoke(index int, call PendingCall) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &CallError{
				Index:       index,
				Description: fmt.Sprint(r),
				Err:         fmt.Errorf("panic: %v", r),
			}
		}
	}()

	if cerr := call(); cerr != nil {
		return &CallError{Index: index, Description: cerr.Error(), Err: cerr}
	}
	return nil
}
