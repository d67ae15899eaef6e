package engine

import (
	"errors"
	"fmt"
)

// RuntimeError represents a failure detected by the variable system.
//
// Runtime errors include:
//   - Evaluation failure: a variable's compute step returned an error
//   - Poll failure: a channel's PollAll returned an error
//   - Wire failure: the Wirer rejected a variable at registration
//   - Lifecycle misuse: calls before Start or after Destroy
//
// RuntimeError carries structured fields for diagnostics and wraps the
// underlying error.
type RuntimeError struct {
	// Code identifies the error category.
	Code RuntimeErrorCode

	// Message is a human-readable description.
	Message string

	// Tick is the tick sequence number, zero outside a tick.
	Tick int64

	// Variable names the variable being evaluated or wired.
	Variable string

	// Trigger names the event type that caused the evaluation.
	Trigger string

	// Channel is the registration index of the failing channel, -1 if none.
	Channel int

	// Err is the underlying error.
	Err error
}

// RuntimeErrorCode categorizes runtime errors.
type RuntimeErrorCode string

const (
	// ErrCodeEvaluationFailed indicates a variable's computation failed.
	ErrCodeEvaluationFailed RuntimeErrorCode = "EVALUATION_FAILED"

	// ErrCodePollFailed indicates a channel failed to produce its events.
	ErrCodePollFailed RuntimeErrorCode = "POLL_FAILED"

	// ErrCodeWireFailed indicates dependency wiring rejected a variable.
	ErrCodeWireFailed RuntimeErrorCode = "WIRE_FAILED"

	// ErrCodeNotStarted indicates a call before Start.
	ErrCodeNotStarted RuntimeErrorCode = "NOT_STARTED"

	// ErrCodeAlreadyStarted indicates a second call to Start.
	ErrCodeAlreadyStarted RuntimeErrorCode = "ALREADY_STARTED"

	// ErrCodeDestroyed indicates a call after Destroy.
	ErrCodeDestroyed RuntimeErrorCode = "DESTROYED"
)

// Error implements the error interface.
func (e *RuntimeError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	switch {
	case e.Variable != "" && e.Trigger != "":
		msg = fmt.Sprintf("%s (tick=%d, variable=%s, trigger=%s)", msg, e.Tick, e.Variable, e.Trigger)
	case e.Variable != "":
		msg = fmt.Sprintf("%s (variable=%s)", msg, e.Variable)
	case e.Channel >= 0:
		msg = fmt.Sprintf("%s (tick=%d, channel=%d)", msg, e.Tick, e.Channel)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Unwrap returns the underlying error.
func (e *RuntimeError) Unwrap() error {
	return e.Err
}

// IsEvaluationError returns true if err is or wraps an evaluation failure.
func IsEvaluationError(err error) bool {
	return hasCode(err, ErrCodeEvaluationFailed)
}

// IsPollError returns true if err is or wraps a channel poll failure.
func IsPollError(err error) bool {
	return hasCode(err, ErrCodePollFailed)
}

// IsLifecycleError returns true for calls made in the wrong system state.
func IsLifecycleError(err error) bool {
	return hasCode(err, ErrCodeNotStarted) ||
		hasCode(err, ErrCodeAlreadyStarted) ||
		hasCode(err, ErrCodeDestroyed)
}

func hasCode(err error, code RuntimeErrorCode) bool {
	var re *RuntimeError
	if errors.As(err, &re) {
		return re.Code == code
	}
	return false
}

// NewEvaluationError creates a RuntimeError for a failed evaluation.
func NewEvaluationError(tick int64, variable, trigger string, err error) *RuntimeError {
	return &RuntimeError{
		Code:     ErrCodeEvaluationFailed,
		Message:  "variable evaluation failed",
		Tick:     tick,
		Variable: variable,
		Trigger:  trigger,
		Channel:  -1,
		Err:      err,
	}
}

// NewPollError creates a RuntimeError for a failed channel poll.
func NewPollError(tick int64, channel int, err error) *RuntimeError {
	return &RuntimeError{
		Code:    ErrCodePollFailed,
		Message: "channel poll failed",
		Tick:    tick,
		Channel: channel,
		Err:     err,
	}
}

func newWireError(variable string, err error) *RuntimeError {
	return &RuntimeError{
		Code:     ErrCodeWireFailed,
		Message:  "variable wiring failed",
		Variable: variable,
		Channel:  -1,
		Err:      err,
	}
}

func newLifecycleError(code RuntimeErrorCode, op string) *RuntimeError {
	var msg string
	switch code {
	case ErrCodeNotStarted:
		msg = op + " called before Start"
	case ErrCodeAlreadyStarted:
		msg = "Start called twice"
	default:
		msg = op + " called after Destroy"
	}
	return &RuntimeError{Code: code, Message: msg, Channel: -1}
}
