package parse

import "errors"

// Status is the verdict of a single check.
type Status int

const (
	StatusSuccess Status = iota
	StatusFail
)

// Fallback messages used when neither the renderer nor the filter produced text.
const (
	UnknownError        = "Unknown error"
	UnknownParsingError = "Unknown parsing error"
)

func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusFail:
		return "fail"
	default:
		return "unknown"
	}
}

// Result is the outcome of validating one diagram.
// Message is empty if and only if Status is StatusSuccess.
type Result struct {
	Status  Status
	Message string
}

// Success returns a passing result.
func Success() Result {
	return Result{Status: StatusSuccess}
}

// Fail returns a failing result. An empty message is replaced with UnknownError
// so a failure always explains itself.
func Fail(message string) Result {
	if message == "" {
		message = UnknownError
	}
	return Result{Status: StatusFail, Message: message}
}

// OK reports whether the diagram passed.
func (r Result) OK() bool {
	return r.Status == StatusSuccess
}

// Err returns nil for a passing result and an error carrying Message otherwise.
func (r Result) Err() error {
	if r.OK() {
		return nil
	}
	if r.Message == "" {
		return errors.New(UnknownError)
	}
	return errors.New(r.Message)
}
