package services

// InvalidInputError is returned when a chat payload cannot be relayed as-is.
type InvalidInputError struct{ Message string }

func (e *InvalidInputError) Error() string { return e.Message }

// UpstreamError wraps any failure of the completion API, including a reply
// that lacks the expected candidate text. Error returns the wrapped message
// unchanged so it can be shown to the caller verbatim.
type UpstreamError struct{ Err error }

func (e *UpstreamError) Error() string { return e.Err.Error() }

func (e *UpstreamError) Unwrap() error { return e.Err }
