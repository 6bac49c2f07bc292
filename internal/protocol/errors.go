package protocol

import "fmt"

// Code is a wire error code sent in an error frame.
type Code string

const (
	CodeTooLarge    Code = "too_large"
	CodeBadJSON     Code = "bad_json"
	CodeBadHello    Code = "bad_hello"
	CodeBadControl  Code = "bad_control"
	CodeBadStatus   Code = "bad_status"
	CodeNotHost     Code = "not_host"
	CodeRateLimited Code = "rate_limited"
	CodeBadSeek     Code = "bad_seek"
	CodeBadTrack    Code = "bad_track"
	CodeBadVolume   Code = "bad_volume"
	CodeUnknownType Code = "unknown_type"
	CodeServerError Code = "server_error"
)

// Error is a non-fatal protocol error; the connection stays open.
type Error struct {
	Code    Code
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func errorf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}
