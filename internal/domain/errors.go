package domain

import "errors"

// Kind groups errors by how they are recovered and presented.
type Kind string

const (
	KindValidation Kind = "validation"
	KindService    Kind = "service"
	KindPolicy     Kind = "policy"
	KindCredential Kind = "credential"
	KindTransport  Kind = "transport"
)

// Codes identify a specific user-facing message.
const (
	CodeNoImage        = "no_image"
	CodeNoPrompt       = "no_prompt"
	CodeInvalidType    = "invalid_type"
	CodeTooLarge       = "too_large"
	CodeEmptyFile      = "empty_file"
	CodeInvalidDataURL = "invalid_data_url"

	CodeNoResponse    = "no_response"
	CodeEmptyResponse = "empty_response"
	CodeNoImageFound  = "no_image_found"
	CodeBadImageData  = "bad_image_data"

	CodeRefused = "refused"
	CodeBlocked = "blocked"

	CodeCredential = "credential"
	CodeTransport  = "transport"
)

var (
	ErrValidation = errors.New("validation failed")
	ErrService    = errors.New("service returned no usable image")
	ErrPolicy     = errors.New("rejected by content policy")
	ErrCredential = errors.New("credential misconfigured")
	ErrTransport  = errors.New("transport failure")
	ErrNotFound   = errors.New("not found")
)

// Error is the single error type surfaced to the presentation layer. Detail
// carries text that must reach the user verbatim (a model refusal or an
// underlying transport message).
type Error struct {
	Kind   Kind
	Code   string
	Detail string
	Err    error
}

func (e *Error) Error() string {
	msg := string(e.Kind) + ": " + e.Code
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Err != nil && e.Err.Error() != e.Detail {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is lets errors.Is match a *Error against the kind sentinels.
func (e *Error) Is(target error) bool {
	switch target {
	case ErrValidation:
		return e.Kind == KindValidation
	case ErrService:
		return e.Kind == KindService
	case ErrPolicy:
		return e.Kind == KindPolicy
	case ErrCredential:
		return e.Kind == KindCredential
	case ErrTransport:
		return e.Kind == KindTransport
	}
	return false
}

func Validation(code string) *Error {
	return &Error{Kind: KindValidation, Code: code}
}

func Service(code string) *Error {
	return &Error{Kind: KindService, Code: code}
}

// Malformed reports a reply the model sent that could not be decoded.
func Malformed(err error) *Error {
	return &Error{Kind: KindService, Code: CodeBadImageData, Err: err}
}

// Refused wraps explanatory text the model returned instead of an image.
func Refused(text string) *Error {
	return &Error{Kind: KindPolicy, Code: CodeRefused, Detail: text}
}

func Blocked(err error) *Error {
	return &Error{Kind: KindPolicy, Code: CodeBlocked, Err: err}
}

func Credential(err error) *Error {
	return &Error{Kind: KindCredential, Code: CodeCredential, Err: err}
}

func Transport(err error) *Error {
	detail := ""
	if err != nil {
		detail = err.Error()
	}
	return &Error{Kind: KindTransport, Code: CodeTransport, Detail: detail, Err: err}
}

// AsError returns err as a *Error, treating anything unclassified as a
// transport failure.
func AsError(err error) *Error {
	if err == nil {
		return nil
	}
	var de *Error
	if errors.As(err, &de) {
		return de
	}
	return Transport(err)
}
