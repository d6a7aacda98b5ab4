package errors

import (
	"fmt"
)

const (
	// SuccessCode is used to signal that the processing was successful
	// and no error is returned.
	SuccessCode uint32 = 0

	// All unclassified errors that do not provide a code are clubbed
	// under an internal error code and a generic message instead of
	// detailed error string.
	InternalCode uint32 = 1
	internalLog         = "internal error"
)

// Code returns the code of the root error kind of given error. Any error that
// was not created from a registered root error is an internal error.
func Code(err error) uint32 {
	if isNilErr(err) {
		return SuccessCode
	}

	for {
		if c, ok := err.(coder); ok {
			return c.Code()
		}

		if err = unwrap(err); err == nil {
			return InternalCode
		}
	}
}

type coder interface {
	Code() uint32
}

// Info returns the code and the message that can be safely returned to the
// client. Messages of internal errors and of recovered panics are replaced
// with a generic one unless debug is set.
func Info(err error, debug bool) (uint32, string) {
	if isNilErr(err) {
		return SuccessCode, ""
	}

	code := Code(err)
	if debug {
		// Try to trigger full information formatting. This
		// might produce a stacktrace.
		return code, fmt.Sprintf("%+v", err)
	}
	if code == InternalCode || code == ErrPanic.code {
		return InternalCode, internalLog
	}
	return code, err.Error()
}

// Redact replace all errors that do not initialize with a registered error
// with a generic internal error instance.
//
// This is a no-operation function when running in debug mode.
func Redact(err error, debug bool) error {
	if debug || isNilErr(err) {
		return err
	}
	if code := Code(err); code == InternalCode || code == ErrPanic.code {
		return &remoteError{code: InternalCode, log: internalLog}
	}
	return err
}

// FromCode rebuilds an error received over the wire. If the code belongs to
// a registered root error, the result is of that kind, so that
// ErrXyz.Is(FromCode(...)) holds. Success code returns nil.
func FromCode(code uint32, log string) error {
	if code == SuccessCode {
		return nil
	}
	root := usedCodes[code]
	if log == "" && root != nil {
		log = root.desc
	}
	return &remoteError{code: code, log: log, root: root}
}

// remoteError is an error that was serialized to its code and message and
// then decoded again.
type remoteError struct {
	code uint32
	log  string
	root *Error
}

func (e *remoteError) Error() string {
	return e.log
}

func (e *remoteError) Code() uint32 {
	return e.code
}

// Unwrap allows the standard library errors.Is to match the root error.
func (e *remoteError) Unwrap() error {
	if e.root == nil {
		return nil
	}
	return e.root
}
