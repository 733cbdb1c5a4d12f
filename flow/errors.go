package flow

import (
	"errors"
	"fmt"

	"github.com/pandodao/safe-pay/camera"
	"github.com/pandodao/safe-pay/core"
)

// Kind classifies every failure the transfer flow hands back to its caller.
type Kind uint8

const (
	_ Kind = iota
	KindCameraUnavailable
	KindPermissionDenied
	KindRecipientNotFound
	KindRecipientRequired
	KindSelfTransfer
	KindInvalidAmount
	KindInvalidMemo
	KindInsufficientBalance
	KindSubmissionInFlight
	KindSubmissionFailure
	KindReconciliationFailure
	KindSessionClosed
)

var kindNames = map[Kind]string{
	KindCameraUnavailable:     "CameraUnavailable",
	KindPermissionDenied:      "PermissionDenied",
	KindRecipientNotFound:     "RecipientNotFound",
	KindRecipientRequired:     "RecipientRequired",
	KindSelfTransfer:          "SelfTransfer",
	KindInvalidAmount:         "InvalidAmount",
	KindInvalidMemo:           "InvalidMemo",
	KindInsufficientBalance:   "InsufficientBalance",
	KindSubmissionInFlight:    "SubmissionInFlight",
	KindSubmissionFailure:     "SubmissionFailure",
	KindReconciliationFailure: "ReconciliationFailure",
	KindSessionClosed:         "SessionClosed",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}

	return "Unknown"
}

func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Kind.String()
	}

	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error of the same kind, so the sentinels below work with
// errors.Is whatever the cause.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Err == nil && t.Kind == e.Kind
}

var (
	ErrCameraUnavailable     = &Error{Kind: KindCameraUnavailable}
	ErrPermissionDenied      = &Error{Kind: KindPermissionDenied}
	ErrRecipientNotFound     = &Error{Kind: KindRecipientNotFound}
	ErrRecipientRequired     = &Error{Kind: KindRecipientRequired}
	ErrSelfTransfer          = &Error{Kind: KindSelfTransfer}
	ErrInvalidAmount         = &Error{Kind: KindInvalidAmount}
	ErrInvalidMemo           = &Error{Kind: KindInvalidMemo}
	ErrInsufficientBalance   = &Error{Kind: KindInsufficientBalance}
	ErrSubmissionInFlight    = &Error{Kind: KindSubmissionInFlight}
	ErrSubmissionFailure     = &Error{Kind: KindSubmissionFailure}
	ErrReconciliationFailure = &Error{Kind: KindReconciliationFailure}
	ErrSessionClosed         = &Error{Kind: KindSessionClosed}
)

func newError(kind Kind, err error) *Error {
	return &Error{Kind: kind, Err: err}
}

// KindOf returns the kind carried by err, zero when err is nil or untyped.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}

	return 0
}

func cameraError(err error) *Error {
	if errors.Is(err, camera.ErrPermissionDenied) {
		return newError(KindPermissionDenied, err)
	}

	return newError(KindCameraUnavailable, err)
}

func resolveError(err error) *Error {
	if errors.Is(err, core.ErrRecipientNotFound) {
		return newError(KindRecipientNotFound, err)
	}

	var e *Error
	if errors.As(err, &e) {
		return e
	}

	return newError(KindRecipientNotFound, err)
}
