package subscription

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

type Kind string

const (
	KindAlreadyActive         Kind = "ALREADY_ACTIVE"
	KindNotActive             Kind = "NOT_ACTIVE"
	KindNotPaused             Kind = "NOT_PAUSED"
	KindAlreadyExpired        Kind = "ALREADY_EXPIRED"
	KindMissingPauseTimestamp Kind = "MISSING_PAUSE_TIMESTAMP"
	KindPreconditionFailed    Kind = "PRECONDITION_FAILED"
	KindNotFound              Kind = "NOT_FOUND"
	KindValidation            Kind = "VALIDATION"

	KindInvalidSignature    Kind = "INVALID_SIGNATURE"
	KindPaymentNotFound     Kind = "PAYMENT_NOT_FOUND"
	KindStatusNotAcceptable Kind = "STATUS_NOT_ACCEPTABLE"
	KindAmountMismatch      Kind = "AMOUNT_MISMATCH"
)

// Error is a business failure of a lifecycle or verification operation.
// errors.Is matches on Kind, so the sentinels below work against any instance.
type Error struct {
	Kind           Kind
	Message        string
	SubscriptionId uuid.UUID
	Err            error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Kind, e.Message)
	if e.SubscriptionId != uuid.Nil {
		msg = fmt.Sprintf("%s (subscription_id: %s)", msg, e.SubscriptionId)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

var (
	ErrAlreadyActive         = &Error{Kind: KindAlreadyActive, Message: "owner already has an active subscription"}
	ErrNotActive             = &Error{Kind: KindNotActive, Message: "subscription is not active"}
	ErrNotPaused             = &Error{Kind: KindNotPaused, Message: "subscription is not paused"}
	ErrAlreadyExpired        = &Error{Kind: KindAlreadyExpired, Message: "subscription has expired"}
	ErrMissingPauseTimestamp = &Error{Kind: KindMissingPauseTimestamp, Message: "paused subscription has no pause timestamp"}
	ErrPreconditionFailed    = &Error{Kind: KindPreconditionFailed, Message: "subscription changed concurrently"}
	ErrNotFound              = &Error{Kind: KindNotFound, Message: "subscription not found"}
	ErrValidation            = &Error{Kind: KindValidation, Message: "invalid input"}

	ErrInvalidSignature    = &Error{Kind: KindInvalidSignature, Message: "payment signature does not match"}
	ErrPaymentNotFound     = &Error{Kind: KindPaymentNotFound, Message: "payment not found at provider"}
	ErrStatusNotAcceptable = &Error{Kind: KindStatusNotAcceptable, Message: "payment status is not acceptable"}
	ErrAmountMismatch      = &Error{Kind: KindAmountMismatch, Message: "payment amount does not match"}
)

func newError(kind Kind, id uuid.UUID, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, SubscriptionId: id, Err: err}
}

// KindOf returns the Kind of the first *Error in err's chain, or "" if there is none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
