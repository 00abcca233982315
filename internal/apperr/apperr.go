// Package apperr defines the error kinds surfaced by the order and checkout
// flows and their mapping onto HTTP status codes.
package apperr

import (
	"encoding/json"
	"errors"
	"net/http"
)

type Kind string

const (
	KindInvalidRequest     Kind = "invalid_request"
	KindUnauthorized       Kind = "unauthorized"
	KindForbidden          Kind = "forbidden"
	KindNotFound           Kind = "not_found"
	KindConflict           Kind = "conflict"
	KindEmptyCart          Kind = "empty_cart"
	KindEmptyOrder         Kind = "empty_order"
	KindCatalogUnavailable Kind = "catalog_unavailable"
	KindPaymentFailed      Kind = "payment_failed"
	KindStorage            Kind = "storage_error"
	KindCorruptRecord      Kind = "corrupt_record"
	KindPartialSuccess     Kind = "partial_success"
	KindUnavailable        Kind = "service_unavailable"
	KindInternal           Kind = "internal"
)

// Error carries a Kind, a short caller-safe message and the underlying cause.
// Payload holds diagnostics that may be shown to the caller, such as the raw
// gateway response of a declined charge.
type Error struct {
	Kind    Kind
	Message string
	Err     error
	Payload json.RawMessage
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// WithPayload returns a copy of e carrying payload.
func (e *Error) WithPayload(payload []byte) *Error {
	cp := *e
	cp.Payload = json.RawMessage(payload)
	return &cp
}

// KindOf reports the Kind of the first *Error in err's chain, or KindInternal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

func HTTPStatus(kind Kind) int {
	switch kind {
	case KindInvalidRequest, KindEmptyOrder:
		return http.StatusBadRequest
	case KindUnauthorized, KindForbidden, KindEmptyCart:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindPaymentFailed:
		return http.StatusPaymentRequired
	case KindUnavailable:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// Body is the JSON error document written to HTTP callers.
type Body struct {
	Error   Kind            `json:"error"`
	Message string          `json:"message"`
	OrderID string          `json:"orderId,omitempty"`
	Gateway json.RawMessage `json:"gateway,omitempty"`
}

// BodyOf builds the caller-facing body for err. Causes are never included.
func BodyOf(err error) Body {
	var e *Error
	if !errors.As(err, &e) {
		return Body{Error: KindInternal, Message: "internal server error"}
	}
	body := Body{Error: e.Kind, Message: e.Message}
	if e.Kind == KindPaymentFailed && len(e.Payload) > 0 && json.Valid(e.Payload) {
		body.Gateway = e.Payload
	}
	return body
}
