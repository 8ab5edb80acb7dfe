package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
)

type Code string

const (
	CodeValidation    Code = "VALIDATION_ERROR"
	CodeNotFound      Code = "NOT_FOUND"
	CodeConflict      Code = "CONFLICT"
	CodeStateConflict Code = "STATE_CONFLICT"
	CodeIdempotency   Code = "IDEMPOTENCY_KEY_REUSED"
	CodeInternal      Code = "INTERNAL_ERROR"
	CodeDependency    Code = "DEPENDENCY_ERROR"

	// Domain outcomes of the order engine. These are definitive results,
	// never retried automatically.
	CodeInsufficientStock    Code = "INSUFFICIENT_STOCK"
	CodeProductNotFound      Code = "PRODUCT_NOT_FOUND"
	CodeOrderNotFound        Code = "ORDER_NOT_FOUND"
	CodeInvalidStatus        Code = "INVALID_STATUS"
	CodeAlreadyCancelled     Code = "ALREADY_CANCELLED"
	CodeOrderNotCancellable  Code = "ORDER_NOT_CANCELLABLE"
	CodeQuotaExceeded        Code = "QUOTA_EXCEEDED"
	CodeOrderNumberExhausted Code = "ORDER_NUMBER_EXHAUSTED"

	// CodeTransactionFailed marks contention/timeout aborts. Callers may retry.
	CodeTransactionFailed Code = "TRANSACTION_FAILED"
)

type Metadata struct {
	HTTPStatus     int
	Retryable      bool
	PublicMessage  string
	DetailsAllowed bool
}

var metadataByCode = map[Code]Metadata{
	CodeValidation: {
		HTTPStatus:     http.StatusBadRequest,
		Retryable:      false,
		PublicMessage:  "validation failed",
		DetailsAllowed: true,
	},
	CodeNotFound: {
		HTTPStatus:     http.StatusNotFound,
		Retryable:      false,
		PublicMessage:  "resource not found",
		DetailsAllowed: false,
	},
	CodeConflict: {
		HTTPStatus:     http.StatusConflict,
		Retryable:      false,
		PublicMessage:  "conflict detected",
		DetailsAllowed: false,
	},
	CodeStateConflict: {
		HTTPStatus:     http.StatusUnprocessableEntity,
		Retryable:      false,
		PublicMessage:  "state transition disallowed",
		DetailsAllowed: true,
	},
	CodeIdempotency: {
		HTTPStatus:     http.StatusConflict,
		Retryable:      false,
		PublicMessage:  "idempotency key reused",
		DetailsAllowed: true,
	},
	CodeInternal: {
		HTTPStatus:     http.StatusInternalServerError,
		Retryable:      true,
		PublicMessage:  "internal server error",
		DetailsAllowed: false,
	},
	CodeDependency: {
		HTTPStatus:     http.StatusServiceUnavailable,
		Retryable:      true,
		PublicMessage:  "dependency unavailable",
		DetailsAllowed: true,
	},
	CodeInsufficientStock: {
		HTTPStatus:     http.StatusConflict,
		Retryable:      false,
		PublicMessage:  "insufficient stock",
		DetailsAllowed: true,
	},
	CodeProductNotFound: {
		HTTPStatus:     http.StatusNotFound,
		Retryable:      false,
		PublicMessage:  "product not found",
		DetailsAllowed: true,
	},
	CodeOrderNotFound: {
		HTTPStatus:     http.StatusNotFound,
		Retryable:      false,
		PublicMessage:  "order not found",
		DetailsAllowed: false,
	},
	CodeInvalidStatus: {
		HTTPStatus:     http.StatusBadRequest,
		Retryable:      false,
		PublicMessage:  "invalid order status",
		DetailsAllowed: true,
	},
	CodeAlreadyCancelled: {
		HTTPStatus:     http.StatusOK,
		Retryable:      false,
		PublicMessage:  "order already cancelled",
		DetailsAllowed: true,
	},
	CodeOrderNotCancellable: {
		HTTPStatus:     http.StatusUnprocessableEntity,
		Retryable:      false,
		PublicMessage:  "order can no longer be cancelled",
		DetailsAllowed: true,
	},
	CodeQuotaExceeded: {
		HTTPStatus:     http.StatusForbidden,
		Retryable:      false,
		PublicMessage:  "plan order quota exceeded",
		DetailsAllowed: true,
	},
	CodeOrderNumberExhausted: {
		HTTPStatus:     http.StatusConflict,
		Retryable:      true,
		PublicMessage:  "could not allocate an order number",
		DetailsAllowed: false,
	},
	CodeTransactionFailed: {
		HTTPStatus:     http.StatusConflict,
		Retryable:      true,
		PublicMessage:  "transaction aborted, retry the request",
		DetailsAllowed: false,
	},
}

func MetadataFor(code Code) Metadata {
	if meta, ok := metadataByCode[code]; ok {
		return meta
	}
	return metadataByCode[CodeInternal]
}

type Error struct {
	code    Code
	message string
	details any
	cause   error
}

func New(code Code, message string) *Error {
	return &Error{code: code, message: message}
}

func Wrap(code Code, err error, message string) *Error {
	if err == nil {
		return New(code, message)
	}
	return &Error{code: code, message: message, cause: err}
}

func (e *Error) Code() Code {
	if e == nil {
		return CodeInternal
	}
	return e.code
}

func (e *Error) Message() string {
	if e == nil {
		return ""
	}
	return e.message
}

func (e *Error) Details() any {
	if e == nil {
		return nil
	}
	return e.details
}

func (e *Error) WithDetails(details any) *Error {
	if e == nil {
		return nil
	}
	e.details = details
	return e
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", e.code, e.message)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

func As(err error) *Error {
	if err == nil {
		return nil
	}
	var typed *Error
	if stdErrors.As(err, &typed) {
		return typed
	}
	return nil
}

// HasCode reports whether err carries the given engine code anywhere in its chain.
func HasCode(err error, code Code) bool {
	typed := As(err)
	return typed != nil && typed.Code() == code
}
