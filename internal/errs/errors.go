package errs

import (
  "errors"
  "fmt"
  "net/http"
)

// Kind classifies a failure so handlers can map it to an HTTP status
// and clients can branch on a stable string.
type Kind string

const (
  KindNotFound         Kind = "not_found"
  KindPermissionDenied Kind = "permission_denied"
  KindValidation       Kind = "validation"
  KindConflict         Kind = "conflict"
  KindModelError       Kind = "model_error"
  KindStoreError       Kind = "store_error"
  KindUpstreamError    Kind = "upstream_error"
  KindIndexError       Kind = "index_error"
  KindBackpressure     Kind = "backpressure"
  KindDisabled         Kind = "disabled"
  KindInternal         Kind = "internal"
)

type Error struct {
  Kind    Kind
  Message string
  Details map[string]any
  Err     error
}

func (e *Error) Error() string {
  if e.Err != nil {
    return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
  }
  return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
  return e.Err
}

func New(kind Kind, message string) *Error {
  return &Error{Kind: kind, Message: message}
}

func Newf(kind Kind, format string, args ...any) *Error {
  return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func Wrap(kind Kind, message string, err error) *Error {
  return &Error{Kind: kind, Message: message, Err: err}
}

func WithDetails(kind Kind, message string, details map[string]any) *Error {
  return &Error{Kind: kind, Message: message, Details: details}
}

// KindOf walks the error chain and returns the outermost Kind,
// or KindInternal for plain errors.
func KindOf(err error) Kind {
  var e *Error
  if errors.As(err, &e) {
    return e.Kind
  }
  return KindInternal
}

func Is(err error, kind Kind) bool {
  return KindOf(err) == kind
}

func HTTPStatus(err error) int {
  switch KindOf(err) {
  case KindNotFound:
    return http.StatusNotFound
  case KindPermissionDenied:
    return http.StatusForbidden
  case KindValidation:
    return http.StatusBadRequest
  case KindConflict:
    return http.StatusConflict
  case KindBackpressure:
    return http.StatusTooManyRequests
  case KindDisabled:
    return http.StatusServiceUnavailable
  case KindModelError, KindStoreError, KindUpstreamError, KindIndexError, KindInternal:
    return http.StatusInternalServerError
  default:
    return http.StatusInternalServerError
  }
}

// Message returns the user-facing message without the kind prefix.
func Message(err error) string {
  var e *Error
  if errors.As(err, &e) {
    return e.Message
  }
  if err != nil {
    return err.Error()
  }
  return "unknown error"
}

func Details(err error) map[string]any {
  var e *Error
  if errors.As(err, &e) {
    return e.Details
  }
  return nil
}
