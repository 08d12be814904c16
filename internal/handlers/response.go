package handlers

import (
  "net/http"
  "github.com/gin-gonic/gin"
  "github.com/notewise/notewise-backend/internal/errs"
)

type APIError struct {
  Kind    string         `json:"kind"`
  Message string         `json:"message"`
  Details map[string]any `json:"details,omitempty"`
}

type ErrorEnvelope struct {
  Error APIError `json:"error"`
}

// RespondErr maps a service error onto its HTTP status via the error kind.
func RespondErr(c *gin.Context, err error) {
  c.JSON(errs.HTTPStatus(err), ErrorEnvelope{
    Error: APIError{
      Kind:    string(errs.KindOf(err)),
      Message: errs.Message(err),
      Details: errs.Details(err),
    },
  })
}

// RespondError reports a failure with an explicit status, for conditions
// that never pass through the errs package (auth, malformed input).
func RespondError(c *gin.Context, status int, kind, message string) {
  c.JSON(status, ErrorEnvelope{
    Error: APIError{
      Kind:    kind,
      Message: message,
    },
  })
}

func RespondOK(c *gin.Context, payload any) {
  c.JSON(http.StatusOK, payload)
}

func RespondCreated(c *gin.Context, payload any) {
  c.JSON(http.StatusCreated, payload)
}
