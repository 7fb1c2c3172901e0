// Package response writes the JSON bodies returned by the API.
package response

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/scopestack-jon/scopestack-content-engine-sub000/internal/platform/apierr"
	"github.com/scopestack-jon/scopestack-content-engine-sub000/internal/platform/ctxutil"
)

// APIError is the body of a failed request. RequestID and RunID are set
// when known so a failure can be traced back to its logs.
type APIError struct {
	Message   string `json:"message"`
	Code      string `json:"code"`
	RequestID string `json:"requestId,omitempty"`
	RunID     string `json:"runId,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

// RespondError writes err as an ErrorEnvelope. An *apierr.Error in the
// chain overrides status and code; an empty code is derived from status.
func RespondError(c *gin.Context, status int, code string, err error) {
	status, body := envelope(c, status, code, err)
	c.JSON(status, body)
}

// AbortError is RespondError for middleware: handlers after c do not run.
func AbortError(c *gin.Context, status int, code string, err error) {
	status, body := envelope(c, status, code, err)
	c.AbortWithStatusJSON(status, body)
}

// RespondErr renders err with the status and code of an *apierr.Error in
// its chain, else as a 500 with fallbackCode.
func RespondErr(c *gin.Context, err error, fallbackCode string) {
	ae := apierr.From(err, fallbackCode)
	RespondError(c, ae.Status, ae.Code, ae)
}

func RespondOK(c *gin.Context, payload any) {
	c.JSON(http.StatusOK, payload)
}

func envelope(c *gin.Context, status int, code string, err error) (int, ErrorEnvelope) {
	var ae *apierr.Error
	if errors.As(err, &ae) && ae != nil {
		if ae.Status != 0 {
			status = ae.Status
		}
		if ae.Code != "" {
			code = ae.Code
		}
		if ae.Err != nil {
			err = ae.Err
		}
	}
	if status == 0 {
		status = http.StatusInternalServerError
	}
	if code == "" {
		code = CodeForStatus(status)
	}

	msg := http.StatusText(status)
	if err != nil && err.Error() != "" {
		msg = err.Error()
	}
	if msg == "" {
		msg = "unknown error"
	}

	body := APIError{Message: msg, Code: code, RunID: strings.TrimSpace(c.Param("id"))}
	if c.Request != nil {
		if td := ctxutil.GetTraceData(c.Request.Context()); td != nil {
			body.RequestID = td.RequestID
			if body.RunID == "" {
				body.RunID = td.RunID
			}
		}
	}
	return status, ErrorEnvelope{Error: body}
}

// CodeForStatus is the error code used when a caller gives none.
func CodeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "invalid_request"
	case http.StatusUnauthorized:
		return "unauthorized"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusRequestEntityTooLarge:
		return "request_too_large"
	case http.StatusUnprocessableEntity:
		return "invalid_content"
	case http.StatusBadGateway:
		return "upstream_failed"
	case http.StatusServiceUnavailable:
		return "unavailable"
	}
	if status >= 500 {
		return "internal_error"
	}
	return "request_failed"
}
