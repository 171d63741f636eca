package httpapi

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/rkamradt/vehicleevent/eventstore"
	"github.com/rkamradt/vehicleevent/vehicleevent/shared/core"
	"github.com/rkamradt/vehicleevent/vehicleevent/shared/shell"
)

// Error codes of the ErrorResponse body.
const (
	CodeValidation          = "VALIDATION_ERROR"
	CodeNotFound            = "NOT_FOUND"
	CodeConflict            = "CONFLICT"
	CodeUpstreamUnavailable = "UPSTREAM_UNAVAILABLE"
	CodeInternal            = "INTERNAL_ERROR"

	internalErrorMessage = "internal server error"
	logMsgRequestFailed  = "http request failed"
)

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	ErrorCode string `json:"errorCode"`
	Message   string `json:"message"`
	RequestID string `json:"requestId"`
	Timestamp string `json:"timestamp"`
	Path      string `json:"path"`
}

// Classify maps an error to its HTTP status and error code.
func Classify(err error) (int, string) {
	switch {
	case errors.Is(err, core.ErrValidation):
		return http.StatusBadRequest, CodeValidation
	case errors.Is(err, core.ErrNotFound):
		return http.StatusNotFound, CodeNotFound
	case errors.Is(err, eventstore.ErrConcurrencyConflict):
		return http.StatusConflict, CodeConflict
	case errors.Is(err, core.ErrUpstreamUnavailable):
		return http.StatusBadGateway, CodeUpstreamUnavailable
	default:
		return http.StatusInternalServerError, CodeInternal
	}
}

func (s *server) respondError(c *gin.Context, err error) {
	ctx := c.Request.Context()
	status, code := Classify(err)

	message := err.Error()
	if status == http.StatusInternalServerError {
		message = internalErrorMessage
		shell.LogError(ctx, s.logger, s.contextualLogger, logMsgRequestFailed,
			"path", c.Request.URL.Path,
			shell.LogAttrError, err.Error(),
		)
	}

	var requestID string
	if rc, ok := shell.RequestContextFrom(ctx); ok {
		requestID = rc.RequestID
	}

	c.AbortWithStatusJSON(status, ErrorResponse{
		ErrorCode: code,
		Message:   message,
		RequestID: requestID,
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		Path:      c.Request.URL.Path,
	})
}

func malformedBody(err error) error {
	return errors.Join(core.NewValidationError("malformed request body"), err)
}
