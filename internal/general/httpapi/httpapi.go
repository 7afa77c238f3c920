// Package httpapi holds the gin plumbing shared by the agents' local API handlers.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"pickup-market/internal/cart"
	"pickup-market/internal/common/contextx"
	"pickup-market/internal/domain/contact"
	"pickup-market/internal/domain/geo"
	"pickup-market/internal/general/backend"
	"pickup-market/internal/general/jwt"
	"pickup-market/internal/general/logger"
	"pickup-market/internal/ports"
)

const RequestIDHeader = "X-Request-ID"

// ErrBadRequest marks caller input problems found by a handler.
var ErrBadRequest = errors.New("bad request")

// ErrorBody is the JSON shape of every error reply.
type ErrorBody struct {
	Error         string          `json:"error"`
	Code          string          `json:"code"`
	Retryable     bool            `json:"retryable,omitempty"`
	Informational bool            `json:"informational,omitempty"`
	Gate          ports.GateState `json:"gate,omitempty"`
}

// RequestID takes the caller's X-Request-ID or generates one, and puts it on the request context.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := strings.TrimSpace(c.GetHeader(RequestIDHeader))
		if id == "" {
			id = contextx.NewRequestID()
		}
		c.Request = c.Request.WithContext(contextx.WithRequestID(c.Request.Context(), id))
		c.Header(RequestIDHeader, id)
		c.Next()
	}
}

// Ctx returns the request context carrying the request id.
func Ctx(c *gin.Context) context.Context {
	return c.Request.Context()
}

// RequireLocation answers 503 with the gate state until the user has a fix or chose to go on without one.
func RequireLocation(loc ports.LocationService) gin.HandlerFunc {
	return func(c *gin.Context) {
		st := loc.Status()
		if st.Gate == ports.GateReady || st.Gate == ports.GateSkipped {
			c.Next()
			return
		}
		msg := "waiting for a first position"
		if st.Error != "" {
			msg = st.Error
		}
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, ErrorBody{
			Error:     msg,
			Code:      "location_required",
			Retryable: true,
			Gate:      st.Gate,
		})
	}
}

// ParseID reads a positive int64 path parameter.
func ParseID(c *gin.Context, name string) (int64, error) {
	raw := strings.TrimSpace(c.Param(name))
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, errors.Join(ErrBadRequest, errors.New(name+" must be a positive integer"))
	}
	return id, nil
}

// Fail logs err and writes the matching status and body.
func Fail(c *gin.Context, log *logger.Logger, action string, err error) {
	status, body := Classify(err)

	ctx := Ctx(c)
	if status >= http.StatusInternalServerError {
		log.Error(ctx, action, "Request failed", err, map[string]any{"status": status, "path": c.FullPath()})
	} else {
		log.Info(ctx, action, "Request rejected", map[string]any{"status": status, "code": body.Code, "error": err.Error()})
	}
	c.AbortWithStatusJSON(status, body)
}

// Classify maps the error taxonomy onto HTTP.
func Classify(err error) (int, ErrorBody) {
	body := ErrorBody{Error: err.Error()}

	var apiErr *backend.APIError
	switch {
	case errors.Is(err, geo.ErrPermissionDenied),
		errors.Is(err, geo.ErrPositionUnavailable),
		errors.Is(err, geo.ErrTimeout):
		body.Code = "location_unavailable"
		body.Retryable = true
		body.Gate = ports.GateBlocked
		return http.StatusServiceUnavailable, body

	case errors.Is(err, contact.ErrConflictingState):
		// someone else acted first; the client refetches and moves on
		body.Code = "conflicting_state"
		body.Informational = true
		return http.StatusConflict, body

	case errors.Is(err, contact.ErrRoleForbidden), errors.Is(err, jwt.ErrRoleForbidden):
		body.Code = "forbidden"
		return http.StatusForbidden, body

	case errors.Is(err, ports.ErrInFlight), errors.Is(err, cart.ErrCommitInFlight):
		body.Code = "in_flight"
		return http.StatusTooManyRequests, body

	case errors.Is(err, contact.ErrReasonRequired),
		errors.Is(err, cart.ErrEmptyCart),
		errors.Is(err, cart.ErrInvalidPostID),
		errors.Is(err, ErrBadRequest):
		body.Code = "invalid_request"
		return http.StatusBadRequest, body

	case errors.Is(err, ports.ErrNotFound),
		errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound:
		body.Code = "not_found"
		return http.StatusNotFound, body

	case errors.Is(err, backend.ErrNetworkFailure):
		body.Code = "network_failure"
		body.Retryable = true
		if errors.As(err, &apiErr) {
			body.Retryable = apiErr.Retryable()
		}
		return http.StatusBadGateway, body

	case errors.Is(err, context.DeadlineExceeded):
		body.Code = "timeout"
		body.Retryable = true
		return http.StatusGatewayTimeout, body

	default:
		body.Code = "internal"
		return http.StatusInternalServerError, body
	}
}
