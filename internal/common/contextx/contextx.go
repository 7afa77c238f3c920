package contextx

import (
	"context"
	"strings"

	"github.com/google/uuid"
)

type ctxKey string

const (
	requestIDKey ctxKey = "request_id"
	contactIDKey ctxKey = "contact_id"
)

// WithNewRequestID attaches a freshly generated correlation ID.
func WithNewRequestID(ctx context.Context) context.Context {
	return context.WithValue(ctx, requestIDKey, NewRequestID())
}

// WithRequestID attaches id unless it is blank.
func WithRequestID(ctx context.Context, id string) context.Context {
	if strings.TrimSpace(id) == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey, id)
}

func GetRequestID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(requestIDKey).(string); ok {
		return v
	}
	return ""
}

// WithContactID tags the context with the contact being worked on.
func WithContactID(ctx context.Context, id string) context.Context {
	if strings.TrimSpace(id) == "" {
		return ctx
	}
	return context.WithValue(ctx, contactIDKey, id)
}

func GetContactID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(contactIDKey).(string); ok {
		return v
	}
	return ""
}

// NewRequestID returns "req_" followed by a random UUID.
func NewRequestID() string {
	return "req_" + uuid.NewString()
}
