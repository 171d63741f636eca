package shell

import (
	"context"

	"github.com/google/uuid"
)

// Header names of the request context that is carried from HTTP into metadata, logs, and outbound calls.
const (
	HeaderRequestID = "x-request-id"
	HeaderClientID  = "x-client-id"
	HeaderOrigin    = "x-origin"

	// RequestIDPrefix marks request ids that were generated here rather than passed in.
	RequestIDPrefix = "AHRID-"

	DefaultClientID = "no client identified"
	DefaultOrigin   = "no origin identified"
)

// RequestContext identifies the request a command or query runs for.
type RequestContext struct {
	RequestID string
	ClientID  string
	Origin    string
}

type requestContextKey struct{}

// BuildRequestContext fills empty values with their defaults; an empty request id gets a generated one.
func BuildRequestContext(requestID, clientID, origin string) RequestContext {
	if requestID == "" {
		requestID = RequestIDPrefix + uuid.NewString()
	}

	if clientID == "" {
		clientID = DefaultClientID
	}

	if origin == "" {
		origin = DefaultOrigin
	}

	return RequestContext{RequestID: requestID, ClientID: clientID, Origin: origin}
}

// WithRequestContext returns a copy of ctx carrying rc.
func WithRequestContext(ctx context.Context, rc RequestContext) context.Context {
	return context.WithValue(ctx, requestContextKey{}, rc)
}

// RequestContextFrom returns the RequestContext carried by ctx and whether there was one.
func RequestContextFrom(ctx context.Context) (RequestContext, bool) {
	rc, ok := ctx.Value(requestContextKey{}).(RequestContext)
	return rc, ok
}

// Headers returns the request context as outbound HTTP headers.
func (rc RequestContext) Headers() map[string]string {
	return map[string]string{
		HeaderRequestID: rc.RequestID,
		HeaderClientID:  rc.ClientID,
		HeaderOrigin:    rc.Origin,
	}
}
