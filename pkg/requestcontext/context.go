// Package requestcontext provides HTTP-independent context accessors for
// request-scoped values.
//
// Middleware sets these values; services read them without importing
// net/http. Tests inject them directly:
//
//	ctx = requestcontext.WithWorkerID(ctx, workerID)
//	ctx = requestcontext.WithTime(ctx, fixedTime)
package requestcontext

import (
	"context"
	"time"

	"haazri/pkg/domain"
)

type (
	workerIDKey    struct{}
	deviceIDKey    struct{}
	deviceTrustKey struct{}
	clientIPKey    struct{}
	userAgentKey   struct{}
	requestIDKey   struct{}
	requestTimeKey struct{}
)

// DeviceTrust summarizes the gate's verdict for downstream components.
// The anomaly detector may eventually weight risk by TrustScore; today only
// Blocked is acted on.
type DeviceTrust struct {
	DeviceID   string
	TrustScore int
	Blocked    bool
}

// WorkerID retrieves the authenticated worker ID from the context.
// Returns the zero value if not set.
func WorkerID(ctx context.Context) domain.WorkerID {
	if id, ok := ctx.Value(workerIDKey{}).(domain.WorkerID); ok {
		return id
	}
	return domain.WorkerID{}
}

// WithWorkerID injects an authenticated worker ID into the context.
func WithWorkerID(ctx context.Context, id domain.WorkerID) context.Context {
	return context.WithValue(ctx, workerIDKey{}, id)
}

// DeviceID retrieves the client-supplied device identifier.
func DeviceID(ctx context.Context) string {
	if id, ok := ctx.Value(deviceIDKey{}).(string); ok {
		return id
	}
	return ""
}

// WithDeviceID injects a device identifier into a context.
func WithDeviceID(ctx context.Context, deviceID string) context.Context {
	return context.WithValue(ctx, deviceIDKey{}, deviceID)
}

// Trust retrieves the device trust verdict attached by the gate, if any.
func Trust(ctx context.Context) (DeviceTrust, bool) {
	t, ok := ctx.Value(deviceTrustKey{}).(DeviceTrust)
	return t, ok
}

// WithTrust attaches a device trust verdict to the context.
func WithTrust(ctx context.Context, t DeviceTrust) context.Context {
	return context.WithValue(ctx, deviceTrustKey{}, t)
}

// ClientIP retrieves the client IP address from the context.
func ClientIP(ctx context.Context) string {
	if ip, ok := ctx.Value(clientIPKey{}).(string); ok {
		return ip
	}
	return ""
}

// UserAgent retrieves the User-Agent from the context.
func UserAgent(ctx context.Context) string {
	if ua, ok := ctx.Value(userAgentKey{}).(string); ok {
		return ua
	}
	return ""
}

// WithClientMetadata injects client IP and User-Agent into a context.
func WithClientMetadata(ctx context.Context, clientIP, userAgent string) context.Context {
	ctx = context.WithValue(ctx, clientIPKey{}, clientIP)
	ctx = context.WithValue(ctx, userAgentKey{}, userAgent)
	return ctx
}

// RequestID retrieves the request correlation ID from the context.
func RequestID(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey{}).(string); ok {
		return id
	}
	return ""
}

// WithRequestID injects a request correlation ID into the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, requestID)
}

// Now retrieves the request-scoped time from context, falling back to
// time.Now() for non-HTTP contexts (workers, tests that don't care).
func Now(ctx context.Context) time.Time {
	if t, ok := ctx.Value(requestTimeKey{}).(time.Time); ok {
		return t
	}
	return time.Now()
}

// WithTime injects a specific time into a context. Used by the request-time
// middleware and by tests that need deterministic clocks.
func WithTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, requestTimeKey{}, t)
}
