// Package middleware mounts the device trust gate in front of trust-gated
// routes. Must run after worker auth so the (user, device) pair is known.
package middleware

import (
	"context"
	"net/http"

	"haazri/internal/device/models"
	"haazri/pkg/domain"
	"haazri/pkg/httputil"
	"haazri/pkg/requestcontext"
)

// DeviceIDHeader carries the client-supplied opaque device identifier.
const DeviceIDHeader = "X-Device-ID"

// Gate is the device trust surface this middleware drives.
type Gate interface {
	Evaluate(ctx context.Context, userID domain.WorkerID) (requestcontext.DeviceTrust, error)
}

// Evaluate short-circuits requests from blocked devices with 403 and attaches
// the trust verdict to the context for downstream components. A missing
// device header is treated as the unknown device, not rejected; the
// normalization happens here, once, so every downstream consumer (trust
// lookup, secret lookup, signal metadata) keys off the same identifier.
func Evaluate(gate Gate) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			deviceID := r.Header.Get(DeviceIDHeader)
			if deviceID == "" {
				deviceID = models.UnknownDeviceID
			}
			ctx := requestcontext.WithDeviceID(r.Context(), deviceID)

			workerID := requestcontext.WorkerID(ctx)
			if workerID.IsNil() {
				// Gate mounted without auth in front; nothing to evaluate.
				next.ServeHTTP(w, r.WithContext(ctx))
				return
			}

			trust, err := gate.Evaluate(ctx, workerID)
			if err != nil {
				httputil.WriteError(w, err)
				return
			}

			next.ServeHTTP(w, r.WithContext(requestcontext.WithTrust(ctx, trust)))
		})
	}
}
