package middleware

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"haazri/pkg/domain"
	"haazri/pkg/requestcontext"
)

// WorkerClaims are the JWT claims carried by worker bearer tokens.
type WorkerClaims struct {
	jwt.RegisteredClaims
	Role string `json:"role,omitempty"`
}

// TokenValidator verifies worker bearer tokens.
type TokenValidator struct {
	signingKey []byte
}

// NewTokenValidator builds a validator over the shared HMAC signing key.
func NewTokenValidator(signingKey string) *TokenValidator {
	return &TokenValidator{signingKey: []byte(signingKey)}
}

// Validate parses and verifies a token, returning the worker ID from its
// subject claim.
func (v *TokenValidator) Validate(tokenString string) (domain.WorkerID, error) {
	var claims WorkerClaims
	_, err := jwt.ParseWithClaims(tokenString, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return v.signingKey, nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil {
		return domain.WorkerID{}, err
	}
	return domain.ParseWorkerID(claims.Subject)
}

// IssueToken mints a worker token. Used by tests and development seeding;
// production tokens come from the auth service, which shares the key.
func (v *TokenValidator) IssueToken(workerID domain.WorkerID, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := WorkerClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   workerID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Role: "worker",
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.signingKey)
}

// RequireWorker rejects requests without a valid worker bearer token and
// injects the worker ID into the request context.
func RequireWorker(validator *TokenValidator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || token == "" {
				logger.WarnContext(ctx, "unauthorized access - missing token",
					"request_id", requestcontext.RequestID(ctx),
				)
				writeUnauthorized(w, "Missing or invalid Authorization header")
				return
			}

			workerID, err := validator.Validate(token)
			if err != nil {
				logger.WarnContext(ctx, "unauthorized access - invalid token",
					"error", err,
					"request_id", requestcontext.RequestID(ctx),
				)
				writeUnauthorized(w, "Invalid or expired token")
				return
			}

			next.ServeHTTP(w, r.WithContext(requestcontext.WithWorkerID(ctx, workerID)))
		})
	}
}

func writeUnauthorized(w http.ResponseWriter, description string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":"unauthorized","error_description":"` + description + `"}`))
}
