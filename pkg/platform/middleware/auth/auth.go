// Package auth provides operator authentication middleware.
//
// The surrounding clinic platform issues short-lived HS256 operator tokens;
// this middleware verifies them and stashes the operator ID in the request
// context. Authorization beyond "is a known operator" belongs to the
// excluded platform layer.
package auth

import (
	"log/slog"
	"net/http"
	"strings"

	id "vaxtrack/pkg/domain"
	"vaxtrack/pkg/requestcontext"
)

// TokenValidator verifies a bearer token and extracts its claims.
type TokenValidator interface {
	ValidateToken(tokenString string) (*Claims, error)
}

// Claims represents what the middleware needs from a verified token.
type Claims struct {
	OperatorID string
}

func writeJSONError(w http.ResponseWriter, status int, errCode, errDesc string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(`{"error":"` + errCode + `","error_description":"` + errDesc + `"}`))
}

// RequireOperator rejects requests without a valid operator bearer token and
// injects the operator ID into the context for downstream handlers.
func RequireOperator(validator TokenValidator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			const bearerPrefix = "Bearer "
			token, ok := strings.CutPrefix(r.Header.Get("Authorization"), bearerPrefix)
			if !ok || token == "" {
				writeJSONError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
				return
			}

			claims, err := validator.ValidateToken(token)
			if err != nil {
				logger.WarnContext(ctx, "unauthorized access - invalid token",
					"error", err,
					"request_id", requestcontext.RequestID(ctx),
				)
				writeJSONError(w, http.StatusUnauthorized, "unauthorized", "invalid token")
				return
			}

			operatorID, err := id.ParseOperatorID(claims.OperatorID)
			if err != nil {
				writeJSONError(w, http.StatusUnauthorized, "unauthorized", "invalid operator id in token")
				return
			}

			next.ServeHTTP(w, r.WithContext(requestcontext.WithOperatorID(ctx, operatorID)))
		})
	}
}
