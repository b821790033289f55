package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/angelmondragon/dontforget-backend/api/responses"
	pkgAuth "github.com/angelmondragon/dontforget-backend/pkg/auth"
	"github.com/angelmondragon/dontforget-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/dontforget-backend/pkg/errors"
	"github.com/angelmondragon/dontforget-backend/pkg/logger"
)

type contextKey string

const (
	ctxUserID   contextKey = "user_id"
	ctxDeviceID contextKey = "device_id"
)

// UserID returns the authenticated user id seeded by Auth.
func UserID(ctx context.Context) string {
	if v, ok := ctx.Value(ctxUserID).(string); ok {
		return v
	}
	return ""
}

// Auth validates a bearer token and seeds the request context with the claims.
func Auth(cfg config.JWTConfig, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := strings.TrimSpace(r.Header.Get("Authorization"))
			if raw == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
				return
			}

			token := raw
			if strings.HasPrefix(strings.ToLower(token), "bearer ") {
				token = strings.TrimSpace(token[7:])
			}
			if token == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
				return
			}

			claims, err := pkgAuth.ParseAccessToken(cfg, token)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid token"))
				return
			}

			ctx := context.WithValue(r.Context(), ctxUserID, claims.UserID.String())
			if claims.DeviceID != nil {
				ctx = context.WithValue(ctx, ctxDeviceID, *claims.DeviceID)
			}

			if logg != nil {
				fields := map[string]any{"user_id": claims.UserID.String()}
				if claims.DeviceID != nil {
					fields["device_id"] = *claims.DeviceID
				}
				ctx = logg.WithFields(ctx, fields)
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
