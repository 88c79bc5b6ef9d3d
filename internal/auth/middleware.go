package auth

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/k1networth/servicedesk-lite/internal/shared/httpx"
)

type ctxKeyUserID struct{}

func WithUserID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKeyUserID{}, id)
}

// UserID returns the authenticated caller id put in ctx by Middleware.
func UserID(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(ctxKeyUserID{}).(string)
	return id, ok && id != ""
}

// Middleware requires a valid "Authorization: Bearer <jwt>" header.
func Middleware(tokens *Tokens, log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, ok := bearerToken(r)
			if !ok {
				httpx.WriteError(w, r, http.StatusUnauthorized, httpx.CodeUnauthorized, "Not authorized, no token")
				return
			}

			claims, err := tokens.Parse(raw)
			if err != nil {
				log.Debug("auth_token_rejected", slog.String("err", err.Error()))
				httpx.WriteError(w, r, http.StatusUnauthorized, httpx.CodeUnauthorized, "Not authorized")
				return
			}

			next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), claims.UserID)))
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	h := strings.TrimSpace(r.Header.Get("Authorization"))
	scheme, token, found := strings.Cut(h, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
