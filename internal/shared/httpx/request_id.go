package httpx

import (
	"net/http"
	"strings"

	"github.com/k1networth/servicedesk-lite/internal/shared/requestid"
)

const requestIDHeader = "X-Request-Id"

// maxRequestIDLen bounds client-supplied ids so they can't bloat log lines.
const maxRequestIDLen = 128

func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rid := strings.TrimSpace(r.Header.Get(requestIDHeader))
		if rid == "" || len(rid) > maxRequestIDLen {
			rid = requestid.New()
		}

		w.Header().Set(requestIDHeader, rid)

		next.ServeHTTP(w, r.WithContext(requestid.With(r.Context(), rid)))
	})
}
