package http

import (
	"context"
	"net/http"
	"strings"

	applog "expenses/internal/log"
)

type userKey struct{}

// userID returns the authenticated user of the request. Only valid behind
// requireAuth.
func userID(ctx context.Context) string {
	id, _ := ctx.Value(userKey{}).(string)
	return id
}

// bearerToken reads the Authorization header; the "Bearer " prefix is
// optional.
func bearerToken(r *http.Request) string {
	h := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(h) >= 7 && strings.EqualFold(h[:7], "bearer ") {
		h = strings.TrimSpace(h[7:])
	}
	return h
}

// requireAuth resolves the caller before next runs. A missing token and an
// invalid one get different 401 messages.
func (s *Server) requireAuth(next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			writeMessage(w, http.StatusUnauthorized, "No token, authorization denied")
			return
		}

		id, err := s.verifier.Verify(token)
		if err != nil {
			applog.FromContext(r.Context()).DebugContext(r.Context(), "Token rejected", applog.FieldError, err)
			writeMessage(w, http.StatusUnauthorized, "Token is not valid")
			return
		}

		ctx := context.WithValue(r.Context(), userKey{}, id)
		ctx = applog.NewContext(ctx, applog.FromContext(ctx).With(applog.FieldUserID, id))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
