package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/aire-xalapa/aire/internal/api/models"
	"github.com/aire-xalapa/aire/internal/auth"
)

type subjectKey struct{}

// TokenValidator validates service tokens.
type TokenValidator interface {
	ValidateServiceToken(token string) (*auth.ServiceClaims, error)
}

// tokenErrors maps validation failures to the message sent to the caller.
var tokenErrors = []struct {
	err     error
	message string
}{
	{auth.ErrTokenExpired, "service token has expired"},
	{auth.ErrSigningKeyNotSet, "ingestion is disabled"},
	{auth.ErrInvalidToken, "invalid service token"},
}

// ServiceAuth requires a bearer service token. Requests without a valid
// token get 401; a valid token without scope gets 403. Both carry an RFC
// 6750 WWW-Authenticate challenge. The token subject is added to the
// request context and the server span.
func ServiceAuth(validator TokenValidator, scope string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" {
				unauthorized(w, r, "missing authorization header")
				return
			}
			token, ok := bearerToken(header)
			if !ok {
				unauthorized(w, r, "invalid authorization header format")
				return
			}

			claims, err := validator.ValidateServiceToken(token)
			if err != nil {
				unauthorized(w, r, tokenErrorMessage(err))
				return
			}

			if scope != "" && !claims.HasScope(scope) {
				w.Header().Set("WWW-Authenticate", `Bearer realm="aire", error="insufficient_scope", scope="`+scope+`"`)
				models.WriteError(w, GetRequestID(r.Context()), http.StatusForbidden, "service token lacks scope "+scope)
				return
			}

			trace.SpanFromContext(r.Context()).SetAttributes(attribute.String("aire.subject", claims.Subject))
			ctx := context.WithValue(r.Context(), subjectKey{}, claims.Subject)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// bearerToken extracts the token from "Bearer <token>", accepting any case
// for the scheme.
func bearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func tokenErrorMessage(err error) string {
	for _, te := range tokenErrors {
		if errors.Is(err, te.err) {
			return te.message
		}
	}
	return "authentication failed"
}

// unauthorized writes the 401 body through models because the response
// package imports this one.
func unauthorized(w http.ResponseWriter, r *http.Request, message string) {
	w.Header().Set("WWW-Authenticate", `Bearer realm="aire", error="invalid_token"`)
	models.WriteError(w, GetRequestID(r.Context()), http.StatusUnauthorized, message)
}

// GetSubject returns the authenticated service subject, or "" when the
// request did not pass ServiceAuth.
func GetSubject(ctx context.Context) string {
	if s, ok := ctx.Value(subjectKey{}).(string); ok {
		return s
	}
	return ""
}
