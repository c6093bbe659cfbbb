// Package auth resolves the caller Identity from a JWT bearer token.
//
// Wallet front ends obtain a token from the operator's session service; the
// only claim this service consumes is the subject, which must be a canonical
// identity. Handlers read the caller via requestcontext.Caller.
package auth

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	id "mintgate/pkg/domain"
	"mintgate/pkg/requestcontext"
)

// Validator verifies bearer tokens and extracts the caller identity.
type Validator struct {
	signingKey []byte
}

// NewValidator constructs a validator over an HMAC signing key.
func NewValidator(signingKey string) *Validator {
	return &Validator{signingKey: []byte(signingKey)}
}

// ValidateToken parses and verifies a token, returning the subject identity.
func (v *Validator) ValidateToken(tokenString string) (id.Identity, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return v.signingKey, nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil {
		return id.NullIdentity, err
	}

	subject, err := token.Claims.GetSubject()
	if err != nil {
		return id.NullIdentity, err
	}
	return id.ParseIdentity(subject)
}

// IssueToken mints a token for an identity. Used by tests and by the dev
// login helper; production deployments issue tokens out of band.
func (v *Validator) IssueToken(identity id.Identity) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": identity.String(),
	})
	return token.SignedString(v.signingKey)
}

// RequireCaller authenticates the request and injects the caller identity
// into the context. Requests without a valid bearer token get 401.
func RequireCaller(validator *Validator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			header := r.Header.Get("Authorization")
			const prefix = "Bearer "
			if !strings.HasPrefix(header, prefix) {
				writeUnauthorized(w, "bearer token required")
				return
			}

			caller, err := validator.ValidateToken(strings.TrimPrefix(header, prefix))
			if err != nil {
				logger.WarnContext(ctx, "token validation failed",
					"request_id", requestcontext.RequestID(ctx),
					"error", err,
				)
				writeUnauthorized(w, "invalid token")
				return
			}

			next.ServeHTTP(w, r.WithContext(requestcontext.WithCaller(ctx, caller)))
		})
	}
}

func writeUnauthorized(w http.ResponseWriter, desc string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":"unauthorized","error_description":"` + desc + `"}`))
}
