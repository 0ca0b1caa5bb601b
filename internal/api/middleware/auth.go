package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/openimis/openimis-be-medical/internal/domain/entities"
	"github.com/openimis/openimis-be-medical/internal/infrastructure/observability"
)

type callerKey struct{}

// CallerClaims are the token claims naming a catalog caller
type CallerClaims struct {
	AuditUserID int      `json:"audit_user_id"`
	Perms       []string `json:"perms"`
	jwt.RegisteredClaims
}

// WithCaller returns a copy of ctx carrying caller
func WithCaller(ctx context.Context, caller *entities.Caller) context.Context {
	return context.WithValue(ctx, callerKey{}, caller)
}

// CallerFromContext returns the caller stored in ctx, or an anonymous caller
func CallerFromContext(ctx context.Context) *entities.Caller {
	if caller, ok := ctx.Value(callerKey{}).(*entities.Caller); ok && caller != nil {
		return caller
	}
	return entities.Anonymous()
}

// Authenticator turns bearer tokens into callers
type Authenticator struct {
	secret []byte
	issuer string
}

// NewAuthenticator creates an authenticator verifying HS256 tokens signed
// with secret. A non-empty issuer must match the iss claim.
func NewAuthenticator(secret, issuer string) *Authenticator {
	return &Authenticator{secret: []byte(secret), issuer: issuer}
}

// Middleware attaches the caller to the request context. Requests without
// an Authorization header run as anonymous; an invalid token is rejected.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if header == "" {
			next.ServeHTTP(w, r.WithContext(WithCaller(r.Context(), entities.Anonymous())))
			return
		}

		caller, err := a.Authenticate(header)
		if err != nil {
			observability.LoggerFromContext(r.Context()).Warn().
				Err(err).
				Str("path", r.URL.Path).
				Msg("rejected bearer token")
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("WWW-Authenticate", `Bearer error="invalid_token"`)
			w.WriteHeader(http.StatusUnauthorized)
			_ = json.NewEncoder(w).Encode(map[string]string{
				"type":    "AUTHENTICATION_REQUIRED",
				"message": "invalid token",
			})
			return
		}

		next.ServeHTTP(w, r.WithContext(WithCaller(r.Context(), caller)))
	})
}

// Authenticate parses an Authorization header value
func (a *Authenticator) Authenticate(header string) (*entities.Caller, error) {
	raw, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || strings.TrimSpace(raw) == "" {
		return nil, errors.New("authorization header is not a bearer token")
	}
	if len(a.secret) == 0 {
		return nil, errors.New("token verification is not configured")
	}

	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if a.issuer != "" {
		opts = append(opts, jwt.WithIssuer(a.issuer))
	}

	var claims CallerClaims
	_, err := jwt.ParseWithClaims(strings.TrimSpace(raw), &claims, func(*jwt.Token) (interface{}, error) {
		return a.secret, nil
	}, opts...)
	if err != nil {
		return nil, err
	}
	if claims.Subject == "" {
		return nil, errors.New("token has no subject")
	}
	return entities.NewCaller(claims.Subject, claims.AuditUserID, claims.Perms...), nil
}

// SignCallerToken issues an HS256 token for the given claims. It serves
// tooling and tests; the catalog itself never issues tokens.
func SignCallerToken(secret string, claims CallerClaims) (string, error) {
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}
