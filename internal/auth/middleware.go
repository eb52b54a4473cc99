package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"github.com/Val17-ui/CACESmodule-sub000/internal/auth/jwt"
	httperrors "github.com/Val17-ui/CACESmodule-sub000/pkg/http/errors"
)

type claimsKey struct{}

// ClaimsFromContext returns the claims injected by Guard.
func ClaimsFromContext(ctx context.Context) (*jwt.Claims, bool) {
	claims, ok := ctx.Value(claimsKey{}).(*jwt.Claims)
	return claims, ok && claims != nil
}

// TokenFromRequest reads "Authorization: Bearer <token>", falling back to the token
// query parameter that browsers must use for WebSocket upgrades.
func TokenFromRequest(r *http.Request) (string, error) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		if token := r.URL.Query().Get("token"); token != "" {
			return token, nil
		}
		return "", errMissingToken
	}

	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
		return "", errMalformedHeader
	}
	return parts[1], nil
}

var (
	errMissingToken    = errors.New("missing bearer token")
	errMalformedHeader = errors.New("invalid authorization header")
)

// Guard rejects requests without a valid bearer token. A nil validator disables the
// guard, which is how development setups without JWT_SECRET run.
func Guard(validator TokenValidator, logger zerolog.Logger) func(http.Handler) http.Handler {
	logger = logger.With().Str("component", "auth_guard").Logger()
	return func(next http.Handler) http.Handler {
		if validator == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, err := TokenFromRequest(r)
			if err != nil {
				code := httperrors.ErrCodeAuthenticationRequired
				if errors.Is(err, errMalformedHeader) {
					code = httperrors.ErrCodeInvalidToken
				}
				httperrors.RespondUnauthorized(w, code, err.Error())
				return
			}

			claims, err := validator.ValidateToken(token)
			if err != nil {
				logger.Warn().Err(err).Str("path", r.URL.Path).Msg("token validation failed")
				code := httperrors.ErrCodeInvalidToken
				if errors.Is(err, jwt.ErrExpiredToken) {
					code = httperrors.ErrCodeTokenExpired
				}
				httperrors.RespondUnauthorized(w, code, "Invalid or expired token")
				return
			}

			ctx := context.WithValue(r.Context(), claimsKey{}, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
