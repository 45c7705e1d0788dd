package middleware

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v4"

	"github.com/brickrace/race-server/models"
	"github.com/brickrace/race-server/services"
)

type contextKey string

const operatorContextKey contextKey = "operator"

// Auth guards operator routes with JWT sessions and the timing route
// with a shared hardware key.
type Auth struct {
	jwtSecret    []byte
	timingAPIKey []byte
}

func NewAuth(jwtSecret, timingAPIKey string) *Auth {
	return &Auth{
		jwtSecret:    []byte(jwtSecret),
		timingAPIKey: []byte(timingAPIKey),
	}
}

// Authenticate validates the Bearer token and stores the operator claims
// in the request context.
func (a *Auth) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		tokenString := strings.TrimPrefix(header, "Bearer ")

		claims := &services.OperatorClaims{}
		token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, jwt.ErrSignatureInvalid
			}
			return a.jwtSecret, nil
		})
		if err != nil || !token.Valid {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), operatorContextKey, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireAdmin allows only operators with the admin role through.
func (a *Auth) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, ok := OperatorFromContext(r.Context())
		if !ok || claims.Role != models.RoleAdmin {
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// TimingAuth authenticates the track timing hardware by shared key.
// Comparison is constant time.
func (a *Auth) TimingAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := []byte(r.Header.Get("X-Timing-Api-Key"))
		if len(key) == 0 || subtle.ConstantTimeCompare(key, a.timingAPIKey) != 1 {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// OperatorFromContext returns the authenticated operator claims, if any.
func OperatorFromContext(ctx context.Context) (*services.OperatorClaims, bool) {
	claims, ok := ctx.Value(operatorContextKey).(*services.OperatorClaims)
	return claims, ok
}
