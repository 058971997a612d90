package http

import (
	"context"
	"net/http"
	"strconv"

	"github.com/ballotd/ballotd/internal/core/ports"
	"github.com/golang-jwt/jwt/v5"
)

type contextKey string

// CallerKey carries the authenticated caller through the request context.
const CallerKey contextKey = "caller"

// AuthMiddleware verifies the access token cookie (falling back to the
// Authorization header) and places the caller's platform user id and role ids
// in the request context. The token's numeric "sub" claim is the user id; the
// optional "roles" claim lists role ids.
func AuthMiddleware(jwtSecret []byte) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString := tokenFromRequest(r)
			if tokenString == "" {
				http.Error(w, "Unauthorized: missing access token", http.StatusUnauthorized)
				return
			}

			token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
				if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, jwt.ErrSignatureInvalid
				}
				return jwtSecret, nil
			})
			if err != nil || !token.Valid {
				http.Error(w, "Unauthorized: invalid access token", http.StatusUnauthorized)
				return
			}

			claims, ok := token.Claims.(jwt.MapClaims)
			if !ok {
				http.Error(w, "Unauthorized: invalid token claims", http.StatusUnauthorized)
				return
			}
			caller, ok := callerFromClaims(claims)
			if !ok {
				http.Error(w, "Unauthorized: invalid subject", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), CallerKey, caller)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func tokenFromRequest(r *http.Request) string {
	if cookie, err := r.Cookie("access_token"); err == nil {
		return cookie.Value
	}
	const prefix = "Bearer "
	auth := r.Header.Get("Authorization")
	if len(auth) > len(prefix) && auth[:len(prefix)] == prefix {
		return auth[len(prefix):]
	}
	return ""
}

func callerFromClaims(claims jwt.MapClaims) (ports.Caller, bool) {
	sub, err := claims.GetSubject()
	if err != nil {
		return ports.Caller{}, false
	}
	userID, err := strconv.ParseInt(sub, 10, 64)
	if err != nil {
		return ports.Caller{}, false
	}

	caller := ports.Caller{UserID: userID}
	if raw, ok := claims["roles"].([]interface{}); ok {
		for _, v := range raw {
			switch role := v.(type) {
			case float64:
				caller.RoleIDs = append(caller.RoleIDs, int64(role))
			case string:
				if id, err := strconv.ParseInt(role, 10, 64); err == nil {
					caller.RoleIDs = append(caller.RoleIDs, id)
				}
			}
		}
	}
	return caller, true
}

func callerFrom(r *http.Request) (ports.Caller, bool) {
	caller, ok := r.Context().Value(CallerKey).(ports.Caller)
	return caller, ok
}
