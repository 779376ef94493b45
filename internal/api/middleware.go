/**
 * @description
 * This file contains custom middleware for the HTTP router. Middlewares are used
 * to process requests before they reach the final handler, perfect for tasks like
 * authentication, logging, or adding context to a request.
 *
 * The bot gateway in front of this service mints HS256 bearer tokens carrying
 * the external user id (`sub`), display name (`name`) and role (`role`).
 *
 * @dependencies
 * - context, net/http, strings: Standard Go libraries.
 * - github.com/golang-jwt/jwt/v5: JWT parsing and validation.
 */

package api

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// authContextKey is a custom type for context keys to avoid collisions.
type authContextKey string

const authUserKey authContextKey = "authUser"

// RoleModerator marks tokens allowed to hit moderation routes.
const RoleModerator = "moderator"

// AuthUser is the identity the gateway token asserts.
type AuthUser struct {
	ID          string
	DisplayName string
	Role        string
}

// GatewayAuthMiddleware creates a middleware that validates HS256 JWTs minted
// by the bot gateway and stores the asserted identity in the request context.
func GatewayAuthMiddleware(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				http.Error(w, "Authorization header required", http.StatusUnauthorized)
				return
			}

			tokenString := strings.TrimPrefix(authHeader, "Bearer ")
			if tokenString == authHeader {
				http.Error(w, "Invalid Authorization header format", http.StatusUnauthorized)
				return
			}

			token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
				if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
				}
				return []byte(secret), nil
			})
			if err != nil || !token.Valid {
				http.Error(w, "Invalid token", http.StatusUnauthorized)
				return
			}

			claims, ok := token.Claims.(jwt.MapClaims)
			if !ok {
				http.Error(w, "Invalid token claims", http.StatusUnauthorized)
				return
			}

			userID, ok := claims["sub"].(string)
			if !ok || userID == "" {
				http.Error(w, "User ID not found in token", http.StatusUnauthorized)
				return
			}

			user := AuthUser{ID: userID}
			if name, ok := claims["name"].(string); ok {
				user.DisplayName = name
			}
			if role, ok := claims["role"].(string); ok {
				user.Role = role
			}

			ctx := context.WithValue(r.Context(), authUserKey, user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireModerator rejects requests whose token does not carry the moderator
// role. Must run after GatewayAuthMiddleware.
func RequireModerator(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := GetAuthUser(r.Context())
		if !ok {
			http.Error(w, "Authentication required", http.StatusUnauthorized)
			return
		}
		if user.Role != RoleModerator {
			http.Error(w, "Moderator role required", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// GetAuthUser retrieves the authenticated identity from the request context.
// Handlers should use this function to get the caller's id and display name.
func GetAuthUser(ctx context.Context) (AuthUser, bool) {
	user, ok := ctx.Value(authUserKey).(AuthUser)
	return user, ok
}
