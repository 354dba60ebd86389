// Copyright (C) 2026 FinHaven Technologies (dev@finhaven.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package middleware provides HTTP middleware for the advisory service.
//
// # Authentication Flow
//
// The auth middleware extracts a bearer token from the Authorization header,
// resolves it through the configured identity.Provider, and stores the
// resulting Principal in the Gin context for downstream handlers.
//
//	Request
//	   │
//	   ▼
//	Auth
//	   │
//	   ├─► Extract token from "Authorization: Bearer <token>"
//	   │
//	   ├─► provider.Resolve(ctx, token)
//	   │
//	   └─► Store Principal in context
//	           │
//	           ▼
//	       Handler (retrieves via Principal)
//
// # Local Behavior
//
// With identity.NopProvider (default) every request resolves to the
// local-user admin principal, so the service runs without any identity
// infrastructure. Deployments plug in a real provider to validate tokens
// against their identity stack.
package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/finhaven/finhaven/pkg/identity"
)

// principalKey is the context key for the authenticated principal. A
// package-private string key prevents collisions with other context values.
const principalKey = "finhaven_principal"

// SetPrincipal stores the authenticated principal in the Gin context.
// Called by Auth after successful resolution; exposed for handler tests.
func SetPrincipal(c *gin.Context, p *identity.Principal) {
	c.Set(principalKey, p)
}

// Principal retrieves the authenticated principal from the Gin context.
// Returns nil when the request did not pass through Auth.
func Principal(c *gin.Context) *identity.Principal {
	if v, exists := c.Get(principalKey); exists {
		if p, ok := v.(*identity.Principal); ok {
			return p
		}
	}
	return nil
}

// Auth creates a Gin middleware that authenticates requests.
//
// # Description
//
// Extracts the bearer token from the Authorization header, resolves it with
// the provider, and stores the Principal in the context. Resolution
// failures abort the request with 401; the middleware never distinguishes
// provider outages from bad tokens in the response body.
//
// # Inputs
//
//   - provider: identity.Provider used to resolve tokens. Must not be nil.
//
// # Outputs
//
//   - gin.HandlerFunc: Middleware ready for use with Gin.
//
// # Thread Safety
//
// Thread-safe. The returned middleware can be used concurrently.
func Auth(provider identity.Provider) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := extractBearerToken(c)

		p, err := provider.Resolve(c.Request.Context(), token)
		if err != nil {
			if errors.Is(err, identity.ErrUnauthorized) {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
					"error": "unauthorized",
				})
				return
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "authentication failed",
			})
			return
		}

		SetPrincipal(c, p)
		c.Next()
	}
}

// RequireRole gates a route group to principals holding one of the given
// roles. Admins pass every gate. Must run after Auth; an absent principal
// aborts with 401 rather than 403.
func RequireRole(roles ...identity.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		p := Principal(c)
		if p == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "unauthorized",
			})
			return
		}
		for _, role := range roles {
			if p.Is(role) {
				c.Next()
				return
			}
		}
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
			"error": "insufficient role",
		})
	}
}

// extractBearerToken parses "Authorization: Bearer <token>". Returns empty
// string when the header is missing or malformed; the Bearer prefix is
// case-insensitive per RFC 7235.
func extractBearerToken(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		return ""
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}

	return strings.TrimSpace(parts[1])
}
