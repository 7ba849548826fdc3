package handlers

import "github.com/labstack/echo/v4"

// getUserIDFromContext returns the authenticated user's id set by the auth
// middleware, or "" when the request is unauthenticated.
func getUserIDFromContext(c echo.Context) string {
	if id, ok := c.Get("user_id").(string); ok {
		return id
	}
	return ""
}

// getTokenFromContext returns the raw bearer token the auth middleware
// verified. Stream handlers forward it to the realtime broker so the
// subscription is gated on the same credential.
func getTokenFromContext(c echo.Context) string {
	if token, ok := c.Get("token").(string); ok {
		return token
	}
	return ""
}
