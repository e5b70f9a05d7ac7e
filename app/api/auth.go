package api

import (
	"crypto/subtle"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// internalAuthMiddleware guards the cron-triggered endpoints with a shared secret.
func internalAuthMiddleware(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		provided, ok := bearerToken(c)
		if !ok || secret == "" || subtle.ConstantTimeCompare([]byte(provided), []byte(secret)) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Unauthorized: Invalid or missing internal secret",
			})
			return
		}

		c.Next()
	}
}

// userAuthMiddleware accepts HS256 tokens and stores the subject as the user id.
func userAuthMiddleware(secret string) gin.HandlerFunc {
	key := []byte(secret)

	return func(c *gin.Context) {
		raw, ok := bearerToken(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Missing or invalid authorization header",
			})
			return
		}

		token, err := jwt.Parse(raw, func(*jwt.Token) (any, error) {
			return key, nil
		}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
		if err != nil || !token.Valid {
			slog.Debug("Rejected user token", "path", c.FullPath(), "error", err)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
			return
		}

		sub, err := token.Claims.GetSubject()
		if err != nil || sub == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Token has no subject"})
			return
		}

		c.Set(userIDKey, sub)
		c.Next()
	}
}

// methodGuard answers 405 with message for any method outside allowed.
func methodGuard(message string, allowed ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		for _, m := range allowed {
			if c.Request.Method == m {
				c.Next()
				return
			}
		}
		c.AbortWithStatusJSON(http.StatusMethodNotAllowed, gin.H{"error": message})
	}
}

func bearerToken(c *gin.Context) (string, bool) {
	header := c.GetHeader("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		return "", false
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	return token, token != ""
}

func userID(c *gin.Context) string {
	return c.GetString(userIDKey)
}
