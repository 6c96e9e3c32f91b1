package auth

import (
	"strings"

	"github.com/gin-gonic/gin"
)

const sessionContextKey = "shopdropSession"

// Middleware validates the session token from the Authorization header or the session
// cookie and stores the session in the gin context.
func Middleware(verifier *Verifier, cookieName string) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := ""
		if header := c.GetHeader("Authorization"); header != "" {
			token = extractBearerToken(header)
			if token == "" {
				c.AbortWithStatusJSON(401, gin.H{"error": "invalid authorization header"})
				return
			}
		} else if cookie, err := c.Cookie(cookieName); err == nil {
			token = cookie
		}

		if token == "" {
			c.AbortWithStatusJSON(401, gin.H{"error": "unauthorized"})
			return
		}

		session, err := verifier.Verify(token)
		if err != nil {
			c.AbortWithStatusJSON(401, gin.H{"error": "invalid or expired session"})
			return
		}

		c.Set(sessionContextKey, session)
		c.Next()
	}
}

// CurrentSession extracts the verified session from the context.
func CurrentSession(c *gin.Context) (Session, bool) {
	value, exists := c.Get(sessionContextKey)
	if !exists {
		return Session{}, false
	}
	session, ok := value.(Session)
	return session, ok
}

// TenantID returns the shop id of the verified session.
func TenantID(c *gin.Context) (string, bool) {
	session, ok := CurrentSession(c)
	if !ok || session.TenantID == "" {
		return "", false
	}
	return session.TenantID, true
}

func extractBearerToken(header string) string {
	if !strings.HasPrefix(strings.ToLower(header), "bearer ") {
		return ""
	}
	return strings.TrimSpace(header[7:])
}
