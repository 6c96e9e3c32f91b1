package auth

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// RegisterRoutes mounts session endpoints on a group already guarded by Middleware.
func RegisterRoutes(group *gin.RouterGroup) {
	group.GET("/session", currentSession)
}

type sessionResponse struct {
	UserID    string     `json:"userId"`
	Email     string     `json:"email"`
	ShopID    string     `json:"shopId"`
	ExpiresAt *time.Time `json:"expiresAt,omitempty"`
}

func currentSession(c *gin.Context) {
	session, ok := CurrentSession(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	resp := sessionResponse{
		UserID: session.UserID,
		Email:  session.Email,
		ShopID: session.TenantID,
	}
	if !session.ExpiresAt.IsZero() {
		expires := session.ExpiresAt.UTC()
		resp.ExpiresAt = &expires
	}
	c.JSON(http.StatusOK, gin.H{"session": resp})
}
