package middlewares

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"flashvote/utils"
)

func bearerToken(c *gin.Context) string {
	h := strings.TrimSpace(c.Request.Header.Get("Authorization"))
	// 兩種都收：純 token 或 "Bearer <token>"
	if len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return h
}

// Authenticate rejects requests without a valid token and stores "userId".
func Authenticate(c *gin.Context) {
	token := bearerToken(c)
	if token == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "Not authorized."})
		return
	}

	userId, err := utils.VerifyToken(token)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "Not authorized."})
		return
	}

	c.Set("userId", userId)
	c.Next()
}

// OptionalAuthenticate stores "userId" when a valid token is present and
// otherwise lets the request through anonymously.
func OptionalAuthenticate(c *gin.Context) {
	if token := bearerToken(c); token != "" {
		if userId, err := utils.VerifyToken(token); err == nil {
			c.Set("userId", userId)
		}
	}
	c.Next()
}
