package http

import (
	"net/http"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

const sessionTokenKey = "token"

// RequireAuth resolves the cookie's opaque token against the session
// store and stashes the user on the gin context.
func (h *Handlers) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		sess := sessions.Default(c)
		token, _ := sess.Get(sessionTokenKey).(string)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
			return
		}

		rec, err := h.sessions.Get(c.Request.Context(), token)
		if err != nil {
			log.Debug().Err(err).Str("module", "adapters.http").Msg("session lookup failed")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
			return
		}

		c.Set("user_id", rec.UserID)
		c.Set("display_name", rec.DisplayName)
		c.Next()
	}
}

func currentUserID(c *gin.Context) string {
	return c.GetString("user_id")
}
