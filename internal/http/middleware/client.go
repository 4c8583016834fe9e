// README: Client identity middleware; one anonymous cookie per browser keys its session.
package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	ClientCookie = "trip_planner_client"
	clientIDKey  = "client_id"
	// cookieMaxAge keeps the cookie for 30 days; the session itself expires sooner.
	cookieMaxAge = 30 * 24 * 60 * 60
)

// Client assigns every browser a random client ID, reusing the cookie when present.
func Client(secure bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := c.Cookie(ClientCookie)
		if err != nil || uuid.Validate(id) != nil {
			id = uuid.NewString()
			c.SetSameSite(http.SameSiteLaxMode)
			c.SetCookie(ClientCookie, id, cookieMaxAge, "/", "", secure, true)
		}
		c.Set(clientIDKey, id)
		c.Next()
	}
}

// ClientID returns the client ID set by Client, or "" outside that middleware.
func ClientID(c *gin.Context) string {
	return c.GetString(clientIDKey)
}
