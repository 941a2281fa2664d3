package server

import (
	"github.com/gin-gonic/gin"
	obscontext "github.com/smallbiznis/periodpay/internal/observability/context"
	paymentdomain "github.com/smallbiznis/periodpay/internal/payment/domain"
)

const contextIdentityKey = "identity"

// AuthRequired decodes the bearer token into the caller identity.
func (s *Server) AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := s.identity.Decode(c.GetHeader("Authorization"))
		if err != nil {
			AbortWithError(c, err)
			return
		}

		c.Set(contextIdentityKey, id)
		c.Request = c.Request.WithContext(obscontext.WithUserID(c.Request.Context(), id.UserID))
		c.Next()
	}
}

func identityFromContext(c *gin.Context) (paymentdomain.Identity, bool) {
	v, ok := c.Get(contextIdentityKey)
	if !ok {
		return paymentdomain.Identity{}, false
	}
	id, ok := v.(paymentdomain.Identity)
	return id, ok
}
