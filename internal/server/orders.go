package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/periodpay/internal/identity"
)

func (s *Server) CreateOrder(c *gin.Context) {
	id, ok := identityFromContext(c)
	if !ok {
		AbortWithError(c, identity.ErrInvalidToken)
		return
	}

	resp, err := s.paymentSvc.CreateOrder(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (s *Server) Unsubscribe(c *gin.Context) {
	id, ok := identityFromContext(c)
	if !ok {
		AbortWithError(c, identity.ErrInvalidToken)
		return
	}

	if err := s.paymentSvc.Unsubscribe(c.Request.Context(), id, c.GetHeader("Authorization")); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Unsubscribe successful"})
}
