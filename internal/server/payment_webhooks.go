package server

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
)

// maxWebhookBytes bounds a single webhook delivery.
const maxWebhookBytes = 1 << 20

func (s *Server) HandleStripeWebhook(c *gin.Context) {
	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBytes))
	if err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	if err := s.checkout.HandleWebhook(c.Request.Context(), payload, c.Request.Header); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"received": true})
}
