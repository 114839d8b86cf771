package server

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/creditgate/internal/ratelimit"
)

type usageRequest struct {
	Fingerprint string `json:"fingerprint"`
}

type usageCheckResponse struct {
	HasCredits bool             `json:"hasCredits"`
	Reason     ratelimit.Reason `json:"reason,omitempty"`
	Remaining  *int             `json:"remaining,omitempty"`
}

type usageUseResponse struct {
	Allowed   bool             `json:"allowed"`
	Reason    ratelimit.Reason `json:"reason,omitempty"`
	Remaining *int             `json:"remaining,omitempty"`
}

func (s *Server) CheckUsage(c *gin.Context) {
	fingerprint, ok := bindFingerprint(c)
	if !ok {
		return
	}

	decision, err := s.limiter.CheckCredits(c.Request.Context(), fingerprint, clientIP(c))
	if err != nil {
		AbortWithError(c, limiterError(err))
		return
	}

	resp := usageCheckResponse{HasCredits: decision.Allowed, Reason: decision.Reason}
	if decision.Allowed {
		resp.Remaining = &decision.Remaining
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) UseUsage(c *gin.Context) {
	fingerprint, ok := bindFingerprint(c)
	if !ok {
		return
	}

	decision, err := s.limiter.UseCredit(c.Request.Context(), fingerprint, clientIP(c))
	if err != nil {
		AbortWithError(c, limiterError(err))
		return
	}

	if !decision.Allowed {
		c.Set("denial_reason", string(decision.Reason))
		c.Header("X-Rate-Limited-Reason", string(decision.Reason))
		c.JSON(http.StatusTooManyRequests, usageUseResponse{Allowed: false, Reason: decision.Reason})
		return
	}

	c.JSON(http.StatusOK, usageUseResponse{Allowed: true, Remaining: &decision.Remaining})
}

func bindFingerprint(c *gin.Context) (string, bool) {
	var req usageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return "", false
	}
	fingerprint := strings.TrimSpace(req.Fingerprint)
	if fingerprint == "" {
		AbortWithError(c, ratelimit.ErrMissingFingerprint)
		return "", false
	}
	return fingerprint, true
}

// clientIP resolves the caller address from gin's trusted proxy handling.
func clientIP(c *gin.Context) string {
	ip := strings.TrimSpace(c.ClientIP())
	if ip == "" {
		return ratelimit.UnknownIP
	}
	return ip
}

func limiterError(err error) error {
	if errors.Is(err, ratelimit.ErrMissingFingerprint) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrServiceUnavailable, err)
}
