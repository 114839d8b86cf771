package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	checkoutdomain "github.com/smallbiznis/creditgate/internal/checkout/domain"
	obscontext "github.com/smallbiznis/creditgate/internal/observability/context"
)

type createPaymentRequest struct {
	UserEmail string `json:"userEmail" binding:"omitempty,email"`
	AbsType   string `json:"absType"`
	Gender    string `json:"gender"`
}

type confirmPaymentRequest struct {
	PaymentIntentID string `json:"paymentIntentId"`
}

type checkCreditsRequest struct {
	PaymentID string `json:"paymentId"`
}

func (s *Server) CreatePayment(c *gin.Context) {
	var req createPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, newValidationError("userEmail", "invalid_email", "userEmail must be a valid email"))
		return
	}

	resp, err := s.checkout.CreatePayment(c.Request.Context(), checkoutdomain.CreatePaymentRequest{
		UserEmail: req.UserEmail,
		AbsType:   req.AbsType,
		Gender:    req.Gender,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (s *Server) ConfirmPayment(c *gin.Context) {
	var req confirmPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	tagPayment(c, req.PaymentIntentID)

	resp, err := s.checkout.Confirm(c.Request.Context(), req.PaymentIntentID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (s *Server) CheckCredits(c *gin.Context) {
	var req checkCreditsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	tagPayment(c, req.PaymentID)

	eval, err := s.credits.Check(c.Request.Context(), req.PaymentID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, eval)
}

// tagPayment puts the payment id on the request context so the access log
// and the server span carry it.
func tagPayment(c *gin.Context, paymentID string) {
	paymentID = strings.TrimSpace(paymentID)
	if paymentID == "" {
		return
	}
	c.Request = c.Request.WithContext(obscontext.WithPaymentID(c.Request.Context(), paymentID))
}
