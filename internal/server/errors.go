package server

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	checkoutdomain "github.com/smallbiznis/creditgate/internal/checkout/domain"
	creditdomain "github.com/smallbiznis/creditgate/internal/credit/domain"
	generationdomain "github.com/smallbiznis/creditgate/internal/generation/domain"
	paymentdomain "github.com/smallbiznis/creditgate/internal/payment/domain"
	"github.com/smallbiznis/creditgate/internal/ratelimit"
)

// retryAfterSeconds is advertised on transient store failures.
const retryAfterSeconds = 1

type ValidationError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

func (v ValidationErrors) Error() string {
	return "validation error"
}

type errorPayload struct {
	Type      string            `json:"type"`
	Message   string            `json:"message"`
	Retryable bool              `json:"retryable,omitempty"`
	Errors    []ValidationError `json:"errors,omitempty"`

	retryAfter int
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrUnauthorized       = errors.New("unauthorized")
	ErrInternal           = errors.New("internal_error")
	ErrNotFound           = errors.New("not_found")
	ErrInvalidRequest     = errors.New("invalid_request")
	ErrRateLimited        = errors.New("rate_limited")
	ErrServiceUnavailable = errors.New("service_unavailable")
)

type validationRule struct {
	err     error
	field   string
	message string
}

var validationRules = []validationRule{
	{generationdomain.ErrMissingInput, "image", "image, mask and prompt are required"},
	{generationdomain.ErrInvalidImage, "image", "image must be a png, jpeg or webp data URL"},
	{generationdomain.ErrMissingOutput, "outputImageUrl", "outputImageUrl is required"},
	{generationdomain.ErrMissingGenerationID, "generationId", "generationId is required"},
	{generationdomain.ErrInvalidFeedback, "feedback", "feedback must be like or dislike"},
	{generationdomain.ErrInvalidRating, "rating", "rating must be 1 or -1"},
	{ratelimit.ErrMissingFingerprint, "fingerprint", "fingerprint is required"},
	{checkoutdomain.ErrMissingIntentID, "paymentIntentId", "paymentIntentId is required"},
	{paymentdomain.ErrInvalidSignature, "Stripe-Signature", "webhook signature verification failed"},
	{paymentdomain.ErrInvalidPayload, "body", "webhook payload is malformed"},
	{paymentdomain.ErrInvalidEvent, "body", "webhook event is invalid"},
}

func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err)
		if payload.retryAfter > 0 {
			c.Header("Retry-After", strconv.Itoa(payload.retryAfter))
		}
		c.Header("Content-Type", "application/json")
		c.AbortWithStatusJSON(status, errorResponse{Error: payload})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func invalidRequestError() error {
	return newValidationError("request", "invalid_request", "invalid request")
}

func newValidationError(field, code, message string) error {
	return &ValidationErrors{
		Errors: []ValidationError{
			{
				Field:   field,
				Code:    code,
				Message: message,
			},
		},
	}
}

func mapError(err error) (int, errorPayload) {
	if err == nil {
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}

	if vErr := asValidationErrors(err); vErr != nil {
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors:  vErr.Errors,
		}
	}

	if rule, ok := matchValidationRule(err); ok {
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors: []ValidationError{
				{Field: rule.field, Code: rule.err.Error(), Message: rule.message},
			},
		}
	}

	var creditErr *creditdomain.CreditError
	if errors.As(err, &creditErr) {
		return mapCreditError(creditErr)
	}

	switch {
	case errors.Is(err, creditdomain.ErrMissingPaymentID):
		return http.StatusForbidden, errorPayload{
			Type:    "missing_payment_id",
			Message: creditdomain.MessageFor(creditdomain.ReasonMissingPayment),
		}
	case errors.Is(err, checkoutdomain.ErrMissingToken):
		return http.StatusUnauthorized, errorPayload{
			Type:    "missing_token",
			Message: creditdomain.MessageFor(creditdomain.ReasonUnauthorized),
		}
	case errors.Is(err, creditdomain.ErrExpired):
		return http.StatusUnauthorized, errorPayload{
			Type:    "expired",
			Message: creditdomain.MessageFor(creditdomain.ReasonExpired),
		}
	case errors.Is(err, creditdomain.ErrUnauthorized),
		errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized, errorPayload{
			Type:    "unauthorized",
			Message: creditdomain.MessageFor(creditdomain.ReasonUnauthorized),
		}
	case errors.Is(err, checkoutdomain.ErrNotSucceeded):
		return http.StatusConflict, errorPayload{
			Type:      "not_succeeded",
			Message:   "Payment is still processing. Please retry shortly.",
			Retryable: true,
		}
	case errors.Is(err, paymentdomain.ErrStoreUnavailable),
		errors.Is(err, creditdomain.ErrStoreUnavailable):
		return http.StatusServiceUnavailable, errorPayload{
			Type:       "store_unavailable",
			Message:    creditdomain.MessageFor(creditdomain.ReasonStoreUnavailable),
			Retryable:  true,
			retryAfter: retryAfterSeconds,
		}
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests, errorPayload{
			Type:    "rate_limited",
			Message: "too many requests",
		}
	case errors.Is(err, ErrInvalidRequest):
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
		}
	case isNotFoundError(err):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: "not found",
		}
	case errors.Is(err, checkoutdomain.ErrProcessorDisabled),
		errors.Is(err, ErrServiceUnavailable):
		return http.StatusServiceUnavailable, errorPayload{
			Type:    "service_unavailable",
			Message: "service unavailable",
		}
	case errors.Is(err, checkoutdomain.ErrProcessorFailure),
		errors.Is(err, generationdomain.ErrProviderFailure),
		errors.Is(err, generationdomain.ErrEmptyResult):
		return http.StatusBadGateway, errorPayload{
			Type:      "upstream_error",
			Message:   "Generation failed. Please retry.",
			Retryable: true,
		}
	default:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}
}

func mapCreditError(err *creditdomain.CreditError) (int, errorPayload) {
	payload := errorPayload{
		Type:    string(err.Reason),
		Message: err.UserMessage(),
	}
	switch err.Reason {
	case creditdomain.ReasonStoreUnavailable:
		payload.Retryable = true
		payload.retryAfter = retryAfterSeconds
		return http.StatusServiceUnavailable, payload
	case creditdomain.ReasonUnauthorized, creditdomain.ReasonExpired:
		return http.StatusUnauthorized, payload
	default:
		return http.StatusPaymentRequired, payload
	}
}

func asValidationErrors(err error) *ValidationErrors {
	var vErr *ValidationErrors
	if errors.As(err, &vErr) && vErr != nil {
		return vErr
	}
	return nil
}

func matchValidationRule(err error) (validationRule, bool) {
	for _, rule := range validationRules {
		if errors.Is(err, rule.err) {
			return rule, true
		}
	}
	return validationRule{}, false
}

func isNotFoundError(err error) bool {
	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, checkoutdomain.ErrPaymentNotFound),
		errors.Is(err, paymentdomain.ErrPaymentNotFound),
		errors.Is(err, generationdomain.ErrGenerationNotFound),
		errors.Is(err, generationdomain.ErrProviderNotFound):
		return true
	default:
		return false
	}
}

// classifyErrorForLog reports the response type and the first validation code.
func classifyErrorForLog(err error) (string, string) {
	_, payload := mapError(err)
	code := payload.Type
	if len(payload.Errors) > 0 {
		code = payload.Errors[0].Code
	}
	return payload.Type, code
}
