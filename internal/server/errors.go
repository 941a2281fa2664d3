package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/periodpay/internal/identity"
	"github.com/smallbiznis/periodpay/internal/orderapi"
	"github.com/smallbiznis/periodpay/internal/payment/adapters/newebpay"
	"github.com/smallbiznis/periodpay/internal/payment/builder"
	paymentdomain "github.com/smallbiznis/periodpay/internal/payment/domain"
	"github.com/smallbiznis/periodpay/internal/ratelimit"
)

type errorPayload struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

var (
	ErrInvalidRequest     = errors.New("invalid_request")
	ErrServiceUnavailable = errors.New("service_unavailable")
)

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
		c.AbortWithStatusJSON(status, payload)
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func mapError(err error) (int, errorPayload) {
	var lookupErr *paymentdomain.LookupError
	if errors.As(err, &lookupErr) {
		return http.StatusBadRequest, errorPayload{
			Type:    "invalid_request",
			Message: lookupErr.Error(),
		}
	}

	switch {
	case errors.Is(err, identity.ErrMissingToken):
		return http.StatusUnauthorized, errorPayload{
			Type:    "unauthorized",
			Message: "Invalid token",
		}
	case errors.Is(err, identity.ErrInvalidToken):
		return http.StatusForbidden, errorPayload{
			Type:    "forbidden",
			Message: "Forbidden",
		}
	case errors.Is(err, newebpay.ErrDecode):
		return http.StatusBadRequest, errorPayload{
			Type:    "decode_error",
			Message: "Invalid payment result",
		}
	case errors.Is(err, paymentdomain.ErrInvalidPayload),
		errors.Is(err, paymentdomain.ErrEmptyBody):
		return http.StatusBadRequest, errorPayload{
			Type:    "invalid_payload",
			Message: "Invalid payment result",
		}
	case errors.Is(err, builder.ErrMissingOrderRef),
		errors.Is(err, ErrInvalidRequest):
		return http.StatusBadRequest, errorPayload{
			Type:    "invalid_request",
			Message: "invalid request",
		}
	case errors.Is(err, paymentdomain.ErrUnsuccessfulPayment):
		return http.StatusUnprocessableEntity, errorPayload{
			Type:    "unsuccessful_payment",
			Message: "Status not success",
		}
	case errors.Is(err, paymentdomain.ErrUnsubscribeRejected):
		return http.StatusUnprocessableEntity, errorPayload{
			Type:    "unsubscribe_rejected",
			Message: "Unsubscribe failed",
		}
	case errors.Is(err, ratelimit.ErrUnsubscribeInProgress):
		return http.StatusConflict, errorPayload{
			Type:    "conflict",
			Message: "Unsubscribe already in progress",
		}
	case errors.Is(err, ratelimit.ErrRateLimited):
		return http.StatusTooManyRequests, errorPayload{
			Type:    "rate_limited",
			Message: "Too many requests",
		}
	case errors.Is(err, orderapi.ErrUpstream),
		errors.Is(err, newebpay.ErrGateway):
		return http.StatusBadGateway, errorPayload{
			Type:    "upstream_error",
			Message: "Upstream service error",
		}
	case errors.Is(err, ErrServiceUnavailable):
		return http.StatusServiceUnavailable, errorPayload{
			Type:    "service_unavailable",
			Message: "service unavailable",
		}
	default:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "Internal Server Error",
		}
	}
}

func classifyErrorForLog(err error) (string, string) {
	if err == nil {
		return "", ""
	}
	status, payload := mapError(err)
	if status >= http.StatusInternalServerError {
		return "server_error", payload.Type
	}
	return "client_error", payload.Type
}
