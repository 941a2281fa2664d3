package server

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/periodpay/internal/observability/logger"
	"github.com/smallbiznis/periodpay/internal/pages"
	paymentdomain "github.com/smallbiznis/periodpay/internal/payment/domain"
	"go.uber.org/zap"
)

const maxCallbackBody = 1 << 20

// HandleNewebPayReturn receives the browser post-back after the first charge
// and always answers with a redirect to a result page. Errors are logged here
// and never pushed onto the gin context, so the error middleware cannot
// replace the redirect with a JSON body.
func (s *Server) HandleNewebPayReturn(c *gin.Context) {
	ctx := c.Request.Context()

	body, err := readCallbackBody(c)
	if err == nil {
		var result *paymentdomain.PaymentResult
		result, err = s.webhookSvc.HandleReturn(ctx, body)
		setOrderNo(c, result)
	}

	target := s.cfg.PaymentServerURL + "/payment/success"
	if err != nil {
		logger.FromContext(ctx).Warn("payment return rejected", zap.Error(err))
		target = s.cfg.PaymentServerURL + "/payment/failed"
	}
	c.Redirect(http.StatusFound, target)
}

// HandleNewebPayNotify receives server-to-server charge notifications. The
// gateway posts an empty body when a mandate is first created.
func (s *Server) HandleNewebPayNotify(c *gin.Context) {
	body, err := readCallbackBody(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	result, err := s.webhookSvc.HandleNotify(c.Request.Context(), body)
	setOrderNo(c, result)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if result == nil {
		c.Status(http.StatusOK)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Successfully get the notified message and update order well",
	})
}

func (s *Server) PaymentPage(kind pages.Kind) gin.HandlerFunc {
	return func(c *gin.Context) {
		html, err := s.pages.Render(kind)
		if err != nil {
			AbortWithError(c, err)
			return
		}
		c.Data(http.StatusOK, "text/html; charset=utf-8", html)
	}
}

func setOrderNo(c *gin.Context, result *paymentdomain.PaymentResult) {
	if no := result.MerchantOrderNo(); no != "" {
		c.Set("merchant_order_no", no)
	}
}

// readCallbackBody accepts the gateway's urlencoded form as well as a JSON
// object. A body without any field is reported as empty.
func readCallbackBody(c *gin.Context) (paymentdomain.CallbackBody, error) {
	raw, err := io.ReadAll(io.LimitReader(c.Request.Body, maxCallbackBody))
	if err != nil {
		return paymentdomain.CallbackBody{}, ErrInvalidRequest
	}
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return paymentdomain.CallbackBody{Empty: true}, nil
	}

	if strings.HasPrefix(c.ContentType(), "application/json") || raw[0] == '{' {
		var doc map[string]json.RawMessage
		if err := json.Unmarshal(raw, &doc); err != nil {
			return paymentdomain.CallbackBody{}, paymentdomain.ErrInvalidPayload
		}
		body := paymentdomain.CallbackBody{Empty: len(doc) == 0}
		if v, ok := doc["Period"]; ok {
			if err := json.Unmarshal(v, &body.Period); err != nil {
				return paymentdomain.CallbackBody{}, paymentdomain.ErrInvalidPayload
			}
		}
		return body, nil
	}

	form, err := url.ParseQuery(string(raw))
	if err != nil {
		return paymentdomain.CallbackBody{}, paymentdomain.ErrInvalidPayload
	}
	return paymentdomain.CallbackBody{
		Period: form.Get("Period"),
		Empty:  len(form) == 0,
	}, nil
}
