package orderapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/smallbiznis/periodpay/internal/config"
	obstracing "github.com/smallbiznis/periodpay/internal/observability/tracing"
	"github.com/smallbiznis/periodpay/internal/payment/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var ErrUpstream = errors.New("upstream_error")

var Module = fx.Module("orderapi",
	fx.Provide(
		NewClient,
		func(c *Client) domain.OrderClient { return c },
	),
)

type Params struct {
	fx.In

	Cfg config.Config
	Log *zap.Logger
}

// Client talks to the order service, the system of record for users and
// orders.
type Client struct {
	baseURL string
	client  *http.Client
	log     *zap.Logger
}

func NewClient(p Params) *Client {
	return &Client{
		baseURL: strings.TrimRight(p.Cfg.OrderServiceURL, "/"),
		client:  obstracing.WrapHTTPClient(&http.Client{Timeout: p.Cfg.HTTPClientTimeout}),
		log:     p.Log.Named("orderapi"),
	}
}

type createOrderRequest struct {
	MerchantOrderNo string `json:"merchant_order_no"`
	RawOrder        any    `json:"raw_order"`
	UserID          string `json:"user_id"`
}

type updateOrderRequest struct {
	PaymentResult json.RawMessage `json:"payment_result"`
	IsSuccess     bool            `json:"is_success"`
}

func (c *Client) CreateOrder(ctx context.Context, merchantOrderNo string, rawOrder any, userID string) error {
	body := createOrderRequest{
		MerchantOrderNo: merchantOrderNo,
		RawOrder:        rawOrder,
		UserID:          userID,
	}
	_, err := c.do(ctx, http.MethodPost, "/order", body, "")
	return err
}

func (c *Client) UpdateOrder(ctx context.Context, merchantOrderNo string, paymentResult json.RawMessage, isSuccess bool) error {
	body := updateOrderRequest{
		PaymentResult: paymentResult,
		IsSuccess:     isSuccess,
	}
	_, err := c.do(ctx, http.MethodPut, "/orders/"+url.PathEscape(merchantOrderNo), body, "")
	return err
}

func (c *Client) CancelOrder(ctx context.Context, merchantOrderNo string, authHeader string) error {
	_, err := c.do(ctx, http.MethodDelete, "/orders/"+url.PathEscape(merchantOrderNo), nil, authHeader)
	return err
}

// GetUserWithOrders returns the caller and their successful orders, newest
// first. A missing user yields domain.ErrUserNotFound.
func (c *Client) GetUserWithOrders(ctx context.Context, authHeader string) (*domain.UserWithOrder, error) {
	data, err := c.do(ctx, http.MethodGet, "/user/order?onlySuccess=true", nil, authHeader)
	if err != nil {
		if errors.Is(err, errNotFound) {
			return nil, domain.ErrUserNotFound
		}
		return nil, err
	}

	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil, domain.ErrUserNotFound
	}

	var user domain.UserWithOrder
	if err := json.Unmarshal(data, &user); err != nil {
		return nil, fmt.Errorf("%w: decode user with orders: %v", ErrUpstream, err)
	}
	return &user, nil
}

var errNotFound = fmt.Errorf("%w: not found", ErrUpstream)

func (c *Client) do(ctx context.Context, method, path string, payload any, authHeader string) ([]byte, error) {
	var reader io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}

	log := c.log.With(zap.String("method", method), zap.String("path", path))

	resp, err := c.client.Do(req)
	if err != nil {
		log.Error("order service request failed", zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}

	if resp.StatusCode == http.StatusNotFound {
		log.Warn("order service returned not found")
		return nil, errNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		log.Error("order service returned error",
			zap.Int("status_code", resp.StatusCode),
			zap.ByteString("body", truncate(data, 512)),
		)
		return nil, fmt.Errorf("%w: status %d", ErrUpstream, resp.StatusCode)
	}
	log.Debug("order service request complete", zap.Int("status_code", resp.StatusCode))
	return data, nil
}

func truncate(b []byte, n int) []byte {
	if len(b) <= n {
		return b
	}
	return b[:n]
}
