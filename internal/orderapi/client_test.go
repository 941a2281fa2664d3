package orderapi

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/smallbiznis/periodpay/internal/config"
	"github.com/smallbiznis/periodpay/internal/payment/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type recorded struct {
	method string
	path   string
	query  string
	auth   string
	body   string
}

func newTestClient(t *testing.T, status int, response string) (*Client, *recorded) {
	t.Helper()
	rec := &recorded{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		rec.method = r.Method
		rec.path = r.URL.Path
		rec.query = r.URL.RawQuery
		rec.auth = r.Header.Get("Authorization")
		rec.body = string(body)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(response))
	}))
	t.Cleanup(srv.Close)

	c := NewClient(Params{
		Cfg: config.Config{OrderServiceURL: srv.URL + "/", HTTPClientTimeout: time.Second},
		Log: zaptest.NewLogger(t),
	})
	return c, rec
}

func TestCreateOrder(t *testing.T) {
	c, rec := newTestClient(t, http.StatusCreated, `{"id":"1"}`)

	order := domain.PeriodPaymentOrder{MerOrderNo: "order_1", PeriodAmt: 100}
	require.NoError(t, c.CreateOrder(context.Background(), "order_1", order, "user-1"))

	assert.Equal(t, http.MethodPost, rec.method)
	assert.Equal(t, "/order", rec.path)

	var body map[string]json.RawMessage
	require.NoError(t, json.Unmarshal([]byte(rec.body), &body))
	assert.JSONEq(t, `"order_1"`, string(body["merchant_order_no"]))
	assert.JSONEq(t, `"user-1"`, string(body["user_id"]))
	assert.Contains(t, string(body["raw_order"]), `"PeriodAmt":100`)
}

func TestUpdateOrder(t *testing.T) {
	c, rec := newTestClient(t, http.StatusOK, `{}`)

	result := json.RawMessage(`{"Status":"SUCCESS","Result":{"MerchantOrderNo":"order_1"}}`)
	require.NoError(t, c.UpdateOrder(context.Background(), "order_1", result, true))

	assert.Equal(t, http.MethodPut, rec.method)
	assert.Equal(t, "/orders/order_1", rec.path)
	assert.JSONEq(t, `{"payment_result":{"Status":"SUCCESS","Result":{"MerchantOrderNo":"order_1"}},"is_success":true}`, rec.body)
}

func TestCancelOrderForwardsAuthorization(t *testing.T) {
	c, rec := newTestClient(t, http.StatusOK, `{}`)

	require.NoError(t, c.CancelOrder(context.Background(), "order_1", "Bearer abc"))
	assert.Equal(t, http.MethodDelete, rec.method)
	assert.Equal(t, "/orders/order_1", rec.path)
	assert.Equal(t, "Bearer abc", rec.auth)
	assert.Empty(t, rec.body)
}

func TestGetUserWithOrders(t *testing.T) {
	c, rec := newTestClient(t, http.StatusOK, `{
		"id": "user-1",
		"email": "payer@example.com",
		"orders": [
			{"id": "o2", "merchant_order_no": "order_2", "period_no": "P2"},
			{"id": "o1", "merchant_order_no": "order_1", "period_no": "P1"}
		]
	}`)

	user, err := c.GetUserWithOrders(context.Background(), "Bearer abc")
	require.NoError(t, err)

	assert.Equal(t, http.MethodGet, rec.method)
	assert.Equal(t, "/user/order", rec.path)
	assert.Equal(t, "onlySuccess=true", rec.query)
	assert.Equal(t, "Bearer abc", rec.auth)

	latest, ok := user.Latest()
	require.True(t, ok)
	assert.Equal(t, "order_2", latest.MerchantOrderNo)
	assert.Equal(t, "P2", latest.PeriodNo)
}

func TestGetUserWithOrdersMissingUser(t *testing.T) {
	for name, tc := range map[string]struct {
		status int
		body   string
	}{
		"null body": {http.StatusOK, `null`},
		"not found": {http.StatusNotFound, `{"message":"no user"}`},
	} {
		t.Run(name, func(t *testing.T) {
			c, _ := newTestClient(t, tc.status, tc.body)
			_, err := c.GetUserWithOrders(context.Background(), "Bearer abc")
			require.ErrorIs(t, err, domain.ErrUserNotFound)
		})
	}
}

func TestNon2xxIsUpstreamError(t *testing.T) {
	c, _ := newTestClient(t, http.StatusInternalServerError, `{"message":"boom"}`)

	err := c.UpdateOrder(context.Background(), "order_1", json.RawMessage(`{}`), true)
	require.ErrorIs(t, err, ErrUpstream)
}

func TestTransportFailureIsUpstreamError(t *testing.T) {
	c := NewClient(Params{
		Cfg: config.Config{OrderServiceURL: "http://127.0.0.1:1", HTTPClientTimeout: time.Second},
		Log: zaptest.NewLogger(t),
	})
	err := c.CancelOrder(context.Background(), "order_1", "")
	require.ErrorIs(t, err, ErrUpstream)
}
