// Package paymenttest holds testify mocks and fixtures shared by the
// payment tests.
package paymenttest

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/smallbiznis/periodpay/internal/payment/adapters/newebpay"
	"github.com/smallbiznis/periodpay/internal/payment/domain"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const (
	HashKey = "12345678901234567890123456789012"
	HashIV  = "1234567890123456"
)

type OrderClientMock struct {
	mock.Mock
}

func (m *OrderClientMock) CreateOrder(ctx context.Context, merchantOrderNo string, rawOrder any, userID string) error {
	args := m.Called(ctx, merchantOrderNo, rawOrder, userID)
	return args.Error(0)
}

func (m *OrderClientMock) UpdateOrder(ctx context.Context, merchantOrderNo string, paymentResult json.RawMessage, isSuccess bool) error {
	args := m.Called(ctx, merchantOrderNo, paymentResult, isSuccess)
	return args.Error(0)
}

func (m *OrderClientMock) CancelOrder(ctx context.Context, merchantOrderNo string, authHeader string) error {
	args := m.Called(ctx, merchantOrderNo, authHeader)
	return args.Error(0)
}

func (m *OrderClientMock) GetUserWithOrders(ctx context.Context, authHeader string) (*domain.UserWithOrder, error) {
	args := m.Called(ctx, authHeader)
	user, _ := args.Get(0).(*domain.UserWithOrder)
	return user, args.Error(1)
}

type GatewayMock struct {
	mock.Mock
}

func (m *GatewayMock) URL() string        { return "https://ccore.newebpay.com/MPG/period" }
func (m *GatewayMock) MerchantID() string { return "MS151500175" }

func (m *GatewayMock) AlterStatus(ctx context.Context, postData string) (json.RawMessage, error) {
	args := m.Called(ctx, postData)
	raw, _ := args.Get(0).(json.RawMessage)
	return raw, args.Error(1)
}

// Codec returns a codec keyed with the shared test credentials.
func Codec(t testing.TB) *newebpay.Codec {
	t.Helper()
	c, err := newebpay.NewCodec(HashKey, HashIV)
	require.NoError(t, err)
	return c
}

// Seal encrypts a JSON document the way the gateway does: space padded to
// the block size, no PKCS#7 block.
func Seal(t testing.TB, c *newebpay.Codec, doc string) string {
	t.Helper()
	b := []byte(doc)
	for len(b)%16 != 0 {
		b = append(b, ' ')
	}
	ciphertext, err := c.EncryptPlaintext(string(b))
	require.NoError(t, err)
	return ciphertext[:len(ciphertext)-32]
}

// SuccessResult is a first-charge callback document for order_1709223492849.
const SuccessResult = `{"Status":"SUCCESS","Message":"ok","Result":{"MerchantID":"MS151500175","MerchantOrderNo":"order_1709223492849","PeriodType":"M","AuthTimes":"12","PeriodAmt":"100","PeriodNo":"P24030100183444lssu","TradeNo":"24030100183423041","RespondCode":"00"}}`
