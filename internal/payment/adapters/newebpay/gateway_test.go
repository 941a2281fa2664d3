package newebpay

import (
	"encoding/json"
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

func newTestGateway(t *testing.T, url string) (*Gateway, *Codec) {
	t.Helper()
	codec := newTestCodec(t)
	gw := NewGateway(Params{
		Cfg: config.Config{
			Gateway:           config.GatewayConfig{MerchantID: "MS1", URL: url + "/"},
			HTTPClientTimeout: time.Second,
		},
		Log:   zaptest.NewLogger(t),
		Codec: codec,
	})
	return gw, codec
}

func TestAlterStatusPostsFormAndDecryptsPeriod(t *testing.T) {
	var gotMerchant, gotPostData, gotPath string
	var codec *Codec
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		gotPath = r.URL.Path
		gotMerchant = r.PostForm.Get("MerchantID_")
		gotPostData = r.PostForm.Get("PostData_")

		period := encryptRaw(t, codec, padSpaces(`{"Status":"SUCCESS","Message":"ok","Result":{"MerOrderNo":"order_1","PeriodNo":"P1","AlterType":"terminate"}}`))
		_ = json.NewEncoder(w).Encode(map[string]string{"period": period})
	}))
	defer srv.Close()

	gw, c := newTestGateway(t, srv.URL)
	codec = c
	assert.Equal(t, srv.URL, gw.URL())
	assert.Equal(t, "MS1", gw.MerchantID())

	raw, err := gw.AlterStatus(t.Context(), "deadbeef")
	require.NoError(t, err)

	assert.Equal(t, "/AlterStatus", gotPath)
	assert.Equal(t, "MS1", gotMerchant)
	assert.Equal(t, "deadbeef", gotPostData)

	var result domain.AlterStatusResult
	require.NoError(t, json.Unmarshal(raw, &result))
	assert.Equal(t, "SUCCESS", result.Status.String())
	assert.Equal(t, "P1", result.Result.PeriodNo.String())
}

func TestAlterStatusFailsOnNon2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	gw, _ := newTestGateway(t, srv.URL)
	_, err := gw.AlterStatus(t.Context(), "deadbeef")
	require.ErrorIs(t, err, ErrGateway)
}

func TestAlterStatusFailsWithoutPeriod(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":"MPG03009"}`))
	}))
	defer srv.Close()

	gw, _ := newTestGateway(t, srv.URL)
	_, err := gw.AlterStatus(t.Context(), "deadbeef")
	require.ErrorIs(t, err, ErrGateway)
}

func padSpaces(s string) []byte {
	b := []byte(s)
	for len(b)%16 != 0 {
		b = append(b, ' ')
	}
	return b
}
