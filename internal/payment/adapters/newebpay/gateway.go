package newebpay

import (
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
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var ErrGateway = errors.New("gateway_error")

type Params struct {
	fx.In

	Cfg   config.Config
	Log   *zap.Logger
	Codec *Codec
}

// Gateway calls the NewebPay period API.
type Gateway struct {
	baseURL    string
	merchantID string
	codec      *Codec
	client     *http.Client
	log        *zap.Logger
}

func NewGateway(p Params) *Gateway {
	return &Gateway{
		baseURL:    strings.TrimRight(p.Cfg.Gateway.URL, "/"),
		merchantID: p.Cfg.Gateway.MerchantID,
		codec:      p.Codec,
		client:     obstracing.WrapHTTPClient(&http.Client{Timeout: p.Cfg.HTTPClientTimeout}),
		log:        p.Log.Named("payment.newebpay"),
	}
}

// NewCodecFromConfig builds the codec from the merchant credentials.
func NewCodecFromConfig(cfg config.Config) (*Codec, error) {
	return NewCodec(cfg.Gateway.HashKey, cfg.Gateway.HashIV)
}

func (g *Gateway) URL() string        { return g.baseURL }
func (g *Gateway) MerchantID() string { return g.merchantID }

type alterStatusResponse struct {
	Period string `json:"period"`
}

// AlterStatus posts an encrypted alteration request and returns the
// decrypted result document.
func (g *Gateway) AlterStatus(ctx context.Context, postData string) (json.RawMessage, error) {
	form := url.Values{}
	form.Set("MerchantID_", g.merchantID)
	form.Set("PostData_", postData)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/AlterStatus", strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		g.log.Warn("alter status request failed", zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrGateway, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGateway, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		g.log.Warn("alter status rejected",
			zap.Int("status_code", resp.StatusCode),
			zap.String("trade_sha", g.codec.TradeSha(postData)),
		)
		return nil, fmt.Errorf("%w: status %d", ErrGateway, resp.StatusCode)
	}

	var payload alterStatusResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGateway, err)
	}
	if strings.TrimSpace(payload.Period) == "" {
		return nil, fmt.Errorf("%w: response carries no period", ErrGateway)
	}
	raw, err := g.codec.Decrypt(payload.Period)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGateway, err)
	}
	return raw, nil
}
