package builder

import (
	"errors"
	"strconv"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/periodpay/internal/clock"
	"github.com/smallbiznis/periodpay/internal/config"
	"github.com/smallbiznis/periodpay/internal/payment/domain"
	"go.uber.org/fx"
)

var ErrMissingOrderRef = errors.New("missing_order_reference")

const orderNumberPrefix = "order_"

type Params struct {
	fx.In

	Cfg      config.Config
	Settings config.SettingsSource
	Clock    clock.Clock
}

// Builder assembles gateway payloads. It performs no I/O.
type Builder struct {
	cfg      config.Config
	settings config.SettingsSource
	clock    clock.Clock
	node     *snowflake.Node
}

func New(p Params) (*Builder, error) {
	b := &Builder{
		cfg:      p.Cfg,
		settings: p.Settings,
		clock:    p.Clock,
	}
	if p.Cfg.OrderNumberScheme == config.OrderNumberSnowflake {
		node, err := snowflake.NewNode(p.Cfg.SnowflakeNodeID)
		if err != nil {
			return nil, err
		}
		b.node = node
	}
	return b, nil
}

// NewOrder builds the periodic-payment mandate for the given payer.
func (b *Builder) NewOrder(identity domain.Identity) domain.PeriodPaymentOrder {
	ts := b.clock.Now().UnixMilli()
	settings := b.settings.Current()

	langType := strings.TrimSpace(settings.LangType)
	if langType == "" {
		langType = domain.DefaultLangType
	}

	return domain.PeriodPaymentOrder{
		RespondType:     domain.RespondTypeJSON,
		TimeStamp:       ts,
		Version:         b.cfg.Gateway.Version,
		LangType:        langType,
		MerOrderNo:      b.orderNumber(ts),
		ProdDesc:        settings.ProductDesc,
		PeriodType:      settings.PeriodType,
		PeriodAmt:       settings.PeriodAmt,
		PeriodPoint:     settings.PeriodPoint,
		PeriodStartType: settings.PeriodStartType,
		PeriodTimes:     settings.PeriodTimes,
		OrderInfo:       yesNo(settings.WithOrderInfo),
		PaymentInfo:     yesNo(settings.WithPaymentInfo),
		PayerEmail:      identity.Email,
		EmailModify:     emailModify(settings.CanModifyEmail),
		NotifyURL:       b.cfg.PaymentServerURL + "/newebpay_notify",
		ReturnURL:       b.cfg.PaymentServerURL + "/newebpay_return",
	}
}

// NewUnsubscribe builds the termination request for a previously created
// mandate.
func (b *Builder) NewUnsubscribe(order domain.UserOrder) (domain.UnsubscribePayload, error) {
	if strings.TrimSpace(order.MerchantOrderNo) == "" {
		return domain.UnsubscribePayload{}, ErrMissingOrderRef
	}
	return domain.UnsubscribePayload{
		RespondType: domain.RespondTypeJSON,
		TimeStamp:   b.clock.Now().UnixMilli(),
		Version:     domain.AlterStatusVersion,
		MerOrderNo:  order.MerchantOrderNo,
		PeriodNo:    order.PeriodNo,
		AlterType:   domain.AlterTypeTerminate,
	}, nil
}

func (b *Builder) orderNumber(ts int64) string {
	if b.node != nil {
		return orderNumberPrefix + b.node.Generate().String()
	}
	return orderNumberPrefix + strconv.FormatInt(ts, 10)
}

func yesNo(v bool) string {
	if v {
		return "Y"
	}
	return "N"
}

// emailModify maps the settings flag to the gateway's 1 (editable) / 2
// (locked) convention.
func emailModify(canModify bool) int {
	if canModify {
		return 1
	}
	return 2
}
