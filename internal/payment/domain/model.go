package domain

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

const (
	RespondTypeJSON = "JSON"

	StatusSuccess = "SUCCESS"

	AlterTypeTerminate = "terminate"
	AlterStatusVersion = "1.0"

	DefaultLangType = "zh-Tw"
)

// Field is one key/value pair of a gateway payload, in wire order.
type Field struct {
	Key   string
	Value string
}

// Record is a payload whose fields must be serialized in a fixed order.
type Record interface {
	Fields() []Field
}

// Fields is a literal Record.
type Fields []Field

func (f Fields) Fields() []Field { return f }

// PeriodPaymentOrder is the periodic-payment mandate sent to the gateway.
type PeriodPaymentOrder struct {
	RespondType     string `json:"RespondType"`
	TimeStamp       int64  `json:"TimeStamp"`
	Version         string `json:"Version"`
	LangType        string `json:"LangType,omitempty"`
	MerOrderNo      string `json:"MerOrderNo"`
	ProdDesc        string `json:"ProdDesc"`
	PeriodType      string `json:"PeriodType"`
	PeriodAmt       int    `json:"PeriodAmt"`
	PeriodPoint     string `json:"PeriodPoint"`
	PeriodStartType int    `json:"PeriodStartType"`
	PeriodTimes     int    `json:"PeriodTimes"`
	OrderInfo       string `json:"OrderInfo"`
	PaymentInfo     string `json:"PaymentInfo"`
	PayerEmail      string `json:"PayerEmail"`
	EmailModify     int    `json:"EmailModify"`
	NotifyURL       string `json:"NotifyURL"`
	ReturnURL       string `json:"ReturnURL"`
}

func (o PeriodPaymentOrder) Fields() []Field {
	fields := []Field{
		{"RespondType", o.RespondType},
		{"TimeStamp", strconv.FormatInt(o.TimeStamp, 10)},
		{"Version", o.Version},
	}
	if o.LangType != "" {
		fields = append(fields, Field{"LangType", o.LangType})
	}
	return append(fields,
		Field{"MerOrderNo", o.MerOrderNo},
		Field{"ProdDesc", o.ProdDesc},
		Field{"PeriodType", o.PeriodType},
		Field{"PeriodAmt", strconv.Itoa(o.PeriodAmt)},
		Field{"PeriodPoint", o.PeriodPoint},
		Field{"PeriodStartType", strconv.Itoa(o.PeriodStartType)},
		Field{"PeriodTimes", strconv.Itoa(o.PeriodTimes)},
		Field{"OrderInfo", o.OrderInfo},
		Field{"PaymentInfo", o.PaymentInfo},
		Field{"PayerEmail", o.PayerEmail},
		Field{"EmailModify", strconv.Itoa(o.EmailModify)},
		Field{"NotifyURL", o.NotifyURL},
		Field{"ReturnURL", o.ReturnURL},
	)
}

// UnsubscribePayload terminates a mandate previously created by MerOrderNo.
type UnsubscribePayload struct {
	RespondType string `json:"RespondType"`
	TimeStamp   int64  `json:"TimeStamp"`
	Version     string `json:"Version"`
	MerOrderNo  string `json:"MerOrderNo"`
	PeriodNo    string `json:"PeriodNo"`
	AlterType   string `json:"AlterType"`
}

func (u UnsubscribePayload) Fields() []Field {
	return []Field{
		{"RespondType", u.RespondType},
		{"TimeStamp", strconv.FormatInt(u.TimeStamp, 10)},
		{"Version", u.Version},
		{"MerOrderNo", u.MerOrderNo},
		{"PeriodNo", u.PeriodNo},
		{"AlterType", u.AlterType},
	}
}

// PaymentResult is the decrypted envelope the gateway posts to the return
// and notify callbacks. Raw holds the full decoded document.
type PaymentResult struct {
	Status  FlexString   `json:"Status"`
	Message FlexString   `json:"Message"`
	Result  *TradeResult `json:"-"`

	Raw json.RawMessage `json:"-"`
}

// TradeResult covers both the first-charge (return) and the recurring-charge
// (notify) result shapes.
type TradeResult struct {
	MerchantID      FlexString `json:"MerchantID"`
	MerchantOrderNo FlexString `json:"MerchantOrderNo"`
	OrderNo         FlexString `json:"OrderNo"`
	PeriodType      FlexString `json:"PeriodType"`
	PeriodNo        FlexString `json:"PeriodNo"`
	TradeNo         FlexString `json:"TradeNo"`
	AuthTimes       FlexString `json:"AuthTimes"`
	TotalTimes      FlexString `json:"TotalTimes"`
	AlreadyTimes    FlexString `json:"AlreadyTimes"`
	DateArray       FlexString `json:"DateArray"`
	PeriodAmt       FlexString `json:"PeriodAmt"`
	AuthAmt         FlexString `json:"AuthAmt"`
	AuthCode        FlexString `json:"AuthCode"`
	RespondCode     FlexString `json:"RespondCode"`
	AuthTime        FlexString `json:"AuthTime"`
	AuthDate        FlexString `json:"AuthDate"`
	NextAuthDate    FlexString `json:"NextAuthDate"`
	CardNo          FlexString `json:"CardNo"`
	EscrowBank      FlexString `json:"EscrowBank"`
	AuthBank        FlexString `json:"AuthBank"`
	PaymentMethod   FlexString `json:"PaymentMethod"`
}

type paymentResultWire struct {
	Status  FlexString      `json:"Status"`
	Message FlexString      `json:"Message"`
	Result  json.RawMessage `json:"Result"`
}

// ParsePaymentResult decodes a decrypted gateway document. It fails with
// ErrInvalidPayload when Status, Result or Result.MerchantOrderNo is absent.
func ParsePaymentResult(raw json.RawMessage) (*PaymentResult, error) {
	var wire paymentResultWire
	if err := json.Unmarshal(raw, &wire); err != nil {
		return nil, ErrInvalidPayload
	}

	out := &PaymentResult{
		Status:  wire.Status,
		Message: wire.Message,
		Raw:     raw,
	}

	body := bytes.TrimSpace(wire.Result)
	if len(body) > 0 && body[0] == '{' {
		var result TradeResult
		if err := json.Unmarshal(body, &result); err != nil {
			return nil, ErrInvalidPayload
		}
		out.Result = &result
	}

	if out.Result == nil || out.Status == "" || out.Result.MerchantOrderNo == "" {
		return out, ErrInvalidPayload
	}
	return out, nil
}

// Succeeded reports whether the gateway marked the charge as successful.
func (p *PaymentResult) Succeeded() bool {
	return p != nil && string(p.Status) == StatusSuccess
}

// MerchantOrderNo returns the echoed merchant order number, if any.
func (p *PaymentResult) MerchantOrderNo() string {
	if p == nil || p.Result == nil {
		return ""
	}
	return string(p.Result.MerchantOrderNo)
}

// AlterStatusResult is the decrypted AlterStatus response.
type AlterStatusResult struct {
	Status  FlexString `json:"Status"`
	Message FlexString `json:"Message"`
	Result  struct {
		MerOrderNo FlexString `json:"MerOrderNo"`
		PeriodNo   FlexString `json:"PeriodNo"`
		AlterType  FlexString `json:"AlterType"`
	} `json:"Result"`
}

// FlexString accepts a JSON string, number or boolean. The gateway is not
// consistent about quoting numeric fields.
type FlexString string

func (f *FlexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		*f = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = FlexString(s)
		return nil
	}
	if data[0] == '{' || data[0] == '[' {
		*f = ""
		return nil
	}
	*f = FlexString(strings.TrimSpace(string(data)))
	return nil
}

func (f FlexString) String() string { return string(f) }
