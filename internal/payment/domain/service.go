package domain

import (
	"context"
	"encoding/json"
	"errors"
)

// Identity is the caller identity carried by the bearer token.
type Identity struct {
	UserID    string `json:"userId"`
	Username  string `json:"username"`
	Email     string `json:"email"`
	Locale    string `json:"locale"`
	AvatarURI string `json:"avatar_uri"`
}

// UserWithOrder is the order service's view of a user and their orders,
// newest first.
type UserWithOrder struct {
	ID                    string      `json:"id"`
	Email                 string      `json:"email"`
	Username              string      `json:"username"`
	AvatarURI             string      `json:"avatar_uri"`
	FreeTriedCount        int         `json:"free_tried_count"`
	IsPaid                bool        `json:"is_paid"`
	AvailablePredictCount int         `json:"available_predict_count"`
	IsDeleted             bool        `json:"is_deleted"`
	CreatedAt             string      `json:"created_at"`
	UpdatedAt             string      `json:"updated_at"`
	Orders                []UserOrder `json:"orders"`
}

type UserOrder struct {
	ID              string          `json:"id"`
	UserID          string          `json:"user_id"`
	MerchantOrderNo string          `json:"merchant_order_no"`
	PeriodNo        string          `json:"period_no"`
	IsCanceled      bool            `json:"is_canceled"`
	IsDeleted       bool            `json:"is_deleted"`
	CreatedAt       string          `json:"created_at"`
	RawOrder        json.RawMessage `json:"raw_order,omitempty"`
	PaymentResults  json.RawMessage `json:"payment_results,omitempty"`
}

// Latest returns the most recent order, or false when there is none.
func (u *UserWithOrder) Latest() (UserOrder, bool) {
	if u == nil || len(u.Orders) == 0 {
		return UserOrder{}, false
	}
	return u.Orders[0], true
}

// CheckoutResponse is handed to the browser so it can post to the gateway.
type CheckoutResponse struct {
	PayGatewayURL string `json:"PayGatewayUrl"`
	MerchantID    string `json:"MerchantID"`
	PostData      string `json:"PostData"`
}

// CallbackBody is the gateway's callback form. Empty reports whether the
// request carried no fields at all.
type CallbackBody struct {
	Period string
	Empty  bool
}

// OrderClient is the order service as seen by this relay.
type OrderClient interface {
	CreateOrder(ctx context.Context, merchantOrderNo string, rawOrder any, userID string) error
	UpdateOrder(ctx context.Context, merchantOrderNo string, paymentResult json.RawMessage, isSuccess bool) error
	CancelOrder(ctx context.Context, merchantOrderNo string, authHeader string) error
	GetUserWithOrders(ctx context.Context, authHeader string) (*UserWithOrder, error)
}

// Gateway is the remote NewebPay API used for mandate termination.
type Gateway interface {
	URL() string
	MerchantID() string
	AlterStatus(ctx context.Context, postData string) (json.RawMessage, error)
}

// WebhookService handles gateway callbacks.
type WebhookService interface {
	HandleReturn(ctx context.Context, body CallbackBody) (*PaymentResult, error)
	HandleNotify(ctx context.Context, body CallbackBody) (*PaymentResult, error)
}

// Service covers the browser-initiated flows.
type Service interface {
	CreateOrder(ctx context.Context, identity Identity) (*CheckoutResponse, error)
	Unsubscribe(ctx context.Context, identity Identity, authHeader string) error
}

var (
	ErrEmptyBody           = errors.New("empty_body")
	ErrInvalidPayload      = errors.New("invalid_payload")
	ErrUnsuccessfulPayment = errors.New("unsuccessful_payment")
	ErrUnsubscribeRejected = errors.New("unsubscribe_rejected")
	ErrUserNotFound        = errors.New("user_not_found")
	ErrEmptyOrders         = errors.New("empty_orders")
)

// LookupError reports why the caller's latest order could not be found.
// Its message is shown to the caller as is.
type LookupError struct {
	Err    error
	UserID string
}

func (e *LookupError) Error() string {
	switch {
	case errors.Is(e.Err, ErrEmptyOrders):
		return "Found empty order from user id " + e.UserID
	default:
		return "Cannot find user " + e.UserID + " with its order"
	}
}

func (e *LookupError) Unwrap() error { return e.Err }
