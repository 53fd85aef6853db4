// internal/services/payment_service.go
package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stripe/stripe-go/v74"
	"github.com/stripe/stripe-go/v74/paymentintent"
	"github.com/stripe/stripe-go/v74/refund"

	"github.com/gitsubas/blingblingstore-sub000/internal/config"
	"github.com/gitsubas/blingblingstore-sub000/internal/models"
	"github.com/gitsubas/blingblingstore-sub000/internal/utils"
)

// ChargeRequest describes a single payment for an order.
type ChargeRequest struct {
	OrderID      string
	OrderNumber  string
	Amount       decimal.Decimal
	Currency     string
	Method       models.PaymentMethod
	PaymentToken string
}

type ChargeResult struct {
	Reference string
	Status    models.PaymentStatus
}

type PaymentGateway interface {
	Name() string
	Charge(ctx context.Context, req ChargeRequest) (*ChargeResult, error)
	Refund(ctx context.Context, reference string, amount decimal.Decimal) error
}

type PaymentService struct {
	gateway  PaymentGateway
	currency string
}

func NewPaymentService(cfg *config.Config) *PaymentService {
	var gateway PaymentGateway = &MockGateway{}
	if cfg.Payment.StripeSecretKey != "" {
		gateway = NewStripeGateway(cfg.Payment.StripeSecretKey)
	}

	logrus.WithField("gateway", gateway.Name()).Info("Payment gateway configured")
	return NewPaymentServiceWithGateway(gateway, cfg.Payment.Currency)
}

func NewPaymentServiceWithGateway(gateway PaymentGateway, currency string) *PaymentService {
	if currency == "" {
		currency = "usd"
	}
	return &PaymentService{gateway: gateway, currency: currency}
}

// ChargeOrder collects payment for a freshly placed order. COD orders are
// collected on delivery and never touch the gateway.
func (s *PaymentService) ChargeOrder(ctx context.Context, order *models.Order, token string) (*ChargeResult, error) {
	if order.PaymentMethod == models.PaymentMethodCOD {
		return &ChargeResult{Status: models.PaymentStatusPending}, nil
	}

	result, err := s.gateway.Charge(ctx, ChargeRequest{
		OrderID:      order.ID.String(),
		OrderNumber:  order.OrderNumber,
		Amount:       order.Total,
		Currency:     s.currency,
		Method:       order.PaymentMethod,
		PaymentToken: token,
	})
	if err != nil {
		return nil, fmt.Errorf("charge via %s: %w", s.gateway.Name(), err)
	}
	return result, nil
}

// RefundOrder returns the full order amount. Orders without a gateway
// reference have nothing to refund.
func (s *PaymentService) RefundOrder(ctx context.Context, order *models.Order) error {
	if order.PaymentReference == "" {
		return nil
	}
	if err := s.gateway.Refund(ctx, order.PaymentReference, order.Total); err != nil {
		return fmt.Errorf("refund via %s: %w", s.gateway.Name(), err)
	}
	return nil
}

// MockGateway approves every charge except the "tok_declined" test token.
type MockGateway struct{}

const MockDeclinedToken = "tok_declined"

func (g *MockGateway) Name() string { return "mock" }

func (g *MockGateway) Charge(ctx context.Context, req ChargeRequest) (*ChargeResult, error) {
	if req.PaymentToken == MockDeclinedToken {
		return nil, ErrPaymentDeclined
	}

	suffix, err := utils.GenerateRandomString(16)
	if err != nil {
		return nil, err
	}
	return &ChargeResult{
		Reference: "mock_" + strings.ToLower(string(req.Method)) + "_" + suffix,
		Status:    models.PaymentStatusPaid,
	}, nil
}

func (g *MockGateway) Refund(ctx context.Context, reference string, amount decimal.Decimal) error {
	logrus.WithFields(logrus.Fields{
		"reference": reference,
		"amount":    amount.StringFixed(2),
	}).Info("Mock refund issued")
	return nil
}

// StripeGateway confirms a PaymentIntent immediately with the token sent by
// the storefront.
type StripeGateway struct{}

func NewStripeGateway(secretKey string) *StripeGateway {
	stripe.Key = secretKey
	return &StripeGateway{}
}

func (g *StripeGateway) Name() string { return "stripe" }

func (g *StripeGateway) Charge(ctx context.Context, req ChargeRequest) (*ChargeResult, error) {
	if req.PaymentToken == "" {
		return nil, fmt.Errorf("%w: missing payment token", ErrPaymentDeclined)
	}

	params := &stripe.PaymentIntentParams{
		Amount:             stripe.Int64(toMinorUnits(req.Amount)),
		Currency:           stripe.String(req.Currency),
		PaymentMethod:      stripe.String(req.PaymentToken),
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		Confirm:            stripe.Bool(true),
		Description:        stripe.String("Order " + req.OrderNumber),
	}
	params.Context = ctx
	params.AddMetadata("order_id", req.OrderID)
	params.AddMetadata("order_number", req.OrderNumber)

	pi, err := paymentintent.New(params)
	if err != nil {
		return nil, fmt.Errorf("failed to create payment intent: %w", err)
	}

	switch pi.Status {
	case stripe.PaymentIntentStatusSucceeded:
		return &ChargeResult{Reference: pi.ID, Status: models.PaymentStatusPaid}, nil
	case stripe.PaymentIntentStatusProcessing, stripe.PaymentIntentStatusRequiresAction:
		return &ChargeResult{Reference: pi.ID, Status: models.PaymentStatusPending}, nil
	default:
		return nil, fmt.Errorf("%w: payment intent %s is %s", ErrPaymentDeclined, pi.ID, pi.Status)
	}
}

func (g *StripeGateway) Refund(ctx context.Context, reference string, amount decimal.Decimal) error {
	params := &stripe.RefundParams{
		PaymentIntent: stripe.String(reference),
		Amount:        stripe.Int64(toMinorUnits(amount)),
		Reason:        stripe.String(string(stripe.RefundReasonRequestedByCustomer)),
	}
	params.Context = ctx

	if _, err := refund.New(params); err != nil {
		return fmt.Errorf("failed to process refund: %w", err)
	}
	return nil
}

func toMinorUnits(amount decimal.Decimal) int64 {
	return amount.Shift(2).Round(0).IntPart()
}
