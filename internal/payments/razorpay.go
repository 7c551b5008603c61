package payments

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"pitchside/pkg/client"
	"pitchside/pkg/config"
	apperrors "pitchside/pkg/errors"
)

type razorpayGateway struct {
	httpClient *client.HttpClient
	keySecret  string
}

// NewRazorpayGateway builds a Gateway over the provider's REST API,
// authenticated with key-id/key-secret basic auth.
func NewRazorpayGateway(cfg *config.Config) Gateway {
	httpClient := client.NewHttpClient(cfg.GatewayBaseURL).
		WithBasicAuth(cfg.GatewayKeyID, cfg.GatewayKeySecret).
		WithTimeout(cfg.GatewayTimeout)

	return &razorpayGateway{
		httpClient: httpClient,
		keySecret:  cfg.GatewayKeySecret,
	}
}

func (g *razorpayGateway) CreateOrder(ctx context.Context, amount int64, currency, receipt string) (*Order, error) {
	body := map[string]any{
		"amount":   amount,
		"currency": currency,
		"receipt":  receipt,
	}

	resp, err := g.httpClient.POST("/orders", body)
	if err != nil {
		return nil, apperrors.GatewayUnavailable(err)
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, apperrors.GatewayUnavailable(
			fmt.Errorf("create order returned %d: %s", resp.StatusCode, client.GetErrorMessage(resp)))
	}

	var order Order
	if err := resp.DecodeJSON(&order); err != nil {
		return nil, fmt.Errorf("could not decode gateway order: %w", err)
	}
	if order.ID == "" {
		return nil, fmt.Errorf("gateway returned an order without an id")
	}

	return &order, nil
}

func (g *razorpayGateway) GetOrder(ctx context.Context, orderID string) (*Order, error) {
	resp, err := g.httpClient.GET("/orders/" + url.PathEscape(orderID))
	if err != nil {
		return nil, apperrors.GatewayUnavailable(err)
	}
	if resp.StatusCode == http.StatusNotFound {
		return nil, apperrors.NotFoundWithID("Gateway order", orderID)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, apperrors.GatewayUnavailable(
			fmt.Errorf("get order returned %d: %s", resp.StatusCode, client.GetErrorMessage(resp)))
	}

	var order Order
	if err := resp.DecodeJSON(&order); err != nil {
		return nil, fmt.Errorf("could not decode gateway order: %w", err)
	}

	return &order, nil
}

func (g *razorpayGateway) GetPayment(ctx context.Context, paymentID string) (*Payment, error) {
	resp, err := g.httpClient.GET("/payments/" + url.PathEscape(paymentID))
	if err != nil {
		return nil, apperrors.GatewayUnavailable(err)
	}
	if resp.StatusCode == http.StatusNotFound {
		return nil, apperrors.NotFoundWithID("Gateway payment", paymentID)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, apperrors.GatewayUnavailable(
			fmt.Errorf("get payment returned %d: %s", resp.StatusCode, client.GetErrorMessage(resp)))
	}

	var payment Payment
	if err := resp.DecodeJSON(&payment); err != nil {
		return nil, fmt.Errorf("could not decode gateway payment: %w", err)
	}

	return &payment, nil
}

func (g *razorpayGateway) ListOrderPayments(ctx context.Context, orderID string) ([]*Payment, error) {
	resp, err := g.httpClient.GET("/orders/" + url.PathEscape(orderID) + "/payments")
	if err != nil {
		return nil, apperrors.GatewayUnavailable(err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, apperrors.GatewayUnavailable(
			fmt.Errorf("list order payments returned %d: %s", resp.StatusCode, client.GetErrorMessage(resp)))
	}

	var list struct {
		Count int        `json:"count"`
		Items []*Payment `json:"items"`
	}
	if err := resp.DecodeJSON(&list); err != nil {
		return nil, fmt.Errorf("could not decode gateway payment list: %w", err)
	}

	return list.Items, nil
}

func (g *razorpayGateway) CreateRefund(ctx context.Context, paymentID string, amount int64) (*Refund, error) {
	body := map[string]any{"amount": amount}

	resp, err := g.httpClient.POST("/payments/"+url.PathEscape(paymentID)+"/refund", body)
	if err != nil {
		return nil, apperrors.GatewayUnavailable(err)
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, apperrors.GatewayUnavailable(
			fmt.Errorf("create refund returned %d: %s", resp.StatusCode, client.GetErrorMessage(resp)))
	}

	var refund Refund
	if err := resp.DecodeJSON(&refund); err != nil {
		return nil, fmt.Errorf("could not decode gateway refund: %w", err)
	}
	if refund.ID == "" {
		return nil, fmt.Errorf("gateway returned a refund without an id")
	}

	return &refund, nil
}

func (g *razorpayGateway) GetRefund(ctx context.Context, refundID string) (*Refund, error) {
	resp, err := g.httpClient.GET("/refunds/" + url.PathEscape(refundID))
	if err != nil {
		return nil, apperrors.GatewayUnavailable(err)
	}
	if resp.StatusCode == http.StatusNotFound {
		return nil, apperrors.NotFoundWithID("Gateway refund", refundID)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, apperrors.GatewayUnavailable(
			fmt.Errorf("get refund returned %d: %s", resp.StatusCode, client.GetErrorMessage(resp)))
	}

	var refund Refund
	if err := resp.DecodeJSON(&refund); err != nil {
		return nil, fmt.Errorf("could not decode gateway refund: %w", err)
	}

	return &refund, nil
}

func (g *razorpayGateway) VerifySignature(orderID, paymentID, signature string) bool {
	return verifyCheckoutSignature(orderID, paymentID, signature, g.keySecret)
}

// CheckPaid maps the order status to the tri-state. A definitive order
// fetch answers Paid or NotPaid. Any transport failure or unexpected
// response collapses to Unknown so sweeps cannot release paid slots.
func (g *razorpayGateway) CheckPaid(ctx context.Context, orderID string) (PaidState, error) {
	resp, err := g.httpClient.GET("/orders/" + url.PathEscape(orderID))
	if err != nil {
		return Unknown, apperrors.GatewayUnavailable(err)
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		var order Order
		if err := resp.DecodeJSON(&order); err != nil {
			return Unknown, fmt.Errorf("could not decode gateway order: %w", err)
		}
		if order.Status == OrderStatusPaid || order.AmountPaid > 0 {
			return Paid, nil
		}
		return NotPaid, nil

	case resp.StatusCode == http.StatusNotFound:
		// The gateway never saw this order, so nothing was captured.
		return NotPaid, nil

	default:
		return Unknown, apperrors.GatewayUnavailable(
			fmt.Errorf("check paid returned %d: %s", resp.StatusCode, client.GetErrorMessage(resp)))
	}
}
