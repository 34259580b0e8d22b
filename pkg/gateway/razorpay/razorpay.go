package razorpay

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"milk-subscription-be/pkg/gateway"

	rzp "github.com/razorpay/razorpay-go"
	"github.com/razorpay/razorpay-go/utils"
)

type Provider struct {
	client         *rzp.Client
	keyId          string
	webhookSecret  string
	checkoutSecret string
}

// NewRazorpayProvider builds the adapter. checkoutSecret defaults to keySecret,
// which is what Razorpay Checkout signs with.
func NewRazorpayProvider(keyId, keySecret, webhookSecret, checkoutSecret string) *Provider {
	if checkoutSecret == "" {
		checkoutSecret = keySecret
	}
	return &Provider{
		client:         rzp.NewClient(keyId, keySecret),
		keyId:          keyId,
		webhookSecret:  webhookSecret,
		checkoutSecret: checkoutSecret,
	}
}

func (p *Provider) Name() string  { return "razorpay" }
func (p *Provider) KeyId() string { return p.keyId }

func (p *Provider) VerifyCheckout(orderId, paymentId, signature string) bool {
	if p.checkoutSecret == "" || signature == "" {
		return false
	}
	return utils.VerifyPaymentSignature(map[string]interface{}{
		"razorpay_order_id":   orderId,
		"razorpay_payment_id": paymentId,
	}, strings.ToLower(signature), p.checkoutSecret)
}

func (p *Provider) FetchPayment(ctx context.Context, paymentId string) (*gateway.Payment, error) {
	body, err := gateway.Do(ctx, func() (map[string]interface{}, error) {
		return p.client.Payment.Fetch(paymentId, nil, nil)
	})
	if err != nil {
		if isNotFound(err) {
			return nil, gateway.ErrPaymentNotFound
		}
		return nil, fmt.Errorf("razorpay fetch payment %s: %w", paymentId, err)
	}
	return PaymentFromEntity(body), nil
}

func (p *Provider) CreateOrder(ctx context.Context, req gateway.OrderRequest) (*gateway.Order, error) {
	notes := make(map[string]interface{}, len(req.Notes))
	for k, v := range req.Notes {
		notes[k] = v
	}
	data := map[string]interface{}{
		"amount":   req.Amount,
		"currency": req.Currency,
		"receipt":  req.Receipt,
		"notes":    notes,
	}

	body, err := gateway.Do(ctx, func() (map[string]interface{}, error) {
		return p.client.Order.Create(data, nil)
	})
	if err != nil {
		return nil, fmt.Errorf("razorpay create order: %w", err)
	}

	return &gateway.Order{
		Id:       stringField(body, "id"),
		Amount:   intField(body, "amount"),
		Currency: stringField(body, "currency"),
	}, nil
}

type webhookBody struct {
	Event   string `json:"event"`
	Payload struct {
		Payment *struct {
			Entity map[string]interface{} `json:"entity"`
		} `json:"payment"`
		Refund *struct {
			Entity map[string]interface{} `json:"entity"`
		} `json:"refund"`
	} `json:"payload"`
}

// ParseWebhook checks X-Razorpay-Signature (hex HMAC-SHA256 of the raw body).
func (p *Provider) ParseWebhook(body []byte, signature string) (*gateway.WebhookEvent, error) {
	if p.webhookSecret == "" || !utils.VerifyWebhookSignature(string(body), signature, p.webhookSecret) {
		return nil, gateway.ErrInvalidSignature
	}

	var wb webhookBody
	if err := json.Unmarshal(body, &wb); err != nil {
		return nil, fmt.Errorf("decode razorpay webhook: %w", err)
	}

	evt := &gateway.WebhookEvent{Kind: gateway.WebhookIgnored, RawStatus: wb.Event}
	if wb.Payload.Payment != nil {
		evt.PaymentId = stringField(wb.Payload.Payment.Entity, "id")
		evt.OrderId = stringField(wb.Payload.Payment.Entity, "order_id")
	}

	switch wb.Event {
	case "payment.captured":
		evt.Kind = gateway.WebhookPaymentCaptured
	case "payment.failed":
		evt.Kind = gateway.WebhookPaymentFailed
	case "refund.created", "refund.processed":
		evt.Kind = gateway.WebhookPaymentRefunded
		if wb.Payload.Refund != nil && evt.PaymentId == "" {
			evt.PaymentId = stringField(wb.Payload.Refund.Entity, "payment_id")
		}
	}
	return evt, nil
}

// PaymentFromEntity maps a Razorpay payment entity to a gateway.Payment.
func PaymentFromEntity(body map[string]interface{}) *gateway.Payment {
	return &gateway.Payment{
		Id:       stringField(body, "id"),
		OrderId:  stringField(body, "order_id"),
		Status:   gateway.PaymentStatus(stringField(body, "status")),
		Amount:   intField(body, "amount"),
		Currency: stringField(body, "currency"),
	}
}

func isNotFound(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "does not exist") || strings.Contains(msg, "not found")
}

func stringField(m map[string]interface{}, key string) string {
	if m == nil {
		return ""
	}
	if s, ok := m[key].(string); ok {
		return s
	}
	return ""
}

// intField reads a JSON number; the SDK decodes into interface{} so numbers arrive as float64.
func intField(m map[string]interface{}, key string) int64 {
	if m == nil {
		return 0
	}
	switch v := m[key].(type) {
	case float64:
		return int64(v)
	case int64:
		return v
	case int:
		return int64(v)
	case json.Number:
		n, _ := v.Int64()
		return n
	}
	return 0
}
