package midtrans

import (
	"context"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"strconv"

	"milk-subscription-be/pkg/gateway"

	"github.com/midtrans/midtrans-go"
	"github.com/midtrans/midtrans-go/coreapi"
	"github.com/midtrans/midtrans-go/snap"
)

// Provider talks to Midtrans. Midtrans amounts are whole currency units,
// gateway amounts are minor units, so values are scaled by 100 at this boundary.
type Provider struct {
	core           coreapi.Client
	snap           snap.Client
	serverKey      string
	clientKey      string
	checkoutSecret string
}

// NewMidtransProvider builds the adapter. Snap has no client-side payment signature,
// so the checkout page signs "order_id|transaction_id" with checkoutSecret.
func NewMidtransProvider(serverKey, clientKey, checkoutSecret string, production bool) *Provider {
	env := midtrans.Sandbox
	if production {
		env = midtrans.Production
	}

	p := &Provider{serverKey: serverKey, clientKey: clientKey, checkoutSecret: checkoutSecret}
	p.core.New(serverKey, env)
	p.snap.New(serverKey, env)
	return p
}

func (p *Provider) Name() string  { return "midtrans" }
func (p *Provider) KeyId() string { return p.clientKey }

func (p *Provider) VerifyCheckout(orderId, paymentId, signature string) bool {
	if p.checkoutSecret == "" {
		return false
	}
	return gateway.VerifyHMAC(p.checkoutSecret, gateway.CheckoutPayload(orderId, paymentId), signature)
}

type apiError struct {
	statusCode int
	message    string
}

func (e *apiError) Error() string {
	return fmt.Sprintf("midtrans error (%d): %s", e.statusCode, e.message)
}

func (p *Provider) FetchPayment(ctx context.Context, paymentId string) (*gateway.Payment, error) {
	res, err := gateway.Do(ctx, func() (*coreapi.TransactionStatusResponse, error) {
		r, mErr := p.core.CheckTransaction(paymentId)
		if mErr != nil {
			return nil, &apiError{statusCode: mErr.GetStatusCode(), message: mErr.GetMessage()}
		}
		return r, nil
	})
	if err != nil {
		if ae, ok := err.(*apiError); ok && ae.statusCode == http.StatusNotFound {
			return nil, gateway.ErrPaymentNotFound
		}
		return nil, fmt.Errorf("midtrans check transaction %s: %w", paymentId, err)
	}
	if res.StatusCode == "404" {
		return nil, gateway.ErrPaymentNotFound
	}

	amount, err := toMinorUnits(res.GrossAmount)
	if err != nil {
		return nil, err
	}

	return &gateway.Payment{
		Id:       res.TransactionID,
		OrderId:  res.OrderID,
		Status:   MapStatus(res.TransactionStatus),
		Amount:   amount,
		Currency: res.Currency,
	}, nil
}

func (p *Provider) CreateOrder(ctx context.Context, req gateway.OrderRequest) (*gateway.Order, error) {
	snapReq := &snap.Request{
		TransactionDetails: midtrans.TransactionDetails{
			OrderID:  req.Receipt,
			GrossAmt: req.Amount / 100,
		},
		CreditCard: &snap.CreditCardDetails{
			Secure: true,
		},
		EnabledPayments: snap.AllSnapPaymentType,
	}

	resp, err := gateway.Do(ctx, func() (*snap.Response, error) {
		r, mErr := p.snap.CreateTransaction(snapReq)
		if mErr != nil {
			return nil, &apiError{statusCode: mErr.GetStatusCode(), message: mErr.GetMessage()}
		}
		return r, nil
	})
	if err != nil {
		return nil, fmt.Errorf("midtrans create transaction: %w", err)
	}

	return &gateway.Order{
		Id:          req.Receipt,
		Amount:      req.Amount,
		Currency:    req.Currency,
		Token:       resp.Token,
		RedirectURL: resp.RedirectURL,
	}, nil
}

type notification struct {
	TransactionStatus string `json:"transaction_status"`
	TransactionId     string `json:"transaction_id"`
	OrderId           string `json:"order_id"`
	StatusCode        string `json:"status_code"`
	GrossAmount       string `json:"gross_amount"`
	SignatureKey      string `json:"signature_key"`
}

// ParseWebhook validates signature_key = SHA512(order_id + status_code + gross_amount + server_key).
// Midtrans carries the signature in the body, so the header argument is unused.
func (p *Provider) ParseWebhook(body []byte, _ string) (*gateway.WebhookEvent, error) {
	var n notification
	if err := json.Unmarshal(body, &n); err != nil {
		return nil, fmt.Errorf("decode midtrans notification: %w", err)
	}

	if p.serverKey == "" || !VerifyNotificationSignature(n.OrderId, n.StatusCode, n.GrossAmount, p.serverKey, n.SignatureKey) {
		return nil, gateway.ErrInvalidSignature
	}

	evt := &gateway.WebhookEvent{
		Kind:      gateway.WebhookIgnored,
		PaymentId: n.TransactionId,
		OrderId:   n.OrderId,
		RawStatus: n.TransactionStatus,
	}
	switch MapStatus(n.TransactionStatus) {
	case gateway.StatusCaptured:
		evt.Kind = gateway.WebhookPaymentCaptured
	case gateway.StatusFailed:
		evt.Kind = gateway.WebhookPaymentFailed
	case gateway.StatusRefunded:
		evt.Kind = gateway.WebhookPaymentRefunded
	}
	return evt, nil
}

func NotificationSignature(orderId, statusCode, grossAmount, serverKey string) string {
	sum := sha512.Sum512([]byte(orderId + statusCode + grossAmount + serverKey))
	return fmt.Sprintf("%x", sum)
}

func VerifyNotificationSignature(orderId, statusCode, grossAmount, serverKey, signature string) bool {
	expected := NotificationSignature(orderId, statusCode, grossAmount, serverKey)
	return subtle.ConstantTimeCompare([]byte(expected), []byte(signature)) == 1
}

// MapStatus translates Midtrans transaction_status into gateway statuses.
func MapStatus(status string) gateway.PaymentStatus {
	switch status {
	case "capture", "settlement":
		return gateway.StatusCaptured
	case "authorize":
		return gateway.StatusAuthorized
	case "pending":
		return gateway.StatusPending
	case "refund", "partial_refund":
		return gateway.StatusRefunded
	case "deny", "cancel", "expire", "failure":
		return gateway.StatusFailed
	default:
		return gateway.PaymentStatus(status)
	}
}

func toMinorUnits(gross string) (int64, error) {
	v, err := strconv.ParseFloat(gross, 64)
	if err != nil {
		return 0, fmt.Errorf("midtrans gross_amount %q: %w", gross, err)
	}
	return int64(math.Round(v * 100)), nil
}
