package midtrans

import (
	"encoding/json"
	"testing"

	"milk-subscription-be/pkg/gateway"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMapStatus(t *testing.T) {
	tests := []struct {
		in   string
		want gateway.PaymentStatus
	}{
		{"capture", gateway.StatusCaptured},
		{"settlement", gateway.StatusCaptured},
		{"authorize", gateway.StatusAuthorized},
		{"pending", gateway.StatusPending},
		{"refund", gateway.StatusRefunded},
		{"partial_refund", gateway.StatusRefunded},
		{"expire", gateway.StatusFailed},
		{"deny", gateway.StatusFailed},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, MapStatus(tt.in))
		})
	}
}

func TestToMinorUnits(t *testing.T) {
	v, err := toMinorUnits("300.00")
	require.NoError(t, err)
	assert.Equal(t, int64(30000), v)

	_, err = toMinorUnits("abc")
	assert.Error(t, err)
}

func TestParseWebhook(t *testing.T) {
	p := NewMidtransProvider("server-key", "client-key", "checkout-secret", false)

	payload := map[string]string{
		"transaction_status": "refund",
		"transaction_id":     "trx-1",
		"order_id":           "order-1",
		"status_code":        "200",
		"gross_amount":       "300.00",
		"signature_key":      NotificationSignature("order-1", "200", "300.00", "server-key"),
	}
	body, _ := json.Marshal(payload)

	evt, err := p.ParseWebhook(body, "")
	require.NoError(t, err)
	assert.Equal(t, gateway.WebhookPaymentRefunded, evt.Kind)
	assert.Equal(t, "trx-1", evt.PaymentId)
	assert.Equal(t, "order-1", evt.OrderId)

	payload["signature_key"] = "deadbeef"
	body, _ = json.Marshal(payload)
	_, err = p.ParseWebhook(body, "")
	assert.ErrorIs(t, err, gateway.ErrInvalidSignature)
}

func TestVerifyCheckout(t *testing.T) {
	p := NewMidtransProvider("server-key", "client-key", "checkout-secret", false)
	sig := gateway.SignHMAC("checkout-secret", gateway.CheckoutPayload("order-1", "trx-1"))

	assert.True(t, p.VerifyCheckout("order-1", "trx-1", sig))
	assert.False(t, p.VerifyCheckout("order-1", "trx-2", sig))

	unset := NewMidtransProvider("server-key", "client-key", "", false)
	assert.False(t, unset.VerifyCheckout("order-1", "trx-1", sig))
}
