package factory

import (
	"fmt"

	"milk-subscription-be/pkg/gateway"
	"milk-subscription-be/pkg/gateway/midtrans"
	"milk-subscription-be/pkg/gateway/razorpay"
)

type Options struct {
	Provider              string
	RazorpayKeyId         string
	RazorpayKeySecret     string
	RazorpayWebhookSecret string
	MidtransServerKey     string
	MidtransClientKey     string
	MidtransProduction    bool
	// CheckoutSecret verifies checkout signatures. Razorpay falls back to its key secret.
	CheckoutSecret string
}

func NewGateway(opts Options) (gateway.Gateway, error) {
	switch opts.Provider {
	case "", "razorpay":
		if opts.RazorpayKeyId == "" || opts.RazorpayKeySecret == "" {
			return nil, fmt.Errorf("razorpay key id and secret are required")
		}
		return razorpay.NewRazorpayProvider(opts.RazorpayKeyId, opts.RazorpayKeySecret, opts.RazorpayWebhookSecret, opts.CheckoutSecret), nil
	case "midtrans":
		if opts.MidtransServerKey == "" {
			return nil, fmt.Errorf("midtrans server key is required")
		}
		return midtrans.NewMidtransProvider(opts.MidtransServerKey, opts.MidtransClientKey, opts.CheckoutSecret, opts.MidtransProduction), nil
	default:
		return nil, fmt.Errorf("unsupported payment provider: %s", opts.Provider)
	}
}
