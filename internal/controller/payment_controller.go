package controller

import (
	"errors"

	"milk-subscription-be/internal/pkg/serverutils"
	"milk-subscription-be/internal/service"

	"github.com/gofiber/fiber/v2"
)

type IPaymentController interface {
	RegisterRoutes(r fiber.Router)
	RazorpayWebhook(ctx *fiber.Ctx) error
	MidtransNotification(ctx *fiber.Ctx) error
}

type paymentController struct {
	service service.ISubscriptionService
}

func NewPaymentController(service service.ISubscriptionService) IPaymentController {
	return &paymentController{service: service}
}

func (c *paymentController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/payment")
	h.Post("/razorpay/webhook", c.RazorpayWebhook)
	h.Post("/midtrans/notification", c.MidtransNotification)
}

// @Summary Razorpay webhook
// @Tags Payment
// @Accept json
// @Produce json
// @Param X-Razorpay-Signature header string true "HMAC-SHA256 of the body"
// @Success 200 {object} dto.WebhookResponse
// @Router /api/payment/razorpay/webhook [post]
func (c *paymentController) RazorpayWebhook(ctx *fiber.Ctx) error {
	return c.handle(ctx, "razorpay", ctx.Get("X-Razorpay-Signature"))
}

// The Midtrans signature travels inside the body.
// @Summary Midtrans notification
// @Tags Payment
// @Accept json
// @Produce json
// @Success 200 {object} dto.WebhookResponse
// @Router /api/payment/midtrans/notification [post]
func (c *paymentController) MidtransNotification(ctx *fiber.Ctx) error {
	return c.handle(ctx, "midtrans", "")
}

// handle returns 5xx on storage failures so the provider retries the delivery.
func (c *paymentController) handle(ctx *fiber.Ctx, provider, signature string) error {
	res, err := c.service.HandleWebhook(ctx.UserContext(), provider, ctx.Body(), signature)
	if err != nil {
		if errors.Is(err, service.ErrUnknownProvider) {
			return fiber.NewError(fiber.StatusNotFound, err.Error())
		}
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Webhook processed", res))
}
