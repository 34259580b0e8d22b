package serverutils

import (
	"errors"

	"milk-subscription-be/pkg/gateway"
	"milk-subscription-be/pkg/subscription"

	"github.com/gofiber/fiber/v2"
)

var kindStatus = map[subscription.Kind]int{
	subscription.KindValidation:            fiber.StatusBadRequest,
	subscription.KindNotFound:              fiber.StatusNotFound,
	subscription.KindPaymentNotFound:       fiber.StatusNotFound,
	subscription.KindAlreadyActive:         fiber.StatusConflict,
	subscription.KindNotActive:             fiber.StatusConflict,
	subscription.KindNotPaused:             fiber.StatusConflict,
	subscription.KindAlreadyExpired:        fiber.StatusConflict,
	subscription.KindPreconditionFailed:    fiber.StatusConflict,
	subscription.KindInvalidSignature:      fiber.StatusPaymentRequired,
	subscription.KindAmountMismatch:        fiber.StatusPaymentRequired,
	subscription.KindStatusNotAcceptable:   fiber.StatusPaymentRequired,
	subscription.KindMissingPauseTimestamp: fiber.StatusInternalServerError,
}

// StatusFor maps an error returned by a handler to its HTTP status and client message.
func StatusFor(err error) (int, string) {
	var domainErr *subscription.Error
	if errors.As(err, &domainErr) {
		code, ok := kindStatus[domainErr.Kind]
		if !ok {
			return fiber.StatusInternalServerError, "Internal server error"
		}
		if code == fiber.StatusInternalServerError {
			return code, "Subscription data is inconsistent"
		}
		return code, domainErr.Message
	}

	if errors.Is(err, gateway.ErrInvalidSignature) {
		return fiber.StatusUnauthorized, "Invalid signature"
	}

	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		return fiberErr.Code, fiberErr.Message
	}

	return fiber.StatusInternalServerError, "Internal server error"
}

// ErrorHandlerMiddleware renders errors returned further down the chain in the response envelope.
func ErrorHandlerMiddleware() fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		err := ctx.Next()
		if err == nil {
			return nil
		}
		code, message := StatusFor(err)
		return ctx.Status(code).JSON(ErrorResponse(code, message))
	}
}
