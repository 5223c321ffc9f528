package controller

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-billing/app/factory"
	"github.com/vibast-solutions/ms-go-billing/app/payment"
	"github.com/vibast-solutions/ms-go-billing/app/service"
	"github.com/vibast-solutions/ms-go-billing/app/types"
)

type notificationReconciler interface {
	Reconcile(ctx context.Context, n payment.Notification) (*service.ReconcileResult, error)
}

// WebhookController receives provider notifications. Any non-2xx answer makes
// the provider redeliver, so only authentic, applied-or-acknowledged events get 200.
type WebhookController struct {
	reconciler notificationReconciler
	logger     logrus.FieldLogger
}

func NewWebhookController(reconciler notificationReconciler) *WebhookController {
	return &WebhookController{
		reconciler: reconciler,
		logger:     factory.NewModuleLogger("webhook-controller"),
	}
}

func (c *WebhookController) PaymentNotification(ctx echo.Context) error {
	n, err := types.NewPaymentNotificationFromContext(ctx)
	if err != nil {
		return c.writeError(ctx, http.StatusBadRequest, "invalid notification body")
	}

	result, err := c.reconciler.Reconcile(ctx.Request().Context(), n)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrAuthenticityFailure):
			return c.writeError(ctx, http.StatusUnauthorized, "notification authenticity check failed")
		case errors.Is(err, service.ErrMalformedPayload):
			return c.writeError(ctx, http.StatusBadRequest, err.Error())
		default:
			factory.LoggerWithContext(c.logger, ctx).WithError(err).WithField("reference", n.Reference).Error("Payment notification failed")
			return c.writeError(ctx, http.StatusInternalServerError, "internal server error")
		}
	}

	return ctx.JSON(http.StatusOK, &types.PaymentNotificationResponse{
		Status:    "ok",
		Outcome:   string(result.Outcome),
		Reference: result.Reference,
	})
}

func (c *WebhookController) writeError(ctx echo.Context, statusCode int, message string) error {
	return ctx.JSON(statusCode, &types.ErrorResponse{Error: message})
}
