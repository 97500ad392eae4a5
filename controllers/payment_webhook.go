package controllers

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/stripe/stripe-go/v80"
	"go.uber.org/zap"
)

// StripeWebhook receives and dispatches Stripe webhook events. Completed
// checkout sessions feed the same reconciliation path as the client redirect,
// so duplicate deliveries are harmless.
func (pc *PaymentController) StripeWebhook(c *gin.Context) {
	event, err := pc.Stripe.ParseWebhook(c.Request)
	if err != nil {
		pc.Logger.Warn("Stripe webhook signature verification failed", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid webhook"})
		return
	}

	pc.Logger.Info("Processing Stripe webhook",
		zap.String("event_type", string(event.Type)),
		zap.String("event_id", event.ID),
	)

	switch event.Type {
	case "checkout.session.completed":
		pc.handleCheckoutCompleted(c, event)
	default:
		pc.Logger.Info("Unhandled webhook event type", zap.String("event_type", string(event.Type)))
	}

	c.JSON(http.StatusOK, gin.H{"status": "received"})
}

func (pc *PaymentController) handleCheckoutCompleted(c *gin.Context, event stripe.Event) {
	var sess stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
		pc.Logger.Error("Failed to unmarshal checkout session", zap.Error(err))
		return
	}

	result, err := pc.Engine.Reconcile(c.Request.Context(), sess.ID)
	if err != nil {
		pc.Logger.Error("Webhook reconciliation failed",
			zap.String("session_id", sess.ID),
			zap.Error(err),
		)
		return
	}

	pc.Logger.Info("Webhook reconciliation finished",
		zap.String("session_id", sess.ID),
		zap.String("outcome", result.Outcome),
		zap.String("transaction_id", result.TransactionID),
		zap.String("tracking_id", result.TrackingID),
	)
}
