package controllers

import (
	"errors"
	"net/http"

	"parcel-service/models"
	"parcel-service/repository"
	"parcel-service/services"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// PaymentController handles checkout creation, payment reconciliation and
// payment history.
type PaymentController struct {
	Stripe   *services.StripeService
	Engine   services.ReconciliationService
	Parcels  repository.ParcelRepository
	Payments repository.PaymentRepository
	Logger   *zap.Logger
}

// CreateCheckoutSession handles POST /payments/create-checkout-session and
// returns the hosted checkout URL for a parcel booking.
func (pc *PaymentController) CreateCheckoutSession(c *gin.Context) {
	var req struct {
		ParcelID string `json:"parcelId" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	id, err := primitive.ObjectIDFromHex(req.ParcelID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid parcel id"})
		return
	}

	parcel, err := pc.Parcels.FindByID(c.Request.Context(), id)
	if errors.Is(err, repository.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Parcel not found"})
		return
	}
	if err != nil {
		pc.Logger.Error("Failed to fetch parcel for checkout", zap.String("parcel_id", req.ParcelID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch parcel"})
		return
	}
	if parcel.PaymentStatus == models.PaymentStatusPaid {
		c.JSON(http.StatusConflict, gin.H{"error": "Parcel is already paid"})
		return
	}

	url, err := pc.Stripe.CreateCheckoutSession(c.Request.Context(), parcel)
	if err != nil {
		pc.Logger.Error("Failed to create checkout session", zap.String("parcel_id", req.ParcelID), zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "Failed to create checkout session"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"url": url})
}

// ReconcilePayment handles GET /payments/reconcile?session_id= — the client
// lands here after the checkout redirect. Repeated visits are harmless.
func (pc *PaymentController) ReconcilePayment(c *gin.Context) {
	sessionID := c.Query("session_id")

	result, err := pc.Engine.Reconcile(c.Request.Context(), sessionID)
	if err != nil {
		pc.respondReconcileError(c, sessionID, err)
		return
	}

	if result.Outcome == services.OutcomeNotPaid {
		c.JSON(http.StatusOK, gin.H{
			"success": false,
			"paid":    false,
			"message": "Payment not completed",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":       true,
		"transactionId": result.TransactionID,
		"trackingId":    result.TrackingID,
	})
}

func (pc *PaymentController) respondReconcileError(c *gin.Context, sessionID string, err error) {
	switch {
	case errors.Is(err, services.ErrInvalidSessionID):
		c.JSON(http.StatusBadRequest, gin.H{"error": "session_id query parameter is required"})
	case errors.Is(err, services.ErrParcelNotFound):
		pc.Logger.Error("Paid session references missing parcel", zap.String("session_id", sessionID))
		c.JSON(http.StatusNotFound, gin.H{"error": "Parcel not found for this payment"})
	case errors.Is(err, services.ErrInconsistentSession):
		pc.Logger.Error("Inconsistent checkout session", zap.String("session_id", sessionID), zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "Checkout session data is inconsistent"})
	default:
		pc.Logger.Error("Reconciliation failed", zap.String("session_id", sessionID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to reconcile payment"})
	}
}

// GetPayments handles GET /payments?email= and lists a customer's payment
// history, newest first.
func (pc *PaymentController) GetPayments(c *gin.Context) {
	email := c.Query("email")
	if email == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "email query parameter is required"})
		return
	}

	payments, err := pc.Payments.FindByCustomerEmail(c.Request.Context(), email)
	if err != nil {
		pc.Logger.Error("Failed to list payments", zap.String("email", email), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch payments"})
		return
	}
	c.JSON(http.StatusOK, payments)
}
