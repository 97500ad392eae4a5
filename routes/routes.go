package routes

import (
	"net/http"

	"parcel-service/controllers"

	"github.com/gin-gonic/gin"
)

func RegisterRoutes(r *gin.Engine, parcels *controllers.ParcelController, payments *controllers.PaymentController) {
	r.GET("/", func(c *gin.Context) {
		c.String(http.StatusOK, "Parcel delivery server running")
	})

	p := r.Group("/parcels")
	p.GET("", parcels.GetParcels)
	p.GET("/:id", parcels.GetParcelByID)
	p.POST("", parcels.CreateParcel)
	p.DELETE("/:id", parcels.DeleteParcel)

	pay := r.Group("/payments")
	pay.GET("", payments.GetPayments)
	pay.POST("/create-checkout-session", payments.CreateCheckoutSession)
	pay.GET("/reconcile", payments.ReconcilePayment)

	// Stripe webhook (no auth, signature-verified)
	r.POST("/stripe/webhook", payments.StripeWebhook)
}
