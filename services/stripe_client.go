package services

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"math"
	"net/http"

	"parcel-service/models"

	"github.com/stripe/stripe-go/v80"
	"github.com/stripe/stripe-go/v80/checkout/session"
	"github.com/stripe/stripe-go/v80/webhook"
)

// SessionOracle reads the provider's current view of a checkout session.
// Implementations must be side-effect free on our state.
type SessionOracle interface {
	GetCheckoutSession(ctx context.Context, sessionID string) (*models.CheckoutSession, error)
}

type StripeService struct {
	SecretKey   string
	WebhookKey  string
	FrontendURL string
}

func NewStripeService(secretKey, webhookKey, frontendURL string) *StripeService {
	stripe.Key = secretKey
	return &StripeService{SecretKey: secretKey, WebhookKey: webhookKey, FrontendURL: frontendURL}
}

// GetCheckoutSession retrieves a checkout session and flattens it into the
// engine's view. The payment intent is expanded so the transaction id is
// available in one round trip.
func (s *StripeService) GetCheckoutSession(ctx context.Context, sessionID string) (*models.CheckoutSession, error) {
	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx
	params.AddExpand("payment_intent")

	sess, err := session.Get(sessionID, params)
	if err != nil {
		return nil, fmt.Errorf("retrieve checkout session: %w", err)
	}

	cs := &models.CheckoutSession{
		ID:            sess.ID,
		PaymentStatus: string(sess.PaymentStatus),
		AmountTotal:   sess.AmountTotal,
		Currency:      string(sess.Currency),
		ParcelID:      sess.Metadata["parcelId"],
		ParcelName:    sess.Metadata["parcelName"],
	}
	if sess.CustomerDetails != nil {
		cs.CustomerEmail = sess.CustomerDetails.Email
	}
	if sess.PaymentIntent != nil {
		cs.PaymentIntentID = sess.PaymentIntent.ID
	}
	return cs, nil
}

// CreateCheckoutSession opens a hosted checkout page for a parcel booking and
// returns the redirect URL. The parcel id travels in the session metadata so
// reconciliation can find the booking later.
func (s *StripeService) CreateCheckoutSession(ctx context.Context, parcel *models.Parcel) (string, error) {
	amount := int64(math.Round(parcel.Cost * 100))

	params := &stripe.CheckoutSessionParams{
		Mode: stripe.String(string(stripe.CheckoutSessionModePayment)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency:   stripe.String("usd"),
					UnitAmount: stripe.Int64(amount),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String(parcel.ParcelName),
					},
				},
				Quantity: stripe.Int64(1),
			},
		},
		CustomerEmail: stripe.String(parcel.SenderEmail),
		SuccessURL:    stripe.String(s.FrontendURL + "/payment-success?session_id={CHECKOUT_SESSION_ID}"),
		CancelURL:     stripe.String(s.FrontendURL + "/payment-cancelled"),
	}
	params.Context = ctx
	params.Metadata = map[string]string{
		"parcelId":   parcel.ID.Hex(),
		"parcelName": parcel.ParcelName,
	}

	sess, err := session.New(params)
	if err != nil {
		return "", fmt.Errorf("create checkout session: %w", err)
	}
	return sess.URL, nil
}

// ParseWebhook verifies a webhook payload against the signing secret.
func (s *StripeService) ParseWebhook(r *http.Request) (stripe.Event, error) {
	var event stripe.Event
	payload, err := io.ReadAll(r.Body)
	if err != nil {
		return event, err
	}
	r.Body = io.NopCloser(bytes.NewBuffer(payload))
	sigHeader := r.Header.Get("Stripe-Signature")
	return webhook.ConstructEvent(payload, sigHeader, s.WebhookKey)
}
