package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Payment is a ledger entry for one settled transaction, stored in the
// "payments" collection. TransactionID carries a unique index; it is the
// idempotency key that prevents double settlement. Rows are written once
// and never mutated.
type Payment struct {
	ID            primitive.ObjectID `bson:"_id,omitempty" json:"_id,omitempty"`
	TransactionID string             `bson:"transactionId" json:"transactionId"`
	ParcelID      primitive.ObjectID `bson:"parcelId" json:"parcelId"`
	ParcelName    string             `bson:"parcelName" json:"parcelName"`
	Amount        float64            `bson:"amount" json:"amount"`
	Currency      string             `bson:"currency" json:"currency"`
	CustomerEmail string             `bson:"customerEmail" json:"customerEmail"`
	PaymentStatus string             `bson:"paymentStatus" json:"paymentStatus"`
	TrackingID    string             `bson:"trackingId" json:"trackingId"`
	CreatedAt     time.Time          `bson:"createdAt" json:"createdAt"`
}
