package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Payment lifecycle of a parcel. A parcel starts unpaid and transitions to
// paid exactly once, at which point it also receives its tracking id.
const (
	PaymentStatusUnpaid = "unpaid"
	PaymentStatusPaid   = "paid"
)

// Parcel is a shipment booking stored in the "parcels" collection.
type Parcel struct {
	ID              primitive.ObjectID `bson:"_id,omitempty" json:"_id,omitempty"`
	ParcelName      string             `bson:"parcelName" json:"parcelName"`
	ParcelType      string             `bson:"parcelType,omitempty" json:"parcelType,omitempty"`
	SenderName      string             `bson:"senderName,omitempty" json:"senderName,omitempty"`
	SenderEmail     string             `bson:"senderEmail" json:"senderEmail"`
	ReceiverName    string             `bson:"receiverName,omitempty" json:"receiverName,omitempty"`
	ReceiverAddress string             `bson:"receiverAddress,omitempty" json:"receiverAddress,omitempty"`
	WeightKg        float64            `bson:"weightKg,omitempty" json:"weightKg,omitempty"`
	Cost            float64            `bson:"cost" json:"cost"`
	PaymentStatus   string             `bson:"paymentStatus" json:"paymentStatus"`
	TrackingID      string             `bson:"trackingId,omitempty" json:"trackingId,omitempty"`
	CreatedAt       time.Time          `bson:"createdAt" json:"createdAt"`
}
