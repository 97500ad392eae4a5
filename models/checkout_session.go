package models

// CheckoutSession is the reconciliation engine's view of a provider checkout
// session. AmountTotal is in the smallest currency unit (cents).
type CheckoutSession struct {
	ID              string
	PaymentStatus   string
	AmountTotal     int64
	Currency        string
	CustomerEmail   string
	PaymentIntentID string
	ParcelID        string
	ParcelName      string
}
