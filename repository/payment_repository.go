package repository

import (
	"context"
	"errors"
	"fmt"

	"parcel-service/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ErrDuplicateTransaction is returned when an insert collides with the unique
// index on transactionId. Callers treat it as the authoritative signal that
// the transaction has already been settled.
var ErrDuplicateTransaction = errors.New("payment already recorded for transaction")

// PaymentRepository defines data access for the payment ledger.
type PaymentRepository interface {
	FindByTransactionID(ctx context.Context, transactionID string) (*models.Payment, error)
	Create(ctx context.Context, payment *models.Payment) error
	FindByCustomerEmail(ctx context.Context, email string) ([]models.Payment, error)
	EnsureIndexes(ctx context.Context) error
}

type mongoPaymentRepo struct {
	collection *mongo.Collection
}

// NewMongoPaymentRepo creates a PaymentRepository backed by the "payments" collection.
func NewMongoPaymentRepo(db *mongo.Database) PaymentRepository {
	return &mongoPaymentRepo{collection: db.Collection("payments")}
}

// EnsureIndexes creates the unique index on transactionId. This index is what
// makes the reconciliation idempotency check race-safe; without it two
// concurrent settlements could both insert a ledger row.
func (r *mongoPaymentRepo) EnsureIndexes(ctx context.Context) error {
	model := mongo.IndexModel{
		Keys:    bson.D{{Key: "transactionId", Value: 1}},
		Options: options.Index().SetUnique(true),
	}
	if _, err := r.collection.Indexes().CreateOne(ctx, model); err != nil {
		return fmt.Errorf("create transactionId index: %w", err)
	}
	return nil
}

func (r *mongoPaymentRepo) FindByTransactionID(ctx context.Context, transactionID string) (*models.Payment, error) {
	var payment models.Payment
	err := r.collection.FindOne(ctx, bson.M{"transactionId": transactionID}).Decode(&payment)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find payment: %w", err)
	}
	return &payment, nil
}

func (r *mongoPaymentRepo) Create(ctx context.Context, payment *models.Payment) error {
	if _, err := r.collection.InsertOne(ctx, payment); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrDuplicateTransaction
		}
		return fmt.Errorf("insert payment: %w", err)
	}
	return nil
}

// FindByCustomerEmail lists a customer's payments, newest first.
func (r *mongoPaymentRepo) FindByCustomerEmail(ctx context.Context, email string) ([]models.Payment, error) {
	findOpts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	cursor, err := r.collection.Find(ctx, bson.M{"customerEmail": email}, findOpts)
	if err != nil {
		return nil, fmt.Errorf("list payments: %w", err)
	}
	defer cursor.Close(ctx)

	payments := []models.Payment{}
	if err := cursor.All(ctx, &payments); err != nil {
		return nil, fmt.Errorf("decode payments: %w", err)
	}
	return payments, nil
}
