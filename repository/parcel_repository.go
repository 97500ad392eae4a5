package repository

import (
	"context"
	"errors"
	"fmt"

	"parcel-service/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ErrNotFound is returned by point lookups when no record matches.
var ErrNotFound = errors.New("record not found")

// ParcelRepository defines data access for parcel bookings.
type ParcelRepository interface {
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.Parcel, error)
	Find(ctx context.Context, senderEmail string) ([]models.Parcel, error)
	Create(ctx context.Context, parcel *models.Parcel) (primitive.ObjectID, error)
	Delete(ctx context.Context, id primitive.ObjectID) (int64, error)
	MarkPaid(ctx context.Context, id primitive.ObjectID, trackingID string) (int64, error)
}

type mongoParcelRepo struct {
	collection *mongo.Collection
}

// NewMongoParcelRepo creates a ParcelRepository backed by the "parcels" collection.
func NewMongoParcelRepo(db *mongo.Database) ParcelRepository {
	return &mongoParcelRepo{collection: db.Collection("parcels")}
}

func (r *mongoParcelRepo) FindByID(ctx context.Context, id primitive.ObjectID) (*models.Parcel, error) {
	var parcel models.Parcel
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&parcel)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find parcel: %w", err)
	}
	return &parcel, nil
}

// Find lists parcels, newest first, optionally filtered by sender email.
func (r *mongoParcelRepo) Find(ctx context.Context, senderEmail string) ([]models.Parcel, error) {
	filter := bson.M{}
	if senderEmail != "" {
		filter["senderEmail"] = senderEmail
	}

	findOpts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	cursor, err := r.collection.Find(ctx, filter, findOpts)
	if err != nil {
		return nil, fmt.Errorf("list parcels: %w", err)
	}
	defer cursor.Close(ctx)

	parcels := []models.Parcel{}
	if err := cursor.All(ctx, &parcels); err != nil {
		return nil, fmt.Errorf("decode parcels: %w", err)
	}
	return parcels, nil
}

func (r *mongoParcelRepo) Create(ctx context.Context, parcel *models.Parcel) (primitive.ObjectID, error) {
	res, err := r.collection.InsertOne(ctx, parcel)
	if err != nil {
		return primitive.NilObjectID, fmt.Errorf("insert parcel: %w", err)
	}
	id, ok := res.InsertedID.(primitive.ObjectID)
	if !ok {
		return primitive.NilObjectID, fmt.Errorf("unexpected inserted id type %T", res.InsertedID)
	}
	return id, nil
}

func (r *mongoParcelRepo) Delete(ctx context.Context, id primitive.ObjectID) (int64, error) {
	res, err := r.collection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return 0, fmt.Errorf("delete parcel: %w", err)
	}
	return res.DeletedCount, nil
}

// MarkPaid transitions a parcel from unpaid to paid and assigns its tracking
// id in a single conditional update. The filter guards the unpaid state, so a
// matched count of 0 means the parcel is either absent or already paid.
func (r *mongoParcelRepo) MarkPaid(ctx context.Context, id primitive.ObjectID, trackingID string) (int64, error) {
	filter := bson.M{"_id": id, "paymentStatus": models.PaymentStatusUnpaid}
	update := bson.M{"$set": bson.M{
		"paymentStatus": models.PaymentStatusPaid,
		"trackingId":    trackingID,
	}}
	res, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return 0, fmt.Errorf("mark parcel paid: %w", err)
	}
	return res.MatchedCount, nil
}
