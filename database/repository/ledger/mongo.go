// File: database/repository/ledger/mongo.go
package ledgerRepo

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"tutorlink/database"
	"tutorlink/models"
)

type mongoBookingLedger struct {
	coll *mongo.Collection
}

// NewMongoBookingLedger constructs a BookingLedger backed by the bookings
// collection.
func NewMongoBookingLedger(dbName string) BookingLedger {
	db := database.MongoClient.Database(dbName)
	ledger := &mongoBookingLedger{coll: db.Collection("bookings")}
	if err := ledger.EnsureIndexes(); err != nil {
		log.Printf("failed to ensure booking indexes: %v", err)
	}
	return ledger
}

func (l *mongoBookingLedger) Create(ctx context.Context, booking models.Booking) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if booking.ID == "" {
		booking.ID = uuid.New().String()
	}
	booking.Status = models.BookingRequested
	now := time.Now()
	booking.CreatedAt = now
	booking.UpdatedAt = now

	if _, err := l.coll.InsertOne(ctx, booking); err != nil {
		return "", err
	}
	return booking.ID, nil
}

func (l *mongoBookingLedger) Get(ctx context.Context, bookingID string) (*models.Booking, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var booking models.Booking
	err := l.coll.FindOne(ctx, bson.M{"id": bookingID}).Decode(&booking)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &booking, nil
}

func (l *mongoBookingLedger) SetStatus(ctx context.Context, bookingID string, status models.BookingStatus) error {
	return l.update(ctx, bookingID, bson.M{"status": status})
}

func (l *mongoBookingLedger) SetMeta(ctx context.Context, bookingID string, meta models.SessionMeta) error {
	return l.update(ctx, bookingID, bson.M{"meta": meta})
}

func (l *mongoBookingLedger) update(ctx context.Context, bookingID string, set bson.M) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	set["updated_at"] = time.Now()
	res, err := l.coll.UpdateOne(ctx, bson.M{"id": bookingID}, bson.M{"$set": set})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (l *mongoBookingLedger) ListByTutor(ctx context.Context, tutorID string, statuses ...models.BookingStatus) ([]models.Booking, error) {
	filter := bson.M{"tutor_id": tutorID}
	applyStatusFilter(filter, statuses)
	return l.find(ctx, filter)
}

func (l *mongoBookingLedger) ListByLearner(ctx context.Context, learnerID string, statuses ...models.BookingStatus) ([]models.Booking, error) {
	filter := bson.M{"learner_id": learnerID}
	applyStatusFilter(filter, statuses)
	return l.find(ctx, filter)
}

func (l *mongoBookingLedger) ListBySlot(ctx context.Context, slotID string) ([]models.Booking, error) {
	return l.find(ctx, bson.M{"slot_id": slotID})
}

func (l *mongoBookingLedger) ListActive(ctx context.Context) ([]models.Booking, error) {
	return l.find(ctx, bson.M{"status": bson.M{"$in": bson.A{
		models.BookingRequested, models.BookingAccepted,
	}}})
}

func (l *mongoBookingLedger) find(ctx context.Context, filter bson.M) ([]models.Booking, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	cursor, err := l.coll.Find(ctx, filter,
		options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var bookings []models.Booking
	if err := cursor.All(ctx, &bookings); err != nil {
		return nil, err
	}
	return bookings, nil
}

func applyStatusFilter(filter bson.M, statuses []models.BookingStatus) {
	if len(statuses) == 0 {
		return
	}
	in := make(bson.A, len(statuses))
	for i, s := range statuses {
		in[i] = s
	}
	filter["status"] = bson.M{"$in": in}
}
