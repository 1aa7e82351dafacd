// File: database/repository/schedule/mongo.go
package scheduleRepo

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

type mongoScheduleStore struct {
	coll *mongo.Collection
}

// NewMongoScheduleStore constructs a ScheduleStore backed by the slots
// collection.
func NewMongoScheduleStore(dbName string) ScheduleStore {
	db := database.MongoClient.Database(dbName)
	store := &mongoScheduleStore{coll: db.Collection("slots")}
	if err := store.EnsureIndexes(); err != nil {
		log.Printf("failed to ensure slot indexes: %v", err)
	}
	return store
}

func (r *mongoScheduleStore) DeclareSlot(ctx context.Context, slot models.Slot) (string, error) {
	if slot.Start >= slot.End {
		return "", ErrInvalidWindow
	}
	if slot.ID == "" {
		slot.ID = uuid.New().String()
	}
	slot.Available = true
	slot.OccupiedBy = ""
	slot.CreatedAt = time.Now()

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	existing, err := r.ListByTutor(ctx, slot.TutorID)
	if err != nil {
		return "", err
	}
	for _, other := range existing {
		if slotsCollide(other, slot) {
			return "", ErrOverlap
		}
	}

	if _, err := r.coll.InsertOne(ctx, slot); err != nil {
		return "", err
	}
	return slot.ID, nil
}

func (r *mongoScheduleStore) Get(ctx context.Context, slotID string) (*models.Slot, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var slot models.Slot
	err := r.coll.FindOne(ctx, bson.M{"id": slotID}).Decode(&slot)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &slot, nil
}

func (r *mongoScheduleStore) Delete(ctx context.Context, tutorID, slotID string) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	res, err := r.coll.DeleteOne(ctx, bson.M{"id": slotID, "tutor_id": tutorID})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// MarkOccupied claims the slot with a conditional update so the occupancy
// write is an atomic compare-and-set: the filter only matches a free slot or
// one already held by the same booking.
func (r *mongoScheduleStore) MarkOccupied(ctx context.Context, slotID, bookingID string) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	filter := bson.M{
		"id": slotID,
		"$or": bson.A{
			bson.M{"occupied_by": bson.M{"$exists": false}},
			bson.M{"occupied_by": ""},
			bson.M{"occupied_by": bookingID},
		},
	}
	res, err := r.coll.UpdateOne(ctx, filter, bson.M{"$set": bson.M{"occupied_by": bookingID}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		if _, err := r.Get(ctx, slotID); err != nil {
			return err
		}
		return ErrSlotConflict
	}
	return nil
}

func (r *mongoScheduleStore) MarkFree(ctx context.Context, slotID string) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	res, err := r.coll.UpdateOne(ctx, bson.M{"id": slotID}, bson.M{"$set": bson.M{"occupied_by": ""}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *mongoScheduleStore) IsAvailable(ctx context.Context, slotID string) (bool, error) {
	slot, err := r.Get(ctx, slotID)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return slot.Available && slot.OccupiedBy == "", nil
}

func (r *mongoScheduleStore) ListByTutor(ctx context.Context, tutorID string) ([]models.Slot, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	cursor, err := r.coll.Find(ctx, bson.M{"tutor_id": tutorID},
		options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var slots []models.Slot
	if err := cursor.All(ctx, &slots); err != nil {
		return nil, err
	}
	return slots, nil
}
