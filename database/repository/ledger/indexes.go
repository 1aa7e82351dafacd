// File: database/repository/ledger/indexes.go
package ledgerRepo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// EnsureIndexes creates the necessary indexes on the bookings collection.
func (l *mongoBookingLedger) EnsureIndexes() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	indexModels := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "id", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("unique_id"),
		},
		{
			Keys:    bson.D{{Key: "tutor_id", Value: 1}, {Key: "status", Value: 1}},
			Options: options.Index().SetName("tutor_status_idx"),
		},
		{
			Keys:    bson.D{{Key: "learner_id", Value: 1}, {Key: "status", Value: 1}},
			Options: options.Index().SetName("learner_status_idx"),
		},
		{
			Keys:    bson.D{{Key: "slot_id", Value: 1}},
			Options: options.Index().SetName("slot_idx"),
		},
	}

	if _, err := l.coll.Indexes().CreateMany(ctx, indexModels); err != nil {
		return fmt.Errorf("failed to create booking indexes: %w", err)
	}
	return nil
}
