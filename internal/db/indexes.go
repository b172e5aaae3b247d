package db

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// EnsureIndexes creates the indexes the services depend on. The unique
// indexes are load-bearing: "at most one confirmed sale per listing",
// "one review per (author, subject, listing)" and "one favorite per
// (user, listing)" are enforced here, not by application-level checks.
func EnsureIndexes(ctx context.Context, database *mongo.Database) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	type indexSpec struct {
		collection string
		models     []mongo.IndexModel
	}

	specs := []indexSpec{
		{
			collection: UsersCollection,
			models: []mongo.IndexModel{
				{
					Keys: bson.D{{Key: "email", Value: 1}},
					Options: options.Index().SetUnique(true).
						SetPartialFilterExpression(bson.M{"deleted": false}),
				},
			},
		},
		{
			collection: ListingsCollection,
			models: []mongo.IndexModel{
				{
					Keys: bson.D{
						{Key: "name", Value: "text"},
						{Key: "brand", Value: "text"},
						{Key: "description", Value: "text"},
					},
				},
				{Keys: bson.D{{Key: "seller_id", Value: 1}, {Key: "created_at", Value: -1}}},
				{Keys: bson.D{{Key: "category", Value: 1}, {Key: "created_at", Value: -1}}},
			},
		},
		{
			collection: MessagesCollection,
			models: []mongo.IndexModel{
				{Keys: bson.D{{Key: "sender_id", Value: 1}, {Key: "receiver_id", Value: 1}, {Key: "created_at", Value: 1}}},
				{Keys: bson.D{{Key: "receiver_id", Value: 1}, {Key: "read", Value: 1}}},
			},
		},
		{
			collection: SalesCollection,
			models: []mongo.IndexModel{
				{
					Keys:    bson.D{{Key: "listing_id", Value: 1}},
					Options: options.Index().SetUnique(true),
				},
			},
		},
		{
			collection: ReviewsCollection,
			models: []mongo.IndexModel{
				{
					Keys: bson.D{
						{Key: "author_id", Value: 1},
						{Key: "subject_id", Value: 1},
						{Key: "listing_id", Value: 1},
					},
					Options: options.Index().SetUnique(true),
				},
				{Keys: bson.D{{Key: "subject_id", Value: 1}, {Key: "created_at", Value: -1}}},
			},
		},
		{
			collection: FavoritesCollection,
			models: []mongo.IndexModel{
				{
					Keys:    bson.D{{Key: "user_id", Value: 1}, {Key: "listing_id", Value: 1}},
					Options: options.Index().SetUnique(true),
				},
			},
		},
	}

	for _, spec := range specs {
		if _, err := database.Collection(spec.collection).Indexes().CreateMany(ctx, spec.models); err != nil {
			return fmt.Errorf("failed to create indexes on %s: %w", spec.collection, err)
		}
	}
	return nil
}
