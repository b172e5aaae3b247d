package services

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/SleshGG/sipkoviste.cz-sub000/internal/apperr"
	"github.com/SleshGG/sipkoviste.cz-sub000/internal/db"
	"github.com/SleshGG/sipkoviste.cz-sub000/internal/models"
	"github.com/SleshGG/sipkoviste.cz-sub000/internal/utils"
)

// IFavoriteService defines the interface for saved listings.
type IFavoriteService interface {
	AddFavorite(ctx context.Context, userID, listingID utils.SixID) error
	RemoveFavorite(ctx context.Context, userID, listingID utils.SixID) error
	ListFavorites(ctx context.Context, userID utils.SixID) ([]models.FavoriteWithListing, error)
	CountForListing(ctx context.Context, listingID utils.SixID) (int64, error)
}

// favoriteService implements IFavoriteService.
type favoriteService struct {
	db             *mongo.Database
	listingService IListingService
}

// NewFavoriteService creates a new FavoriteService.
func NewFavoriteService(database *mongo.Database, listingService IListingService) IFavoriteService {
	return &favoriteService{db: database, listingService: listingService}
}

// AddFavorite saves a listing for the user. The unique (user_id,
// listing_id) index makes the call idempotent; the listing's counter is
// bumped only on first insert.
func (s *favoriteService) AddFavorite(ctx context.Context, userID, listingID utils.SixID) error {
	if _, err := s.listingService.FindListingByID(ctx, listingID); err != nil {
		return err
	}

	collection := s.db.Collection(db.FavoritesCollection)
	favorite := &models.Favorite{
		Base:      models.NewBase(),
		UserID:    userID,
		ListingID: listingID,
		CreatedAt: time.Now().UTC(),
	}

	if _, err := collection.InsertOne(ctx, favorite); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			// Already saved; nothing to count.
			return nil
		}
		return apperr.Dependency(err, "failed to save favorite for user %s", userID.String())
	}

	update := bson.M{"$inc": bson.M{"favorite_count": 1}}
	if _, err := s.db.Collection(db.ListingsCollection).UpdateOne(ctx, bson.M{"_id": listingID}, update); err != nil {
		return apperr.Dependency(err, "failed to bump favorite count of listing %s", listingID.String())
	}
	return nil
}

// RemoveFavorite unsaves a listing. Removing a favorite that does not
// exist is a no-op.
func (s *favoriteService) RemoveFavorite(ctx context.Context, userID, listingID utils.SixID) error {
	collection := s.db.Collection(db.FavoritesCollection)

	result, err := collection.DeleteOne(ctx, bson.M{"user_id": userID, "listing_id": listingID})
	if err != nil {
		return apperr.Dependency(err, "failed to remove favorite for user %s", userID.String())
	}
	if result.DeletedCount == 0 {
		return nil
	}

	update := bson.M{"$inc": bson.M{"favorite_count": -1}}
	if _, err := s.db.Collection(db.ListingsCollection).UpdateOne(ctx, bson.M{"_id": listingID, "favorite_count": bson.M{"$gt": 0}}, update); err != nil {
		return apperr.Dependency(err, "failed to drop favorite count of listing %s", listingID.String())
	}
	return nil
}

// ListFavorites returns the user's saved listings with the listing joined
// in, newest saved first. Favorites of deleted listings are skipped.
func (s *favoriteService) ListFavorites(ctx context.Context, userID utils.SixID) ([]models.FavoriteWithListing, error) {
	collection := s.db.Collection(db.FavoritesCollection)

	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"user_id": userID}}},
		{{Key: "$sort", Value: bson.D{{Key: "created_at", Value: -1}}}},
		{{Key: "$lookup", Value: bson.M{
			"from":         db.ListingsCollection,
			"localField":   "listing_id",
			"foreignField": "_id",
			"as":           "item",
		}}},
		{{Key: "$unwind", Value: "$item"}},
		{{Key: "$match", Value: bson.M{"item.deleted": false}}},
	}

	cursor, err := collection.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, apperr.Dependency(err, "failed to list favorites for user %s", userID.String())
	}
	defer cursor.Close(ctx)

	var favorites []models.FavoriteWithListing
	if err = cursor.All(ctx, &favorites); err != nil {
		return nil, apperr.Dependency(err, "failed to decode favorites for user %s", userID.String())
	}
	return favorites, nil
}

// CountForListing returns how many users saved the listing.
func (s *favoriteService) CountForListing(ctx context.Context, listingID utils.SixID) (int64, error) {
	count, err := s.db.Collection(db.FavoritesCollection).CountDocuments(ctx, bson.M{"listing_id": listingID}, options.Count())
	if err != nil {
		return 0, apperr.Dependency(err, "failed to count favorites of listing %s", listingID.String())
	}
	return count, nil
}
