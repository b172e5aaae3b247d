package services

import (
	"context"
	"errors"
	"log"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/SleshGG/sipkoviste.cz-sub000/internal/apperr"
	"github.com/SleshGG/sipkoviste.cz-sub000/internal/config"
	"github.com/SleshGG/sipkoviste.cz-sub000/internal/db"
	"github.com/SleshGG/sipkoviste.cz-sub000/internal/email"
	"github.com/SleshGG/sipkoviste.cz-sub000/internal/models"
	"github.com/SleshGG/sipkoviste.cz-sub000/internal/tasks"
	"github.com/SleshGG/sipkoviste.cz-sub000/internal/utils"
)

// IReviewService defines the interface for post-sale reviews.
type IReviewService interface {
	SubmitReview(ctx context.Context, listingID, authorID, subjectID utils.SixID, rating int, comment string) (*models.Review, error)
	ListForUser(ctx context.Context, subjectID utils.SixID, limit int) ([]models.Review, error)
}

// reviewService implements IReviewService.
type reviewService struct {
	db         *mongo.Database
	cfg        *config.Config
	taskClient tasks.Enqueuer
}

// NewReviewService creates a new ReviewService.
func NewReviewService(database *mongo.Database, cfg *config.Config, taskClient tasks.Enqueuer) IReviewService {
	return &reviewService{db: database, cfg: cfg, taskClient: taskClient}
}

// SubmitReview persists a review, gated by a confirmed sale linking the
// author and the subject for that listing. The unique index on
// (author_id, subject_id, listing_id) rejects duplicates; success
// recomputes the subject's rating aggregate.
func (s *reviewService) SubmitReview(ctx context.Context, listingID, authorID, subjectID utils.SixID, rating int, comment string) (*models.Review, error) {
	if rating < 1 || rating > 5 {
		return nil, apperr.Validation("rating must be between 1 and 5")
	}
	if authorID == subjectID {
		return nil, apperr.Validation("cannot review yourself")
	}

	saleFilter := bson.M{
		"listing_id": listingID,
		"$or": bson.A{
			bson.M{"buyer_id": authorID, "seller_id": subjectID},
			bson.M{"buyer_id": subjectID, "seller_id": authorID},
		},
	}
	saleCount, err := s.db.Collection(db.SalesCollection).CountDocuments(ctx, saleFilter)
	if err != nil {
		return nil, apperr.Dependency(err, "error checking sale for listing %s", listingID.String())
	}
	if saleCount == 0 {
		return nil, apperr.Authorization("you can only review a user after a confirmed sale with them")
	}

	// Keep a snapshot so the review stays readable after listing removal.
	var snapshot *models.ListingSnapshot
	var listing models.Listing
	err = s.db.Collection(db.ListingsCollection).FindOne(ctx, bson.M{"_id": listingID}).Decode(&listing)
	if err == nil {
		snapshot = &models.ListingSnapshot{ID: listing.ID, Name: listing.Name}
	} else if !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, apperr.Dependency(err, "error loading listing %s", listingID.String())
	}

	collection := s.db.Collection(db.ReviewsCollection)
	review := &models.Review{
		Base:      models.NewBase(),
		AuthorID:  authorID,
		SubjectID: subjectID,
		ListingID: &listingID,
		Listing:   snapshot,
		Rating:    rating,
		Comment:   comment,
		CreatedAt: time.Now().UTC(),
	}

	if _, err := collection.InsertOne(ctx, review); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, apperr.Conflict("you have already reviewed this user for this listing")
		}
		return nil, apperr.Dependency(err, "failed to insert review by %s", authorID.String())
	}

	if err := s.recomputeRating(ctx, subjectID); err != nil {
		log.Printf("Failed to recompute rating for user %s after review %s: %v", subjectID.String(), review.ID.String(), err)
	}

	s.notifySubject(ctx, subjectID, review, snapshot)

	return review, nil
}

// recomputeRating recalculates the subject's aggregate from all reviews
// they have received. The full recompute keeps the aggregate correct
// without a transaction.
func (s *reviewService) recomputeRating(ctx context.Context, subjectID utils.SixID) error {
	collection := s.db.Collection(db.ReviewsCollection)

	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"subject_id": subjectID}}},
		{{Key: "$group", Value: bson.M{
			"_id":   nil,
			"avg":   bson.M{"$avg": "$rating"},
			"count": bson.M{"$sum": 1},
		}}},
	}

	cursor, err := collection.Aggregate(ctx, pipeline)
	if err != nil {
		return err
	}
	defer cursor.Close(ctx)

	var agg struct {
		Avg   float64 `bson:"avg"`
		Count int     `bson:"count"`
	}
	if cursor.Next(ctx) {
		if err := cursor.Decode(&agg); err != nil {
			return err
		}
	}

	update := bson.M{"$set": bson.M{
		"rating_avg":   agg.Avg,
		"rating_count": agg.Count,
		"updated_at":   time.Now().UTC(),
	}}
	_, err = s.db.Collection(db.UsersCollection).UpdateOne(ctx, bson.M{"_id": subjectID}, update)
	return err
}

// notifySubject enqueues the review-received email, best-effort.
func (s *reviewService) notifySubject(ctx context.Context, subjectID utils.SixID, review *models.Review, snapshot *models.ListingSnapshot) {
	if s.taskClient == nil {
		return
	}
	var subject models.User
	err := s.db.Collection(db.UsersCollection).FindOne(ctx, bson.M{"_id": subjectID, "deleted": false}).Decode(&subject)
	if err != nil {
		log.Printf("Review notification skipped, cannot load user %s: %v", subjectID.String(), err)
		return
	}
	if !subject.Notify.Review {
		return
	}

	var author models.User
	err = s.db.Collection(db.UsersCollection).FindOne(ctx, bson.M{"_id": review.AuthorID}).Decode(&author)
	if err != nil {
		log.Printf("Review notification skipped, cannot load author %s: %v", review.AuthorID.String(), err)
		return
	}

	data := map[string]interface{}{
		"SenderName": author.Name,
		"Rating":     review.Rating,
		"ProfileURL": s.cfg.BaseURL + "/user/" + subjectID.String(),
	}
	if snapshot != nil {
		data["ListingName"] = snapshot.Name
	}
	task, err := tasks.NewEmailTask(subject.Email, email.TemplateReviewReceived, data)
	if err != nil {
		log.Printf("Review notification skipped, cannot build task: %v", err)
		return
	}
	if _, err := s.taskClient.EnqueueContext(ctx, task); err != nil {
		log.Printf("Failed to enqueue review email for %s: %v", subjectID.String(), err)
	}
}

// ListForUser returns the reviews a user has received, newest first.
func (s *reviewService) ListForUser(ctx context.Context, subjectID utils.SixID, limit int) ([]models.Review, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	collection := s.db.Collection(db.ReviewsCollection)
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetLimit(int64(limit))

	cursor, err := collection.Find(ctx, bson.M{"subject_id": subjectID}, opts)
	if err != nil {
		return nil, apperr.Dependency(err, "failed to list reviews for user %s", subjectID.String())
	}
	defer cursor.Close(ctx)

	var reviews []models.Review
	if err = cursor.All(ctx, &reviews); err != nil {
		return nil, apperr.Dependency(err, "failed to decode reviews for user %s", subjectID.String())
	}
	return reviews, nil
}
