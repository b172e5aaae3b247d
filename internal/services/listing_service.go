package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/SleshGG/sipkoviste.cz-sub000/internal/apperr"
	"github.com/SleshGG/sipkoviste.cz-sub000/internal/config"
	"github.com/SleshGG/sipkoviste.cz-sub000/internal/db"
	"github.com/SleshGG/sipkoviste.cz-sub000/internal/models"
	"github.com/SleshGG/sipkoviste.cz-sub000/internal/utils"
)

// ListingInput carries the seller-provided fields for creating a listing.
type ListingInput struct {
	Name        string            `json:"name"`
	Brand       string            `json:"brand"`
	Category    models.Category   `json:"category"`
	Condition   models.Condition  `json:"condition"`
	Price       models.Price      `json:"price"`
	Negotiable  bool              `json:"negotiable"`
	WeightGrams float64           `json:"weight_grams"`
	Material    string            `json:"material"`
	Description string            `json:"description"`
	Specs       map[string]string `json:"specs"`
}

// SearchParams are the browse filters. Zero values mean "no filter".
type SearchParams struct {
	Query          string
	Category       models.Category
	Brand          string
	Condition      models.Condition
	PriceMin       *float64
	PriceMax       *float64
	NegotiableOnly bool
	SortBy         string // newest | price_asc | price_desc | popularity
	Limit          int
	Cursor         string
}

// IListingService defines the interface for listing-related operations.
type IListingService interface {
	CreateListing(ctx context.Context, sellerID utils.SixID, input ListingInput) (*models.Listing, error)
	FindListingByID(ctx context.Context, listingID utils.SixID) (*models.Listing, error)
	UpdateListing(ctx context.Context, listingID, sellerID utils.SixID, updates map[string]interface{}) (*models.Listing, error)
	SetVisibility(ctx context.Context, listingID, sellerID utils.SixID, visible bool) error
	DeleteListing(ctx context.Context, listingID, sellerID utils.SixID) error
	SearchListings(ctx context.Context, params SearchParams) ([]models.Listing, string, error)
	FindListingsBySellerID(ctx context.Context, sellerID utils.SixID) ([]models.Listing, error)
	MarkSold(ctx context.Context, listingID utils.SixID, at time.Time) error
	AddImage(ctx context.Context, listingID utils.SixID, imageKey string) error
}

const defaultSearchLimit = 24

// listingService implements IListingService.
type listingService struct {
	db  *mongo.Database
	cfg *config.Config
}

// NewListingService creates a new ListingService.
func NewListingService(database *mongo.Database, cfg *config.Config) IListingService {
	return &listingService{db: database, cfg: cfg}
}

func (s *listingService) validateInput(input *ListingInput) error {
	input.Name = strings.TrimSpace(input.Name)
	if input.Name == "" {
		return apperr.Validation("listing name is required")
	}
	if !input.Category.Valid() {
		return apperr.Validation("unknown category %q", input.Category)
	}
	if !input.Condition.Valid() {
		return apperr.Validation("unknown condition %q", input.Condition)
	}
	if input.Price.Value < 0 {
		return apperr.Validation("price must not be negative")
	}
	if input.Price.CurrencyCode == "" {
		input.Price.CurrencyCode = s.cfg.DefaultCurrency
	}
	if input.WeightGrams < 0 {
		return apperr.Validation("weight must not be negative")
	}
	return nil
}

// CreateListing creates a new visible listing owned by sellerID.
func (s *listingService) CreateListing(ctx context.Context, sellerID utils.SixID, input ListingInput) (*models.Listing, error) {
	if err := s.validateInput(&input); err != nil {
		return nil, err
	}

	collection := s.db.Collection(db.ListingsCollection)
	now := time.Now().UTC()

	var newListing *models.Listing

	operation := func() error {
		newListing = &models.Listing{
			Base:        models.NewBase(),
			SellerID:    sellerID,
			Name:        input.Name,
			Brand:       input.Brand,
			Category:    input.Category,
			Condition:   input.Condition,
			Price:       input.Price,
			Negotiable:  input.Negotiable,
			WeightGrams: input.WeightGrams,
			Material:    input.Material,
			Description: input.Description,
			Specs:       input.Specs,
			Images:      []string{},
			Visible:     true,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		_, insertErr := collection.InsertOne(ctx, newListing)
		return insertErr
	}

	if err := db.Try(operation); err != nil {
		return nil, apperr.Dependency(err, "failed to insert listing for seller %s", sellerID.String())
	}

	return newListing, nil
}

// FindListingByID finds a non-deleted listing by its ID. Sold listings stay
// directly viewable here even though browse excludes them.
func (s *listingService) FindListingByID(ctx context.Context, listingID utils.SixID) (*models.Listing, error) {
	var listing models.Listing
	collection := s.db.Collection(db.ListingsCollection)
	filter := bson.M{"_id": listingID, "deleted": false}

	err := collection.FindOne(ctx, filter).Decode(&listing)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, apperr.NotFound("listing %s not found", listingID.String())
		}
		return nil, apperr.Dependency(err, "error finding listing %s", listingID.String())
	}
	return &listing, nil
}

// UpdateListing updates mutable fields of a listing owned by sellerID.
// `updates` contains BSON field names and new values; only descriptive
// fields may change. Sold listings cannot be edited.
func (s *listingService) UpdateListing(ctx context.Context, listingID, sellerID utils.SixID, updates map[string]interface{}) (*models.Listing, error) {
	collection := s.db.Collection(db.ListingsCollection)

	allowedUpdates := bson.M{}
	for key, value := range updates {
		switch key {
		case "name", "brand", "category", "condition", "price", "negotiable",
			"weight_grams", "material", "description", "specs":
			allowedUpdates[key] = value
		default:
			return nil, apperr.Validation("field %q cannot be updated", key)
		}
	}
	if len(allowedUpdates) == 0 {
		return nil, apperr.Validation("no updatable fields provided")
	}
	if raw, ok := allowedUpdates["category"]; ok {
		category, _ := raw.(string)
		if !models.Category(category).Valid() {
			return nil, apperr.Validation("unknown category %q", category)
		}
	}
	if raw, ok := allowedUpdates["condition"]; ok {
		condition, _ := raw.(string)
		if !models.Condition(condition).Valid() {
			return nil, apperr.Validation("unknown condition %q", condition)
		}
	}
	allowedUpdates["updated_at"] = time.Now().UTC()

	filter := bson.M{
		"_id":       listingID,
		"seller_id": sellerID,
		"deleted":   false,
		"sold_at":   bson.M{"$exists": false},
	}
	update := bson.M{"$set": allowedUpdates}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var updatedListing models.Listing
	err := collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&updatedListing)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, s.diagnoseUpdateFailure(ctx, listingID, sellerID)
		}
		return nil, apperr.Dependency(err, "failed to update listing %s", listingID.String())
	}

	return &updatedListing, nil
}

// diagnoseUpdateFailure re-reads the listing to explain why a conditional
// owner update matched nothing.
func (s *listingService) diagnoseUpdateFailure(ctx context.Context, listingID, sellerID utils.SixID) error {
	var listing models.Listing
	err := s.db.Collection(db.ListingsCollection).FindOne(ctx, bson.M{"_id": listingID}).Decode(&listing)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return apperr.NotFound("listing %s not found", listingID.String())
	}
	if err != nil {
		return apperr.Dependency(err, "error re-reading listing %s", listingID.String())
	}
	if listing.Deleted {
		return apperr.NotFound("listing %s not found", listingID.String())
	}
	if listing.SellerID != sellerID {
		return apperr.Authorization("listing %s does not belong to you", listingID.String())
	}
	if listing.Sold() {
		return apperr.Conflict("listing %s has been sold and can no longer be edited", listingID.String())
	}
	return apperr.Conflict("listing %s cannot be updated", listingID.String())
}

// SetVisibility toggles the listing's visibility in browse results.
func (s *listingService) SetVisibility(ctx context.Context, listingID, sellerID utils.SixID, visible bool) error {
	collection := s.db.Collection(db.ListingsCollection)
	now := time.Now().UTC()

	filter := bson.M{
		"_id":       listingID,
		"seller_id": sellerID,
		"deleted":   false,
		"sold_at":   bson.M{"$exists": false},
	}
	update := bson.M{"$set": bson.M{"visible": visible, "updated_at": now}}

	result, err := collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return apperr.Dependency(err, "db error toggling visibility of listing %s", listingID.String())
	}
	if result.MatchedCount == 0 {
		return s.diagnoseUpdateFailure(ctx, listingID, sellerID)
	}
	return nil
}

// DeleteListing soft-deletes a listing. Deletion is refused while a
// confirmed sale references the listing so its history stays inspectable.
func (s *listingService) DeleteListing(ctx context.Context, listingID, sellerID utils.SixID) error {
	salesCount, err := s.db.Collection(db.SalesCollection).CountDocuments(ctx, bson.M{"listing_id": listingID})
	if err != nil {
		return apperr.Dependency(err, "db error checking sales for listing %s", listingID.String())
	}
	if salesCount > 0 {
		return apperr.Conflict("listing %s has a confirmed sale and cannot be deleted", listingID.String())
	}

	collection := s.db.Collection(db.ListingsCollection)
	now := time.Now().UTC()

	filter := bson.M{
		"_id":       listingID,
		"seller_id": sellerID,
		"deleted":   false,
	}
	update := bson.M{"$set": bson.M{"deleted": true, "visible": false, "updated_at": now}}

	result, err := collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return apperr.Dependency(err, "db error deleting listing %s", listingID.String())
	}
	if result.MatchedCount == 0 {
		// Distinguish missing from foreign.
		var listing models.Listing
		checkErr := collection.FindOne(ctx, bson.M{"_id": listingID}).Decode(&listing)
		if errors.Is(checkErr, mongo.ErrNoDocuments) || (checkErr == nil && listing.Deleted) {
			return apperr.NotFound("listing %s not found", listingID.String())
		}
		if checkErr != nil {
			return apperr.Dependency(checkErr, "error re-reading listing %s", listingID.String())
		}
		return apperr.Authorization("listing %s does not belong to you", listingID.String())
	}
	return nil
}

// SearchListings runs a filtered browse query over visible, unsold
// listings with cursor pagination.
func (s *listingService) SearchListings(ctx context.Context, params SearchParams) ([]models.Listing, string, error) {
	collection := s.db.Collection(db.ListingsCollection)

	filter := bson.M{
		"visible": true,
		"deleted": false,
		"sold_at": bson.M{"$exists": false},
	}

	if params.Query != "" {
		filter["$text"] = bson.M{"$search": params.Query}
	}
	if params.Category != "" {
		if !params.Category.Valid() {
			return nil, "", apperr.Validation("unknown category %q", params.Category)
		}
		filter["category"] = params.Category
	}
	if params.Brand != "" {
		filter["brand"] = params.Brand
	}
	if params.Condition != "" {
		if !params.Condition.Valid() {
			return nil, "", apperr.Validation("unknown condition %q", params.Condition)
		}
		filter["condition"] = params.Condition
	}
	if params.PriceMin != nil || params.PriceMax != nil {
		priceFilter := bson.M{}
		if params.PriceMin != nil {
			priceFilter["$gte"] = *params.PriceMin
		}
		if params.PriceMax != nil {
			priceFilter["$lte"] = *params.PriceMax
		}
		filter["price.value"] = priceFilter
	}
	if params.NegotiableOnly {
		filter["negotiable"] = true
	}

	limit := params.Limit
	if limit <= 0 || limit > 100 {
		limit = defaultSearchLimit
	}

	opts := options.Find()
	opts.SetLimit(int64(limit + 1))

	var sort bson.D
	switch params.SortBy {
	case "price_asc":
		sort = bson.D{{Key: "price.value", Value: 1}, {Key: "_id", Value: -1}}
	case "price_desc":
		sort = bson.D{{Key: "price.value", Value: -1}, {Key: "_id", Value: -1}}
	case "popularity":
		sort = bson.D{{Key: "favorite_count", Value: -1}, {Key: "_id", Value: -1}}
	case "", "newest":
		sort = bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}
	default:
		return nil, "", apperr.Validation("unknown sort order %q", params.SortBy)
	}
	opts.SetSort(sort)

	// Cursor pagination is only stable for the default created_at order;
	// other sorts restart from the top.
	useCursor := params.SortBy == "" || params.SortBy == "newest"
	if useCursor && params.Cursor != "" {
		parts := strings.Split(params.Cursor, "_")
		if len(parts) == 2 {
			timestampSec, tsErr := strconv.ParseInt(parts[0], 10, 64)
			lastID, idErr := utils.ParseSixID(parts[1])
			if tsErr == nil && idErr == nil {
				cursorTime := time.Unix(timestampSec, 0).UTC()
				filter["$or"] = bson.A{
					bson.M{"created_at": cursorTime, "_id": bson.M{"$lt": lastID}},
					bson.M{"created_at": bson.M{"$lt": cursorTime}},
				}
			} else {
				log.Printf("WARN: invalid search cursor received: %s", params.Cursor)
			}
		} else {
			log.Printf("WARN: invalid search cursor received: %s", params.Cursor)
		}
	}

	listCursor, err := collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, "", apperr.Dependency(err, "failed to execute listing search")
	}
	defer listCursor.Close(ctx)

	var results []models.Listing
	if err = listCursor.All(ctx, &results); err != nil {
		return nil, "", apperr.Dependency(err, "failed to decode listing search results")
	}

	nextCursor := ""
	if len(results) > limit {
		results = results[:limit]
		if useCursor {
			lastItem := results[limit-1]
			nextCursor = fmt.Sprintf("%d_%s", lastItem.CreatedAt.Unix(), lastItem.ID.String())
		}
	}

	return results, nextCursor, nil
}

// FindListingsBySellerID returns one seller's visible, non-deleted listings,
// newest first, sold ones included. Hidden listings stay off the seller's
// public page.
func (s *listingService) FindListingsBySellerID(ctx context.Context, sellerID utils.SixID) ([]models.Listing, error) {
	collection := s.db.Collection(db.ListingsCollection)
	filter := bson.M{"seller_id": sellerID, "deleted": false, "visible": true}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})

	cursor, err := collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, apperr.Dependency(err, "failed to list listings for seller %s", sellerID.String())
	}
	defer cursor.Close(ctx)

	var listings []models.Listing
	if err = cursor.All(ctx, &listings); err != nil {
		return nil, apperr.Dependency(err, "failed to decode listings for seller %s", sellerID.String())
	}
	return listings, nil
}

// MarkSold stamps the listing's sold timestamp, once. A listing already
// stamped is left untouched so the stamp records the first confirmation.
func (s *listingService) MarkSold(ctx context.Context, listingID utils.SixID, at time.Time) error {
	collection := s.db.Collection(db.ListingsCollection)

	filter := bson.M{
		"_id":     listingID,
		"deleted": false,
		"sold_at": bson.M{"$exists": false},
	}
	update := bson.M{"$set": bson.M{"sold_at": at.UTC(), "updated_at": time.Now().UTC()}}

	result, err := collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return apperr.Dependency(err, "db error marking listing %s sold", listingID.String())
	}
	if result.MatchedCount == 0 {
		var listing models.Listing
		checkErr := collection.FindOne(ctx, bson.M{"_id": listingID}).Decode(&listing)
		if errors.Is(checkErr, mongo.ErrNoDocuments) {
			return apperr.NotFound("listing %s not found", listingID.String())
		}
		if checkErr != nil {
			return apperr.Dependency(checkErr, "error re-reading listing %s", listingID.String())
		}
		// Already stamped; nothing to do.
	}
	return nil
}

// AddImage appends a processed image key to the listing, called by the
// image worker after normalization.
func (s *listingService) AddImage(ctx context.Context, listingID utils.SixID, imageKey string) error {
	collection := s.db.Collection(db.ListingsCollection)

	filter := bson.M{"_id": listingID, "deleted": false}
	update := bson.M{
		"$addToSet": bson.M{"images": imageKey},
		"$set":      bson.M{"updated_at": time.Now().UTC()},
	}

	result, err := collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return apperr.Dependency(err, "db error adding image %s to listing %s", imageKey, listingID.String())
	}
	if result.MatchedCount == 0 {
		return apperr.NotFound("listing %s not found", listingID.String())
	}
	return nil
}
