package services

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/SleshGG/sipkoviste.cz-sub000/internal/apperr"
	"github.com/SleshGG/sipkoviste.cz-sub000/internal/config"
	"github.com/SleshGG/sipkoviste.cz-sub000/internal/db"
	"github.com/SleshGG/sipkoviste.cz-sub000/internal/email"
	"github.com/SleshGG/sipkoviste.cz-sub000/internal/models"
	"github.com/SleshGG/sipkoviste.cz-sub000/internal/realtime"
	"github.com/SleshGG/sipkoviste.cz-sub000/internal/tasks"
	"github.com/SleshGG/sipkoviste.cz-sub000/internal/utils"
)

// INegotiationService mediates the message sequence that can turn a listing
// view into a confirmed sale.
type INegotiationService interface {
	SendQuestion(ctx context.Context, listingID, senderID, receiverID utils.SixID, text string) (*models.Message, error)
	SendBuyIntent(ctx context.Context, listingID, buyerID utils.SixID) (*models.Message, error)
	SendOffer(ctx context.Context, listingID, buyerID utils.SixID, amount models.Price) (*models.Message, error)
	RespondToOffer(ctx context.Context, offerID, responderID utils.SixID, accept bool) (*models.Message, error)
	SendCounterOffer(ctx context.Context, offerID, responderID utils.SixID, newAmount models.Price) (*models.Message, error)
	ConfirmSale(ctx context.Context, listingID, buyerID, sellerID, confirmingActorID utils.SixID) (*models.ConfirmedSale, error)
	GetSaleStatus(ctx context.Context, listingID, requesterID, counterpartID utils.SixID) (*models.SaleStatus, error)
	ListConversations(ctx context.Context, userID utils.SixID) ([]models.Conversation, error)
	ListMessages(ctx context.Context, userID, counterpartID, listingID utils.SixID) ([]models.Message, error)
	MarkRead(ctx context.Context, userID, counterpartID, listingID utils.SixID) (int64, error)
}

// negotiationService implements INegotiationService.
type negotiationService struct {
	db             *mongo.Database
	cfg            *config.Config
	listingService IListingService
	taskClient     tasks.Enqueuer
	publisher      *realtime.Publisher
}

// NewNegotiationService creates a new NegotiationService.
func NewNegotiationService(database *mongo.Database, cfg *config.Config, listingService IListingService, taskClient tasks.Enqueuer, publisher *realtime.Publisher) INegotiationService {
	return &negotiationService{
		db:             database,
		cfg:            cfg,
		listingService: listingService,
		taskClient:     taskClient,
		publisher:      publisher,
	}
}

// findUser loads a live user document for notification routing.
func (s *negotiationService) findUser(ctx context.Context, userID utils.SixID) (*models.User, error) {
	var user models.User
	err := s.db.Collection(db.UsersCollection).FindOne(ctx, bson.M{"_id": userID, "deleted": false}).Decode(&user)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, apperr.NotFound("user %s not found", userID.String())
		}
		return nil, apperr.Dependency(err, "error finding user %s", userID.String())
	}
	return &user, nil
}

// notifyByEmail enqueues a notification email for the recipient, gated by
// their preferences. Failures are logged and swallowed; notification is
// not part of the consistency boundary.
func (s *negotiationService) notifyByEmail(ctx context.Context, recipientID utils.SixID, templateID string, data map[string]interface{}, wanted func(models.NotificationPreferences) bool) {
	recipient, err := s.findUser(ctx, recipientID)
	if err != nil {
		log.Printf("Notification skipped, cannot load recipient %s: %v", recipientID.String(), err)
		return
	}
	if !wanted(recipient.Notify) {
		return
	}
	task, err := tasks.NewEmailTask(recipient.Email, templateID, data)
	if err != nil {
		log.Printf("Notification skipped, cannot build email task for %s: %v", recipientID.String(), err)
		return
	}
	if s.taskClient == nil {
		return
	}
	if _, err := s.taskClient.EnqueueContext(ctx, task); err != nil {
		log.Printf("Failed to enqueue %s email for %s: %v", templateID, recipientID.String(), err)
	}
}

// publishEvent pushes a realtime conversation event, best-effort.
func (s *negotiationService) publishEvent(ctx context.Context, a, b utils.SixID, eventType string, listingID utils.SixID, payload interface{}) {
	if s.publisher == nil {
		return
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		log.Printf("Failed to marshal %s event payload: %v", eventType, err)
		return
	}
	s.publisher.Publish(ctx, a, b, realtime.Event{
		Type:      eventType,
		ListingID: listingID.String(),
		Payload:   raw,
		At:        time.Now().UTC(),
	})
}

// insertMessage persists a message with a listing snapshot so the
// conversation stays readable after the listing is removed.
func (s *negotiationService) insertMessage(ctx context.Context, msg *models.Message, listing *models.Listing) (*models.Message, error) {
	msg.ListingID = &listing.ID
	msg.Listing = &models.ListingSnapshot{ID: listing.ID, Name: listing.Name}
	msg.CreatedAt = time.Now().UTC()

	collection := s.db.Collection(db.MessagesCollection)
	operation := func() error {
		msg.GenID()
		_, insertErr := collection.InsertOne(ctx, msg)
		return insertErr
	}
	if err := db.Try(operation); err != nil {
		return nil, apperr.Dependency(err, "failed to insert message from %s", msg.SenderID.String())
	}
	return msg, nil
}

func (s *negotiationService) listingURL(listingID utils.SixID) string {
	return s.cfg.BaseURL + "/listing/" + listingID.String()
}

// conversationURL points the recipient at their thread with the
// counterpart about one listing.
func (s *negotiationService) conversationURL(counterpartID, listingID utils.SixID) string {
	return s.cfg.BaseURL + "/messages/" + counterpartID.String() + "/" + listingID.String()
}

// SendQuestion creates a question message in either direction of a
// conversation.
func (s *negotiationService) SendQuestion(ctx context.Context, listingID, senderID, receiverID utils.SixID, text string) (*models.Message, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, apperr.Validation("message text is required")
	}
	if senderID == receiverID {
		return nil, apperr.Validation("cannot message yourself")
	}

	listing, err := s.listingService.FindListingByID(ctx, listingID)
	if err != nil {
		return nil, err
	}

	sender, err := s.findUser(ctx, senderID)
	if err != nil {
		return nil, err
	}

	msg, err := s.insertMessage(ctx, &models.Message{
		SenderID:   senderID,
		ReceiverID: receiverID,
		Body:       text,
		Kind:       models.MessageKindQuestion,
	}, listing)
	if err != nil {
		return nil, err
	}

	s.notifyByEmail(ctx, receiverID, email.TemplateQuestionReceived, map[string]interface{}{
		"SenderName":      sender.Name,
		"ListingName":     listing.Name,
		"ListingURL":      s.listingURL(listing.ID),
		"ConversationURL": s.conversationURL(senderID, listing.ID),
		"Body":            text,
	}, func(n models.NotificationPreferences) bool { return n.Question })
	s.publishEvent(ctx, senderID, receiverID, realtime.EventMessageNew, listing.ID, msg)

	return msg, nil
}

// SendBuyIntent records that the buyer wants to proceed at the asking
// price. It never creates the sale itself; confirmation stays an explicit
// seller step.
func (s *negotiationService) SendBuyIntent(ctx context.Context, listingID, buyerID utils.SixID) (*models.Message, error) {
	listing, err := s.listingService.FindListingByID(ctx, listingID)
	if err != nil {
		return nil, err
	}
	if listing.SellerID == buyerID {
		return nil, apperr.Validation("cannot buy your own listing")
	}
	if listing.Sold() {
		return nil, apperr.Conflict("listing %s has already been sold", listingID.String())
	}

	buyer, err := s.findUser(ctx, buyerID)
	if err != nil {
		return nil, err
	}

	msg, err := s.insertMessage(ctx, &models.Message{
		SenderID:   buyerID,
		ReceiverID: listing.SellerID,
		Kind:       models.MessageKindBuyIntent,
	}, listing)
	if err != nil {
		return nil, err
	}

	s.notifyByEmail(ctx, listing.SellerID, email.TemplateBuyIntent, map[string]interface{}{
		"SenderName":      buyer.Name,
		"ListingName":     listing.Name,
		"ListingURL":      s.listingURL(listing.ID),
		"ConversationURL": s.conversationURL(buyerID, listing.ID),
	}, func(n models.NotificationPreferences) bool { return n.Sale })
	s.publishEvent(ctx, buyerID, listing.SellerID, realtime.EventMessageNew, listing.ID, msg)

	return msg, nil
}

// SendOffer creates a pending offer from the buyer to the seller.
func (s *negotiationService) SendOffer(ctx context.Context, listingID, buyerID utils.SixID, amount models.Price) (*models.Message, error) {
	if amount.Value <= 0 {
		return nil, apperr.Validation("offer amount must be positive")
	}

	listing, err := s.listingService.FindListingByID(ctx, listingID)
	if err != nil {
		return nil, err
	}
	if !listing.Negotiable {
		return nil, apperr.Validation("listing %s is not negotiable", listingID.String())
	}
	if listing.SellerID == buyerID {
		return nil, apperr.Validation("cannot make an offer on your own listing")
	}
	if listing.Sold() {
		return nil, apperr.Conflict("listing %s has already been sold", listingID.String())
	}
	if amount.CurrencyCode == "" {
		amount.CurrencyCode = listing.Price.CurrencyCode
	}

	buyer, err := s.findUser(ctx, buyerID)
	if err != nil {
		return nil, err
	}

	msg, err := s.insertMessage(ctx, &models.Message{
		SenderID:    buyerID,
		ReceiverID:  listing.SellerID,
		Kind:        models.MessageKindOffer,
		OfferAmount: &amount,
		OfferStatus: models.OfferPending,
	}, listing)
	if err != nil {
		return nil, err
	}

	s.notifyByEmail(ctx, listing.SellerID, email.TemplateOfferReceived, map[string]interface{}{
		"SenderName":      buyer.Name,
		"ListingName":     listing.Name,
		"ListingURL":      s.listingURL(listing.ID),
		"ConversationURL": s.conversationURL(buyerID, listing.ID),
		"Amount":          amount.Value,
		"Currency":        amount.CurrencyCode,
	}, func(n models.NotificationPreferences) bool { return n.Offer })
	s.publishEvent(ctx, buyerID, listing.SellerID, realtime.EventMessageNew, listing.ID, msg)

	return msg, nil
}

// findOffer loads an offer message by ID.
func (s *negotiationService) findOffer(ctx context.Context, offerID utils.SixID) (*models.Message, error) {
	var offer models.Message
	err := s.db.Collection(db.MessagesCollection).FindOne(ctx, bson.M{"_id": offerID, "kind": models.MessageKindOffer}).Decode(&offer)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, apperr.NotFound("offer %s not found", offerID.String())
		}
		return nil, apperr.Dependency(err, "error finding offer %s", offerID.String())
	}
	return &offer, nil
}

// casOfferStatus moves one pending offer to a terminal status. The filter
// encodes every precondition, so two racing responders resolve to exactly
// one winner; MatchedCount==0 is re-read to classify the failure.
func (s *negotiationService) casOfferStatus(ctx context.Context, offerID, responderID utils.SixID, to models.OfferStatus) error {
	collection := s.db.Collection(db.MessagesCollection)

	filter := bson.M{
		"_id":          offerID,
		"kind":         models.MessageKindOffer,
		"offer_status": models.OfferPending,
		"receiver_id":  responderID,
	}
	update := bson.M{"$set": bson.M{"offer_status": to}}

	result, err := collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return apperr.Dependency(err, "db error updating offer %s", offerID.String())
	}
	if result.MatchedCount == 0 {
		offer, findErr := s.findOffer(ctx, offerID)
		if findErr != nil {
			return findErr
		}
		if offer.ReceiverID != responderID {
			return apperr.Authorization("only the receiver of an offer may respond to it")
		}
		return apperr.Conflict("this offer was already answered")
	}
	return nil
}

// RespondToOffer accepts or rejects a pending offer. The responder must be
// the original receiver. Accepting also confirms the sale.
func (s *negotiationService) RespondToOffer(ctx context.Context, offerID, responderID utils.SixID, accept bool) (*models.Message, error) {
	offer, err := s.findOffer(ctx, offerID)
	if err != nil {
		return nil, err
	}
	if offer.ListingID == nil {
		return nil, apperr.Conflict("offer %s has no listing reference", offerID.String())
	}

	newStatus := models.OfferRejected
	if accept {
		newStatus = models.OfferAccepted
	}
	if err := s.casOfferStatus(ctx, offerID, responderID, newStatus); err != nil {
		return nil, err
	}
	offer.OfferStatus = newStatus

	listing, err := s.listingService.FindListingByID(ctx, *offer.ListingID)
	if err != nil {
		return nil, err
	}
	responder, err := s.findUser(ctx, responderID)
	if err != nil {
		return nil, err
	}

	templateID := email.TemplateOfferRejected
	if accept {
		templateID = email.TemplateOfferAccepted
	}
	data := map[string]interface{}{
		"SenderName":      responder.Name,
		"ListingName":     listing.Name,
		"ListingURL":      s.listingURL(listing.ID),
		"ConversationURL": s.conversationURL(responderID, listing.ID),
	}
	if offer.OfferAmount != nil {
		data["Amount"] = offer.OfferAmount.Value
		data["Currency"] = offer.OfferAmount.CurrencyCode
	}
	s.notifyByEmail(ctx, offer.SenderID, templateID, data,
		func(n models.NotificationPreferences) bool { return n.Offer })
	s.publishEvent(ctx, offer.SenderID, offer.ReceiverID, realtime.EventOfferUpdated, listing.ID, offer)

	if accept {
		// Acceptance implies the sale: the buyer is whichever party is
		// not the seller.
		buyerID := offer.SenderID
		if buyerID == listing.SellerID {
			buyerID = offer.ReceiverID
		}
		if _, err := s.ConfirmSale(ctx, listing.ID, buyerID, listing.SellerID, responderID); err != nil {
			return nil, err
		}
	}

	return offer, nil
}

// SendCounterOffer rejects the original pending offer and creates a new
// pending offer in the reverse direction with the new amount. The CAS on
// the original is the atomicity gate; negotiation can go back and forth
// without limit.
func (s *negotiationService) SendCounterOffer(ctx context.Context, offerID, responderID utils.SixID, newAmount models.Price) (*models.Message, error) {
	if newAmount.Value <= 0 {
		return nil, apperr.Validation("offer amount must be positive")
	}

	offer, err := s.findOffer(ctx, offerID)
	if err != nil {
		return nil, err
	}
	if offer.ListingID == nil {
		return nil, apperr.Conflict("offer %s has no listing reference", offerID.String())
	}
	if newAmount.CurrencyCode == "" && offer.OfferAmount != nil {
		newAmount.CurrencyCode = offer.OfferAmount.CurrencyCode
	}

	if err := s.casOfferStatus(ctx, offerID, responderID, models.OfferRejected); err != nil {
		return nil, err
	}

	listing, err := s.listingService.FindListingByID(ctx, *offer.ListingID)
	if err != nil {
		return nil, err
	}
	responder, err := s.findUser(ctx, responderID)
	if err != nil {
		return nil, err
	}

	counter, err := s.insertMessage(ctx, &models.Message{
		SenderID:    responderID,
		ReceiverID:  offer.SenderID,
		Kind:        models.MessageKindOffer,
		OfferAmount: &newAmount,
		OfferStatus: models.OfferPending,
	}, listing)
	if err != nil {
		return nil, err
	}

	s.notifyByEmail(ctx, offer.SenderID, email.TemplateCounterOffer, map[string]interface{}{
		"SenderName":      responder.Name,
		"ListingName":     listing.Name,
		"ListingURL":      s.listingURL(listing.ID),
		"ConversationURL": s.conversationURL(responderID, listing.ID),
		"Amount":          newAmount.Value,
		"Currency":        newAmount.CurrencyCode,
	}, func(n models.NotificationPreferences) bool { return n.Offer })
	s.publishEvent(ctx, responderID, offer.SenderID, realtime.EventMessageNew, listing.ID, counter)

	return counter, nil
}

// ConfirmSale records a sale for the listing, exactly once. A repeat call
// with the same buyer returns the existing row unchanged; a different
// buyer gets a ConflictError. The unique index on listing_id is the
// arbiter between racing confirmations.
func (s *negotiationService) ConfirmSale(ctx context.Context, listingID, buyerID, sellerID, confirmingActorID utils.SixID) (*models.ConfirmedSale, error) {
	if buyerID == sellerID {
		return nil, apperr.Validation("buyer and seller cannot be the same user")
	}

	listing, err := s.listingService.FindListingByID(ctx, listingID)
	if err != nil {
		return nil, err
	}
	if listing.SellerID != sellerID {
		return nil, apperr.Authorization("listing %s does not belong to seller %s", listingID.String(), sellerID.String())
	}
	if confirmingActorID != buyerID && confirmingActorID != sellerID {
		return nil, apperr.Authorization("only the buyer or the seller may confirm a sale")
	}

	collection := s.db.Collection(db.SalesCollection)
	sale := &models.ConfirmedSale{
		Base:        models.NewBase(),
		ListingID:   listingID,
		BuyerID:     buyerID,
		SellerID:    sellerID,
		ConfirmedAt: time.Now().UTC(),
		ConfirmedBy: confirmingActorID,
	}

	_, err = collection.InsertOne(ctx, sale)
	if err != nil {
		if !mongo.IsDuplicateKeyError(err) {
			return nil, apperr.Dependency(err, "failed to insert confirmed sale for listing %s", listingID.String())
		}
		// Somebody got there first (possibly ourselves, retried).
		var existing models.ConfirmedSale
		findErr := collection.FindOne(ctx, bson.M{"listing_id": listingID}).Decode(&existing)
		if findErr != nil {
			return nil, apperr.Dependency(findErr, "failed to load existing sale for listing %s", listingID.String())
		}
		if existing.BuyerID == buyerID && existing.SellerID == sellerID {
			return &existing, nil
		}
		return nil, apperr.Conflict("listing %s has already been sold to another buyer", listingID.String())
	}

	if err := s.listingService.MarkSold(ctx, listingID, sale.ConfirmedAt); err != nil {
		// The sale row is the source of truth; the stamp is repaired on a
		// retried confirmation.
		log.Printf("Failed to stamp sold_at on listing %s after sale %s: %v", listingID.String(), sale.ID.String(), err)
	}

	counterpartID := buyerID
	if confirmingActorID == buyerID {
		counterpartID = sellerID
	}
	recipient := counterpartID
	s.notifyByEmail(ctx, recipient, email.TemplateSaleConfirmed, map[string]interface{}{
		"ListingName":     listing.Name,
		"ListingURL":      s.listingURL(listing.ID),
		"ConversationURL": s.conversationURL(confirmingActorID, listing.ID),
	}, func(n models.NotificationPreferences) bool { return n.Sale })
	s.publishEvent(ctx, buyerID, sellerID, realtime.EventSaleConfirmed, listing.ID, sale)

	return sale, nil
}

// GetSaleStatus reports where the requester stands against the counterpart
// for one listing: confirmed or not, review eligibility, and whether the
// listing went to somebody else.
func (s *negotiationService) GetSaleStatus(ctx context.Context, listingID, requesterID, counterpartID utils.SixID) (*models.SaleStatus, error) {
	var sale models.ConfirmedSale
	err := s.db.Collection(db.SalesCollection).FindOne(ctx, bson.M{"listing_id": listingID}).Decode(&sale)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return &models.SaleStatus{}, nil
		}
		return nil, apperr.Dependency(err, "error loading sale for listing %s", listingID.String())
	}

	status := &models.SaleStatus{}
	pairMatches := (sale.BuyerID == requesterID && sale.SellerID == counterpartID) ||
		(sale.SellerID == requesterID && sale.BuyerID == counterpartID)
	if !pairMatches {
		status.SoldToOther = true
		return status, nil
	}

	status.Confirmed = true
	status.Sale = &sale

	reviewCount, err := s.db.Collection(db.ReviewsCollection).CountDocuments(ctx, bson.M{
		"author_id":  requesterID,
		"subject_id": counterpartID,
		"listing_id": listingID,
	})
	if err != nil {
		return nil, apperr.Dependency(err, "error counting reviews for listing %s", listingID.String())
	}
	status.AlreadyReviewed = reviewCount > 0
	status.CanReview = !status.AlreadyReviewed

	return status, nil
}

// ListConversations projects the inbox: the latest message per
// counterpart+listing pair with an unread counter, newest first.
func (s *negotiationService) ListConversations(ctx context.Context, userID utils.SixID) ([]models.Conversation, error) {
	collection := s.db.Collection(db.MessagesCollection)

	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"$or": bson.A{
			bson.M{"sender_id": userID},
			bson.M{"receiver_id": userID},
		}}}},
		{{Key: "$addFields", Value: bson.M{"counterpart_id": bson.M{"$cond": bson.A{
			bson.M{"$eq": bson.A{"$sender_id", userID}},
			"$receiver_id",
			"$sender_id",
		}}}}},
		{{Key: "$sort", Value: bson.D{{Key: "created_at", Value: -1}}}},
		{{Key: "$group", Value: bson.M{
			"_id":          bson.M{"counterpart": "$counterpart_id", "listing": "$listing_id"},
			"last_message": bson.M{"$first": "$$ROOT"},
			"listing":      bson.M{"$first": "$listing"},
			"unread_count": bson.M{"$sum": bson.M{"$cond": bson.A{
				bson.M{"$and": bson.A{
					bson.M{"$eq": bson.A{"$receiver_id", userID}},
					bson.M{"$eq": bson.A{"$read", false}},
				}},
				1,
				0,
			}}},
		}}},
		{{Key: "$project", Value: bson.M{
			"_id":            0,
			"counterpart_id": "$_id.counterpart",
			"listing":        1,
			"last_message":   1,
			"unread_count":   1,
		}}},
		{{Key: "$sort", Value: bson.D{{Key: "last_message.created_at", Value: -1}}}},
	}

	cursor, err := collection.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, apperr.Dependency(err, "failed to aggregate conversations for user %s", userID.String())
	}
	defer cursor.Close(ctx)

	var conversations []models.Conversation
	if err = cursor.All(ctx, &conversations); err != nil {
		return nil, apperr.Dependency(err, "failed to decode conversations for user %s", userID.String())
	}
	return conversations, nil
}

// conversationFilter matches both directions of one counterpart+listing
// thread.
func conversationFilter(userID, counterpartID, listingID utils.SixID) bson.M {
	return bson.M{
		"listing_id": listingID,
		"$or": bson.A{
			bson.M{"sender_id": userID, "receiver_id": counterpartID},
			bson.M{"sender_id": counterpartID, "receiver_id": userID},
		},
	}
}

// ListMessages returns one conversation in write-timestamp order.
func (s *negotiationService) ListMessages(ctx context.Context, userID, counterpartID, listingID utils.SixID) ([]models.Message, error) {
	collection := s.db.Collection(db.MessagesCollection)
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}})

	cursor, err := collection.Find(ctx, conversationFilter(userID, counterpartID, listingID), opts)
	if err != nil {
		return nil, apperr.Dependency(err, "failed to load conversation for user %s", userID.String())
	}
	defer cursor.Close(ctx)

	var messages []models.Message
	if err = cursor.All(ctx, &messages); err != nil {
		return nil, apperr.Dependency(err, "failed to decode conversation for user %s", userID.String())
	}
	return messages, nil
}

// MarkRead marks every unread message the user received in one
// conversation as read and returns how many were flipped.
func (s *negotiationService) MarkRead(ctx context.Context, userID, counterpartID, listingID utils.SixID) (int64, error) {
	collection := s.db.Collection(db.MessagesCollection)

	filter := bson.M{
		"listing_id":  listingID,
		"sender_id":   counterpartID,
		"receiver_id": userID,
		"read":        false,
	}
	update := bson.M{"$set": bson.M{"read": true}}

	result, err := collection.UpdateMany(ctx, filter, update)
	if err != nil {
		return 0, apperr.Dependency(err, "failed to mark conversation read for user %s", userID.String())
	}
	return result.ModifiedCount, nil
}
