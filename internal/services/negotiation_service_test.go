package services

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/SleshGG/sipkoviste.cz-sub000/internal/apperr"
	"github.com/SleshGG/sipkoviste.cz-sub000/internal/email"
	"github.com/SleshGG/sipkoviste.cz-sub000/internal/models"
	"github.com/SleshGG/sipkoviste.cz-sub000/internal/tasks"
)

// captureEnqueuer records enqueued tasks so tests can inspect the email
// payloads the services actually build.
type captureEnqueuer struct {
	mu    sync.Mutex
	tasks []*asynq.Task
}

func (e *captureEnqueuer) EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.tasks = append(e.tasks, task)
	return &asynq.TaskInfo{ID: "captured"}, nil
}

func (e *captureEnqueuer) emailPayloads(t *testing.T) []tasks.EmailTaskPayload {
	t.Helper()
	e.mu.Lock()
	defer e.mu.Unlock()
	var payloads []tasks.EmailTaskPayload
	for _, task := range e.tasks {
		if task.Type() != tasks.TypeEmailDelivery {
			continue
		}
		var payload tasks.EmailTaskPayload
		require.NoError(t, json.Unmarshal(task.Payload(), &payload))
		payloads = append(payloads, payload)
	}
	return payloads
}

func setupNegotiationTest(t *testing.T, dbName string) (*mongo.Database, IListingService, INegotiationService) {
	database := setupListingTestDB(t, dbName)
	cfg := testConfig()
	listingSvc := NewListingService(database, cfg)
	negotiationSvc := NewNegotiationService(database, cfg, listingSvc, nil, nil)
	return database, listingSvc, negotiationSvc
}

func czk(value float64) models.Price {
	return models.Price{Value: value, CurrencyCode: "CZK"}
}

func TestSendQuestion(t *testing.T) {
	database, listingSvc, svc := setupNegotiationTest(t, "testdb_neg_question")
	ctx := context.Background()

	sellerID := insertTestUser(t, database, "seller")
	buyerID := insertTestUser(t, database, "buyer")
	listing, err := listingSvc.CreateListing(ctx, sellerID, dartsListingInput())
	require.NoError(t, err)

	msg, err := svc.SendQuestion(ctx, listing.ID, buyerID, sellerID, "Are the tips original?")
	require.NoError(t, err)
	assert.Equal(t, models.MessageKindQuestion, msg.Kind)
	assert.Equal(t, buyerID, msg.SenderID)
	assert.Equal(t, sellerID, msg.ReceiverID)
	require.NotNil(t, msg.Listing)
	assert.Equal(t, listing.Name, msg.Listing.Name)
	assert.False(t, msg.Read)

	var validationErr *apperr.ValidationError
	_, err = svc.SendQuestion(ctx, listing.ID, buyerID, sellerID, "   ")
	assert.ErrorAs(t, err, &validationErr)

	_, err = svc.SendQuestion(ctx, listing.ID, buyerID, buyerID, "hello me")
	assert.ErrorAs(t, err, &validationErr)
}

func TestSendOfferValidation(t *testing.T) {
	database, listingSvc, svc := setupNegotiationTest(t, "testdb_neg_offer_validation")
	ctx := context.Background()

	sellerID := insertTestUser(t, database, "seller")
	buyerID := insertTestUser(t, database, "buyer")

	input := dartsListingInput()
	input.Negotiable = false
	fixed, err := listingSvc.CreateListing(ctx, sellerID, input)
	require.NoError(t, err)

	var validationErr *apperr.ValidationError
	_, err = svc.SendOffer(ctx, fixed.ID, buyerID, czk(500))
	assert.ErrorAs(t, err, &validationErr, "non-negotiable listings take no offers")

	negotiable, err := listingSvc.CreateListing(ctx, sellerID, dartsListingInput())
	require.NoError(t, err)

	_, err = svc.SendOffer(ctx, negotiable.ID, buyerID, czk(0))
	assert.ErrorAs(t, err, &validationErr)

	_, err = svc.SendOffer(ctx, negotiable.ID, sellerID, czk(500))
	assert.ErrorAs(t, err, &validationErr, "sellers cannot bid on their own listing")

	offer, err := svc.SendOffer(ctx, negotiable.ID, buyerID, czk(500))
	require.NoError(t, err)
	assert.Equal(t, models.OfferPending, offer.OfferStatus)
	assert.Equal(t, 500.0, offer.OfferAmount.Value)
}

func TestRespondToOffer_AuthorizationAndState(t *testing.T) {
	database, listingSvc, svc := setupNegotiationTest(t, "testdb_neg_respond")
	ctx := context.Background()

	sellerID := insertTestUser(t, database, "seller")
	buyerID := insertTestUser(t, database, "buyer")
	strangerID := insertTestUser(t, database, "stranger")
	listing, err := listingSvc.CreateListing(ctx, sellerID, dartsListingInput())
	require.NoError(t, err)

	offer, err := svc.SendOffer(ctx, listing.ID, buyerID, czk(500))
	require.NoError(t, err)

	var authErr *apperr.AuthorizationError
	_, err = svc.RespondToOffer(ctx, offer.ID, strangerID, true)
	assert.ErrorAs(t, err, &authErr)

	_, err = svc.RespondToOffer(ctx, offer.ID, buyerID, true)
	assert.ErrorAs(t, err, &authErr, "the offer sender cannot answer their own offer")

	rejected, err := svc.RespondToOffer(ctx, offer.ID, sellerID, false)
	require.NoError(t, err)
	assert.Equal(t, models.OfferRejected, rejected.OfferStatus)

	var conflictErr *apperr.ConflictError
	_, err = svc.RespondToOffer(ctx, offer.ID, sellerID, true)
	assert.ErrorAs(t, err, &conflictErr, "rejected is terminal")
}

// Scenario: buyer offers 500 on a listing priced 800, seller counters with
// 650, buyer accepts. The accept confirms the sale and the listing leaves
// the marketplace.
func TestCounterOfferChainToSale(t *testing.T) {
	database, listingSvc, svc := setupNegotiationTest(t, "testdb_neg_counter_chain")
	ctx := context.Background()

	sellerID := insertTestUser(t, database, "seller")
	buyerID := insertTestUser(t, database, "buyer")

	input := dartsListingInput()
	input.Price = czk(800)
	listing, err := listingSvc.CreateListing(ctx, sellerID, input)
	require.NoError(t, err)

	offer, err := svc.SendOffer(ctx, listing.ID, buyerID, czk(500))
	require.NoError(t, err)

	counter, err := svc.SendCounterOffer(ctx, offer.ID, sellerID, czk(650))
	require.NoError(t, err)
	assert.Equal(t, models.OfferPending, counter.OfferStatus)
	assert.Equal(t, sellerID, counter.SenderID)
	assert.Equal(t, buyerID, counter.ReceiverID)
	assert.Equal(t, 650.0, counter.OfferAmount.Value)

	original, err := svc.(*negotiationService).findOffer(ctx, offer.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OfferRejected, original.OfferStatus)

	accepted, err := svc.RespondToOffer(ctx, counter.ID, buyerID, true)
	require.NoError(t, err)
	assert.Equal(t, models.OfferAccepted, accepted.OfferStatus)

	// The sale is recorded for the buyer even though the accepted offer
	// was sent by the seller.
	var sale models.ConfirmedSale
	err = database.Collection("confirmed_sales").FindOne(ctx, bson.M{"listing_id": listing.ID}).Decode(&sale)
	require.NoError(t, err)
	assert.Equal(t, buyerID, sale.BuyerID)
	assert.Equal(t, sellerID, sale.SellerID)

	sold, err := listingSvc.FindListingByID(ctx, listing.ID)
	require.NoError(t, err)
	assert.True(t, sold.Sold())

	results, _, err := listingSvc.SearchListings(ctx, SearchParams{})
	require.NoError(t, err)
	assert.Empty(t, results, "sold listings leave the marketplace")
}

func TestCounterOfferOnDecidedOffer(t *testing.T) {
	database, listingSvc, svc := setupNegotiationTest(t, "testdb_neg_counter_decided")
	ctx := context.Background()

	sellerID := insertTestUser(t, database, "seller")
	buyerID := insertTestUser(t, database, "buyer")
	listing, err := listingSvc.CreateListing(ctx, sellerID, dartsListingInput())
	require.NoError(t, err)

	offer, err := svc.SendOffer(ctx, listing.ID, buyerID, czk(500))
	require.NoError(t, err)

	_, err = svc.RespondToOffer(ctx, offer.ID, sellerID, false)
	require.NoError(t, err)

	var conflictErr *apperr.ConflictError
	_, err = svc.SendCounterOffer(ctx, offer.ID, sellerID, czk(650))
	assert.ErrorAs(t, err, &conflictErr)
}

// Two racing responders on the same pending offer: exactly one wins.
func TestRacingOfferResponses(t *testing.T) {
	database, listingSvc, svc := setupNegotiationTest(t, "testdb_neg_racing_accept")
	ctx := context.Background()

	sellerID := insertTestUser(t, database, "seller")
	buyerID := insertTestUser(t, database, "buyer")
	listing, err := listingSvc.CreateListing(ctx, sellerID, dartsListingInput())
	require.NoError(t, err)

	offer, err := svc.SendOffer(ctx, listing.ID, buyerID, czk(500))
	require.NoError(t, err)

	const attempts = 8
	errs := make([]error, attempts)
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.RespondToOffer(ctx, offer.ID, sellerID, true)
		}(i)
	}
	wg.Wait()

	successes := 0
	conflicts := 0
	for _, err := range errs {
		if err == nil {
			successes++
			continue
		}
		var conflictErr *apperr.ConflictError
		if assert.ErrorAs(t, err, &conflictErr) {
			conflicts++
		}
	}
	assert.Equal(t, 1, successes)
	assert.Equal(t, attempts-1, conflicts)
}

func TestConfirmSaleIdempotentAndExclusive(t *testing.T) {
	database, listingSvc, svc := setupNegotiationTest(t, "testdb_neg_confirm_sale")
	ctx := context.Background()

	sellerID := insertTestUser(t, database, "seller")
	buyerID := insertTestUser(t, database, "buyer")
	rivalID := insertTestUser(t, database, "rival")

	input := dartsListingInput()
	input.Negotiable = false
	listing, err := listingSvc.CreateListing(ctx, sellerID, input)
	require.NoError(t, err)

	first, err := svc.ConfirmSale(ctx, listing.ID, buyerID, sellerID, sellerID)
	require.NoError(t, err)

	// Identical call returns the same row, and the stamp does not move.
	second, err := svc.ConfirmSale(ctx, listing.ID, buyerID, sellerID, sellerID)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, first.ConfirmedAt.Unix(), second.ConfirmedAt.Unix())

	var conflictErr *apperr.ConflictError
	_, err = svc.ConfirmSale(ctx, listing.ID, rivalID, sellerID, sellerID)
	assert.ErrorAs(t, err, &conflictErr, "a listing sells to exactly one buyer")

	// The losing buyer learns why they cannot proceed.
	status, err := svc.GetSaleStatus(ctx, listing.ID, rivalID, sellerID)
	require.NoError(t, err)
	assert.True(t, status.SoldToOther)
	assert.False(t, status.Confirmed)

	// The winning buyer may review.
	status, err = svc.GetSaleStatus(ctx, listing.ID, buyerID, sellerID)
	require.NoError(t, err)
	assert.True(t, status.Confirmed)
	assert.True(t, status.CanReview)
	assert.False(t, status.SoldToOther)
}

// Scenario: two buyers race ConfirmSale on the same listing. Exactly one
// sale row exists afterwards.
func TestRacingConfirmSale(t *testing.T) {
	database, listingSvc, svc := setupNegotiationTest(t, "testdb_neg_racing_sale")
	ctx := context.Background()

	sellerID := insertTestUser(t, database, "seller")
	buyerA := insertTestUser(t, database, "buyer-a")
	buyerB := insertTestUser(t, database, "buyer-b")

	input := dartsListingInput()
	input.Negotiable = false
	listing, err := listingSvc.CreateListing(ctx, sellerID, input)
	require.NoError(t, err)

	var wg sync.WaitGroup
	var errA, errB error
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, errA = svc.ConfirmSale(ctx, listing.ID, buyerA, sellerID, buyerA)
	}()
	go func() {
		defer wg.Done()
		_, errB = svc.ConfirmSale(ctx, listing.ID, buyerB, sellerID, buyerB)
	}()
	wg.Wait()

	var conflictErr *apperr.ConflictError
	if errA == nil {
		assert.ErrorAs(t, errB, &conflictErr)
	} else {
		assert.NoError(t, errB)
		assert.ErrorAs(t, errA, &conflictErr)
	}

	count, err := database.Collection("confirmed_sales").CountDocuments(ctx, bson.M{"listing_id": listing.ID})
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)
}

func TestConversationReads(t *testing.T) {
	database, listingSvc, svc := setupNegotiationTest(t, "testdb_neg_conversations")
	ctx := context.Background()

	sellerID := insertTestUser(t, database, "seller")
	buyerID := insertTestUser(t, database, "buyer")
	otherID := insertTestUser(t, database, "other")

	listing, err := listingSvc.CreateListing(ctx, sellerID, dartsListingInput())
	require.NoError(t, err)
	listing2, err := listingSvc.CreateListing(ctx, sellerID, dartsListingInput())
	require.NoError(t, err)

	_, err = svc.SendQuestion(ctx, listing.ID, buyerID, sellerID, "Is shipping included?")
	require.NoError(t, err)
	_, err = svc.SendQuestion(ctx, listing.ID, sellerID, buyerID, "Yes, within CZ.")
	require.NoError(t, err)
	_, err = svc.SendQuestion(ctx, listing.ID, buyerID, sellerID, "Great, thanks.")
	require.NoError(t, err)
	_, err = svc.SendQuestion(ctx, listing2.ID, otherID, sellerID, "Still available?")
	require.NoError(t, err)

	conversations, err := svc.ListConversations(ctx, sellerID)
	require.NoError(t, err)
	require.Len(t, conversations, 2)
	// Newest thread first.
	assert.Equal(t, otherID, conversations[0].CounterpartID)
	assert.Equal(t, 1, conversations[0].UnreadCount)
	assert.Equal(t, buyerID, conversations[1].CounterpartID)
	assert.Equal(t, 2, conversations[1].UnreadCount, "only messages the seller received count")

	messages, err := svc.ListMessages(ctx, sellerID, buyerID, listing.ID)
	require.NoError(t, err)
	require.Len(t, messages, 3)
	assert.Equal(t, "Is shipping included?", messages[0].Body)
	assert.Equal(t, "Great, thanks.", messages[2].Body)

	flipped, err := svc.MarkRead(ctx, sellerID, buyerID, listing.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 2, flipped)

	conversations, err = svc.ListConversations(ctx, sellerID)
	require.NoError(t, err)
	for _, conv := range conversations {
		if conv.CounterpartID == buyerID {
			assert.Equal(t, 0, conv.UnreadCount)
		}
	}

	// Marking again is a no-op.
	flipped, err = svc.MarkRead(ctx, sellerID, buyerID, listing.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 0, flipped)
}

func TestBuyIntentOnSoldListing(t *testing.T) {
	database, listingSvc, svc := setupNegotiationTest(t, "testdb_neg_buy_intent")
	ctx := context.Background()

	sellerID := insertTestUser(t, database, "seller")
	buyerID := insertTestUser(t, database, "buyer")
	rivalID := insertTestUser(t, database, "rival")

	input := dartsListingInput()
	input.Negotiable = false
	listing, err := listingSvc.CreateListing(ctx, sellerID, input)
	require.NoError(t, err)

	intent, err := svc.SendBuyIntent(ctx, listing.ID, buyerID)
	require.NoError(t, err)
	assert.Equal(t, models.MessageKindBuyIntent, intent.Kind)
	assert.Equal(t, sellerID, intent.ReceiverID)

	_, err = svc.ConfirmSale(ctx, listing.ID, buyerID, sellerID, sellerID)
	require.NoError(t, err)

	var conflictErr *apperr.ConflictError
	_, err = svc.SendBuyIntent(ctx, listing.ID, rivalID)
	assert.ErrorAs(t, err, &conflictErr)
}

func TestNotificationEmailsRenderCompletely(t *testing.T) {
	database := setupListingTestDB(t, "testdb_neg_email_render")
	cfg := testConfig()
	enqueuer := &captureEnqueuer{}
	listingSvc := NewListingService(database, cfg)
	svc := NewNegotiationService(database, cfg, listingSvc, enqueuer, nil)
	ctx := context.Background()

	sellerID := insertTestUser(t, database, "seller")
	buyerID := insertTestUser(t, database, "buyer")
	listing, err := listingSvc.CreateListing(ctx, sellerID, dartsListingInput())
	require.NoError(t, err)

	_, err = svc.SendQuestion(ctx, listing.ID, buyerID, sellerID, "Do the points lock?")
	require.NoError(t, err)
	offer, err := svc.SendOffer(ctx, listing.ID, buyerID, czk(900))
	require.NoError(t, err)
	_, err = svc.RespondToOffer(ctx, offer.ID, sellerID, true)
	require.NoError(t, err)
	_, err = svc.ConfirmSale(ctx, listing.ID, buyerID, sellerID, sellerID)
	require.NoError(t, err)

	payloads := enqueuer.emailPayloads(t)
	require.Len(t, payloads, 4)

	// Every notification must render with the data map the service built:
	// a named sender in the subject where the template uses one, and no
	// dangling links.
	for _, payload := range payloads {
		subject, body, err := email.Render(payload.TemplateID, payload.Data)
		require.NoError(t, err, "template %s", payload.TemplateID)
		assert.NotContains(t, body, `href=""`, "template %s has an empty link", payload.TemplateID)
		assert.Contains(t, body, listing.Name, "template %s", payload.TemplateID)
		if payload.TemplateID == email.TemplateQuestionReceived ||
			payload.TemplateID == email.TemplateBuyIntent ||
			payload.TemplateID == email.TemplateOfferReceived {
			assert.Contains(t, subject+body, "buyer", "template %s should name the sender", payload.TemplateID)
		}
	}
}
