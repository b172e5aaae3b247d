package handlers_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/SleshGG/sipkoviste.cz-sub000/internal/api/handlers"
	"github.com/SleshGG/sipkoviste.cz-sub000/internal/apperr"
	"github.com/SleshGG/sipkoviste.cz-sub000/internal/auth"
	"github.com/SleshGG/sipkoviste.cz-sub000/internal/config"
	"github.com/SleshGG/sipkoviste.cz-sub000/internal/models"
	"github.com/SleshGG/sipkoviste.cz-sub000/internal/services"
	"github.com/SleshGG/sipkoviste.cz-sub000/internal/tasks"
	"github.com/SleshGG/sipkoviste.cz-sub000/internal/utils"
)

// --- Test Setup ---

type apiMocks struct {
	user        *MockUserService
	listing     *MockListingService
	negotiation *MockNegotiationService
	review      *MockReviewService
	favorite    *MockFavoriteService
	storage     *MockS3Storage
	tasks       *MockAsynqClient
}

func setupTestRouter() (*gin.Engine, *config.Config, *apiMocks) {
	gin.SetMode(gin.TestMode)
	cfg := &config.Config{
		JwtSecret:       "testsecret",
		JwtTTL:          time.Hour,
		DefaultCurrency: "CZK",
		BaseURL:         "https://sipkoviste.test",
	}
	m := &apiMocks{
		user:        new(MockUserService),
		listing:     new(MockListingService),
		negotiation: new(MockNegotiationService),
		review:      new(MockReviewService),
		favorite:    new(MockFavoriteService),
		storage:     new(MockS3Storage),
		tasks:       new(MockAsynqClient),
	}
	handler := handlers.NewJsonApiHandler(cfg, m.tasks,
		m.user, m.listing, m.negotiation, m.review, m.favorite, m.storage)
	r := gin.New()
	r.POST("/v1/api", handler.HandleRequest)
	return r, cfg, m
}

func postJSONAPI(router *gin.Engine, method string, argsJSON string, token string) *httptest.ResponseRecorder {
	reqBody := handlers.JsonApiRequest{Method: method}
	if argsJSON != "" {
		reqBody.Arguments = json.RawMessage(argsJSON)
	}
	jsonBody, _ := json.Marshal(reqBody)
	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", "/v1/api", bytes.NewBuffer(jsonBody))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	router.ServeHTTP(w, req)
	return w
}

func tokenFor(t *testing.T, cfg *config.Config, userID utils.SixID) string {
	t.Helper()
	token, err := auth.GenerateJWT(userID, false, cfg.JwtSecret, cfg.JwtTTL)
	assert.NoError(t, err)
	return token
}

// --- Tests ---

func TestJsonApiHandler_Ping(t *testing.T) {
	router, _, _ := setupTestRouter()

	w := postJSONAPI(router, "ping", "", "")

	assert.Equal(t, http.StatusOK, w.Code)
	var resp handlers.JsonApiResponse
	err := json.Unmarshal(w.Body.Bytes(), &resp)
	assert.NoError(t, err)
	assert.True(t, resp.Success)
	assert.Equal(t, "pong", resp.Data)
	assert.Empty(t, resp.Error)
}

func TestJsonApiHandler_UnknownMethod(t *testing.T) {
	router, _, _ := setupTestRouter()

	w := postJSONAPI(router, "definitelyNotAMethod", "", "")

	assert.Equal(t, http.StatusBadRequest, w.Code)
	var resp handlers.JsonApiResponse
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.False(t, resp.Success)
	assert.Contains(t, resp.Error, "Unknown method")
}

func TestJsonApiHandler_Register_Success(t *testing.T) {
	router, cfg, m := setupTestRouter()
	userID := utils.NewSixID()
	m.user.On("Register", mock.Anything, "Karel", "karel@example.com", "password123").
		Return(&models.User{Base: models.Base{ID: userID}, Name: "Karel"}, nil)

	w := postJSONAPI(router, "register",
		`[{"name":"Karel","email":"karel@example.com","password":"password123"}]`, "")

	assert.Equal(t, http.StatusOK, w.Code)
	var resp handlers.JsonApiResponse
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	authData, ok := resp.Data.(map[string]interface{})
	assert.True(t, ok, "Response data should be a map")
	assert.Equal(t, "Karel", authData["name"])
	assert.Equal(t, userID.String(), authData["id"])

	claims, jwtErr := auth.ValidateJWT(authData["token"].(string), cfg.JwtSecret)
	assert.NoError(t, jwtErr)
	assert.Equal(t, userID.String(), claims.UserID)
	m.user.AssertExpectations(t)
}

func TestJsonApiHandler_Register_DuplicateEmail(t *testing.T) {
	router, _, m := setupTestRouter()
	m.user.On("Register", mock.Anything, "Karel", "karel@example.com", "password123").
		Return(nil, apperr.Conflict("an account with this email already exists"))

	w := postJSONAPI(router, "register",
		`[{"name":"Karel","email":"karel@example.com","password":"password123"}]`, "")

	assert.Equal(t, http.StatusConflict, w.Code)
	var resp handlers.JsonApiResponse
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.False(t, resp.Success)
	assert.Contains(t, resp.Error, "already exists")
}

func TestJsonApiHandler_Login_BadCredentials(t *testing.T) {
	router, _, m := setupTestRouter()
	m.user.On("Login", mock.Anything, "karel@example.com", "wrong", "").
		Return(nil, apperr.Authorization("invalid email or password"))

	w := postJSONAPI(router, "login", `[{"email":"karel@example.com","password":"wrong"}]`, "")

	assert.Equal(t, http.StatusForbidden, w.Code)
	var resp handlers.JsonApiResponse
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.False(t, resp.Success)
	assert.Equal(t, "invalid email or password", resp.Error)
}

func TestJsonApiHandler_AuthRequired(t *testing.T) {
	router, _, _ := setupTestRouter()

	w := postJSONAPI(router, "createListing", `[{"name":"darts"}]`, "")

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	var resp handlers.JsonApiResponse
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.False(t, resp.Success)
	assert.Contains(t, resp.Error, "Authorization header required")
}

func TestJsonApiHandler_CreateListing_Success(t *testing.T) {
	router, cfg, m := setupTestRouter()
	sellerID := utils.NewSixID()
	listingID := utils.NewSixID()
	m.user.On("Touch", mock.Anything, sellerID).Return()
	m.listing.On("CreateListing", mock.Anything, sellerID, mock.MatchedBy(func(input services.ListingInput) bool {
		return input.Name == "Target Swiss Point 24g" && input.Category == models.CategorySteelTip
	})).Return(&models.Listing{Base: models.Base{ID: listingID}, Name: "Target Swiss Point 24g", SellerID: sellerID}, nil)

	w := postJSONAPI(router, "createListing",
		`[{"name":"Target Swiss Point 24g","category":"steel_tip","condition":"used","price":{"value":1200,"currency_code":"CZK"}}]`,
		tokenFor(t, cfg, sellerID))

	assert.Equal(t, http.StatusOK, w.Code)
	var resp handlers.JsonApiResponse
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	listingData, ok := resp.Data.(map[string]interface{})
	assert.True(t, ok)
	assert.Equal(t, listingID.String(), listingData["id"])
	m.listing.AssertExpectations(t)
}

func TestJsonApiHandler_RespondToOffer_Conflict(t *testing.T) {
	router, cfg, m := setupTestRouter()
	responderID := utils.NewSixID()
	offerID := utils.NewSixID()
	m.user.On("Touch", mock.Anything, responderID).Return()
	m.negotiation.On("RespondToOffer", mock.Anything, offerID, responderID, true).
		Return(nil, apperr.Conflict("this offer was already answered"))

	w := postJSONAPI(router, "respondToOffer",
		fmt.Sprintf(`[{"offer_id":"%s","accept":true}]`, offerID.String()),
		tokenFor(t, cfg, responderID))

	assert.Equal(t, http.StatusConflict, w.Code)
	var resp handlers.JsonApiResponse
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "this offer was already answered", resp.Error)
	m.negotiation.AssertExpectations(t)
}

func TestJsonApiHandler_SendOffer_Success(t *testing.T) {
	router, cfg, m := setupTestRouter()
	buyerID := utils.NewSixID()
	listingID := utils.NewSixID()
	msgID := utils.NewSixID()
	amount := models.Price{Value: 650, CurrencyCode: "CZK"}
	m.user.On("Touch", mock.Anything, buyerID).Return()
	m.negotiation.On("SendOffer", mock.Anything, listingID, buyerID, amount).
		Return(&models.Message{Base: models.Base{ID: msgID}, Kind: models.MessageKindOffer, OfferStatus: models.OfferPending}, nil)

	w := postJSONAPI(router, "sendOffer",
		fmt.Sprintf(`[{"listing_id":"%s","amount":{"value":650,"currency_code":"CZK"}}]`, listingID.String()),
		tokenFor(t, cfg, buyerID))

	assert.Equal(t, http.StatusOK, w.Code)
	var resp handlers.JsonApiResponse
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	msgData, ok := resp.Data.(map[string]interface{})
	assert.True(t, ok)
	assert.Equal(t, string(models.OfferPending), msgData["offer_status"])
	m.negotiation.AssertExpectations(t)
}

func TestJsonApiHandler_ConfirmSale_SellerNeedsBuyerID(t *testing.T) {
	router, cfg, m := setupTestRouter()
	sellerID := utils.NewSixID()
	listingID := utils.NewSixID()
	m.user.On("Touch", mock.Anything, sellerID).Return()
	m.listing.On("FindListingByID", mock.Anything, listingID).
		Return(&models.Listing{Base: models.Base{ID: listingID}, SellerID: sellerID}, nil)

	w := postJSONAPI(router, "confirmSale",
		fmt.Sprintf(`[{"listing_id":"%s"}]`, listingID.String()),
		tokenFor(t, cfg, sellerID))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	var resp handlers.JsonApiResponse
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Contains(t, resp.Error, "buyer_id is required")
	m.negotiation.AssertNotCalled(t, "ConfirmSale")
}

func TestJsonApiHandler_ConfirmSale_BuyerConfirms(t *testing.T) {
	router, cfg, m := setupTestRouter()
	sellerID := utils.NewSixID()
	buyerID := utils.NewSixID()
	listingID := utils.NewSixID()
	m.user.On("Touch", mock.Anything, buyerID).Return()
	m.listing.On("FindListingByID", mock.Anything, listingID).
		Return(&models.Listing{Base: models.Base{ID: listingID}, SellerID: sellerID}, nil)
	m.negotiation.On("ConfirmSale", mock.Anything, listingID, buyerID, sellerID, buyerID).
		Return(&models.ConfirmedSale{ListingID: listingID, BuyerID: buyerID, SellerID: sellerID}, nil)

	w := postJSONAPI(router, "confirmSale",
		fmt.Sprintf(`[{"listing_id":"%s"}]`, listingID.String()),
		tokenFor(t, cfg, buyerID))

	assert.Equal(t, http.StatusOK, w.Code)
	var resp handlers.JsonApiResponse
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	m.negotiation.AssertExpectations(t)
}

func TestJsonApiHandler_GetUploadURL_NotSeller(t *testing.T) {
	router, cfg, m := setupTestRouter()
	actorID := utils.NewSixID()
	sellerID := utils.NewSixID()
	listingID := utils.NewSixID()
	m.user.On("Touch", mock.Anything, actorID).Return()
	m.listing.On("FindListingByID", mock.Anything, listingID).
		Return(&models.Listing{Base: models.Base{ID: listingID}, SellerID: sellerID}, nil)

	w := postJSONAPI(router, "getUploadURL",
		fmt.Sprintf(`[{"listing_id":"%s","filename":"darts.jpg","content_type":"image/jpeg"}]`, listingID.String()),
		tokenFor(t, cfg, actorID))

	assert.Equal(t, http.StatusForbidden, w.Code)
	m.storage.AssertNotCalled(t, "GenerateListingUploadURL")
}

func TestJsonApiHandler_GetUploadURL_Avatar(t *testing.T) {
	router, cfg, m := setupTestRouter()
	actorID := utils.NewSixID()
	m.user.On("Touch", mock.Anything, actorID).Return()
	m.storage.On("GenerateAvatarUploadURL", mock.Anything, actorID.String(), "me.png", "image/png").
		Return("https://s3.example/presigned", "avatars/key", nil)

	w := postJSONAPI(router, "getUploadURL",
		`[{"filename":"me.png","content_type":"image/png"}]`,
		tokenFor(t, cfg, actorID))

	assert.Equal(t, http.StatusOK, w.Code)
	var resp handlers.JsonApiResponse
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	data, ok := resp.Data.(map[string]interface{})
	assert.True(t, ok)
	assert.Equal(t, "https://s3.example/presigned", data["upload_url"])
	assert.Equal(t, "avatars/key", data["object_key"])
	m.storage.AssertExpectations(t)
}

func TestJsonApiHandler_SubmitReview_RequiresSale(t *testing.T) {
	router, cfg, m := setupTestRouter()
	authorID := utils.NewSixID()
	subjectID := utils.NewSixID()
	listingID := utils.NewSixID()
	m.user.On("Touch", mock.Anything, authorID).Return()
	m.review.On("SubmitReview", mock.Anything, listingID, authorID, subjectID, 5, "great seller").
		Return(nil, apperr.Authorization("you can only review a user after a confirmed sale with them"))

	w := postJSONAPI(router, "submitReview",
		fmt.Sprintf(`[{"listing_id":"%s","subject_id":"%s","rating":5,"comment":"great seller"}]`,
			listingID.String(), subjectID.String()),
		tokenFor(t, cfg, authorID))

	assert.Equal(t, http.StatusForbidden, w.Code)
	m.review.AssertExpectations(t)
}

func TestJsonApiHandler_MarkRead(t *testing.T) {
	router, cfg, m := setupTestRouter()
	userID := utils.NewSixID()
	counterpartID := utils.NewSixID()
	listingID := utils.NewSixID()
	m.user.On("Touch", mock.Anything, userID).Return()
	m.negotiation.On("MarkRead", mock.Anything, userID, counterpartID, listingID).Return(3, nil)

	w := postJSONAPI(router, "markRead",
		fmt.Sprintf(`[{"counterpart_id":"%s","listing_id":"%s"}]`, counterpartID.String(), listingID.String()),
		tokenFor(t, cfg, userID))

	assert.Equal(t, http.StatusOK, w.Code)
	var resp handlers.JsonApiResponse
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	data, ok := resp.Data.(map[string]interface{})
	assert.True(t, ok)
	assert.Equal(t, float64(3), data["marked"])
}

func TestJsonApiHandler_AddFavorite_InvalidArgs(t *testing.T) {
	router, cfg, m := setupTestRouter()
	userID := utils.NewSixID()
	m.user.On("Touch", mock.Anything, userID).Return()

	w := postJSONAPI(router, "addFavorite", `["not-a-sixid"]`, tokenFor(t, cfg, userID))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	m.favorite.AssertNotCalled(t, "AddFavorite")
}

func TestJsonApiHandler_ConfirmImageUpload_EnqueuesProcessing(t *testing.T) {
	router, cfg, m := setupTestRouter()
	sellerID := utils.NewSixID()
	listingID := utils.NewSixID()
	m.user.On("Touch", mock.Anything, sellerID).Return()
	m.listing.On("FindListingByID", mock.Anything, listingID).
		Return(&models.Listing{Base: models.Base{ID: listingID}, SellerID: sellerID}, nil)
	m.tasks.On("EnqueueContext", mock.Anything, mock.MatchedBy(func(task *asynq.Task) bool {
		if task.Type() != tasks.TypeImageProcess {
			return false
		}
		var payload tasks.ImageTaskPayload
		if err := json.Unmarshal(task.Payload(), &payload); err != nil {
			return false
		}
		return payload.S3Key == "listing/raw/original.png" && payload.ListingID == listingID.String()
	})).Return(&asynq.TaskInfo{ID: "img-1"}, nil)

	w := postJSONAPI(router, "confirmImageUpload",
		fmt.Sprintf(`[{"listing_id":"%s","object_key":"listing/raw/original.png"}]`, listingID.String()),
		tokenFor(t, cfg, sellerID))

	assert.Equal(t, http.StatusOK, w.Code)
	var resp handlers.JsonApiResponse
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	data, ok := resp.Data.(map[string]interface{})
	assert.True(t, ok)
	assert.Equal(t, "img-1", data["task_id"])
	m.tasks.AssertExpectations(t)
}

func TestJsonApiHandler_ConfirmImageUpload_NotSeller(t *testing.T) {
	router, cfg, m := setupTestRouter()
	actorID := utils.NewSixID()
	sellerID := utils.NewSixID()
	listingID := utils.NewSixID()
	m.user.On("Touch", mock.Anything, actorID).Return()
	m.listing.On("FindListingByID", mock.Anything, listingID).
		Return(&models.Listing{Base: models.Base{ID: listingID}, SellerID: sellerID}, nil)

	w := postJSONAPI(router, "confirmImageUpload",
		fmt.Sprintf(`[{"listing_id":"%s","object_key":"listing/raw/original.png"}]`, listingID.String()),
		tokenFor(t, cfg, actorID))

	assert.Equal(t, http.StatusForbidden, w.Code)
	m.tasks.AssertNotCalled(t, "EnqueueContext", mock.Anything, mock.Anything)
}

func TestJsonApiHandler_ConfirmImageUpload_Avatar(t *testing.T) {
	router, cfg, m := setupTestRouter()
	actorID := utils.NewSixID()
	m.user.On("Touch", mock.Anything, actorID).Return()
	m.user.On("SetAvatarKey", mock.Anything, actorID, "avatar/key.png").Return(nil)

	w := postJSONAPI(router, "confirmImageUpload",
		`[{"object_key":"avatar/key.png"}]`,
		tokenFor(t, cfg, actorID))

	assert.Equal(t, http.StatusOK, w.Code)
	m.user.AssertCalled(t, "SetAvatarKey", mock.Anything, actorID, "avatar/key.png")
	m.tasks.AssertNotCalled(t, "EnqueueContext", mock.Anything, mock.Anything)
}
