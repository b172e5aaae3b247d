package handlers_test

import (
	"context"
	"io"
	"time"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/mock"

	"github.com/SleshGG/sipkoviste.cz-sub000/internal/models"
	"github.com/SleshGG/sipkoviste.cz-sub000/internal/services"
	"github.com/SleshGG/sipkoviste.cz-sub000/internal/utils"
)

// --- Mocks ---

// MockUserService
type MockUserService struct {
	mock.Mock
}

func (m *MockUserService) Register(ctx context.Context, name, emailAddr, password string) (*models.User, error) {
	args := m.Called(ctx, name, emailAddr, password)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserService) Login(ctx context.Context, emailAddr, password, otpCode string) (*models.User, error) {
	args := m.Called(ctx, emailAddr, password, otpCode)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserService) FindByID(ctx context.Context, userID utils.SixID) (*models.User, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserService) PublicProfile(ctx context.Context, userID utils.SixID) (*models.PublicProfile, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.PublicProfile), args.Error(1)
}

func (m *MockUserService) UpdateProfile(ctx context.Context, userID utils.SixID, updates map[string]interface{}) (*models.User, error) {
	args := m.Called(ctx, userID, updates)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserService) SetOTPSecret(ctx context.Context, userID utils.SixID, otpSecret string) error {
	args := m.Called(ctx, userID, otpSecret)
	return args.Error(0)
}

func (m *MockUserService) SetAvatarKey(ctx context.Context, userID utils.SixID, avatarKey string) error {
	args := m.Called(ctx, userID, avatarKey)
	return args.Error(0)
}

func (m *MockUserService) Touch(ctx context.Context, userID utils.SixID) {
	m.Called(ctx, userID)
}

// MockListingService
type MockListingService struct {
	mock.Mock
}

func (m *MockListingService) CreateListing(ctx context.Context, sellerID utils.SixID, input services.ListingInput) (*models.Listing, error) {
	args := m.Called(ctx, sellerID, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Listing), args.Error(1)
}

func (m *MockListingService) FindListingByID(ctx context.Context, listingID utils.SixID) (*models.Listing, error) {
	args := m.Called(ctx, listingID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Listing), args.Error(1)
}

func (m *MockListingService) UpdateListing(ctx context.Context, listingID, sellerID utils.SixID, updates map[string]interface{}) (*models.Listing, error) {
	args := m.Called(ctx, listingID, sellerID, updates)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Listing), args.Error(1)
}

func (m *MockListingService) SetVisibility(ctx context.Context, listingID, sellerID utils.SixID, visible bool) error {
	args := m.Called(ctx, listingID, sellerID, visible)
	return args.Error(0)
}

func (m *MockListingService) DeleteListing(ctx context.Context, listingID, sellerID utils.SixID) error {
	args := m.Called(ctx, listingID, sellerID)
	return args.Error(0)
}

func (m *MockListingService) SearchListings(ctx context.Context, params services.SearchParams) ([]models.Listing, string, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.String(1), args.Error(2)
	}
	return args.Get(0).([]models.Listing), args.String(1), args.Error(2)
}

func (m *MockListingService) FindListingsBySellerID(ctx context.Context, sellerID utils.SixID) ([]models.Listing, error) {
	args := m.Called(ctx, sellerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Listing), args.Error(1)
}

func (m *MockListingService) MarkSold(ctx context.Context, listingID utils.SixID, at time.Time) error {
	args := m.Called(ctx, listingID, at)
	return args.Error(0)
}

func (m *MockListingService) AddImage(ctx context.Context, listingID utils.SixID, imageKey string) error {
	args := m.Called(ctx, listingID, imageKey)
	return args.Error(0)
}

// MockNegotiationService
type MockNegotiationService struct {
	mock.Mock
}

func (m *MockNegotiationService) SendQuestion(ctx context.Context, listingID, senderID, receiverID utils.SixID, text string) (*models.Message, error) {
	args := m.Called(ctx, listingID, senderID, receiverID, text)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Message), args.Error(1)
}

func (m *MockNegotiationService) SendBuyIntent(ctx context.Context, listingID, buyerID utils.SixID) (*models.Message, error) {
	args := m.Called(ctx, listingID, buyerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Message), args.Error(1)
}

func (m *MockNegotiationService) SendOffer(ctx context.Context, listingID, buyerID utils.SixID, amount models.Price) (*models.Message, error) {
	args := m.Called(ctx, listingID, buyerID, amount)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Message), args.Error(1)
}

func (m *MockNegotiationService) RespondToOffer(ctx context.Context, offerID, responderID utils.SixID, accept bool) (*models.Message, error) {
	args := m.Called(ctx, offerID, responderID, accept)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Message), args.Error(1)
}

func (m *MockNegotiationService) SendCounterOffer(ctx context.Context, offerID, responderID utils.SixID, newAmount models.Price) (*models.Message, error) {
	args := m.Called(ctx, offerID, responderID, newAmount)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Message), args.Error(1)
}

func (m *MockNegotiationService) ConfirmSale(ctx context.Context, listingID, buyerID, sellerID, confirmingActorID utils.SixID) (*models.ConfirmedSale, error) {
	args := m.Called(ctx, listingID, buyerID, sellerID, confirmingActorID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ConfirmedSale), args.Error(1)
}

func (m *MockNegotiationService) GetSaleStatus(ctx context.Context, listingID, requesterID, counterpartID utils.SixID) (*models.SaleStatus, error) {
	args := m.Called(ctx, listingID, requesterID, counterpartID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.SaleStatus), args.Error(1)
}

func (m *MockNegotiationService) ListConversations(ctx context.Context, userID utils.SixID) ([]models.Conversation, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Conversation), args.Error(1)
}

func (m *MockNegotiationService) ListMessages(ctx context.Context, userID, counterpartID, listingID utils.SixID) ([]models.Message, error) {
	args := m.Called(ctx, userID, counterpartID, listingID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Message), args.Error(1)
}

func (m *MockNegotiationService) MarkRead(ctx context.Context, userID, counterpartID, listingID utils.SixID) (int64, error) {
	args := m.Called(ctx, userID, counterpartID, listingID)
	return int64(args.Int(0)), args.Error(1)
}

// MockReviewService
type MockReviewService struct {
	mock.Mock
}

func (m *MockReviewService) SubmitReview(ctx context.Context, listingID, authorID, subjectID utils.SixID, rating int, comment string) (*models.Review, error) {
	args := m.Called(ctx, listingID, authorID, subjectID, rating, comment)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Review), args.Error(1)
}

func (m *MockReviewService) ListForUser(ctx context.Context, subjectID utils.SixID, limit int) ([]models.Review, error) {
	args := m.Called(ctx, subjectID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Review), args.Error(1)
}

// MockFavoriteService
type MockFavoriteService struct {
	mock.Mock
}

func (m *MockFavoriteService) AddFavorite(ctx context.Context, userID, listingID utils.SixID) error {
	args := m.Called(ctx, userID, listingID)
	return args.Error(0)
}

func (m *MockFavoriteService) RemoveFavorite(ctx context.Context, userID, listingID utils.SixID) error {
	args := m.Called(ctx, userID, listingID)
	return args.Error(0)
}

func (m *MockFavoriteService) ListFavorites(ctx context.Context, userID utils.SixID) ([]models.FavoriteWithListing, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.FavoriteWithListing), args.Error(1)
}

func (m *MockFavoriteService) CountForListing(ctx context.Context, listingID utils.SixID) (int64, error) {
	args := m.Called(ctx, listingID)
	return int64(args.Int(0)), args.Error(1)
}

// MockS3Storage implements storage.IS3Storage
type MockS3Storage struct {
	mock.Mock
}

func (m *MockS3Storage) GenerateListingUploadURL(ctx context.Context, sellerID, listingID, filename, contentType string) (string, string, error) {
	args := m.Called(ctx, sellerID, listingID, filename, contentType)
	return args.String(0), args.String(1), args.Error(2)
}

func (m *MockS3Storage) GenerateAvatarUploadURL(ctx context.Context, userID, filename, contentType string) (string, string, error) {
	args := m.Called(ctx, userID, filename, contentType)
	return args.String(0), args.String(1), args.Error(2)
}

func (m *MockS3Storage) GetObject(ctx context.Context, key string) (io.ReadCloser, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(io.ReadCloser), args.Error(1)
}

func (m *MockS3Storage) PutObject(ctx context.Context, key string, body io.Reader, contentType string) error {
	args := m.Called(ctx, key, body, contentType)
	return args.Error(0)
}

func (m *MockS3Storage) DeleteObject(ctx context.Context, key string) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

// MockAsynqClient implements handlers.IAsynqClient
type MockAsynqClient struct {
	mock.Mock
}

func (m *MockAsynqClient) EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	mockArgs := []interface{}{ctx, task}
	for _, opt := range opts {
		mockArgs = append(mockArgs, opt)
	}
	args := m.Called(mockArgs...)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*asynq.TaskInfo), args.Error(1)
}
