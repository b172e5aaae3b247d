package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"

	"github.com/SleshGG/sipkoviste.cz-sub000/internal/apperr"
	"github.com/SleshGG/sipkoviste.cz-sub000/internal/auth"
	"github.com/SleshGG/sipkoviste.cz-sub000/internal/config"
	"github.com/SleshGG/sipkoviste.cz-sub000/internal/models"
	"github.com/SleshGG/sipkoviste.cz-sub000/internal/services"
	"github.com/SleshGG/sipkoviste.cz-sub000/internal/storage"
	"github.com/SleshGG/sipkoviste.cz-sub000/internal/tasks"
	"github.com/SleshGG/sipkoviste.cz-sub000/internal/utils"
)

// Context key type for AuthResult
type authContextKey string

const authResultKey authContextKey = "authResult"

// Helper to get AuthResult from context
func getAuthFromContext(ctx context.Context) (*AuthResult, bool) {
	val, ok := ctx.Value(authResultKey).(*AuthResult)
	return val, ok
}

// IAsynqClient defines the interface for the Asynq client methods used by the handler.
// This allows easier mocking than using the concrete asynq.Client.
type IAsynqClient interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// JsonApiRequest defines the expected structure for JSON API requests.
type JsonApiRequest struct {
	Method    string          `json:"method"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
}

// JsonApiResponse defines the structure for JSON API responses.
type JsonApiResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// apiMethodFunc defines the signature for handler methods.
type apiMethodFunc func(c *gin.Context, args json.RawMessage) (interface{}, *ApiError)

// JsonApiHandler holds dependencies for handling JSON API requests.
type JsonApiHandler struct {
	cfg                *config.Config
	userService        services.IUserService
	listingService     services.IListingService
	negotiationService services.INegotiationService
	reviewService      services.IReviewService
	favoriteService    services.IFavoriteService
	storageService     storage.IS3Storage
	taskClient         IAsynqClient
	methods            map[string]apiMethodFunc
}

// NewJsonApiHandler creates a new handler for the JSON API endpoint.
// Accepts interfaces for dependencies.
func NewJsonApiHandler(
	cfg *config.Config,
	taskClient IAsynqClient,
	userService services.IUserService,
	listingService services.IListingService,
	negotiationService services.INegotiationService,
	reviewService services.IReviewService,
	favoriteService services.IFavoriteService,
	storageService storage.IS3Storage,
) *JsonApiHandler {
	h := &JsonApiHandler{
		cfg:                cfg,
		taskClient:         taskClient,
		userService:        userService,
		listingService:     listingService,
		negotiationService: negotiationService,
		reviewService:      reviewService,
		favoriteService:    favoriteService,
		storageService:     storageService,
	}
	h.methods = map[string]apiMethodFunc{
		"ping":                 h.ping,
		"register":             h.register,
		"login":                h.login,
		"refreshToken":         h.refreshToken,
		"updateProfile":        h.updateProfile,
		"setOTPSecret":         h.setOTPSecret,
		"createListing":        h.createListing,
		"updateListing":        h.updateListing,
		"setListingVisibility": h.setListingVisibility,
		"deleteListing":        h.deleteListing,
		"getUploadURL":         h.getUploadURL,
		"confirmImageUpload":   h.confirmImageUpload,
		"sendQuestion":         h.sendQuestion,
		"sendBuyIntent":        h.sendBuyIntent,
		"sendOffer":            h.sendOffer,
		"respondToOffer":       h.respondToOffer,
		"sendCounterOffer":     h.sendCounterOffer,
		"confirmSale":          h.confirmSale,
		"getSaleStatus":        h.getSaleStatus,
		"submitReview":         h.submitReview,
		"addFavorite":          h.addFavorite,
		"removeFavorite":       h.removeFavorite,
		"markRead":             h.markRead,
	}
	return h
}

// HandleRequest is the main entry point for POST /v1/api
func (h *JsonApiHandler) HandleRequest(c *gin.Context) {
	bodyBytes, err := io.ReadAll(c.Request.Body)
	if err != nil {
		h.sendErrorResponse(c, NewApiError("Failed to read request body"))
		return
	}

	var req JsonApiRequest
	if err := json.Unmarshal(bodyBytes, &req); err != nil {
		h.sendErrorResponse(c, NewApiError("Invalid JSON request format"))
		return
	}

	authErr := h.checkAuthForMethod(c, req.Method)
	if authErr != nil {
		h.sendErrorResponse(c, authErr)
		return
	}

	var result interface{}
	var apiErr *ApiError

	if handlerFunc, ok := h.methods[req.Method]; ok {
		result, apiErr = handlerFunc(c, req.Arguments)
	} else {
		h.sendErrorResponse(c, NewApiError(fmt.Sprintf("Unknown method: %s", req.Method)))
		return
	}

	if apiErr != nil {
		h.sendErrorResponse(c, apiErr)
		return
	}

	h.sendSuccessResponse(c, result)
}

// AuthResult holds optional authentication details
type AuthResult struct {
	UserID  *utils.SixID // Pointer to allow nil for guests
	IsAdmin bool
}

// checkAuthForMethod checks if auth is needed and validates/extracts details if so.
// It stores the AuthResult in c.Request.Context(). A valid token also stamps
// the caller's presence key.
func (h *JsonApiHandler) checkAuthForMethod(c *gin.Context, method string) *ApiError {
	needsAuth := h.methodRequiresAuth(method)
	var authRes *AuthResult

	if !needsAuth {
		// If method is public, check if an optional Auth header is present anyway
		authHeader := c.GetHeader("Authorization")
		if strings.HasPrefix(authHeader, "Bearer ") {
			tokenString := strings.TrimPrefix(authHeader, "Bearer ")
			claims, err := auth.ValidateJWT(tokenString, h.cfg.JwtSecret)
			if err == nil {
				userID, _ := utils.ParseSixID(claims.UserID)
				authRes = &AuthResult{UserID: &userID, IsAdmin: claims.IsAdmin}
			} else {
				log.Printf("DEBUG: Invalid optional auth token provided for method %s: %v", method, err)
				authRes = &AuthResult{UserID: nil, IsAdmin: false} // Guest
			}
		} else {
			authRes = &AuthResult{UserID: nil, IsAdmin: false} // Guest
		}
	} else {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			return NewApiErrorWithStatus(http.StatusUnauthorized, "Authorization header required")
		}
		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
			return NewApiErrorWithStatus(http.StatusUnauthorized, "Authorization header format must be Bearer {token}")
		}
		claims, err := auth.ValidateJWT(parts[1], h.cfg.JwtSecret)
		if err != nil {
			log.Printf("DEBUG: Token validation failed for method %s: %v", method, err)
			return NewApiErrorWithStatus(http.StatusUnauthorized, "Invalid or expired token")
		}

		userID, idErr := utils.ParseSixID(claims.UserID)
		if idErr != nil {
			log.Printf("ERROR: Invalid UserID (%s) in valid JWT for method %s", claims.UserID, method)
			return NewApiErrorWithStatus(http.StatusInternalServerError, "Internal error")
		}
		authRes = &AuthResult{UserID: &userID, IsAdmin: claims.IsAdmin}
	}

	if authRes.UserID != nil {
		h.userService.Touch(c.Request.Context(), *authRes.UserID)
	}

	ctx := context.WithValue(c.Request.Context(), authResultKey, authRes)
	c.Request = c.Request.WithContext(ctx)
	return nil
}

// methodRequiresAuth checks if a given API method requires authentication.
func (h *JsonApiHandler) methodRequiresAuth(method string) bool {
	switch method {
	case "ping",
		"register",
		"login":
		return false
	default:
		return true
	}
}

// --- Private helper methods ---

func (h *JsonApiHandler) sendSuccessResponse(c *gin.Context, data interface{}) {
	resp := JsonApiResponse{Success: true, Data: data}
	c.JSON(http.StatusOK, resp)
}

func (h *JsonApiHandler) sendErrorResponse(c *gin.Context, apiErr *ApiError) {
	resp := JsonApiResponse{Success: false, Error: apiErr.Message}
	c.JSON(apiErr.Status, resp)
}

// requireActor fetches the authenticated caller's ID set by checkAuthForMethod.
func (h *JsonApiHandler) requireActor(c *gin.Context) (utils.SixID, *ApiError) {
	authInfo, ok := getAuthFromContext(c.Request.Context())
	if !ok || authInfo.UserID == nil {
		return utils.SixID{}, NewApiErrorWithStatus(http.StatusUnauthorized, "Authentication required")
	}
	return *authInfo.UserID, nil
}

// mapServiceError translates the service error taxonomy to a response
// status while keeping the actionable message intact.
func mapServiceError(err error) *ApiError {
	var ve *apperr.ValidationError
	var ae *apperr.AuthorizationError
	var ce *apperr.ConflictError
	var ne *apperr.NotFoundError
	var de *apperr.DependencyError
	switch {
	case errors.As(err, &ve):
		return NewApiErrorWithStatus(http.StatusBadRequest, ve.Message)
	case errors.As(err, &ae):
		return NewApiErrorWithStatus(http.StatusForbidden, ae.Message)
	case errors.As(err, &ce):
		return NewApiErrorWithStatus(http.StatusConflict, ce.Message)
	case errors.As(err, &ne):
		return NewApiErrorWithStatus(http.StatusNotFound, ne.Message)
	case errors.As(err, &de):
		return NewApiErrorWithStatus(http.StatusBadGateway, "A backing service is unavailable, please retry")
	default:
		return NewApiErrorWithStatus(http.StatusInternalServerError, "Internal error")
	}
}

type ApiError struct {
	Status  int
	Message string
}

func (e *ApiError) Error() string {
	return e.Message
}

func NewApiError(message string) *ApiError {
	return &ApiError{Status: http.StatusBadRequest, Message: message}
}

func NewApiErrorWithStatus(status int, message string) *ApiError {
	return &ApiError{Status: status, Message: message}
}

// parseRequiredSingleArgFromArray takes the raw JSON message for 'arguments',
// expects a JSON array with at least one element, and unmarshals the first
// element into targetVarPtr.
func (h *JsonApiHandler) parseRequiredSingleArgFromArray(rawArgPayload json.RawMessage, targetVarPtr interface{}) *ApiError {
	var argArray []json.RawMessage
	if rawArgPayload == nil {
		return NewApiError("Missing 'arguments' field; expected a JSON array with one argument.")
	}

	if err := json.Unmarshal(rawArgPayload, &argArray); err != nil {
		return NewApiError("Invalid 'arguments': expected a JSON array.")
	}

	if len(argArray) == 0 {
		return NewApiError("Invalid 'arguments': array is empty, but one argument is expected.")
	}

	if err := json.Unmarshal(argArray[0], targetVarPtr); err != nil {
		return NewApiError("Invalid format for argument: the first element in 'arguments' array has unexpected structure.")
	}
	return nil
}

// --- API Method Implementations ---

func (h *JsonApiHandler) ping(c *gin.Context, args json.RawMessage) (interface{}, *ApiError) {
	_ = args
	return "pong", nil
}

// AuthResponse defines the structure for authentication responses
type AuthResponse struct {
	Token string `json:"token"`
	Name  string `json:"name"`
	ID    string `json:"id"`
}

type RegisterArgs struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *JsonApiHandler) register(c *gin.Context, args json.RawMessage) (interface{}, *ApiError) {
	var reqArgs RegisterArgs
	if apiErr := h.parseRequiredSingleArgFromArray(args, &reqArgs); apiErr != nil {
		return nil, apiErr
	}

	ctx := c.Request.Context()
	user, err := h.userService.Register(ctx, reqArgs.Name, reqArgs.Email, reqArgs.Password)
	if err != nil {
		return nil, mapServiceError(err)
	}

	token, err := auth.GenerateJWT(user.ID, user.IsAdmin, h.cfg.JwtSecret, h.cfg.JwtTTL)
	if err != nil {
		log.Printf("Failed to generate JWT for new user %s: %v", user.ID.String(), err)
		return nil, NewApiErrorWithStatus(http.StatusInternalServerError, "Failed to generate session token")
	}

	log.Printf("Registered user %s (%s)", user.ID.String(), user.Name)
	return AuthResponse{Token: token, Name: user.Name, ID: user.ID.String()}, nil
}

type LoginArgs struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	OTPCode  string `json:"otp_code,omitempty"`
}

func (h *JsonApiHandler) login(c *gin.Context, args json.RawMessage) (interface{}, *ApiError) {
	var reqArgs LoginArgs
	if apiErr := h.parseRequiredSingleArgFromArray(args, &reqArgs); apiErr != nil {
		return nil, apiErr
	}

	ctx := c.Request.Context()
	user, err := h.userService.Login(ctx, reqArgs.Email, reqArgs.Password, reqArgs.OTPCode)
	if err != nil {
		return nil, mapServiceError(err)
	}

	token, err := auth.GenerateJWT(user.ID, user.IsAdmin, h.cfg.JwtSecret, h.cfg.JwtTTL)
	if err != nil {
		log.Printf("Failed to generate JWT for user %s: %v", user.ID.String(), err)
		return nil, NewApiErrorWithStatus(http.StatusInternalServerError, "Failed to generate session token")
	}

	log.Printf("Login successful for user %s", user.ID.String())
	return AuthResponse{Token: token, Name: user.Name, ID: user.ID.String()}, nil
}

func (h *JsonApiHandler) refreshToken(c *gin.Context, args json.RawMessage) (interface{}, *ApiError) {
	_ = args
	authInfo, ok := getAuthFromContext(c.Request.Context())
	if !ok || authInfo.UserID == nil {
		return nil, NewApiErrorWithStatus(http.StatusUnauthorized, "Authentication required for refreshToken")
	}

	newToken, err := auth.GenerateJWT(*authInfo.UserID, authInfo.IsAdmin, h.cfg.JwtSecret, h.cfg.JwtTTL)
	if err != nil {
		log.Printf("Failed to generate refreshed JWT for user %s: %v", authInfo.UserID.String(), err)
		return nil, NewApiErrorWithStatus(http.StatusInternalServerError, "Failed to refresh session token")
	}
	return newToken, nil
}

type UpdateProfileArgs struct {
	Updates map[string]interface{} `json:"updates"`
}

func (h *JsonApiHandler) updateProfile(c *gin.Context, args json.RawMessage) (interface{}, *ApiError) {
	actorID, apiErr := h.requireActor(c)
	if apiErr != nil {
		return nil, apiErr
	}

	var reqArgs UpdateProfileArgs
	if apiErr := h.parseRequiredSingleArgFromArray(args, &reqArgs); apiErr != nil {
		return nil, apiErr
	}
	if len(reqArgs.Updates) == 0 {
		return nil, NewApiError("No updates provided")
	}

	user, err := h.userService.UpdateProfile(c.Request.Context(), actorID, reqArgs.Updates)
	if err != nil {
		return nil, mapServiceError(err)
	}
	return user, nil
}

func (h *JsonApiHandler) setOTPSecret(c *gin.Context, args json.RawMessage) (interface{}, *ApiError) {
	_ = args
	actorID, apiErr := h.requireActor(c)
	if apiErr != nil {
		return nil, apiErr
	}

	ctx := c.Request.Context()
	user, err := h.userService.FindByID(ctx, actorID)
	if err != nil {
		return nil, mapServiceError(err)
	}

	secret, otpURL, err := auth.GenerateTOTPSecret("sipkoviste.cz", user.Email)
	if err != nil {
		log.Printf("Failed to generate TOTP secret for user %s: %v", actorID.String(), err)
		return nil, NewApiErrorWithStatus(http.StatusInternalServerError, "Failed to generate OTP secret")
	}

	if err := h.userService.SetOTPSecret(ctx, actorID, secret); err != nil {
		return nil, mapServiceError(err)
	}

	return gin.H{"secret": secret, "otpauth_url": otpURL}, nil
}

func (h *JsonApiHandler) createListing(c *gin.Context, args json.RawMessage) (interface{}, *ApiError) {
	actorID, apiErr := h.requireActor(c)
	if apiErr != nil {
		return nil, apiErr
	}

	var input services.ListingInput
	if apiErr := h.parseRequiredSingleArgFromArray(args, &input); apiErr != nil {
		return nil, apiErr
	}

	newListing, err := h.listingService.CreateListing(c.Request.Context(), actorID, input)
	if err != nil {
		return nil, mapServiceError(err)
	}

	log.Printf("Created new listing %s for user %s", newListing.ID.String(), actorID.String())
	return newListing, nil
}

type UpdateListingArgs struct {
	ListingID string                 `json:"listing_id"`
	Updates   map[string]interface{} `json:"updates"`
}

func (h *JsonApiHandler) updateListing(c *gin.Context, args json.RawMessage) (interface{}, *ApiError) {
	actorID, apiErr := h.requireActor(c)
	if apiErr != nil {
		return nil, apiErr
	}

	var reqArgs UpdateListingArgs
	if apiErr := h.parseRequiredSingleArgFromArray(args, &reqArgs); apiErr != nil {
		return nil, apiErr
	}

	listingID, err := utils.ParseSixID(reqArgs.ListingID)
	if err != nil {
		return nil, NewApiError("Invalid listing_id format")
	}
	if len(reqArgs.Updates) == 0 {
		return nil, NewApiError("No updates provided")
	}

	updatedListing, err := h.listingService.UpdateListing(c.Request.Context(), listingID, actorID, reqArgs.Updates)
	if err != nil {
		return nil, mapServiceError(err)
	}
	return updatedListing, nil
}

type SetListingVisibilityArgs struct {
	ListingID string `json:"listing_id"`
	Visible   bool   `json:"visible"`
}

func (h *JsonApiHandler) setListingVisibility(c *gin.Context, args json.RawMessage) (interface{}, *ApiError) {
	actorID, apiErr := h.requireActor(c)
	if apiErr != nil {
		return nil, apiErr
	}

	var reqArgs SetListingVisibilityArgs
	if apiErr := h.parseRequiredSingleArgFromArray(args, &reqArgs); apiErr != nil {
		return nil, apiErr
	}
	listingID, err := utils.ParseSixID(reqArgs.ListingID)
	if err != nil {
		return nil, NewApiError("Invalid listing_id format")
	}

	if err := h.listingService.SetVisibility(c.Request.Context(), listingID, actorID, reqArgs.Visible); err != nil {
		return nil, mapServiceError(err)
	}
	return nil, nil
}

func (h *JsonApiHandler) deleteListing(c *gin.Context, args json.RawMessage) (interface{}, *ApiError) {
	actorID, apiErr := h.requireActor(c)
	if apiErr != nil {
		return nil, apiErr
	}

	var listingIDStr string
	if apiErr := h.parseRequiredSingleArgFromArray(args, &listingIDStr); apiErr != nil {
		return nil, apiErr
	}
	listingID, err := utils.ParseSixID(listingIDStr)
	if err != nil {
		return nil, NewApiError("Invalid listing_id format in argument")
	}

	if err := h.listingService.DeleteListing(c.Request.Context(), listingID, actorID); err != nil {
		return nil, mapServiceError(err)
	}
	return nil, nil
}

type GetUploadURLArgs struct {
	ListingID   string `json:"listing_id,omitempty"` // empty means avatar upload
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
}

func (h *JsonApiHandler) getUploadURL(c *gin.Context, args json.RawMessage) (interface{}, *ApiError) {
	actorID, apiErr := h.requireActor(c)
	if apiErr != nil {
		return nil, apiErr
	}

	var reqArgs GetUploadURLArgs
	if apiErr := h.parseRequiredSingleArgFromArray(args, &reqArgs); apiErr != nil {
		return nil, apiErr
	}
	if reqArgs.Filename == "" || reqArgs.ContentType == "" {
		return nil, NewApiError("Missing required arguments (filename, content_type)")
	}

	ctx := c.Request.Context()

	if reqArgs.ListingID == "" {
		presignedURL, objectKey, err := h.storageService.GenerateAvatarUploadURL(ctx, actorID.String(), reqArgs.Filename, reqArgs.ContentType)
		if err != nil {
			log.Printf("Error generating avatar upload URL for user %s: %v", actorID.String(), err)
			return nil, NewApiErrorWithStatus(http.StatusBadGateway, "Failed to generate upload URL")
		}
		return gin.H{"upload_url": presignedURL, "object_key": objectKey}, nil
	}

	listingID, err := utils.ParseSixID(reqArgs.ListingID)
	if err != nil {
		return nil, NewApiError("Invalid listing_id format")
	}

	// Only the seller may attach images.
	listing, err := h.listingService.FindListingByID(ctx, listingID)
	if err != nil {
		return nil, mapServiceError(err)
	}
	if listing.SellerID != actorID {
		return nil, NewApiErrorWithStatus(http.StatusForbidden, "Only the seller may upload images for a listing")
	}

	presignedURL, objectKey, err := h.storageService.GenerateListingUploadURL(ctx, actorID.String(), listingID.String(), reqArgs.Filename, reqArgs.ContentType)
	if err != nil {
		log.Printf("Error generating upload URL for user %s, listing %s: %v", actorID.String(), reqArgs.ListingID, err)
		return nil, NewApiErrorWithStatus(http.StatusBadGateway, "Failed to generate upload URL")
	}

	return gin.H{"upload_url": presignedURL, "object_key": objectKey}, nil
}

type ConfirmImageUploadArgs struct {
	ListingID string `json:"listing_id,omitempty"` // empty means avatar upload
	ObjectKey string `json:"object_key"`
}

// confirmImageUpload closes the upload loop: once the client has PUT the
// original to the presigned URL, this either schedules listing image
// processing or attaches the avatar key directly.
func (h *JsonApiHandler) confirmImageUpload(c *gin.Context, args json.RawMessage) (interface{}, *ApiError) {
	actorID, apiErr := h.requireActor(c)
	if apiErr != nil {
		return nil, apiErr
	}

	var reqArgs ConfirmImageUploadArgs
	if apiErr := h.parseRequiredSingleArgFromArray(args, &reqArgs); apiErr != nil {
		return nil, apiErr
	}
	if reqArgs.ObjectKey == "" {
		return nil, NewApiError("Missing required argument (object_key)")
	}

	ctx := c.Request.Context()

	if reqArgs.ListingID == "" {
		if err := h.userService.SetAvatarKey(ctx, actorID, reqArgs.ObjectKey); err != nil {
			return nil, mapServiceError(err)
		}
		return gin.H{"avatar_key": reqArgs.ObjectKey}, nil
	}

	listingID, err := utils.ParseSixID(reqArgs.ListingID)
	if err != nil {
		return nil, NewApiError("Invalid listing_id format")
	}

	// Only the seller may attach images.
	listing, err := h.listingService.FindListingByID(ctx, listingID)
	if err != nil {
		return nil, mapServiceError(err)
	}
	if listing.SellerID != actorID {
		return nil, NewApiErrorWithStatus(http.StatusForbidden, "Only the seller may attach images to a listing")
	}

	task, err := tasks.NewImageProcessTask(reqArgs.ObjectKey, listingID)
	if err != nil {
		log.Printf("Error building image task for key %s, listing %s: %v", reqArgs.ObjectKey, reqArgs.ListingID, err)
		return nil, NewApiErrorWithStatus(http.StatusInternalServerError, "Failed to schedule image processing")
	}
	taskInfo, err := h.taskClient.EnqueueContext(ctx, task)
	if err != nil {
		log.Printf("Error enqueuing image task for key %s, listing %s: %v", reqArgs.ObjectKey, reqArgs.ListingID, err)
		return nil, NewApiErrorWithStatus(http.StatusBadGateway, "Failed to schedule image processing")
	}

	return gin.H{"task_id": taskInfo.ID}, nil
}

type SendQuestionArgs struct {
	ListingID  string `json:"listing_id"`
	ReceiverID string `json:"receiver_id,omitempty"` // defaults to the seller
	Text       string `json:"text"`
}

func (h *JsonApiHandler) sendQuestion(c *gin.Context, args json.RawMessage) (interface{}, *ApiError) {
	actorID, apiErr := h.requireActor(c)
	if apiErr != nil {
		return nil, apiErr
	}

	var reqArgs SendQuestionArgs
	if apiErr := h.parseRequiredSingleArgFromArray(args, &reqArgs); apiErr != nil {
		return nil, apiErr
	}
	listingID, err := utils.ParseSixID(reqArgs.ListingID)
	if err != nil {
		return nil, NewApiError("Invalid listing_id format")
	}

	ctx := c.Request.Context()
	var receiverID utils.SixID
	if reqArgs.ReceiverID != "" {
		receiverID, err = utils.ParseSixID(reqArgs.ReceiverID)
		if err != nil {
			return nil, NewApiError("Invalid receiver_id format")
		}
	} else {
		listing, err := h.listingService.FindListingByID(ctx, listingID)
		if err != nil {
			return nil, mapServiceError(err)
		}
		receiverID = listing.SellerID
	}

	msg, err := h.negotiationService.SendQuestion(ctx, listingID, actorID, receiverID, reqArgs.Text)
	if err != nil {
		return nil, mapServiceError(err)
	}
	return msg, nil
}

func (h *JsonApiHandler) sendBuyIntent(c *gin.Context, args json.RawMessage) (interface{}, *ApiError) {
	actorID, apiErr := h.requireActor(c)
	if apiErr != nil {
		return nil, apiErr
	}

	var listingIDStr string
	if apiErr := h.parseRequiredSingleArgFromArray(args, &listingIDStr); apiErr != nil {
		return nil, apiErr
	}
	listingID, err := utils.ParseSixID(listingIDStr)
	if err != nil {
		return nil, NewApiError("Invalid listing_id format in argument")
	}

	msg, err := h.negotiationService.SendBuyIntent(c.Request.Context(), listingID, actorID)
	if err != nil {
		return nil, mapServiceError(err)
	}
	return msg, nil
}

type SendOfferArgs struct {
	ListingID string       `json:"listing_id"`
	Amount    models.Price `json:"amount"`
}

func (h *JsonApiHandler) sendOffer(c *gin.Context, args json.RawMessage) (interface{}, *ApiError) {
	actorID, apiErr := h.requireActor(c)
	if apiErr != nil {
		return nil, apiErr
	}

	var reqArgs SendOfferArgs
	if apiErr := h.parseRequiredSingleArgFromArray(args, &reqArgs); apiErr != nil {
		return nil, apiErr
	}
	listingID, err := utils.ParseSixID(reqArgs.ListingID)
	if err != nil {
		return nil, NewApiError("Invalid listing_id format")
	}

	msg, err := h.negotiationService.SendOffer(c.Request.Context(), listingID, actorID, reqArgs.Amount)
	if err != nil {
		return nil, mapServiceError(err)
	}
	return msg, nil
}

type RespondToOfferArgs struct {
	OfferID string `json:"offer_id"`
	Accept  bool   `json:"accept"`
}

func (h *JsonApiHandler) respondToOffer(c *gin.Context, args json.RawMessage) (interface{}, *ApiError) {
	actorID, apiErr := h.requireActor(c)
	if apiErr != nil {
		return nil, apiErr
	}

	var reqArgs RespondToOfferArgs
	if apiErr := h.parseRequiredSingleArgFromArray(args, &reqArgs); apiErr != nil {
		return nil, apiErr
	}
	offerID, err := utils.ParseSixID(reqArgs.OfferID)
	if err != nil {
		return nil, NewApiError("Invalid offer_id format")
	}

	msg, err := h.negotiationService.RespondToOffer(c.Request.Context(), offerID, actorID, reqArgs.Accept)
	if err != nil {
		return nil, mapServiceError(err)
	}
	return msg, nil
}

type SendCounterOfferArgs struct {
	OfferID string       `json:"offer_id"`
	Amount  models.Price `json:"amount"`
}

func (h *JsonApiHandler) sendCounterOffer(c *gin.Context, args json.RawMessage) (interface{}, *ApiError) {
	actorID, apiErr := h.requireActor(c)
	if apiErr != nil {
		return nil, apiErr
	}

	var reqArgs SendCounterOfferArgs
	if apiErr := h.parseRequiredSingleArgFromArray(args, &reqArgs); apiErr != nil {
		return nil, apiErr
	}
	offerID, err := utils.ParseSixID(reqArgs.OfferID)
	if err != nil {
		return nil, NewApiError("Invalid offer_id format")
	}

	msg, err := h.negotiationService.SendCounterOffer(c.Request.Context(), offerID, actorID, reqArgs.Amount)
	if err != nil {
		return nil, mapServiceError(err)
	}
	return msg, nil
}

type ConfirmSaleArgs struct {
	ListingID string `json:"listing_id"`
	BuyerID   string `json:"buyer_id,omitempty"` // required when the seller confirms
}

func (h *JsonApiHandler) confirmSale(c *gin.Context, args json.RawMessage) (interface{}, *ApiError) {
	actorID, apiErr := h.requireActor(c)
	if apiErr != nil {
		return nil, apiErr
	}

	var reqArgs ConfirmSaleArgs
	if apiErr := h.parseRequiredSingleArgFromArray(args, &reqArgs); apiErr != nil {
		return nil, apiErr
	}
	listingID, err := utils.ParseSixID(reqArgs.ListingID)
	if err != nil {
		return nil, NewApiError("Invalid listing_id format")
	}

	ctx := c.Request.Context()
	listing, err := h.listingService.FindListingByID(ctx, listingID)
	if err != nil {
		return nil, mapServiceError(err)
	}

	sellerID := listing.SellerID
	buyerID := actorID
	if actorID == sellerID {
		if reqArgs.BuyerID == "" {
			return nil, NewApiError("buyer_id is required when the seller confirms a sale")
		}
		buyerID, err = utils.ParseSixID(reqArgs.BuyerID)
		if err != nil {
			return nil, NewApiError("Invalid buyer_id format")
		}
	}

	sale, err := h.negotiationService.ConfirmSale(ctx, listingID, buyerID, sellerID, actorID)
	if err != nil {
		return nil, mapServiceError(err)
	}
	return sale, nil
}

type GetSaleStatusArgs struct {
	ListingID     string `json:"listing_id"`
	CounterpartID string `json:"counterpart_id"`
}

func (h *JsonApiHandler) getSaleStatus(c *gin.Context, args json.RawMessage) (interface{}, *ApiError) {
	actorID, apiErr := h.requireActor(c)
	if apiErr != nil {
		return nil, apiErr
	}

	var reqArgs GetSaleStatusArgs
	if apiErr := h.parseRequiredSingleArgFromArray(args, &reqArgs); apiErr != nil {
		return nil, apiErr
	}
	listingID, err := utils.ParseSixID(reqArgs.ListingID)
	if err != nil {
		return nil, NewApiError("Invalid listing_id format")
	}
	counterpartID, err := utils.ParseSixID(reqArgs.CounterpartID)
	if err != nil {
		return nil, NewApiError("Invalid counterpart_id format")
	}

	status, err := h.negotiationService.GetSaleStatus(c.Request.Context(), listingID, actorID, counterpartID)
	if err != nil {
		return nil, mapServiceError(err)
	}
	return status, nil
}

type SubmitReviewArgs struct {
	ListingID string `json:"listing_id"`
	SubjectID string `json:"subject_id"`
	Rating    int    `json:"rating"`
	Comment   string `json:"comment,omitempty"`
}

func (h *JsonApiHandler) submitReview(c *gin.Context, args json.RawMessage) (interface{}, *ApiError) {
	actorID, apiErr := h.requireActor(c)
	if apiErr != nil {
		return nil, apiErr
	}

	var reqArgs SubmitReviewArgs
	if apiErr := h.parseRequiredSingleArgFromArray(args, &reqArgs); apiErr != nil {
		return nil, apiErr
	}
	listingID, err := utils.ParseSixID(reqArgs.ListingID)
	if err != nil {
		return nil, NewApiError("Invalid listing_id format")
	}
	subjectID, err := utils.ParseSixID(reqArgs.SubjectID)
	if err != nil {
		return nil, NewApiError("Invalid subject_id format")
	}

	review, err := h.reviewService.SubmitReview(c.Request.Context(), listingID, actorID, subjectID, reqArgs.Rating, reqArgs.Comment)
	if err != nil {
		return nil, mapServiceError(err)
	}
	return review, nil
}

func (h *JsonApiHandler) addFavorite(c *gin.Context, args json.RawMessage) (interface{}, *ApiError) {
	actorID, apiErr := h.requireActor(c)
	if apiErr != nil {
		return nil, apiErr
	}

	var listingIDStr string
	if apiErr := h.parseRequiredSingleArgFromArray(args, &listingIDStr); apiErr != nil {
		return nil, apiErr
	}
	listingID, err := utils.ParseSixID(listingIDStr)
	if err != nil {
		return nil, NewApiError("Invalid listing_id format in argument")
	}

	if err := h.favoriteService.AddFavorite(c.Request.Context(), actorID, listingID); err != nil {
		return nil, mapServiceError(err)
	}
	return nil, nil
}

func (h *JsonApiHandler) removeFavorite(c *gin.Context, args json.RawMessage) (interface{}, *ApiError) {
	actorID, apiErr := h.requireActor(c)
	if apiErr != nil {
		return nil, apiErr
	}

	var listingIDStr string
	if apiErr := h.parseRequiredSingleArgFromArray(args, &listingIDStr); apiErr != nil {
		return nil, apiErr
	}
	listingID, err := utils.ParseSixID(listingIDStr)
	if err != nil {
		return nil, NewApiError("Invalid listing_id format in argument")
	}

	if err := h.favoriteService.RemoveFavorite(c.Request.Context(), actorID, listingID); err != nil {
		return nil, mapServiceError(err)
	}
	return nil, nil
}

type MarkReadArgs struct {
	CounterpartID string `json:"counterpart_id"`
	ListingID     string `json:"listing_id"`
}

func (h *JsonApiHandler) markRead(c *gin.Context, args json.RawMessage) (interface{}, *ApiError) {
	actorID, apiErr := h.requireActor(c)
	if apiErr != nil {
		return nil, apiErr
	}

	var reqArgs MarkReadArgs
	if apiErr := h.parseRequiredSingleArgFromArray(args, &reqArgs); apiErr != nil {
		return nil, apiErr
	}
	counterpartID, err := utils.ParseSixID(reqArgs.CounterpartID)
	if err != nil {
		return nil, NewApiError("Invalid counterpart_id format")
	}
	listingID, err := utils.ParseSixID(reqArgs.ListingID)
	if err != nil {
		return nil, NewApiError("Invalid listing_id format")
	}

	count, err := h.negotiationService.MarkRead(c.Request.Context(), actorID, counterpartID, listingID)
	if err != nil {
		return nil, mapServiceError(err)
	}
	return gin.H{"marked": count}, nil
}
