package services

import (
	"context"
	"errors"
	"log"
	"net/mail"
	"regexp"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/SleshGG/sipkoviste.cz-sub000/internal/apperr"
	"github.com/SleshGG/sipkoviste.cz-sub000/internal/auth"
	"github.com/SleshGG/sipkoviste.cz-sub000/internal/config"
	"github.com/SleshGG/sipkoviste.cz-sub000/internal/db"
	"github.com/SleshGG/sipkoviste.cz-sub000/internal/models"
	"github.com/SleshGG/sipkoviste.cz-sub000/internal/utils"
)

// IUserService defines the interface for account and profile operations.
type IUserService interface {
	Register(ctx context.Context, name, emailAddr, password string) (*models.User, error)
	Login(ctx context.Context, emailAddr, password, otpCode string) (*models.User, error)
	FindByID(ctx context.Context, userID utils.SixID) (*models.User, error)
	PublicProfile(ctx context.Context, userID utils.SixID) (*models.PublicProfile, error)
	UpdateProfile(ctx context.Context, userID utils.SixID, updates map[string]interface{}) (*models.User, error)
	SetOTPSecret(ctx context.Context, userID utils.SixID, otpSecret string) error
	SetAvatarKey(ctx context.Context, userID utils.SixID, avatarKey string) error
	Touch(ctx context.Context, userID utils.SixID)
}

// userService implements IUserService.
type userService struct {
	db            *mongo.Database
	cfg           *config.Config
	rdb           *redis.Client
	passwordCheck *regexp.Regexp
}

// NewUserService creates a new UserService. The Redis client backs the
// presence keys; nil disables presence.
func NewUserService(database *mongo.Database, cfg *config.Config, rdb *redis.Client) IUserService {
	var passwordCheck *regexp.Regexp
	if cfg.PasswordRegexp != "" {
		var err error
		passwordCheck, err = regexp.Compile(cfg.PasswordRegexp)
		if err != nil {
			log.Printf("Invalid PASSWORD_REGEXP %q, password shape checks disabled: %v", cfg.PasswordRegexp, err)
		}
	}
	return &userService{db: database, cfg: cfg, rdb: rdb, passwordCheck: passwordCheck}
}

// Register creates a new account. Email uniqueness is enforced by the
// partial unique index on live users.
func (s *userService) Register(ctx context.Context, name, emailAddr, password string) (*models.User, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperr.Validation("name is required")
	}
	emailAddr = strings.ToLower(strings.TrimSpace(emailAddr))
	if _, err := mail.ParseAddress(emailAddr); err != nil {
		return nil, apperr.Validation("invalid email address")
	}
	if len(password) < 8 {
		return nil, apperr.Validation("password must be at least 8 characters")
	}
	if s.passwordCheck != nil && !s.passwordCheck.MatchString(password) {
		return nil, apperr.Validation("password does not meet the requirements")
	}

	hashedPassword, err := auth.HashPassword(password)
	if err != nil {
		return nil, apperr.Dependency(err, "failed to hash password")
	}

	collection := s.db.Collection(db.UsersCollection)
	now := time.Now().UTC()

	var newUser *models.User
	operation := func() error {
		newUser = &models.User{
			Base:         models.NewBase(),
			Name:         name,
			Email:        emailAddr,
			PasswordHash: hashedPassword,
			MemberSince:  now,
			Notify:       models.DefaultNotificationPreferences(),
			UpdatedAt:    now,
		}
		_, insertErr := collection.InsertOne(ctx, newUser)
		return insertErr
	}

	if err := db.Try(operation); err != nil {
		if mongo.IsDuplicateKeyError(err) && strings.Contains(err.Error(), "email") {
			return nil, apperr.Conflict("an account with this email already exists")
		}
		return nil, apperr.Dependency(err, "failed to insert user for %s", emailAddr)
	}

	return newUser, nil
}

// Login verifies credentials. When the account has a TOTP secret a valid
// code is required as well. The same message covers unknown email and
// wrong password.
func (s *userService) Login(ctx context.Context, emailAddr, password, otpCode string) (*models.User, error) {
	emailAddr = strings.ToLower(strings.TrimSpace(emailAddr))

	var user models.User
	collection := s.db.Collection(db.UsersCollection)
	err := collection.FindOne(ctx, bson.M{"email": emailAddr, "deleted": false}).Decode(&user)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, apperr.Authorization("invalid email or password")
		}
		return nil, apperr.Dependency(err, "error finding user by email")
	}

	if !auth.CheckPasswordHash(password, user.PasswordHash) {
		return nil, apperr.Authorization("invalid email or password")
	}

	if user.OTPSecret != "" {
		if otpCode == "" {
			return nil, apperr.Validation("a one-time code is required for this account")
		}
		if !auth.ValidateTOTPCode(user.OTPSecret, otpCode) {
			return nil, apperr.Authorization("invalid one-time code")
		}
	}

	return &user, nil
}

// FindByID finds a non-deleted user by their ID.
func (s *userService) FindByID(ctx context.Context, userID utils.SixID) (*models.User, error) {
	var user models.User
	collection := s.db.Collection(db.UsersCollection)
	err := collection.FindOne(ctx, bson.M{"_id": userID, "deleted": false}).Decode(&user)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, apperr.NotFound("user %s not found", userID.String())
		}
		return nil, apperr.Dependency(err, "error finding user %s", userID.String())
	}
	return &user, nil
}

// PublicProfile projects the externally visible part of a user, with
// presence only when they opted in.
func (s *userService) PublicProfile(ctx context.Context, userID utils.SixID) (*models.PublicProfile, error) {
	user, err := s.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	profile := &models.PublicProfile{
		ID:          user.ID.String(),
		Name:        user.Name,
		AvatarKey:   user.AvatarKey,
		RatingAvg:   user.RatingAvg,
		RatingCount: user.RatingCount,
		MemberSince: user.MemberSince,
	}

	if user.ShowOnline {
		online := s.isOnline(ctx, userID)
		profile.Online = &online
		profile.LastActive = user.LastActiveAt
	}

	return profile, nil
}

func presenceKey(userID utils.SixID) string {
	return "presence:" + userID.String()
}

// isOnline checks the presence key; Redis being down just reads as
// offline.
func (s *userService) isOnline(ctx context.Context, userID utils.SixID) bool {
	if s.rdb == nil {
		return false
	}
	n, err := s.rdb.Exists(ctx, presenceKey(userID)).Result()
	if err != nil {
		log.Printf("Presence check failed for user %s: %v", userID.String(), err)
		return false
	}
	return n > 0
}

// Touch refreshes the user's presence key and last-active stamp. Called
// from middleware on every authenticated request; failures only cost
// presence accuracy, so they are logged and dropped.
func (s *userService) Touch(ctx context.Context, userID utils.SixID) {
	if s.rdb != nil {
		if err := s.rdb.Set(ctx, presenceKey(userID), 1, s.cfg.PresenceTTL).Err(); err != nil {
			log.Printf("Presence touch failed for user %s: %v", userID.String(), err)
		}
	}

	now := time.Now().UTC()
	update := bson.M{"$set": bson.M{"last_active_at": now}}
	if _, err := s.db.Collection(db.UsersCollection).UpdateOne(ctx, bson.M{"_id": userID, "deleted": false}, update); err != nil {
		log.Printf("Failed to stamp last_active_at for user %s: %v", userID.String(), err)
	}
}

// UpdateProfile updates the user's own mutable profile fields.
func (s *userService) UpdateProfile(ctx context.Context, userID utils.SixID, updates map[string]interface{}) (*models.User, error) {
	allowedUpdates := bson.M{}
	for key, value := range updates {
		switch key {
		case "name":
			name, _ := value.(string)
			name = strings.TrimSpace(name)
			if name == "" {
				return nil, apperr.Validation("name must not be empty")
			}
			allowedUpdates["name"] = name
		case "show_online":
			allowedUpdates["show_online"] = value
		case "notify":
			allowedUpdates["notify"] = value
		default:
			return nil, apperr.Validation("field %q cannot be updated", key)
		}
	}
	if len(allowedUpdates) == 0 {
		return nil, apperr.Validation("no updatable fields provided")
	}
	allowedUpdates["updated_at"] = time.Now().UTC()

	collection := s.db.Collection(db.UsersCollection)
	result, err := collection.UpdateOne(ctx, bson.M{"_id": userID, "deleted": false}, bson.M{"$set": allowedUpdates})
	if err != nil {
		return nil, apperr.Dependency(err, "error updating profile of user %s", userID.String())
	}
	if result.MatchedCount == 0 {
		return nil, apperr.NotFound("user %s not found", userID.String())
	}

	return s.FindByID(ctx, userID)
}

// SetOTPSecret stores (or clears) the user's TOTP secret.
func (s *userService) SetOTPSecret(ctx context.Context, userID utils.SixID, otpSecret string) error {
	collection := s.db.Collection(db.UsersCollection)
	update := bson.M{"$set": bson.M{"otp_secret": otpSecret, "updated_at": time.Now().UTC()}}
	result, err := collection.UpdateOne(ctx, bson.M{"_id": userID, "deleted": false}, update)
	if err != nil {
		return apperr.Dependency(err, "error setting OTP secret for user %s", userID.String())
	}
	if result.MatchedCount == 0 {
		return apperr.NotFound("user %s not found", userID.String())
	}
	return nil
}

// SetAvatarKey stores the processed avatar object key on the profile.
func (s *userService) SetAvatarKey(ctx context.Context, userID utils.SixID, avatarKey string) error {
	collection := s.db.Collection(db.UsersCollection)
	update := bson.M{"$set": bson.M{"avatar_key": avatarKey, "updated_at": time.Now().UTC()}}
	result, err := collection.UpdateOne(ctx, bson.M{"_id": userID, "deleted": false}, update)
	if err != nil {
		return apperr.Dependency(err, "error setting avatar for user %s", userID.String())
	}
	if result.MatchedCount == 0 {
		return apperr.NotFound("user %s not found", userID.String())
	}
	return nil
}
