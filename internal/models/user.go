package models

import (
	"time"
)

// NotificationPreferences lets users opt out of individual email
// notifications. The zero value means "all enabled" is handled by
// DefaultNotificationPreferences at registration time.
type NotificationPreferences struct {
	Question bool `bson:"question" json:"question"`
	Offer    bool `bson:"offer" json:"offer"`
	Sale     bool `bson:"sale" json:"sale"`
	Review   bool `bson:"review" json:"review"`
}

// DefaultNotificationPreferences returns the opt-out defaults for new accounts.
func DefaultNotificationPreferences() NotificationPreferences {
	return NotificationPreferences{Question: true, Offer: true, Sale: true, Review: true}
}

// User is an account holder. The rating aggregate is derived state,
// recomputed inside the review submission flow.
type User struct {
	Base         `bson:",inline"`
	Name         string                  `bson:"name" json:"name"`
	Email        string                  `bson:"email" json:"-"`
	PasswordHash string                  `bson:"password" json:"-"`
	AvatarKey    string                  `bson:"avatar_key,omitempty" json:"avatar_key,omitempty"`
	RatingAvg    float64                 `bson:"rating_avg" json:"rating_avg"`
	RatingCount  int                     `bson:"rating_count" json:"rating_count"`
	MemberSince  time.Time               `bson:"member_since" json:"member_since"`
	ShowOnline   bool                    `bson:"show_online" json:"show_online"`
	LastActiveAt *time.Time              `bson:"last_active_at,omitempty" json:"last_active_at,omitempty"`
	OTPSecret    string                  `bson:"otp_secret,omitempty" json:"-"`
	IsAdmin      bool                    `bson:"is_admin" json:"-"`
	Notify       NotificationPreferences `bson:"notify" json:"notify"`
	UpdatedAt    time.Time               `bson:"updated_at" json:"-"`
	Deleted      bool                    `bson:"deleted" json:"-"`
}

// PublicProfile is the externally visible projection of a user.
type PublicProfile struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	AvatarKey   string     `json:"avatar_key,omitempty"`
	RatingAvg   float64    `json:"rating_avg"`
	RatingCount int        `json:"rating_count"`
	MemberSince time.Time  `json:"member_since"`
	Online      *bool      `json:"online,omitempty"`         // nil unless the user opted in
	LastActive  *time.Time `json:"last_active_at,omitempty"` // nil unless the user opted in
}
