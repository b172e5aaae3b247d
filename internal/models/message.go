package models

import (
	"time"

	"github.com/SleshGG/sipkoviste.cz-sub000/internal/utils"
)

// MessageKind distinguishes plain chat from the structured negotiation steps.
type MessageKind string

const (
	MessageKindPlain     MessageKind = "plain"
	MessageKindQuestion  MessageKind = "question"
	MessageKindBuyIntent MessageKind = "buy_intent"
	MessageKindOffer     MessageKind = "offer"
)

// OfferStatus is the per-offer state machine. Pending is the only state
// transitions are allowed out of; accepted and rejected are terminal.
// A counter-offer rejects the original and creates a new pending offer in
// the reverse direction.
type OfferStatus string

const (
	OfferPending  OfferStatus = "pending"
	OfferAccepted OfferStatus = "accepted"
	OfferRejected OfferStatus = "rejected"
)

// Message is one entry of a buyer/seller conversation. Offer fields are
// populated only when Kind == MessageKindOffer.
type Message struct {
	Base        `bson:",inline"`
	SenderID    utils.SixID      `bson:"sender_id" json:"sender_id"`
	ReceiverID  utils.SixID      `bson:"receiver_id" json:"receiver_id"`
	ListingID   *utils.SixID     `bson:"listing_id,omitempty" json:"listing_id,omitempty"`
	Listing     *ListingSnapshot `bson:"listing,omitempty" json:"listing,omitempty"`
	Body        string           `bson:"body,omitempty" json:"body,omitempty"`
	Kind        MessageKind      `bson:"kind" json:"kind"`
	OfferAmount *Price           `bson:"offer_amount,omitempty" json:"offer_amount,omitempty"`
	OfferStatus OfferStatus      `bson:"offer_status,omitempty" json:"offer_status,omitempty"`
	Read        bool             `bson:"read" json:"read"`
	CreatedAt   time.Time        `bson:"created_at" json:"created_at"`
}

// IsOffer reports whether the message carries an embedded offer.
func (m *Message) IsOffer() bool {
	return m.Kind == MessageKindOffer
}

// Conversation is the read-model projection for the inbox: the latest
// message per counterpart+listing pair plus an unread counter.
type Conversation struct {
	CounterpartID utils.SixID      `bson:"counterpart_id" json:"counterpart_id"`
	Listing       *ListingSnapshot `bson:"listing,omitempty" json:"listing,omitempty"`
	LastMessage   Message          `bson:"last_message" json:"last_message"`
	UnreadCount   int              `bson:"unread_count" json:"unread_count"`
}
