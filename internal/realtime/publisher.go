// Package realtime publishes conversation events over Redis pub/sub.
//
// The negotiation workflow only writes rows and publishes events; the SSE
// handler subscribes on behalf of connected clients and forwards them.
// Publication is best-effort: a failed publish is logged and never fails
// the originating state transition.
package realtime

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/SleshGG/sipkoviste.cz-sub000/internal/utils"
)

// Event types delivered to conversation subscribers.
const (
	EventMessageNew    = "message.new"
	EventOfferUpdated  = "offer.updated"
	EventSaleConfirmed = "sale.confirmed"
)

// Event is the JSON payload pushed to subscribers.
type Event struct {
	Type      string          `json:"type"`
	ListingID string          `json:"listing_id,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	At        time.Time       `json:"at"`
}

// Publisher writes events to per-conversation Redis channels.
type Publisher struct {
	rdb *redis.Client
}

// NewPublisher creates a Publisher.
func NewPublisher(rdb *redis.Client) *Publisher {
	return &Publisher{rdb: rdb}
}

// ConversationChannel names the channel for a participant pair. The pair
// is order-independent: both sides subscribe to the same channel.
func ConversationChannel(a, b utils.SixID) string {
	lo, hi := a.String(), b.String()
	if lo > hi {
		lo, hi = hi, lo
	}
	return "conv:" + lo + ":" + hi
}

// UserChannel names the per-user channel used for inbox-level events.
func UserChannel(userID utils.SixID) string {
	return "user:" + userID.String()
}

// Publish sends an event to both the conversation channel and each
// participant's user channel. Errors are logged, not returned: realtime
// delivery sits outside the consistency boundary.
func (p *Publisher) Publish(ctx context.Context, a, b utils.SixID, event Event) {
	if p == nil || p.rdb == nil {
		return
	}
	if event.At.IsZero() {
		event.At = time.Now().UTC()
	}
	data, err := json.Marshal(event)
	if err != nil {
		log.Printf("realtime: failed to marshal event %s: %v", event.Type, err)
		return
	}
	for _, channel := range []string{ConversationChannel(a, b), UserChannel(a), UserChannel(b)} {
		if err := p.rdb.Publish(ctx, channel, data).Err(); err != nil {
			log.Printf("realtime: failed to publish %s to %s: %v", event.Type, channel, err)
		}
	}
}

// Subscribe opens a subscription to the given user's channel. The caller
// owns the returned PubSub and must Close it.
func (p *Publisher) Subscribe(ctx context.Context, userID utils.SixID) *redis.PubSub {
	return p.rdb.Subscribe(ctx, UserChannel(userID))
}
