package models

import (
	"time"

	"github.com/SleshGG/sipkoviste.cz-sub000/internal/utils"
)

// Favorite is a (user, listing) bookmark. Existence implies "favorited";
// a unique index on the pair makes adds idempotent.
type Favorite struct {
	Base      `bson:",inline"`
	UserID    utils.SixID `bson:"user_id" json:"user_id"`
	ListingID utils.SixID `bson:"listing_id" json:"listing_id"`
	CreatedAt time.Time   `bson:"created_at" json:"created_at"`
}

// FavoriteWithListing is the favorites-list projection with the listing
// joined in (nil when the listing has since been removed).
type FavoriteWithListing struct {
	Favorite `bson:",inline"`
	Item     *Listing `bson:"item,omitempty" json:"item,omitempty"`
}
