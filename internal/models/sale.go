package models

import (
	"time"

	"github.com/SleshGG/sipkoviste.cz-sub000/internal/utils"
)

// ConfirmedSale is the durable record that a buyer/seller pair completed a
// transaction for a listing. A unique index on listing_id guarantees at
// most one sale per listing.
type ConfirmedSale struct {
	Base        `bson:",inline"`
	ListingID   utils.SixID `bson:"listing_id" json:"listing_id"`
	BuyerID     utils.SixID `bson:"buyer_id" json:"buyer_id"`
	SellerID    utils.SixID `bson:"seller_id" json:"seller_id"`
	ConfirmedAt time.Time   `bson:"confirmed_at" json:"confirmed_at"`
	ConfirmedBy utils.SixID `bson:"confirmed_by" json:"confirmed_by"`
}

// SaleStatus is the UI projection of where a buyer/seller pair stands for
// one listing: whether the sale is confirmed, whether the asking party may
// still review, and whether the listing went to somebody else.
type SaleStatus struct {
	Confirmed       bool           `json:"confirmed"`
	Sale            *ConfirmedSale `json:"sale,omitempty"`
	CanReview       bool           `json:"can_review"`
	AlreadyReviewed bool           `json:"already_reviewed"`
	SoldToOther     bool           `json:"sold_to_other"`
}
