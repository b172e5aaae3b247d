package models

import (
	"time"

	"github.com/SleshGG/sipkoviste.cz-sub000/internal/utils"
)

// Category enumerates the darts-equipment categories a listing can belong to.
type Category string

const (
	CategorySteelTip    Category = "steel_tip"
	CategorySoftTip     Category = "soft_tip"
	CategoryFlights     Category = "flights"
	CategoryShafts      Category = "shafts"
	CategoryCases       Category = "cases"
	CategoryBoards      Category = "boards"
	CategoryAccessories Category = "accessories"
)

// Categories lists all valid listing categories, in display order.
var Categories = []Category{
	CategorySteelTip, CategorySoftTip, CategoryFlights,
	CategoryShafts, CategoryCases, CategoryBoards, CategoryAccessories,
}

// Valid reports whether c is a known category.
func (c Category) Valid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

// Condition enumerates the wear states a second-hand item can be in.
type Condition string

const (
	ConditionNew     Condition = "new"
	ConditionLikeNew Condition = "like_new"
	ConditionUsed    Condition = "used"
	ConditionWorn    Condition = "worn"
)

// Conditions lists all valid conditions, best first.
var Conditions = []Condition{ConditionNew, ConditionLikeNew, ConditionUsed, ConditionWorn}

// Valid reports whether c is a known condition.
func (c Condition) Valid() bool {
	for _, known := range Conditions {
		if c == known {
			return true
		}
	}
	return false
}

// Price is a monetary value with its currency code.
type Price struct {
	Value        float64 `bson:"value" json:"value"`
	CurrencyCode string  `bson:"currency_code" json:"currency_code"`
}

// Listing is a for-sale item posted by a seller.
type Listing struct {
	Base          `bson:",inline"`
	SellerID      utils.SixID       `bson:"seller_id" json:"seller_id"`
	Name          string            `bson:"name" json:"name"`
	Brand         string            `bson:"brand,omitempty" json:"brand,omitempty"`
	Category      Category          `bson:"category" json:"category"`
	Condition     Condition         `bson:"condition" json:"condition"`
	Price         Price             `bson:"price" json:"price"`
	Negotiable    bool              `bson:"negotiable" json:"negotiable"`
	WeightGrams   float64           `bson:"weight_grams,omitempty" json:"weight_grams,omitempty"`
	Material      string            `bson:"material,omitempty" json:"material,omitempty"`
	Description   string            `bson:"description" json:"description"`
	Specs         map[string]string `bson:"specs,omitempty" json:"specs,omitempty"`
	Images        []string          `bson:"images" json:"images"` // ordered S3 keys
	Visible       bool              `bson:"visible" json:"visible"`
	FavoriteCount int               `bson:"favorite_count" json:"favorite_count"`
	SoldAt        *time.Time        `bson:"sold_at,omitempty" json:"sold_at,omitempty"`
	CreatedAt     time.Time         `bson:"created_at" json:"created_at"`
	UpdatedAt     time.Time         `bson:"updated_at" json:"updated_at"`
	Deleted       bool              `bson:"deleted" json:"-"`
}

// Sold reports whether a confirmed sale has stamped the listing.
func (l *Listing) Sold() bool {
	return l.SoldAt != nil
}

// ListingSnapshot is the minimal listing reference embedded into messages
// so conversations stay readable after the listing is removed.
type ListingSnapshot struct {
	ID   utils.SixID `bson:"id" json:"id"`
	Name string      `bson:"name" json:"name"`
}
