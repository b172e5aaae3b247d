package models

import (
	"time"

	"github.com/SleshGG/sipkoviste.cz-sub000/internal/utils"
)

// Review is a post-sale rating of the counterpart. The listing reference
// is nullable: a sold listing may be deleted later, but the review (and
// its snapshot of the listing name) must remain inspectable.
type Review struct {
	Base      `bson:",inline"`
	AuthorID  utils.SixID      `bson:"author_id" json:"author_id"`
	SubjectID utils.SixID      `bson:"subject_id" json:"subject_id"`
	ListingID *utils.SixID     `bson:"listing_id,omitempty" json:"listing_id,omitempty"`
	Listing   *ListingSnapshot `bson:"listing,omitempty" json:"listing,omitempty"`
	Rating    int              `bson:"rating" json:"rating"` // 1..5
	Comment   string           `bson:"comment,omitempty" json:"comment,omitempty"`
	CreatedAt time.Time        `bson:"created_at" json:"created_at"`
}
