package models

import (
	"github.com/SleshGG/sipkoviste.cz-sub000/internal/utils"
)

// Base carries the document identity shared by all models.
type Base struct {
	ID utils.SixID `bson:"_id,omitempty" json:"id,omitempty"`
}

// GenIDIfEmpty assigns a fresh ID when none is set yet.
func (m *Base) GenIDIfEmpty() {
	if m.ID.IsZero() {
		m.GenID()
	}
}

// GenID assigns a fresh random ID, replacing any existing one.
func (m *Base) GenID() {
	m.ID = utils.NewSixID()
}

// SetID sets the document ID.
func (m *Base) SetID(id utils.SixID) {
	m.ID = id
}

// NewBase returns a Base with a freshly generated ID.
func NewBase() Base {
	return Base{ID: utils.NewSixID()}
}
