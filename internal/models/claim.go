package models

import (
	"time"

	"github.com/google/uuid"
)

// Claim is the persisted record of a user-submitted claim and the latest
// known outcome of its verification run. The relay never touches this
// table; it is refreshed by the HTTP layer whenever a run is fetched there.
type Claim struct {
	ID         uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	Text       string    `json:"text"`
	RunID      string    `json:"runId" gorm:"index"`
	Status     string    `json:"status"`
	Confidence float64   `json:"confidence"`
	Verdict    string    `json:"verdict"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}
