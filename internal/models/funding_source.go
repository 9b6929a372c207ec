package models

import "time"

// FundingKind distinguishes physical cards from cash pockets.
type FundingKind string

const (
	FundingCard   FundingKind = "card"
	FundingPocket FundingKind = "pocket"
)

// FundingSource is a card or cash pocket holding a balance from which
// settlements are paid. Balance is a whole-currency-unit integer and is
// mutated only through the settlement and reconciliation paths.
type FundingSource struct {
	Base      `bson:",inline"`
	Label     string      `bson:"label" json:"label"`
	Kind      FundingKind `bson:"kind" json:"kind"`
	Balance   int64       `bson:"balance" json:"balance"`
	CreatedAt time.Time   `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time   `bson:"updated_at" json:"updated_at"`
	Deleted   bool        `bson:"deleted" json:"-"`
}
