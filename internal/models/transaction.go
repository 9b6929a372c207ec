package models

import (
	"time"

	"kliklens/studioops/internal/utils"
)

// TransactionCategory classifies a ledger entry.
type TransactionCategory string

const (
	CategoryPrinting  TransactionCategory = "printing"
	CategoryTransport TransactionCategory = "transport"
	CategoryCustom    TransactionCategory = "custom"
	CategoryDeposit   TransactionCategory = "deposit"
	CategoryPayment   TransactionCategory = "payment"
	CategoryTeamFee   TransactionCategory = "team_fee"
)

// Transaction is a durable ledger entry. Amount is signed: expenses are
// negative, income positive. The invariant reconciled against each funding
// source is balance == initial + sum of its transactions' amounts.
type Transaction struct {
	Base            `bson:",inline"`
	Date            time.Time           `bson:"date" json:"date"`
	Description     string              `bson:"description" json:"description"`
	Amount          int64               `bson:"amount" json:"amount"`
	Category        TransactionCategory `bson:"category" json:"category"`
	ProjectID       *utils.SixID        `bson:"project_id,omitempty" json:"project_id,omitempty"`
	FundingSourceID *utils.SixID        `bson:"funding_source_id,omitempty" json:"funding_source_id,omitempty"`
	CostItemID      *utils.SixID        `bson:"cost_item_id,omitempty" json:"cost_item_id,omitempty"`
	TeamMemberID    *utils.SixID        `bson:"team_member_id,omitempty" json:"team_member_id,omitempty"`
	EvidenceURL     string              `bson:"evidence_url,omitempty" json:"evidence_url,omitempty"`
	CreatedAt       time.Time           `bson:"created_at" json:"created_at"`
	Deleted         bool                `bson:"deleted" json:"-"`
}
