package models

import (
	"time"

	"kliklens/studioops/internal/utils"
)

// TeamPaymentStatus tracks settlement of a member's compensation.
type TeamPaymentStatus string

const (
	TeamPaymentUnpaid TeamPaymentStatus = "Unpaid"
	TeamPaymentPaid   TeamPaymentStatus = "Paid"
)

// TeamPaymentRecord is a member's fee/reward row for one project, keyed
// permanently by (project, member). When a member is removed from the team
// after their record was settled, the record is marked orphaned rather than
// deleted so paid history survives; re-adding the member revives it.
type TeamPaymentRecord struct {
	Base            `bson:",inline"`
	ProjectID       utils.SixID       `bson:"project_id" json:"project_id"`
	MemberID        utils.SixID       `bson:"member_id" json:"member_id"`
	Role            string            `bson:"role" json:"role"`
	Fee             int64             `bson:"fee" json:"fee"`
	Reward          int64             `bson:"reward" json:"reward"`
	Status          TeamPaymentStatus `bson:"status" json:"status"`
	PaidAt          *time.Time        `bson:"paid_at,omitempty" json:"paid_at,omitempty"`
	FundingSourceID *utils.SixID      `bson:"funding_source_id,omitempty" json:"funding_source_id,omitempty"`
	Orphaned        bool              `bson:"orphaned" json:"orphaned"`
	CreatedAt       time.Time         `bson:"created_at" json:"created_at"`
	UpdatedAt       time.Time         `bson:"updated_at" json:"updated_at"`
	Deleted         bool              `bson:"deleted" json:"-"`
}

// Total returns fee plus reward, the amount settled from a funding source.
func (r *TeamPaymentRecord) Total() int64 {
	return r.Fee + r.Reward
}
