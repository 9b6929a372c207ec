package models

import (
	"time"

	"kliklens/studioops/internal/utils"
)

// PaymentStatus is derived from amountPaid against totalCost.
type PaymentStatus string

const (
	PaymentUnpaid        PaymentStatus = "Unpaid"
	PaymentPartiallyPaid PaymentStatus = "PartiallyPaid"
	PaymentPaid          PaymentStatus = "Paid"
)

// BookingStatus is the intake gate for publicly-originated projects. It is
// independent of the main workflow status.
type BookingStatus string

const (
	BookingNone      BookingStatus = ""
	BookingNew       BookingStatus = "BookingNew"
	BookingConfirmed BookingStatus = "BookingConfirmed"
	BookingRejected  BookingStatus = "BookingRejected"
)

// CostCategory classifies a payable line item.
type CostCategory string

const (
	CostPrinting  CostCategory = "printing"
	CostTransport CostCategory = "transport"
	CostCustom    CostCategory = "custom"
)

// CostStatus tracks settlement of a line item. Unpaid -> Paid is one-way.
type CostStatus string

const (
	CostUnpaid CostStatus = "Unpaid"
	CostPaid   CostStatus = "Paid"
)

// CostLineItem is a payable expense tied to a project. Amount is editable
// only while Unpaid.
type CostLineItem struct {
	ID              utils.SixID  `bson:"id" json:"id"`
	Label           string       `bson:"label" json:"label"`
	Category        CostCategory `bson:"category" json:"category"`
	Amount          int64        `bson:"amount" json:"amount"`
	Status          CostStatus   `bson:"status" json:"status"`
	PaidAt          *time.Time   `bson:"paid_at,omitempty" json:"paid_at,omitempty"`
	FundingSourceID *utils.SixID `bson:"funding_source_id,omitempty" json:"funding_source_id,omitempty"`
}

// AddOn is an extra billable added on top of the package price.
type AddOn struct {
	Name  string `bson:"name" json:"name"`
	Price int64  `bson:"price" json:"price"`
}

// TeamAssignment records a member working a project together with the
// compensation agreed for it.
type TeamAssignment struct {
	MemberID utils.SixID `bson:"member_id" json:"member_id"`
	Role     string      `bson:"role" json:"role"`
	Fee      int64       `bson:"fee" json:"fee"`
	Reward   int64       `bson:"reward" json:"reward"`
}

// SubStatusState tracks the client confirmation cycle of a single checklist
// entry: when it was sent out and what the client replied.
type SubStatusState struct {
	SentAt     *time.Time `bson:"sent_at,omitempty" json:"sent_at,omitempty"`
	Recipient  string     `bson:"recipient,omitempty" json:"recipient,omitempty"`
	ClientNote string     `bson:"client_note,omitempty" json:"client_note,omitempty"`
}

// Project is a billable engagement from booking through completion.
//
// Invariant: TotalCost = PackagePrice + sum of add-ons - Discount + sum of
// cost line item amounts, maintained by every cost mutation path.
type Project struct {
	Base                 `bson:",inline"`
	Name                 string                    `bson:"name" json:"name"`
	ClientID             utils.SixID               `bson:"client_id" json:"client_id"`
	PackageID            *utils.SixID              `bson:"package_id,omitempty" json:"package_id,omitempty"`
	PackagePrice         int64                     `bson:"package_price" json:"package_price"`
	AddOns               []AddOn                   `bson:"add_ons" json:"add_ons"`
	Discount             int64                     `bson:"discount" json:"discount"`
	PromoCodeID          *utils.SixID              `bson:"promo_code_id,omitempty" json:"promo_code_id,omitempty"`
	EventDate            time.Time                 `bson:"event_date" json:"event_date"`
	Status               string                    `bson:"status" json:"status"`
	Progress             int                       `bson:"progress" json:"progress"`
	ActiveSubStatuses    []string                  `bson:"active_sub_statuses" json:"active_sub_statuses"`
	ConfirmedSubStatuses []string                  `bson:"confirmed_sub_statuses" json:"confirmed_sub_statuses"`
	SubStatusInfo        map[string]SubStatusState `bson:"sub_status_info,omitempty" json:"sub_status_info,omitempty"`
	ChecklistOverride    map[string][]string       `bson:"checklist_override,omitempty" json:"checklist_override,omitempty"`
	TotalCost            int64                     `bson:"total_cost" json:"total_cost"`
	AmountPaid           int64                     `bson:"amount_paid" json:"amount_paid"`
	PaymentStatus        PaymentStatus             `bson:"payment_status" json:"payment_status"`
	CostItems            []CostLineItem            `bson:"cost_items" json:"cost_items"`
	Team                 []TeamAssignment          `bson:"team" json:"team"`
	BookingStatus        BookingStatus             `bson:"booking_status,omitempty" json:"booking_status,omitempty"`
	PublicOrigin         bool                      `bson:"public_origin" json:"public_origin"`
	CreatedAt            time.Time                 `bson:"created_at" json:"created_at"`
	UpdatedAt            time.Time                 `bson:"updated_at" json:"updated_at"`
	Deleted              bool                      `bson:"deleted" json:"-"`
}

// CostItem returns the line item with the given id, or nil.
func (p *Project) CostItem(id utils.SixID) *CostLineItem {
	for i := range p.CostItems {
		if p.CostItems[i].ID == id {
			return &p.CostItems[i]
		}
	}
	return nil
}

// CostSum returns the sum of all cost line item amounts.
func (p *Project) CostSum() int64 {
	var sum int64
	for _, it := range p.CostItems {
		sum += it.Amount
	}
	return sum
}

// CategorySum returns the sum of line item amounts in one category.
func (p *Project) CategorySum(cat CostCategory) int64 {
	var sum int64
	for _, it := range p.CostItems {
		if it.Category == cat {
			sum += it.Amount
		}
	}
	return sum
}

// AddOnSum returns the sum of add-on prices.
func (p *Project) AddOnSum() int64 {
	var sum int64
	for _, a := range p.AddOns {
		sum += a.Price
	}
	return sum
}

// ComputeTotalCost evaluates the project cost identity from scratch.
func (p *Project) ComputeTotalCost() int64 {
	return p.PackagePrice + p.AddOnSum() - p.Discount + p.CostSum()
}

// DerivePaymentStatus maps amountPaid against totalCost.
func DerivePaymentStatus(amountPaid, totalCost int64) PaymentStatus {
	switch {
	case amountPaid <= 0:
		return PaymentUnpaid
	case amountPaid < totalCost:
		return PaymentPartiallyPaid
	default:
		return PaymentPaid
	}
}

// IsConfirmed reports whether the client confirmed the given sub-status.
func (p *Project) IsConfirmed(subStatus string) bool {
	for _, s := range p.ConfirmedSubStatuses {
		if s == subStatus {
			return true
		}
	}
	return false
}

// NeedsFollowUp reports whether a confirmation request for the sub-status
// went out more than maxAge ago without the client confirming.
func (p *Project) NeedsFollowUp(subStatus string, maxAge time.Duration, now time.Time) bool {
	info, ok := p.SubStatusInfo[subStatus]
	if !ok || info.SentAt == nil {
		return false
	}
	if p.IsConfirmed(subStatus) {
		return false
	}
	return now.Sub(*info.SentAt) > maxAge
}
