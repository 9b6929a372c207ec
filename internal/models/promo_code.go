package models

import "time"

// DiscountType shapes how a promo code reduces the package price.
type DiscountType string

const (
	DiscountPercent DiscountType = "percent"
	DiscountFixed   DiscountType = "fixed"
)

// PromoCode is a discount voucher. UsageCount increments only on a
// successful conversion or booking that references it.
type PromoCode struct {
	Base          `bson:",inline"`
	Code          string       `bson:"code" json:"code"`
	DiscountType  DiscountType `bson:"discount_type" json:"discount_type"`
	DiscountValue int64        `bson:"discount_value" json:"discount_value"`
	UsageCount    int          `bson:"usage_count" json:"usage_count"`
	MaxUsage      int          `bson:"max_usage" json:"max_usage"`
	ExpiresAt     *time.Time   `bson:"expires_at,omitempty" json:"expires_at,omitempty"`
	Active        bool         `bson:"active" json:"active"`
	CreatedAt     time.Time    `bson:"created_at" json:"created_at"`
	Deleted       bool         `bson:"deleted" json:"-"`
}

// DiscountFor computes the discount amount for a given base price.
func (p *PromoCode) DiscountFor(basePrice int64) int64 {
	switch p.DiscountType {
	case DiscountPercent:
		return basePrice * p.DiscountValue / 100
	case DiscountFixed:
		return p.DiscountValue
	default:
		return 0
	}
}

// Usable reports whether the code can still be applied at the given time.
func (p *PromoCode) Usable(now time.Time) bool {
	if !p.Active || p.Deleted {
		return false
	}
	if p.MaxUsage > 0 && p.UsageCount >= p.MaxUsage {
		return false
	}
	if p.ExpiresAt != nil && now.After(*p.ExpiresAt) {
		return false
	}
	return true
}
