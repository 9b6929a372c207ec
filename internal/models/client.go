package models

import (
	"time"

	"kliklens/studioops/internal/utils"
)

// Client is a converted lead or a directly-registered customer.
type Client struct {
	Base      `bson:",inline"`
	Name      string       `bson:"name" json:"name"`
	Phone     string       `bson:"phone,omitempty" json:"phone,omitempty"`
	Email     string       `bson:"email,omitempty" json:"email,omitempty"`
	Address   string       `bson:"address,omitempty" json:"address,omitempty"`
	LeadID    *utils.SixID `bson:"lead_id,omitempty" json:"lead_id,omitempty"`
	CreatedAt time.Time    `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time    `bson:"updated_at" json:"updated_at"`
	Deleted   bool         `bson:"deleted" json:"-"`
}
