package models

import "time"

// TeamMember is a staff member assignable to projects.
type TeamMember struct {
	Base       `bson:",inline"`
	Name       string    `bson:"name" json:"name"`
	Role       string    `bson:"role,omitempty" json:"role,omitempty"`
	Phone      string    `bson:"phone,omitempty" json:"phone,omitempty"`
	DefaultFee int64     `bson:"default_fee" json:"default_fee"`
	Active     bool      `bson:"active" json:"active"`
	CreatedAt  time.Time `bson:"created_at" json:"created_at"`
	Deleted    bool      `bson:"deleted" json:"-"`
}
