package models

import "time"

// LeadStatus is the intake state of a prospective client. Converted and
// Rejected are terminal.
type LeadStatus string

const (
	LeadDiscussion LeadStatus = "Discussion"
	LeadFollowUp   LeadStatus = "FollowUp"
	LeadConverted  LeadStatus = "Converted"
	LeadRejected   LeadStatus = "Rejected"
)

// LeadTransitions lists the allowed status moves. Conversion to Converted is
// performed by the conversion pipeline, not by a plain status update.
var LeadTransitions = map[LeadStatus]map[LeadStatus]bool{
	LeadDiscussion: {LeadFollowUp: true, LeadRejected: true},
	LeadFollowUp:   {LeadDiscussion: true, LeadRejected: true},
	LeadConverted:  {},
	LeadRejected:   {},
}

// CanTransition reports whether a plain status update from current to next
// is allowed.
func (s LeadStatus) CanTransition(next LeadStatus) bool {
	nexts, ok := LeadTransitions[s]
	if !ok {
		return false
	}
	return nexts[next]
}

// Convertible reports whether the lead may enter the conversion pipeline.
func (s LeadStatus) Convertible() bool {
	return s == LeadDiscussion || s == LeadFollowUp
}

// Lead is a prospective client captured from a chat channel.
type Lead struct {
	Base      `bson:",inline"`
	Name      string     `bson:"name" json:"name"`
	Channel   string     `bson:"channel" json:"channel"`
	Phone     string     `bson:"phone,omitempty" json:"phone,omitempty"`
	Notes     string     `bson:"notes,omitempty" json:"notes,omitempty"`
	Status    LeadStatus `bson:"status" json:"status"`
	CreatedAt time.Time  `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time  `bson:"updated_at" json:"updated_at"`
	Deleted   bool       `bson:"deleted" json:"-"`
}
