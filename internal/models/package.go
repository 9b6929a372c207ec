package models

import "time"

// PhysicalItem is a deliverable in a package's physical-item catalog, used
// to seed printing cost line items on new projects.
type PhysicalItem struct {
	Label string `bson:"label" json:"label"`
	Cost  int64  `bson:"cost" json:"cost"`
}

// Package is a bookable service offering with a fixed price.
type Package struct {
	Base          `bson:",inline"`
	Name          string         `bson:"name" json:"name"`
	Price         int64          `bson:"price" json:"price"`
	Description   string         `bson:"description,omitempty" json:"description,omitempty"`
	PhysicalItems []PhysicalItem `bson:"physical_items" json:"physical_items"`
	Active        bool           `bson:"active" json:"active"`
	CreatedAt     time.Time      `bson:"created_at" json:"created_at"`
	Deleted       bool           `bson:"deleted" json:"-"`
}
