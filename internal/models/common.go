// Package models contains the data structures used throughout the application.
package models

import (
	"time"
)

// ObjectTimes contains timestamps for created and updated documents.
// It should be embedded in persisted structs.
type ObjectTimes struct {
	// CreatedAt is the timestamp when the document was created.
	CreatedAt time.Time `json:"createdAt" bson:"createdAt"`

	// UpdatedAt is the timestamp when the document was last updated.
	UpdatedAt time.Time `json:"updatedAt" bson:"updatedAt"`
}

// CreateNow sets the created and updated timestamps to the current time.
func (o *ObjectTimes) CreateNow() {
	now := time.Now()
	o.CreatedAt = now
	o.UpdatedAt = now
}

// UpdateNow sets the updated timestamp to the current time.
func (o *ObjectTimes) UpdateNow() {
	o.UpdatedAt = time.Now()
}
