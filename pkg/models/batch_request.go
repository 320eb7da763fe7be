package models

import "time"

// BatchRequest groups the single requests made together during one
// fan-out. Immutable after creation except through its children.
type BatchRequest struct {
	ID        int64     `db:"id" json:"id"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// TableName returns the database table name
func (BatchRequest) TableName() string {
	return "batch_requests"
}
