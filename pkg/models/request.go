package models

import "time"

// Request records one call against one URI. CreatedAt is taken before
// dispatch so it always precedes the response timestamp.
type Request struct {
	ID             int64     `db:"id" json:"id"`
	ServiceID      int64     `db:"service_id" json:"service_id"`
	BatchRequestID *int64    `db:"batch_request_id" json:"batch_request_id,omitempty"`
	URI            string    `db:"uri" json:"uri"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}

// TableName returns the database table name
func (Request) TableName() string {
	return "requests"
}
