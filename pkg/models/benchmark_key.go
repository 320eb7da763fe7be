package models

import (
	"time"

	"github.com/icvsb/icvsb/pkg/database"
)

// BenchmarkKey is a persisted reference point for drift detection: the
// snapshot batch plus the tolerance thresholds it was minted with.
// Keys are only ever expired, never deleted.
type BenchmarkKey struct {
	ID              int64                    `db:"id" json:"id"`
	ServiceID       int64                    `db:"service_id" json:"service_id"`
	BatchRequestID  int64                    `db:"batch_request_id" json:"batch_request_id"`
	SeverityID      int64                    `db:"severity_id" json:"severity_id"`
	Expired         bool                     `db:"expired" json:"expired"`
	DeltaLabels     int                      `db:"delta_labels" json:"delta_labels"`
	DeltaConfidence float64                  `db:"delta_confidence" json:"delta_confidence"`
	MaxLabels       int                      `db:"max_labels" json:"max_labels"`
	MinConfidence   float64                  `db:"min_confidence" json:"min_confidence"`
	ExpectedLabels  database.JSONB[[]string] `db:"expected_labels" json:"expected_labels"`
	CreatedAt       time.Time                `db:"created_at" json:"created_at"`
}

// TableName returns the database table name
func (BenchmarkKey) TableName() string {
	return "benchmark_keys"
}
