package models

import (
	"encoding/json"
	"time"
)

// ResponseEnvelope is the canonical persisted body of a response. On
// success Labels carries the normalized label map and Raw the vendor
// body verbatim; on failure ServiceError carries the collapsed error.
type ResponseEnvelope struct {
	Labels       map[string]float64 `json:"labels,omitempty"`
	Raw          json.RawMessage    `json:"raw,omitempty"`
	ServiceError string             `json:"service_error,omitempty"`
}

// Response stores the raw vendor body and success flag for one
// request. Body is nil when even the envelope could not be encoded.
type Response struct {
	ID             int64     `db:"id" json:"id"`
	RequestID      int64     `db:"request_id" json:"request_id"`
	BenchmarkKeyID *int64    `db:"benchmark_key_id" json:"benchmark_key_id,omitempty"`
	Body           []byte    `db:"body" json:"-"`
	Success        bool      `db:"success" json:"success"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}

// TableName returns the database table name
func (Response) TableName() string {
	return "responses"
}

// Envelope decodes the persisted body. A nil or undecodable body
// yields an empty envelope.
func (r *Response) Envelope() ResponseEnvelope {
	var env ResponseEnvelope
	if len(r.Body) == 0 {
		return env
	}
	if err := json.Unmarshal(r.Body, &env); err != nil {
		return ResponseEnvelope{}
	}
	return env
}

// Labels returns the decoded label map. Failed responses always
// decode to an empty map.
func (r *Response) Labels() map[string]float64 {
	if !r.Success {
		return map[string]float64{}
	}
	env := r.Envelope()
	if env.Labels == nil {
		return map[string]float64{}
	}
	return env.Labels
}

// ServiceError returns the collapsed provider error, or "" on success.
func (r *Response) ServiceError() string {
	return r.Envelope().ServiceError
}

// ResponseView is the introspection shape of a response: the row
// metadata plus its decoded envelope.
type ResponseView struct {
	ID             int64            `json:"id"`
	RequestID      int64            `json:"request_id"`
	BenchmarkKeyID *int64           `json:"benchmark_key_id,omitempty"`
	Success        bool             `json:"success"`
	CreatedAt      time.Time        `json:"created_at"`
	Envelope       ResponseEnvelope `json:"envelope"`
}

// View renders the response for introspection endpoints.
func (r *Response) View() ResponseView {
	return ResponseView{
		ID:             r.ID,
		RequestID:      r.RequestID,
		BenchmarkKeyID: r.BenchmarkKeyID,
		Success:        r.Success,
		CreatedAt:      r.CreatedAt,
		Envelope:       r.Envelope(),
	}
}
