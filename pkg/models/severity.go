package models

// Severity is the response-shaping policy applied when a benchmark key
// is found invalid. The set is closed and seeded by migration.
type Severity struct {
	ID   int64  `db:"id" json:"id"`
	Name string `db:"name" json:"name"`
}

// TableName returns the database table name
func (Severity) TableName() string {
	return "severities"
}

const (
	SeverityException = "exception"
	SeverityWarning   = "warning"
	SeverityInfo      = "info"
	SeverityNone      = "none"
)

// KnownSeverities lists the seeded severity names.
func KnownSeverities() []string {
	return []string{SeverityException, SeverityWarning, SeverityInfo, SeverityNone}
}

// IsKnownSeverity reports whether name is one of the seeded severities.
func IsKnownSeverity(name string) bool {
	switch name {
	case SeverityException, SeverityWarning, SeverityInfo, SeverityNone:
		return true
	}
	return false
}
