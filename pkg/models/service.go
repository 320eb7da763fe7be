package models

// Service identifies a vendor label-detection adapter. The set is
// closed and seeded by migration.
type Service struct {
	ID   int64  `db:"id" json:"id"`
	Name string `db:"name" json:"name"`
}

// TableName returns the database table name
func (Service) TableName() string {
	return "services"
}

const (
	ServiceGoogle = "google"
	ServiceAmazon = "amazon"
	ServiceAzure  = "azure"
)

// KnownServices lists the seeded service names.
func KnownServices() []string {
	return []string{ServiceGoogle, ServiceAmazon, ServiceAzure}
}

// IsKnownService reports whether name is one of the seeded services.
func IsKnownService(name string) bool {
	switch name {
	case ServiceGoogle, ServiceAmazon, ServiceAzure:
		return true
	}
	return false
}
