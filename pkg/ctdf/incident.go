package ctdf

import "time"

// Incident is the registration data of an SOS case
type Incident struct {
	ID          string    `json:"accidentId" yaml:"id"`
	Scene       GeoPoint  `json:"location" yaml:"location"`
	Description string    `json:"description,omitempty" yaml:"description"`
	Severity    string    `json:"severity,omitempty" yaml:"severity"`
	ReportedAt  time.Time `json:"reportedAt" yaml:"reported_at"`
}

type Hospital struct {
	ID       string   `json:"id" yaml:"id"`
	Name     string   `json:"name" yaml:"name"`
	Location GeoPoint `json:"location" yaml:"location"`
	Phone    string   `json:"phone,omitempty" yaml:"phone"`
}
