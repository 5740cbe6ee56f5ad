package model

import (
	"strings"
	"time"

	"github.com/lib/pq"
)

type Emergency struct {
	ID            string         `db:"id" json:"id"`
	Number        string         `db:"emergency_number" json:"emergencyNumber"`
	Date          string         `db:"emergency_date" json:"emergencyDate"`
	Keyword       string         `db:"emergency_keyword" json:"emergencyKeyword"`
	Description   string         `db:"emergency_description" json:"emergencyDescription"`
	Location      string         `db:"emergency_location" json:"emergencyLocation"`
	Groups        pq.StringArray `db:"groups" json:"groups"`
	Active        bool           `db:"active" json:"active"`
	CreatedAt     time.Time      `db:"created_at" json:"createdAt"`
	DeactivatedAt *time.Time     `db:"deactivated_at" json:"deactivatedAt,omitempty"`
}

func (e *Emergency) State() EmergencyState {
	if e.Active {
		return EmergencyActive
	}
	return EmergencyInactive
}

// HasGroupFilter reports whether the audience is narrowed to specific groups.
// No filter means every active device.
func (e *Emergency) HasGroupFilter() bool {
	return len(e.Groups) > 0
}

// GroupList returns the filter as a comma-separated string, empty for "all".
func (e *Emergency) GroupList() string {
	return strings.Join(e.Groups, ",")
}

type CreateEmergencyParams struct {
	ID          string
	Number      string
	Date        string
	Keyword     string
	Description string
	Location    string
	Groups      []string
	CreatedAt   time.Time
}
