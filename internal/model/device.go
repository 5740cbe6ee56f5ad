package model

import (
	"time"
)

type Qualifications struct {
	Machinist bool `db:"qual_machinist" json:"machinist"`
	AGT       bool `db:"qual_agt" json:"agt"`
	Paramedic bool `db:"qual_paramedic" json:"paramedic"`
}

type Device struct {
	ID                string    `db:"id" json:"id"`
	DeviceToken       string    `db:"device_token" json:"deviceToken"`
	RegistrationToken string    `db:"registration_token" json:"registrationToken"`
	Platform          Platform  `db:"platform" json:"platform"`
	RegisteredAt      time.Time `db:"registered_at" json:"registeredAt"`
	Active            bool      `db:"active" json:"active"`
	FirstName         *string   `db:"first_name" json:"firstName,omitempty"`
	LastName          *string   `db:"last_name" json:"lastName,omitempty"`
	Qualifications    `json:"qualifications"`
	LeadershipRole    LeadershipRole `db:"leadership_role" json:"leadershipRole"`
	AssignedGroups    []string       `db:"-" json:"assignedGroups"`
}

type RegisterDeviceParams struct {
	ID                string
	DeviceToken       string
	RegistrationToken string
	Platform          Platform
	FirstName         *string
	LastName          *string
	Qualifications    Qualifications
	LeadershipRole    LeadershipRole
}
