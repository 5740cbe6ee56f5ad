package model

import "time"

type Response struct {
	ID            string    `db:"id" json:"id"`
	EmergencyID   string    `db:"emergency_id" json:"emergencyId"`
	DeviceID      string    `db:"device_id" json:"deviceId"`
	Participating bool      `db:"participating" json:"participating"`
	RespondedAt   time.Time `db:"responded_at" json:"respondedAt"`
}

type Responder struct {
	FirstName      *string `db:"first_name" json:"firstName,omitempty"`
	LastName       *string `db:"last_name" json:"lastName,omitempty"`
	Qualifications `json:"qualifications"`
	LeadershipRole LeadershipRole `db:"leadership_role" json:"leadershipRole"`
}

// ResponseDetail is a response joined with the responding device.
type ResponseDetail struct {
	Response
	Platform  Platform `db:"platform" json:"platform"`
	Responder `json:"responder"`
}

type SubmitResponseParams struct {
	ID            string
	EmergencyID   string
	DeviceID      string
	Participating bool
}
