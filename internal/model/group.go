package model

import "time"

type Group struct {
	Code        string    `db:"code" json:"code"`
	Name        string    `db:"name" json:"name"`
	Description *string   `db:"description" json:"description,omitempty"`
	CreatedAt   time.Time `db:"created_at" json:"createdAt"`
}

type CreateGroupParams struct {
	Code        string
	Name        string
	Description *string
}

type UpdateGroupParams struct {
	Name        *string
	Description *string
}
