package entity

import "time"

type FAQ struct {
	ID        int64     `json:"id" db:"id"`
	Question  string    `json:"question" db:"question"`
	Answer    string    `json:"answer" db:"answer"`
	Position  int       `json:"position" db:"position"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

type MaintenanceState struct {
	Active      bool       `json:"is_active" db:"is_active"`
	ActivatedAt *time.Time `json:"activated_at,omitempty" db:"activated_at"`
	ActivatedBy string     `json:"activated_by,omitempty" db:"activated_by"`
	Reason      string     `json:"reason,omitempty" db:"reason"`
}

// School is a lower secondary school students pick from when registering.
// Schools are deactivated, never deleted.
type School struct {
	ID        string    `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	Active    bool      `json:"active" db:"active"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
