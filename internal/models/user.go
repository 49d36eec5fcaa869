package models

import "time"

// Group names recognized by the triage-authority check.
const (
	GroupTriage     = "Triage Group"
	GroupTriageLead = "Triage Group Lead"
)

type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	IsAdmin   bool      `json:"isAdmin"`
	Groups    []string  `json:"groups"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// TriageAuthority reports whether the user may act on triage-only
// operations: administrators and members of either triage group.
func (u *User) TriageAuthority() bool {
	if u == nil {
		return false
	}
	if u.IsAdmin {
		return true
	}
	for _, g := range u.Groups {
		if g == GroupTriage || g == GroupTriageLead {
			return true
		}
	}
	return false
}

// DisplayName is the name used when attributing actions in notes,
// falling back to the email when no name is set.
func (u *User) DisplayName() string {
	if u == nil {
		return ""
	}
	if u.Name != "" {
		return u.Name
	}
	return u.Email
}
