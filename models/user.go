package models

import "time"

// Role is the authorization tier assigned to a user.
type Role string

const (
	RoleAdmin   Role = "admin"
	RoleOwner   Role = "owner"
	RoleManager Role = "manager"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleOwner, RoleManager:
		return true
	}

	return false
}

// User is the document stored under users/{id}. The id is assigned by the
// identity provider. For non-admin roles exactly one of ManagedStores or
// OwnedStores is populated; admins have both empty.
type User struct {
	ID            string    `json:"id"`
	Email         string    `json:"email"`
	DisplayName   string    `json:"displayName"`
	Role          Role      `json:"role"`
	ManagedStores []string  `json:"managedStores"`
	OwnedStores   []string  `json:"ownedStores"`
	CreatedAt     time.Time `json:"createdAt"`
	CreatedBy     string    `json:"createdBy"`
}
