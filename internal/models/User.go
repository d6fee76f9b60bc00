package models

import "strings"

const (
	RoleSuperAdmin = "super-admin"
	RoleBusOwner   = "bus-owner"
	RoleManager    = "manager"
)

// NormalizeRole maps loose spellings ("Super Admin", "bus_owner") to the canonical role.
func NormalizeRole(role string) (string, bool) {
	r := strings.ToLower(strings.TrimSpace(role))
	r = strings.NewReplacer(" ", "-", "_", "-").Replace(r)
	switch r {
	case RoleSuperAdmin, RoleBusOwner, RoleManager:
		return r, true
	}
	return "", false
}

type User struct {
	Base
	Name     string `json:"name"`
	Email    string `json:"email" gorm:"uniqueIndex;not null"`
	Password string `json:"-"`
	Phone    string `json:"phone"`
	Role     string `json:"role" gorm:"index;not null"`
	IsActive bool   `json:"isActive" gorm:"not null;default:true"`

	// Buses a manager is allowed to see and review.
	AssignedBuses []Bus `gorm:"many2many:manager_buses;constraint:OnDelete:CASCADE;" json:"assignedBuses,omitempty"`
}
