package domain

import "time"

// UserRole enumerates the roles a helpdesk account can hold.
type UserRole string

const (
	UserRoleManager          UserRole = "MANAGER"
	UserRoleTechnician       UserRole = "TECHNICIAN"
	UserRoleSeniorTechnician UserRole = "SENIOR_TECHNICIAN"
	UserRoleUser             UserRole = "USER"
)

// User is any account: requesters, technicians and managers.
type User struct {
	ID           int64
	Name         string
	Email        string
	PasswordHash string
	Role         UserRole
	CreatedAt    time.Time
}

// Valid reports whether r is a known role.
func (r UserRole) Valid() bool {
	switch r {
	case UserRoleManager, UserRoleTechnician, UserRoleSeniorTechnician, UserRoleUser:
		return true
	}
	return false
}
