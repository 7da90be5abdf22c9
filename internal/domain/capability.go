package domain

// Capability names an action a role is allowed to take.
type Capability string

const (
	CapabilityManageEscalations  Capability = "MANAGE_ESCALATIONS"
	CapabilityReceiveEscalations Capability = "RECEIVE_ESCALATIONS"
	CapabilityWorkTickets        Capability = "WORK_TICKETS"
	CapabilityConfigureSLA       Capability = "CONFIGURE_SLA"
	CapabilityViewAnalytics      Capability = "VIEW_ANALYTICS"
)

var roleCapabilities = map[UserRole][]Capability{
	UserRoleManager: {
		CapabilityManageEscalations,
		CapabilityConfigureSLA,
		CapabilityViewAnalytics,
	},
	UserRoleSeniorTechnician: {
		CapabilityReceiveEscalations,
		CapabilityWorkTickets,
	},
	UserRoleTechnician: {
		CapabilityWorkTickets,
	},
}

// HasCapability is the single authorization check used by services and middleware.
func HasCapability(user *User, capability Capability) bool {
	if user == nil {
		return false
	}
	for _, c := range roleCapabilities[user.Role] {
		if c == capability {
			return true
		}
	}
	return false
}

// RolesWith lists the roles holding the capability, in a fixed order.
func RolesWith(capability Capability) []UserRole {
	var roles []UserRole
	for _, role := range []UserRole{UserRoleManager, UserRoleSeniorTechnician, UserRoleTechnician, UserRoleUser} {
		for _, c := range roleCapabilities[role] {
			if c == capability {
				roles = append(roles, role)
				break
			}
		}
	}
	return roles
}
