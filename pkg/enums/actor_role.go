package enums

// ActorRole is the closed set of roles an authenticated actor may hold.
type ActorRole string

const (
	ActorRoleResident   ActorRole = "resident"
	ActorRoleCommittee  ActorRole = "committee"
	ActorRoleSuperAdmin ActorRole = "super_admin"
)

var actorRoles = newSet("actor role", ActorRoleResident, ActorRoleCommittee, ActorRoleSuperAdmin)

func (r ActorRole) String() string { return string(r) }

func (r ActorRole) IsValid() bool { return actorRoles.has(r) }

// IsStaff reports whether the role operates on behalf of the committee.
func (r ActorRole) IsStaff() bool {
	return r == ActorRoleCommittee || r == ActorRoleSuperAdmin
}

func ParseActorRole(value string) (ActorRole, error) { return actorRoles.parse(value) }
