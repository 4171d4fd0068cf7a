package keycloak

import (
	"errors"
	"fmt"
)

var ErrUnknownRole = errors.New("unknown role")

// Role is the role a user registers with. Each role maps to a Keycloak group and a user attribute holding the id of
// the user's FHIR resource.
type Role string

const (
	RolePatient      Role = "patient"
	RolePractitioner Role = "practitioner"
	RoleAdmin        Role = "admin"
)

type roleBinding struct {
	group        string
	attributeKey string
}

var roleBindings = map[Role]roleBinding{
	RolePatient:      {group: "Patients", attributeKey: "patientId"},
	RolePractitioner: {group: "Practitioners", attributeKey: "practitionerId"},
	RoleAdmin:        {group: "Admins", attributeKey: "adminId"},
}

func ParseRole(value string) (Role, error) {
	role := Role(value)
	if _, ok := roleBindings[role]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownRole, value)
	}
	return role, nil
}

// Group returns the name of the Keycloak group members of this role belong to.
func (r Role) Group() string {
	return roleBindings[r].group
}

// AttributeKey returns the user attribute linking the user to the FHIR resource of this role.
func (r Role) AttributeKey() string {
	return roleBindings[r].attributeKey
}

func (r Role) String() string {
	return string(r)
}
