package identities

import (
	"net/http"
	"strings"

	"github.com/KLTN-2025/PTNTYTST5951/lib/httpserv"
)

var (
	ErrRoleNotFound       = httpserv.NewErrorWithCode("Role not found", http.StatusNotFound)
	ErrMissingIdentifier  = httpserv.NewErrorWithCode("At least one valid identifier is required", http.StatusBadRequest)
	ErrMissingContact     = httpserv.NewErrorWithCode("At least one valid contact point is required", http.StatusBadRequest)
	ErrRejected           = httpserv.NewErrorWithCode("Registration was rejected by the clinical record store", http.StatusBadRequest)
	ErrRegistrationFailed = httpserv.NewErrorWithCode("Registration failed, please try again later", http.StatusBadGateway)
)

// Fields checked for uniqueness, in the order they're reported.
const (
	FieldUserID                = "userId"
	FieldCitizenIdentification = "citizenIdentification"
	FieldPhone                 = "phone"
	FieldEmail                 = "email"
)

var conflictMessages = map[string]string{
	FieldUserID:                "User is already registered with this role",
	FieldCitizenIdentification: "Citizen identification is already in use",
	FieldPhone:                 "Phone number is already in use",
	FieldEmail:                 "Email is already in use",
}

type FieldConflict struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ConflictError is returned when values of the registration are already in use by another resource of the same type.
type ConflictError struct {
	Conflicts []FieldConflict
}

func newConflictError(fields []string) *ConflictError {
	result := &ConflictError{}
	for _, field := range fields {
		result.Conflicts = append(result.Conflicts, FieldConflict{
			Field:   field,
			Message: conflictMessages[field],
		})
	}
	return result
}

func (e *ConflictError) Error() string {
	return "validation conflict on " + strings.Join(e.Fields(), ", ")
}

func (e *ConflictError) Fields() []string {
	var result []string
	for _, conflict := range e.Conflicts {
		result = append(result, conflict.Field)
	}
	return result
}

func (e *ConflictError) StatusCode() int {
	return http.StatusConflict
}

func (e *ConflictError) ResponseBody() any {
	return struct {
		Message    string          `json:"message"`
		Error      []FieldConflict `json:"error"`
		StatusCode int             `json:"statusCode"`
	}{
		Message:    "Validation conflict",
		Error:      e.Conflicts,
		StatusCode: http.StatusConflict,
	}
}
