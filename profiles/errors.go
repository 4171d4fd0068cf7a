package profiles

import (
	"net/http"

	"github.com/KLTN-2025/PTNTYTST5951/lib/httpserv"
)

var (
	ErrPatientNotFound          error = &CodedError{Message: "Patient resource not found for the user", Code: "PATIENT_RESOURCE_NOT_FOUND", Status: http.StatusNotFound}
	ErrPractitionerNotFound           = httpserv.NotFound("Resource not found")
	ErrQualificationNotFound          = httpserv.NotFound("Qualification to delete not found on practitioner")
	ErrStoreUnavailable               = httpserv.NewErrorWithCode("Failed to fetch profile", http.StatusBadGateway)
	ErrUpdateRejected                 = httpserv.BadRequest("Profile update was rejected")
	ErrUpdateFailed                   = httpserv.NewErrorWithCode("Failed to update profile", http.StatusBadGateway)
	ErrQualificationDelete            = httpserv.NewErrorWithCode("Failed to delete practitioner qualification", http.StatusBadGateway)
	ErrQualificationSave              = httpserv.NewErrorWithCode("Failed to update practitioner qualification", http.StatusBadGateway)
	ErrQualificationIDRequired        = httpserv.BadRequest("qualificationId is required for update")
	ErrDocumentIDRequired             = httpserv.BadRequest("documentId is required")
	ErrQualificationNotOnRecord       = httpserv.BadRequest("Qualification to update not found on practitioner")
	ErrDocumentNotFound               = httpserv.BadRequest("DocumentReference not found")
	ErrDocumentTypesNotFound          = httpserv.NotFound("Qualification document types not found")
	ErrOrganizationRegistration       = httpserv.NewErrorWithCode("Failed to register organization", http.StatusBadGateway)
)

// CodedError is an error with a machine-readable code, reported in the error field of the response body.
type CodedError struct {
	Message string
	Code    string
	Status  int
}

func (e *CodedError) Error() string {
	return e.Message
}

func (e *CodedError) StatusCode() int {
	return e.Status
}

func (e *CodedError) ResponseBody() any {
	return httpserv.ErrorResponse{
		Message:    e.Message,
		Error:      e.Code,
		StatusCode: e.Status,
	}
}
