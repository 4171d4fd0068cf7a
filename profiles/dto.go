package profiles

import "github.com/zorgbijjou/golang-fhir-models/fhir-models/fhir"

type PatientAuth struct {
	PatientID string `json:"patientId"`
}

type PatientProfile struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Gender    string `json:"gender,omitempty"`
	BirthDate string `json:"birthDate,omitempty"`
	Email     string `json:"email,omitempty"`
	Phone     string `json:"phone,omitempty"`
}

type PractitionerProfile struct {
	ID                    string `json:"id"`
	Name                  string `json:"name"`
	Phone                 string `json:"phone,omitempty"`
	Email                 string `json:"email,omitempty"`
	CitizenIdentification string `json:"citizenIdentification,omitempty"`
	Gender                string `json:"gender,omitempty"`
	BirthDate             string `json:"birthDate,omitempty"`
	Photo                 string `json:"photo,omitempty"`
}

// PractitionerUpdate is the request body of a practitioner profile update. Empty fields leave the current value as is,
// except for phone and email which always replace the telecom list.
type PractitionerUpdate struct {
	Name                  string `json:"name"`
	Phone                 string `json:"phone"`
	Email                 string `json:"email" validate:"omitempty,email"`
	CitizenIdentification string `json:"citizenIdentification"`
	Gender                string `json:"gender" validate:"omitempty,oneof=male female other unknown"`
	BirthDate             string `json:"birthDate" validate:"omitempty,datetime=2006-01-02"`
}

type DocumentImage struct {
	URL         string `json:"url"`
	ContentType string `json:"contentType"`
}

// Qualification is a practitioner qualification together with the document that proves it.
type Qualification struct {
	ID                  string          `json:"id,omitempty"`
	DocumentID          string          `json:"documentId,omitempty"`
	Status              string          `json:"status,omitempty"`
	DocStatus           string          `json:"docStatus,omitempty"`
	DocumentTypeCode    *fhir.Coding    `json:"documentTypeCode,omitempty"`
	DocumentSubTypeCode *fhir.Coding    `json:"documentSubTypeCode,omitempty"`
	PlaceOfIssue        string          `json:"placeOfIssue"`
	IssueDate           string          `json:"issueDate"`
	DocumentImages      []DocumentImage `json:"documentImages"`
}

// QualificationInput is the request body for adding or updating a qualification. An update names the qualification and
// the DocumentReference it replaces; an add creates both.
type QualificationInput struct {
	DocumentID          string                `json:"documentId"`
	QualificationID     string                `json:"qualificationId"`
	QualificationType   *fhir.CodeableConcept `json:"qualificationType" validate:"required"`
	Issuer              string                `json:"issuer" validate:"required"`
	PeriodStart         string                `json:"periodStart" validate:"required,datetime=2006-01-02"`
	PeriodEnd           string                `json:"periodEnd" validate:"omitempty,datetime=2006-01-02"`
	DocumentAttachments []fhir.Attachment     `json:"documentAttachments" validate:"required,min=1"`
}

type SavedQualification struct {
	QualificationID string `json:"qualificationId"`
	DocumentID      string `json:"documentId"`
}

// OrganizationRegistration is the request body of a practitioner registering a new organization.
type OrganizationRegistration struct {
	Identifier *fhir.Identifier      `json:"identifier"`
	Type       *fhir.CodeableConcept `json:"type" validate:"required"`
	Name       string                `json:"name" validate:"required"`
	Telecom    []fhir.ContactPoint   `json:"telecom" validate:"required,min=1"`
	Address    *fhir.Address         `json:"address" validate:"required"`
}

type RegisteredOrganization struct {
	Message            string `json:"message"`
	OrganizationID     string `json:"organizationId"`
	LocationID         string `json:"locationId"`
	PractitionerRoleID string `json:"practitionerRoleId"`
}

type OrganizationContact struct {
	Phone string `json:"phone,omitempty"`
	Email string `json:"email,omitempty"`
	URL   string `json:"url,omitempty"`
}

// PractitionerOrganization is an organization the practitioner holds a role in.
type PractitionerOrganization struct {
	PractitionerRoleID       string                 `json:"practitionerRoleId"`
	OrganizationID           string                 `json:"organizationId"`
	IsPractitionerRoleActive bool                   `json:"isPractitionerRoleActive"`
	Roles                    []fhir.CodeableConcept `json:"roles"`
	IsOrganizationActive     bool                   `json:"isOrganizationActive"`
	OrganizationName         string                 `json:"organizationName,omitempty"`
	OrganizationStatus       string                 `json:"organizationStatus,omitempty"`
	OrganizationType         []fhir.CodeableConcept `json:"organizationType,omitempty"`
	OrganizationAddress      *fhir.Address          `json:"organizationAddress,omitempty"`
	OrganizationTelecom      OrganizationContact    `json:"organizationTelecom"`
}
