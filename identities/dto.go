package identities

// Registration is the request body of an identity registration.
type Registration struct {
	Name                  string `json:"name" validate:"required"`
	CitizenIdentification string `json:"citizenIdentification" validate:"required"`
	Phone                 string `json:"phone" validate:"required"`
	Email                 string `json:"email" validate:"required,email"`
	Gender                string `json:"gender" validate:"required,oneof=male female other unknown"`
	Birthdate             string `json:"birthdate" validate:"required,datetime=2006-01-02"`
}

// Result describes the FHIR resource created for a registration.
type Result struct {
	ID                    string `json:"id"`
	ResourceType          string `json:"resourceType"`
	Name                  string `json:"name"`
	CitizenIdentification string `json:"citizenIdentification"`
	Phone                 string `json:"phone"`
	Email                 string `json:"email"`
	Gender                string `json:"gender"`
	BirthDate             string `json:"birthDate"`
}
