package otel

// Span attribute keys used across services
const (
	HTTPMethod     = "http.method"
	HTTPURL        = "http.url"
	HTTPHost       = "http.host"
	HTTPStatusCode = "http.status_code"

	FHIRResourceType = "fhir.resource_type"
	FHIRResourceID   = "fhir.resource_id"
	FHIRBundleType   = "fhir.bundle.type"
	FHIREntryCount   = "fhir.bundle.entry_count"

	KeycloakRealm     = "keycloak.realm"
	KeycloakOperation = "keycloak.operation"
	KeycloakGroup     = "keycloak.group"

	RegistrationRole      = "registration.role"
	RegistrationConflicts = "registration.conflicts"
)
