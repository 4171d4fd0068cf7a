package coolfhir

// UserIDNamingSystem is the identifier system linking a clinical resource to its identity provider subject.
const UserIDNamingSystem = "https://id.hivevn.net/identifier"

// NationalIDNamingSystem is the identifier system of the Vietnamese national (citizen) identification number.
const NationalIDNamingSystem = "https://beetamin.hivevn.net/fhir/sid/vn-national-id"

// IdentifierTypeCodeSystem is the HL7 v2 table 0203 code system used for Identifier.type.
const IdentifierTypeCodeSystem = "http://terminology.hl7.org/CodeSystem/v2-0203"

// QualificationDocumentExtension links a Practitioner.qualification to the DocumentReference holding its scans.
const QualificationDocumentExtension = "https://beetamin.hivevn.net/fhir/StructureDefinition/qualification-document"

// FHIRContentType is the content-type for FHIR payloads
const FHIRContentType = "application/fhir+json"

const IfNoneExistHeader = "If-None-Exist"

const CacheControlHeader = "Cache-Control"

// QualificationDocumentTypeCodeSystem codes the kind of qualification document (e.g. degree, license).
const QualificationDocumentTypeCodeSystem = "http://beetamin.hivevn.net/fhir/CodeSystem/qualification-document-type"

// QualificationSubTypeCodeSystemPrefix prefixes the code systems that refine a qualification document type.
const QualificationSubTypeCodeSystemPrefix = "https://beetamin.hivevn.net/fhir/CodeSystem/vn-"

// DocumentCategoryCodeSystem codes the category of a DocumentReference uploaded through the portal.
const DocumentCategoryCodeSystem = "https://beetamin.hivevn.net/fhir/CodeSystem/document-category"

// OrganizationApprovalExtension holds the approval status (pending, approved, rejected) of a registered organization.
const OrganizationApprovalExtension = "http://beetamin.hivevn.net/fhir/StructureDefinition/organization-approval"

const LocationTypeCodeSystem = "http://beetamin.hivevn.net/fhir/CodeSystem/location-type"

const LocationPhysicalTypeCodeSystem = "http://terminology.hl7.org/CodeSystem/location-physical-type"

const PractitionerRoleCodeSystem = "http://beetamin.hivevn.net/fhir/CodeSystem/practitioner-role"
