package profiles

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/KLTN-2025/PTNTYTST5951/fhirgateway"
	"github.com/KLTN-2025/PTNTYTST5951/lib/coolfhir"
	"github.com/KLTN-2025/PTNTYTST5951/lib/to"
	"github.com/KLTN-2025/PTNTYTST5951/lib/validation"
	"github.com/KLTN-2025/PTNTYTST5951/mapper"
	"github.com/rs/zerolog/log"
	"github.com/zorgbijjou/golang-fhir-models/fhir-models/fhir"
)

const (
	organizationDirectorCode    = "ORGANIZATION_DIRECTOR"
	organizationDirectorDisplay = "Giám đốc cơ sở"
	approvalPending             = "pending"
)

// RegisterOrganization registers a new organization with the practitioner as its director. The Organization (inactive,
// pending approval), its Location (suspended) and the PractitionerRole are created in one transaction.
func (s *Service) RegisterOrganization(ctx context.Context, practitionerID string, input OrganizationRegistration) (*RegisteredOrganization, error) {
	if err := validation.Struct(input); err != nil {
		return nil, err
	}
	practitioner, err := s.readPractitioner(ctx, practitionerID)
	if err != nil {
		return nil, err
	}
	var identifiers []fhir.Identifier
	if input.Identifier != nil {
		identifiers = []fhir.Identifier{*input.Identifier}
	}
	organizationRef := coolfhir.NewLocalReference()
	locationRef := coolfhir.NewLocalReference()

	organization := fhir.Organization{
		Active: to.Ptr(false),
		Extension: []fhir.Extension{{
			Url: coolfhir.OrganizationApprovalExtension,
			Extension: []fhir.Extension{
				{Url: "status", ValueCode: to.Ptr(approvalPending)},
				{Url: "lastChanged", ValueDateTime: to.Ptr(time.Now().UTC().Format(time.RFC3339))},
			},
		}},
		Identifier: identifiers,
		Type:       []fhir.CodeableConcept{*input.Type},
		Name:       to.Ptr(input.Name),
		Telecom:    input.Telecom,
		Address:    []fhir.Address{*input.Address},
	}
	location := fhir.Location{
		Identifier: identifiers,
		Status:     to.Ptr(fhir.LocationStatusSuspended),
		Mode:       to.Ptr(fhir.LocationModeInstance),
		Name:       to.Ptr(input.Name),
		Address:    input.Address,
		Telecom:    input.Telecom,
		PhysicalType: &fhir.CodeableConcept{
			Coding: []fhir.Coding{{
				System:  to.Ptr(coolfhir.LocationPhysicalTypeCodeSystem),
				Code:    to.Ptr("si"),
				Display: to.Ptr("Site"),
			}},
			Text: to.Ptr("Site"),
		},
		ManagingOrganization: &fhir.Reference{Reference: to.Ptr(organizationRef)},
	}
	if locationType := locationTypeOf(*input.Type); locationType != nil {
		location.Type = []fhir.CodeableConcept{*locationType}
	}
	role := fhir.PractitionerRole{
		Active: to.Ptr(true),
		Code: []fhir.CodeableConcept{{
			Coding: []fhir.Coding{{
				System:  to.Ptr(coolfhir.PractitionerRoleCodeSystem),
				Code:    to.Ptr(organizationDirectorCode),
				Display: to.Ptr(organizationDirectorDisplay),
			}},
			Text: to.Ptr(organizationDirectorDisplay),
		}},
		Practitioner: &fhir.Reference{
			Reference: to.Ptr("Practitioner/" + practitionerID),
			Display:   to.NilString(mapper.HumanNameToString(practitioner.Name)),
		},
		Organization: &fhir.Reference{Reference: to.Ptr(organizationRef), Display: to.Ptr(input.Name)},
		Location:     []fhir.Reference{{Reference: to.Ptr(locationRef), Display: to.Ptr(input.Name)}},
	}

	transaction := coolfhir.Transaction().
		Create(organization, "Organization", organizationRef).
		Create(location, "Location", locationRef).
		Create(role, "PractitionerRole", coolfhir.NewLocalReference())
	response, err := s.store.SubmitTransaction(ctx, transaction.Bundle())
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrOrganizationRegistration, err)
	}
	result := &RegisteredOrganization{Message: "Organization registration submitted successfully"}
	for _, entry := range response.Entry {
		if entry.Response == nil {
			continue
		}
		if id := coolfhir.LocationID("Organization", entry.Response.Location); id != "" {
			result.OrganizationID = id
		} else if id := coolfhir.LocationID("Location", entry.Response.Location); id != "" {
			result.LocationID = id
		} else if id := coolfhir.LocationID("PractitionerRole", entry.Response.Location); id != "" {
			result.PractitionerRoleID = id
		}
	}
	log.Ctx(ctx).Info().Msgf("Practitioner/%s registered Organization/%s (pending approval)", practitionerID, result.OrganizationID)
	return result, nil
}

// Organizations lists the organizations the practitioner holds a role in. Roles referring to an organization that no
// longer exists are left out.
func (s *Service) Organizations(ctx context.Context, practitionerID string) ([]PractitionerOrganization, error) {
	bundle, err := s.store.Search(ctx, "PractitionerRole", url.Values{"practitioner": []string{"Practitioner/" + practitionerID}})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
	result := []PractitionerOrganization{}
	for _, entry := range bundle.Entry {
		var role fhir.PractitionerRole
		if err := json.Unmarshal(entry.Resource, &role); err != nil {
			return nil, fmt.Errorf("%w: invalid PractitionerRole: %w", ErrStoreUnavailable, err)
		}
		if role.Organization == nil || to.EmptyString(role.Organization.Reference) == "" {
			continue
		}
		organizationID := strings.TrimPrefix(*role.Organization.Reference, "Organization/")
		var organization fhir.Organization
		if err := s.store.Read(ctx, "Organization", organizationID, &organization); errors.Is(err, fhirgateway.ErrNotFound) {
			log.Ctx(ctx).Warn().Msgf("PractitionerRole/%s refers to missing Organization/%s", to.EmptyString(role.Id), organizationID)
			continue
		} else if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
		}
		result = append(result, practitionerOrganization(role, organizationID, organization))
	}
	return result, nil
}

func practitionerOrganization(role fhir.PractitionerRole, organizationID string, organization fhir.Organization) PractitionerOrganization {
	contact := mapper.ContactPointsToString(organization.Telecom)
	result := PractitionerOrganization{
		PractitionerRoleID:       to.EmptyString(role.Id),
		OrganizationID:           organizationID,
		IsPractitionerRoleActive: to.Empty(role.Active),
		Roles:                    role.Code,
		IsOrganizationActive:     to.Empty(organization.Active),
		OrganizationName:         to.EmptyString(organization.Name),
		OrganizationStatus:       approvalStatus(organization.Extension),
		OrganizationType:         organization.Type,
		OrganizationTelecom: OrganizationContact{
			Phone: contact.Phone,
			Email: contact.Email,
			URL:   contact.URL,
		},
	}
	if result.Roles == nil {
		result.Roles = []fhir.CodeableConcept{}
	}
	if len(organization.Address) > 0 {
		result.OrganizationAddress = &organization.Address[0]
	}
	return result
}

func approvalStatus(extensions []fhir.Extension) string {
	for _, extension := range extensions {
		if extension.Url != coolfhir.OrganizationApprovalExtension {
			continue
		}
		for _, part := range extension.Extension {
			if part.Url == "status" {
				return to.EmptyString(part.ValueCode)
			}
		}
	}
	return ""
}

// locationTypeOf derives the Location type from the kind of organization: hospitals get a campus, clinics an
// outpatient clinic.
func locationTypeOf(organizationType fhir.CodeableConcept) *fhir.CodeableConcept {
	if len(organizationType.Coding) == 0 {
		return nil
	}
	var code, display string
	switch to.EmptyString(organizationType.Coding[0].Code) {
	case "hospital":
		code, display = "hospital-campus", "Hospital Campus"
	case "clinic":
		code, display = "outpatient-clinic", "Outpatient Clinic"
	default:
		return nil
	}
	return &fhir.CodeableConcept{
		Coding: []fhir.Coding{{
			System:  to.Ptr(coolfhir.LocationTypeCodeSystem),
			Code:    to.Ptr(code),
			Display: to.Ptr(display),
		}},
	}
}
