package identities

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/KLTN-2025/PTNTYTST5951/fhirgateway"
	"github.com/KLTN-2025/PTNTYTST5951/keycloak"
	"github.com/KLTN-2025/PTNTYTST5951/lib/coolfhir"
	"github.com/KLTN-2025/PTNTYTST5951/lib/logging"
	"github.com/KLTN-2025/PTNTYTST5951/lib/otel"
	"github.com/KLTN-2025/PTNTYTST5951/lib/to"
	"github.com/KLTN-2025/PTNTYTST5951/lib/validation"
	"github.com/KLTN-2025/PTNTYTST5951/mapper"
	"github.com/KLTN-2025/PTNTYTST5951/metrics"
	"github.com/rs/zerolog/log"
	"github.com/zorgbijjou/golang-fhir-models/fhir-models/fhir"
	otelapi "go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

// ClinicalStore is the part of the FHIR gateway used for registrations.
type ClinicalStore interface {
	Search(ctx context.Context, resourceType string, query url.Values) (*fhir.Bundle, error)
	Create(ctx context.Context, resource any, result any, ifNoneExist string) (bool, error)
	Delete(ctx context.Context, resourceType string, id string) error
}

// IdentityLinker links an identity provider user to its FHIR resource.
type IdentityLinker interface {
	AssignUser(ctx context.Context, userID string, resourceID string, role keycloak.Role) error
}

type Metrics interface {
	ObserveRegistration(role string, outcome string, start time.Time)
	IncrementConflict(field string)
	IncrementCompensationFailure()
}

var _ ClinicalStore = &fhirgateway.Gateway{}
var _ IdentityLinker = &keycloak.Adapter{}
var _ Metrics = &metrics.Metrics{}

// resourceTypes lists the roles users can register themselves with.
var resourceTypes = map[keycloak.Role]string{
	keycloak.RolePatient:      "Patient",
	keycloak.RolePractitioner: "Practitioner",
}

// Service registers users as patient or practitioner: it creates their FHIR resource and links it to their
// identity provider account. Values that identify a person (subject, national id, phone and email) must be unique
// among resources of the same type.
type Service struct {
	store        ClinicalStore
	linker       IdentityLinker
	metrics      Metrics
	authenticate func(http.HandlerFunc) http.HandlerFunc
	tracer       trace.Tracer
}

func New(store ClinicalStore, linker IdentityLinker, observer Metrics, authenticate func(http.HandlerFunc) http.HandlerFunc) *Service {
	return &Service{
		store:        store,
		linker:       linker,
		metrics:      observer,
		authenticate: authenticate,
		tracer:       otelapi.Tracer("identities"),
	}
}

type uniquenessCheck struct {
	field string
	query url.Values
}

// clinicalPerson holds the fields Patient and Practitioner have in common.
type clinicalPerson struct {
	Id           *string                    `json:"id,omitempty"`
	ResourceType string                     `json:"resourceType"`
	Identifier   []fhir.Identifier          `json:"identifier,omitempty"`
	Name         []fhir.HumanName           `json:"name,omitempty"`
	Telecom      []fhir.ContactPoint        `json:"telecom,omitempty"`
	Gender       *fhir.AdministrativeGender `json:"gender,omitempty"`
	BirthDate    *string                    `json:"birthDate,omitempty"`
}

// Register registers the user identified by subjectID with the given role.
func (s *Service) Register(ctx context.Context, subjectID string, roleName string, registration Registration) (*Result, error) {
	start := time.Now()
	ctx, span := s.tracer.Start(ctx, "identities.Register", trace.WithAttributes(attribute.String(otel.RegistrationRole, roleName)))
	defer span.End()
	ctx = logging.WithFields(ctx, map[string]string{logging.FieldSubject: subjectID, logging.FieldRole: roleName})

	result, err := s.register(ctx, subjectID, roleName, registration)
	outcome := metrics.OutcomeCreated
	if err != nil {
		var conflictErr *ConflictError
		var validationErr *validation.Error
		switch {
		case errors.As(err, &conflictErr):
			outcome = metrics.OutcomeConflict
			span.SetAttributes(attribute.StringSlice(otel.RegistrationConflicts, conflictErr.Fields()))
			for _, field := range conflictErr.Fields() {
				s.metrics.IncrementConflict(field)
			}
		case errors.As(err, &validationErr), errors.Is(err, ErrRoleNotFound), errors.Is(err, ErrMissingIdentifier), errors.Is(err, ErrMissingContact):
			outcome = metrics.OutcomeInvalid
		default:
			outcome = metrics.OutcomeFailed
		}
		otel.Error(span, err)
	}
	s.metrics.ObserveRegistration(roleName, outcome, start)
	return result, err
}

func (s *Service) register(ctx context.Context, subjectID string, roleName string, registration Registration) (*Result, error) {
	role, err := keycloak.ParseRole(roleName)
	if err != nil {
		return nil, ErrRoleNotFound
	}
	resourceType, ok := resourceTypes[role]
	if !ok {
		return nil, ErrRoleNotFound
	}
	if err := validation.Struct(registration); err != nil {
		return nil, err
	}
	identifiers := mapper.Identifiers(mapper.IdentifierInput{
		CitizenIdentification: registration.CitizenIdentification,
		UserID:                subjectID,
	})
	if len(identifiers) == 0 {
		return nil, ErrMissingIdentifier
	}
	telecom := mapper.ContactPoints(mapper.ContactInput{
		Phone: registration.Phone,
		Email: registration.Email,
	})
	if len(telecom) == 0 {
		return nil, ErrMissingContact
	}

	checks := uniquenessChecks(subjectID, registration)
	conflicts, err := s.findConflicts(ctx, resourceType, checks)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRegistrationFailed, err)
	}
	if len(conflicts) > 0 {
		return nil, newConflictError(conflicts)
	}

	resource := newResource(role, clinicalPerson{
		Identifier: identifiers,
		Name:       mapper.HumanName(registration.Name),
		Telecom:    telecom,
		Gender:     mapper.Gender(registration.Gender),
		BirthDate:  to.Ptr(registration.Birthdate),
	})
	var created clinicalPerson
	isNew, err := s.store.Create(ctx, resource, &created, mapper.IfNoneExist(identifiers, telecom))
	switch {
	case errors.Is(err, fhirgateway.ErrPreconditionFailed):
		return nil, s.conflictAfterCreate(ctx, resourceType, checks)
	case errors.Is(err, fhirgateway.ErrBadRequest):
		return nil, fmt.Errorf("%w: %w", ErrRejected, err)
	case err != nil:
		return nil, fmt.Errorf("%w: %w", ErrRegistrationFailed, err)
	case !isNew:
		// Another registration with the same values won the race
		return nil, s.conflictAfterCreate(ctx, resourceType, checks)
	}
	if created.Id == nil || *created.Id == "" {
		return nil, fmt.Errorf("%w: created %s has no id", ErrRegistrationFailed, resourceType)
	}
	resourceID := *created.Id
	ctx = logging.WithFields(ctx, map[string]string{logging.FieldResourceID: resourceType + "/" + resourceID})

	if err := s.linker.AssignUser(ctx, subjectID, resourceID, role); err != nil {
		log.Ctx(ctx).Error().Err(err).Msg("Failed to link user to FHIR resource, deleting the resource")
		s.compensate(ctx, resourceType, resourceID)
		return nil, fmt.Errorf("%w: %w", ErrRegistrationFailed, err)
	}
	log.Ctx(ctx).Info().Msgf("Registered user as %s", role)
	return toResult(created, resourceType), nil
}

// findConflicts searches for existing resources for every uniqueness check in parallel and returns the fields that
// are already in use. Any failed search fails the whole check.
func (s *Service) findConflicts(ctx context.Context, resourceType string, checks []uniquenessCheck) ([]string, error) {
	found := make([]bool, len(checks))
	group, groupCtx := errgroup.WithContext(ctx)
	for i, check := range checks {
		group.Go(func() error {
			bundle, err := s.store.Search(groupCtx, resourceType, check.query)
			if err != nil {
				return fmt.Errorf("uniqueness check of %s: %w", check.field, err)
			}
			found[i] = fhirgateway.Found(bundle)
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}
	var result []string
	for i, check := range checks {
		if found[i] {
			result = append(result, check.field)
		}
	}
	return result, nil
}

// conflictAfterCreate reports a conflict for a conditional create that matched existing resources.
func (s *Service) conflictAfterCreate(ctx context.Context, resourceType string, checks []uniquenessCheck) error {
	conflicts, err := s.findConflicts(ctx, resourceType, checks)
	if err != nil {
		log.Ctx(ctx).Warn().Err(err).Msg("Failed to determine conflicting fields after conditional create")
	}
	if len(conflicts) == 0 {
		conflicts = []string{FieldCitizenIdentification}
	}
	return newConflictError(conflicts)
}

// compensate deletes the resource created for a registration that couldn't be completed.
// A failed delete leaves an orphaned resource, which is logged and counted.
func (s *Service) compensate(ctx context.Context, resourceType string, resourceID string) {
	if err := s.store.Delete(context.WithoutCancel(ctx), resourceType, resourceID); err != nil {
		log.Ctx(ctx).Error().Err(err).
			Str(logging.FieldResourceType, resourceType).
			Str(logging.FieldResourceID, resourceID).
			Msgf("Compensating delete failed, %s/%s is orphaned", resourceType, resourceID)
		s.metrics.IncrementCompensationFailure()
		return
	}
	log.Ctx(ctx).Info().Msgf("Deleted %s/%s after failed registration", resourceType, resourceID)
}

func uniquenessChecks(subjectID string, registration Registration) []uniquenessCheck {
	var result []uniquenessCheck
	add := func(field string, param string, system string, value string) {
		value = strings.TrimSpace(value)
		if value == "" {
			return
		}
		result = append(result, uniquenessCheck{
			field: field,
			query: url.Values{param: []string{mapper.SearchToken(system, value)}},
		})
	}
	add(FieldUserID, "identifier", coolfhir.UserIDNamingSystem, subjectID)
	add(FieldCitizenIdentification, "identifier", coolfhir.NationalIDNamingSystem, registration.CitizenIdentification)
	add(FieldPhone, "telecom", fhir.ContactPointSystemPhone.Code(), registration.Phone)
	add(FieldEmail, "telecom", fhir.ContactPointSystemEmail.Code(), registration.Email)
	return result
}

func newResource(role keycloak.Role, person clinicalPerson) any {
	if role == keycloak.RolePractitioner {
		return fhir.Practitioner{
			Identifier: person.Identifier,
			Name:       person.Name,
			Telecom:    person.Telecom,
			Gender:     person.Gender,
			BirthDate:  person.BirthDate,
		}
	}
	return fhir.Patient{
		Identifier: person.Identifier,
		Name:       person.Name,
		Telecom:    person.Telecom,
		Gender:     person.Gender,
		BirthDate:  person.BirthDate,
	}
}

func toResult(person clinicalPerson, resourceType string) *Result {
	contact := mapper.ContactPointsToString(person.Telecom)
	identifiers := mapper.IdentifiersToString(person.Identifier)
	result := &Result{
		ID:                    to.EmptyString(person.Id),
		ResourceType:          resourceType,
		Name:                  mapper.HumanNameToString(person.Name),
		CitizenIdentification: identifiers.CitizenIdentification,
		Phone:                 contact.Phone,
		Email:                 contact.Email,
		BirthDate:             to.EmptyString(person.BirthDate),
	}
	if person.Gender != nil {
		result.Gender = person.Gender.Code()
	}
	return result
}
