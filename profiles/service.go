// Package profiles serves the profiles of patients and practitioners, read from and written to the FHIR store.
package profiles

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/KLTN-2025/PTNTYTST5951/fhirgateway"
	"github.com/KLTN-2025/PTNTYTST5951/lib/coolfhir"
	"github.com/KLTN-2025/PTNTYTST5951/lib/to"
	"github.com/KLTN-2025/PTNTYTST5951/lib/validation"
	"github.com/KLTN-2025/PTNTYTST5951/mapper"
	"github.com/KLTN-2025/PTNTYTST5951/usercontext"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/zorgbijjou/golang-fhir-models/fhir-models/fhir"
)

// Store is the part of the FHIR gateway used for profiles.
type Store interface {
	Read(ctx context.Context, resourceType string, id string, target any) error
	Search(ctx context.Context, resourceType string, query url.Values) (*fhir.Bundle, error)
	Update(ctx context.Context, resourceType string, id string, resource any, result any) error
	SubmitTransaction(ctx context.Context, bundle fhir.Bundle) (*fhir.Bundle, error)
}

var _ Store = &fhirgateway.Gateway{}

type Service struct {
	store        Store
	resolver     *usercontext.Resolver
	authenticate func(http.HandlerFunc) http.HandlerFunc
}

func New(store Store, resolver *usercontext.Resolver, authenticate func(http.HandlerFunc) http.HandlerFunc) *Service {
	return &Service{
		store:        store,
		resolver:     resolver,
		authenticate: authenticate,
	}
}

func (s *Service) PatientProfile(ctx context.Context, patientID string) (*PatientProfile, error) {
	var patient fhir.Patient
	if err := s.store.Read(ctx, "Patient", patientID, &patient); errors.Is(err, fhirgateway.ErrNotFound) {
		return nil, fmt.Errorf("%w: %w", ErrPatientNotFound, err)
	} else if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
	contact := mapper.ContactPointsToString(patient.Telecom)
	result := &PatientProfile{
		ID:        to.EmptyString(patient.Id),
		Name:      mapper.HumanNameToString(patient.Name),
		BirthDate: to.EmptyString(patient.BirthDate),
		Email:     contact.Email,
		Phone:     contact.Phone,
	}
	if patient.Gender != nil {
		result.Gender = patient.Gender.Code()
	}
	return result, nil
}

func (s *Service) PractitionerProfile(ctx context.Context, practitionerID string) (*PractitionerProfile, error) {
	practitioner, err := s.readPractitioner(ctx, practitionerID)
	if err != nil {
		return nil, err
	}
	return practitionerProfile(*practitioner), nil
}

// UpdatePractitioner applies the update to the practitioner and stores it. The user id identifier is re-added when the
// national id is replaced, so the resource stays linked to the user.
func (s *Service) UpdatePractitioner(ctx context.Context, userID string, practitionerID string, update PractitionerUpdate) (*PractitionerProfile, error) {
	if err := validation.Struct(update); err != nil {
		return nil, err
	}
	practitioner, err := s.readPractitioner(ctx, practitionerID)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(update.Name) != "" {
		practitioner.Name = mapper.HumanName(update.Name)
	}
	practitioner.Telecom = mapper.ContactPoints(mapper.ContactInput{
		Phone: update.Phone,
		Email: update.Email,
	})
	if update.CitizenIdentification != "" {
		practitioner.Identifier = mapper.Identifiers(mapper.IdentifierInput{
			CitizenIdentification: update.CitizenIdentification,
			UserID:                userID,
		})
	}
	if update.Gender != "" {
		practitioner.Gender = mapper.Gender(update.Gender)
	}
	if update.BirthDate != "" {
		practitioner.BirthDate = to.Ptr(update.BirthDate)
	}
	var updated fhir.Practitioner
	if err := s.store.Update(ctx, "Practitioner", practitionerID, *practitioner, &updated); errors.Is(err, fhirgateway.ErrBadRequest) {
		return nil, fmt.Errorf("%w: %w", ErrUpdateRejected, err)
	} else if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUpdateFailed, err)
	}
	log.Ctx(ctx).Info().Msgf("Updated profile of Practitioner/%s", practitionerID)
	if updated.Id == nil {
		updated = *practitioner
	}
	return practitionerProfile(updated), nil
}

// Qualifications lists the qualifications of the practitioner that are backed by a document.
func (s *Service) Qualifications(ctx context.Context, practitionerID string) ([]Qualification, error) {
	practitioner, err := s.readPractitioner(ctx, practitionerID)
	if err != nil {
		return nil, err
	}
	result := []Qualification{}
	for _, qualification := range practitioner.Qualification {
		for _, documentID := range qualificationDocuments(qualification) {
			var document qualificationDocument
			if err := s.store.Read(ctx, "DocumentReference", documentID, &document); errors.Is(err, fhirgateway.ErrNotFound) {
				log.Ctx(ctx).Warn().Msgf("Qualification %s of Practitioner/%s refers to missing DocumentReference/%s", to.EmptyString(qualification.Id), practitionerID, documentID)
				continue
			} else if err != nil {
				return nil, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
			}
			result = append(result, toQualification(qualification, document))
		}
	}
	return result, nil
}

// DeleteQualification removes the qualification from the practitioner and deletes its document, in one transaction.
func (s *Service) DeleteQualification(ctx context.Context, practitionerID string, qualificationID string) error {
	practitioner, err := s.readPractitioner(ctx, practitionerID)
	if err != nil {
		return err
	}
	index := qualificationIndex(practitioner.Qualification, qualificationID)
	if index < 0 {
		return ErrQualificationNotFound
	}
	documents := qualificationDocuments(practitioner.Qualification[index])
	practitioner.Qualification = append(practitioner.Qualification[:index], practitioner.Qualification[index+1:]...)

	transaction := coolfhir.Transaction().Update(*practitioner, "Practitioner/"+practitionerID)
	for _, documentID := range documents {
		transaction.Delete("DocumentReference/" + documentID)
	}
	if _, err := s.store.SubmitTransaction(ctx, transaction.Bundle()); err != nil {
		return fmt.Errorf("%w: %w", ErrQualificationDelete, err)
	}
	log.Ctx(ctx).Info().Msgf("Deleted qualification %s of Practitioner/%s (documents: %v)", qualificationID, practitionerID, documents)
	return nil
}

// AddQualification adds a qualification to the practitioner and creates the DocumentReference holding its scans.
func (s *Service) AddQualification(ctx context.Context, practitionerID string, input QualificationInput) (*SavedQualification, error) {
	return s.saveQualification(ctx, practitionerID, input, true)
}

// UpdateQualification replaces a qualification of the practitioner and the attachments of its DocumentReference.
func (s *Service) UpdateQualification(ctx context.Context, practitionerID string, input QualificationInput) (*SavedQualification, error) {
	return s.saveQualification(ctx, practitionerID, input, false)
}

func (s *Service) saveQualification(ctx context.Context, practitionerID string, input QualificationInput, add bool) (*SavedQualification, error) {
	if err := validation.Struct(input); err != nil {
		return nil, err
	}
	if !add && input.DocumentID == "" {
		return nil, ErrDocumentIDRequired
	}
	if !add && input.QualificationID == "" {
		return nil, ErrQualificationIDRequired
	}
	practitioner, err := s.readPractitioner(ctx, practitionerID)
	if err != nil {
		return nil, err
	}

	var document fhir.DocumentReference
	documentReference := "DocumentReference/" + input.DocumentID
	if add {
		documentReference = coolfhir.NewLocalReference()
		document = fhir.DocumentReference{
			Status:    fhir.DocumentReferenceStatusCurrent,
			DocStatus: to.Ptr(fhir.CompositionStatusPreliminary),
			Category: []fhir.CodeableConcept{{
				Coding: []fhir.Coding{{
					System:  to.Ptr(coolfhir.DocumentCategoryCodeSystem),
					Code:    to.Ptr("qualification"),
					Display: to.Ptr("Qualification document"),
				}},
			}},
			Subject: &fhir.Reference{Reference: to.Ptr("Practitioner/" + practitionerID)},
		}
	} else if err := s.store.Read(ctx, "DocumentReference", input.DocumentID, &document); errors.Is(err, fhirgateway.ErrNotFound) {
		return nil, fmt.Errorf("%w: %w", ErrDocumentNotFound, err)
	} else if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
	document.Description = to.Ptr("Qualification document for " + to.EmptyString(input.QualificationType.Text))
	document.Type = input.QualificationType
	document.Content = nil
	for _, attachment := range input.DocumentAttachments {
		document.Content = append(document.Content, fhir.DocumentReferenceContent{Attachment: attachment})
	}

	qualification := fhir.PractitionerQualification{
		Code:   *input.QualificationType,
		Issuer: &fhir.Reference{Display: to.Ptr(input.Issuer)},
		Period: &fhir.Period{
			Start: to.Ptr(input.PeriodStart),
			End:   to.NilString(input.PeriodEnd),
		},
		Extension: []fhir.Extension{{
			Url:            coolfhir.QualificationDocumentExtension,
			ValueReference: &fhir.Reference{Reference: to.Ptr(documentReference)},
		}},
	}
	if add {
		qualification.Id = to.Ptr(uuid.NewString())
		practitioner.Qualification = append(practitioner.Qualification, qualification)
	} else {
		index := qualificationIndex(practitioner.Qualification, input.QualificationID)
		if index < 0 {
			return nil, ErrQualificationNotOnRecord
		}
		current := practitioner.Qualification[index]
		qualification.Id = current.Id
		qualification.Identifier = current.Identifier
		practitioner.Qualification[index] = qualification
	}

	transaction := coolfhir.Transaction().Update(*practitioner, "Practitioner/"+practitionerID)
	if add {
		transaction.Create(document, "DocumentReference", documentReference)
	} else {
		transaction.Update(document, documentReference)
	}
	response, err := s.store.SubmitTransaction(ctx, transaction.Bundle())
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrQualificationSave, err)
	}
	result := &SavedQualification{
		QualificationID: to.EmptyString(qualification.Id),
		DocumentID:      input.DocumentID,
	}
	if add && len(response.Entry) > 1 && response.Entry[1].Response != nil {
		result.DocumentID = coolfhir.LocationID("DocumentReference", response.Entry[1].Response.Location)
	}
	log.Ctx(ctx).Info().Msgf("Saved qualification %s of Practitioner/%s (document: %s)", result.QualificationID, practitionerID, result.DocumentID)
	return result, nil
}

// QualificationDocumentTypes lists the qualification document types. A type that is refined by its own code system
// carries the codes of that system as children.
func (s *Service) QualificationDocumentTypes(ctx context.Context) ([]mapper.Concept, error) {
	documentTypes, err := s.codeSystemConcepts(ctx, coolfhir.QualificationDocumentTypeCodeSystem)
	if err != nil {
		return nil, err
	}
	if len(documentTypes) == 0 {
		return nil, ErrDocumentTypesNotFound
	}
	for i, documentType := range documentTypes {
		subTypes, err := s.codeSystemConcepts(ctx, coolfhir.QualificationSubTypeCodeSystemPrefix+documentType.Code)
		if err != nil {
			return nil, err
		}
		if len(subTypes) > 0 {
			documentTypes[i].Children = subTypes
		}
	}
	return documentTypes, nil
}

// codeSystemConcepts returns the concepts of the CodeSystem with the given canonical URL, or nil when there is none.
func (s *Service) codeSystemConcepts(ctx context.Context, system string) ([]mapper.Concept, error) {
	bundle, err := s.store.Search(ctx, "CodeSystem", url.Values{"url": []string{system}})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
	if len(bundle.Entry) == 0 {
		return nil, nil
	}
	var codeSystem fhir.CodeSystem
	if err := json.Unmarshal(bundle.Entry[0].Resource, &codeSystem); err != nil {
		return nil, fmt.Errorf("%w: invalid CodeSystem %s: %w", ErrStoreUnavailable, system, err)
	}
	return mapper.Concepts(codeSystem), nil
}

func qualificationIndex(qualifications []fhir.PractitionerQualification, qualificationID string) int {
	for i, qualification := range qualifications {
		if to.EmptyString(qualification.Id) == qualificationID {
			return i
		}
	}
	return -1
}

func (s *Service) readPractitioner(ctx context.Context, practitionerID string) (*fhir.Practitioner, error) {
	var practitioner fhir.Practitioner
	if err := s.store.Read(ctx, "Practitioner", practitionerID, &practitioner); errors.Is(err, fhirgateway.ErrNotFound) {
		return nil, fmt.Errorf("%w: %w", ErrPractitionerNotFound, err)
	} else if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
	return &practitioner, nil
}

type qualificationDocument struct {
	Id        *string `json:"id"`
	Status    string  `json:"status"`
	DocStatus string  `json:"docStatus"`
	Content   []struct {
		Attachment fhir.Attachment `json:"attachment"`
	} `json:"content"`
}

func qualificationDocuments(qualification fhir.PractitionerQualification) []string {
	var result []string
	for _, extension := range qualification.Extension {
		if extension.Url != coolfhir.QualificationDocumentExtension || extension.ValueReference == nil {
			continue
		}
		if reference := to.EmptyString(extension.ValueReference.Reference); reference != "" {
			result = append(result, strings.TrimPrefix(reference, "DocumentReference/"))
		}
	}
	return result
}

func toQualification(qualification fhir.PractitionerQualification, document qualificationDocument) Qualification {
	result := Qualification{
		ID:             to.EmptyString(qualification.Id),
		DocumentID:     to.EmptyString(document.Id),
		Status:         document.Status,
		DocStatus:      document.DocStatus,
		DocumentImages: []DocumentImage{},
	}
	for i, coding := range qualification.Code.Coding {
		system := to.EmptyString(coding.System)
		if system == coolfhir.QualificationDocumentTypeCodeSystem && result.DocumentTypeCode == nil {
			result.DocumentTypeCode = &qualification.Code.Coding[i]
		} else if strings.HasPrefix(system, coolfhir.QualificationSubTypeCodeSystemPrefix) && result.DocumentSubTypeCode == nil {
			result.DocumentSubTypeCode = &qualification.Code.Coding[i]
		}
	}
	if qualification.Issuer != nil {
		result.PlaceOfIssue = to.EmptyString(qualification.Issuer.Display)
	}
	if qualification.Period != nil {
		result.IssueDate = to.EmptyString(qualification.Period.Start)
	}
	for _, content := range document.Content {
		result.DocumentImages = append(result.DocumentImages, DocumentImage{
			URL:         to.EmptyString(content.Attachment.Url),
			ContentType: to.EmptyString(content.Attachment.ContentType),
		})
	}
	return result
}

func practitionerProfile(practitioner fhir.Practitioner) *PractitionerProfile {
	contact := mapper.ContactPointsToString(practitioner.Telecom)
	result := &PractitionerProfile{
		ID:                    to.EmptyString(practitioner.Id),
		Name:                  mapper.HumanNameToString(practitioner.Name),
		Phone:                 contact.Phone,
		Email:                 contact.Email,
		CitizenIdentification: mapper.IdentifiersToString(practitioner.Identifier).CitizenIdentification,
		BirthDate:             to.EmptyString(practitioner.BirthDate),
	}
	if practitioner.Gender != nil {
		result.Gender = practitioner.Gender.Code()
	}
	if len(practitioner.Photo) > 0 {
		result.Photo = to.EmptyString(practitioner.Photo[0].Url)
	}
	return result
}
