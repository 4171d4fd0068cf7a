package profiles

import (
	"context"
	"net/http"

	"github.com/KLTN-2025/PTNTYTST5951/lib/httpserv"
	"github.com/KLTN-2025/PTNTYTST5951/usercontext"
)

func (s *Service) RegisterHandlers(mux *http.ServeMux) {
	asPatient := httpserv.Chain(s.authenticate, s.resolver.Resolve(true, false))
	asPractitioner := httpserv.Chain(s.authenticate, s.resolver.Resolve(false, true), usercontext.RequirePractitioner)
	httpserv.RegisterRoutes(mux,
		httpserv.Route{
			Method:     http.MethodGet,
			Path:       "/api/patients/auth",
			Handler:    s.handlePatientAuth,
			Middleware: asPatient,
		},
		httpserv.Route{
			Method:     http.MethodGet,
			Path:       "/api/patients/me",
			Handler:    s.handleGetPatient,
			Middleware: asPatient,
		},
		httpserv.Route{
			Method:     http.MethodGet,
			Path:       "/api/practitioners/me",
			Handler:    s.handleGetPractitioner,
			Middleware: asPractitioner,
		},
		httpserv.Route{
			Method:     http.MethodPut,
			Path:       "/api/practitioners/me",
			Handler:    s.handleUpdatePractitioner,
			Middleware: asPractitioner,
		},
		httpserv.Route{
			Method:     http.MethodGet,
			Path:       "/api/practitioners/qualifications",
			Handler:    s.handleListQualifications,
			Middleware: asPractitioner,
		},
		httpserv.Route{
			Method:     http.MethodPost,
			Path:       "/api/practitioners/qualification",
			Handler:    s.handleAddQualification,
			Middleware: asPractitioner,
		},
		httpserv.Route{
			Method:     http.MethodPut,
			Path:       "/api/practitioners/qualification",
			Handler:    s.handleUpdateQualification,
			Middleware: asPractitioner,
		},
		httpserv.Route{
			Method:     http.MethodGet,
			Path:       "/api/practitioners/qualification/document-types",
			Handler:    s.handleQualificationDocumentTypes,
			Middleware: s.authenticate,
		},
		httpserv.Route{
			Method:     http.MethodDelete,
			Path:       "/api/practitioners/qualification/{id}",
			Handler:    s.handleDeleteQualification,
			Middleware: asPractitioner,
		},
		httpserv.Route{
			Method:     http.MethodPost,
			Path:       "/api/practitioners/register-organization",
			Handler:    s.handleRegisterOrganization,
			Middleware: asPractitioner,
		},
		httpserv.Route{
			Method:     http.MethodGet,
			Path:       "/api/practitioners/organizations",
			Handler:    s.handleListOrganizations,
			Middleware: asPractitioner,
		},
	)
}

func (s *Service) handlePatientAuth(response http.ResponseWriter, request *http.Request) {
	ctx := request.Context()
	user, ok := usercontext.FromContext(ctx)
	if !ok || user.PatientID == "" {
		httpserv.WriteError(ctx, response, ErrPatientNotFound, "get patient id")
		return
	}
	httpserv.WriteJSON(ctx, response, http.StatusOK, PatientAuth{PatientID: user.PatientID})
}

func (s *Service) handleGetPatient(response http.ResponseWriter, request *http.Request) {
	ctx := request.Context()
	user, ok := usercontext.FromContext(ctx)
	if !ok || user.PatientID == "" {
		httpserv.WriteError(ctx, response, ErrPatientNotFound, "get patient profile")
		return
	}
	result, err := s.PatientProfile(ctx, user.PatientID)
	if err != nil {
		httpserv.WriteError(ctx, response, err, "get patient profile")
		return
	}
	httpserv.WriteJSON(ctx, response, http.StatusOK, result)
}

func (s *Service) handleGetPractitioner(response http.ResponseWriter, request *http.Request) {
	ctx := request.Context()
	user, _ := usercontext.FromContext(ctx)
	result, err := s.PractitionerProfile(ctx, user.PractitionerID)
	if err != nil {
		httpserv.WriteError(ctx, response, err, "get practitioner profile")
		return
	}
	httpserv.WriteJSON(ctx, response, http.StatusOK, result)
}

func (s *Service) handleUpdatePractitioner(response http.ResponseWriter, request *http.Request) {
	ctx := request.Context()
	user, _ := usercontext.FromContext(ctx)
	var update PractitionerUpdate
	if err := httpserv.ReadJSON(request, &update); err != nil {
		httpserv.WriteError(ctx, response, err, "update practitioner profile")
		return
	}
	result, err := s.UpdatePractitioner(ctx, user.UserID, user.PractitionerID, update)
	if err != nil {
		httpserv.WriteError(ctx, response, err, "update practitioner profile")
		return
	}
	httpserv.WriteJSON(ctx, response, http.StatusOK, result)
}

func (s *Service) handleListQualifications(response http.ResponseWriter, request *http.Request) {
	ctx := request.Context()
	user, _ := usercontext.FromContext(ctx)
	result, err := s.Qualifications(ctx, user.PractitionerID)
	if err != nil {
		httpserv.WriteError(ctx, response, err, "list qualifications")
		return
	}
	httpserv.WriteJSON(ctx, response, http.StatusOK, result)
}

func (s *Service) handleDeleteQualification(response http.ResponseWriter, request *http.Request) {
	ctx := request.Context()
	user, _ := usercontext.FromContext(ctx)
	if err := s.DeleteQualification(ctx, user.PractitionerID, request.PathValue("id")); err != nil {
		httpserv.WriteError(ctx, response, err, "delete qualification")
		return
	}
	response.WriteHeader(http.StatusNoContent)
}

func (s *Service) handleAddQualification(response http.ResponseWriter, request *http.Request) {
	s.handleSaveQualification(response, request, http.StatusCreated, s.AddQualification)
}

func (s *Service) handleUpdateQualification(response http.ResponseWriter, request *http.Request) {
	s.handleSaveQualification(response, request, http.StatusOK, s.UpdateQualification)
}

func (s *Service) handleSaveQualification(response http.ResponseWriter, request *http.Request, status int,
	save func(context.Context, string, QualificationInput) (*SavedQualification, error)) {
	ctx := request.Context()
	user, _ := usercontext.FromContext(ctx)
	var input QualificationInput
	if err := httpserv.ReadJSON(request, &input); err != nil {
		httpserv.WriteError(ctx, response, err, "save qualification")
		return
	}
	result, err := save(ctx, user.PractitionerID, input)
	if err != nil {
		httpserv.WriteError(ctx, response, err, "save qualification")
		return
	}
	httpserv.WriteJSON(ctx, response, status, result)
}

func (s *Service) handleQualificationDocumentTypes(response http.ResponseWriter, request *http.Request) {
	ctx := request.Context()
	result, err := s.QualificationDocumentTypes(ctx)
	if err != nil {
		httpserv.WriteError(ctx, response, err, "list qualification document types")
		return
	}
	httpserv.WriteJSON(ctx, response, http.StatusOK, result)
}

func (s *Service) handleRegisterOrganization(response http.ResponseWriter, request *http.Request) {
	ctx := request.Context()
	user, _ := usercontext.FromContext(ctx)
	var input OrganizationRegistration
	if err := httpserv.ReadJSON(request, &input); err != nil {
		httpserv.WriteError(ctx, response, err, "register organization")
		return
	}
	result, err := s.RegisterOrganization(ctx, user.PractitionerID, input)
	if err != nil {
		httpserv.WriteError(ctx, response, err, "register organization")
		return
	}
	httpserv.WriteJSON(ctx, response, http.StatusCreated, result)
}

func (s *Service) handleListOrganizations(response http.ResponseWriter, request *http.Request) {
	ctx := request.Context()
	user, _ := usercontext.FromContext(ctx)
	result, err := s.Organizations(ctx, user.PractitionerID)
	if err != nil {
		httpserv.WriteError(ctx, response, err, "list organizations")
		return
	}
	httpserv.WriteJSON(ctx, response, http.StatusOK, result)
}
