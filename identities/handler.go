package identities

import (
	"net/http"

	"github.com/KLTN-2025/PTNTYTST5951/lib/auth"
	"github.com/KLTN-2025/PTNTYTST5951/lib/httpserv"
)

func (s *Service) RegisterHandlers(mux *http.ServeMux) {
	httpserv.RegisterRoutes(mux,
		httpserv.Route{
			Method:  http.MethodGet,
			Path:    "/api/identities",
			Handler: s.handleStatus,
		},
		httpserv.Route{
			Method:     http.MethodPost,
			Path:       "/api/identities/{role}",
			Handler:    s.handleRegister,
			Middleware: s.authenticate,
		},
	)
}

func (s *Service) handleStatus(response http.ResponseWriter, request *http.Request) {
	httpserv.WriteJSON(request.Context(), response, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Service) handleRegister(response http.ResponseWriter, request *http.Request) {
	ctx := request.Context()
	principal, err := auth.PrincipalFromContext(ctx)
	if err != nil {
		httpserv.WriteError(ctx, response, httpserv.NewErrorWithCode("Unauthorized", http.StatusUnauthorized), "register identity")
		return
	}
	var registration Registration
	if err := httpserv.ReadJSON(request, &registration); err != nil {
		httpserv.WriteError(ctx, response, err, "register identity")
		return
	}
	result, err := s.Register(ctx, principal.Subject, request.PathValue("role"), registration)
	if err != nil {
		httpserv.WriteError(ctx, response, err, "register identity")
		return
	}
	httpserv.WriteJSON(ctx, response, http.StatusCreated, result)
}
