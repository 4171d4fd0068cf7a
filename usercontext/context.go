package usercontext

import (
	"context"
	"net/http"

	"github.com/KLTN-2025/PTNTYTST5951/lib/httpserv"
)

type userContextKeyType struct{}

var userContextKey = userContextKeyType{}

func WithUser(ctx context.Context, user AuthUser) context.Context {
	return context.WithValue(ctx, userContextKey, &user)
}

// FromContext returns the user resolved by the Resolver.
func FromContext(ctx context.Context) (*AuthUser, bool) {
	user, ok := ctx.Value(userContextKey).(*AuthUser)
	return user, ok && user != nil
}

// RequirePatient rejects requests of users without a Patient resource with 403.
func RequirePatient(next http.HandlerFunc) http.HandlerFunc {
	return func(response http.ResponseWriter, request *http.Request) {
		user, ok := FromContext(request.Context())
		if !ok || user.PatientID == "" {
			httpserv.WriteError(request.Context(), response, httpserv.Forbidden("User does not have a patient resource"), "authorization")
			return
		}
		next(response, request)
	}
}

// RequirePractitioner rejects requests of users without a Practitioner resource with 403.
func RequirePractitioner(next http.HandlerFunc) http.HandlerFunc {
	return func(response http.ResponseWriter, request *http.Request) {
		user, ok := FromContext(request.Context())
		if !ok || user.PractitionerID == "" {
			httpserv.WriteError(request.Context(), response, httpserv.Forbidden("User does not have a practitioner resource"), "authorization")
			return
		}
		next(response, request)
	}
}
