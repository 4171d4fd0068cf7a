// Package usercontext resolves the FHIR Patient and Practitioner resources of the authenticated user.
package usercontext

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/KLTN-2025/PTNTYTST5951/fhirgateway"
	"github.com/KLTN-2025/PTNTYTST5951/lib/auth"
	"github.com/KLTN-2025/PTNTYTST5951/lib/coolfhir"
	"github.com/KLTN-2025/PTNTYTST5951/lib/httpserv"
	"github.com/rs/zerolog/log"
	"github.com/zorgbijjou/golang-fhir-models/fhir-models/fhir"
)

const (
	// PatientIDHeader names the Patient the request acts as, for users linked to more than one.
	PatientIDHeader = "X-Patient-ID"
	// PractitionerIDHeader names the Practitioner the request acts as.
	PractitionerIDHeader = "X-Practitioner-ID"
)

var ErrStoreUnavailable = httpserv.NewErrorWithCode("Failed to resolve user resources", http.StatusServiceUnavailable)

// AuthUser is the authenticated user, with the ids of its FHIR resources if it has them.
type AuthUser struct {
	UserID         string
	Roles          []string
	PatientID      string
	PractitionerID string
}

// Store is the part of the FHIR gateway used to resolve resources.
type Store interface {
	Read(ctx context.Context, resourceType string, id string, target any) error
	SearchByIdentifier(ctx context.Context, resourceType string, system string, value string) (*fhir.Bundle, error)
}

var _ Store = &fhirgateway.Gateway{}

type Resolver struct {
	store Store
}

func NewResolver(store Store) *Resolver {
	return &Resolver{store: store}
}

type linkedResource struct {
	Id         *string           `json:"id"`
	Identifier []fhir.Identifier `json:"identifier"`
}

// Resolve returns middleware that adds the AuthUser to the request context. Only the requested resource types are
// resolved. It must run after authentication.
func (r *Resolver) Resolve(patient bool, practitioner bool) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(response http.ResponseWriter, request *http.Request) {
			ctx := request.Context()
			principal, err := auth.PrincipalFromContext(ctx)
			if err != nil {
				httpserv.WriteError(ctx, response, httpserv.NewErrorWithCode("Unauthorized", http.StatusUnauthorized), "resolve user")
				return
			}
			user := AuthUser{
				UserID: principal.Subject,
				Roles:  principal.Roles,
			}
			if patient {
				if user.PatientID, err = r.resolve(ctx, principal.Subject, "Patient", request.Header.Get(PatientIDHeader)); err != nil {
					httpserv.WriteError(ctx, response, err, "resolve user")
					return
				}
			}
			if practitioner {
				if user.PractitionerID, err = r.resolve(ctx, principal.Subject, "Practitioner", request.Header.Get(PractitionerIDHeader)); err != nil {
					httpserv.WriteError(ctx, response, err, "resolve user")
					return
				}
			}
			next(response, request.WithContext(WithUser(ctx, user)))
		}
	}
}

// resolve returns the id of the user's resource of the given type, or an empty string if it has none.
// If resourceID is set (from the override header) that resource is read, otherwise the resource is searched by the
// subject identifier. In both cases the resource must carry the subject identifier.
func (r *Resolver) resolve(ctx context.Context, subject string, resourceType string, resourceID string) (string, error) {
	var resource linkedResource
	if resourceID != "" {
		err := r.store.Read(ctx, resourceType, resourceID, &resource)
		if errors.Is(err, fhirgateway.ErrNotFound) {
			return "", nil
		} else if err != nil {
			return "", fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
		}
	} else {
		bundle, err := r.store.SearchByIdentifier(ctx, resourceType, coolfhir.UserIDNamingSystem, subject)
		if err != nil {
			return "", fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
		}
		if !fhirgateway.Found(bundle) {
			return "", nil
		}
		if err := json.Unmarshal(bundle.Entry[0].Resource, &resource); err != nil {
			return "", fmt.Errorf("%w: invalid %s in search result: %w", ErrStoreUnavailable, resourceType, err)
		}
	}
	if resource.Id == nil || *resource.Id == "" {
		return "", nil
	}
	if !coolfhir.HasIdentifier(resource.Identifier, coolfhir.UserIDNamingSystem, subject) {
		log.Ctx(ctx).Warn().Msgf("%s/%s is not linked to the authenticated user, ignoring it", resourceType, *resource.Id)
		return "", nil
	}
	log.Ctx(ctx).Debug().Msgf("Resolved user to %s/%s", resourceType, *resource.Id)
	return *resource.Id, nil
}
