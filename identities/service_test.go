package identities

import (
	"bytes"
	"context"
	"errors"
	"net/url"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/KLTN-2025/PTNTYTST5951/fhirgateway"
	"github.com/KLTN-2025/PTNTYTST5951/keycloak"
	"github.com/KLTN-2025/PTNTYTST5951/lib/coolfhir"
	"github.com/KLTN-2025/PTNTYTST5951/lib/test"
	"github.com/KLTN-2025/PTNTYTST5951/lib/to"
	"github.com/KLTN-2025/PTNTYTST5951/lib/validation"
	"github.com/KLTN-2025/PTNTYTST5951/mapper"
	"github.com/KLTN-2025/PTNTYTST5951/metrics"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zorgbijjou/golang-fhir-models/fhir-models/fhir"
)

const subject = "3f1c2a9e-0000-4000-8000-000000000001"

var validRegistration = Registration{
	Name:                  "nguyen van an",
	CitizenIdentification: "001099012345",
	Phone:                 "0916023064",
	Email:                 "an@example.com",
	Gender:                "male",
	Birthdate:             "1999-01-02",
}

type assignment struct {
	userID     string
	resourceID string
	role       keycloak.Role
}

type stubLinker struct {
	mux         sync.Mutex
	err         error
	assignments []assignment
}

func (s *stubLinker) AssignUser(_ context.Context, userID string, resourceID string, role keycloak.Role) error {
	s.mux.Lock()
	defer s.mux.Unlock()
	if s.err != nil {
		return s.err
	}
	s.assignments = append(s.assignments, assignment{userID: userID, resourceID: resourceID, role: role})
	return nil
}

type fixture struct {
	client  *test.StubFHIRClient
	linker  *stubLinker
	metrics *metrics.Metrics
	service *Service
}

func setup(resources ...any) fixture {
	client := &test.StubFHIRClient{Resources: resources}
	linker := &stubLinker{}
	m := metrics.New()
	return fixture{
		client:  client,
		linker:  linker,
		metrics: m,
		service: New(fhirgateway.New(client), linker, m, nil),
	}
}

func existingPatient(id string, identifiers []fhir.Identifier, telecom []fhir.ContactPoint) fhir.Patient {
	return fhir.Patient{Id: to.Ptr(id), Identifier: identifiers, Telecom: telecom}
}

func TestService_Register(t *testing.T) {
	ctx := context.Background()

	t.Run("patient", func(t *testing.T) {
		f := setup()

		result, err := f.service.Register(ctx, subject, "patient", validRegistration)

		require.NoError(t, err)
		assert.NotEmpty(t, result.ID)
		assert.Equal(t, "Patient", result.ResourceType)
		assert.Equal(t, "nguyen van an", result.Name)
		assert.Equal(t, "001099012345", result.CitizenIdentification)
		assert.Equal(t, "0916023064", result.Phone)
		assert.Equal(t, "an@example.com", result.Email)
		assert.Equal(t, "male", result.Gender)
		assert.Equal(t, "1999-01-02", result.BirthDate)
		require.Len(t, f.client.CreatedResources["Patient"], 1)
		assert.True(t, f.client.Exists("Patient/"+result.ID))
		assert.Equal(t, []assignment{{userID: subject, resourceID: result.ID, role: keycloak.RolePatient}}, f.linker.assignments)
		assert.Equal(t, float64(1), testutil.ToFloat64(f.metrics.Registrations.WithLabelValues("patient", metrics.OutcomeCreated)))

		var created fhir.Patient
		require.NoError(t, fhirgateway.New(f.client).Read(ctx, "Patient", result.ID, &created))
		assert.True(t, coolfhir.HasIdentifier(created.Identifier, coolfhir.UserIDNamingSystem, subject))
		assert.True(t, coolfhir.HasIdentifier(created.Identifier, coolfhir.NationalIDNamingSystem, "001099012345"))
		assert.Equal(t, "an", *created.Name[0].Family)
		assert.Equal(t, []string{"Nguyen", "Van"}, created.Name[0].Given)
	})
	t.Run("practitioner", func(t *testing.T) {
		f := setup()

		result, err := f.service.Register(ctx, subject, "practitioner", validRegistration)

		require.NoError(t, err)
		assert.Equal(t, "Practitioner", result.ResourceType)
		assert.Len(t, f.client.CreatedResources["Practitioner"], 1)
		assert.Equal(t, keycloak.RolePractitioner, f.linker.assignments[0].role)
	})
	t.Run("same values in use by a resource of another type", func(t *testing.T) {
		f := setup(fhir.Practitioner{
			Id:         to.Ptr("1"),
			Identifier: mapper.Identifiers(mapper.IdentifierInput{CitizenIdentification: validRegistration.CitizenIdentification, UserID: subject}),
		})

		_, err := f.service.Register(ctx, subject, "patient", validRegistration)

		require.NoError(t, err)
	})
}

func TestService_Register_invalidInput(t *testing.T) {
	ctx := context.Background()

	for _, role := range []string{"admin", "nurse", "", "Patient"} {
		t.Run("role "+role, func(t *testing.T) {
			f := setup()
			_, err := f.service.Register(ctx, subject, role, validRegistration)
			require.ErrorIs(t, err, ErrRoleNotFound)
			assert.Empty(t, f.client.CreatedResources)
		})
	}
	t.Run("validation", func(t *testing.T) {
		f := setup()
		registration := validRegistration
		registration.Email = "not-an-email"
		registration.Gender = "x"
		registration.Birthdate = "02-01-1999"
		registration.Phone = ""

		_, err := f.service.Register(ctx, subject, "patient", registration)

		var validationErr *validation.Error
		require.ErrorAs(t, err, &validationErr)
		assert.Equal(t, []validation.FieldError{
			{Field: "phone", Message: "phone is required"},
			{Field: "email", Message: "email must be an email"},
			{Field: "gender", Message: "gender must be one of the following values: male, female, other, unknown"},
			{Field: "birthdate", Message: "birthdate must be a valid date (YYYY-MM-DD)"},
		}, validationErr.Fields)
		assert.Empty(t, f.client.CreatedResources)
		assert.Equal(t, float64(1), testutil.ToFloat64(f.metrics.Registrations.WithLabelValues("patient", metrics.OutcomeInvalid)))
	})
	t.Run("blank values are rejected before any write", func(t *testing.T) {
		f := setup()
		registration := validRegistration
		registration.CitizenIdentification = "   "

		_, err := f.service.Register(ctx, "", "patient", registration)

		require.ErrorIs(t, err, ErrMissingIdentifier)
		assert.Empty(t, f.client.CreatedResources)
		assert.Empty(t, f.linker.assignments)
	})
	t.Run("blank contact points are rejected before any write", func(t *testing.T) {
		f := setup()
		registration := validRegistration
		registration.Phone = " "
		registration.Email = " "

		_, err := f.service.Register(ctx, subject, "patient", registration)

		require.Error(t, err)
		assert.Empty(t, f.client.CreatedResources)
	})
}

func TestService_Register_conflicts(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		field    string
		existing fhir.Patient
	}{
		{
			field:    FieldUserID,
			existing: existingPatient("1", mapper.Identifiers(mapper.IdentifierInput{UserID: subject}), nil),
		},
		{
			field:    FieldCitizenIdentification,
			existing: existingPatient("1", mapper.Identifiers(mapper.IdentifierInput{CitizenIdentification: validRegistration.CitizenIdentification}), nil),
		},
		{
			field:    FieldPhone,
			existing: existingPatient("1", nil, mapper.ContactPoints(mapper.ContactInput{Phone: validRegistration.Phone})),
		},
		{
			field:    FieldEmail,
			existing: existingPatient("1", nil, mapper.ContactPoints(mapper.ContactInput{Email: validRegistration.Email})),
		},
	}
	for _, tt := range tests {
		t.Run(tt.field, func(t *testing.T) {
			f := setup(tt.existing)

			_, err := f.service.Register(ctx, subject, "patient", validRegistration)

			var conflictErr *ConflictError
			require.ErrorAs(t, err, &conflictErr)
			assert.Equal(t, []FieldConflict{{Field: tt.field, Message: conflictMessages[tt.field]}}, conflictErr.Conflicts)
			assert.Empty(t, f.client.CreatedResources)
			assert.Empty(t, f.linker.assignments)
			assert.Equal(t, float64(1), testutil.ToFloat64(f.metrics.RegistrationConflict.WithLabelValues(tt.field)))
		})
	}
	t.Run("all conflicting fields are reported in a fixed order", func(t *testing.T) {
		f := setup(
			existingPatient("1", nil, mapper.ContactPoints(mapper.ContactInput{Email: validRegistration.Email, Phone: validRegistration.Phone})),
			existingPatient("2", mapper.Identifiers(mapper.IdentifierInput{UserID: subject}), nil),
		)

		_, err := f.service.Register(ctx, subject, "patient", validRegistration)

		var conflictErr *ConflictError
		require.ErrorAs(t, err, &conflictErr)
		assert.Equal(t, []string{FieldUserID, FieldPhone, FieldEmail}, conflictErr.Fields())
	})
	t.Run("registering the same national id twice", func(t *testing.T) {
		f := setup()
		first, err := f.service.Register(ctx, subject, "patient", validRegistration)
		require.NoError(t, err)
		require.NotEmpty(t, first.ID)

		second := validRegistration
		second.Phone = "0900000000"
		second.Email = "other@example.com"
		_, err = f.service.Register(ctx, "another-subject", "patient", second)

		var conflictErr *ConflictError
		require.ErrorAs(t, err, &conflictErr)
		assert.Equal(t, []string{FieldCitizenIdentification}, conflictErr.Fields())
		assert.Len(t, f.client.CreatedResources["Patient"], 1)
	})
}

// racingStore hides existing resources from the first searches, as if they were created by a concurrent registration
// after the uniqueness check ran.
type racingStore struct {
	*fhirgateway.Gateway
	blindSearches atomic.Int32
}

func (r *racingStore) Search(ctx context.Context, resourceType string, query url.Values) (*fhir.Bundle, error) {
	if r.blindSearches.Add(-1) >= 0 {
		return &fhir.Bundle{Total: to.Ptr(0)}, nil
	}
	return r.Gateway.Search(ctx, resourceType, query)
}

func TestService_Register_conditionalCreate(t *testing.T) {
	ctx := context.Background()
	identifiers := mapper.Identifiers(mapper.IdentifierInput{CitizenIdentification: validRegistration.CitizenIdentification, UserID: subject})
	telecom := mapper.ContactPoints(mapper.ContactInput{Phone: validRegistration.Phone, Email: validRegistration.Email})

	t.Run("matching resource created concurrently", func(t *testing.T) {
		client := &test.StubFHIRClient{Resources: []any{existingPatient("1", identifiers, telecom)}}
		store := &racingStore{Gateway: fhirgateway.New(client)}
		store.blindSearches.Store(4)
		linker := &stubLinker{}
		service := New(store, linker, metrics.New(), nil)

		_, err := service.Register(ctx, subject, "patient", validRegistration)

		var conflictErr *ConflictError
		require.ErrorAs(t, err, &conflictErr)
		assert.Equal(t, []string{FieldUserID, FieldCitizenIdentification, FieldPhone, FieldEmail}, conflictErr.Fields())
		assert.Empty(t, client.CreatedResources)
		assert.Empty(t, linker.assignments)
	})
	t.Run("multiple matches", func(t *testing.T) {
		client := &test.StubFHIRClient{Resources: []any{existingPatient("1", identifiers, telecom), existingPatient("2", identifiers, telecom)}}
		store := &racingStore{Gateway: fhirgateway.New(client)}
		store.blindSearches.Store(8)
		service := New(store, &stubLinker{}, metrics.New(), nil)

		_, err := service.Register(ctx, subject, "patient", validRegistration)

		var conflictErr *ConflictError
		require.ErrorAs(t, err, &conflictErr)
		// the uniqueness check is blind as well, so the national id is reported
		assert.Equal(t, []string{FieldCitizenIdentification}, conflictErr.Fields())
	})
}

type failingCreateStore struct {
	ClinicalStore
	created bool
	result  clinicalPerson
	err     error
}

func (f failingCreateStore) Create(_ context.Context, _ any, result any, _ string) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	*result.(*clinicalPerson) = f.result
	return f.created, nil
}

func TestService_Register_storeFailures(t *testing.T) {
	ctx := context.Background()

	t.Run("uniqueness check fails", func(t *testing.T) {
		f := setup()
		f.client.Error = errors.New("connection refused")

		_, err := f.service.Register(ctx, subject, "patient", validRegistration)

		require.ErrorIs(t, err, ErrRegistrationFailed)
		require.ErrorIs(t, err, fhirgateway.ErrUpstream)
		assert.Empty(t, f.client.CreatedResources)
		assert.Equal(t, float64(1), testutil.ToFloat64(f.metrics.Registrations.WithLabelValues("patient", metrics.OutcomeFailed)))
	})
	t.Run("create rejected", func(t *testing.T) {
		store := failingCreateStore{
			ClinicalStore: fhirgateway.New(&test.StubFHIRClient{}),
			err:           &fhirgateway.Error{Kind: fhirgateway.ErrBadRequest, Cause: errors.New("invalid birthDate")},
		}
		_, err := New(store, &stubLinker{}, metrics.New(), nil).Register(ctx, subject, "patient", validRegistration)
		require.ErrorIs(t, err, ErrRejected)
	})
	t.Run("create fails", func(t *testing.T) {
		store := failingCreateStore{
			ClinicalStore: fhirgateway.New(&test.StubFHIRClient{}),
			err:           &fhirgateway.Error{Kind: fhirgateway.ErrUpstream, Cause: errors.New("timeout")},
		}
		_, err := New(store, &stubLinker{}, metrics.New(), nil).Register(ctx, subject, "patient", validRegistration)
		require.ErrorIs(t, err, ErrRegistrationFailed)
	})
	t.Run("created resource has no id", func(t *testing.T) {
		linker := &stubLinker{}
		store := failingCreateStore{
			ClinicalStore: fhirgateway.New(&test.StubFHIRClient{}),
			created:       true,
			result:        clinicalPerson{ResourceType: "Patient"},
		}
		_, err := New(store, linker, metrics.New(), nil).Register(ctx, subject, "patient", validRegistration)
		require.ErrorIs(t, err, ErrRegistrationFailed)
		assert.Empty(t, linker.assignments)
	})
}

func TestService_Register_compensation(t *testing.T) {
	t.Run("resource is deleted when linking fails", func(t *testing.T) {
		ctx := context.Background()
		f := setup()
		f.linker.err = errors.New("group not found: Patients")

		_, err := f.service.Register(ctx, subject, "patient", validRegistration)

		require.ErrorIs(t, err, ErrRegistrationFailed)
		require.Len(t, f.client.CreatedResources["Patient"], 1)
		createdID := f.client.CreatedResources["Patient"][0].(map[string]interface{})["id"].(string)
		var patient fhir.Patient
		err = fhirgateway.New(f.client).Read(ctx, "Patient", createdID, &patient)
		assert.ErrorIs(t, err, fhirgateway.ErrNotFound)
		assert.Equal(t, []string{"Patient/" + createdID}, f.client.DeletedResources)
		assert.Equal(t, float64(0), testutil.ToFloat64(f.metrics.CompensationFailures))
	})
	t.Run("failed delete is logged and counted", func(t *testing.T) {
		logs := new(bytes.Buffer)
		ctx := zerolog.New(logs).WithContext(context.Background())
		f := setup()
		f.linker.err = errors.New("keycloak unavailable")
		f.client.DeleteError = errors.New("connection reset")

		_, err := f.service.Register(ctx, subject, "patient", validRegistration)

		require.ErrorIs(t, err, ErrRegistrationFailed)
		createdID := f.client.CreatedResources["Patient"][0].(map[string]interface{})["id"].(string)
		assert.True(t, f.client.Exists("Patient/"+createdID))
		assert.Equal(t, float64(1), testutil.ToFloat64(f.metrics.CompensationFailures))
		assert.Contains(t, logs.String(), `"level":"error"`)
		assert.Contains(t, logs.String(), "Compensating delete failed, Patient/"+createdID+" is orphaned")
	})
}

func TestService_Register_concurrentRegistrations(t *testing.T) {
	// Relies on the FHIR server honoring If-None-Exist atomically, which HAPI does for conditional creates.
	fhirBaseURL := test.SetupHAPI(t)
	gateway := fhirgateway.New(coolfhir.NewClient(fhirBaseURL, 0))
	linker := &stubLinker{}
	service := New(gateway, linker, metrics.New(), nil)
	ctx := context.Background()

	const attempts = 5
	var succeeded atomic.Int32
	wg := sync.WaitGroup{}
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := service.Register(ctx, subject, "patient", validRegistration)
			if err == nil {
				succeeded.Add(1)
				return
			}
			var conflictErr *ConflictError
			if !errors.As(err, &conflictErr) && !errors.Is(err, ErrRegistrationFailed) {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, succeeded.Load(), int32(1))
	bundle, err := gateway.SearchByIdentifier(ctx, "Patient", coolfhir.NationalIDNamingSystem, validRegistration.CitizenIdentification)
	require.NoError(t, err)
	assert.LessOrEqual(t, len(bundle.Entry), 1)
	assert.Len(t, linker.assignments, int(succeeded.Load()))
}
