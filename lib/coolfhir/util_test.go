package coolfhir

import (
	"strings"
	"testing"

	"github.com/KLTN-2025/PTNTYTST5951/lib/to"
	"github.com/stretchr/testify/assert"
	"github.com/zorgbijjou/golang-fhir-models/fhir-models/fhir"
)

func TestTokenParam(t *testing.T) {
	assert.Equal(t, "phone|0916023064", TokenParam("phone", "0916023064"))
	t.Run("special characters are escaped", func(t *testing.T) {
		assert.Equal(t, `phone|0916\,023`, TokenParam("phone", "0916,023"))
		assert.Equal(t, `email|a\|b\$c\\d`, TokenParam("email", `a|b$c\d`))
	})
}

func TestParseTokenParam(t *testing.T) {
	for _, value := range []string{"0916023064", "0916,023", `a|b$c\d`, ""} {
		system, parsed := ParseTokenParam(TokenParam(UserIDNamingSystem, value))
		assert.Equal(t, UserIDNamingSystem, system)
		assert.Equal(t, value, parsed)
	}
	system, value := ParseTokenParam("0916023064")
	assert.Empty(t, system)
	assert.Equal(t, "0916023064", value)
}

func TestIdentifierEquals(t *testing.T) {
	a := fhir.Identifier{System: to.Ptr("s"), Value: to.Ptr("1")}
	assert.True(t, IdentifierEquals(&a, &fhir.Identifier{System: to.Ptr("s"), Value: to.Ptr("1")}))
	assert.False(t, IdentifierEquals(&a, &fhir.Identifier{System: to.Ptr("s"), Value: to.Ptr("2")}))
	assert.False(t, IdentifierEquals(&a, &fhir.Identifier{Value: to.Ptr("1")}))
	assert.False(t, IdentifierEquals(&a, nil))
}

func TestHasIdentifier(t *testing.T) {
	identifiers := []fhir.Identifier{
		{System: to.Ptr(NationalIDNamingSystem), Value: to.Ptr("001")},
		{System: to.Ptr(UserIDNamingSystem), Value: to.Ptr("sub-1")},
	}
	assert.True(t, HasIdentifier(identifiers, UserIDNamingSystem, "sub-1"))
	assert.False(t, HasIdentifier(identifiers, UserIDNamingSystem, "001"))
	assert.False(t, HasIdentifier(nil, UserIDNamingSystem, "sub-1"))
}

func TestFirstIdentifier(t *testing.T) {
	identifiers := []fhir.Identifier{
		{System: to.Ptr(NationalIDNamingSystem), Value: to.Ptr("001")},
		{System: to.Ptr(UserIDNamingSystem), Value: to.Ptr("sub-1")},
	}
	actual := FirstIdentifier(identifiers, FilterNamingSystem(UserIDNamingSystem))
	assert.Equal(t, "sub-1", *actual.Value)
	assert.Nil(t, FirstIdentifier(identifiers, FilterNamingSystem("other")))
}

func TestNewLocalReference(t *testing.T) {
	reference := NewLocalReference()
	assert.True(t, strings.HasPrefix(reference, "urn:uuid:"))
	assert.NotEqual(t, reference, NewLocalReference())
}

func TestLocationID(t *testing.T) {
	assert.Equal(t, "12", LocationID("DocumentReference", to.Ptr("DocumentReference/12/_history/1")))
	assert.Equal(t, "12", LocationID("Organization", to.Ptr("http://fhir/fhir/Organization/12/_history/3")))
	assert.Equal(t, "12", LocationID("Location", to.Ptr("/Location/12")))
	assert.Empty(t, LocationID("Organization", to.Ptr("Location/12")))
	assert.Empty(t, LocationID("Organization", nil))
}
