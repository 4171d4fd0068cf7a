package coolfhir

import (
	"strings"

	"github.com/KLTN-2025/PTNTYTST5951/lib/to"
	"github.com/google/uuid"
	"github.com/zorgbijjou/golang-fhir-models/fhir-models/fhir"
)

var searchValueEscaper = strings.NewReplacer(`\`, `\\`, `,`, `\,`, `|`, `\|`, `$`, `\$`)

// EscapeSearchValue escapes the characters that have a meaning in FHIR search parameter values (\ , | $).
func EscapeSearchValue(value string) string {
	return searchValueEscaper.Replace(value)
}

// TokenParam renders a FHIR token search parameter value (system|value), escaping both parts.
func TokenParam(system string, value string) string {
	return EscapeSearchValue(system) + "|" + EscapeSearchValue(value)
}

// ParseTokenParam splits a token search parameter value into its unescaped system and value. A parameter without
// a system separator matches any system and yields an empty system.
func ParseTokenParam(param string) (system string, value string) {
	var parts [2]strings.Builder
	part := 0
	escaped := false
	for _, r := range param {
		switch {
		case escaped:
			parts[part].WriteRune(r)
			escaped = false
		case r == '\\':
			escaped = true
		case r == '|' && part == 0:
			part = 1
		default:
			parts[part].WriteRune(r)
		}
	}
	if part == 0 {
		return "", parts[0].String()
	}
	return parts[0].String(), parts[1].String()
}

// NewLocalReference returns a urn:uuid reference for a resource created in the same transaction.
func NewLocalReference() string {
	return "urn:uuid:" + uuid.NewString()
}

// LocationID returns the resource id from the location of a transaction-response entry ({type}/{id}/_history/{vid}).
// It returns an empty string when the location does not refer to a resource of the given type.
func LocationID(resourceType string, location *string) string {
	parts := strings.Split(strings.TrimPrefix(to.EmptyString(location), "/"), "/")
	for i := 0; i+1 < len(parts); i++ {
		if parts[i] == resourceType {
			return parts[i+1]
		}
	}
	return ""
}

func FirstIdentifier(identifiers []fhir.Identifier, predicate func(fhir.Identifier) bool) *fhir.Identifier {
	for _, identifier := range identifiers {
		if predicate(identifier) {
			return &identifier
		}
	}
	return nil
}

func FilterNamingSystem(system string) func(fhir.Identifier) bool {
	return func(ident fhir.Identifier) bool {
		return ident.System != nil && *ident.System == system
	}
}

func IdentifierEquals(one *fhir.Identifier, other *fhir.Identifier) bool {
	if one == nil || other == nil {
		return false
	}
	if one.System == nil || other.System == nil {
		return false
	}
	if one.Value == nil || other.Value == nil {
		return false
	}
	return *one.System == *other.System && *one.Value == *other.Value
}

// HasIdentifier reports whether any of the identifiers equals system|value.
func HasIdentifier(identifiers []fhir.Identifier, system string, value string) bool {
	expected := fhir.Identifier{System: to.Ptr(system), Value: to.Ptr(value)}
	for _, identifier := range identifiers {
		if IdentifierEquals(&identifier, &expected) {
			return true
		}
	}
	return false
}
