// Package mapper converts the flat fields used by the portal (full name, phone, email, national id) to FHIR data types
// and back.
package mapper

import (
	"net/url"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/KLTN-2025/PTNTYTST5951/lib/coolfhir"
	"github.com/KLTN-2025/PTNTYTST5951/lib/to"
	"github.com/zorgbijjou/golang-fhir-models/fhir-models/fhir"
)

// ContactInput holds the contact channels of a person. Empty fields are omitted when converting.
type ContactInput struct {
	Phone string
	Email string
	URL   string
	// Use is copied to every contact point when set.
	Use *fhir.ContactPointUse
}

// IdentifierInput holds the business identifiers of a person.
type IdentifierInput struct {
	CitizenIdentification string
	UserID                string
}

// HumanName converts a full name to an official HumanName. The last whitespace-separated token becomes the family name,
// the others become given names with their first character upper-cased.
func HumanName(fullName string) []fhir.HumanName {
	tokens := strings.Fields(fullName)
	if len(tokens) == 0 {
		return []fhir.HumanName{}
	}
	var given []string
	for _, token := range tokens[:len(tokens)-1] {
		given = append(given, capitalize(token))
	}
	return []fhir.HumanName{
		{
			Use:    to.Ptr(fhir.NameUseOfficial),
			Text:   to.Ptr(strings.TrimSpace(fullName)),
			Family: to.Ptr(tokens[len(tokens)-1]),
			Given:  given,
		},
	}
}

// HumanNameToString renders the first name for display: its text if set, otherwise the given names followed by the family name.
func HumanNameToString(names []fhir.HumanName) string {
	if len(names) == 0 {
		return ""
	}
	name := names[0]
	if name.Text != nil && *name.Text != "" {
		return *name.Text
	}
	parts := append([]string{}, name.Given...)
	if name.Family != nil && *name.Family != "" {
		parts = append(parts, *name.Family)
	}
	return strings.Join(parts, " ")
}

// ContactPoints converts the contact channels to contact points, in the order phone, email, url.
func ContactPoints(input ContactInput) []fhir.ContactPoint {
	var result []fhir.ContactPoint
	add := func(system fhir.ContactPointSystem, value string) {
		value = strings.TrimSpace(value)
		if value == "" {
			return
		}
		result = append(result, fhir.ContactPoint{
			System: to.Ptr(system),
			Value:  to.Ptr(value),
			Use:    input.Use,
		})
	}
	add(fhir.ContactPointSystemPhone, input.Phone)
	add(fhir.ContactPointSystemEmail, input.Email)
	add(fhir.ContactPointSystemUrl, input.URL)
	return result
}

// ContactPointsToString is the reverse of ContactPoints. When a channel occurs more than once, the last one wins.
func ContactPointsToString(points []fhir.ContactPoint) ContactInput {
	var result ContactInput
	for _, point := range points {
		if point.System == nil || point.Value == nil {
			continue
		}
		switch *point.System {
		case fhir.ContactPointSystemPhone:
			result.Phone = *point.Value
		case fhir.ContactPointSystemEmail:
			result.Email = *point.Value
		case fhir.ContactPointSystemUrl:
			result.URL = *point.Value
		default:
			continue
		}
		if point.Use != nil {
			result.Use = point.Use
		}
	}
	return result
}

// Identifiers converts the national id and the identity provider subject to identifiers.
func Identifiers(input IdentifierInput) []fhir.Identifier {
	var result []fhir.Identifier
	if value := strings.TrimSpace(input.CitizenIdentification); value != "" {
		result = append(result, fhir.Identifier{
			Use:    to.Ptr(fhir.IdentifierUseOfficial),
			System: to.Ptr(coolfhir.NationalIDNamingSystem),
			Value:  to.Ptr(value),
			Type:   identifierType("NNVNM", "National Person Identifier (Vietnam)"),
		})
	}
	if value := strings.TrimSpace(input.UserID); value != "" {
		result = append(result, fhir.Identifier{
			Use:    to.Ptr(fhir.IdentifierUseUsual),
			System: to.Ptr(coolfhir.UserIDNamingSystem),
			Value:  to.Ptr(value),
			Type:   identifierType("PI", "Patient Internal Identifier"),
		})
	}
	return result
}

// IdentifiersToString is the reverse of Identifiers. When a system occurs more than once, the last one wins.
func IdentifiersToString(identifiers []fhir.Identifier) IdentifierInput {
	var result IdentifierInput
	for _, identifier := range identifiers {
		if identifier.System == nil || identifier.Value == nil {
			continue
		}
		switch *identifier.System {
		case coolfhir.NationalIDNamingSystem:
			result.CitizenIdentification = *identifier.Value
		case coolfhir.UserIDNamingSystem:
			result.UserID = *identifier.Value
		}
	}
	return result
}

// SearchToken renders a token search value (system|value).
func SearchToken(system string, value string) string {
	return coolfhir.TokenParam(system, value)
}

// IfNoneExist renders the search query of a conditional create matching all given identifiers and contact points.
func IfNoneExist(identifiers []fhir.Identifier, telecom []fhir.ContactPoint) string {
	query := url.Values{}
	for _, identifier := range identifiers {
		if identifier.System == nil || identifier.Value == nil {
			continue
		}
		query.Add("identifier", SearchToken(*identifier.System, *identifier.Value))
	}
	for _, point := range telecom {
		if point.System == nil || point.Value == nil {
			continue
		}
		query.Add("telecom", SearchToken(point.System.Code(), *point.Value))
	}
	return query.Encode()
}

// Gender parses an administrative gender code. Unknown codes yield nil.
func Gender(code string) *fhir.AdministrativeGender {
	switch code {
	case "male":
		return to.Ptr(fhir.AdministrativeGenderMale)
	case "female":
		return to.Ptr(fhir.AdministrativeGenderFemale)
	case "other":
		return to.Ptr(fhir.AdministrativeGenderOther)
	case "unknown":
		return to.Ptr(fhir.AdministrativeGenderUnknown)
	}
	return nil
}

func identifierType(code string, display string) *fhir.CodeableConcept {
	return &fhir.CodeableConcept{
		Coding: []fhir.Coding{
			{
				System:  to.Ptr(coolfhir.IdentifierTypeCodeSystem),
				Code:    to.Ptr(code),
				Display: to.Ptr(display),
			},
		},
	}
}

func capitalize(token string) string {
	first, size := utf8.DecodeRuneInString(token)
	if first == utf8.RuneError {
		return token
	}
	return string(unicode.ToUpper(first)) + token[size:]
}
