package mapper

import (
	"github.com/KLTN-2025/PTNTYTST5951/lib/to"
	"github.com/zorgbijjou/golang-fhir-models/fhir-models/fhir"
)

// Concept is a code of a CodeSystem, with the codes nested beneath it.
type Concept struct {
	System   string    `json:"system"`
	Code     string    `json:"code"`
	Display  string    `json:"display"`
	Children []Concept `json:"children,omitempty"`
}

// Concepts converts the concept hierarchy of the code system. The display falls back to the code.
func Concepts(codeSystem fhir.CodeSystem) []Concept {
	return concepts(to.EmptyString(codeSystem.Url), codeSystem.Concept)
}

func concepts(system string, source []fhir.CodeSystemConcept) []Concept {
	var result []Concept
	for _, concept := range source {
		display := to.EmptyString(concept.Display)
		if display == "" {
			display = concept.Code
		}
		result = append(result, Concept{
			System:   system,
			Code:     concept.Code,
			Display:  display,
			Children: concepts(system, concept.Concept),
		})
	}
	return result
}
