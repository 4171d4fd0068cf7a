package coolfhir

import (
	"encoding/json"

	"github.com/zorgbijjou/golang-fhir-models/fhir-models/fhir"
)

type BundleBuilder fhir.Bundle

func Transaction() *BundleBuilder {
	return &BundleBuilder{
		Type: fhir.BundleTypeTransaction,
	}
}

func (t *BundleBuilder) Update(resource interface{}, path string) *BundleBuilder {
	return t.Append(resource, &fhir.BundleEntryRequest{
		Method: fhir.HTTPVerbPUT,
		Url:    path,
	})
}

// Create adds a POST entry for the resource. The fullUrl (urn:uuid:...) lets other entries of the transaction refer to
// the resource before the server assigned its id.
func (t *BundleBuilder) Create(resource interface{}, resourceType string, fullUrl string) *BundleBuilder {
	data, err := json.Marshal(resource)
	if err != nil {
		return t
	}
	t.Entry = append(t.Entry, fhir.BundleEntry{
		FullUrl:  &fullUrl,
		Resource: data,
		Request: &fhir.BundleEntryRequest{
			Method: fhir.HTTPVerbPOST,
			Url:    resourceType,
		},
	})
	return t
}

func (t *BundleBuilder) Delete(path string) *BundleBuilder {
	t.Entry = append(t.Entry, fhir.BundleEntry{
		Request: &fhir.BundleEntryRequest{
			Method: fhir.HTTPVerbDELETE,
			Url:    path,
		},
	})
	return t
}

func (t *BundleBuilder) Append(resource interface{}, request *fhir.BundleEntryRequest) *BundleBuilder {
	data, err := json.Marshal(resource)
	if err != nil {
		return t
	}
	t.Entry = append(t.Entry, fhir.BundleEntry{
		Resource: data,
		Request:  request,
	})
	return t
}

func (t *BundleBuilder) Bundle() fhir.Bundle {
	return fhir.Bundle(*t)
}
