package search

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/openimis/openimis-be-medical/internal/domain/entities"
	"github.com/openimis/openimis-be-medical/internal/domain/providers"
)

func TestDocumentFieldsRoundTrip(t *testing.T) {
	doc := providers.NewCatalogDocument(&entities.Service{Entry: entities.Entry{UUID: "u1", Code: "SRV01", Name: "Consultation", Version: 1}})

	fields := documentFields(doc)
	// Typesense hands numbers back as float64.
	fields["version"] = float64(1)

	assert.Equal(t, doc, documentFromFields(fields))
}

func TestDocumentFromFields_DecodedHit(t *testing.T) {
	doc := documentFromFields(map[string]interface{}{
		"code":           "DELIV",
		"is_package":     true,
		"patient_groups": []interface{}{"ADULT", "FEMALE"},
	})

	assert.True(t, doc.IsPackage)
	assert.Equal(t, []string{"ADULT", "FEMALE"}, doc.PatientGroups)
}

func TestDocumentFromFields_ToleratesMissingKeys(t *testing.T) {
	doc := documentFromFields(map[string]interface{}{"code": "X1"})

	assert.Equal(t, "X1", doc.Code)
	assert.Empty(t, doc.UUID)
}

func TestIsNotFound(t *testing.T) {
	assert.True(t, isNotFound(errors.New("status: 404 Could not find a document")))
	assert.False(t, isNotFound(errors.New("connection refused")))
}
