package typesense

import (
	"context"
	"os"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openimis/openimis-be-medical/pkg/config"
)

func TestCatalogSchema(t *testing.T) {
	schema := CatalogSchema()

	assert.Equal(t, CatalogCollection, schema.Name)
	names := make([]string, 0, len(schema.Fields))
	for _, f := range schema.Fields {
		names = append(names, f.Name)
	}
	assert.Subset(t, names, []string{"kind", "uuid", "code", "name", "version", "patient_groups", "is_package"})
	require.NotNil(t, schema.DefaultSortingField)
	assert.Equal(t, "version", *schema.DefaultSortingField)
}

func TestClient_Integration(t *testing.T) {
	if os.Getenv("TEST_INTEGRATION") != "true" {
		t.Skip("Skipping integration test")
	}

	cfg := &config.TypesenseConfig{URL: "http://localhost:8108", APIKey: "xyz"}

	client, err := NewClient(cfg, zerolog.Nop())
	require.NoError(t, err)

	assert.NoError(t, client.InitSchema(context.Background()))
	assert.NoError(t, client.InitSchema(context.Background()))
}
