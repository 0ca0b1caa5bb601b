package typesense

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/openimis/openimis-be-medical/pkg/config"
	"github.com/openimis/openimis-be-medical/pkg/retry"
	"github.com/rs/zerolog"
	"github.com/typesense/typesense-go/v2/typesense"
	"github.com/typesense/typesense-go/v2/typesense/api"
	"github.com/typesense/typesense-go/v2/typesense/api/pointer"
)

const (
	// CatalogCollection holds one document per currently valid item or service
	CatalogCollection = "medical_catalog"
)

// Client represents a Typesense client
type Client struct {
	client *typesense.Client
	logger zerolog.Logger
}

// NewClient creates a new Typesense client, retrying the health check with
// exponential backoff
func NewClient(cfg *config.TypesenseConfig, logger zerolog.Logger) (*Client, error) {
	client := typesense.NewClient(
		typesense.WithServer(cfg.URL),
		typesense.WithAPIKey(cfg.APIKey),
		typesense.WithConnectionTimeout(5*time.Second),
	)

	c := &Client{client: client, logger: logger}
	err := retry.DoWithLog(context.Background(), retry.DefaultConfig(), "Typesense", logger, func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return c.Ping(ctx)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Typesense after retries: %w", err)
	}

	logger.Info().Str("url", cfg.URL).Msg("connected to Typesense")
	return c, nil
}

// Ping asks the node for its health status
func (c *Client) Ping(ctx context.Context) error {
	healthy, err := c.client.Health(ctx, 2*time.Second)
	if err != nil {
		return err
	}
	if !healthy {
		return fmt.Errorf("typesense reports unhealthy")
	}
	return nil
}

// Client returns the underlying Typesense client
func (c *Client) Client() *typesense.Client {
	return c.client
}

// CatalogSchema describes the catalog collection
func CatalogSchema() *api.CollectionSchema {
	return &api.CollectionSchema{
		Name: CatalogCollection,
		Fields: []api.Field{
			{Name: "id", Type: "string"},
			{Name: "kind", Type: "string", Facet: pointer.True()},
			{Name: "uuid", Type: "string"},
			{Name: "code", Type: "string"},
			{Name: "name", Type: "string"},
			{Name: "type", Type: "string", Facet: pointer.True()},
			{Name: "care_type", Type: "string", Facet: pointer.True()},
			{Name: "price", Type: "float"},
			{Name: "version", Type: "int32"},
			{Name: "patient_groups", Type: "string[]", Facet: pointer.True(), Optional: pointer.True()},
			{Name: "is_package", Type: "bool", Facet: pointer.True(), Optional: pointer.True()},
		},
		DefaultSortingField: pointer.String("version"),
	}
}

// InitSchema ensures the catalog collection exists
func (c *Client) InitSchema(ctx context.Context) error {
	collections, err := c.client.Collections().Retrieve(ctx)
	if err != nil {
		return fmt.Errorf("failed to retrieve collections: %w", err)
	}

	for _, col := range collections {
		if col.Name == CatalogCollection {
			return nil
		}
	}

	if _, err := c.client.Collections().Create(ctx, CatalogSchema()); err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}

	c.logger.Info().Str("collection", CatalogCollection).Msg("created Typesense collection")
	return nil
}

// DropSchema deletes the catalog collection. A missing collection is not an
// error.
func (c *Client) DropSchema(ctx context.Context) error {
	_, err := c.client.Collection(CatalogCollection).Delete(ctx)
	if err != nil {
		var httpErr *typesense.HTTPError
		if errors.As(err, &httpErr) && httpErr.Status == http.StatusNotFound {
			return nil
		}
		return fmt.Errorf("failed to drop collection: %w", err)
	}
	c.logger.Info().Str("collection", CatalogCollection).Msg("dropped Typesense collection")
	return nil
}
