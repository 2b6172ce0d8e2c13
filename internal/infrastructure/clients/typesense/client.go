package typesense

import (
	"context"
	"fmt"
	"time"

	"github.com/danielcwq/stall-finder/internal/infrastructure/observability"
	"github.com/danielcwq/stall-finder/pkg/config"
	"github.com/danielcwq/stall-finder/pkg/retry"
	"github.com/typesense/typesense-go/v2/typesense"
	"github.com/typesense/typesense-go/v2/typesense/api"
	"github.com/typesense/typesense-go/v2/typesense/api/pointer"
)

// Client represents a Typesense client
type Client struct {
	client     *typesense.Client
	collection string
}

// NewClient creates a new Typesense client with exponential backoff retry
func NewClient(cfg *config.TypesenseConfig) (*Client, error) {
	client := typesense.NewClient(
		typesense.WithServer(cfg.URL),
		typesense.WithAPIKey(cfg.APIKey),
		typesense.WithConnectionTimeout(5*time.Second),
	)

	logger := observability.GetLogger()
	err := retry.DoWithLog(
		context.Background(),
		retry.DefaultConfig(),
		"Typesense",
		func() error {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			healthy, err := client.Health(ctx, 2*time.Second)
			if err != nil {
				return err
			}
			if !healthy {
				return fmt.Errorf("typesense reported unhealthy")
			}
			return nil
		},
		func(attempt int, err error, nextDelay time.Duration) {
			logger.Warn().Err(err).Int("attempt", attempt).Dur("next_delay", nextDelay).Msg("Typesense connection attempt failed")
		},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Typesense after retries: %w", err)
	}

	logger.Info().Str("url", cfg.URL).Msg("Connected to Typesense")
	return NewClientFromTypesense(client, cfg.Collection), nil
}

// NewClientFromTypesense wraps an existing typesense client without a health check.
func NewClientFromTypesense(client *typesense.Client, collection string) *Client {
	if collection == "" {
		collection = "stalls"
	}
	return &Client{client: client, collection: collection}
}

// Client returns the underlying Typesense client
func (c *Client) Client() *typesense.Client {
	return c.client
}

// Collection returns the stalls collection name
func (c *Client) Collection() string {
	return c.collection
}

// InitSchema ensures the stalls collection exists with an embedding field of the given size
func (c *Client) InitSchema(ctx context.Context, dimensions int) error {
	if _, err := c.client.Collection(c.collection).Retrieve(ctx); err == nil {
		return nil
	}

	schema := &api.CollectionSchema{
		Name: c.collection,
		Fields: []api.Field{
			{Name: "id", Type: "string"},
			{Name: "name", Type: "string"},
			{Name: "category", Type: "string", Facet: pointer.True(), Optional: pointer.True()},
			{Name: "cuisine", Type: "string", Facet: pointer.True(), Optional: pointer.True()},
			{Name: "affordability", Type: "string", Facet: pointer.True(), Optional: pointer.True()},
			{Name: "location", Type: "string", Optional: pointer.True()},
			{Name: "operating_hours", Type: "string", Optional: pointer.True()},
			{Name: "review_summary", Type: "string", Optional: pointer.True()},
			{Name: "recommended_dishes", Type: "string[]", Optional: pointer.True()},
			{Name: "source", Type: "string", Optional: pointer.True()},
			{Name: "source_url", Type: "string", Optional: pointer.True()},
			{Name: "date_published", Type: "int64", Optional: pointer.True()},
			{Name: "coordinates", Type: "geopoint"},
			{Name: "status", Type: "string", Facet: pointer.True()},
			{Name: "embedding", Type: "float[]", NumDim: pointer.Int(dimensions)},
		},
	}

	if _, err := c.client.Collections().Create(ctx, schema); err != nil {
		return fmt.Errorf("failed to create typesense collection %s: %w", c.collection, err)
	}

	observability.GetLogger().Info().Str("collection", c.collection).Msg("Created Typesense collection")
	return nil
}

// DropCollection deletes the stalls collection
func (c *Client) DropCollection(ctx context.Context) error {
	_, err := c.client.Collection(c.collection).Delete(ctx)
	return err
}
