package vector

import (
	"context"
	"time"

	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate/entities/models"
)

// Schema calls run once at startup, so a hung Weaviate should fail the
// bootstrap instead of blocking it forever.
const schemaCallTimeout = 15 * time.Second

// WeaviateClientAdapter narrows the Weaviate client to the schema operations
// the bootstrap needs, so EnsureSchema stays testable against a fake.
type WeaviateClientAdapter struct {
	Client *weaviate.Client
}

var _ SchemaClient = (*WeaviateClientAdapter)(nil)

func NewWeaviateClientAdapter(client *weaviate.Client) *WeaviateClientAdapter {
	return &WeaviateClientAdapter{Client: client}
}

func (a *WeaviateClientAdapter) ClassExists(ctx context.Context, className string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, schemaCallTimeout)
	defer cancel()
	return a.Client.Schema().ClassExistenceChecker().WithClassName(className).Do(ctx)
}

func (a *WeaviateClientAdapter) CreateClass(ctx context.Context, class *models.Class) error {
	ctx, cancel := context.WithTimeout(ctx, schemaCallTimeout)
	defer cancel()
	return a.Client.Schema().ClassCreator().WithClass(class).Do(ctx)
}

func (a *WeaviateClientAdapter) GetClass(ctx context.Context, className string) (*models.Class, error) {
	ctx, cancel := context.WithTimeout(ctx, schemaCallTimeout)
	defer cancel()
	return a.Client.Schema().ClassGetter().WithClassName(className).Do(ctx)
}

func (a *WeaviateClientAdapter) AddProperty(ctx context.Context, className string, property *models.Property) error {
	ctx, cancel := context.WithTimeout(ctx, schemaCallTimeout)
	defer cancel()
	return a.Client.Schema().PropertyCreator().WithClassName(className).WithProperty(property).Do(ctx)
}
