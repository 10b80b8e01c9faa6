package store_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/require"

	"github.com/jacentio/docstore/internal/memdb"
	"github.com/jacentio/docstore/schema"
	"github.com/jacentio/docstore/store"
)

const ordersTable = "shop.orders"

type Address struct {
	Street string `dynamodbav:"street,omitempty"`
	City   string `dynamodbav:"city,omitempty"`
}

type Order struct {
	ID        string    `dynamodbav:"id"`
	Customer  string    `dynamodbav:"customer_id"`
	Status    string    `dynamodbav:"status"`
	Quantity  int32     `dynamodbav:"qty"`
	Total     float64   `dynamodbav:"total"`
	Gift      bool      `dynamodbav:"gift"`
	CreatedAt time.Time `dynamodbav:"created_at"`
	Shipping  *Address  `dynamodbav:"shipping,omitempty"`
	Tags      []string  `dynamodbav:"tags,omitempty"`
}

// OrderSummary is a projection of Order.
type OrderSummary struct {
	ID     string `dynamodbav:"id"`
	Status string `dynamodbav:"status"`
}

func orderSchema() *schema.Type {
	status := schema.NewEnum("Status").
		Value("Pending", "PENDING").
		Value("Paid", "PAID").
		Value("Shipped", "SHIPPED")
	address := schema.NewType("Address").
		Text("street", "street").
		Text("city", "city", schema.Required())

	return schema.NewEntity("Order", "orders").
		ID().
		Text("customer", "customer_id", schema.Required()).
		EnumField("status", "status", status, schema.Required()).
		Int32("quantity", "qty").
		Float64("total", "total").
		Bool("gift", "gift").
		Timestamp("createdAt", "created_at").
		Composite("shipping", "shipping", address).
		List("tags", "tags", schema.Of(schema.KindText))
}

func newOrder(id string) *Order {
	return &Order{
		ID:        id,
		Customer:  "c-1",
		Status:    "PENDING",
		Quantity:  2,
		Total:     19.5,
		CreatedAt: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func orderItem(id, status string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"id":          &types.AttributeValueMemberS{Value: id},
		"customer_id": &types.AttributeValueMemberS{Value: "c-1"},
		"status":      &types.AttributeValueMemberS{Value: status},
		"qty":         &types.AttributeValueMemberN{Value: "1"},
	}
}

func testConfig() store.Config {
	return store.Config{
		Endpoint:         "http://localhost:8000",
		Key:              "local",
		Secret:           "local",
		Database:         "shop",
		PreferredRegions: []string{"eu-west-1", "eu-central-1"},
	}
}

// recorder is an Observer that keeps everything it receives.
type recorder struct {
	mu       sync.Mutex
	metrics  []store.Metrics
	warnings []store.Warning
}

func (r *recorder) Track(_ context.Context, m store.Metrics) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.metrics = append(r.metrics, m)
}

func (r *recorder) Warn(_ context.Context, w store.Warning) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.warnings = append(r.warnings, w)
}

func (r *recorder) last(t *testing.T) store.Metrics {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	require.NotEmpty(t, r.metrics, "no metrics recorded")
	return r.metrics[len(r.metrics)-1]
}

func (r *recorder) warningsWithCode(code string) []store.Warning {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []store.Warning
	for _, w := range r.warnings {
		if w.Code == code {
			out = append(out, w)
		}
	}
	return out
}

type fixture struct {
	db     *memdb.DB
	rec    *recorder
	client *store.Client
	repo   *store.Repository[Order]
}

func newFixture(t *testing.T, mutate ...func(*store.Config)) *fixture {
	t.Helper()
	db := memdb.New()
	db.AddTable(ordersTable, "id")

	cfg := testConfig()
	for _, m := range mutate {
		m(&cfg)
	}

	rec := &recorder{}
	client := store.NewClient(store.WithAPI(db), store.WithObserver(rec))
	_, err := client.Open(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	repo, err := store.NewRepository[Order](client, orderSchema())
	require.NoError(t, err)

	return &fixture{db: db, rec: rec, client: client, repo: repo}
}

func (f *fixture) seed(n int, status string) {
	items := make([]map[string]types.AttributeValue, n)
	for i := range items {
		items[i] = orderItem(fmt.Sprintf("order-%05d", i), status)
	}
	f.db.Seed(ordersTable, items...)
}
