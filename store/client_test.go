package store_test

import (
	"bytes"
	"context"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jacentio/docstore/internal/memdb"
	"github.com/jacentio/docstore/store"
)

func TestClient_OpenTwiceFails(t *testing.T) {
	client := store.NewClient(store.WithAPI(memdb.New()))
	ctx := context.Background()

	db, err := client.Open(ctx, testConfig())
	require.NoError(t, err)
	assert.Equal(t, "shop", db.Name())
	assert.True(t, client.IsOpen())

	_, err = client.Open(ctx, testConfig())
	var cfgErr *store.ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	assert.ErrorIs(t, err, store.ErrConfiguration)

	// the first handle stays in place
	current, err := client.Database()
	require.NoError(t, err)
	assert.Same(t, db, current)
}

func TestClient_CloseIsIdempotent(t *testing.T) {
	client := store.NewClient(store.WithAPI(memdb.New()))

	assert.NoError(t, client.Close())
	assert.NoError(t, client.Close())

	_, err := client.Open(context.Background(), testConfig())
	require.NoError(t, err)
	assert.NoError(t, client.Close())
	assert.NoError(t, client.Close())
	assert.False(t, client.IsOpen())

	_, err = client.Database()
	assert.ErrorIs(t, err, store.ErrNotOpen)
}

func TestClient_ReopenAfterClose(t *testing.T) {
	client := store.NewClient(store.WithAPI(memdb.New()))
	ctx := context.Background()

	_, err := client.Open(ctx, testConfig())
	require.NoError(t, err)
	require.NoError(t, client.Close())

	_, err = client.Open(ctx, testConfig())
	assert.NoError(t, err)
}

func TestClient_OpenRejectsMissingSettings(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*store.Config)
		key    string
	}{
		{"endpoint", func(c *store.Config) { c.Endpoint = "" }, "endpoint"},
		{"key", func(c *store.Config) { c.Key = "" }, "key"},
		{"database", func(c *store.Config) { c.Database = "" }, "database"},
		{"regions", func(c *store.Config) { c.PreferredRegions = []string{} }, "preferred_regions"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := store.NewClient(store.WithAPI(memdb.New()))
			cfg := testConfig()
			tt.mutate(&cfg)

			_, err := client.Open(context.Background(), cfg)
			var cfgErr *store.ConfigurationError
			require.ErrorAs(t, err, &cfgErr)
			assert.Equal(t, tt.key, cfgErr.Key)
			assert.False(t, client.IsOpen())
		})
	}
}

func TestClient_OpenAppliesDefaultsAndCopiesRegions(t *testing.T) {
	client := store.NewClient(store.WithAPI(memdb.New()))
	cfg := testConfig()

	db, err := client.Open(context.Background(), cfg)
	require.NoError(t, err)
	cfg.PreferredRegions[0] = "changed"

	got := db.Config()
	assert.Equal(t, store.DefaultSlowOperationThreshold, got.SlowOperationThreshold)
	assert.Equal(t, store.DefaultTooManyRowsThreshold, got.TooManyRowsThreshold)
	assert.Equal(t, []string{"eu-west-1", "eu-central-1"}, got.PreferredRegions)
	assert.Equal(t, "shop.orders", db.TableName("orders"))
}

func TestClient_OpenBuildsDynamoDBClient(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("AWS_CONFIG_FILE", filepath.Join(dir, "config"))
	t.Setenv("AWS_SHARED_CREDENTIALS_FILE", filepath.Join(dir, "credentials"))
	t.Setenv("AWS_PROFILE", "")

	client := store.NewClient(store.WithAppID("docstore-test"))
	db, err := client.Open(context.Background(), testConfig())
	require.NoError(t, err)

	ddb, ok := db.API().(*dynamodb.Client)
	require.True(t, ok, "expected *dynamodb.Client, got %T", db.API())
	assert.Equal(t, "eu-west-1", ddb.Options().Region)
	assert.Equal(t, "http://localhost:8000", *ddb.Options().BaseEndpoint)

	assert.NoError(t, client.Close())
	assert.NoError(t, client.Close())
}

func TestClient_LogsLifecycle(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	client := store.NewClient(store.WithAPI(memdb.New()), store.WithLogger(logger))

	_, err := client.Open(context.Background(), testConfig())
	require.NoError(t, err)
	require.NoError(t, client.Close())

	assert.Contains(t, buf.String(), "docstore client opened")
	assert.Contains(t, buf.String(), "database=shop")
	assert.Contains(t, buf.String(), "docstore client closed")
}

func TestLogObserver(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	db := memdb.New()
	db.AddTable(ordersTable, "id")
	client := store.NewClient(store.WithAPI(db), store.WithLogger(logger))
	_, err := client.Open(context.Background(), testConfig())
	require.NoError(t, err)
	defer client.Close()

	repo := store.MustRepository[Order](client, orderSchema())
	_, err = repo.Get(context.Background(), "o-1")
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "docstore operation")
	assert.Contains(t, out, "operation=get")
	assert.Contains(t, out, "container=orders")
	assert.Contains(t, out, "request_charge=1")
}

func TestLogObserver_Warn(t *testing.T) {
	var buf bytes.Buffer
	o := store.NewLogObserver(slog.New(slog.NewTextHandler(&buf, nil)))

	o.Warn(context.Background(), store.Warning{Code: store.WarningTooManyRows, Operation: "find", Container: "orders", Rows: 2001, Threshold: "2000"})
	assert.Contains(t, buf.String(), "level=WARN")
	assert.Contains(t, buf.String(), "error_code=TOO_MANY_ROWS_RETURNED")
	assert.Contains(t, buf.String(), "rows=2001")

	assert.NotNil(t, store.NewLogObserver(nil).Logger)
}
