package store

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
)

// Client is the process-wide facade over one store connection. Create it
// once at startup, Open it once, and Close it after the last repository
// operation has returned.
type Client struct {
	observer Observer
	logger   *slog.Logger
	appID    string
	api      API

	mu        sync.RWMutex
	db        *Database
	transport *http.Transport
}

// Option configures a Client.
type Option func(*Client)

// WithAPI makes Open use api instead of building a DynamoDB client.
func WithAPI(api API) Option {
	return func(c *Client) { c.api = api }
}

// WithObserver sets the telemetry sink. Default: a LogObserver on the client logger.
func WithObserver(o Observer) Option {
	return func(c *Client) { c.observer = o }
}

// WithLogger sets the logger used for lifecycle events. Default: slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// WithAppID sets the application id sent in the SDK user agent.
func WithAppID(id string) Option {
	return func(c *Client) { c.appID = id }
}

// NewClient returns a closed Client.
func NewClient(opts ...Option) *Client {
	c := &Client{}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	if c.observer == nil {
		c.observer = NewLogObserver(c.logger)
	}
	return c
}

// Open validates cfg, connects and returns the database handle. It fails with
// a *ConfigurationError when a setting is missing or the client is already
// open.
func (c *Client) Open(ctx context.Context, cfg Config) (*Database, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.db != nil {
		return nil, &ConfigurationError{Key: "client", Reason: "already open"}
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	// own copy so later changes by the caller are not observed
	cfg.PreferredRegions = append([]string(nil), cfg.PreferredRegions...)

	api := c.api
	var transport *http.Transport
	if api == nil {
		client, tr, err := newDynamoDBClient(ctx, cfg, c.appID)
		if err != nil {
			return nil, err
		}
		api, transport = client, tr
	}

	c.db = &Database{
		api:      api,
		name:     cfg.Database,
		cfg:      cfg,
		observer: c.observer,
		logger:   c.logger,
	}
	c.transport = transport

	c.logger.InfoContext(ctx, "docstore client opened",
		"endpoint", cfg.Endpoint,
		"database", cfg.Database,
		"region", cfg.Region(),
		"preferred_regions", cfg.PreferredRegions,
	)
	return c.db, nil
}

// Database returns the open database handle, or ErrNotOpen.
func (c *Client) Database() (*Database, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.db == nil {
		return nil, ErrNotOpen
	}
	return c.db, nil
}

// IsOpen reports whether Open succeeded and Close has not been called since.
func (c *Client) IsOpen() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.db != nil
}

// Close releases the connection. Closing a client that is not open is a no-op.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.db == nil {
		return nil
	}
	if c.transport != nil {
		c.transport.CloseIdleConnections()
	}
	c.logger.Info("docstore client closed", "database", c.db.name)
	c.db = nil
	c.transport = nil
	return nil
}

// observe returns the observer and thresholds for a new measurement. Before
// Open the default thresholds apply.
func (c *Client) observe() (Observer, Config) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.db == nil {
		return c.observer, DefaultConfig()
	}
	return c.observer, c.db.cfg
}

func newDynamoDBClient(ctx context.Context, cfg Config, appID string) (*dynamodb.Client, *http.Transport, error) {
	transport := http.DefaultTransport.(*http.Transport).Clone()

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.Region()),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.Key, cfg.Secret, "")),
		awsconfig.WithHTTPClient(&http.Client{Transport: transport}),
		awsconfig.WithAppID(appID),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("load aws config: %w", err)
	}

	client := dynamodb.NewFromConfig(awsCfg, func(o *dynamodb.Options) {
		o.BaseEndpoint = aws.String(cfg.Endpoint)
	})
	return client, transport, nil
}
