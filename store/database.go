package store

import (
	"context"
	"log/slog"
	"sync/atomic"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// Database is the handle returned by Client.Open. It is shared by every
// repository and by migration scripts.
type Database struct {
	api      API
	name     string
	cfg      Config
	observer Observer
	logger   *slog.Logger
}

// Name returns the database name.
func (d *Database) Name() string { return d.name }

// API returns the underlying store client.
func (d *Database) API() API { return d.api }

// Config returns the settings the database was opened with.
func (d *Database) Config() Config { return d.cfg }

// TableName returns the physical table backing container.
func (d *Database) TableName(container string) string {
	return d.name + "." + container
}

// Container is a resolved handle to one container.
type Container struct {
	Database string
	Name     string
	Table    string
	ARN      string
	// KeyAttribute is the hash key attribute of the table.
	KeyAttribute string
	Status       types.TableStatus
}

// Container looks up the table backing name. The lookup is read-only and
// idempotent.
func (d *Database) Container(ctx context.Context, name string) (*Container, error) {
	table := d.TableName(name)
	out, err := d.api.DescribeTable(ctx, &dynamodb.DescribeTableInput{
		TableName: aws.String(table),
	})
	if err != nil {
		return nil, classify("resolve", name, err, KindOther)
	}

	c := &Container{Database: d.name, Name: name, Table: table}
	if td := out.Table; td != nil {
		c.ARN = aws.ToString(td.TableArn)
		c.Status = td.TableStatus
		for _, k := range td.KeySchema {
			if k.KeyType == types.KeyTypeHash {
				c.KeyAttribute = aws.ToString(k.AttributeName)
			}
		}
	}
	return c, nil
}

// resolver memoizes the container of one repository.
//
// Concurrent first calls may each perform the lookup. The first stored
// result wins and the others are discarded; every lookup targets the same
// table so any of them is a valid handle. A failed lookup is not cached. A
// cached container of another database, left over from before the client
// was reopened, is looked up again.
type resolver struct {
	name   string
	cached atomic.Pointer[Container]
}

func (r *resolver) resolve(ctx context.Context, db *Database) (*Container, error) {
	cached := r.cached.Load()
	if cached != nil && cached.Database == db.name {
		return cached, nil
	}
	c, err := db.Container(ctx, r.name)
	if err != nil {
		return nil, err
	}
	if r.cached.CompareAndSwap(cached, c) {
		db.logger.DebugContext(ctx, "docstore container resolved", "container", c.Name, "table", c.Table)
		return c, nil
	}
	if winner := r.cached.Load(); winner != nil && winner.Database == db.name {
		return winner, nil
	}
	return c, nil
}
