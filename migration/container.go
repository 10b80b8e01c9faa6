package migration

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/jacentio/docstore/schema"
	"github.com/jacentio/docstore/store"
)

// DefaultTableWait bounds how long EnsureContainer waits for a table to
// become active.
const DefaultTableWait = 5 * time.Minute

// EnsureContainer creates the table backing container, keyed by "id" with
// on-demand billing, unless it already exists, and waits until it is active.
func EnsureContainer(ctx context.Context, db *store.Database, container string) error {
	table := db.TableName(container)
	_, err := db.API().CreateTable(ctx, &dynamodb.CreateTableInput{
		TableName: aws.String(table),
		AttributeDefinitions: []types.AttributeDefinition{
			{AttributeName: aws.String(schema.IDName), AttributeType: types.ScalarAttributeTypeS},
		},
		KeySchema: []types.KeySchemaElement{
			{AttributeName: aws.String(schema.IDName), KeyType: types.KeyTypeHash},
		},
		BillingMode: types.BillingModePayPerRequest,
	})
	var inUse *types.ResourceInUseException
	if err != nil && !errors.As(err, &inUse) {
		return fmt.Errorf("create table %s: %w", table, err)
	}

	waiter := dynamodb.NewTableExistsWaiter(db.API())
	if err := waiter.Wait(ctx, &dynamodb.DescribeTableInput{TableName: aws.String(table)}, DefaultTableWait); err != nil {
		return fmt.Errorf("wait for table %s: %w", table, err)
	}
	return nil
}

// EnsureContainers returns a script that ensures every container of reg.
func EnsureContainers(ticket string, reg *store.Registry) Script {
	return Script{
		Ticket:      ticket,
		Description: "ensure entity containers exist",
		Run: func(ctx context.Context, db *store.Database) error {
			for _, container := range reg.Containers() {
				if err := EnsureContainer(ctx, db, container); err != nil {
					return err
				}
			}
			return nil
		},
	}
}
