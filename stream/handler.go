// Package stream turns DynamoDB Streams records of one container into typed
// change notifications.
package stream

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"

	"github.com/jacentio/docstore/schema"
	"github.com/jacentio/docstore/store"
)

// ChangeKind is the stream event name of a change.
type ChangeKind string

const (
	Inserted ChangeKind = "INSERT"
	Modified ChangeKind = "MODIFY"
	Removed  ChangeKind = "REMOVE"
)

// Change is one decoded stream record. Entity is the new image and is nil
// for removals; Previous is the old image and is nil for inserts or when the
// stream does not carry old images.
type Change[T any] struct {
	Kind     ChangeKind
	ID       string
	EventID  string
	At       time.Time
	Entity   *T
	Previous *T
}

// Handler decodes stream events for one table and passes each change to a
// callback.
type Handler[T any] struct {
	table    string
	onChange func(context.Context, Change[T]) error
	logger   *slog.Logger
}

// NewHandler creates a handler for table. Records from other tables are
// skipped. If logger is nil, slog.Default() is used.
func NewHandler[T any](table string, onChange func(context.Context, Change[T]) error, logger *slog.Logger) *Handler[T] {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler[T]{
		table:    table,
		onChange: onChange,
		logger:   logger,
	}
}

// ForRepository creates a handler for the table backing repo in db.
func ForRepository[T any](db *store.Database, repo *store.Repository[T], onChange func(context.Context, Change[T]) error, logger *slog.Logger) *Handler[T] {
	return NewHandler(db.TableName(repo.ContainerName()), onChange, logger)
}

// Table returns the table this handler accepts records from.
func (h *Handler[T]) Table() string {
	return h.table
}

// HandleEvent processes every record of event in order and stops at the
// first failure so the batch is retried. It is designed to be used as an
// AWS Lambda handler.
func (h *Handler[T]) HandleEvent(ctx context.Context, event events.DynamoDBEvent) error {
	for _, record := range event.Records {
		if err := h.processRecord(ctx, record); err != nil {
			h.logger.Error("failed to process record",
				"eventID", record.EventID,
				"table", h.table,
				"error", err,
			)
			return err
		}
	}
	return nil
}

func (h *Handler[T]) processRecord(ctx context.Context, record events.DynamoDBEventRecord) error {
	if table := tableFromARN(record.EventSourceArn); table != "" && table != h.table {
		return nil
	}

	kind := ChangeKind(record.EventName)
	switch kind {
	case Inserted, Modified, Removed:
	default:
		h.logger.Debug("skipping stream record", "eventID", record.EventID, "eventName", record.EventName)
		return nil
	}

	change := Change[T]{
		Kind:    kind,
		ID:      getStringAttr(record.Change.Keys, schema.IDName),
		EventID: record.EventID,
		At:      record.Change.ApproximateCreationDateTime.Time,
	}

	var err error
	if kind != Removed {
		if change.Entity, err = decode[T](record.Change.NewImage); err != nil {
			return fmt.Errorf("decode new image: %w", err)
		}
	}
	if change.Previous, err = decode[T](record.Change.OldImage); err != nil {
		return fmt.Errorf("decode old image: %w", err)
	}

	if err := h.onChange(ctx, change); err != nil {
		return fmt.Errorf("handle %s %s: %w", kind, change.ID, err)
	}
	return nil
}

func decode[T any](image map[string]events.DynamoDBAttributeValue) (*T, error) {
	if len(image) == 0 {
		return nil, nil
	}
	item, err := ConvertImage(image)
	if err != nil {
		return nil, err
	}
	var out T
	if err := attributevalue.UnmarshalMap(item, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// tableFromARN extracts the table name from a stream ARN of the form
// arn:aws:dynamodb:region:account:table/<name>/stream/<label>.
func tableFromARN(arn string) string {
	_, rest, ok := strings.Cut(arn, ":table/")
	if !ok {
		return ""
	}
	name, _, _ := strings.Cut(rest, "/")
	return name
}
