package stream_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/aws/aws-lambda-go/events"

	"github.com/jacentio/docstore/internal/memdb"
	"github.com/jacentio/docstore/schema"
	"github.com/jacentio/docstore/store"
	"github.com/jacentio/docstore/stream"
)

const streamARN = "arn:aws:dynamodb:eu-west-1:123456789012:table/shop.orders/stream/2024-03-01T00:00:00.000"

type Order struct {
	ID     string `dynamodbav:"id"`
	Status string `dynamodbav:"status"`
	Qty    int    `dynamodbav:"qty"`
}

func image(id, status, qty string) map[string]events.DynamoDBAttributeValue {
	return map[string]events.DynamoDBAttributeValue{
		"id":     events.NewStringAttribute(id),
		"status": events.NewStringAttribute(status),
		"qty":    events.NewNumberAttribute(qty),
	}
}

func record(name string, oldImage, newImage map[string]events.DynamoDBAttributeValue) events.DynamoDBEventRecord {
	return events.DynamoDBEventRecord{
		EventID:        "evt-" + name,
		EventName:      name,
		EventSourceArn: streamARN,
		Change: events.DynamoDBStreamRecord{
			ApproximateCreationDateTime: events.SecondsEpochTime{Time: time.Unix(1709251200, 0)},
			Keys: map[string]events.DynamoDBAttributeValue{
				"id": events.NewStringAttribute("o-1"),
			},
			OldImage: oldImage,
			NewImage: newImage,
		},
	}
}

type collector struct {
	changes []stream.Change[Order]
	err     error
}

func (c *collector) handle(_ context.Context, change stream.Change[Order]) error {
	if c.err != nil {
		return c.err
	}
	c.changes = append(c.changes, change)
	return nil
}

func TestNewHandler(t *testing.T) {
	c := &collector{}
	h := stream.NewHandler("shop.orders", c.handle, nil)
	if h == nil {
		t.Fatal("expected non-nil Handler")
	}
	if h.Table() != "shop.orders" {
		t.Errorf("expected table 'shop.orders', got %q", h.Table())
	}
}

func TestForRepository(t *testing.T) {
	client := store.NewClient(store.WithAPI(memdb.New()))
	db, err := client.Open(context.Background(), store.Config{
		Endpoint:         "http://localhost:8000",
		Key:              "local",
		Secret:           "local",
		Database:         "shop",
		PreferredRegions: []string{"eu-west-1"},
	})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer client.Close()

	repo := store.MustRepository[Order](client, schema.NewEntity("Order", "orders").
		ID().
		Text("status", "status").
		Int64("qty", "qty"))

	c := &collector{}
	h := stream.ForRepository(db, repo, c.handle, nil)
	if h.Table() != "shop.orders" {
		t.Errorf("expected table 'shop.orders', got %q", h.Table())
	}
}

func TestHandler_EmptyEvent(t *testing.T) {
	c := &collector{}
	h := stream.NewHandler("shop.orders", c.handle, nil)

	err := h.HandleEvent(context.Background(), events.DynamoDBEvent{Records: []events.DynamoDBEventRecord{}})
	if err != nil {
		t.Errorf("expected no error for empty event, got %v", err)
	}
	if len(c.changes) != 0 {
		t.Errorf("expected no changes, got %d", len(c.changes))
	}
}

func TestHandler_Insert(t *testing.T) {
	c := &collector{}
	h := stream.NewHandler("shop.orders", c.handle, nil)

	event := events.DynamoDBEvent{Records: []events.DynamoDBEventRecord{
		record("INSERT", nil, image("o-1", "PENDING", "2")),
	}}
	if err := h.HandleEvent(context.Background(), event); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(c.changes) != 1 {
		t.Fatalf("expected 1 change, got %d", len(c.changes))
	}
	change := c.changes[0]
	if change.Kind != stream.Inserted {
		t.Errorf("expected INSERT, got %s", change.Kind)
	}
	if change.ID != "o-1" || change.EventID != "evt-INSERT" {
		t.Errorf("unexpected identity: id=%q event=%q", change.ID, change.EventID)
	}
	if change.Entity == nil || *change.Entity != (Order{ID: "o-1", Status: "PENDING", Qty: 2}) {
		t.Errorf("unexpected entity: %+v", change.Entity)
	}
	if change.Previous != nil {
		t.Errorf("expected no previous image, got %+v", change.Previous)
	}
	if !change.At.Equal(time.Unix(1709251200, 0)) {
		t.Errorf("unexpected timestamp %v", change.At)
	}
}

func TestHandler_Modify(t *testing.T) {
	c := &collector{}
	h := stream.NewHandler("shop.orders", c.handle, nil)

	event := events.DynamoDBEvent{Records: []events.DynamoDBEventRecord{
		record("MODIFY", image("o-1", "PENDING", "2"), image("o-1", "PAID", "2")),
	}}
	if err := h.HandleEvent(context.Background(), event); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	change := c.changes[0]
	if change.Kind != stream.Modified {
		t.Errorf("expected MODIFY, got %s", change.Kind)
	}
	if change.Entity.Status != "PAID" || change.Previous.Status != "PENDING" {
		t.Errorf("expected PENDING -> PAID, got %s -> %s", change.Previous.Status, change.Entity.Status)
	}
}

func TestHandler_Remove(t *testing.T) {
	c := &collector{}
	h := stream.NewHandler("shop.orders", c.handle, nil)

	event := events.DynamoDBEvent{Records: []events.DynamoDBEventRecord{
		record("REMOVE", image("o-1", "PAID", "2"), nil),
	}}
	if err := h.HandleEvent(context.Background(), event); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	change := c.changes[0]
	if change.Kind != stream.Removed {
		t.Errorf("expected REMOVE, got %s", change.Kind)
	}
	if change.Entity != nil {
		t.Errorf("expected nil entity for removal, got %+v", change.Entity)
	}
	if change.Previous == nil || change.Previous.ID != "o-1" {
		t.Errorf("expected previous image, got %+v", change.Previous)
	}
}

func TestHandler_SkipsOtherTables(t *testing.T) {
	c := &collector{}
	h := stream.NewHandler("shop.orders", c.handle, nil)

	rec := record("INSERT", nil, image("c-1", "PENDING", "1"))
	rec.EventSourceArn = "arn:aws:dynamodb:eu-west-1:123456789012:table/shop.customers/stream/2024-03-01T00:00:00.000"
	if err := h.HandleEvent(context.Background(), events.DynamoDBEvent{Records: []events.DynamoDBEventRecord{rec}}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(c.changes) != 0 {
		t.Errorf("expected records of other tables to be skipped, got %d", len(c.changes))
	}
}

func TestHandler_SkipsUnknownEvents(t *testing.T) {
	c := &collector{}
	h := stream.NewHandler("shop.orders", c.handle, nil)

	rec := record("TTL", nil, image("o-1", "PENDING", "1"))
	if err := h.HandleEvent(context.Background(), events.DynamoDBEvent{Records: []events.DynamoDBEventRecord{rec}}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(c.changes) != 0 {
		t.Errorf("expected unknown events to be skipped, got %d", len(c.changes))
	}
}

func TestHandler_StopsAtFirstFailure(t *testing.T) {
	var buf bytes.Buffer
	c := &collector{err: errors.New("downstream unavailable")}
	h := stream.NewHandler("shop.orders", c.handle, slog.New(slog.NewTextHandler(&buf, nil)))

	event := events.DynamoDBEvent{Records: []events.DynamoDBEventRecord{
		record("INSERT", nil, image("o-1", "PENDING", "1")),
		record("MODIFY", image("o-1", "PENDING", "1"), image("o-1", "PAID", "1")),
	}}
	err := h.HandleEvent(context.Background(), event)
	if !errors.Is(err, c.err) {
		t.Fatalf("expected callback error, got %v", err)
	}
	if !bytes.Contains(buf.Bytes(), []byte("eventID=evt-INSERT")) {
		t.Errorf("expected failure to be logged with event id, got %s", buf.String())
	}
}

func TestHandler_DecodeError(t *testing.T) {
	c := &collector{}
	h := stream.NewHandler("shop.orders", c.handle, nil)

	bad := image("o-1", "PENDING", "1")
	bad["qty"] = events.NewStringAttribute("many")
	err := h.HandleEvent(context.Background(), events.DynamoDBEvent{Records: []events.DynamoDBEventRecord{
		record("INSERT", nil, bad),
	}})
	if err == nil {
		t.Fatal("expected decode error")
	}
	if len(c.changes) != 0 {
		t.Errorf("expected no changes, got %d", len(c.changes))
	}
}
