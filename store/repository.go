package store

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/jacentio/docstore/schema"
)

const (
	opGet     = "get"
	opUpsert  = "upsert"
	opInsert  = "insert"
	opDelete  = "delete"
	opFindOne = "find_one"
	opFind    = "find"
)

// Repository executes operations for one entity type. T is marshalled with
// attributevalue, so its dynamodbav tags must match the serialized names of
// the schema. A Repository is safe for concurrent use.
type Repository[T any] struct {
	client   *Client
	schema   *schema.Type
	resolver resolver
}

// NewRepository validates s and returns a repository bound to client. The
// client does not need to be open yet.
func NewRepository[T any](client *Client, s *schema.Type) (*Repository[T], error) {
	if err := schema.Validate(s); err != nil {
		return nil, err
	}
	return &Repository[T]{
		client:   client,
		schema:   s,
		resolver: resolver{name: s.Container()},
	}, nil
}

// MustRepository is like NewRepository but panics on an invalid schema.
func MustRepository[T any](client *Client, s *schema.Type) *Repository[T] {
	r, err := NewRepository[T](client, s)
	if err != nil {
		panic(err)
	}
	return r
}

// Schema returns the validated schema.
func (r *Repository[T]) Schema() *schema.Type { return r.schema }

// ContainerName returns the container name declared by the schema.
func (r *Repository[T]) ContainerName() string { return r.resolver.name }

// Container resolves the container, looking it up on first use.
func (r *Repository[T]) Container(ctx context.Context) (*Container, error) {
	db, err := r.client.Database()
	if err != nil {
		return nil, err
	}
	return r.resolver.resolve(ctx, db)
}

func (r *Repository[T]) begin(op string) *measurement {
	observer, cfg := r.client.observe()
	return newMeasurement(observer, cfg, op, r.resolver.name)
}

func (r *Repository[T]) target(ctx context.Context) (*Database, *Container, error) {
	db, err := r.client.Database()
	if err != nil {
		return nil, nil, err
	}
	c, err := r.resolver.resolve(ctx, db)
	if err != nil {
		return nil, nil, err
	}
	return db, c, nil
}

// Get returns the document with the given id, or nil when it does not exist.
func (r *Repository[T]) Get(ctx context.Context, id string) (_ *T, err error) {
	m := r.begin(opGet)
	defer m.finish(ctx, &err)

	if id == "" {
		return nil, fmt.Errorf("%w: id must not be empty", ErrInvalidArgument)
	}
	db, c, err := r.target(ctx)
	if err != nil {
		return nil, err
	}

	out, err := db.api.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:              aws.String(c.Table),
		Key:                    keyOf(id),
		ConsistentRead:         aws.Bool(true),
		ReturnConsumedCapacity: types.ReturnConsumedCapacityTotal,
	})
	if err != nil {
		return nil, classify(opGet, c.Name, err, KindOther)
	}
	m.charge(out.ConsumedCapacity)
	if out.Item == nil {
		return nil, nil
	}

	var entity T
	if err := attributevalue.UnmarshalMap(out.Item, &entity); err != nil {
		return nil, &StoreError{Op: opGet, Container: c.Name, Code: "Unmarshal", Err: err}
	}
	m.returned(1)
	return &entity, nil
}

// Upsert validates entity and writes it, replacing any document with the
// same id.
func (r *Repository[T]) Upsert(ctx context.Context, entity *T) (err error) {
	m := r.begin(opUpsert)
	defer m.finish(ctx, &err)
	return r.put(ctx, m, entity, "")
}

// Insert validates entity and writes it. It fails with a conflict
// *StoreError when a document with the same id exists.
func (r *Repository[T]) Insert(ctx context.Context, entity *T) (err error) {
	m := r.begin(opInsert)
	defer m.finish(ctx, &err)
	return r.put(ctx, m, entity, "attribute_not_exists(id)")
}

func (r *Repository[T]) put(ctx context.Context, m *measurement, entity *T, condition string) error {
	op := m.m.Operation
	if entity == nil {
		return fmt.Errorf("%w: entity must not be nil", ErrInvalidArgument)
	}
	item, err := attributevalue.MarshalMap(entity)
	if err != nil {
		return &ValidationError{Entity: r.schema.Name, Reason: err.Error()}
	}
	if err := validateDocument(r.schema, item); err != nil {
		return err
	}

	db, c, err := r.target(ctx)
	if err != nil {
		return err
	}
	input := &dynamodb.PutItemInput{
		TableName:              aws.String(c.Table),
		Item:                   item,
		ReturnValues:           types.ReturnValueAllOld,
		ReturnConsumedCapacity: types.ReturnConsumedCapacityTotal,
	}
	if condition != "" {
		input.ConditionExpression = aws.String(condition)
	}

	out, err := db.api.PutItem(ctx, input)
	if err != nil {
		return classify(op, c.Name, err, KindConflict)
	}
	m.charge(out.ConsumedCapacity)
	m.wrote(1)
	if len(out.Attributes) > 0 {
		db.logger.DebugContext(ctx, "docstore document replaced",
			"container", c.Name,
			"id", idOf(item),
			"previous_attributes", len(out.Attributes),
		)
	}
	return nil
}

// Delete removes the document with the given id. Deleting a missing document
// fails with a not-found *StoreError.
func (r *Repository[T]) Delete(ctx context.Context, id string) (err error) {
	m := r.begin(opDelete)
	defer m.finish(ctx, &err)

	if id == "" {
		return fmt.Errorf("%w: id must not be empty", ErrInvalidArgument)
	}
	db, c, err := r.target(ctx)
	if err != nil {
		return err
	}

	out, err := db.api.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName:              aws.String(c.Table),
		Key:                    keyOf(id),
		ConditionExpression:    aws.String("attribute_exists(id)"),
		ReturnValues:           types.ReturnValueAllOld,
		ReturnConsumedCapacity: types.ReturnConsumedCapacityTotal,
	})
	if err != nil {
		return classify(opDelete, c.Name, err, KindNotFound)
	}
	m.charge(out.ConsumedCapacity)
	m.wrote(1)
	return nil
}

// FindOne returns the single document matching q, or nil when none does.
func (r *Repository[T]) FindOne(ctx context.Context, q Query) (*T, error) {
	return FindOne[T](ctx, r, q)
}

// Find returns every document matching q in store order.
func (r *Repository[T]) Find(ctx context.Context, q Query) ([]T, error) {
	return Find[T](ctx, r, q)
}

// FindOne runs q against the container of r and decodes the single match
// into V. More than one match fails with *AmbiguousResultError.
func FindOne[V, T any](ctx context.Context, r *Repository[T], q Query) (_ *V, err error) {
	m := r.begin(opFindOne)
	defer m.finish(ctx, &err)

	results, err := scan[V](ctx, r, m, q)
	if err != nil {
		return nil, err
	}
	m.returned(len(results))
	switch len(results) {
	case 0:
		return nil, nil
	case 1:
		return &results[0], nil
	}
	return nil, &AmbiguousResultError{Container: r.resolver.name, Count: len(results)}
}

// Find runs q against the container of r and decodes every match into V.
// A result larger than the too-many-rows threshold is reported as a warning
// and still returned in full.
func Find[V, T any](ctx context.Context, r *Repository[T], q Query) (_ []V, err error) {
	m := r.begin(opFind)
	defer m.finish(ctx, &err)

	results, err := scan[V](ctx, r, m, q)
	if err != nil {
		return nil, err
	}
	m.returned(len(results))
	m.checkRows(ctx, len(results))
	return results, nil
}

// scan buffers every page of q.
func scan[V, T any](ctx context.Context, r *Repository[T], m *measurement, q Query) ([]V, error) {
	db, c, err := r.target(ctx)
	if err != nil {
		return nil, err
	}
	input, err := q.scanInput(c.Table)
	if err != nil {
		return nil, err
	}

	results := []V{}
	paginator := dynamodb.NewScanPaginator(db.api, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, classify(m.m.Operation, c.Name, err, KindOther)
		}
		m.charge(page.ConsumedCapacity)

		var decoded []V
		if err := attributevalue.UnmarshalListOfMaps(page.Items, &decoded); err != nil {
			return nil, &StoreError{Op: m.m.Operation, Container: c.Name, Code: "Unmarshal", Err: err}
		}
		results = append(results, decoded...)
	}
	return results, nil
}

func keyOf(id string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		schema.IDName: &types.AttributeValueMemberS{Value: id},
	}
}

func idOf(item map[string]types.AttributeValue) string {
	if s, ok := item[schema.IDName].(*types.AttributeValueMemberS); ok {
		return s.Value
	}
	return ""
}
