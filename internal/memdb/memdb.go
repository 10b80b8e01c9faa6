// Package memdb is an in-memory stand-in for the DynamoDB operations used by
// docstore. It supports hash-keyed tables, conditional writes on the key,
// paged scans and a small equality-only filter language.
package memdb

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// DefaultPageSize is the number of items returned per scan page.
const DefaultPageSize = 1000

// DB holds tables keyed by name. The zero value is not usable; use New.
type DB struct {
	// PageSize overrides DefaultPageSize when positive.
	PageSize int

	// Delay is slept before every request.
	Delay time.Duration

	mu     sync.Mutex
	tables map[string]*table
	calls  map[string]int
	fail   map[string]error
}

type table struct {
	name    string
	key     string
	items   []map[string]types.AttributeValue
	created time.Time
}

// New returns an empty DB.
func New() *DB {
	return &DB{
		tables: make(map[string]*table),
		calls:  make(map[string]int),
		fail:   make(map[string]error),
	}
}

// AddTable creates a table keyed by key, replacing any table with the same name.
func (db *DB) AddTable(name, key string) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.tables[name] = &table{name: name, key: key, created: time.Now()}
}

// Seed appends items to a table, bypassing conditions.
func (db *DB) Seed(name string, items ...map[string]types.AttributeValue) {
	db.mu.Lock()
	defer db.mu.Unlock()
	t := db.tables[name]
	t.items = append(t.items, items...)
}

// Len returns the number of items in a table.
func (db *DB) Len(name string) int {
	db.mu.Lock()
	defer db.mu.Unlock()
	if t, ok := db.tables[name]; ok {
		return len(t.items)
	}
	return 0
}

// Calls returns how many times op (e.g. "GetItem") was invoked.
func (db *DB) Calls(op string) int {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.calls[op]
}

// FailNext makes the next call of op return err.
func (db *DB) FailNext(op string, err error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.fail[op] = err
}

// enter records a call and returns the injected failure, if any. The caller
// holds no lock.
func (db *DB) enter(ctx context.Context, op string) error {
	if db.Delay > 0 {
		select {
		case <-time.After(db.Delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	db.mu.Lock()
	defer db.mu.Unlock()
	db.calls[op]++
	if err, ok := db.fail[op]; ok {
		delete(db.fail, op)
		return err
	}
	return nil
}

func (db *DB) table(name *string) (*table, error) {
	t, ok := db.tables[aws.ToString(name)]
	if !ok {
		return nil, &types.ResourceNotFoundException{Message: aws.String("Requested resource not found: Table: " + aws.ToString(name) + " not found")}
	}
	return t, nil
}

func (t *table) index(key map[string]types.AttributeValue) (int, error) {
	id, ok := key[t.key].(*types.AttributeValueMemberS)
	if !ok {
		return -1, fmt.Errorf("memdb: key attribute %s must be a string", t.key)
	}
	for i, item := range t.items {
		if s, ok := item[t.key].(*types.AttributeValueMemberS); ok && s.Value == id.Value {
			return i, nil
		}
	}
	return -1, nil
}

func (t *table) arn() string {
	return "arn:aws:dynamodb:local:000000000000:table/" + t.name
}

func capacity(name *string, units float64) *types.ConsumedCapacity {
	return &types.ConsumedCapacity{TableName: name, CapacityUnits: aws.Float64(units)}
}

func (db *DB) GetItem(ctx context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	if err := db.enter(ctx, "GetItem"); err != nil {
		return nil, err
	}
	db.mu.Lock()
	defer db.mu.Unlock()

	t, err := db.table(in.TableName)
	if err != nil {
		return nil, err
	}
	i, err := t.index(in.Key)
	if err != nil {
		return nil, err
	}
	out := &dynamodb.GetItemOutput{ConsumedCapacity: capacity(in.TableName, 1)}
	if i >= 0 {
		out.Item = copyItem(t.items[i])
	}
	return out, nil
}

func (db *DB) PutItem(ctx context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	if err := db.enter(ctx, "PutItem"); err != nil {
		return nil, err
	}
	db.mu.Lock()
	defer db.mu.Unlock()

	t, err := db.table(in.TableName)
	if err != nil {
		return nil, err
	}
	i, err := t.index(in.Item)
	if err != nil {
		return nil, err
	}
	if err := checkCondition(aws.ToString(in.ConditionExpression), t.key, i >= 0); err != nil {
		return nil, err
	}

	out := &dynamodb.PutItemOutput{ConsumedCapacity: capacity(in.TableName, 1)}
	item := copyItem(in.Item)
	if i >= 0 {
		if in.ReturnValues == types.ReturnValueAllOld {
			out.Attributes = t.items[i]
		}
		t.items[i] = item
	} else {
		t.items = append(t.items, item)
	}
	return out, nil
}

func (db *DB) DeleteItem(ctx context.Context, in *dynamodb.DeleteItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error) {
	if err := db.enter(ctx, "DeleteItem"); err != nil {
		return nil, err
	}
	db.mu.Lock()
	defer db.mu.Unlock()

	t, err := db.table(in.TableName)
	if err != nil {
		return nil, err
	}
	i, err := t.index(in.Key)
	if err != nil {
		return nil, err
	}
	if err := checkCondition(aws.ToString(in.ConditionExpression), t.key, i >= 0); err != nil {
		return nil, err
	}

	out := &dynamodb.DeleteItemOutput{ConsumedCapacity: capacity(in.TableName, 1)}
	if i >= 0 {
		if in.ReturnValues == types.ReturnValueAllOld {
			out.Attributes = t.items[i]
		}
		t.items = append(t.items[:i], t.items[i+1:]...)
	}
	return out, nil
}

func (db *DB) Scan(ctx context.Context, in *dynamodb.ScanInput, _ ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error) {
	if err := db.enter(ctx, "Scan"); err != nil {
		return nil, err
	}
	db.mu.Lock()
	defer db.mu.Unlock()

	t, err := db.table(in.TableName)
	if err != nil {
		return nil, err
	}
	match, err := compileFilter(aws.ToString(in.FilterExpression), in.ExpressionAttributeNames, in.ExpressionAttributeValues)
	if err != nil {
		return nil, err
	}

	start := 0
	if len(in.ExclusiveStartKey) > 0 {
		i, err := t.index(in.ExclusiveStartKey)
		if err != nil {
			return nil, err
		}
		start = i + 1
	}
	size := db.PageSize
	if size <= 0 {
		size = DefaultPageSize
	}
	end := min(start+size, len(t.items))

	out := &dynamodb.ScanOutput{ConsumedCapacity: capacity(in.TableName, 0.5)}
	for _, item := range t.items[start:end] {
		if match(item) {
			out.Items = append(out.Items, copyItem(item))
		}
	}
	out.Count = int32(len(out.Items))
	out.ScannedCount = int32(end - start)
	if end < len(t.items) {
		out.LastEvaluatedKey = map[string]types.AttributeValue{t.key: t.items[end-1][t.key]}
	}
	return out, nil
}

func (db *DB) DescribeTable(ctx context.Context, in *dynamodb.DescribeTableInput, _ ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error) {
	if err := db.enter(ctx, "DescribeTable"); err != nil {
		return nil, err
	}
	db.mu.Lock()
	defer db.mu.Unlock()

	t, err := db.table(in.TableName)
	if err != nil {
		return nil, err
	}
	return &dynamodb.DescribeTableOutput{
		Table: &types.TableDescription{
			TableName:        aws.String(t.name),
			TableArn:         aws.String(t.arn()),
			TableStatus:      types.TableStatusActive,
			CreationDateTime: aws.Time(t.created),
			ItemCount:        aws.Int64(int64(len(t.items))),
			KeySchema: []types.KeySchemaElement{
				{AttributeName: aws.String(t.key), KeyType: types.KeyTypeHash},
			},
		},
	}, nil
}

func (db *DB) CreateTable(ctx context.Context, in *dynamodb.CreateTableInput, _ ...func(*dynamodb.Options)) (*dynamodb.CreateTableOutput, error) {
	if err := db.enter(ctx, "CreateTable"); err != nil {
		return nil, err
	}
	db.mu.Lock()
	defer db.mu.Unlock()

	name := aws.ToString(in.TableName)
	if _, ok := db.tables[name]; ok {
		return nil, &types.ResourceInUseException{Message: aws.String("Table already exists: " + name)}
	}
	var key string
	for _, k := range in.KeySchema {
		if k.KeyType == types.KeyTypeHash {
			key = aws.ToString(k.AttributeName)
		}
	}
	if key == "" {
		return nil, fmt.Errorf("memdb: table %s has no hash key", name)
	}
	t := &table{name: name, key: key, created: time.Now()}
	db.tables[name] = t
	return &dynamodb.CreateTableOutput{
		TableDescription: &types.TableDescription{
			TableName:   aws.String(name),
			TableArn:    aws.String(t.arn()),
			TableStatus: types.TableStatusActive,
		},
	}, nil
}

// checkCondition supports attribute_exists and attribute_not_exists on the key.
func checkCondition(expr, key string, exists bool) error {
	switch expr {
	case "":
		return nil
	case "attribute_not_exists(" + key + ")":
		if exists {
			return &types.ConditionalCheckFailedException{Message: aws.String("The conditional request failed")}
		}
		return nil
	case "attribute_exists(" + key + ")":
		if !exists {
			return &types.ConditionalCheckFailedException{Message: aws.String("The conditional request failed")}
		}
		return nil
	}
	return fmt.Errorf("memdb: unsupported condition %q", expr)
}

// compileFilter supports "a = :v" clauses joined by AND, where a is an
// attribute name or a #name placeholder.
func compileFilter(expr string, names map[string]string, values map[string]types.AttributeValue) (func(map[string]types.AttributeValue) bool, error) {
	if strings.TrimSpace(expr) == "" {
		return func(map[string]types.AttributeValue) bool { return true }, nil
	}

	type clause struct {
		attr  string
		value types.AttributeValue
	}
	var clauses []clause
	for _, part := range strings.Split(expr, " AND ") {
		lhs, rhs, ok := strings.Cut(part, "=")
		if !ok {
			return nil, fmt.Errorf("memdb: unsupported filter %q", part)
		}
		attr := strings.TrimSpace(lhs)
		if strings.HasPrefix(attr, "#") {
			resolved, ok := names[attr]
			if !ok {
				return nil, fmt.Errorf("memdb: unbound name %s", attr)
			}
			attr = resolved
		}
		placeholder := strings.TrimSpace(rhs)
		v, ok := values[placeholder]
		if !ok {
			return nil, fmt.Errorf("memdb: unbound value %s", placeholder)
		}
		clauses = append(clauses, clause{attr: attr, value: v})
	}

	return func(item map[string]types.AttributeValue) bool {
		for _, c := range clauses {
			if !equal(item[c.attr], c.value) {
				return false
			}
		}
		return true
	}, nil
}

func equal(a, b types.AttributeValue) bool {
	switch av := a.(type) {
	case *types.AttributeValueMemberS:
		bv, ok := b.(*types.AttributeValueMemberS)
		return ok && av.Value == bv.Value
	case *types.AttributeValueMemberN:
		bv, ok := b.(*types.AttributeValueMemberN)
		if !ok {
			return false
		}
		x, errA := strconv.ParseFloat(av.Value, 64)
		y, errB := strconv.ParseFloat(bv.Value, 64)
		return errA == nil && errB == nil && x == y
	case *types.AttributeValueMemberBOOL:
		bv, ok := b.(*types.AttributeValueMemberBOOL)
		return ok && av.Value == bv.Value
	}
	return false
}

func copyItem(item map[string]types.AttributeValue) map[string]types.AttributeValue {
	out := make(map[string]types.AttributeValue, len(item))
	for k, v := range item {
		out[k] = v
	}
	return out
}
