package store

import (
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// Param is a named query parameter. Names starting with ':' bind values;
// names starting with '#' bind attribute names and take a string value.
type Param struct {
	Name  string
	Value any
}

// Query is a filter expression and its parameters. The text is passed to
// the store verbatim. An empty Text matches every document.
type Query struct {
	Text   string
	Params []Param
}

// NewQuery returns a Query with params in the given order.
func NewQuery(text string, params ...Param) Query {
	return Query{Text: text, Params: params}
}

// Value binds a ':name' parameter.
func Value(name string, v any) Param {
	if !strings.HasPrefix(name, ":") {
		name = ":" + name
	}
	return Param{Name: name, Value: v}
}

// Name binds a '#name' parameter to an attribute name.
func Name(name, attribute string) Param {
	if !strings.HasPrefix(name, "#") {
		name = "#" + name
	}
	return Param{Name: name, Value: attribute}
}

// scanInput builds a consistent scan of table filtered by q.
func (q Query) scanInput(table string) (*dynamodb.ScanInput, error) {
	input := &dynamodb.ScanInput{
		TableName:              aws.String(table),
		ConsistentRead:         aws.Bool(true),
		ReturnConsumedCapacity: types.ReturnConsumedCapacityTotal,
	}
	if q.Text == "" {
		if len(q.Params) > 0 {
			return nil, fmt.Errorf("%w: parameters given without query text", ErrInvalidArgument)
		}
		return input, nil
	}
	input.FilterExpression = aws.String(q.Text)

	for _, p := range q.Params {
		switch {
		case strings.HasPrefix(p.Name, ":") && len(p.Name) > 1:
			av, err := attributevalue.Marshal(p.Value)
			if err != nil {
				return nil, fmt.Errorf("%w: parameter %s: %v", ErrInvalidArgument, p.Name, err)
			}
			if input.ExpressionAttributeValues == nil {
				input.ExpressionAttributeValues = make(map[string]types.AttributeValue)
			}
			if _, dup := input.ExpressionAttributeValues[p.Name]; dup {
				return nil, fmt.Errorf("%w: duplicate parameter %s", ErrInvalidArgument, p.Name)
			}
			input.ExpressionAttributeValues[p.Name] = av
		case strings.HasPrefix(p.Name, "#") && len(p.Name) > 1:
			attr, ok := p.Value.(string)
			if !ok || attr == "" {
				return nil, fmt.Errorf("%w: parameter %s must name an attribute", ErrInvalidArgument, p.Name)
			}
			if input.ExpressionAttributeNames == nil {
				input.ExpressionAttributeNames = make(map[string]string)
			}
			if _, dup := input.ExpressionAttributeNames[p.Name]; dup {
				return nil, fmt.Errorf("%w: duplicate parameter %s", ErrInvalidArgument, p.Name)
			}
			input.ExpressionAttributeNames[p.Name] = attr
		default:
			return nil, fmt.Errorf("%w: parameter name %q must start with ':' or '#'", ErrInvalidArgument, p.Name)
		}
	}
	return input, nil
}
