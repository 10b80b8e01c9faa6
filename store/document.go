package store

import (
	"fmt"
	"slices"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/go-openapi/strfmt"

	"github.com/jacentio/docstore/schema"
)

// validateDocument checks a marshalled entity against its schema: required
// fields present and non-null, attribute types matching field kinds, enum
// values known, and no attributes outside the schema.
func validateDocument(s *schema.Type, item map[string]types.AttributeValue) error {
	id, ok := item[schema.IDName].(*types.AttributeValueMemberS)
	if !ok || id.Value == "" {
		return &ValidationError{Entity: s.Name, Path: schema.IDName, Reason: "id must be a non-empty string"}
	}
	return validateLevel(s.Name, s, item, "")
}

func validateLevel(entity string, t *schema.Type, item map[string]types.AttributeValue, prefix string) error {
	for _, f := range t.Fields {
		path := join(prefix, f.WireName())
		av, ok := item[f.WireName()]
		if !ok || isNull(av) {
			if f.Required {
				return &ValidationError{Entity: entity, Path: path, Reason: "required field is missing"}
			}
			continue
		}
		if err := validateValue(entity, f, av, path); err != nil {
			return err
		}
	}

	names := make([]string, 0, len(item))
	for name := range item {
		names = append(names, name)
	}
	slices.Sort(names)
	for _, name := range names {
		if t.Lookup(name) == nil {
			return &ValidationError{Entity: entity, Path: join(prefix, name), Reason: "attribute is not declared"}
		}
	}
	return nil
}

func validateValue(entity string, f *schema.Field, av types.AttributeValue, path string) error {
	fail := func(format string, args ...any) error {
		return &ValidationError{Entity: entity, Path: path, Reason: fmt.Sprintf(format, args...)}
	}

	switch f.Kind {
	case schema.KindText:
		if _, ok := av.(*types.AttributeValueMemberS); !ok {
			return fail("expected text, got %s", typeOf(av))
		}
	case schema.KindBool:
		if _, ok := av.(*types.AttributeValueMemberBOOL); !ok {
			return fail("expected bool, got %s", typeOf(av))
		}
	case schema.KindInt32, schema.KindInt64:
		n, ok := av.(*types.AttributeValueMemberN)
		if !ok {
			return fail("expected number, got %s", typeOf(av))
		}
		bits := 64
		if f.Kind == schema.KindInt32 {
			bits = 32
		}
		if _, err := strconv.ParseInt(n.Value, 10, bits); err != nil {
			return fail("%q is not a %s", n.Value, f.Kind)
		}
	case schema.KindFloat64:
		n, ok := av.(*types.AttributeValueMemberN)
		if !ok {
			return fail("expected number, got %s", typeOf(av))
		}
		if _, err := strconv.ParseFloat(n.Value, 64); err != nil {
			return fail("%q is not a float64", n.Value)
		}
	case schema.KindTimestamp:
		s, ok := av.(*types.AttributeValueMemberS)
		if !ok {
			return fail("expected timestamp, got %s", typeOf(av))
		}
		if _, err := strfmt.ParseDateTime(s.Value); err != nil || s.Value == "" {
			return fail("%q is not an ISO-8601 timestamp", s.Value)
		}
	case schema.KindEnum:
		s, ok := av.(*types.AttributeValueMemberS)
		if !ok {
			return fail("expected enum, got %s", typeOf(av))
		}
		if !f.Enum.Has(s.Value) {
			return fail("%q is not a value of %s", s.Value, f.Enum.Name)
		}
	case schema.KindComposite:
		m, ok := av.(*types.AttributeValueMemberM)
		if !ok {
			return fail("expected map, got %s", typeOf(av))
		}
		return validateLevel(entity, f.Nested, m.Value, path)
	case schema.KindList:
		l, ok := av.(*types.AttributeValueMemberL)
		if !ok {
			return fail("expected list, got %s", typeOf(av))
		}
		for i, elem := range l.Value {
			if err := validateValue(entity, f.Elem, elem, fmt.Sprintf("%s[%d]", path, i)); err != nil {
				return err
			}
		}
	default:
		return fail("unsupported kind %s", f.Kind)
	}
	return nil
}

func isNull(av types.AttributeValue) bool {
	n, ok := av.(*types.AttributeValueMemberNULL)
	return ok && n.Value
}

func typeOf(av types.AttributeValue) string {
	switch av.(type) {
	case *types.AttributeValueMemberS:
		return "S"
	case *types.AttributeValueMemberN:
		return "N"
	case *types.AttributeValueMemberB:
		return "B"
	case *types.AttributeValueMemberBOOL:
		return "BOOL"
	case *types.AttributeValueMemberNULL:
		return "NULL"
	case *types.AttributeValueMemberM:
		return "M"
	case *types.AttributeValueMemberL:
		return "L"
	case *types.AttributeValueMemberSS:
		return "SS"
	case *types.AttributeValueMemberNS:
		return "NS"
	case *types.AttributeValueMemberBS:
		return "BS"
	}
	return "unknown"
}

func join(prefix, name string) string {
	if prefix == "" {
		return name
	}
	return prefix + "." + name
}
