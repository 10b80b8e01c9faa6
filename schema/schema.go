// Package schema describes entity types stored by docstore and validates those
// descriptions before any traffic reaches the store.
package schema

// Kind identifies the wire shape of a field.
type Kind int

const (
	KindInvalid Kind = iota
	KindText
	KindBool
	KindInt32
	KindInt64
	KindFloat64
	KindTimestamp
	KindComposite
	KindEnum
	KindList

	// The kinds below are representable in a descriptor but not storable.
	// Validate rejects them with ErrUnsupportedFieldType.
	KindBytes
	KindMap
	KindAny
)

var kindNames = map[Kind]string{
	KindInvalid:   "invalid",
	KindText:      "text",
	KindBool:      "bool",
	KindInt32:     "int32",
	KindInt64:     "int64",
	KindFloat64:   "float64",
	KindTimestamp: "timestamp",
	KindComposite: "composite",
	KindEnum:      "enum",
	KindList:      "list",
	KindBytes:     "bytes",
	KindMap:       "map",
	KindAny:       "any",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "unknown"
}

// allowedLeaf reports whether k is one of the storable leaf kinds.
func (k Kind) allowedLeaf() bool {
	switch k {
	case KindText, KindBool, KindInt32, KindInt64, KindFloat64, KindTimestamp:
		return true
	}
	return false
}

// Entity marks a root type as storable and binds it to a container.
type Entity struct {
	// Container is the logical container (table) name.
	Container string
}

// Type is a structural description of a record: the entity root or a nested
// composite.
type Type struct {
	// Name is used in error paths and log lines.
	Name string

	// Entity is required on the root type and ignored on nested types.
	Entity *Entity

	// Fields in declaration order. Validation reports the first defect in
	// this order.
	Fields []*Field
}

// Field describes one attribute of a Type.
type Field struct {
	// Name is the descriptor-level field name. The identifier field must be
	// named "id".
	Name string

	// Serialized is the attribute name on the wire.
	Serialized string

	Kind Kind

	// ID marks the identifier (partition key) field.
	ID bool

	// Required fields must be present and non-null in every stored document.
	Required bool

	// Nested describes a KindComposite field.
	Nested *Type

	// Enum describes a KindEnum field.
	Enum *Enum

	// Elem describes the element of a KindList field.
	Elem *Field
}

// Enum describes an enumeration and the wire value of each variant.
type Enum struct {
	Name   string
	Values []EnumValue
}

// EnumValue is one variant of an Enum.
type EnumValue struct {
	Name       string
	Serialized string
}

// FieldOption customises a field added through the builder.
type FieldOption func(*Field)

// Required marks a field as required.
func Required() FieldOption {
	return func(f *Field) { f.Required = true }
}

// AsID marks a field as the identifier. Prefer Type.ID for the common case.
func AsID() FieldOption {
	return func(f *Field) { f.ID = true }
}

// NewEntity starts the descriptor of a root entity stored in container.
func NewEntity(name, container string) *Type {
	return &Type{Name: name, Entity: &Entity{Container: container}}
}

// NewType starts the descriptor of a nested composite.
func NewType(name string) *Type {
	return &Type{Name: name}
}

// NewEnum starts an enumeration descriptor.
func NewEnum(name string) *Enum {
	return &Enum{Name: name}
}

// Value appends a variant.
func (e *Enum) Value(name, serialized string) *Enum {
	e.Values = append(e.Values, EnumValue{Name: name, Serialized: serialized})
	return e
}

// Has reports whether serialized is the wire value of one of the variants.
func (e *Enum) Has(serialized string) bool {
	for _, v := range e.Values {
		if v.Serialized == serialized {
			return true
		}
	}
	return false
}

// ID appends the identifier field: text, named and serialized as "id".
func (t *Type) ID() *Type {
	return t.Field(&Field{Name: IDName, Serialized: IDName, Kind: KindText, ID: true, Required: true})
}

// Field appends a fully specified field.
func (t *Type) Field(f *Field) *Type {
	t.Fields = append(t.Fields, f)
	return t
}

func (t *Type) add(name, serialized string, kind Kind, opts []FieldOption) *Field {
	f := &Field{Name: name, Serialized: serialized, Kind: kind}
	for _, opt := range opts {
		opt(f)
	}
	t.Fields = append(t.Fields, f)
	return f
}

func (t *Type) Text(name, serialized string, opts ...FieldOption) *Type {
	t.add(name, serialized, KindText, opts)
	return t
}

func (t *Type) Bool(name, serialized string, opts ...FieldOption) *Type {
	t.add(name, serialized, KindBool, opts)
	return t
}

func (t *Type) Int32(name, serialized string, opts ...FieldOption) *Type {
	t.add(name, serialized, KindInt32, opts)
	return t
}

func (t *Type) Int64(name, serialized string, opts ...FieldOption) *Type {
	t.add(name, serialized, KindInt64, opts)
	return t
}

func (t *Type) Float64(name, serialized string, opts ...FieldOption) *Type {
	t.add(name, serialized, KindFloat64, opts)
	return t
}

func (t *Type) Timestamp(name, serialized string, opts ...FieldOption) *Type {
	t.add(name, serialized, KindTimestamp, opts)
	return t
}

// Composite appends a nested structure described by nested.
func (t *Type) Composite(name, serialized string, nested *Type, opts ...FieldOption) *Type {
	t.add(name, serialized, KindComposite, opts).Nested = nested
	return t
}

// EnumField appends an enumeration-valued field.
func (t *Type) EnumField(name, serialized string, e *Enum, opts ...FieldOption) *Type {
	t.add(name, serialized, KindEnum, opts).Enum = e
	return t
}

// List appends a list field whose elements are described by elem.
func (t *Type) List(name, serialized string, elem *Field, opts ...FieldOption) *Type {
	t.add(name, serialized, KindList, opts).Elem = elem
	return t
}

// Of describes a list element of a leaf kind.
func Of(kind Kind) *Field {
	return &Field{Kind: kind}
}

// OfComposite describes a list element that is a nested structure.
func OfComposite(nested *Type) *Field {
	return &Field{Kind: KindComposite, Nested: nested}
}

// OfEnum describes a list element that is an enumeration.
func OfEnum(e *Enum) *Field {
	return &Field{Kind: KindEnum, Enum: e}
}

// IDName is the descriptor and wire name of the identifier field.
const IDName = "id"

// Container returns the container bound by the entity marker, or "" for
// nested types.
func (t *Type) Container() string {
	if t.Entity == nil {
		return ""
	}
	return t.Entity.Container
}

// IDField returns the top-level identifier field, or nil.
func (t *Type) IDField() *Field {
	for _, f := range t.Fields {
		if f.ID {
			return f
		}
	}
	return nil
}

// WireName returns the attribute name f is stored under. The identifier is
// always stored as IDName.
func (f *Field) WireName() string {
	if f.ID {
		return IDName
	}
	return f.Serialized
}

// Lookup returns the field stored as name at this level, or nil.
func (t *Type) Lookup(name string) *Field {
	for _, f := range t.Fields {
		if f.WireName() == name {
			return f
		}
	}
	return nil
}
