package schema

import "fmt"

// visitor receives callbacks from traverse in depth-first, declaration order.
// Returning an error stops the traversal.
type visitor interface {
	visitType(t *Type, path string, depth int) error
	visitField(f *Field, parent, level string, depth int) error
	visitEnum(e *Enum, path string) error
}

// Validate walks the descriptor once and returns the first structural defect
// as a *Error, or nil when t can be registered.
func Validate(t *Type) error {
	if t == nil {
		return &Error{Code: ErrMissingEntityMarker, Detail: "type is nil"}
	}
	v := &entityValidator{root: t, names: make(map[string]map[string]struct{})}
	w := &walker{v: v, root: t, active: make(map[*Type]bool)}
	if err := w.traverse(t, t.Name, t.Name, 0); err != nil {
		return err
	}
	if v.id == nil {
		return v.fail(ErrMissingIdentifier, t.Name, "")
	}
	return nil
}

// MustValidate panics if t is not a valid entity schema. Intended for
// registration during process startup, where a bad schema is fatal.
func MustValidate(t *Type) *Type {
	if err := Validate(t); err != nil {
		panic(err)
	}
	return t
}

// walker drives a visitor over a type tree and enforces field shape.
type walker struct {
	v      visitor
	root   *Type
	active map[*Type]bool
}

// traverse visits t. path names fields by descriptor name for errors; level
// names them by wire name and keys the serialized-name uniqueness check.
func (w *walker) traverse(t *Type, path, level string, depth int) error {
	if w.active[t] {
		return w.fail(ErrUnsupportedFieldType, path, fmt.Sprintf("recursive composite %s", t.Name))
	}
	w.active[t] = true
	defer delete(w.active, t)

	if err := w.v.visitType(t, path, depth); err != nil {
		return err
	}
	for _, f := range t.Fields {
		if err := w.v.visitField(f, path, level, depth); err != nil {
			return err
		}
		if err := w.value(f, path+"."+f.Name, level+"."+f.WireName(), depth); err != nil {
			return err
		}
	}
	return nil
}

// value checks the shape of a field or list element and descends into it.
func (w *walker) value(f *Field, path, level string, depth int) error {
	switch f.Kind {
	case KindComposite:
		if f.Nested == nil {
			return w.fail(ErrUnsupportedFieldType, path, "composite field without nested type")
		}
		return w.traverse(f.Nested, path, level, depth+1)
	case KindEnum:
		if f.Enum == nil {
			return w.fail(ErrUnsupportedFieldType, path, "enum field without enum")
		}
		return w.v.visitEnum(f.Enum, path)
	case KindList:
		if f.Elem == nil {
			return w.fail(ErrUnsupportedFieldType, path, "list field without element")
		}
		if f.Elem.ID {
			return w.fail(ErrNestedIdentifierNotAllowed, path+"[]", "")
		}
		return w.value(f.Elem, path+"[]", level+"[]", depth)
	}
	if !f.Kind.allowedLeaf() {
		return w.fail(ErrUnsupportedFieldType, path, "kind="+f.Kind.String())
	}
	return nil
}

func (w *walker) fail(code error, path, detail string) error {
	return &Error{Code: code, Type: w.root.Name, Path: path, Detail: detail}
}

// entityValidator is the only visitor: it enforces the entity marker,
// identifier and naming rules.
type entityValidator struct {
	root  *Type
	id    *Field
	idAt  string
	names map[string]map[string]struct{}
}

func (v *entityValidator) visitType(t *Type, path string, depth int) error {
	if depth == 0 && (t.Entity == nil || t.Entity.Container == "") {
		return v.fail(ErrMissingEntityMarker, path, "")
	}
	return nil
}

func (v *entityValidator) visitField(f *Field, parent, level string, depth int) error {
	path := parent + "." + f.Name
	if f.ID {
		if err := v.validateID(f, path, depth); err != nil {
			return err
		}
		return v.claim(level, IDName, path)
	}
	if f.Serialized == "" {
		return v.fail(ErrMissingSerializedName, path, "")
	}
	return v.claim(level, f.Serialized, path)
}

func (v *entityValidator) visitEnum(e *Enum, path string) error {
	seen := make(map[string]struct{}, len(e.Values))
	for _, value := range e.Values {
		if _, ok := seen[value.Name]; ok {
			return v.fail(ErrDuplicateEnumValue, path, fmt.Sprintf("enum=%s, value=%s", e.Name, value.Name))
		}
		seen[value.Name] = struct{}{}
		if value.Serialized == "" {
			return v.fail(ErrMissingEnumSerializedName, path, fmt.Sprintf("enum=%s, value=%s", e.Name, value.Name))
		}
	}
	return nil
}

func (v *entityValidator) validateID(f *Field, path string, depth int) error {
	if depth > 0 {
		return v.fail(ErrNestedIdentifierNotAllowed, path, "")
	}
	if v.id != nil {
		return v.fail(ErrDuplicateIdentifier, path, "previous="+v.idAt)
	}
	if f.Kind != KindText || f.Name != IDName {
		return v.fail(ErrInvalidIdentifier, path, "kind="+f.Kind.String())
	}
	if f.Serialized != "" && f.Serialized != IDName {
		return v.fail(ErrInvalidIdentifier, path, "serialized="+f.Serialized)
	}
	v.id = f
	v.idAt = path
	return nil
}

// claim records a wire name for one nesting level.
func (v *entityValidator) claim(level, name, path string) error {
	names, ok := v.names[level]
	if !ok {
		names = make(map[string]struct{})
		v.names[level] = names
	}
	if _, dup := names[name]; dup {
		return v.fail(ErrDuplicateSerializedName, path, "serialized="+name)
	}
	names[name] = struct{}{}
	return nil
}

func (v *entityValidator) fail(code error, path, detail string) error {
	return &Error{Code: code, Type: v.root.Name, Path: path, Detail: detail}
}
