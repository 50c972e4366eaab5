package typeinfo

import (
	"reflect"
)

// Field represents a single field from a struct type.
type Field struct {
	Type reflect.Type

	// Name is the name of the struct field.
	Name string

	// Tag is the column name from the field's "db" tag.
	Tag string

	// Index of this field in the structure.
	Index int

	// OmitEmpty is true when "omitempty" is
	// a property of the field's "db" tag.
	OmitEmpty bool
}

// Info represents reflected information about a struct type.
type Info struct {
	Type reflect.Type

	// Fields lists the tagged fields in declaration order.
	Fields []Field

	// Relate tag names to fields.
	TagToField map[string]Field

	// Relate field names to tags.
	FieldToTag map[string]string
}

// Columns returns the column names in declaration order.
func (info *Info) Columns() []string {
	cols := make([]string, len(info.Fields))
	for i, f := range info.Fields {
		cols[i] = f.Tag
	}
	return cols
}

// Values returns the value of every tagged field of the struct v, in
// declaration order. Fields marked omitempty holding their zero value are
// left out.
func (info *Info) Values(v reflect.Value) (columns []string, values []any) {
	v = reflect.Indirect(v)
	for _, f := range info.Fields {
		fv := v.Field(f.Index)
		if f.OmitEmpty && fv.IsZero() {
			continue
		}
		columns = append(columns, f.Tag)
		values = append(values, fv.Interface())
	}
	return columns, values
}

// Value returns the value of the field tagged column in the struct v.
func (info *Info) Value(v reflect.Value, column string) (any, bool) {
	f, ok := info.TagToField[column]
	if !ok {
		return nil, false
	}
	return reflect.Indirect(v).Field(f.Index).Interface(), true
}

// IsZero reports whether the field tagged column in the struct v is unset:
// missing, nil or holding its zero value.
func (info *Info) IsZero(v reflect.Value, column string) bool {
	f, ok := info.TagToField[column]
	if !ok {
		return true
	}
	return reflect.Indirect(v).Field(f.Index).IsZero()
}
