// Copyright 2024 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package sqlrecord

import (
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"

	"github.com/canonical/sqlrecord/internal/typeinfo"
)

// Schema describes how a model maps onto the database.
type Schema struct {
	// Name is the model name. It derives the default table, foreign key
	// and pivot table names.
	Name string
	// Table defaults to the lower-cased Name followed by "s".
	Table string
	// PrimaryKey defaults to "id".
	PrimaryKey string
	// Fillable lists the columns that mass assignment may set. An empty
	// list allows every column.
	Fillable []string
}

// TableName returns the table of the model.
func (s Schema) TableName() string {
	if s.Table != "" {
		return s.Table
	}
	return strings.ToLower(s.Name) + "s"
}

// Key returns the primary key column.
func (s Schema) Key() string {
	if s.PrimaryKey != "" {
		return s.PrimaryKey
	}
	return "id"
}

// ForeignKey returns the column other tables use to reference the model.
func (s Schema) ForeignKey() string {
	return strings.ToLower(s.Name) + "_id"
}

// IsFillable reports whether mass assignment may set column.
func (s Schema) IsFillable(column string) bool {
	if len(s.Fillable) == 0 {
		return true
	}
	for _, f := range s.Fillable {
		if f == column {
			return true
		}
	}
	return false
}

// Model is implemented by structs that embed [Record] and declare a
// [Schema]. Columns are the struct fields tagged with `db:"column"`.
//
//	type User struct {
//		sqlrecord.Record
//		ID   int64  `db:"id"`
//		Name string `db:"name"`
//	}
//
//	func (User) Schema() sqlrecord.Schema {
//		return sqlrecord.Schema{Name: "User", Fillable: []string{"name"}}
//	}
type Model interface {
	Schema() Schema
	record() *Record
}

// ModelPtr constrains type parameters to pointers to model structs.
type ModelPtr[T any] interface {
	*T
	Model
}

// RelationState tells whether a relation has been resolved.
type RelationState int

const (
	NotLoaded RelationState = iota
	// Loaded relations hold a model or a slice of models.
	Loaded
	// Absent relations were resolved and found nothing.
	Absent
)

// Relation is an entry of the relation cache of a model.
type Relation struct {
	State RelationState
	Value any
}

// Record holds the state sqlrecord keeps for a model instance: the
// attribute snapshot used for dirty tracking and the relation cache.
type Record struct {
	original  M
	relations map[string]Relation
}

func (r *Record) record() *Record {
	return r
}

// Relation returns the cache entry of the named relation.
func (r *Record) Relation(name string) Relation {
	return r.relations[name]
}

// SetRelation stores value as the resolved named relation. A nil model
// marks the relation absent.
func (r *Record) SetRelation(name string, value any) {
	if r.relations == nil {
		r.relations = make(map[string]Relation)
	}
	if isNil(value) {
		r.relations[name] = Relation{State: Absent}
		return
	}
	r.relations[name] = Relation{State: Loaded, Value: value}
}

// ForgetRelation drops the named relation from the cache so that it is
// resolved again on next access.
func (r *Record) ForgetRelation(name string) {
	delete(r.relations, name)
}

// loadedRelations returns the resolved relation names.
func (r *Record) loadedRelations() []string {
	names := make([]string, 0, len(r.relations))
	for name, rel := range r.relations {
		if rel.State != NotLoaded {
			names = append(names, name)
		}
	}
	return names
}

func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface:
		return rv.IsNil()
	}
	return false
}

// infoOf returns the column information of the model struct. Invalid tags
// are a programming error.
func infoOf(m Model) *typeinfo.Info {
	info, err := typeinfo.GetTypeInfo(m)
	if err != nil {
		panic(fmt.Sprintf("sqlrecord: model %T: %s", m, err))
	}
	return info
}

// New returns a model filled with the fillable entries of attrs. The
// model is new: it has no primary key until saved.
func New[T any, PT ModelPtr[T]](attrs M) (PT, error) {
	m := PT(new(T))
	if err := Fill(m, attrs); err != nil {
		return nil, err
	}
	snapshot(m)
	return m, nil
}

// Fill sets the model fields of the fillable entries of attrs. Other
// entries are ignored. Values are converted to the field types where
// possible, so "42" fills an int field.
func Fill(m Model, attrs M) error {
	schema := m.Schema()
	allowed := make(M, len(attrs))
	for column, value := range attrs {
		if schema.IsFillable(column) {
			allowed[column] = value
		}
	}
	return decode(allowed, m)
}

// hydrate fills the model from a database row. Fillable restrictions do
// not apply.
func hydrate(m Model, row M) error {
	if err := decode(row, m); err != nil {
		return err
	}
	snapshot(m)
	return nil
}

// decode copies input onto the tagged fields of the struct m points to.
func decode(input M, m any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "db",
		WeaklyTypedInput: true,
		ZeroFields:       true,
		Result:           m,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			bytesToStringHook,
			mapstructure.StringToTimeHookFunc(time.RFC3339),
		),
	})
	if err != nil {
		return errors.Wrap(err, "cannot build decoder")
	}
	if err := decoder.Decode(map[string]any(input)); err != nil {
		return errors.Wrapf(err, "cannot decode attributes into %T", m)
	}
	return nil
}

func bytesToStringHook(from reflect.Type, to reflect.Type, data any) (any, error) {
	if bs, ok := data.([]byte); ok && to.Kind() != reflect.Slice {
		return string(bs), nil
	}
	return data, nil
}

// Attributes returns the column values of the model in a new map. The
// primary key is left out while it is unset, as are omitempty columns
// holding their zero value.
func Attributes(m Model) M {
	info := infoOf(m)
	columns, values := info.Values(reflect.ValueOf(m))
	pk := m.Schema().Key()
	v := reflect.ValueOf(m)
	attrs := make(M, len(columns))
	for i, column := range columns {
		if column == pk && info.IsZero(v, pk) {
			continue
		}
		attrs[column] = values[i]
	}
	return attrs
}

// Original returns the attributes as they were when the model was last
// loaded or saved. Pointer fields are dereferenced.
func Original(m Model) M {
	original := make(M, len(m.record().original))
	for k, v := range m.record().original {
		original[k] = v
	}
	return original
}

// Dirty returns the attributes that differ from the snapshot or are
// missing from it. An omitempty column reset to its zero value is dirty
// with that value. The primary key is never dirty.
func Dirty(m Model) M {
	original := m.record().original
	pk := m.Schema().Key()
	attrs := Attributes(m)
	dirty := M{}
	for column, value := range attrs {
		if column == pk {
			continue
		}
		if prev, ok := original[column]; !ok || !reflect.DeepEqual(prev, indirect(value)) {
			dirty[column] = value
		}
	}

	info := infoOf(m)
	v := reflect.ValueOf(m)
	for column := range original {
		if _, ok := attrs[column]; ok || column == pk {
			continue
		}
		if value, ok := info.Value(v, column); ok {
			dirty[column] = value
		}
	}
	return dirty
}

// IsDirty reports whether the model has unsaved changes.
func IsDirty(m Model) bool {
	return len(Dirty(m)) > 0
}

// IsNew reports whether the model has no primary key value.
func IsNew(m Model) bool {
	return infoOf(m).IsZero(reflect.ValueOf(m), m.Schema().Key())
}

// PrimaryKeyValue returns the primary key of the model, or nil when it is
// unset.
func PrimaryKeyValue(m Model) any {
	return columnValue(m, m.Schema().Key())
}

// columnValue returns the dereferenced value of a model column, or nil when it
// is unset.
func columnValue(m Model, name string) any {
	info := infoOf(m)
	v := reflect.ValueOf(m)
	if info.IsZero(v, name) {
		return nil
	}
	value, _ := info.Value(v, name)
	return indirect(value)
}

func indirect(v any) any {
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return nil
		}
		rv = rv.Elem()
	}
	if !rv.IsValid() {
		return nil
	}
	return rv.Interface()
}

// snapshot records the current attributes as the original ones. Values
// are dereferenced so that later writes through a field pointer show up
// as changes.
func snapshot(m Model) {
	attrs := Attributes(m)
	for column, value := range attrs {
		attrs[column] = indirect(value)
	}
	m.record().original = attrs
}
