package typeinfo

import (
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"sync"
)

var cacheMutex sync.RWMutex
var cache = make(map[reflect.Type]*Info)

// GetTypeInfo will return the Info of a given type,
// generating and caching as required.
func GetTypeInfo(value any) (*Info, error) {
	if value == (any)(nil) {
		return &Info{}, fmt.Errorf("cannot reflect nil value")
	}

	v := reflect.ValueOf(value)
	v = reflect.Indirect(v)
	if !v.IsValid() {
		return &Info{}, fmt.Errorf("cannot reflect nil pointer")
	}
	return TypeInfoOf(v.Type())
}

// TypeInfoOf returns the Info of struct type t.
func TypeInfoOf(t reflect.Type) (*Info, error) {
	cacheMutex.RLock()
	info, found := cache[t]
	cacheMutex.RUnlock()
	if found {
		return info, nil
	}

	info, err := generate(t)
	if err != nil {
		return &Info{}, err
	}

	cacheMutex.Lock()
	cache[t] = info
	cacheMutex.Unlock()

	return info, nil
}

// generate produces and returns reflection information for the input
// reflect.Type that is specifically required for sqlrecord operation.
func generate(typ reflect.Type) (*Info, error) {
	// Reflection information is only generated for structs.
	if typ.Kind() != reflect.Struct {
		return &Info{}, fmt.Errorf("can only reflect struct type")
	}

	info := Info{
		TagToField: make(map[string]Field),
		FieldToTag: make(map[string]string),
		Type:       typ,
	}

	for i := 0; i < typ.NumField(); i++ {
		field := typ.Field(i)
		// Fields without a "db" tag are outside of sqlrecord's remit. This
		// includes the embedded record state and relation caches.
		tag := field.Tag.Get("db")
		if tag == "" || tag == "-" {
			continue
		}
		if !field.IsExported() {
			return &Info{}, fmt.Errorf("field %q with 'db' tag is not exported", field.Name)
		}
		tag, omitEmpty, err := parseTag(tag)
		if err != nil {
			return &Info{}, err
		}
		if _, ok := info.TagToField[tag]; ok {
			return &Info{}, fmt.Errorf("duplicate column %q in 'db' tags", tag)
		}
		f := Field{
			Name:      field.Name,
			Tag:       tag,
			Index:     i,
			OmitEmpty: omitEmpty,
			Type:      field.Type,
		}
		info.TagToField[tag] = f
		info.FieldToTag[field.Name] = tag
		info.Fields = append(info.Fields, f)
	}

	return &info, nil
}

// This expression should stay a plain SQL identifier so that tags can be
// written into SQL text unquoted.
var validColNameRx = regexp.MustCompile(`^([a-zA-Z_])+([a-zA-Z_0-9])*$`)

// parseTag parses the input tag string and returns its
// name and whether it contains the "omitempty" option.
func parseTag(tag string) (string, bool, error) {
	options := strings.Split(tag, ",")

	var omitEmpty bool
	// Refuse to parse if there are more than 2 items.
	if len(options) > 2 {
		return "", false, fmt.Errorf("too many options in 'db' tag")
	}
	if len(options) == 2 {
		if strings.ToLower(options[1]) != "omitempty" {
			return "", false, fmt.Errorf("unexpected tag value %q", options[1])
		}
		omitEmpty = true
	}

	name := options[0]
	if len(name) == 0 {
		return "", false, fmt.Errorf("empty db tag")
	}

	if !validColNameRx.MatchString(name) {
		return "", false, fmt.Errorf("invalid column name in 'db' tag")
	}

	return name, omitEmpty, nil
}
