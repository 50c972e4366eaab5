// Copyright 2024 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package sqlrecord

import (
	"encoding/json"
	"reflect"

	"github.com/pkg/errors"
	"github.com/vmihailenco/msgpack/v5"
)

// ToArray returns the attributes of m together with its resolved
// relations, converted recursively. Absent relations are nil.
func ToArray(m Model) M {
	out := Attributes(m)
	r := m.record()
	for _, name := range r.loadedRelations() {
		rel := r.relations[name]
		if rel.State == Absent {
			out[name] = nil
			continue
		}
		out[name] = serializeRelation(rel.Value)
	}
	return out
}

func serializeRelation(v any) any {
	if m, ok := v.(Model); ok {
		return ToArray(m)
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice {
		return v
	}
	list := make([]any, rv.Len())
	for i := range list {
		list[i] = serializeRelation(rv.Index(i).Interface())
	}
	return list
}

// ToJSON encodes [ToArray] of m as JSON.
func ToJSON(m Model) ([]byte, error) {
	data, err := json.Marshal(ToArray(m))
	if err != nil {
		return nil, errors.Wrapf(err, "cannot encode %s as JSON", m.Schema().Name)
	}
	return data, nil
}

// ToMsgpack encodes [ToArray] of m as MessagePack.
func ToMsgpack(m Model) ([]byte, error) {
	data, err := msgpack.Marshal(ToArray(m))
	if err != nil {
		return nil, errors.Wrapf(err, "cannot encode %s as msgpack", m.Schema().Name)
	}
	return data, nil
}
