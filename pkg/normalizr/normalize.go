package normalizr

import (
	"fmt"
	"strconv"
)

// Normalize flattens value according to schema. It returns the entity table
// and the reference skeleton, which has the shape of value with every entity
// replaced by its id.
//
// value is expected to be the result of decoding JSON into an any (objects
// as map[string]any, arrays as []any). It is not modified.
func Normalize(value any, schema Schema) (Table, any, error) {
	n := &normalizer{table: Table{}}
	skeleton, err := n.visit(value, schema, "$")
	if err != nil {
		return nil, nil, err
	}
	return n.table, skeleton, nil
}

type normalizer struct {
	table Table
}

func (n *normalizer) visit(value any, schema Schema, path string) (any, error) {
	switch s := schema.(type) {
	case *Entity:
		return n.entity(value, s, path)
	case List:
		return n.list(value, s, path)
	case Object:
		if value == nil {
			return nil, nil
		}
		obj, ok := value.(map[string]any)
		if !ok {
			return nil, mismatch(path, "expected object, got %s", kind(value))
		}
		return n.fields(obj, s.Fields, path)
	case Value, nil:
		return value, nil
	default:
		return nil, fmt.Errorf("normalizr: unknown schema type %T", schema)
	}
}

func (n *normalizer) entity(value any, e *Entity, path string) (any, error) {
	if value == nil {
		return nil, nil
	}
	obj, ok := value.(map[string]any)
	if !ok {
		return nil, mismatch(path, "expected %s object, got %s", e.Key, kind(value))
	}

	rec, err := n.fields(obj, e.Definition, path)
	if err != nil {
		return nil, err
	}

	id := obj["id"]
	key, err := IDKey(id)
	if err != nil {
		return nil, mismatch(path, "%s: %v", e.Key, err)
	}
	n.table.put(e.Key, key, rec)
	return id, nil
}

func (n *normalizer) list(value any, l List, path string) (any, error) {
	if value == nil {
		return nil, nil
	}
	arr, ok := value.([]any)
	if !ok {
		return nil, mismatch(path, "expected array, got %s", kind(value))
	}
	out := make([]any, len(arr))
	for i, el := range arr {
		sk, err := n.visit(el, l.Of, path+"["+strconv.Itoa(i)+"]")
		if err != nil {
			return nil, err
		}
		out[i] = sk
	}
	return out, nil
}

// fields copies obj and normalizes every declared child that is present.
func (n *normalizer) fields(obj map[string]any, def Definition, path string) (Record, error) {
	rec := make(Record, len(obj))
	for k, v := range obj {
		rec[k] = v
	}
	for field, sub := range def {
		child, present := obj[field]
		if !present {
			continue
		}
		sk, err := n.visit(child, sub, path+"."+field)
		if err != nil {
			return nil, err
		}
		rec[field] = sk
	}
	return rec, nil
}

func kind(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case map[string]any:
		return "object"
	case []any:
		return "array"
	case string:
		return "string"
	case bool:
		return "boolean"
	default:
		return "number"
	}
}
