package normalizr

import (
	"fmt"
	"strconv"
)

// Denormalize rebuilds a payload from a skeleton produced by Normalize and
// the (possibly filtered) table from the same pass.
//
// An id missing from the table is a SchemaMismatchError. A tombstoned id
// yields null, and is dropped entirely when it is a list element. An entity
// that is reached again while it is already being expanded is emitted with
// its child references left as ids, so id cycles terminate.
func Denormalize(skeleton any, schema Schema, table Table) (any, error) {
	d := &denormalizer{table: table, visiting: map[string]struct{}{}}
	return d.visit(skeleton, schema, "$")
}

type denormalizer struct {
	table    Table
	visiting map[string]struct{}
}

func (d *denormalizer) visit(skeleton any, schema Schema, path string) (any, error) {
	switch s := schema.(type) {
	case *Entity:
		return d.entity(skeleton, s, path)
	case List:
		return d.list(skeleton, s, path)
	case Object:
		if skeleton == nil {
			return nil, nil
		}
		obj, ok := skeleton.(map[string]any)
		if !ok {
			return nil, mismatch(path, "expected object, got %s", kind(skeleton))
		}
		return d.fields(obj, s.Fields, path)
	case Value, nil:
		return skeleton, nil
	default:
		return nil, fmt.Errorf("normalizr: unknown schema type %T", schema)
	}
}

func (d *denormalizer) lookup(id any, e *Entity, path string) (Record, string, error) {
	key, err := IDKey(id)
	if err != nil {
		return nil, "", mismatch(path, "%s reference: %v", e.Key, err)
	}
	rec, ok := d.table[e.Key][key]
	if !ok {
		return nil, "", mismatch(path, "unresolved %s reference %q", e.Key, key)
	}
	return rec, key, nil
}

func (d *denormalizer) entity(skeleton any, e *Entity, path string) (any, error) {
	if skeleton == nil {
		return nil, nil
	}
	rec, key, err := d.lookup(skeleton, e, path)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, nil
	}

	mark := e.Key + "\x00" + key
	if _, cyclic := d.visiting[mark]; cyclic {
		return copyRecord(rec), nil
	}
	d.visiting[mark] = struct{}{}
	defer delete(d.visiting, mark)

	return d.fields(rec, e.Definition, path)
}

func (d *denormalizer) list(skeleton any, l List, path string) (any, error) {
	if skeleton == nil {
		return nil, nil
	}
	arr, ok := skeleton.([]any)
	if !ok {
		return nil, mismatch(path, "expected array, got %s", kind(skeleton))
	}
	ent, ofEntity := l.Of.(*Entity)
	out := make([]any, 0, len(arr))
	for i, el := range arr {
		elPath := path + "[" + strconv.Itoa(i) + "]"
		if ofEntity && el != nil {
			rec, _, err := d.lookup(el, ent, elPath)
			if err != nil {
				return nil, err
			}
			if rec == nil {
				continue
			}
		}
		v, err := d.visit(el, l.Of, elPath)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func (d *denormalizer) fields(rec map[string]any, def Definition, path string) (map[string]any, error) {
	out := copyRecord(rec)
	for field, sub := range def {
		child, present := rec[field]
		if !present {
			continue
		}
		v, err := d.visit(child, sub, path+"."+field)
		if err != nil {
			return nil, err
		}
		out[field] = v
	}
	return out, nil
}

func copyRecord(rec map[string]any) map[string]any {
	out := make(map[string]any, len(rec))
	for k, v := range rec {
		out[k] = v
	}
	return out
}
