package normalizr

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
)

// Entities maps an id key to a record. A nil record is a tombstone left by
// Replace for an id that a filter removed.
type Entities map[string]Record

// Table is the output of Normalize: entity type name to id key to record.
type Table map[string]Entities

func (t Table) put(key, id string, rec Record) {
	ents, ok := t[key]
	if !ok {
		ents = Entities{}
		t[key] = ents
	}
	ents[id] = rec
}

// Types returns the entity type names present in the table, sorted.
func (t Table) Types() []string {
	keys := make([]string, 0, len(t))
	for k := range t {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Live returns the non-tombstoned records of one entity type. The returned
// map is a fresh copy; the records are shared with the table.
func (t Table) Live(key string) Entities {
	out := make(Entities, len(t[key]))
	for id, rec := range t[key] {
		if rec != nil {
			out[id] = rec
		}
	}
	return out
}

// Replace substitutes the records of one entity type with objects, keyed by
// the same ids. Ids that were present before but are missing from objects
// become tombstones so that references to them still resolve.
func (t Table) Replace(key string, objects Entities) {
	ents, ok := t[key]
	if !ok {
		ents = Entities{}
		t[key] = ents
	}
	for id := range ents {
		if _, kept := objects[id]; !kept {
			ents[id] = nil
		}
	}
	for id, rec := range objects {
		ents[id] = rec
	}
}

// Len returns the number of records (including tombstones) per type.
func (t Table) Len(key string) int {
	return len(t[key])
}

// IDKey returns the canonical table key for an id value. Ids may be JSON
// strings or numbers; numbers decoded with json.Decoder.UseNumber keep their
// exact text.
func IDKey(id any) (string, error) {
	switch v := id.(type) {
	case string:
		if v == "" {
			return "", fmt.Errorf("empty id")
		}
		return v, nil
	case json.Number:
		return v.String(), nil
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return "", fmt.Errorf("invalid numeric id %v", v)
		}
		return strconv.FormatFloat(v, 'f', -1, 64), nil
	case int:
		return strconv.Itoa(v), nil
	case int64:
		return strconv.FormatInt(v, 10), nil
	case nil:
		return "", fmt.Errorf("missing id")
	default:
		return "", fmt.Errorf("unsupported id type %T", id)
	}
}
