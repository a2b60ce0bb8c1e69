package normalizr

// Record is a single entity instance as decoded from JSON.
type Record = map[string]any

// Definition maps a field name to the schema of the value stored under it.
// Fields that are not listed are carried through untouched.
type Definition map[string]Schema

// Schema describes the shape of a JSON value.
//
// Implementations are *Entity, List, Object and Value.
type Schema interface {
	schema()
}

// Entity is an identity-bearing record type. Instances are keyed by their
// "id" field and deduplicated within a single normalization pass.
type Entity struct {
	// Key is the entity type name used as the table key, e.g. "statuses".
	Key string

	// Definition lists child fields that hold other entities.
	Definition Definition
}

// NewEntity returns an entity schema with an empty definition. Use Define to
// attach child schemas once every participating entity exists, which allows
// mutually recursive types.
func NewEntity(key string) *Entity {
	return &Entity{Key: key, Definition: Definition{}}
}

// Define merges def into the entity definition and returns e.
func (e *Entity) Define(def Definition) *Entity {
	if e.Definition == nil {
		e.Definition = Definition{}
	}
	for field, s := range def {
		e.Definition[field] = s
	}
	return e
}

func (*Entity) schema() {}

// List is a homogeneous array schema.
type List struct {
	Of Schema
}

// ListOf returns a list schema whose elements follow s.
func ListOf(s Schema) List {
	return List{Of: s}
}

func (List) schema() {}

// Object is a plain JSON object without identity, whose declared fields hold
// other schemas. Typical use is an envelope such as {"ancestors": [...],
// "descendants": [...]}.
type Object struct {
	Fields Definition
}

func (Object) schema() {}

// Value passes a JSON value through unchanged.
type Value struct{}

func (Value) schema() {}
