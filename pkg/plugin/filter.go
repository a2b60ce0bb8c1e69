package plugin

import (
	"context"

	"github.com/naumanni/naumanni-server/pkg/normalizr"
)

// FilterEvent returns the event name used to filter one entity type.
func FilterEvent(entityKey string) string {
	return "filter-" + entityKey
}

// FilterEntities pushes every non-empty entity type of table through its
// filter chain and writes the final objects back into the table.
//
// Each handler receives Args{"objects": normalizr.Entities, "entities":
// normalizr.Table} and may return a normalizr.Entities that replaces
// "objects" for the next handler. A nil result leaves the objects as they
// were. Records may be modified in place. Ids missing from the final objects
// are tombstoned in the table.
func FilterEntities(ctx context.Context, bus *Bus, table normalizr.Table) error {
	for _, key := range table.Types() {
		if err := FilterType(ctx, bus, table, key); err != nil {
			return err
		}
	}
	return nil
}

// FilterType runs the filter chain of a single entity type. It is a no-op
// when nothing subscribes to the type or no live objects remain.
func FilterType(ctx context.Context, bus *Bus, table normalizr.Table, key string) error {
	event := FilterEvent(key)
	if !bus.HasHandlers(event) {
		return nil
	}
	objects := table.Live(key)
	if len(objects) == 0 {
		return nil
	}

	args, err := bus.EmitContext(ctx, event, Args{
		"objects":  objects,
		"entities": table,
	}, replaceObjects)
	if err != nil {
		return err
	}
	final, _ := args["objects"].(normalizr.Entities)
	table.Replace(key, final)
	return nil
}

func replaceObjects(result any, args Args) Args {
	if objects, ok := result.(normalizr.Entities); ok && objects != nil {
		args["objects"] = objects
	}
	return args
}

// Objects returns the "objects" argument of a filter event.
func Objects(args Args) normalizr.Entities {
	objects, _ := args["objects"].(normalizr.Entities)
	return objects
}
