// Package normalizr flattens nested API payloads into per-type entity tables
// and rebuilds them afterwards.
//
// A payload is described by a Schema. Normalize walks the payload, records
// every entity it meets under its type key and id, and returns a reference
// skeleton in which each entity sub-object is replaced by its id:
//
//	statuses := normalizr.NewEntity("statuses")
//	accounts := normalizr.NewEntity("accounts")
//	statuses.Define(normalizr.Definition{"account": accounts, "reblog": statuses})
//
//	table, skeleton, err := normalizr.Normalize(payload, normalizr.ListOf(statuses))
//
// The table can then be rewritten one entity type at a time, regardless of
// where that entity was nested in the payload. Denormalize reverses the
// process and reproduces the original shape:
//
//	out, err := normalizr.Denormalize(skeleton, normalizr.ListOf(statuses), table)
//
// Entities removed from a table with Table.Replace are kept as tombstones. A
// tombstoned reference denormalizes to null and is omitted from lists.
package normalizr
