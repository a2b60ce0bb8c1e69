// Package statusstore holds the shared key-value store the master writes
// status reports into and workers read them back from.
//
// Three backends are provided. The memory backend only works when every
// worker runs inside the master process. SQLite is the default and works
// across processes on one host. Redis serves deployments that run the
// gateway on several hosts.
//
//	store, err := statusstore.New(ctx, cfg.Status)
//	defer store.Close()
//
//	err = store.Set(ctx, statusstore.KeyStatus, report)
//	data, err := store.Get(ctx, statusstore.KeyStatus)
//	if errors.Is(err, statusstore.ErrNotFound) { ... }
package statusstore
