// Package health implements the gateway readiness and version endpoints.
//
// Components register named checks with a Checker; readiness runs every
// check concurrently with a per-check timeout and reports 503 when any of
// them fails. The worker registers the status store as a check so a worker
// that cannot reach the shared store is taken out of rotation.
//
//	checker := health.New(2 * time.Second)
//	checker.RegisterCheck("status_store", store.Ping)
//	router.Handle("/ready", checker.ReadinessHandler())
package health
