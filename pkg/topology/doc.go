/*
Package topology runs the gateway as a master and a set of workers.

The master binds the listening socket before any worker starts, then either
re-executes the binary once per worker (process mode, the default) or runs
the workers as goroutines (inprocess mode, also used by --debug). Process
workers inherit the listener as fd 3 and a pair of control pipes as fd 4
and 5. The single --debug worker has no task index (UnassignedTask).

Control messages are NUL-terminated JSON objects. The master sends

	{"request":"status"}

and the worker answers with a process snapshot. Unknown requests are
answered with {"error":"unknown request"}.

On SIGTERM or SIGINT the master relays termination to every worker. A
worker emits before-stop, stops accepting connections and drains in-flight
requests and streams for at most server.shutdown_grace. SIGUSR1, the
status.schedule cron expression, or a worker's /status request make the
master collect snapshots and persist the report to the status store.
Workers that exit are not restarted.
*/
package topology
