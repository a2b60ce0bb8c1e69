// Command naumanni is an authenticating gateway in front of Mastodon
// instances.
//
// It relays REST calls under /proxy/<upstream-url> and streaming
// connections under /ws/<upstream-url>, running statuses, accounts and
// notifications through the installed plugins before they reach the
// client.
//
// Usage:
//
//	# Start the master and its workers
//	naumanni serve --config naumanni.yaml
//
//	# Run a single in-process worker with debug logging
//	naumanni serve --debug
//
//	# Print the last collected worker status
//	naumanni status --format json
//
//	# List the API routes that are filtered
//	naumanni routes
package main

func main() {
	Execute()
}
