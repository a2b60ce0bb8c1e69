// Package mastodon declares the entity schemas of the Mastodon REST and
// streaming APIs and provides typed read-only views over normalized records.
package mastodon
