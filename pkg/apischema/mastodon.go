package apischema

import (
	"github.com/naumanni/naumanni-server/pkg/mastodon"
	"github.com/naumanni/naumanni-server/pkg/normalizr"
)

// Streaming event names with filterable payloads.
const (
	StreamUpdate       = "update"
	StreamNotification = "notification"
)

// NewMastodonRegistry registers the Mastodon endpoints whose responses carry
// accounts, statuses or notifications.
func NewMastodonRegistry(ents *mastodon.Entities) *Registry {
	account := ents.Account
	status := ents.Status
	notification := ents.Notification

	accounts := Static(normalizr.ListOf(account))
	statuses := Static(normalizr.ListOf(status))

	r := NewRegistry()

	// Literal account paths go before /accounts/{id}.
	r.Register("/accounts/verify_credentials", Static(account))
	r.Register("/accounts/update_credentials", Static(account))
	r.Register("/accounts/search", accounts)
	r.Register("/accounts/relationships", Static(normalizr.Value{}))
	r.Register("/accounts/{id}", Static(account))
	r.Register("/accounts/{id}/statuses", statuses)
	r.Register("/accounts/{id}/followers", accounts)
	r.Register("/accounts/{id}/following", accounts)

	r.Register("/timelines/home", statuses)
	r.Register("/timelines/public", statuses)
	r.Register("/timelines/tag/{hashtag}", statuses)
	r.Register("/timelines/list/{list_id}", statuses)

	r.Register("/statuses", Static(status))
	r.Register("/statuses/{id}", Static(status))
	r.Register("/statuses/{id}/context", Static(normalizr.Object{Fields: normalizr.Definition{
		"ancestors":   normalizr.ListOf(status),
		"descendants": normalizr.ListOf(status),
	}}))
	r.Register("/statuses/{id}/reblogged_by", accounts)
	r.Register("/statuses/{id}/favourited_by", accounts)
	for _, action := range []string{"reblog", "unreblog", "favourite", "unfavourite", "pin", "unpin", "bookmark", "unbookmark"} {
		r.Register("/statuses/{id}/"+action, Static(status))
	}

	r.Register("/notifications", Static(normalizr.ListOf(notification)))
	r.Register("/notifications/{id}", Static(notification))

	r.Register("/favourites", statuses)
	r.Register("/bookmarks", statuses)
	r.Register("/blocks", accounts)
	r.Register("/mutes", accounts)
	r.Register("/follow_requests", accounts)

	r.Register("/search", Static(normalizr.Object{Fields: normalizr.Definition{
		"accounts": normalizr.ListOf(account),
		"statuses": normalizr.ListOf(status),
	}}))

	r.RegisterStream(StreamUpdate, status)
	r.RegisterStream(StreamNotification, notification)
	return r
}
