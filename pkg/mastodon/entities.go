package mastodon

import "github.com/naumanni/naumanni-server/pkg/normalizr"

// Entity type keys. They double as the suffix of the "filter-<key>" plugin
// events.
const (
	KeyAccounts      = "accounts"
	KeyStatuses      = "statuses"
	KeyNotifications = "notifications"
)

// Entities holds one set of mutually recursive entity schemas.
type Entities struct {
	Account      *normalizr.Entity
	Status       *normalizr.Entity
	Notification *normalizr.Entity
}

// NewEntities builds the account, status and notification schemas.
// A status references its author, the status it reblogs and the status it
// quotes; a notification references an account and optionally a status.
func NewEntities() *Entities {
	account := normalizr.NewEntity(KeyAccounts)
	status := normalizr.NewEntity(KeyStatuses)
	notification := normalizr.NewEntity(KeyNotifications)

	account.Define(normalizr.Definition{"moved": account})
	status.Define(normalizr.Definition{
		"account": account,
		"reblog":  status,
	})
	notification.Define(normalizr.Definition{
		"account": account,
		"status":  status,
	})

	return &Entities{
		Account:      account,
		Status:       status,
		Notification: notification,
	}
}
