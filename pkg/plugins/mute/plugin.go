package mute

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"

	"github.com/naumanni/naumanni-server/pkg/mastodon"
	"github.com/naumanni/naumanni-server/pkg/normalizr"
	"github.com/naumanni/naumanni-server/pkg/plugin"
)

// ID is the plugin id.
const ID = "mute"

// Plugin filters statuses and notifications.
type Plugin struct {
	path   string
	rules  atomic.Pointer[Rules]
	logger *slog.Logger
}

// New loads the rule file at path. An empty path starts with no rules and
// disables watching.
func New(path string) (*Plugin, error) {
	p := &Plugin{path: path, logger: slog.Default()}
	rules := &Rules{}
	if path != "" {
		var err error
		if rules, err = LoadRules(path); err != nil {
			return nil, err
		}
	}
	p.rules.Store(rules)
	return p, nil
}

// NewWithRules returns a plugin with fixed rules.
func NewWithRules(r *Rules) *Plugin {
	r.normalize()
	p := &Plugin{logger: slog.Default()}
	p.rules.Store(r)
	return p
}

func (p *Plugin) ID() string { return ID }

// Rules returns the active rules.
func (p *Plugin) Rules() *Rules { return p.rules.Load() }

func (p *Plugin) Register(r *plugin.Registrar) error {
	p.logger = r.Host().Logger()
	r.OnFunc(plugin.FilterEvent(mastodon.KeyStatuses), p.filterStatuses)
	r.OnFunc(plugin.FilterEvent(mastodon.KeyNotifications), p.filterNotifications)
	return nil
}

func (p *Plugin) filterStatuses(ctx context.Context, args plugin.Args) (any, error) {
	rules := p.rules.Load()
	table, _ := args["entities"].(normalizr.Table)

	kept := normalizr.Entities{}
	for id, rec := range plugin.Objects(args) {
		status := mastodon.Status(rec)
		if rules.MutesText(status.PlainContent()) || rules.MutesText(status.SpoilerText()) {
			continue
		}
		if rules.MutesAccount(acctOf(table, status.AccountID())) {
			continue
		}
		kept[id] = rec
	}
	return kept, nil
}

func (p *Plugin) filterNotifications(ctx context.Context, args plugin.Args) (any, error) {
	rules := p.rules.Load()
	table, _ := args["entities"].(normalizr.Table)

	kept := normalizr.Entities{}
	for id, rec := range plugin.Objects(args) {
		accountID, _ := normalizr.IDKey(rec["account"])
		if rules.MutesAccount(acctOf(table, accountID)) {
			continue
		}
		kept[id] = rec
	}
	return kept, nil
}

func acctOf(table normalizr.Table, accountID string) string {
	if accountID == "" {
		return ""
	}
	rec := table[mastodon.KeyAccounts][accountID]
	if rec == nil {
		return ""
	}
	return mastodon.Account(rec).Acct()
}

// Handler serves the active rules as JSON.
func (p *Plugin) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(p.rules.Load())
	})
}

// Start watches the rule file until ctx is done. The parent directory is
// watched so that editors replacing the file are noticed.
func (p *Plugin) Start(ctx context.Context) error {
	if p.path == "" {
		return nil
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(p.path)); err != nil {
		watcher.Close()
		return fmt.Errorf("failed to watch %q: %w", p.path, err)
	}

	go func() {
		defer watcher.Close()
		target := filepath.Clean(p.path)
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != target || event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				p.reload()
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				p.logger.Error("mute rules watcher error", "error", err)
			}
		}
	}()
	return nil
}

func (p *Plugin) reload() {
	rules, err := LoadRules(p.path)
	if err != nil {
		p.logger.Error("mute rules reload failed, keeping previous rules", "error", err)
		return
	}
	p.rules.Store(rules)
	p.logger.Info("mute rules reloaded",
		"keywords", len(rules.Keywords),
		"accounts", len(rules.Accounts),
		"domains", len(rules.Domains),
	)
}
