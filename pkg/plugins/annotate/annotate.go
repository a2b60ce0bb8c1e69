// Package annotate is a built-in plugin that adds derived text fields to
// statuses so that clients do not have to parse HTML themselves.
package annotate

import (
	"context"

	"github.com/naumanni/naumanni-server/pkg/mastodon"
	"github.com/naumanni/naumanni-server/pkg/plugin"
)

// ID is the plugin id.
const ID = "annotate"

// Field names added to every status.
const (
	FieldPlainContent     = "plain_content"
	FieldURLsWithoutMedia = "urls_without_media"
)

// Plugin annotates statuses in place.
type Plugin struct{}

// New returns the plugin.
func New() *Plugin { return &Plugin{} }

func (*Plugin) ID() string { return ID }

func (*Plugin) Assets() plugin.Assets {
	return plugin.Assets{JSPackage: "naumanni-annotate"}
}

func (p *Plugin) Register(r *plugin.Registrar) error {
	r.OnFunc(plugin.FilterEvent(mastodon.KeyStatuses), p.annotate)
	return nil
}

func (p *Plugin) annotate(ctx context.Context, args plugin.Args) (any, error) {
	for _, rec := range plugin.Objects(args) {
		status := mastodon.Status(rec)
		rec[FieldPlainContent] = status.PlainContent()
		rec[FieldURLsWithoutMedia] = status.URLsWithoutMedia()
	}
	// Records are modified in place; the objects are unchanged.
	return nil, nil
}
