package server

import (
	"fmt"
	"log/slog"

	"github.com/naumanni/naumanni-server/pkg/config"
	"github.com/naumanni/naumanni-server/pkg/plugin"
	"github.com/naumanni/naumanni-server/pkg/plugins/annotate"
	"github.com/naumanni/naumanni-server/pkg/plugins/mute"
)

// NewPluginApp installs the built-in plugins listed in cfg.Enabled, in
// order. The order is the filter-chain order.
func NewPluginApp(cfg config.PluginsConfig, logger *slog.Logger) (*plugin.App, error) {
	app := plugin.NewApp(logger)
	for _, id := range cfg.Enabled {
		var p plugin.Plugin
		switch id {
		case mute.ID:
			m, err := mute.New(cfg.Mute.RulesFile)
			if err != nil {
				return nil, err
			}
			p = m
		case annotate.ID:
			p = annotate.New()
		default:
			return nil, fmt.Errorf("unknown plugin %q", id)
		}
		if err := app.Install(p); err != nil {
			return nil, err
		}
	}
	return app, nil
}
