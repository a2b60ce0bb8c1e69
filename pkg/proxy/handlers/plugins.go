package handlers

import (
	"log/slog"
	"net/http"

	"github.com/naumanni/naumanni-server/pkg/plugin"
	"github.com/naumanni/naumanni-server/pkg/proxy"
)

// PluginInfo describes an installed plugin to front-end clients.
type PluginInfo struct {
	ID     string         `json:"id"`
	Assets *plugin.Assets `json:"assets,omitempty"`
}

// PluginsHandler lists the installed plugins in filter-chain order.
func PluginsHandler(app *plugin.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		installed := app.Plugins()
		infos := make([]PluginInfo, 0, len(installed))
		for _, p := range installed {
			info := PluginInfo{ID: p.ID()}
			if ap, ok := p.(plugin.AssetProvider); ok {
				assets := ap.Assets()
				info.Assets = &assets
			}
			infos = append(infos, info)
		}

		if err := proxy.WriteJSONResponse(w, http.StatusOK, map[string]any{"plugins": infos}); err != nil {
			slog.ErrorContext(r.Context(), "failed to write plugin list", "error", err)
		}
	}
}
