package main

import (
	"github.com/spf13/cobra"

	"github.com/naumanni/naumanni-server/pkg/apischema"
	"github.com/naumanni/naumanni-server/pkg/cli"
	"github.com/naumanni/naumanni-server/pkg/mastodon"
)

var routesFlags struct {
	format string
}

var routesCmd = &cobra.Command{
	Use:   "routes",
	Short: "List the API routes and streaming events that are filtered",
	Long: `List the Mastodon API paths (relative to /api/v1) whose responses are
normalized and filtered, in match order, followed by the streaming events
whose payloads are filtered. Everything else is relayed unchanged.`,
	RunE: runRoutes,
}

func init() {
	rootCmd.AddCommand(routesCmd)
	routesCmd.Flags().StringVar(&routesFlags.format, "format", "text", "output format: text, json, csv")
}

func runRoutes(cmd *cobra.Command, args []string) error {
	format, err := cli.ParseFormat(routesFlags.format)
	if err != nil {
		return err
	}
	table := newRouteTable(apischema.NewMastodonRegistry(mastodon.NewEntities()))
	return cli.NewFormatter(format).FormatTo(cmd.OutOrStdout(), table)
}

type route struct {
	Kind    string `json:"kind"`
	Pattern string `json:"pattern"`
}

type routeTable struct {
	Routes []route `json:"routes"`
}

func newRouteTable(r *apischema.Registry) routeTable {
	var t routeTable
	for _, p := range r.Patterns() {
		t.Routes = append(t.Routes, route{Kind: "rest", Pattern: p})
	}
	for _, e := range r.StreamEvents() {
		t.Routes = append(t.Routes, route{Kind: "stream", Pattern: e})
	}
	return t
}

func (routeTable) Header() []string { return []string{"KIND", "PATTERN"} }

func (t routeTable) Rows() [][]string {
	rows := make([][]string, 0, len(t.Routes))
	for _, r := range t.Routes {
		rows = append(rows, []string{r.Kind, r.Pattern})
	}
	return rows
}
