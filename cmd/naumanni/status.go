package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/naumanni/naumanni-server/pkg/cli"
	"github.com/naumanni/naumanni-server/pkg/config"
	"github.com/naumanni/naumanni-server/pkg/statusstore"
)

var statusFlags struct {
	format  string
	refresh bool
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Print the last collected worker status",
	Long: `Print the status report the master last persisted to the status store.

With --refresh the running gateway is asked for a fresh report through its
/status endpoint instead.

Examples:
  naumanni status
  naumanni status --refresh --format json`,
	RunE: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
	statusCmd.Flags().StringVar(&statusFlags.format, "format", "text", "output format: text, json, csv")
	statusCmd.Flags().BoolVar(&statusFlags.refresh, "refresh", false, "request a fresh report from the running gateway")
}

func runStatus(cmd *cobra.Command, args []string) error {
	format, err := cli.ParseFormat(statusFlags.format)
	if err != nil {
		return err
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), cfg.Status.WaitTimeout+5*time.Second)
	defer cancel()

	var report *statusstore.Report
	if statusFlags.refresh {
		report, err = fetchStatus(ctx, cfg)
	} else {
		report, err = readStatus(ctx, cfg)
	}
	if err != nil {
		return cli.NewCommandError("status", err)
	}
	return cli.NewFormatter(format).FormatTo(cmd.OutOrStdout(), statusTable{report})
}

func readStatus(ctx context.Context, cfg *config.Config) (*statusstore.Report, error) {
	if cfg.Status.Backend == config.BackendMemory {
		return nil, errors.New("the memory status backend is not readable from another process; use --refresh")
	}
	store, err := statusstore.New(ctx, cfg.Status)
	if err != nil {
		return nil, err
	}
	defer store.Close()

	report, err := statusstore.LoadReport(ctx, store)
	if errors.Is(err, statusstore.ErrNotFound) {
		return nil, errors.New("no status report has been collected yet")
	}
	return report, err
}

func fetchStatus(ctx context.Context, cfg *config.Config) (*statusstore.Report, error) {
	since := strconv.FormatFloat(statusstore.UnixSeconds(time.Now()), 'f', 6, 64)
	url := gatewayURL(cfg) + "/status?since=" + since

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("gateway answered %s", resp.Status)
	}

	var report statusstore.Report
	if err := json.NewDecoder(resp.Body).Decode(&report); err != nil {
		return nil, fmt.Errorf("malformed status report: %w", err)
	}
	return &report, nil
}

// gatewayURL is the local address of the configured listener.
func gatewayURL(cfg *config.Config) string {
	scheme := "http"
	if cfg.Server.TLS.Enabled {
		scheme = "https"
	}
	host, port, err := net.SplitHostPort(cfg.Server.ListenAddress)
	if err != nil {
		return scheme + "://" + cfg.Server.ListenAddress
	}
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "127.0.0.1"
	}
	return scheme + "://" + net.JoinHostPort(host, port)
}

// statusTable renders a report one process per row.
type statusTable struct {
	*statusstore.Report
}

func (statusTable) Header() []string {
	return []string{"ROLE", "TASK", "PID", "ACTIVE", "FDS", "GOROUTINES", "USS", "RSS", "ERROR"}
}

func (s statusTable) Rows() [][]string {
	rows := [][]string{snapshotRow("master", s.Master)}
	for _, w := range s.Workers {
		rows = append(rows, snapshotRow("worker", w))
	}
	return rows
}

func snapshotRow(role string, s statusstore.Snapshot) []string {
	return []string{
		role,
		strconv.Itoa(s.TaskID),
		strconv.Itoa(int(s.PID)),
		strconv.FormatInt(s.ActiveHandlers, 10),
		strconv.Itoa(int(s.WatchedFDs)),
		strconv.Itoa(s.Goroutines),
		strconv.FormatUint(s.Memory.USS, 10),
		strconv.FormatUint(s.Memory.RSS, 10),
		s.Error,
	}
}
