package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/naumanni/naumanni-server/pkg/proxy"
	"github.com/naumanni/naumanni-server/pkg/proxy/types"
	"github.com/naumanni/naumanni-server/pkg/statusstore"
)

// StatusHandler serves the aggregated worker status report. A request asks
// the master for a fresh collection and long-polls the store until a report
// newer than the since parameter appears.
type StatusHandler struct {
	store        statusstore.Store
	signal       func() error
	pollInterval time.Duration
	waitTimeout  time.Duration
}

// NewStatusHandler creates a status handler. signal requests a collection
// from the master; it may be nil.
func NewStatusHandler(store statusstore.Store, signal func() error, pollInterval, waitTimeout time.Duration) *StatusHandler {
	if pollInterval <= 0 {
		pollInterval = 500 * time.Millisecond
	}
	return &StatusHandler{
		store:        store,
		signal:       signal,
		pollInterval: pollInterval,
		waitTimeout:  waitTimeout,
	}
}

// ServeHTTP implements http.Handler.
func (h *StatusHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var since float64
	if v := r.URL.Query().Get("since"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			writeErrorResponse(w, r, types.NewInvalidRequestError("since must be a unix timestamp", "since", ""))
			return
		}
		since = f
	}

	if h.signal != nil {
		if err := h.signal(); err != nil {
			slog.WarnContext(ctx, "failed to request status collection", "error", err)
		}
	}

	timeout := time.NewTimer(h.waitTimeout)
	defer timeout.Stop()
	ticker := time.NewTicker(h.pollInterval)
	defer ticker.Stop()

	var latest *statusstore.Report
	for {
		report, err := statusstore.LoadReport(ctx, h.store)
		switch {
		case err == nil:
			latest = report
			if report.Timestamp > since {
				h.writeReport(w, r, report)
				return
			}
		case !errors.Is(err, statusstore.ErrNotFound):
			slog.WarnContext(ctx, "failed to load status report", "error", err)
		}

		select {
		case <-ctx.Done():
			return
		case <-timeout.C:
			if latest != nil {
				h.writeReport(w, r, latest)
				return
			}
			writeErrorResponse(w, r, types.NewServiceUnavailableError("status report not available", types.CodeStatusUnavailable))
			return
		case <-ticker.C:
		}
	}
}

func (h *StatusHandler) writeReport(w http.ResponseWriter, r *http.Request, report *statusstore.Report) {
	if err := proxy.WriteJSONResponse(w, http.StatusOK, report); err != nil {
		slog.ErrorContext(r.Context(), "failed to write status report", "error", err)
	}
}

func writeErrorResponse(w http.ResponseWriter, r *http.Request, errResp *types.ErrorResponse) {
	if err := proxy.WriteErrorResponse(w, errResp); err != nil {
		slog.ErrorContext(r.Context(), "failed to write error response", "error", err)
	}
}
