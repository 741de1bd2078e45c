package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/a-h/templ"

	"github.com/conneroisu/weft/internal/graph"
	"github.com/conneroisu/weft/internal/version"
)

// statusRow is one task line on the status page.
type statusRow struct {
	Task     string
	Status   graph.Status
	Duration time.Duration
	Error    string
}

func rowsFrom(report *graph.Report) []statusRow {
	if report == nil {
		return nil
	}
	events := report.Events()
	rows := make([]statusRow, 0, len(events))
	for _, e := range events {
		row := statusRow{Task: e.Node, Status: e.Status, Duration: e.Duration}
		if e.Err != nil {
			row.Error = e.Err.Error()
		}
		rows = append(rows, row)
	}
	return rows
}

// statusPage renders the task table. Every dynamic value goes through
// templ.EscapeString.
func statusPage(rows []statusRow, clients int) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if _, err := io.WriteString(w, `<!DOCTYPE html><html><head><meta charset="utf-8"><title>weft status</title>`+
			`<style>body{font:14px system-ui;margin:2em}table{border-collapse:collapse}`+
			`td,th{padding:.3em .8em;border-bottom:1px solid #ddd;text-align:left}`+
			`.failed{color:#b00}.completed{color:#070}.skipped{color:#888}pre{margin:0}</style>`+
			`</head><body><h1>weft</h1>`); err != nil {
			return err
		}
		if _, err := fmt.Fprintf(w, `<p>%s &middot; %d live reload client(s)</p>`,
			templ.EscapeString(version.GetShortVersion()), clients); err != nil {
			return err
		}

		if len(rows) == 0 {
			_, err := io.WriteString(w, `<p>No task has run yet.</p></body></html>`)
			return err
		}

		if _, err := io.WriteString(w, `<table><tr><th>Task</th><th>Status</th><th>Duration</th><th>Error</th></tr>`); err != nil {
			return err
		}
		for _, row := range rows {
			_, err := fmt.Fprintf(w, `<tr><td>%s</td><td class="%s">%s</td><td>%s</td><td><pre>%s</pre></td></tr>`,
				templ.EscapeString(row.Task),
				templ.EscapeString(string(row.Status)),
				templ.EscapeString(string(row.Status)),
				templ.EscapeString(row.Duration.Round(time.Millisecond).String()),
				templ.EscapeString(row.Error),
			)
			if err != nil {
				return err
			}
		}
		_, err := io.WriteString(w, `</table></body></html>`)
		return err
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	clients := 0
	if s.hub != nil {
		clients = s.hub.Clients()
	}
	templ.Handler(statusPage(rowsFrom(s.report), clients)).ServeHTTP(w, r)
}

// handleHealth returns the server health status for health checks
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var failed []string
	if s.report != nil {
		failed = s.report.Failed()
	}
	if failed == nil {
		failed = []string{}
	}
	status := "healthy"
	if len(failed) > 0 {
		status = "degraded"
	}

	health := map[string]interface{}{
		"status":       status,
		"timestamp":    time.Now().UTC(),
		"version":      version.GetShortVersion(),
		"failed_tasks": failed,
		"hot_reload":   s.hotReload,
	}
	if s.metrics != nil {
		snap := s.metrics.Snapshot()
		health["runs"] = snap
		health["success_rate"] = snap.SuccessRate()
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)

	if err := json.NewEncoder(w).Encode(health); err != nil {
		s.logger.Warn(r.Context(), err, "Failed to encode health response")
	}
}
