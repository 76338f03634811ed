// Package api exposes the analysis engine over HTTP.
//
// The target URL is carried as the raw path remainder after the route prefix,
// scheme and all, e.g. /api/report/https://example.com/page. Routing is done
// by hand in ServeHTTP because http.ServeMux path cleaning would collapse the
// double slash inside the embedded scheme.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"htmlstat/internal/fetcher"
	"htmlstat/internal/render"
	"htmlstat/internal/resolver"
	"htmlstat/pkg/types"
)

const (
	reportPrefix = "/api/report/"
	exportPrefix = "/api/export/"
)

// Analyzer produces the aggregate for a target URL. Satisfied by both the
// resolver and its caching wrapper.
type Analyzer interface {
	Analyze(ctx context.Context, rawURL string) (*types.AnalysisResult, error)
}

// Server exposes the report and export endpoints.
type Server struct {
	analyzer Analyzer
	logger   *slog.Logger
}

// NewServer wires the HTTP surface around an analyzer.
func NewServer(analyzer Analyzer, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{analyzer: analyzer, logger: logger}
}

// ServeHTTP satisfies the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	if r.Method == http.MethodOptions {
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		w.WriteHeader(http.StatusNoContent)
		return
	}

	path := r.URL.Path
	switch {
	case path == "/health":
		s.handleHealth(w, r)
	case strings.HasPrefix(path, reportPrefix):
		s.handleReport(w, r)
	case strings.HasPrefix(path, exportPrefix):
		s.handleExport(w, r)
	default:
		http.NotFound(w, r)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC(),
	})
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}

	format := render.FormatJSON
	if raw := r.URL.Query().Get("format"); raw != "" {
		parsed, err := render.ParseFormat(raw)
		if err != nil {
			s.writeError(w, err)
			return
		}
		format = parsed
	}
	switch format {
	case render.FormatJSON, render.FormatTree, render.FormatFlat:
	default:
		s.writeError(w, fmt.Errorf("%w: %q is not a report format", render.ErrUnsupportedFormat, format))
		return
	}

	s.respond(w, r, reportPrefix, format, false)
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}

	raw := r.URL.Query().Get("format")
	if raw == "" {
		s.writeError(w, fmt.Errorf("%w: format parameter is required", render.ErrUnsupportedFormat))
		return
	}
	format, err := render.ParseFormat(raw)
	if err != nil {
		s.writeError(w, err)
		return
	}
	switch format {
	case render.FormatCSV, render.FormatJSON, render.FormatGraph, render.FormatXLSX:
	default:
		s.writeError(w, fmt.Errorf("%w: %q is not an export format", render.ErrUnsupportedFormat, format))
		return
	}

	s.respond(w, r, exportPrefix, format, true)
}

func (s *Server) respond(w http.ResponseWriter, r *http.Request, prefix string, format render.Format, attachment bool) {
	target := targetFromRequest(r, prefix)
	result, err := s.analyzer.Analyze(r.Context(), target)
	if err != nil {
		s.writeError(w, err)
		return
	}

	var buf bytes.Buffer
	if err := render.Render(&buf, result, format); err != nil {
		s.writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", render.ContentType(format))
	if attachment {
		w.Header().Set("Content-Disposition",
			fmt.Sprintf("attachment; filename=%q", "htmlstat-report."+render.FileExtension(format)))
	}
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

// targetFromRequest reassembles the target URL from the path remainder plus
// the request query minus the format parameter, which belongs to the API.
// The query is carried over byte for byte; re-encoding would reorder
// parameters and normalize escapes the upstream may be sensitive to.
func targetFromRequest(r *http.Request, prefix string) string {
	target := strings.TrimPrefix(r.URL.Path, prefix)
	if rest := stripFormatParam(r.URL.RawQuery); rest != "" {
		target += "?" + rest
	}
	return target
}

func stripFormatParam(rawQuery string) string {
	if rawQuery == "" {
		return ""
	}
	pairs := strings.Split(rawQuery, "&")
	kept := pairs[:0]
	for _, pair := range pairs {
		key := pair
		if i := strings.IndexByte(pair, '='); i >= 0 {
			key = pair[:i]
		}
		if key == "format" {
			continue
		}
		kept = append(kept, pair)
	}
	return strings.Join(kept, "&")
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status, message := classify(err)
	if status >= 500 {
		s.logger.Warn("request failed", "status", status, "error", err)
	}
	writeJSON(w, status, map[string]string{"error": message})
}

// classify maps engine errors to status codes and client-safe messages.
func classify(err error) (int, string) {
	var statusErr *fetcher.StatusError
	switch {
	case errors.Is(err, fetcher.ErrInvalidURL):
		return http.StatusBadRequest, "invalid target url"
	case errors.Is(err, render.ErrUnsupportedFormat):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, fetcher.ErrTimeout):
		return http.StatusGatewayTimeout, "upstream request timed out"
	case errors.As(err, &statusErr):
		return http.StatusBadGateway, fmt.Sprintf("upstream returned status %d", statusErr.Code)
	case errors.Is(err, fetcher.ErrNetwork):
		return http.StatusBadGateway, "upstream fetch failed"
	case errors.Is(err, resolver.ErrNoResources):
		return http.StatusBadGateway, "no resources could be analyzed"
	default:
		return http.StatusInternalServerError, "internal error"
	}
}

func methodNotAllowed(w http.ResponseWriter, allowed ...string) {
	w.Header().Set("Allow", strings.Join(allowed, ", "))
	writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
