// Package fetch implements the retrieval step of a pair pipeline: it requests
// one portal export per route and writes the raw JSON replies into the pair's
// export directory.
package fetch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/transitlab/transit-sweep/internal/metrics"
	"github.com/transitlab/transit-sweep/internal/powerbi"
)

// Export file names carry the request time so repeated fetches never collide.
const timestampLayout = "2006_01_02-15_04"

// Clock abstracts time.Now for deterministic file naming in tests.
type Clock interface {
	Now() time.Time
}

// Querier is the portal client used for each route request.
type Querier interface {
	QueryData(ctx context.Context, body []byte) (powerbi.Response, error)
}

// Request names the three inputs of one fetch invocation: where to write,
// which request body to use, and which routes to request.
type Request struct {
	ExportDir       string
	RequestBodyPath string
	RoutesFile      string
	Dataset         string // metrics label; empty means "adhoc"
}

// RouteResult records the outcome of one route request.
type RouteResult struct {
	Route      string
	Path       string
	StatusCode int
	Err        error
}

// Summary aggregates a fetch invocation's per-route outcomes.
type Summary struct {
	Results   []RouteResult
	Succeeded int
	Failed    int
}

// Fetcher runs fetch invocations against a portal client.
type Fetcher struct {
	client Querier
	clock  Clock
	logger *zap.Logger
}

// New constructs a Fetcher.
func New(client Querier, clock Clock, logger *zap.Logger) *Fetcher {
	metrics.Init()
	return &Fetcher{
		client: client,
		clock:  clock,
		logger: logger,
	}
}

// Fetch requests every route and writes each raw reply to the export
// directory. Replies are written verbatim even on non-2xx statuses, matching
// what the portal export produces; such routes are counted as failed. A
// missing routes file or request body is an error, per-route failures are not.
func (f *Fetcher) Fetch(ctx context.Context, req Request) (Summary, error) {
	dataset := req.Dataset
	if dataset == "" {
		dataset = "adhoc"
	}

	routes, err := ReadRoutes(req.RoutesFile)
	if err != nil {
		return Summary{}, err
	}
	if len(routes) == 0 {
		return Summary{}, fmt.Errorf("routes file %s is empty", req.RoutesFile)
	}

	tmpl, err := powerbi.LoadTemplate(req.RequestBodyPath)
	if err != nil {
		return Summary{}, err
	}

	if err := os.MkdirAll(req.ExportDir, 0o750); err != nil {
		return Summary{}, fmt.Errorf("create export dir %s: %w", req.ExportDir, err)
	}

	summary := Summary{Results: make([]RouteResult, 0, len(routes))}
	for _, route := range routes {
		if err := ctx.Err(); err != nil {
			return summary, fmt.Errorf("fetch canceled: %w", err)
		}
		result := f.fetchRoute(ctx, tmpl, req.ExportDir, dataset, route)
		if result.Err != nil {
			summary.Failed++
			metrics.ObserveRoute(dataset, routeStatusLabel(result))
			f.logger.Warn("Route fetch failed",
				zap.String("route", route),
				zap.String("export_dir", req.ExportDir),
				zap.Error(result.Err),
			)
		} else {
			summary.Succeeded++
			metrics.ObserveRoute(dataset, statusClass(result.StatusCode))
			f.logger.Debug("Route fetched",
				zap.String("route", route),
				zap.String("path", result.Path),
				zap.Int("status", result.StatusCode),
			)
		}
		summary.Results = append(summary.Results, result)
	}
	return summary, nil
}

func (f *Fetcher) fetchRoute(ctx context.Context, tmpl *powerbi.Template, exportDir, dataset, route string) RouteResult {
	result := RouteResult{Route: route}

	body, err := tmpl.WithRoute(route)
	if err != nil {
		result.Err = err
		return result
	}

	resp, err := f.client.QueryData(ctx, body)
	if err != nil {
		result.Err = err
		return result
	}
	result.StatusCode = resp.StatusCode
	metrics.ObserveFetch(dataset, resp.Duration)

	name := fmt.Sprintf("%s_%s.json", route, f.clock.Now().Format(timestampLayout))
	path := filepath.Join(exportDir, name)
	if err := os.WriteFile(path, resp.Body, 0o600); err != nil {
		result.Err = fmt.Errorf("write export %s: %w", path, err)
		return result
	}
	result.Path = path

	if !resp.OK() {
		result.Err = fmt.Errorf("portal returned status %d for route %s", resp.StatusCode, route)
	}
	return result
}

func routeStatusLabel(result RouteResult) string {
	if result.StatusCode == 0 {
		return "error"
	}
	return statusClass(result.StatusCode)
}

func statusClass(code int) string {
	switch {
	case code >= 200 && code < 300:
		return "2xx"
	case code >= 400 && code < 500:
		return "4xx"
	case code >= 500:
		return "5xx"
	default:
		return "other"
	}
}
