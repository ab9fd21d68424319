package parse

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

// Export file names end with the fetch timestamp, e.g. 39_2026_02_02-19_48.json.
var timestampTail = regexp.MustCompile(`_\d{4}_\d{2}_\d{2}-\d{2}_\d{2}$`)

// Options controls CSV rendering.
type Options struct {
	// AsPercent multiplies values by 100 and writes two decimals.
	AsPercent bool
}

// Result summarizes one combine invocation.
type Result struct {
	FilesMatched int
	FilesSkipped int
	Routes       int
	Columns      int
}

// Combiner turns a glob of portal export files into one combined CSV.
type Combiner struct {
	opts   Options
	logger *zap.Logger
}

// NewCombiner constructs a Combiner.
func NewCombiner(opts Options, logger *zap.Logger) *Combiner {
	return &Combiner{opts: opts, logger: logger}
}

// Combine reads every file matching pattern and writes the combined CSV to
// outputPath. Files that fail to decode are skipped with a warning; matching
// no files at all is an error.
func (c *Combiner) Combine(pattern, outputPath string) (Result, error) {
	paths, err := filepath.Glob(pattern)
	if err != nil {
		return Result{}, fmt.Errorf("bad glob %q: %w", pattern, err)
	}
	if len(paths) == 0 {
		return Result{}, fmt.Errorf("no input files matched %q", pattern)
	}
	sort.Strings(paths)

	result := Result{FilesMatched: len(paths)}

	type routeRow struct {
		route  string
		values map[string]float64
	}
	var rows []routeRow
	var allYears []string
	var canonicalMonths []string

	for _, path := range paths {
		raw, err := os.ReadFile(path)
		if err != nil {
			result.FilesSkipped++
			c.logger.Warn("Skipping unreadable export", zap.String("path", path), zap.Error(err))
			continue
		}
		extracted, err := extract(raw)
		if err != nil {
			result.FilesSkipped++
			c.logger.Warn("Skipping unparseable export", zap.String("path", path), zap.Error(err))
			continue
		}

		allYears = append(allYears, extracted.years...)
		if canonicalMonths == nil {
			canonicalMonths = extracted.months
		}
		rows = append(rows, routeRow{
			route:  RouteNameFromPath(path),
			values: extracted.values,
		})
	}

	if canonicalMonths == nil {
		canonicalMonths = fallbackMonths
	}
	header := buildHeader(allYears, canonicalMonths)
	result.Routes = len(rows)
	result.Columns = len(header)

	if err := os.MkdirAll(filepath.Dir(outputPath), 0o750); err != nil {
		return result, fmt.Errorf("create output dir for %s: %w", outputPath, err)
	}
	out, err := os.Create(outputPath)
	if err != nil {
		return result, fmt.Errorf("create output %s: %w", outputPath, err)
	}
	defer func() {
		if cerr := out.Close(); cerr != nil {
			c.logger.Warn("Failed to close output", zap.String("path", outputPath), zap.Error(cerr))
		}
	}()

	w := csv.NewWriter(out)
	if err := w.Write(header); err != nil {
		return result, fmt.Errorf("write header: %w", err)
	}
	for _, row := range rows {
		record := make([]string, 0, len(header))
		record = append(record, row.route)
		for _, col := range header[1:] {
			val, ok := row.values[col]
			if !ok {
				record = append(record, "")
				continue
			}
			record = append(record, c.formatValue(val))
		}
		if err := w.Write(record); err != nil {
			return result, fmt.Errorf("write row for route %s: %w", row.route, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return result, fmt.Errorf("flush csv: %w", err)
	}

	return result, nil
}

func (c *Combiner) formatValue(val float64) string {
	if c.opts.AsPercent {
		return strconv.FormatFloat(val*100, 'f', 2, 64)
	}
	return strconv.FormatFloat(val, 'f', 4, 64)
}

// RouteNameFromPath recovers the route name from an export file path by
// dropping the directory, the extension, and the trailing fetch timestamp.
func RouteNameFromPath(path string) string {
	base := filepath.Base(path)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	return timestampTail.ReplaceAllString(base, "")
}

// buildHeader lists Route followed by every observed year (numeric sort when
// possible) crossed with the canonical months.
func buildHeader(allYears, months []string) []string {
	unique := make(map[string]bool, len(allYears))
	years := make([]string, 0, len(allYears))
	for _, y := range allYears {
		if !unique[y] {
			unique[y] = true
			years = append(years, y)
		}
	}
	sort.Slice(years, func(i, j int) bool {
		yi, erri := strconv.Atoi(years[i])
		yj, errj := strconv.Atoi(years[j])
		if erri == nil && errj == nil {
			return yi < yj
		}
		return years[i] < years[j]
	})

	header := make([]string, 0, 1+len(years)*len(months))
	header = append(header, "Route")
	for _, y := range years {
		for _, m := range months {
			header = append(header, y+"-"+m)
		}
	}
	return header
}
