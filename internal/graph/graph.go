// Package graph renders a combined CSV into an interactive monthly line
// chart with one line per route.
package graph

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
	"go.uber.org/zap"
)

var timeColumn = regexp.MustCompile(`^(\d{4})-(Jan|Feb|Mar|Apr|May|Jun|Jul|Aug|Sep|Oct|Nov|Dec)$`)

var monthIndex = map[string]int{
	"Jan": 1, "Feb": 2, "Mar": 3, "Apr": 4, "May": 5, "Jun": 6,
	"Jul": 7, "Aug": 8, "Sep": 9, "Oct": 10, "Nov": 11, "Dec": 12,
}

// Series holds one route's values aligned to Chart.Columns. Missing months
// are nil and render as gaps.
type Series struct {
	Route  string
	Values []*float64
}

// Chart is the reshaped model of a combined CSV: chronologically ordered
// year-month columns and one series per route.
type Chart struct {
	Columns []string
	Series  []Series
}

// LoadCSV reads a combined CSV (Route plus YYYY-Mon columns) and reshapes it
// for charting. Header columns that are not a year-month are ignored, empty
// or non-numeric cells become gaps, and columns are reordered
// chronologically regardless of their position in the file.
func LoadCSV(path string) (*Chart, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open csv: %w", err)
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read csv %s: %w", path, err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("csv %s is empty", path)
	}
	header := records[0]
	if len(header) == 0 || header[0] != "Route" {
		return nil, fmt.Errorf("csv %s: first column must be Route", path)
	}

	type indexedColumn struct {
		label string
		index int
		year  int
		month int
	}
	var columns []indexedColumn
	for i, name := range header[1:] {
		m := timeColumn.FindStringSubmatch(name)
		if m == nil {
			continue
		}
		year, _ := strconv.Atoi(m[1])
		columns = append(columns, indexedColumn{
			label: name,
			index: i + 1,
			year:  year,
			month: monthIndex[m[2]],
		})
	}
	sort.Slice(columns, func(i, j int) bool {
		if columns[i].year != columns[j].year {
			return columns[i].year < columns[j].year
		}
		return columns[i].month < columns[j].month
	})

	chart := &Chart{}
	for _, col := range columns {
		chart.Columns = append(chart.Columns, col.label)
	}
	for _, row := range records[1:] {
		if len(row) == 0 || row[0] == "" {
			continue
		}
		series := Series{Route: row[0], Values: make([]*float64, len(columns))}
		for pos, col := range columns {
			if col.index >= len(row) || row[col.index] == "" {
				continue
			}
			value, err := strconv.ParseFloat(row[col.index], 64)
			if err != nil {
				continue
			}
			v := value
			series.Values[pos] = &v
		}
		chart.Series = append(chart.Series, series)
	}
	sort.Slice(chart.Series, func(i, j int) bool {
		return chart.Series[i].Route < chart.Series[j].Route
	})
	return chart, nil
}

const defaultTitle = "On-Time Performance by Route (Monthly)"

// Options controls chart rendering.
type Options struct {
	Title string
}

// Renderer turns combined CSVs into standalone chart HTML files.
type Renderer struct {
	opts   Options
	logger *zap.Logger
}

// NewRenderer constructs a Renderer.
func NewRenderer(o Options, logger *zap.Logger) *Renderer {
	if o.Title == "" {
		o.Title = defaultTitle
	}
	return &Renderer{opts: o, logger: logger}
}

// Render loads the combined CSV and writes an interactive line chart to
// outputPath. The chart carries one marked line per route over a shared
// month axis; months a route has no value for break the line.
func (r *Renderer) Render(csvPath, outputPath string) error {
	chart, err := LoadCSV(csvPath)
	if err != nil {
		return err
	}
	if len(chart.Columns) == 0 {
		return fmt.Errorf("csv %s has no year-month columns", csvPath)
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: r.opts.Title}),
		charts.WithTitleOpts(opts.Title{Title: r.opts.Title}),
		charts.WithTooltipOpts(opts.Tooltip{Show: true, Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: true}),
	)
	line.SetXAxis(chart.Columns)
	for _, series := range chart.Series {
		data := make([]opts.LineData, len(series.Values))
		for i, v := range series.Values {
			if v == nil {
				// "-" is the echarts convention for a gap in a series.
				data[i] = opts.LineData{Value: "-"}
				continue
			}
			data[i] = opts.LineData{Value: *v}
		}
		line.AddSeries(series.Route, data)
	}
	line.SetSeriesOptions(charts.WithLineChartOpts(opts.LineChart{ShowSymbol: true}))

	if dir := filepath.Dir(outputPath); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
	}
	out, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("create chart file: %w", err)
	}
	defer out.Close()
	if err := line.Render(out); err != nil {
		return fmt.Errorf("render chart: %w", err)
	}

	r.logger.Info("Chart written",
		zap.String("output", outputPath),
		zap.Int("routes", len(chart.Series)),
		zap.Int("months", len(chart.Columns)),
	)
	return nil
}
