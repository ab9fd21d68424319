// Package dataset defines the fixed dataset enumerations swept by the
// orchestrator and the path derivations shared by the fetch and parse steps.
package dataset

import (
	"fmt"
	"path/filepath"
)

// Type identifies a transit dataset category.
type Type string

// Dataset categories published by the agency's reporting portal.
const (
	TypeOTP       Type = "otp"
	TypeRidership Type = "ridership"
)

// TimePeriod identifies a service-day classification.
type TimePeriod string

// Service-day classifications.
const (
	PeriodSaturday TimePeriod = "saturday"
	PeriodSunday   TimePeriod = "sunday"
	PeriodWeekday  TimePeriod = "weekday"
)

// Types returns the dataset categories in sweep order.
func Types() []Type {
	return []Type{TypeOTP, TypeRidership}
}

// Periods returns the service-day classifications in sweep order.
func Periods() []TimePeriod {
	return []TimePeriod{PeriodSaturday, PeriodSunday, PeriodWeekday}
}

// ParseType validates a dataset category string.
func ParseType(s string) (Type, error) {
	switch Type(s) {
	case TypeOTP, TypeRidership:
		return Type(s), nil
	}
	return "", fmt.Errorf("unknown dataset type %q", s)
}

// ParsePeriod validates a service-day classification string.
func ParsePeriod(s string) (TimePeriod, error) {
	switch TimePeriod(s) {
	case PeriodSaturday, PeriodSunday, PeriodWeekday:
		return TimePeriod(s), nil
	}
	return "", fmt.Errorf("unknown time period %q", s)
}

// Pair is one (Type, TimePeriod) combination, the unit of work for one
// concurrent pipeline.
type Pair struct {
	Type   Type
	Period TimePeriod
}

// Pairs returns the full cross product of types and periods.
func Pairs() []Pair {
	pairs := make([]Pair, 0, len(Types())*len(Periods()))
	for _, t := range Types() {
		for _, p := range Periods() {
			pairs = append(pairs, Pair{Type: t, Period: p})
		}
	}
	return pairs
}

// String renders the pair as "<type>/<period>".
func (p Pair) String() string {
	return fmt.Sprintf("%s/%s", p.Type, p.Period)
}

// ParsedDataDirName is the shared subdirectory of the export root that
// receives every pair's combined CSV.
const ParsedDataDirName = "parsed_data"

// ExportDirName returns the pair's raw export directory name.
func (p Pair) ExportDirName() string {
	return fmt.Sprintf("%s-%s-data", p.Type, p.Period)
}

// CSVName returns the pair's combined CSV file name.
func (p Pair) CSVName() string {
	return p.ExportDirName() + ".csv"
}

// RequestBodyName returns the file name of the pair's request-body template.
func (p Pair) RequestBodyName() string {
	return fmt.Sprintf("%s_%s.json", p.Type, p.Period)
}

// ExportDir resolves the pair's raw export directory under root.
func (p Pair) ExportDir(root string) string {
	return filepath.Join(root, p.ExportDirName())
}

// ExportGlob returns the glob matching every JSON file the fetch step wrote
// for this pair.
func (p Pair) ExportGlob(root string) string {
	return filepath.Join(p.ExportDir(root), "*.json")
}

// CSVPath resolves the pair's combined CSV under the shared parsed_data
// directory.
func (p Pair) CSVPath(root string) string {
	return filepath.Join(root, ParsedDataDirName, p.CSVName())
}

// RequestBodyPath resolves the pair's request-body template under dir.
func (p Pair) RequestBodyPath(dir string) string {
	return filepath.Join(dir, p.RequestBodyName())
}
