// Package parse combines raw portal export files into one CSV per pair:
// rows are routes, columns are months repeated per year.
package parse

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// The portal reply nests the data shape result under
// results[0].result.data.dsr.DS[0]. Years live in SH[0].DM1 (key G1), month
// entries in PH[0].DM0 (key G0 indexing ValueDicts.D0), and each month
// entry's X list holds one metric value per year.
type queryResponse struct {
	Results []struct {
		Result struct {
			Data struct {
				DSR struct {
					DS []dataSegment `json:"DS"`
				} `json:"dsr"`
			} `json:"data"`
		} `json:"result"`
	} `json:"results"`
}

type dataSegment struct {
	SH []struct {
		DM1 []map[string]any `json:"DM1"`
	} `json:"SH"`
	PH []struct {
		DM0 []monthEntry `json:"DM0"`
	} `json:"PH"`
	ValueDicts struct {
		D0 []string `json:"D0"`
	} `json:"ValueDicts"`
}

type monthEntry struct {
	G0 *int             `json:"G0"`
	X  []map[string]any `json:"X"`
}

var fallbackMonths = []string{
	"Jan", "Feb", "Mar", "Apr", "May", "Jun",
	"Jul", "Aug", "Sep", "Oct", "Nov", "Dec",
}

// routeValues holds one export file's extraction: the years it reports and
// the metric keyed by "YYYY-Mon" column name.
type routeValues struct {
	years  []string
	months []string
	values map[string]float64
}

// extract pulls years, month names and per-month metric values out of one
// raw portal reply.
func extract(raw []byte) (routeValues, error) {
	var resp queryResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return routeValues{}, fmt.Errorf("decode portal reply: %w", err)
	}

	out := routeValues{
		months: fallbackMonths,
		values: make(map[string]float64),
	}

	if len(resp.Results) == 0 || len(resp.Results[0].Result.Data.DSR.DS) == 0 {
		return out, nil
	}
	segment := resp.Results[0].Result.Data.DSR.DS[0]

	out.years = extractYears(segment)
	if len(segment.ValueDicts.D0) == 12 {
		out.months = segment.ValueDicts.D0
	}

	for _, entry := range sortedMonthEntries(segment) {
		if entry.G0 == nil || *entry.G0 < 0 || *entry.G0 >= len(out.months) {
			continue
		}
		month := out.months[*entry.G0]

		// X items map positionally to years. An item carrying an "I" index
		// marks skipped prior years; the offset applies to it and to every
		// subsequent item.
		offset := 0
		for pos, item := range entry.X {
			if skip, ok := intField(item, "I"); ok && skip-pos > offset {
				offset = skip - pos
			}
			yearIdx := pos + offset
			if yearIdx < 0 || yearIdx >= len(out.years) {
				continue
			}
			key, ok := metricKey(item)
			if !ok {
				continue
			}
			if num, ok := coerceNumeric(item[key]); ok {
				out.values[out.years[yearIdx]+"-"+month] = num
			}
		}
	}

	return out, nil
}

func extractYears(segment dataSegment) []string {
	if len(segment.SH) == 0 {
		return nil
	}
	var years []string
	for _, item := range segment.SH[0].DM1 {
		if g1, ok := item["G1"]; ok && g1 != nil {
			years = append(years, formatScalar(g1))
		}
	}
	return years
}

func sortedMonthEntries(segment dataSegment) []monthEntry {
	if len(segment.PH) == 0 {
		return nil
	}
	entries := make([]monthEntry, len(segment.PH[0].DM0))
	copy(entries, segment.PH[0].DM0)
	sort.SliceStable(entries, func(i, j int) bool {
		return monthIndex(entries[i]) < monthIndex(entries[j])
	})
	return entries
}

func monthIndex(e monthEntry) int {
	if e.G0 == nil {
		return 0
	}
	return *e.G0
}

// metricKey finds the metric inside an X item: M0 preferred, otherwise the
// first key starting with M.
func metricKey(item map[string]any) (string, bool) {
	if _, ok := item["M0"]; ok {
		return "M0", true
	}
	keys := make([]string, 0, len(item))
	for k := range item {
		if strings.HasPrefix(k, "M") {
			keys = append(keys, k)
		}
	}
	if len(keys) == 0 {
		return "", false
	}
	sort.Strings(keys)
	return keys[0], true
}

func intField(item map[string]any, key string) (int, bool) {
	v, ok := item[key]
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case float64:
		return int(n), true
	case int:
		return n, true
	}
	return 0, false
}

// coerceNumeric accepts numbers and numeric strings (commas stripped) and
// rejects non-finite values.
func coerceNumeric(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		if math.IsNaN(n) || math.IsInf(n, 0) {
			return 0, false
		}
		return n, true
	case string:
		s := strings.ReplaceAll(strings.TrimSpace(n), ",", "")
		if s == "" {
			return 0, false
		}
		num, err := strconv.ParseFloat(s, 64)
		if err != nil || math.IsNaN(num) || math.IsInf(num, 0) {
			return 0, false
		}
		return num, true
	}
	return 0, false
}

// formatScalar renders a year label from whatever scalar the portal sent.
func formatScalar(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	default:
		return fmt.Sprint(v)
	}
}
