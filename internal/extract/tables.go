package extract

import (
	"fmt"
	"regexp"
	"strings"
)

// noiseHeader matches header and unit columns that are not test names.
var noiseHeader = regexp.MustCompile(`(?i)(Interval|Ref|Test Name|Unit)`)

// LabResultsFromTables scans every table on every page, in order, and keeps
// the first two cells of each qualifying row. Later duplicates win.
func LabResultsFromTables(doc Document) (LabResults, error) {
	results := LabResults{}
	for p := 1; p <= doc.NumPages(); p++ {
		tables, err := doc.PageTables(p)
		if err != nil {
			return nil, fmt.Errorf("page %d tables: %w", p, err)
		}
		for _, table := range tables {
			for _, row := range table {
				name, value, ok := labPair(row)
				if ok {
					results[name] = value
				}
			}
		}
	}
	return results, nil
}

func labPair(row Row) (string, string, bool) {
	if len(row) < 2 {
		return "", "", false
	}
	name := strings.TrimSpace(row[0])
	value := strings.TrimSpace(row[1])
	if name == "" || value == "" || noiseHeader.MatchString(name) {
		return "", "", false
	}
	return name, value, true
}
