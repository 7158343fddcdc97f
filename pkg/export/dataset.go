package export

import "fmt"

// Dataset defines tabular export content. Rows are keyed by header.
type Dataset struct {
	Title   string
	Headers []string
	Rows    []map[string]string
}

// Record returns row i in header order.
func (d Dataset) Record(i int) []string {
	record := make([]string, len(d.Headers))
	for j, header := range d.Headers {
		record[j] = d.Rows[i][header]
	}
	return record
}

func (d Dataset) validate(format string) error {
	if len(d.Headers) == 0 {
		return fmt.Errorf("%s requires at least one header", format)
	}
	return nil
}

// FromRecords rebuilds a Dataset from a header line followed by data lines.
// The header must match expected exactly, in order.
func FromRecords(records [][]string, expected []string) (Dataset, error) {
	if len(records) == 0 {
		return Dataset{}, fmt.Errorf("empty sheet")
	}
	header := records[0]
	if len(header) < len(expected) {
		return Dataset{}, fmt.Errorf("expected %d columns, got %d", len(expected), len(header))
	}
	for i, name := range expected {
		if header[i] != name {
			return Dataset{}, fmt.Errorf("column %d: expected %q, got %q", i+1, name, header[i])
		}
	}

	ds := Dataset{Headers: expected}
	for _, line := range records[1:] {
		if isBlank(line) {
			continue
		}
		row := make(map[string]string, len(expected))
		for i, name := range expected {
			if i < len(line) {
				row[name] = line[i]
			}
		}
		ds.Rows = append(ds.Rows, row)
	}
	return ds, nil
}

func isBlank(line []string) bool {
	for _, v := range line {
		if v != "" {
			return false
		}
	}
	return true
}
