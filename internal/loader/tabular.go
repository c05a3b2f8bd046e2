package loader

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// row is one input record keyed by lowercased column name.
type row map[string]string

// readRows loads a tabular file. A .json file holds an array of objects;
// anything else reads as CSV with a header line.
func readRows(path string) ([]row, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	if strings.EqualFold(filepath.Ext(path), ".json") {
		return readJSONRows(f)
	}
	return readCSVRows(f)
}

func readCSVRows(r io.Reader) ([]row, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	header, err := cr.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	cols := make([]string, len(header))
	for i, h := range header {
		cols[i] = strings.ToLower(strings.TrimSpace(h))
	}
	var rows []row
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row: %w", err)
		}
		rw := make(row, len(cols))
		for i, v := range rec {
			if i < len(cols) {
				rw[cols[i]] = strings.TrimSpace(v)
			}
		}
		rows = append(rows, rw)
	}
	return rows, nil
}

func readJSONRows(r io.Reader) ([]row, error) {
	var raw []map[string]any
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode json rows: %w", err)
	}
	rows := make([]row, 0, len(raw))
	for _, m := range raw {
		rw := make(row, len(m))
		for k, v := range m {
			rw[strings.ToLower(k)] = scalarText(v)
		}
		rows = append(rows, rw)
	}
	return rows, nil
}

// scalarText renders a decoded JSON value the way it would appear in a CSV
// cell.
func scalarText(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(val)
	case bool:
		return strconv.FormatBool(val)
	case float64:
		if val == float64(int64(val)) {
			return strconv.FormatInt(int64(val), 10)
		}
		return strconv.FormatFloat(val, 'f', -1, 64)
	default:
		return fmt.Sprintf("%v", v)
	}
}
