package master

import (
	"encoding/csv"
	"fmt"
	"os"
	"strings"

	"github.com/csouto/channel-scout/internal/scout"
)

const bom = "\ufeff"

// table is the in-memory form of the ledger file: an ordered header and one
// string-keyed row per channel.
type table struct {
	header []string
	rows   []map[string]string
}

// readTable parses the semicolon-delimited ledger. Spurious unnamed index
// columns accumulated from prior tabular round-trips are stripped before use.
func readTable(path string) (table, error) {
	file, err := os.Open(path)
	if err != nil {
		return table{}, err
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.Comma = ';'
	reader.FieldsPerRecord = -1
	records, err := reader.ReadAll()
	if err != nil {
		return table{}, fmt.Errorf("parse ledger: %w", err)
	}
	if len(records) == 0 {
		return table{}, nil
	}

	rawHeader := records[0]
	if len(rawHeader) > 0 {
		rawHeader[0] = strings.TrimPrefix(rawHeader[0], bom)
	}

	keep := make([]int, 0, len(rawHeader))
	header := make([]string, 0, len(rawHeader))
	for i, name := range rawHeader {
		if name == "" || strings.Contains(name, "Unnamed") {
			continue
		}
		keep = append(keep, i)
		header = append(header, name)
	}

	rows := make([]map[string]string, 0, len(records)-1)
	for _, record := range records[1:] {
		row := make(map[string]string, len(keep))
		for j, i := range keep {
			if i < len(record) {
				row[header[j]] = record[i]
			}
		}
		rows = append(rows, row)
	}
	return table{header: header, rows: rows}, nil
}

// writeTable rewrites the ledger atomically with a UTF-8 BOM and the given
// header order. Missing cells are written empty.
func writeTable(path string, t table) error {
	tmp := path + ".tmp"
	file, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create temp ledger: %w", err)
	}

	cleanup := func(err error) error {
		file.Close()
		os.Remove(tmp)
		return err
	}

	if _, err := file.WriteString(bom); err != nil {
		return cleanup(fmt.Errorf("write bom: %w", err))
	}

	writer := csv.NewWriter(file)
	writer.Comma = ';'
	if err := writer.Write(t.header); err != nil {
		return cleanup(fmt.Errorf("write header: %w", err))
	}
	line := make([]string, len(t.header))
	for _, row := range t.rows {
		for i, name := range t.header {
			line[i] = row[name]
		}
		if err := writer.Write(line); err != nil {
			return cleanup(fmt.Errorf("write row: %w", err))
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return cleanup(fmt.Errorf("flush ledger: %w", err))
	}

	if err := file.Sync(); err != nil {
		return cleanup(fmt.Errorf("sync ledger: %w", err))
	}
	if err := file.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("close ledger: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("replace ledger: %w", err)
	}
	return nil
}

// orderedHeader builds the canonical column order: every preferred column
// first (back-filled even when absent from the data), then any remaining
// columns in their original encounter order, duplicates removed.
func orderedHeader(encounterOrder []string) []string {
	header := make([]string, 0, len(encounterOrder))
	seen := make(map[string]struct{})
	for _, name := range scout.Columns() {
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		header = append(header, name)
	}
	for _, name := range encounterOrder {
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		header = append(header, name)
	}
	return header
}

// recordRow flattens a record into a row map plus its field encounter order.
func recordRow(record scout.Record) (map[string]string, []string) {
	fields := record.Fields()
	row := make(map[string]string, len(fields))
	order := make([]string, 0, len(fields))
	for _, field := range fields {
		if _, dup := row[field.Name]; dup {
			continue
		}
		row[field.Name] = field.Value
		order = append(order, field.Name)
	}
	return row, order
}
