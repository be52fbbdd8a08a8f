// Package export writes collected channel batches to disk as
// semicolon-delimited CSV or as a spreadsheet workbook.
package export

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/csouto/channel-scout/internal/scout"
)

const (
	// FormatCSV and FormatXLSX are the supported export formats.
	FormatCSV  = "csv"
	FormatXLSX = "xlsx"

	sheetName = "Channels"
	bom       = "\ufeff"
)

// Writer exports channel batches into a target directory.
type Writer struct {
	dir    string
	logger *zap.Logger
}

// NewWriter constructs a Writer rooted at dir.
func NewWriter(dir string, logger *zap.Logger) *Writer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Writer{dir: dir, logger: logger}
}

// Export writes records to <dir>/<filename>.<format> and returns the written
// path. An empty batch writes nothing and returns an empty path.
func (w *Writer) Export(records []scout.Record, filename, format string) (string, error) {
	if len(records) == 0 {
		w.logger.Warn("nothing to export", zap.String("filename", filename))
		return "", nil
	}
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return "", fmt.Errorf("create export dir: %w", err)
	}

	header, rows := tabulate(records)
	path := filepath.Join(w.dir, filename+"."+format)
	var err error
	switch format {
	case FormatCSV:
		err = writeCSV(path, header, rows)
	case FormatXLSX:
		err = writeXLSX(path, header, rows)
	default:
		return "", fmt.Errorf("unsupported export format %q", format)
	}
	if err != nil {
		return "", err
	}
	w.logger.Info("export written",
		zap.String("path", path),
		zap.Int("rows", len(rows)),
	)
	return path, nil
}

// tabulate flattens records into a header plus aligned rows: canonical
// columns first, then any extra fields in encounter order.
func tabulate(records []scout.Record) ([]string, [][]string) {
	seen := make(map[string]struct{})
	header := []string{}
	for _, name := range scout.Columns() {
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		header = append(header, name)
	}

	maps := make([]map[string]string, len(records))
	for i, record := range records {
		row := make(map[string]string)
		for _, field := range record.Fields() {
			if _, dup := row[field.Name]; dup {
				continue
			}
			row[field.Name] = field.Value
			if _, known := seen[field.Name]; !known {
				seen[field.Name] = struct{}{}
				header = append(header, field.Name)
			}
		}
		maps[i] = row
	}

	rows := make([][]string, len(maps))
	for i, row := range maps {
		line := make([]string, len(header))
		for j, name := range header {
			line[j] = row[name]
		}
		rows[i] = line
	}
	return header, rows
}

func writeCSV(path string, header []string, rows [][]string) error {
	tmp := path + ".tmp"
	file, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create export: %w", err)
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
	if err := writer.Write(header); err != nil {
		return cleanup(fmt.Errorf("write header: %w", err))
	}
	for _, row := range rows {
		if err := writer.Write(row); err != nil {
			return cleanup(fmt.Errorf("write row: %w", err))
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return cleanup(fmt.Errorf("flush export: %w", err))
	}
	if err := file.Sync(); err != nil {
		return cleanup(fmt.Errorf("sync export: %w", err))
	}
	if err := file.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("close export: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("replace export: %w", err)
	}
	return nil
}

func writeXLSX(path string, header []string, rows [][]string) error {
	book := excelize.NewFile()
	defer book.Close()

	index, err := book.NewSheet(sheetName)
	if err != nil {
		return fmt.Errorf("create sheet: %w", err)
	}
	book.SetActiveSheet(index)
	if err := book.DeleteSheet("Sheet1"); err != nil {
		return fmt.Errorf("drop default sheet: %w", err)
	}

	writeRow := func(rowIndex int, cells []string) error {
		cell, err := excelize.CoordinatesToCellName(1, rowIndex)
		if err != nil {
			return err
		}
		values := make([]any, len(cells))
		for i, v := range cells {
			values[i] = v
		}
		return book.SetSheetRow(sheetName, cell, &values)
	}

	if err := writeRow(1, header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for i, row := range rows {
		if err := writeRow(i+2, row); err != nil {
			return fmt.Errorf("write row %d: %w", i+1, err)
		}
	}
	if err := book.SaveAs(path); err != nil {
		return fmt.Errorf("save workbook: %w", err)
	}
	return nil
}
