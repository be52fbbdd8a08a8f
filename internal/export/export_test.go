package export

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/csouto/channel-scout/internal/scout"
)

func records() []scout.Record {
	return []scout.Record{
		{ID: "chA", Title: "Alpha; Semicolons", SubscriberCount: 1200, Email: "a@example.com", HasEmail: true},
		{ID: "chB", Title: "Beta", SubscriberCount: 90},
	}
}

func TestExportCSV(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	writer := NewWriter(dir, nil)

	path, err := writer.Export(records(), "Youtube_Crawl_20260315_120000", FormatCSV)
	require.NoError(t, err)
	require.Equal(t, filepath.Join(dir, "Youtube_Crawl_20260315_120000.csv"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	content := string(data)
	require.True(t, strings.HasPrefix(content, "\ufeff"))

	reader := csv.NewReader(strings.NewReader(strings.TrimPrefix(content, "\ufeff")))
	reader.Comma = ';'
	reader.FieldsPerRecord = -1
	rows, err := reader.ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)

	header := rows[0]
	canonical := scout.Columns()
	require.Equal(t, canonical, header[:len(canonical)])

	col := map[string]int{}
	for i, name := range header {
		col[name] = i
	}
	require.Equal(t, "chA", rows[1][col["channel_id"]])
	require.Equal(t, "Alpha; Semicolons", rows[1][col["channel_title"]])
	require.Equal(t, "1200", rows[1][col["subscriber_count"]])
	require.Equal(t, "true", rows[1][col["has_email"]])
	require.Equal(t, "chB", rows[2][col["channel_id"]])
}

func TestExportXLSX(t *testing.T) {
	t.Parallel()
	writer := NewWriter(t.TempDir(), nil)

	path, err := writer.Export(records(), "crawl", FormatXLSX)
	require.NoError(t, err)

	book, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer book.Close()

	rows, err := book.GetRows("Channels")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	require.Equal(t, "channel_id", rows[0][0])
	require.Equal(t, "chA", rows[1][0])
}

func TestExportEmptyBatchWritesNothing(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	writer := NewWriter(dir, nil)

	path, err := writer.Export(nil, "crawl", FormatCSV)
	require.NoError(t, err)
	require.Empty(t, path)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Empty(t, entries)
}

func TestExportUnknownFormat(t *testing.T) {
	t.Parallel()
	writer := NewWriter(t.TempDir(), nil)
	_, err := writer.Export(records(), "crawl", "parquet")
	require.Error(t, err)
	require.Contains(t, err.Error(), "unsupported export format")
}

func TestExportExtraColumnsAppended(t *testing.T) {
	t.Parallel()
	writer := NewWriter(t.TempDir(), nil)

	batch := records()
	batch[0].Extra = map[string]string{"custom_field_x": "42"}
	path, err := writer.Export(batch, "crawl", FormatCSV)
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	reader := csv.NewReader(strings.NewReader(strings.TrimPrefix(string(data), "\ufeff")))
	reader.Comma = ';'
	rows, err := reader.ReadAll()
	require.NoError(t, err)

	header := rows[0]
	require.Equal(t, "custom_field_x", header[len(header)-1])
	col := len(header) - 1
	require.Equal(t, "42", rows[1][col])
	require.Equal(t, "", rows[2][col])
}
