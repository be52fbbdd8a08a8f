package master

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/csouto/channel-scout/internal/scout"
)

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

var testNow = time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)

func newTestLedger(t *testing.T) (*Ledger, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "MASTER", "channels_master.csv")
	return New(path, fixedClock{now: testNow}, nil), path
}

func record(id, title string) scout.Record {
	return scout.Record{ID: id, Title: title, SubscriberCount: 1500, ChannelSize: "Small"}
}

func TestMergeFirstSighting(t *testing.T) {
	t.Parallel()
	ledger, path := newTestLedger(t)

	result, err := ledger.Merge([]scout.Record{record("chA", "Alpha"), record("chB", "Beta")}, "run1.csv")
	require.NoError(t, err)
	require.Equal(t, 2, result.New)
	require.Zero(t, result.Updated)

	rows, err := ledger.Rows()
	require.NoError(t, err)
	require.Len(t, rows, 2)
	for _, row := range rows {
		require.Equal(t, "1", row["master_update_count"])
		require.Equal(t, "run1.csv", row["source_file"])
		require.Equal(t, "2026-03-15 12:00:00", row["added_to_master"])
	}

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(string(data), "\ufeff"))
	require.Contains(t, strings.SplitN(string(data), "\n", 2)[0], ";")
}

func TestMergeIncrementsUpdateCount(t *testing.T) {
	t.Parallel()
	ledger, _ := newTestLedger(t)

	_, err := ledger.Merge([]scout.Record{record("chA", "Alpha")}, "run1.csv")
	require.NoError(t, err)

	result, err := ledger.Merge([]scout.Record{record("chA", "Alpha Renamed"), record("chB", "Beta")}, "run2.csv")
	require.NoError(t, err)
	require.Equal(t, 1, result.New)
	require.Equal(t, 1, result.Updated)

	rows, err := ledger.Rows()
	require.NoError(t, err)
	require.Len(t, rows, 2)
	byID := map[string]map[string]string{}
	for _, row := range rows {
		byID[row["channel_id"]] = row
	}
	require.Equal(t, "2", byID["chA"]["master_update_count"])
	require.Equal(t, "Alpha Renamed", byID["chA"]["channel_title"])
	require.Equal(t, "run2.csv", byID["chA"]["source_file"])
	require.Equal(t, "1", byID["chB"]["master_update_count"])

	// A third sighting keeps counting.
	_, err = ledger.Merge([]scout.Record{record("chA", "Alpha Again")}, "run3.csv")
	require.NoError(t, err)
	rows, err = ledger.Rows()
	require.NoError(t, err)
	for _, row := range rows {
		if row["channel_id"] == "chA" {
			require.Equal(t, "3", row["master_update_count"])
		}
	}
}

func TestMergeIsIdempotentOnRowCount(t *testing.T) {
	t.Parallel()
	ledger, _ := newTestLedger(t)

	batch := []scout.Record{record("chA", "Alpha"), record("chB", "Beta")}
	for i := 0; i < 3; i++ {
		_, err := ledger.Merge(batch, "run.csv")
		require.NoError(t, err)
	}

	rows, err := ledger.Rows()
	require.NoError(t, err)
	require.Len(t, rows, 2)
}

func TestMergeLastOccurrenceWinsWithinBatch(t *testing.T) {
	t.Parallel()
	ledger, _ := newTestLedger(t)

	_, err := ledger.Merge([]scout.Record{record("chA", "First"), record("chA", "Last")}, "run.csv")
	require.NoError(t, err)

	rows, err := ledger.Rows()
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, "Last", rows[0]["channel_title"])
}

func TestColumnOrderStableWithExtras(t *testing.T) {
	t.Parallel()
	ledger, path := newTestLedger(t)

	withExtra := record("chA", "Alpha")
	withExtra.Extra = map[string]string{"custom_field_x": "42"}
	_, err := ledger.Merge([]scout.Record{withExtra}, "run1.csv")
	require.NoError(t, err)

	first, err := readTable(path)
	require.NoError(t, err)

	canonical := scout.Columns()
	require.GreaterOrEqual(t, len(first.header), len(canonical))
	require.Equal(t, canonical, first.header[:len(canonical)])
	require.Contains(t, first.header, "custom_field_x")

	// A later merge without the extra keeps the column and the order.
	_, err = ledger.Merge([]scout.Record{record("chB", "Beta")}, "run2.csv")
	require.NoError(t, err)
	second, err := readTable(path)
	require.NoError(t, err)
	require.Equal(t, first.header, second.header)
}

func TestDeduplicateKeepsLast(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "master.csv")
	content := "\ufeff" + strings.Join([]string{
		"channel_id;channel_title",
		"chA;Old",
		"chB;Beta",
		"chA;New",
	}, "\n") + "\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	ledger := New(path, fixedClock{now: testNow}, nil)
	removed, err := ledger.Deduplicate()
	require.NoError(t, err)
	require.Equal(t, 1, removed)

	rows, err := ledger.Rows()
	require.NoError(t, err)
	require.Len(t, rows, 2)
	byID := map[string]string{}
	for _, row := range rows {
		byID[row["channel_id"]] = row["channel_title"]
	}
	require.Equal(t, "New", byID["chA"])
}

func TestDeduplicateMissingFile(t *testing.T) {
	t.Parallel()
	ledger := New(filepath.Join(t.TempDir(), "absent.csv"), fixedClock{now: testNow}, nil)
	_, err := ledger.Deduplicate()
	require.Error(t, err)
	require.Contains(t, err.Error(), "does not exist")
}

func TestReadTableStripsUnnamedColumns(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "master.csv")
	content := strings.Join([]string{
		"channel_id;Unnamed: 0;channel_title",
		"chA;0;Alpha",
	}, "\n") + "\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	table, err := readTable(path)
	require.NoError(t, err)
	require.Equal(t, []string{"channel_id", "channel_title"}, table.header)
	require.Equal(t, "Alpha", table.rows[0]["channel_title"])
	require.NotContains(t, table.rows[0], "Unnamed: 0")
}

func TestFailedMergeLeavesFileUntouched(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "master.csv")
	// An unbalanced quote makes the existing file unparseable.
	require.NoError(t, os.WriteFile(path, []byte("channel_id;channel_title\n\"chA;broken\n"), 0o644))
	before, err := os.ReadFile(path)
	require.NoError(t, err)

	ledger := New(path, fixedClock{now: testNow}, nil)
	_, err = ledger.Merge([]scout.Record{record("chB", "Beta")}, "run.csv")
	require.Error(t, err)

	after, readErr := os.ReadFile(path)
	require.NoError(t, readErr)
	require.Equal(t, before, after)
}
