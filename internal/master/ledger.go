// Package master maintains the cross-session ledger of every channel ever
// collected: one semicolon-delimited row per channel id, deduplicated on
// merge, with bookkeeping for when and from which export a row arrived.
package master

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/csouto/channel-scout/internal/metrics"
	"github.com/csouto/channel-scout/internal/scout"
)

// Ledger owns the master file. Every merge rewrites it wholesale; a failed
// merge leaves the previous file untouched.
type Ledger struct {
	path   string
	clock  scout.Clock
	logger *zap.Logger

	mu sync.Mutex
}

// New constructs a Ledger over the file at path.
func New(path string, clock scout.Clock, logger *zap.Logger) *Ledger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Ledger{path: path, clock: clock, logger: logger}
}

// MergeResult reports what a merge pass wrote.
type MergeResult struct {
	New     int
	Updated int
}

// Merge folds a batch of records into the ledger. Records whose channel id
// is already present replace the prior row and advance its update count;
// the rest are appended as first sightings. After any merge exactly one row
// exists per distinct channel id.
func (l *Ledger) Merge(records []scout.Record, sourceLabel string) (MergeResult, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if len(records) == 0 {
		return MergeResult{}, nil
	}

	now := l.clock.Now().Format("2006-01-02 15:04:05")
	incoming := make([]map[string]string, 0, len(records))
	encounter := []string{}
	ids := make(map[string]int, len(records))
	for _, record := range records {
		record.AddedToMaster = now
		record.SourceFile = sourceLabel
		record.MasterUpdateCount = 1
		row, order := recordRow(record)
		// Last occurrence in the batch wins for a repeated id.
		if i, dup := ids[normalizeID(row["channel_id"])]; dup {
			incoming[i] = row
			continue
		}
		ids[normalizeID(row["channel_id"])] = len(incoming)
		incoming = append(incoming, row)
		encounter = append(encounter, order...)
	}

	existing, err := l.loadExisting()
	if err != nil {
		return MergeResult{}, err
	}

	existingIDs := make(map[string]int, len(existing.rows))
	for i, row := range existing.rows {
		existingIDs[normalizeID(row["channel_id"])] = i
	}

	result := MergeResult{}
	keptRows := make([]map[string]string, 0, len(existing.rows)+len(incoming))
	replaced := make(map[int]struct{})
	updatedRows := make([]map[string]string, 0)
	newRows := make([]map[string]string, 0)
	for _, row := range incoming {
		id := normalizeID(row["channel_id"])
		if i, present := existingIDs[id]; present {
			replaced[i] = struct{}{}
			row["master_update_count"] = strconv.Itoa(updateCount(existing.rows[i]) + 1)
			updatedRows = append(updatedRows, row)
			result.Updated++
		} else {
			newRows = append(newRows, row)
			result.New++
		}
	}
	for i, row := range existing.rows {
		if _, gone := replaced[i]; !gone {
			keptRows = append(keptRows, row)
		}
	}
	keptRows = append(keptRows, newRows...)
	keptRows = append(keptRows, updatedRows...)

	header := orderedHeader(append(append([]string{}, existing.header...), encounter...))
	if err := l.persist(table{header: header, rows: keptRows}); err != nil {
		return MergeResult{}, err
	}
	metrics.ObserveLedgerMerge(result.New, result.Updated)
	l.logger.Info("master ledger updated",
		zap.Int("new", result.New),
		zap.Int("updated", result.Updated),
		zap.String("source", sourceLabel),
	)
	return result, nil
}

// Deduplicate collapses rows sharing a channel id, keeping the last
// occurrence in file order. The file is rewritten only when duplicates were
// found. Returns the number of rows removed.
func (l *Ledger) Deduplicate() (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, err := os.Stat(l.path); err != nil {
		if os.IsNotExist(err) {
			return 0, fmt.Errorf("master file does not exist")
		}
		return 0, fmt.Errorf("stat ledger: %w", err)
	}

	t, err := readTable(l.path)
	if err != nil {
		return 0, err
	}

	lastIndex := make(map[string]int, len(t.rows))
	for i, row := range t.rows {
		lastIndex[normalizeID(row["channel_id"])] = i
	}
	if len(lastIndex) == len(t.rows) {
		return 0, nil
	}

	kept := make([]map[string]string, 0, len(lastIndex))
	for i, row := range t.rows {
		if lastIndex[normalizeID(row["channel_id"])] == i {
			kept = append(kept, row)
		}
	}
	removed := len(t.rows) - len(kept)
	t.rows = kept
	if err := l.persist(t); err != nil {
		return 0, err
	}
	l.logger.Info("removed duplicate ledger rows", zap.Int("removed", removed))
	return removed, nil
}

// Rows returns the current ledger contents; absent file means no rows.
func (l *Ledger) Rows() ([]map[string]string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	t, err := l.loadExisting()
	if err != nil {
		return nil, err
	}
	return t.rows, nil
}

func (l *Ledger) loadExisting() (table, error) {
	t, err := readTable(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return table{}, nil
		}
		return table{}, fmt.Errorf("read ledger: %w", err)
	}
	return t, nil
}

func (l *Ledger) persist(t table) error {
	if dir := filepath.Dir(l.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create ledger dir: %w", err)
		}
	}
	return writeTable(l.path, t)
}

func normalizeID(id string) string {
	return strings.TrimSpace(id)
}

func updateCount(row map[string]string) int {
	count, err := strconv.Atoi(strings.TrimSpace(row["master_update_count"]))
	if err != nil || count < 1 {
		return 1
	}
	return count
}
