// Package history owns the JSON document of past crawl sessions: append,
// lookup, age-based pruning, and migration from the legacy on-disk format.
package history

import (
	"fmt"
	"os"
	"sync"
	"time"

	json "github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/csouto/channel-scout/internal/metrics"
	"github.com/csouto/channel-scout/internal/scout"
)

const (
	defaultMaxPreview = 5
	defaultCooldown   = 7 * 24 * time.Hour
)

// document is the on-disk envelope. A legacy file may instead hold a bare
// array of sessions; load upgrades it transparently.
type document struct {
	Created     string          `json:"created"`
	LastCleanup string          `json:"last_cleanup"`
	Sessions    []scout.Session `json:"sessions"`
}

// Options tunes store behavior; zero values select the defaults.
type Options struct {
	// MaxPreview bounds the number of records persisted per session.
	MaxPreview int
	// Cooldown is the minimum interval between automatic prunes.
	Cooldown time.Duration
}

// Store reads and rewrites the history document. All mutating operations
// rewrite the whole file atomically; safe only under the tool's
// single-writer assumption.
type Store struct {
	path       string
	clock      scout.Clock
	logger     *zap.Logger
	maxPreview int
	cooldown   time.Duration

	mu sync.Mutex
}

// New constructs a Store over the document at path.
func New(path string, clock scout.Clock, logger *zap.Logger, opts Options) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.MaxPreview <= 0 {
		opts.MaxPreview = defaultMaxPreview
	}
	if opts.Cooldown <= 0 {
		opts.Cooldown = defaultCooldown
	}
	return &Store{
		path:       path,
		clock:      clock,
		logger:     logger,
		maxPreview: opts.MaxPreview,
		cooldown:   opts.Cooldown,
	}
}

// Append adds a session to the end of the document and persists immediately.
// The stored copy has its preview truncated; the caller's session is left
// untouched.
func (s *Store) Append(session scout.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc := s.load()
	if len(session.DataPreview) > s.maxPreview {
		session.DataPreview = session.DataPreview[:s.maxPreview]
	}
	doc.Sessions = append(doc.Sessions, session)
	if err := s.save(doc); err != nil {
		return fmt.Errorf("append session: %w", err)
	}
	metrics.SetHistorySessions(len(doc.Sessions))
	return nil
}

// PruneResult reports what a prune pass did.
type PruneResult struct {
	Removed int
	Kept    int
	Skipped bool
	Reason  string
}

// Prune removes sessions older than maxAgeDays. In auto mode (force false)
// it is a no-op while the cooldown since the last cleanup has not elapsed.
// Sessions with missing or unparseable timestamps are kept.
func (s *Store) Prune(maxAgeDays int, force bool) (PruneResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc := s.load()
	if len(doc.Sessions) == 0 {
		return PruneResult{Skipped: true, Reason: "no sessions to clean"}, nil
	}

	now := s.clock.Now()
	if !force {
		if last, ok := parseTimestamp(doc.LastCleanup); ok && now.Sub(last) < s.cooldown {
			return PruneResult{Skipped: true, Reason: "last cleanup ran recently"}, nil
		}
	}

	cutoff := now.AddDate(0, 0, -maxAgeDays)
	kept := doc.Sessions[:0:0]
	removed := 0
	for _, session := range doc.Sessions {
		ts, ok := parseTimestamp(session.Timestamp)
		if !ok || !ts.Before(cutoff) {
			kept = append(kept, session)
			continue
		}
		removed++
	}

	if removed == 0 {
		return PruneResult{Kept: len(kept), Skipped: true, Reason: "no old sessions to remove"}, nil
	}

	doc.Sessions = kept
	doc.LastCleanup = now.Format(time.RFC3339)
	if err := s.save(doc); err != nil {
		return PruneResult{}, fmt.Errorf("prune sessions: %w", err)
	}
	metrics.ObservePrunedSessions(removed)
	metrics.SetHistorySessions(len(kept))
	s.logger.Info("pruned old sessions",
		zap.Int("removed", removed),
		zap.Int("kept", len(kept)),
		zap.Int("max_age_days", maxAgeDays),
	)
	return PruneResult{Removed: removed, Kept: len(kept)}, nil
}

// LoadIDs returns the set of every channel id recorded in any session.
func (s *Store) LoadIDs() map[string]struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make(map[string]struct{})
	doc := s.load()
	for _, session := range doc.Sessions {
		for _, record := range session.DataPreview {
			if record.ID != "" {
				ids[record.ID] = struct{}{}
			}
		}
	}
	return ids
}

// Lookup partitions the requested ids into records found in history and ids
// never seen. When an id appears in several sessions the record from the
// most recently appended session wins.
func (s *Store) Lookup(ids []string) (cached []scout.Record, uncached []string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc := s.load()
	known := make(map[string]scout.Record)
	for i := len(doc.Sessions) - 1; i >= 0; i-- {
		for _, record := range doc.Sessions[i].DataPreview {
			if record.ID == "" {
				continue
			}
			if _, seen := known[record.ID]; !seen {
				known[record.ID] = record
			}
		}
	}

	for _, id := range ids {
		if record, ok := known[id]; ok {
			cached = append(cached, record)
		} else {
			uncached = append(uncached, id)
		}
	}
	return cached, uncached
}

// Clear resets the document to an empty session list; the envelope survives
// with fresh timestamps. Clearing the cache and clearing the history are the
// same operation because the cache is a view over this document.
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now().Format(time.RFC3339)
	doc := document{Created: now, LastCleanup: now, Sessions: []scout.Session{}}
	if err := s.save(doc); err != nil {
		return fmt.Errorf("clear history: %w", err)
	}
	metrics.SetHistorySessions(0)
	return nil
}

// Stats summarizes the document for operator display.
type Stats struct {
	Exists           bool
	SessionCount     int
	CachedChannels   int
	OldestSession    string
	OldestAgeDays    int
	SessionsToExpire int
}

// Stats reports session and cache counts plus expiry information for the
// configured retention window.
func (s *Store) Stats(maxAgeDays int) Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	stats := Stats{}
	if _, err := os.Stat(s.path); err != nil {
		return stats
	}
	stats.Exists = true

	doc := s.load()
	stats.SessionCount = len(doc.Sessions)

	ids := make(map[string]struct{})
	var oldest time.Time
	expired := 0
	cutoff := s.clock.Now().AddDate(0, 0, -maxAgeDays)
	for _, session := range doc.Sessions {
		if ts, ok := parseTimestamp(session.Timestamp); ok {
			if oldest.IsZero() || ts.Before(oldest) {
				oldest = ts
			}
			if ts.Before(cutoff) {
				expired++
			}
		}
		for _, record := range session.DataPreview {
			if record.ID != "" {
				ids[record.ID] = struct{}{}
			}
		}
	}
	stats.CachedChannels = len(ids)
	stats.SessionsToExpire = expired
	if !oldest.IsZero() {
		stats.OldestSession = oldest.Format("2006-01-02")
		stats.OldestAgeDays = int(s.clock.Now().Sub(oldest).Hours() / 24)
	}
	return stats
}

// load reads the document, upgrading the legacy bare-array layout and
// treating absent, empty, or corrupt files as an empty envelope. Corruption
// is reported to the operator through the log, never as a fatal error.
func (s *Store) load() document {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.Warn("history file unreadable, starting empty", zap.Error(err))
		}
		return s.emptyDocument()
	}
	if len(data) == 0 {
		return s.emptyDocument()
	}

	var doc document
	if err := json.Unmarshal(data, &doc); err == nil && doc.Sessions != nil {
		return doc
	}

	// Legacy layout: a bare array of sessions with no envelope.
	var legacy []scout.Session
	if err := json.Unmarshal(data, &legacy); err == nil {
		s.logger.Info("migrating history from legacy format", zap.Int("sessions", len(legacy)))
		doc = s.emptyDocument()
		doc.Sessions = legacy
		if err := s.save(doc); err != nil {
			s.logger.Warn("persisting migrated history failed", zap.Error(err))
		}
		return doc
	}

	s.logger.Warn("history file corrupt, starting empty", zap.String("path", s.path))
	return s.emptyDocument()
}

func (s *Store) emptyDocument() document {
	now := s.clock.Now().Format(time.RFC3339)
	return document{Created: now, LastCleanup: now, Sessions: []scout.Session{}}
}

// save rewrites the document atomically: temp file, fsync, rename.
func (s *Store) save(doc document) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal history: %w", err)
	}

	tmp := s.path + ".tmp"
	file, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create temp history: %w", err)
	}
	if _, err := file.Write(data); err != nil {
		file.Close()
		os.Remove(tmp)
		return fmt.Errorf("write history: %w", err)
	}
	if err := file.Sync(); err != nil {
		file.Close()
		os.Remove(tmp)
		return fmt.Errorf("sync history: %w", err)
	}
	if err := file.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("close history: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replace history: %w", err)
	}
	return nil
}

// parseTimestamp accepts RFC 3339 as written by this tool and the
// zone-less ISO form the legacy implementation produced.
func parseTimestamp(value string) (time.Time, bool) {
	if value == "" {
		return time.Time{}, false
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05.999999999", "2006-01-02 15:04:05"} {
		if ts, err := time.Parse(layout, value); err == nil {
			return ts, true
		}
	}
	return time.Time{}, false
}
