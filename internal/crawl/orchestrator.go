// Package crawl runs discovery sessions: search term by term and region by
// region, skip channels already collected, fetch details for the rest, and
// hand the batch to the exporter, the history store, and the master ledger.
package crawl

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/csouto/channel-scout/internal/history"
	"github.com/csouto/channel-scout/internal/master"
	"github.com/csouto/channel-scout/internal/metrics"
	"github.com/csouto/channel-scout/internal/progress"
	"github.com/csouto/channel-scout/internal/scout"
)

// ErrAlreadyRunning is returned when Run is called while a session is live.
var ErrAlreadyRunning = errors.New("a crawl session is already running")

// History is the slice of the history store the orchestrator needs.
type History interface {
	Append(session scout.Session) error
	LoadIDs() map[string]struct{}
	Prune(maxAgeDays int, force bool) (history.PruneResult, error)
}

// Ledger folds a finished batch into the master file.
type Ledger interface {
	Merge(records []scout.Record, sourceLabel string) (master.MergeResult, error)
}

// Config are the knobs for one session.
type Config struct {
	Terms   []string
	Regions []string

	// MaxResults is the per-search result cap, 1 to 50.
	MaxResults int
	// MaxSearchCalls bounds search calls per session. Once the ceiling is
	// reached the remaining term/region pairs are abandoned.
	MaxSearchCalls int

	Format string

	AutoCleanup bool
	MaxAgeDays  int
}

// Result summarizes a finished session.
type Result struct {
	State       scout.State
	SessionID   string
	Channels    int
	SearchCalls int
	QuotaUsed   int
	Exported    string
	Message     string
}

// Snapshot is a point-in-time view of the orchestrator for the status API.
type Snapshot struct {
	State       scout.State `json:"state"`
	SessionID   string      `json:"session_id,omitempty"`
	Fraction    float64     `json:"fraction"`
	Channels    int         `json:"channels"`
	SearchCalls int         `json:"search_calls"`
	QuotaUsed   int         `json:"quota_used"`
}

// Orchestrator drives one crawl session at a time.
type Orchestrator struct {
	api      scout.VideoAPI
	cache    scout.Cache
	history  History
	ledger   Ledger
	exporter scout.Exporter
	hub      progress.Sink
	clock    scout.Clock
	logger   *zap.Logger
	cfg      Config

	stop atomic.Bool

	mu       sync.Mutex
	running  bool
	snapshot Snapshot
}

// New wires an Orchestrator from its collaborators.
func New(api scout.VideoAPI, cache scout.Cache, hist History, ledger Ledger, exporter scout.Exporter, hub progress.Sink, clock scout.Clock, logger *zap.Logger, cfg Config) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if hub == nil {
		hub = noopSink{}
	}
	return &Orchestrator{
		api:      api,
		cache:    cache,
		history:  hist,
		ledger:   ledger,
		exporter: exporter,
		hub:      hub,
		clock:    clock,
		logger:   logger,
		cfg:      cfg,
		snapshot: Snapshot{State: scout.StateIdle},
	}
}

type noopSink struct{}

func (noopSink) Publish(progress.Event) {}

// Stop requests a cooperative stop. The session finishes the in-flight pair,
// then exports and records what it has.
func (o *Orchestrator) Stop() {
	o.stop.Store(true)
}

// Status reports the current session state.
func (o *Orchestrator) Status() Snapshot {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.snapshot
}

// Run executes one session. Only one session may be live per Orchestrator;
// concurrent calls fail fast with ErrAlreadyRunning.
func (o *Orchestrator) Run(ctx context.Context) (Result, error) {
	o.mu.Lock()
	if o.running {
		o.mu.Unlock()
		return Result{}, ErrAlreadyRunning
	}
	o.running = true
	// A stale stop request from an earlier session is cleared while the
	// guard is still held.
	o.stop.Store(false)
	sessionID := uuid.NewString()
	o.snapshot = Snapshot{State: scout.StateRunning, SessionID: sessionID}
	o.mu.Unlock()

	s := &session{id: sessionID, started: o.clock.Now()}
	result := Result{SessionID: sessionID}

	defer func() {
		if r := recover(); r != nil {
			o.logger.Error("crawl session panicked",
				zap.String("session_id", sessionID),
				zap.Any("panic", r),
			)
			s.note = fmt.Sprintf("internal error: %v", r)
			result = o.finish(s, scout.StateFailed)
		}
		o.mu.Lock()
		o.running = false
		o.snapshot.State = result.State
		o.mu.Unlock()
	}()

	if o.cfg.AutoCleanup {
		pruned, err := o.history.Prune(o.cfg.MaxAgeDays, false)
		if err != nil {
			o.logger.Warn("history cleanup failed", zap.Error(err))
		} else if !pruned.Skipped {
			o.logger.Info("history cleanup",
				zap.Int("removed", pruned.Removed),
				zap.Int("kept", pruned.Kept),
			)
		}
	}

	known := o.history.LoadIDs()
	o.logger.Info("crawl session starting",
		zap.String("session_id", sessionID),
		zap.Int("terms", len(o.cfg.Terms)),
		zap.Int("regions", len(o.cfg.Regions)),
		zap.Int("known_channels", len(known)),
	)
	o.publish(s, progress.StageSessionStart, "", "")

	state := o.runPairs(ctx, s, known)
	result = o.finish(s, state)

	if result.State == scout.StateFailed {
		return result, errors.New(result.Message)
	}
	return result, nil
}

// session is the mutable state accumulated over one run.
type session struct {
	id      string
	started time.Time

	records   []scout.Record
	seen      map[string]struct{}
	calls     int
	pairsDone int
	pairCount int
	note      string
}

func (o *Orchestrator) runPairs(ctx context.Context, s *session, known map[string]struct{}) scout.State {
	regions := o.cfg.Regions
	if len(regions) == 0 {
		regions = []string{""}
	}
	s.seen = make(map[string]struct{})
	s.pairCount = len(o.cfg.Terms) * len(regions)

	for _, term := range o.cfg.Terms {
		for _, region := range regions {
			if o.stop.Load() || ctx.Err() != nil {
				s.note = "stopped by operator"
				return scout.StateStopped
			}
			if s.calls >= o.cfg.MaxSearchCalls {
				s.note = fmt.Sprintf("search call ceiling of %d reached, %d pairs skipped",
					o.cfg.MaxSearchCalls, s.pairCount-s.pairsDone)
				o.logger.Warn("search call ceiling reached",
					zap.String("session_id", s.id),
					zap.Int("ceiling", o.cfg.MaxSearchCalls),
					zap.Int("pairs_skipped", s.pairCount-s.pairsDone),
				)
				return scout.StateCompleted
			}

			o.crawlPair(ctx, s, known, term, region)
			if ctx.Err() != nil {
				s.note = "stopped by operator"
				return scout.StateStopped
			}

			s.pairsDone++
			o.publish(s, progress.StagePairDone, term, region)
		}
	}
	return scout.StateCompleted
}

// crawlPair runs one search and folds its new channels into the session.
// A failed search or detail fetch costs the pair its contribution, never
// the session.
func (o *Orchestrator) crawlPair(ctx context.Context, s *session, known map[string]struct{}, term, region string) {
	results, err := o.api.Search(ctx, term, o.cfg.MaxResults, region)
	s.calls++
	if err != nil {
		o.logger.Warn("search failed",
			zap.String("term", term),
			zap.String("region", region),
			zap.Error(err),
		)
		return
	}

	candidates := []string{}
	hints := make(map[string]scout.Hints)
	for _, result := range results {
		if _, dup := s.seen[result.ChannelID]; dup {
			continue
		}
		if _, dup := hints[result.ChannelID]; dup {
			continue
		}
		candidates = append(candidates, result.ChannelID)
		hints[result.ChannelID] = scout.Hints{
			IsShortsURL:     result.IsShortsURL,
			IsShortsKeyword: result.IsShortsKeyword,
			ShortsScore:     result.ShortsScore,
		}
	}
	if len(candidates) == 0 {
		return
	}

	// Cache first: known channels rejoin the session from their stored
	// records at zero quota cost. Only the remainder is checked against the
	// cross-session id set.
	cached, uncached := o.cache.Resolve(candidates)
	if len(cached) > 0 {
		o.logger.Info("reusing cached channel records",
			zap.String("term", term),
			zap.Int("cached", len(cached)),
		)
		for _, record := range cached {
			s.records = append(s.records, record)
			s.seen[record.ID] = struct{}{}
		}
		metrics.ObserveChannels("cache", len(cached))
	}

	fresh := make([]string, 0, len(uncached))
	skipped := 0
	for _, id := range uncached {
		if _, crawled := known[id]; crawled {
			skipped++
			continue
		}
		fresh = append(fresh, id)
	}
	if skipped > 0 {
		o.logger.Debug("skipped previously crawled channels",
			zap.String("term", term),
			zap.Int("skipped", skipped),
		)
	}
	if len(fresh) == 0 {
		return
	}

	records, err := o.api.ChannelDetails(ctx, fresh, hints)
	if err != nil {
		o.logger.Warn("detail fetch failed",
			zap.String("term", term),
			zap.String("region", region),
			zap.Error(err),
		)
		return
	}
	for _, record := range records {
		s.records = append(s.records, record)
		s.seen[record.ID] = struct{}{}
	}
	metrics.ObserveChannels("fetch", len(records))
}

// finish exports whatever the session gathered and records it in the
// history store and master ledger. Runs for completed, stopped, and failed
// sessions alike so partial work is never lost.
func (o *Orchestrator) finish(s *session, state scout.State) Result {
	result := Result{
		State:       state,
		SessionID:   s.id,
		Channels:    len(s.records),
		SearchCalls: s.calls,
		QuotaUsed:   o.api.QuotaUsed(),
		Message:     s.note,
	}

	if len(s.records) > 0 {
		now := o.clock.Now()
		filename := "Youtube_Crawl_" + now.Format("20060102_150405")
		path, err := o.exporter.Export(s.records, filename, o.cfg.Format)
		if err != nil {
			o.logger.Error("export failed", zap.Error(err))
			result.State = scout.StateFailed
			result.Message = "export failed: " + err.Error()
		} else {
			result.Exported = path

			withEmail := 0
			for _, record := range s.records {
				if record.HasEmail {
					withEmail++
				}
			}
			err = o.history.Append(scout.Session{
				ID:                s.id,
				Timestamp:         now.Format(time.RFC3339),
				Filename:          filepath.Base(path),
				Format:            o.cfg.Format,
				ChannelCount:      len(s.records),
				ChannelsWithEmail: withEmail,
				QuotaUsed:         result.QuotaUsed,
				DataPreview:       s.records,
			})
			if err != nil {
				o.logger.Error("history append failed", zap.Error(err))
			}

			merged, err := o.ledger.Merge(s.records, filepath.Base(path))
			if err != nil {
				o.logger.Error("master merge failed", zap.Error(err))
			} else {
				o.logger.Info("session merged into master",
					zap.Int("new", merged.New),
					zap.Int("updated", merged.Updated),
				)
			}
		}
	}

	metrics.ObserveSession(string(result.State))
	stage := progress.StageSessionDone
	if result.State == scout.StateFailed {
		stage = progress.StageSessionError
	}
	o.publish(s, stage, "", "")
	o.logger.Info("crawl session finished",
		zap.String("session_id", s.id),
		zap.String("state", string(result.State)),
		zap.Int("channels", result.Channels),
		zap.Int("search_calls", result.SearchCalls),
		zap.Int("quota_used", result.QuotaUsed),
		zap.Duration("elapsed", o.clock.Now().Sub(s.started)),
	)
	return result
}

func (o *Orchestrator) publish(s *session, stage, term, region string) {
	fraction := 0.0
	if s.pairCount > 0 {
		fraction = float64(s.pairsDone) / float64(s.pairCount)
	}
	quota := o.api.QuotaUsed()

	o.mu.Lock()
	o.snapshot.Fraction = fraction
	o.snapshot.Channels = len(s.records)
	o.snapshot.SearchCalls = s.calls
	o.snapshot.QuotaUsed = quota
	o.mu.Unlock()

	o.hub.Publish(progress.Event{
		SessionID: s.id,
		TS:        o.clock.Now(),
		Stage:     stage,
		Term:      term,
		Region:    region,
		Fraction:  fraction,
		Channels:  len(s.records),
		QuotaUsed: quota,
		Note:      s.note,
	})
}
