// Package cache provides the read model over the crawl history: which
// channel ids are already known, and what was last recorded for them.
package cache

import (
	"github.com/csouto/channel-scout/internal/metrics"
	"github.com/csouto/channel-scout/internal/scout"
)

// Lookup is the slice of the history store the cache depends on.
type Lookup interface {
	Lookup(ids []string) (cached []scout.Record, uncached []string)
}

// ChannelCache answers id-resolution queries against the history document.
// It holds no state of its own; every call reflects the store at call time.
type ChannelCache struct {
	store Lookup
}

// New constructs a ChannelCache over the given history lookup.
func New(store Lookup) *ChannelCache {
	return &ChannelCache{store: store}
}

// Resolve partitions ids into cached records and ids that need a fetch. The
// union of both sides equals the input set; neither side holds duplicates
// the input did not already have.
func (c *ChannelCache) Resolve(ids []string) (cached []scout.Record, uncached []string) {
	cached, uncached = c.store.Lookup(ids)
	metrics.ObserveCacheLookup(len(cached), len(uncached))
	return cached, uncached
}

// LastUpload returns the last-upload fields of the newest cached record for
// a channel, or nil when the channel is unknown. Lets the client skip the
// latest-upload call for channels seen in a prior session.
func (c *ChannelCache) LastUpload(channelID string) *scout.Upload {
	cached, _ := c.store.Lookup([]string{channelID})
	if len(cached) == 0 {
		return nil
	}
	record := cached[0]
	if record.LastVideoID == "" {
		return nil
	}
	return &scout.Upload{
		VideoID:         record.LastVideoID,
		Title:           record.LastVideoTitle,
		PublishedAt:     record.LastVideoPublishedRaw,
		DurationSeconds: record.LastVideoDurationSeconds,
	}
}
