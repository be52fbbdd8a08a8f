package scout

import "context"

// VideoAPI is the video-platform collaborator. Implementations track an
// internal quota counter; QuotaUsed reports the units consumed so far.
type VideoAPI interface {
	// Search issues one search call for a term, optionally scoped to a
	// region code, and returns candidate channels with lightweight signals.
	Search(ctx context.Context, term string, maxResults int, region string) ([]SearchResult, error)

	// ChannelDetails fetches full records for the given channel ids, merging
	// any search-time hints so they survive into the record.
	ChannelDetails(ctx context.Context, ids []string, hints map[string]Hints) ([]Record, error)

	// LatestUpload returns the most recent upload for a channel, or nil when
	// the channel has none visible.
	LatestUpload(ctx context.Context, channelID string) (*Upload, error)

	QuotaUsed() int
}

// Exporter writes a batch of records to a file in the requested format and
// returns the written path.
type Exporter interface {
	Export(records []Record, filename, format string) (string, error)
}

// Cache answers which channel ids are already known locally, returning the
// most recently recorded version of each known channel.
type Cache interface {
	Resolve(ids []string) (cached []Record, uncached []string)
}
