// Package scout defines the domain types and collaborator interfaces shared
// by the crawl pipeline: channel records, crawl sessions, and the contracts
// for the video platform API, exporters, and stores.
package scout

import "time"

// Record is the flat per-channel row collected by a crawl. Every field maps
// to one column in the master ledger and one key in the history document.
type Record struct {
	ID        string `json:"channel_id"`
	Title     string `json:"channel_title"`
	CustomURL string `json:"custom_url"`
	URL       string `json:"channel_url"`

	SubscriberCount       int64 `json:"subscriber_count"`
	ViewCount             int64 `json:"view_count"`
	VideoCount            int64 `json:"video_count"`
	HiddenSubscriberCount bool  `json:"hidden_subscriber_count"`

	Country     string `json:"country"`
	CountryName string `json:"country_name"`

	Description       string `json:"description"`
	DescriptionLength int    `json:"description_length"`
	Email             string `json:"email"`
	HasEmail          bool   `json:"has_email"`
	Keywords          string `json:"keywords"`
	ProfileImage      string `json:"profile_image"`

	PublishedAt string `json:"published_at"`
	CreatedDate string `json:"created_date"`
	CollectedAt string `json:"collected_at"`

	// Short-form signals gathered at search time (no extra API cost).
	SearchVideoIsShortsURL     bool `json:"search_video_is_shorts_url"`
	SearchVideoIsShortsKeyword bool `json:"search_video_is_shorts_keyword"`
	SearchVideoShortsScore     int  `json:"search_video_shorts_score"`

	// Short-form signals derived from the channel's own metadata.
	IsShortsChannel     bool `json:"is_shorts_channel"`
	ShortsInTitle       bool `json:"shorts_in_title"`
	ShortsInDescription bool `json:"shorts_in_description"`
	ShortsMentionsCount int  `json:"shorts_mentions_count"`

	// Short-form signals from the latest upload.
	LastVideoIsShortsURL       bool `json:"last_video_is_shorts_url"`
	LastVideoDurationSeconds   *int `json:"last_video_duration_seconds"`
	LastVideoIsShortByDuration bool `json:"last_video_is_short_by_duration"`

	ShortsConfidenceScore int `json:"shorts_confidence_score"`
	ContentWarningScore   int `json:"content_warning_score"`

	LastVideoID           string `json:"last_video_id"`
	LastVideoTitle        string `json:"last_video_title"`
	LastVideoPublishedRaw string `json:"last_video_published_raw"`
	LastVideoPublished    string `json:"last_video_published"`
	LastVideoURL          string `json:"last_video_url"`
	DaysSinceLastVideo    int    `json:"days_since_last_video"`

	SocialLinks     string `json:"social_links"`
	Websites        string `json:"websites"`
	TotalLinksFound int    `json:"total_links_found"`

	PlaylistCount       int    `json:"playlist_count"`
	PlaylistNames       string `json:"playlist_names"`
	PlaylistVideoCounts string `json:"playlist_video_counts"`

	ActivityScore  int    `json:"activity_score"`
	ActivityStatus string `json:"activity_status"`
	ChannelSize    string `json:"channel_size"`

	// Ledger bookkeeping, stamped by the master ledger on merge.
	AddedToMaster     string `json:"added_to_master,omitempty"`
	SourceFile        string `json:"source_file,omitempty"`
	MasterUpdateCount int    `json:"master_update_count,omitempty"`

	// Extra holds fields outside the declared set, e.g. columns carried
	// over from older ledger files. Always safe to range over when nil.
	Extra map[string]string `json:"extra,omitempty"`
}

// Session is one completed crawl run as persisted in the history document.
// DataPreview is truncated to a small fixed size before long-term storage.
type Session struct {
	ID                string   `json:"id,omitempty"`
	Timestamp         string   `json:"timestamp"`
	Filename          string   `json:"filename"`
	Format            string   `json:"format"`
	ChannelCount      int      `json:"channel_count"`
	ChannelsWithEmail int      `json:"channels_with_email"`
	QuotaUsed         int      `json:"quota_used"`
	DataPreview       []Record `json:"data_preview"`
}

// SearchResult is one candidate from a search call: a channel id plus the
// lightweight signals collected without further API cost.
type SearchResult struct {
	ChannelID      string
	VideoID        string
	VideoTitle     string
	VideoPublished string

	IsShortsURL     bool
	IsShortsKeyword bool
	ShortsScore     int
}

// Hints carries search-time signals forward to the detail fetch so the
// detail step does not rediscover them.
type Hints struct {
	IsShortsURL     bool
	IsShortsKeyword bool
	ShortsScore     int
}

// Upload describes a channel's most recent upload.
type Upload struct {
	VideoID         string
	Title           string
	PublishedAt     string
	DurationSeconds *int
}

// Clock supplies the current time; injected so stores and the orchestrator
// are testable against fixed instants.
type Clock interface {
	Now() time.Time
}
