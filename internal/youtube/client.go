// Package youtube implements the video-platform client: quota-costed search
// and detail calls, latest-upload probing, and the per-channel signal
// extraction that turns raw API responses into channel records.
package youtube

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/goccy/go-json"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/csouto/channel-scout/internal/metrics"
	"github.com/csouto/channel-scout/internal/scout"
)

// Unit costs per API call. Search is by far the dominant quota consumer.
const (
	costSearch     = 100
	costChannels   = 1
	costActivities = 1
	costVideos     = 1
	costPlaylists  = 1
)

const (
	defaultBaseURL  = "https://www.googleapis.com/youtube/v3"
	defaultVideoURL = "https://www.youtube.com"

	channelBatchSize = 50
	maxPlaylists     = 10
	descriptionLimit = 500
	probeTimeout     = 3 * time.Second
)

// UploadCache lets the client reuse a previously recorded latest upload
// instead of spending quota rediscovering it.
type UploadCache interface {
	LastUpload(channelID string) *scout.Upload
}

// Options configures a Client. Zero values fall back to sane defaults.
type Options struct {
	APIKey  string
	Timeout time.Duration
	RPS     float64
	Burst   int

	// BaseURL and VideoURL override the platform endpoints, used by tests.
	BaseURL  string
	VideoURL string

	Uploads UploadCache
	Clock   scout.Clock
	Logger  *zap.Logger
}

// Client talks to the video platform's JSON API. All methods are safe for
// concurrent use; quota accounting is atomic.
type Client struct {
	apiKey   string
	baseURL  string
	videoURL string

	httpClient  *http.Client
	probeClient *http.Client
	limiter     *rate.Limiter

	uploads UploadCache
	clock   scout.Clock
	logger  *zap.Logger

	quota atomic.Int64
}

// NewClient constructs a Client from options.
func NewClient(opts Options) (*Client, error) {
	if opts.APIKey == "" {
		return nil, fmt.Errorf("api key is required")
	}
	if opts.Clock == nil {
		return nil, fmt.Errorf("clock is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	rps := opts.RPS
	if rps <= 0 {
		rps = 4
	}
	burst := opts.Burst
	if burst <= 0 {
		burst = 2
	}
	baseURL := opts.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	videoURL := opts.VideoURL
	if videoURL == "" {
		videoURL = defaultVideoURL
	}
	return &Client{
		apiKey:      opts.APIKey,
		baseURL:     strings.TrimSuffix(baseURL, "/"),
		videoURL:    strings.TrimSuffix(videoURL, "/"),
		httpClient:  &http.Client{Timeout: timeout},
		probeClient: &http.Client{Timeout: probeTimeout},
		limiter:     rate.NewLimiter(rate.Limit(rps), burst),
		uploads:     opts.Uploads,
		clock:       opts.Clock,
		logger:      logger,
	}, nil
}

// QuotaUsed reports the units consumed since construction.
func (c *Client) QuotaUsed() int {
	return int(c.quota.Load())
}

type searchResponse struct {
	Items []struct {
		ID struct {
			VideoID string `json:"videoId"`
		} `json:"id"`
		Snippet struct {
			ChannelID   string `json:"channelId"`
			Title       string `json:"title"`
			Description string `json:"description"`
			PublishedAt string `json:"publishedAt"`
		} `json:"snippet"`
	} `json:"items"`
}

// Search issues one search call for a term and collects candidate channels
// with the short-form signals that come free with the response.
func (c *Client) Search(ctx context.Context, term string, maxResults int, region string) ([]scout.SearchResult, error) {
	params := url.Values{}
	params.Set("part", "snippet")
	params.Set("type", "video")
	params.Set("order", "relevance")
	params.Set("q", term)
	params.Set("maxResults", strconv.Itoa(maxResults))
	if region != "" {
		params.Set("regionCode", region)
	}

	var resp searchResponse
	if err := c.get(ctx, "search", params, costSearch, &resp); err != nil {
		return nil, fmt.Errorf("search %q: %w", term, err)
	}
	metrics.ObserveSearchCall()

	results := make([]scout.SearchResult, 0, len(resp.Items))
	for _, item := range resp.Items {
		if item.Snippet.ChannelID == "" {
			continue
		}
		isShortsURL := c.probeShortsURL(ctx, item.ID.VideoID)
		isShortsKeyword := hasShortsKeyword(item.Snippet.Title) || hasShortsKeyword(item.Snippet.Description)
		score := 0
		if isShortsURL {
			score += 80
		}
		if isShortsKeyword {
			score += 20
		}
		results = append(results, scout.SearchResult{
			ChannelID:       item.Snippet.ChannelID,
			VideoID:         item.ID.VideoID,
			VideoTitle:      item.Snippet.Title,
			VideoPublished:  item.Snippet.PublishedAt,
			IsShortsURL:     isShortsURL,
			IsShortsKeyword: isShortsKeyword,
			ShortsScore:     score,
		})
	}
	return results, nil
}

type channelsResponse struct {
	Items []channelItem `json:"items"`
}

type channelItem struct {
	ID      string `json:"id"`
	Snippet struct {
		Title       string `json:"title"`
		Description string `json:"description"`
		CustomURL   string `json:"customUrl"`
		PublishedAt string `json:"publishedAt"`
		Country     string `json:"country"`
		Thumbnails  struct {
			Default struct {
				URL string `json:"url"`
			} `json:"default"`
		} `json:"thumbnails"`
	} `json:"snippet"`
	Statistics struct {
		SubscriberCount       string `json:"subscriberCount"`
		ViewCount             string `json:"viewCount"`
		VideoCount            string `json:"videoCount"`
		HiddenSubscriberCount bool   `json:"hiddenSubscriberCount"`
	} `json:"statistics"`
	BrandingSettings struct {
		Channel struct {
			Keywords string `json:"keywords"`
		} `json:"channel"`
	} `json:"brandingSettings"`
}

// ChannelDetails fetches full records for the given channel ids in batches.
// A failed batch is logged and skipped; the remaining batches still run.
func (c *Client) ChannelDetails(ctx context.Context, ids []string, hints map[string]scout.Hints) ([]scout.Record, error) {
	records := make([]scout.Record, 0, len(ids))
	for start := 0; start < len(ids); start += channelBatchSize {
		end := min(start+channelBatchSize, len(ids))
		batch := ids[start:end]

		params := url.Values{}
		params.Set("part", "snippet,statistics,brandingSettings")
		params.Set("id", strings.Join(batch, ","))
		params.Set("maxResults", strconv.Itoa(channelBatchSize))

		var resp channelsResponse
		if err := c.get(ctx, "channels", params, costChannels, &resp); err != nil {
			if ctx.Err() != nil {
				return records, ctx.Err()
			}
			c.logger.Warn("channel batch failed",
				zap.Int("batch_size", len(batch)),
				zap.Error(err),
			)
			continue
		}
		for _, item := range resp.Items {
			records = append(records, c.buildRecord(ctx, item, hints[item.ID]))
		}
	}
	return records, nil
}

func (c *Client) buildRecord(ctx context.Context, item channelItem, hint scout.Hints) scout.Record {
	now := c.clock.Now()
	description := item.Snippet.Description
	keywords := item.BrandingSettings.Channel.Keywords
	email := extractEmail(description)
	found := extractLinks(description)

	inTitle := hasShortsKeyword(item.Snippet.Title)
	inDescription := hasShortsKeyword(description)
	mentions := countShortsMentions(item.Snippet.Title) +
		countShortsMentions(description) +
		countShortsMentions(keywords)

	record := scout.Record{
		ID:        item.ID,
		Title:     item.Snippet.Title,
		CustomURL: item.Snippet.CustomURL,
		URL:       c.videoURL + "/channel/" + item.ID,

		SubscriberCount:       parseCount(item.Statistics.SubscriberCount),
		ViewCount:             parseCount(item.Statistics.ViewCount),
		VideoCount:            parseCount(item.Statistics.VideoCount),
		HiddenSubscriberCount: item.Statistics.HiddenSubscriberCount,

		Country:     item.Snippet.Country,
		CountryName: countryName(item.Snippet.Country),

		Description:       truncate(description, descriptionLimit),
		DescriptionLength: len([]rune(description)),
		Email:             email,
		HasEmail:          email != "",
		Keywords:          keywords,
		ProfileImage:      item.Snippet.Thumbnails.Default.URL,

		PublishedAt: item.Snippet.PublishedAt,
		CreatedDate: formatDate(item.Snippet.PublishedAt),
		CollectedAt: now.Format("2006-01-02 15:04:05"),

		SearchVideoIsShortsURL:     hint.IsShortsURL,
		SearchVideoIsShortsKeyword: hint.IsShortsKeyword,
		SearchVideoShortsScore:     hint.ShortsScore,

		ShortsInTitle:       inTitle,
		ShortsInDescription: inDescription,
		ShortsMentionsCount: mentions,

		SocialLinks:     found.Social,
		Websites:        found.Websites,
		TotalLinksFound: found.TotalFound,

		DaysSinceLastVideo: -1,
	}

	upload := c.lookupUpload(ctx, item.ID)
	lastVideoShortsURL := false
	lastVideoShortDuration := false
	if upload != nil {
		record.LastVideoID = upload.VideoID
		record.LastVideoTitle = upload.Title
		record.LastVideoPublishedRaw = upload.PublishedAt
		record.LastVideoPublished = formatDate(upload.PublishedAt)
		record.LastVideoURL = c.videoURL + "/watch?v=" + upload.VideoID
		record.LastVideoDurationSeconds = upload.DurationSeconds
		record.DaysSinceLastVideo = daysSince(upload.PublishedAt, now)

		lastVideoShortsURL = c.probeShortsURL(ctx, upload.VideoID)
		if upload.DurationSeconds != nil {
			d := *upload.DurationSeconds
			lastVideoShortDuration = d > 0 && d < 60
		}
		record.LastVideoIsShortsURL = lastVideoShortsURL
		record.LastVideoIsShortByDuration = lastVideoShortDuration
	}

	names, counts := c.fetchPlaylists(ctx, item.ID)
	record.PlaylistCount = len(names)
	record.PlaylistNames = strings.Join(names, "; ")
	record.PlaylistVideoCounts = strings.Join(counts, "; ")

	record.ShortsConfidenceScore = shortsConfidence(hint, lastVideoShortsURL, lastVideoShortDuration, inTitle, inDescription)
	record.IsShortsChannel = record.ShortsConfidenceScore >= 50
	record.ContentWarningScore = contentWarningScore(description, item.Snippet.Title)
	record.ActivityScore = activityScore(record.DaysSinceLastVideo, record.HasEmail, record.SubscriberCount)
	record.ActivityStatus = activityStatus(record.ActivityScore)
	record.ChannelSize = channelSize(record.SubscriberCount)
	return record
}

// lookupUpload returns the channel's latest upload, preferring the cached
// copy from a prior session over a fresh pair of API calls.
func (c *Client) lookupUpload(ctx context.Context, channelID string) *scout.Upload {
	if c.uploads != nil {
		if upload := c.uploads.LastUpload(channelID); upload != nil {
			return upload
		}
	}
	upload, err := c.LatestUpload(ctx, channelID)
	if err != nil {
		c.logger.Warn("latest upload lookup failed",
			zap.String("channel_id", channelID),
			zap.Error(err),
		)
		return nil
	}
	return upload
}

type activitiesResponse struct {
	Items []struct {
		Snippet struct {
			Title       string `json:"title"`
			PublishedAt string `json:"publishedAt"`
			Type        string `json:"type"`
		} `json:"snippet"`
		ContentDetails struct {
			Upload struct {
				VideoID string `json:"videoId"`
			} `json:"upload"`
		} `json:"contentDetails"`
	} `json:"items"`
}

type videosResponse struct {
	Items []struct {
		ContentDetails struct {
			Duration string `json:"duration"`
		} `json:"contentDetails"`
	} `json:"items"`
}

// LatestUpload returns the most recent upload for a channel with its
// duration, or nil when the channel has no visible uploads.
func (c *Client) LatestUpload(ctx context.Context, channelID string) (*scout.Upload, error) {
	params := url.Values{}
	params.Set("part", "snippet,contentDetails")
	params.Set("channelId", channelID)
	params.Set("maxResults", "1")

	var resp activitiesResponse
	if err := c.get(ctx, "activities", params, costActivities, &resp); err != nil {
		return nil, fmt.Errorf("activities for %s: %w", channelID, err)
	}
	if len(resp.Items) == 0 {
		return nil, nil
	}
	item := resp.Items[0]
	if item.Snippet.Type != "upload" || item.ContentDetails.Upload.VideoID == "" {
		return nil, nil
	}

	upload := &scout.Upload{
		VideoID:     item.ContentDetails.Upload.VideoID,
		Title:       item.Snippet.Title,
		PublishedAt: item.Snippet.PublishedAt,
	}

	videoParams := url.Values{}
	videoParams.Set("part", "contentDetails")
	videoParams.Set("id", upload.VideoID)
	var videos videosResponse
	if err := c.get(ctx, "videos", videoParams, costVideos, &videos); err != nil {
		c.logger.Warn("video duration lookup failed",
			zap.String("video_id", upload.VideoID),
			zap.Error(err),
		)
		return upload, nil
	}
	if len(videos.Items) > 0 {
		if seconds, ok := parseISODuration(videos.Items[0].ContentDetails.Duration); ok {
			upload.DurationSeconds = &seconds
		}
	}
	return upload, nil
}

type playlistsResponse struct {
	Items []struct {
		Snippet struct {
			Title string `json:"title"`
		} `json:"snippet"`
		ContentDetails struct {
			ItemCount int `json:"itemCount"`
		} `json:"contentDetails"`
	} `json:"items"`
}

// fetchPlaylists returns up to maxPlaylists playlist names and their video
// counts. Failures degrade to empty playlist columns.
func (c *Client) fetchPlaylists(ctx context.Context, channelID string) (names, counts []string) {
	params := url.Values{}
	params.Set("part", "snippet,contentDetails")
	params.Set("channelId", channelID)
	params.Set("maxResults", strconv.Itoa(maxPlaylists))

	var resp playlistsResponse
	if err := c.get(ctx, "playlists", params, costPlaylists, &resp); err != nil {
		c.logger.Warn("playlist lookup failed",
			zap.String("channel_id", channelID),
			zap.Error(err),
		)
		return nil, nil
	}
	for _, item := range resp.Items {
		names = append(names, item.Snippet.Title)
		counts = append(counts, strconv.Itoa(item.ContentDetails.ItemCount))
	}
	return names, counts
}

// probeShortsURL checks whether a video resolves under the short-form URL
// path. Any transport error counts as not short-form.
func (c *Client) probeShortsURL(ctx context.Context, videoID string) bool {
	if videoID == "" {
		return false
	}
	probeURL := c.videoURL + "/shorts/" + videoID
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, probeURL, nil)
	if err != nil {
		return false
	}
	resp, err := c.probeClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK && strings.Contains(resp.Request.URL.Path, "/shorts/")
}

// get performs one quota-costed GET against the API and decodes the body
// into out. Quota is counted only for calls that reached the server.
func (c *Client) get(ctx context.Context, endpoint string, params url.Values, cost int, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	params.Set("key", c.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/"+endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("call %s: %w", endpoint, err)
	}
	defer resp.Body.Close()

	c.quota.Add(int64(cost))
	metrics.ObserveQuota(cost)

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("%s returned %d: %s", endpoint, resp.StatusCode, strings.TrimSpace(string(body)))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", endpoint, err)
	}
	return nil
}

func parseCount(raw string) int64 {
	if raw == "" {
		return 0
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0
	}
	return n
}

func truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}
