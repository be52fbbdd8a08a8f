package youtube

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/require"

	"github.com/csouto/channel-scout/internal/scout"
)

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

var testNow = time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)

// newVideoSite serves the public video URLs: /shorts/<id> answers 200 for
// ids listed in shorts and redirects to /watch for everything else.
func newVideoSite(t *testing.T, shorts map[string]bool) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/shorts/", func(w http.ResponseWriter, r *http.Request) {
		id := r.URL.Path[len("/shorts/"):]
		if shorts[id] {
			w.WriteHeader(http.StatusOK)
			return
		}
		http.Redirect(w, r, "/watch?v="+id, http.StatusSeeOther)
	})
	mux.HandleFunc("/watch", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func newAPIServer(t *testing.T, handlers map[string]http.HandlerFunc) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	for endpoint, handler := range handlers {
		mux.HandleFunc("/"+endpoint, handler)
	}
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func respondJSON(t *testing.T, w http.ResponseWriter, v any) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	require.NoError(t, json.NewEncoder(w).Encode(v))
}

func newTestClient(t *testing.T, apiURL, videoURL string, uploads UploadCache) *Client {
	t.Helper()
	client, err := NewClient(Options{
		APIKey:   "test-key",
		BaseURL:  apiURL,
		VideoURL: videoURL,
		RPS:      1000,
		Burst:    100,
		Uploads:  uploads,
		Clock:    fixedClock{now: testNow},
	})
	require.NoError(t, err)
	return client
}

func TestSearchCollectsSignals(t *testing.T) {
	t.Parallel()
	site := newVideoSite(t, map[string]bool{"shortvid": true})
	api := newAPIServer(t, map[string]http.HandlerFunc{
		"search": func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, "test-key", r.URL.Query().Get("key"))
			require.Equal(t, "cooking", r.URL.Query().Get("q"))
			require.Equal(t, "BR", r.URL.Query().Get("regionCode"))
			respondJSON(t, w, map[string]any{
				"items": []map[string]any{
					{
						"id": map[string]string{"videoId": "shortvid"},
						"snippet": map[string]string{
							"channelId":   "chA",
							"title":       "My #shorts clip",
							"publishedAt": "2026-03-10T00:00:00Z",
						},
					},
					{
						"id": map[string]string{"videoId": "longvid"},
						"snippet": map[string]string{
							"channelId":   "chB",
							"title":       "Documentary part 1",
							"publishedAt": "2026-03-11T00:00:00Z",
						},
					},
				},
			})
		},
	})

	client := newTestClient(t, api.URL, site.URL, nil)
	results, err := client.Search(context.Background(), "cooking", 10, "BR")
	require.NoError(t, err)
	require.Len(t, results, 2)
	require.Equal(t, 100, client.QuotaUsed())

	require.Equal(t, "chA", results[0].ChannelID)
	require.True(t, results[0].IsShortsURL)
	require.True(t, results[0].IsShortsKeyword)
	require.Equal(t, 100, results[0].ShortsScore)

	require.Equal(t, "chB", results[1].ChannelID)
	require.False(t, results[1].IsShortsURL)
	require.False(t, results[1].IsShortsKeyword)
	require.Zero(t, results[1].ShortsScore)
}

func TestSearchAPIError(t *testing.T) {
	t.Parallel()
	api := newAPIServer(t, map[string]http.HandlerFunc{
		"search": func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, `{"error":"quotaExceeded"}`, http.StatusForbidden)
		},
	})

	client := newTestClient(t, api.URL, "http://127.0.0.1:0", nil)
	_, err := client.Search(context.Background(), "cooking", 10, "")
	require.Error(t, err)
	require.Contains(t, err.Error(), "403")
	// The failed call still consumed quota on the platform side.
	require.Equal(t, 100, client.QuotaUsed())
}

func TestChannelDetailsBuildsFullRecord(t *testing.T) {
	t.Parallel()
	site := newVideoSite(t, map[string]bool{"vid9": true})
	api := newAPIServer(t, map[string]http.HandlerFunc{
		"channels": func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, "chA", r.URL.Query().Get("id"))
			respondJSON(t, w, map[string]any{
				"items": []map[string]any{
					{
						"id": "chA",
						"snippet": map[string]any{
							"title":       "Cooking Channel",
							"description": "Daily recipes. Contact: chef@example.com. instagram.com/chefsofia",
							"customUrl":   "@chefsofia",
							"publishedAt": "2020-01-02T00:00:00Z",
							"country":     "BR",
						},
						"statistics": map[string]any{
							"subscriberCount": "12000",
							"viewCount":       "3400000",
							"videoCount":      "210",
						},
						"brandingSettings": map[string]any{
							"channel": map[string]any{"keywords": "recipes cooking"},
						},
					},
				},
			})
		},
		"activities": func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, "chA", r.URL.Query().Get("channelId"))
			respondJSON(t, w, map[string]any{
				"items": []map[string]any{
					{
						"snippet": map[string]any{
							"title":       "Latest recipe",
							"publishedAt": "2026-03-05T12:00:00Z",
							"type":        "upload",
						},
						"contentDetails": map[string]any{
							"upload": map[string]any{"videoId": "vid9"},
						},
					},
				},
			})
		},
		"videos": func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, "vid9", r.URL.Query().Get("id"))
			respondJSON(t, w, map[string]any{
				"items": []map[string]any{
					{"contentDetails": map[string]any{"duration": "PT45S"}},
				},
			})
		},
		"playlists": func(w http.ResponseWriter, _ *http.Request) {
			respondJSON(t, w, map[string]any{
				"items": []map[string]any{
					{"snippet": map[string]any{"title": "Breakfast"}, "contentDetails": map[string]any{"itemCount": 12}},
					{"snippet": map[string]any{"title": "Dinner"}, "contentDetails": map[string]any{"itemCount": 30}},
				},
			})
		},
	})

	client := newTestClient(t, api.URL, site.URL, nil)
	hints := map[string]scout.Hints{
		"chA": {IsShortsURL: true, IsShortsKeyword: true, ShortsScore: 100},
	}
	records, err := client.ChannelDetails(context.Background(), []string{"chA"}, hints)
	require.NoError(t, err)
	require.Len(t, records, 1)

	record := records[0]
	require.Equal(t, "chA", record.ID)
	require.Equal(t, "Cooking Channel", record.Title)
	require.Equal(t, int64(12000), record.SubscriberCount)
	require.Equal(t, "Brazil", record.CountryName)
	require.Equal(t, "chef@example.com", record.Email)
	require.True(t, record.HasEmail)
	require.Contains(t, record.SocialLinks, "instagram:chefsofia")
	require.Equal(t, "Medium", record.ChannelSize)

	require.Equal(t, "vid9", record.LastVideoID)
	require.Equal(t, 45, *record.LastVideoDurationSeconds)
	require.True(t, record.LastVideoIsShortsURL)
	require.True(t, record.LastVideoIsShortByDuration)
	require.Equal(t, 10, record.DaysSinceLastVideo)

	// search URL 50 + search keyword 10 + upload URL 25 + duration 5.
	require.Equal(t, 90, record.ShortsConfidenceScore)
	require.True(t, record.IsShortsChannel)

	// recency 30 + email 20 + subscriber bonus 15.
	require.Equal(t, 65, record.ActivityScore)
	require.Equal(t, "Active", record.ActivityStatus)

	require.Equal(t, 2, record.PlaylistCount)
	require.Equal(t, "Breakfast; Dinner", record.PlaylistNames)
	require.Equal(t, "12; 30", record.PlaylistVideoCounts)

	require.Equal(t, "2026-03-15 12:00:00", record.CollectedAt)

	// channels + activities + videos + playlists, one unit each.
	require.Equal(t, 4, client.QuotaUsed())
}

func TestChannelDetailsSkipsFailedBatch(t *testing.T) {
	t.Parallel()
	api := newAPIServer(t, map[string]http.HandlerFunc{
		"channels": func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "boom", http.StatusInternalServerError)
		},
	})

	client := newTestClient(t, api.URL, "http://127.0.0.1:0", nil)
	records, err := client.ChannelDetails(context.Background(), []string{"chA", "chB"}, nil)
	require.NoError(t, err)
	require.Empty(t, records)
}

type fakeUploads struct{ upload *scout.Upload }

func (f fakeUploads) LastUpload(string) *scout.Upload { return f.upload }

func TestChannelDetailsReusesCachedUpload(t *testing.T) {
	t.Parallel()
	site := newVideoSite(t, nil)
	api := newAPIServer(t, map[string]http.HandlerFunc{
		"channels": func(w http.ResponseWriter, _ *http.Request) {
			respondJSON(t, w, map[string]any{
				"items": []map[string]any{
					{"id": "chA", "snippet": map[string]any{"title": "Known"}},
				},
			})
		},
		"activities": func(w http.ResponseWriter, _ *http.Request) {
			t.Error("activities should not be called when the upload is cached")
		},
		"playlists": func(w http.ResponseWriter, _ *http.Request) {
			respondJSON(t, w, map[string]any{"items": []map[string]any{}})
		},
	})

	duration := 300
	client := newTestClient(t, api.URL, site.URL, fakeUploads{upload: &scout.Upload{
		VideoID:         "cached-vid",
		Title:           "Cached upload",
		PublishedAt:     "2026-03-01T00:00:00Z",
		DurationSeconds: &duration,
	}})

	records, err := client.ChannelDetails(context.Background(), []string{"chA"}, nil)
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.Equal(t, "cached-vid", records[0].LastVideoID)
	require.False(t, records[0].LastVideoIsShortByDuration)

	// channels + playlists only.
	require.Equal(t, 2, client.QuotaUsed())
}
