package cache

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/csouto/channel-scout/internal/scout"
)

type fakeLookup struct {
	records map[string]scout.Record
}

func (f fakeLookup) Lookup(ids []string) (cached []scout.Record, uncached []string) {
	for _, id := range ids {
		if record, ok := f.records[id]; ok {
			cached = append(cached, record)
		} else {
			uncached = append(uncached, id)
		}
	}
	return cached, uncached
}

func TestResolvePartitionsCompletely(t *testing.T) {
	t.Parallel()
	cache := New(fakeLookup{records: map[string]scout.Record{
		"chA": {ID: "chA", Title: "Alpha"},
		"chB": {ID: "chB", Title: "Beta"},
	}})

	cached, uncached := cache.Resolve([]string{"chA", "chX", "chB", "chY"})
	require.Len(t, cached, 2)
	require.Equal(t, []string{"chX", "chY"}, uncached)

	// Every input id lands on exactly one side.
	seen := map[string]struct{}{}
	for _, record := range cached {
		seen[record.ID] = struct{}{}
	}
	for _, id := range uncached {
		seen[id] = struct{}{}
	}
	require.Len(t, seen, 4)
}

func TestResolveEmptyInput(t *testing.T) {
	t.Parallel()
	cache := New(fakeLookup{})
	cached, uncached := cache.Resolve(nil)
	require.Empty(t, cached)
	require.Empty(t, uncached)
}

func TestLastUpload(t *testing.T) {
	t.Parallel()
	duration := 42
	cache := New(fakeLookup{records: map[string]scout.Record{
		"chA": {
			ID:                       "chA",
			LastVideoID:              "vid1",
			LastVideoTitle:           "Latest",
			LastVideoPublishedRaw:    "2026-03-01T10:00:00Z",
			LastVideoDurationSeconds: &duration,
		},
		"chB": {ID: "chB"},
	}})

	upload := cache.LastUpload("chA")
	require.NotNil(t, upload)
	require.Equal(t, "vid1", upload.VideoID)
	require.Equal(t, "Latest", upload.Title)
	require.Equal(t, 42, *upload.DurationSeconds)

	// A cached record without upload data is not an upload.
	require.Nil(t, cache.LastUpload("chB"))
	require.Nil(t, cache.LastUpload("chZ"))
}
