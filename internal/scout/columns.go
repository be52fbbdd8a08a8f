package scout

import (
	"sort"
	"strconv"
)

// Columns is the canonical column order for tabular exports and the master
// ledger. Fields not listed here are appended after the known ones so that
// downstream consumers see stable positions release to release.
func Columns() []string {
	return []string{
		"channel_id", "channel_title", "custom_url",
		"subscriber_count", "view_count", "video_count",
		"country", "country_name",

		"search_video_is_shorts_url",
		"last_video_is_shorts_url",

		"is_shorts_channel",
		"shorts_in_title",
		"shorts_in_description",
		"shorts_mentions_count",
		"search_video_is_shorts_keyword",

		"last_video_duration_seconds",
		"last_video_is_short_by_duration",

		"search_video_shorts_score",
		"shorts_confidence_score",

		"content_warning_score",

		"has_email", "email",
		"playlist_count", "playlist_names", "playlist_video_counts",
		"description", "published_at",
		"last_video_title", "last_video_published", "days_since_last_video",
		"activity_score", "activity_status", "channel_size",
		"social_links", "websites", "total_links_found",
		"keywords", "profile_image", "collected_at",

		"added_to_master", "source_file", "master_update_count",
	}
}

// Field is one named cell of a record row.
type Field struct {
	Name  string
	Value string
}

// Fields flattens the record into its full column set, in declaration order.
// Values are rendered the way the tabular stores persist them.
func (r Record) Fields() []Field {
	dur := ""
	if r.LastVideoDurationSeconds != nil {
		dur = strconv.Itoa(*r.LastVideoDurationSeconds)
	}
	fields := []Field{
		{"channel_id", r.ID},
		{"channel_title", r.Title},
		{"custom_url", r.CustomURL},
		{"channel_url", r.URL},
		{"subscriber_count", strconv.FormatInt(r.SubscriberCount, 10)},
		{"view_count", strconv.FormatInt(r.ViewCount, 10)},
		{"video_count", strconv.FormatInt(r.VideoCount, 10)},
		{"hidden_subscriber_count", strconv.FormatBool(r.HiddenSubscriberCount)},
		{"country", r.Country},
		{"country_name", r.CountryName},
		{"description", r.Description},
		{"description_length", strconv.Itoa(r.DescriptionLength)},
		{"email", r.Email},
		{"has_email", strconv.FormatBool(r.HasEmail)},
		{"keywords", r.Keywords},
		{"profile_image", r.ProfileImage},
		{"published_at", r.PublishedAt},
		{"created_date", r.CreatedDate},
		{"collected_at", r.CollectedAt},
		{"search_video_is_shorts_url", strconv.FormatBool(r.SearchVideoIsShortsURL)},
		{"search_video_is_shorts_keyword", strconv.FormatBool(r.SearchVideoIsShortsKeyword)},
		{"search_video_shorts_score", strconv.Itoa(r.SearchVideoShortsScore)},
		{"is_shorts_channel", strconv.FormatBool(r.IsShortsChannel)},
		{"shorts_in_title", strconv.FormatBool(r.ShortsInTitle)},
		{"shorts_in_description", strconv.FormatBool(r.ShortsInDescription)},
		{"shorts_mentions_count", strconv.Itoa(r.ShortsMentionsCount)},
		{"last_video_is_shorts_url", strconv.FormatBool(r.LastVideoIsShortsURL)},
		{"last_video_duration_seconds", dur},
		{"last_video_is_short_by_duration", strconv.FormatBool(r.LastVideoIsShortByDuration)},
		{"shorts_confidence_score", strconv.Itoa(r.ShortsConfidenceScore)},
		{"content_warning_score", strconv.Itoa(r.ContentWarningScore)},
		{"last_video_id", r.LastVideoID},
		{"last_video_title", r.LastVideoTitle},
		{"last_video_published_raw", r.LastVideoPublishedRaw},
		{"last_video_published", r.LastVideoPublished},
		{"last_video_url", r.LastVideoURL},
		{"days_since_last_video", strconv.Itoa(r.DaysSinceLastVideo)},
		{"social_links", r.SocialLinks},
		{"websites", r.Websites},
		{"total_links_found", strconv.Itoa(r.TotalLinksFound)},
		{"playlist_count", strconv.Itoa(r.PlaylistCount)},
		{"playlist_names", r.PlaylistNames},
		{"playlist_video_counts", r.PlaylistVideoCounts},
		{"activity_score", strconv.Itoa(r.ActivityScore)},
		{"activity_status", r.ActivityStatus},
		{"channel_size", r.ChannelSize},
		{"added_to_master", r.AddedToMaster},
		{"source_file", r.SourceFile},
		{"master_update_count", strconv.Itoa(r.MasterUpdateCount)},
	}

	extras := make([]string, 0, len(r.Extra))
	for name := range r.Extra {
		extras = append(extras, name)
	}
	sort.Strings(extras)
	for _, name := range extras {
		fields = append(fields, Field{name, r.Extra[name]})
	}
	return fields
}
