package youtube

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/csouto/channel-scout/internal/scout"
)

// shortsKeywords flags short-form content across the languages the original
// operator base searches in.
var shortsKeywords = []string{
	// English
	"shorts", "#shorts", "short video", "short form", "short-form",
	"tiktok", "tiktoks", "reels", "reel", "vertical video",
	"60 seconds", "under 60", "under 1 minute",
	"#short", "short content", "shorts channel", "shortfilm",

	// Portuguese
	"vídeo curto", "vídeos curtos", "shorts brasileiro",
	"video curto", "videos curtos",

	// Spanish
	"corto", "cortos", "video corto",

	// Japanese / Chinese
	"短編", "短视频", "短動画", "ショート", "短片",
}

// hasShortsKeyword reports whether any short-form keyword appears in text.
func hasShortsKeyword(text string) bool {
	if text == "" {
		return false
	}
	lower := strings.ToLower(text)
	for _, keyword := range shortsKeywords {
		if strings.Contains(lower, keyword) {
			return true
		}
	}
	for _, word := range strings.Fields(lower) {
		if word == "shorts" || word == "#shorts" {
			return true
		}
	}
	return false
}

// countShortsMentions counts keyword occurrences plus isolated "shorts"
// words.
func countShortsMentions(text string) int {
	if text == "" {
		return 0
	}
	lower := strings.ToLower(text)
	count := 0
	for _, keyword := range shortsKeywords {
		count += strings.Count(lower, keyword)
	}
	for _, word := range strings.Fields(lower) {
		if word == "shorts" || word == "#shorts" {
			count++
		}
	}
	return count
}

// shortsConfidence weighs every available signal into a 0-100 score:
// search-time URL pattern 50, search-time keyword 10, last-upload URL
// pattern 25, last-upload duration 5, title keyword 5, description keyword 5.
func shortsConfidence(hints scout.Hints, lastVideoShortsURL, lastVideoShortDuration, inTitle, inDescription bool) int {
	score := 0
	if hints.IsShortsURL {
		score += 50
	}
	if hints.IsShortsKeyword {
		score += 10
	}
	if lastVideoShortsURL {
		score += 25
	}
	if lastVideoShortDuration {
		score += 5
	}
	if inTitle {
		score += 5
	}
	if inDescription {
		score += 5
	}
	return min(100, score)
}

var emailPatterns = []*regexp.Regexp{
	regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`),
	regexp.MustCompile(`[a-zA-Z0-9._%+-]+\[at\][a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`),
	regexp.MustCompile(`[a-zA-Z0-9._%+-]+\s*@\s*[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`),
}

var emailExact = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

// extractEmail pulls the first contact address out of a channel description,
// deobfuscating the common "[at]" spelling. Returns "" when none is found.
func extractEmail(text string) string {
	if text == "" {
		return ""
	}
	for _, pattern := range emailPatterns {
		match := pattern.FindString(text)
		if match == "" {
			continue
		}
		email := strings.ReplaceAll(match, "[at]", "@")
		email = strings.ReplaceAll(email, " ", "")
		if emailExact.MatchString(email) {
			return email
		}
	}
	return ""
}

var socialPatterns = map[string]*regexp.Regexp{
	"instagram": regexp.MustCompile(`(?i)(?:https?://)?(?:www\.)?instagram\.com/([a-zA-Z0-9._]+)`),
	"twitter":   regexp.MustCompile(`(?i)(?:https?://)?(?:www\.)?(?:twitter|x)\.com/([a-zA-Z0-9_]+)`),
	"facebook":  regexp.MustCompile(`(?i)(?:https?://)?(?:www\.)?facebook\.com/([a-zA-Z0-9.]+)`),
	"tiktok":    regexp.MustCompile(`(?i)(?:https?://)?(?:www\.)?tiktok\.com/@([a-zA-Z0-9._]+)`),
	"linkedin":  regexp.MustCompile(`(?i)(?:https?://)?(?:www\.)?linkedin\.com/(?:in|company)/([a-zA-Z0-9-]+)`),
}

var websitePattern = regexp.MustCompile(`(?i)(?:https?://)?(?:www\.)?([a-zA-Z0-9.-]+\.[a-zA-Z]{2,})(?:/[^\s]*)?`)

var knownSocialHosts = []string{"youtube", "instagram", "twitter", "facebook", "tiktok", "linkedin"}

// links summarizes the social handles and plain websites found in a
// description, capped at 3 handles per platform and 5 websites.
type links struct {
	Social     string
	Websites   string
	TotalFound int
}

func extractLinks(text string) links {
	if text == "" {
		return links{}
	}

	social := make(map[string][]string)
	for platform, pattern := range socialPatterns {
		matches := pattern.FindAllStringSubmatch(text, -1)
		if len(matches) == 0 {
			continue
		}
		seen := make(map[string]struct{})
		handles := []string{}
		for _, match := range matches {
			handle := match[1]
			if _, dup := seen[handle]; dup {
				continue
			}
			seen[handle] = struct{}{}
			handles = append(handles, handle)
			if len(handles) == 3 {
				break
			}
		}
		social[platform] = handles
	}

	seenSites := make(map[string]struct{})
	websites := []string{}
	for _, match := range websitePattern.FindAllStringSubmatch(text, -1) {
		domain := strings.ToLower(match[1])
		if isSocialHost(domain) {
			continue
		}
		if _, dup := seenSites[domain]; dup {
			continue
		}
		seenSites[domain] = struct{}{}
		websites = append(websites, "https://"+domain)
		if len(websites) == 5 {
			break
		}
	}

	platforms := make([]string, 0, len(social))
	for platform := range social {
		platforms = append(platforms, platform)
	}
	sort.Strings(platforms)
	parts := make([]string, 0, len(platforms))
	for _, platform := range platforms {
		parts = append(parts, fmt.Sprintf("%s:%s", platform, strings.Join(social[platform], ",")))
	}

	return links{
		Social:     strings.Join(parts, "; "),
		Websites:   strings.Join(websites, "; "),
		TotalFound: len(social) + len(websites),
	}
}

func isSocialHost(domain string) bool {
	for _, host := range knownSocialHosts {
		if strings.Contains(domain, host) {
			return true
		}
	}
	return false
}

var (
	durationHours   = regexp.MustCompile(`(\d+)H`)
	durationMinutes = regexp.MustCompile(`(\d+)M`)
	durationSeconds = regexp.MustCompile(`(\d+)S`)
	durationBareNum = regexp.MustCompile(`^(\d+)$`)
)

// parseISODuration converts a platform duration like PT1H2M3S to seconds.
// A trailing bare number after the hours component (e.g. "PT1H20") is read
// as minutes, matching observed API responses. Unparseable input reports ok
// false.
func parseISODuration(duration string) (int, bool) {
	rest := strings.TrimPrefix(duration, "PT")
	if rest == duration {
		rest = strings.TrimPrefix(duration, "P")
	}
	if rest == "" || rest == "0D" {
		return 0, true
	}

	total := 0
	parsed := false
	if match := durationHours.FindStringSubmatch(rest); match != nil {
		hours, _ := strconv.Atoi(match[1])
		total += hours * 3600
		parsed = true
		rest = strings.Replace(rest, match[0], "", 1)
	}
	if match := durationMinutes.FindStringSubmatch(rest); match != nil {
		minutes, _ := strconv.Atoi(match[1])
		total += minutes * 60
		parsed = true
	} else if match := durationBareNum.FindStringSubmatch(rest); match != nil {
		minutes, _ := strconv.Atoi(match[1])
		total += minutes * 60
		parsed = true
	}
	if match := durationSeconds.FindStringSubmatch(rest); match != nil {
		seconds, _ := strconv.Atoi(match[1])
		total += seconds
		parsed = true
	}
	if !parsed {
		return 0, false
	}
	return total, true
}

// qualityKeywords raise the content score; casualKeywords lower it.
var qualityKeywords = map[string]int{
	"tutorial": 10, "education": 10, "course": 15, "learn": 8,
	"how to": 12, "guide": 10, "training": 10, "academy": 15,
	"masterclass": 20, "workshop": 12, "professional": 10,
	"business": 10, "enterprise": 12, "company": 8,
	"educational": 10, "knowledge": 8, "teaching": 10,
	"instruction": 8, "expert": 10, "specialist": 10,
}

var casualKeywords = map[string]int{
	"shorts": -25, "#shorts": -30, "#short": -25, "short": -20,
	"tiktok": -20, "reels": -20, "funny": -15, "compilation": -20,
	"memes": -20, "fails": -15, "prank": -15, "challenge": -10,
	"viral": -15, "trending": -10, "react": -10, "reaction": -10,
	"entertainment": -5, "fun": -5, "laugh": -5, "comedy": -5,
	"秒": -25, "短編": -25, "短視頻": -25,
}

// contentWarningScore rates how likely a channel publishes casual
// short-form content rather than substantive material, 0 (casual) to
// 100 (substantive), starting from a neutral 50.
func contentWarningScore(description, title string) int {
	score := 50
	lowerDesc := strings.ToLower(description)
	lowerTitle := strings.ToLower(title)
	for keyword, points := range qualityKeywords {
		if strings.Contains(lowerDesc, keyword) || strings.Contains(lowerTitle, keyword) {
			score += points
		}
	}
	for keyword, points := range casualKeywords {
		if strings.Contains(lowerDesc, keyword) || strings.Contains(lowerTitle, keyword) {
			score += points
		}
	}
	return max(0, min(100, score))
}

// daysSince converts a raw upload timestamp into whole days before now,
// or -1 when the timestamp is absent or unparseable.
func daysSince(raw string, now time.Time) int {
	if raw == "" {
		return -1
	}
	ts, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return -1
	}
	return int(now.UTC().Sub(ts.UTC()).Hours() / 24)
}

// activityScore rates channel liveliness 0-100 from upload recency, the
// presence of a contact email, and audience size.
func activityScore(daysSinceLast int, hasEmail bool, subscribers int64) int {
	score := 0
	switch {
	case daysSinceLast >= 0 && daysSinceLast <= 7:
		score += 45
	case daysSinceLast >= 0 && daysSinceLast <= 30:
		score += 30
	case daysSinceLast >= 0 && daysSinceLast <= 90:
		score += 15
	}
	if hasEmail {
		score += 20
	}
	if score > 0 && subscribers > 1000 {
		score += 15
	}
	return min(100, score)
}

// activityStatus buckets the score for operator display.
func activityStatus(score int) string {
	switch {
	case score >= 60:
		return "Active"
	case score >= 30:
		return "Slowing"
	case score > 0:
		return "Dormant"
	default:
		return "Inactive"
	}
}

// channelSize buckets subscriber counts into the ledger's size categories.
func channelSize(subscribers int64) string {
	switch {
	case subscribers >= 1_000_000:
		return "Mega"
	case subscribers >= 100_000:
		return "Large"
	case subscribers >= 10_000:
		return "Medium"
	case subscribers >= 1_000:
		return "Small"
	default:
		return "Micro"
	}
}

// formatDate renders a platform timestamp in the spreadsheet-friendly form.
// Unparseable input is passed through untouched.
func formatDate(raw string) string {
	if raw == "" {
		return ""
	}
	ts, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return raw
	}
	return ts.Format("2006-01-02 15:04:05")
}
