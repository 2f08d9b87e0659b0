package release

import (
	"regexp"
	"strconv"
	"strings"
)

// compressedSuffix is appended to episode files by the archive codec. Parsing
// must see through it so compressed episodes keep their identity.
const compressedSuffix = ".zst"

var videoExtensions = []string{".mkv", ".mp4", ".avi", ".webm", ".m4v", ".mov"}

// episodePatterns are tried in order; first match wins. Ordering matters:
// fansub "- NN" style must beat the bare-number fallbacks.
var episodePatterns = []*regexp.Regexp{
	// [SubGroup] Show Name - 01 [1080p].mkv, Show Name - 01v2.mkv
	regexp.MustCompile(`- (\d{1,4})(?:v\d)?(?:\s*[\[\(]|\.|\s|$)`),
	// S01E01 western naming
	regexp.MustCompile(`[Ss]\d{1,2}[Ee](\d{1,3})`),
	// Show.Name.01.mkv, Show_Name_01.mkv
	regexp.MustCompile(`[._\s](\d{1,3})[._\s]*(?:\[|$|\.)`),
	// bare number at start: 01.mkv, 01 - title.mkv
	regexp.MustCompile(`^(\d{1,3})(?:\s*[-._]|\.mkv|\.mp4|\.avi)`),
	// Episode 01, Ep 01, EP01
	regexp.MustCompile(`[Ee][Pp](?:isode)?[\s._]*(\d{1,3})`),
	// short form E01
	regexp.MustCompile(`(?:[-._\s]|^)[Ee](\d{1,4})(?:v\d)?(?:[._\s]|$)`),
}

var seasonPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\bS(\d{1,2})\s*E\d`),
	regexp.MustCompile(`(?i)\bSeason\s*(\d{1,2})\b`),
	regexp.MustCompile(`(?i)\bS(\d{1,2})\b`),
}

var batchPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\[batch\]`),
	regexp.MustCompile(`(?i)\bcomplete\b`),
	regexp.MustCompile(`(?i)\bseason\s+\d+\b`),
	regexp.MustCompile(`(?i)\d+-\d+\s*(?:END|FINAL)`),
}

var (
	groupRegex   = regexp.MustCompile(`^\[([^\]]+)\]`)
	qualityRegex = regexp.MustCompile(`((?:360|480|720|1080|2160)[pP]|4[kK])`)
	// title portion ends where episode/season/bracket noise begins
	titleCutRegex = regexp.MustCompile(`(?i)(\s*-\s*\d{1,4}\b.*|\bS\d{1,2}E\d{1,3}\b.*|\bSeason\s*\d{1,2}\b.*|\s*[\[\(].*)$`)
)

func stripCompressedSuffix(name string) string {
	return strings.TrimSuffix(name, compressedSuffix)
}

// ParseEpisodeNumber infers an episode number from a filename or torrent
// title. The second return is false when nothing plausible was found.
func ParseEpisodeNumber(name string) (int, bool) {
	name = stripCompressedSuffix(name)

	for _, pattern := range episodePatterns {
		m := pattern.FindStringSubmatch(name)
		if m == nil {
			continue
		}
		num, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		// episode numbers are realistically 1-999
		if num > 0 && num < 1000 {
			return num, true
		}
	}
	return 0, false
}

// ParseSeason infers a season number from markers like S02, S02E05 or
// "Season 2". Returns false when the name carries no season marker.
func ParseSeason(name string) (int, bool) {
	for _, pattern := range seasonPatterns {
		m := pattern.FindStringSubmatch(name)
		if m == nil {
			continue
		}
		num, err := strconv.Atoi(m[1])
		if err != nil || num == 0 {
			continue
		}
		return num, true
	}
	return 0, false
}

// ParseGroup extracts the release group from a [Group] prefix.
func ParseGroup(name string) string {
	if m := groupRegex.FindStringSubmatch(name); m != nil {
		return m[1]
	}
	return ""
}

// ParseQuality extracts a resolution token ("1080p", "4k", ...) lowercased.
func ParseQuality(name string) string {
	if m := qualityRegex.FindStringSubmatch(name); m != nil {
		return strings.ToLower(m[1])
	}
	return ""
}

// IsBatch reports whether a torrent title looks like a season pack rather
// than a single episode. Size-based detection is layered on by the search
// client, which knows the payload size.
func IsBatch(title string) bool {
	for _, pattern := range batchPatterns {
		if pattern.MatchString(title) {
			return true
		}
	}
	// SNN with no episode attached is a pack marker too
	if regexp.MustCompile(`\bS\d{2}\b`).MatchString(title) {
		if _, ok := ParseEpisodeNumber(title); !ok {
			return true
		}
	}
	return false
}

// IsVideoFile reports whether the filename looks like a playable video,
// including compressed archives of one.
func IsVideoFile(name string) bool {
	lower := strings.ToLower(name)
	lower = strings.TrimSuffix(lower, compressedSuffix)
	for _, ext := range videoExtensions {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}

// IsCompressed reports whether the filename carries the archive suffix.
func IsCompressed(name string) bool {
	return strings.HasSuffix(name, compressedSuffix)
}

// titlePortion returns the part of a release name before episode markers and
// bracketed noise, with any leading [Group] tag removed.
func titlePortion(name string) string {
	s := groupRegex.ReplaceAllString(name, "")
	s = titleCutRegex.ReplaceAllString(s, "")
	// drop a trailing extension if the cut left one
	for _, ext := range videoExtensions {
		s = strings.TrimSuffix(strings.TrimSpace(s), ext)
	}
	return strings.TrimRight(strings.TrimSpace(s), "-: ")
}
