// Package release infers show identity, season and episode numbers, release
// group and quality from media filenames and torrent titles. The scanner and
// the auto-download tracker both depend on it so that "what episode does this
// name imply" has exactly one answer.
package release

// Info contains everything inferable from a single filename or torrent title.
type Info struct {
	Title   string // show title portion, cleaned for display
	Season  int    // 0 when the name carries no season marker
	Episode int    // 0 when no episode number could be inferred
	Group   string // release group from a [Group] prefix
	Quality string // "1080p", "720p", ... lowercase; empty if absent
	Batch   bool   // looks like a season pack / batch release
}

// Parse extracts all inferable information from a release name.
func Parse(name string) *Info {
	name = stripCompressedSuffix(name)

	info := &Info{
		Group:   ParseGroup(name),
		Quality: ParseQuality(name),
		Batch:   IsBatch(name),
	}
	if ep, ok := ParseEpisodeNumber(name); ok {
		info.Episode = ep
	}
	if s, ok := ParseSeason(name); ok {
		info.Season = s
	}
	info.Title = MakeShowTitle(titlePortion(name))
	return info
}
