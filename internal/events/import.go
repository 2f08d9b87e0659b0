package events

// Event types published by the importer.
const (
	TypeEpisodeImported = "episode.imported"
	TypeImportConflict  = "import.conflict"
)

// EpisodeImported fires after a completed download lands in the library.
type EpisodeImported struct {
	BaseEvent
	Season  int    `json:"season"`
	Episode int    `json:"episode"`
	Path    string `json:"path"`
}

// NewEpisodeImported creates an import event keyed by show ID.
func NewEpisodeImported(showID string, season, episode int, path string) EpisodeImported {
	return EpisodeImported{
		BaseEvent: NewBaseEvent(TypeEpisodeImported, showID),
		Season:    season,
		Episode:   episode,
		Path:      path,
	}
}

// ImportConflict fires when an incoming file collides with an episode the
// user already watched. The file stays where it is until someone decides.
type ImportConflict struct {
	BaseEvent
	Season       int    `json:"season"`
	Episode      int    `json:"episode"`
	ExistingPath string `json:"existing_path"`
	IncomingPath string `json:"incoming_path"`
}

// NewImportConflict creates a conflict event keyed by show ID.
func NewImportConflict(showID string, season, episode int, existing, incoming string) ImportConflict {
	return ImportConflict{
		BaseEvent:    NewBaseEvent(TypeImportConflict, showID),
		Season:       season,
		Episode:      episode,
		ExistingPath: existing,
		IncomingPath: incoming,
	}
}
