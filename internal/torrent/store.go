package torrent

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Job is one ledger row: a torrent submitted on behalf of a show episode.
type Job struct {
	ID               int64
	Hash             string
	Name             string
	Magnet           string
	ShowID           string
	Season           int
	Episode          int
	Status           Status
	SavePath         string
	ContentPath      string
	Progress         float64 // 0-1
	AddedAt          time.Time
	CompletedAt      *time.Time
	LastTransitionAt time.Time
}

// JobFilter specifies criteria for listing jobs.
type JobFilter struct {
	ShowID  *string
	Season  *int
	Episode *int
	Status  *Status
	Active  bool // exclude terminal statuses
}

// TransitionEvent describes a status change in the ledger.
type TransitionEvent struct {
	Job  *Job
	From Status
	To   Status
	At   time.Time
}

// TransitionHandler is called after a successful transition.
type TransitionHandler func(TransitionEvent)

// Store persists jobs in sqlite.
type Store struct {
	db       *sql.DB
	handlers []TransitionHandler
}

// NewStore creates a job store on an already-migrated database.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// OnTransition registers a handler to be called on state transitions.
func (s *Store) OnTransition(h TransitionHandler) {
	s.handlers = append(s.handlers, h)
}

const jobColumns = "id, hash, name, magnet, show_id, season, episode, status, save_path, content_path, progress, added_at, completed_at, last_transition_at"

func scanJob(row interface{ Scan(...any) error }) (*Job, error) {
	j := &Job{}
	err := row.Scan(&j.ID, &j.Hash, &j.Name, &j.Magnet, &j.ShowID, &j.Season, &j.Episode,
		&j.Status, &j.SavePath, &j.ContentPath, &j.Progress, &j.AddedAt, &j.CompletedAt, &j.LastTransitionAt)
	if err != nil {
		return nil, err
	}
	return j, nil
}

// Add records a new job. Idempotent on infohash: resubmitting an existing
// torrent returns the existing record.
func (s *Store) Add(j *Job) error {
	existing, err := s.GetByHash(j.Hash)
	if err == nil {
		*j = *existing
		return nil
	}
	if !errors.Is(err, ErrNotFound) {
		return err
	}

	now := time.Now()
	if j.Status == "" {
		j.Status = StatusQueued
	}
	result, err := s.db.Exec(`
		INSERT INTO jobs (hash, name, magnet, show_id, season, episode, status, save_path, content_path, progress, added_at, completed_at, last_transition_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		j.Hash, j.Name, j.Magnet, j.ShowID, j.Season, j.Episode, j.Status,
		j.SavePath, j.ContentPath, j.Progress, now, j.CompletedAt, now,
	)
	if err != nil {
		return fmt.Errorf("insert job: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("get last insert id: %w", err)
	}
	j.ID = id
	j.AddedAt = now
	j.LastTransitionAt = now
	return nil
}

// Get retrieves a job by ID. Returns ErrNotFound if it does not exist.
func (s *Store) Get(id int64) (*Job, error) {
	j, err := scanJob(s.db.QueryRow("SELECT "+jobColumns+" FROM jobs WHERE id = ?", id))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("get job %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get job %d: %w", id, err)
	}
	return j, nil
}

// GetByHash retrieves a job by infohash. Returns ErrNotFound if absent.
func (s *Store) GetByHash(hash string) (*Job, error) {
	j, err := scanJob(s.db.QueryRow("SELECT "+jobColumns+" FROM jobs WHERE hash = ?", hash))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("get job %s: %w", hash, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get job %s: %w", hash, err)
	}
	return j, nil
}

// UpdateProgress stores the latest transfer progress and content path.
func (s *Store) UpdateProgress(j *Job) error {
	result, err := s.db.Exec(`
		UPDATE jobs SET progress = ?, content_path = ?, save_path = ?
		WHERE id = ?`,
		j.Progress, j.ContentPath, j.SavePath, j.ID,
	)
	if err != nil {
		return fmt.Errorf("update job %d: %w", j.ID, err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("update job %d: %w", j.ID, ErrNotFound)
	}
	return nil
}

// Transition changes a job's status with validation and event emission.
func (s *Store) Transition(j *Job, to Status) error {
	if !j.Status.CanTransitionTo(to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, j.Status, to)
	}

	from := j.Status
	now := time.Now()
	var completedAt *time.Time
	if to == StatusCompleted {
		completedAt = &now
	} else {
		completedAt = j.CompletedAt
	}

	result, err := s.db.Exec(`
		UPDATE jobs SET status = ?, completed_at = ?, last_transition_at = ?
		WHERE id = ?`,
		to, completedAt, now, j.ID,
	)
	if err != nil {
		return fmt.Errorf("transition job %d: %w", j.ID, err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("transition job %d: %w", j.ID, ErrNotFound)
	}

	j.Status = to
	j.CompletedAt = completedAt
	j.LastTransitionAt = now

	event := TransitionEvent{Job: j, From: from, To: to, At: now}
	for _, h := range s.handlers {
		h(event)
	}
	return nil
}

// List returns jobs matching the filter, oldest first.
func (s *Store) List(f JobFilter) ([]*Job, error) {
	var conditions []string
	var args []any

	if f.ShowID != nil {
		conditions = append(conditions, "show_id = ?")
		args = append(args, *f.ShowID)
	}
	if f.Season != nil {
		conditions = append(conditions, "season = ?")
		args = append(args, *f.Season)
	}
	if f.Episode != nil {
		conditions = append(conditions, "episode = ?")
		args = append(args, *f.Episode)
	}
	if f.Status != nil {
		conditions = append(conditions, "status = ?")
		args = append(args, *f.Status)
	}
	if f.Active {
		conditions = append(conditions, "status NOT IN (?, ?)")
		args = append(args, StatusRemoved, StatusFailed)
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = "WHERE " + strings.Join(conditions, " AND ")
	}

	rows, err := s.db.Query("SELECT "+jobColumns+" FROM jobs "+whereClause+" ORDER BY id", args...)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var results []*Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		results = append(results, j)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate jobs: %w", err)
	}
	return results, nil
}

// HasActiveFor reports whether a non-terminal job already targets the given
// episode. The tracker's dedup check.
func (s *Store) HasActiveFor(showID string, season, episode int) (bool, error) {
	jobs, err := s.List(JobFilter{ShowID: &showID, Season: &season, Episode: &episode, Active: true})
	if err != nil {
		return false, err
	}
	return len(jobs) > 0, nil
}

// Delete removes a job by ID. Idempotent.
func (s *Store) Delete(id int64) error {
	if _, err := s.db.Exec("DELETE FROM jobs WHERE id = ?", id); err != nil {
		return fmt.Errorf("delete job %d: %w", id, err)
	}
	return nil
}
