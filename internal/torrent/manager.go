package torrent

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/vmunix/seiri/internal/events"
)

// ActiveJob combines a ledger record with live daemon status.
type ActiveJob struct {
	Job  *Job
	Live *RemoteTorrent
}

// Manager orchestrates torrent operations: submissions go to the daemon and
// the ledger together, and Refresh folds daemon state back into the ledger.
type Manager struct {
	backend Backend
	store   *Store
	bus     *events.Bus
	log     *slog.Logger
}

// NewManager creates a torrent manager.
func NewManager(backend Backend, store *Store, bus *events.Bus, log *slog.Logger) *Manager {
	if log == nil {
		log = slog.Default()
	}
	return &Manager{
		backend: backend,
		store:   store,
		bus:     bus,
		log:     log.With("component", "torrent"),
	}
}

// AddRequest describes a torrent to submit.
type AddRequest struct {
	Magnet   string
	Name     string
	ShowID   string
	Season   int
	Episode  int
	SavePath string
}

// Add submits a magnet to the daemon and records the job. Daemon rejection
// wraps ErrSubmissionFailed; a duplicate hash returns the existing job.
func (m *Manager) Add(ctx context.Context, req AddRequest) (*Job, error) {
	hash, err := m.backend.Add(ctx, req.Magnet, req.SavePath)
	if err != nil {
		m.log.Error("submission failed", "name", req.Name, "error", err)
		return nil, err
	}

	j := &Job{
		Hash:     hash,
		Name:     req.Name,
		Magnet:   req.Magnet,
		ShowID:   req.ShowID,
		Season:   req.Season,
		Episode:  req.Episode,
		Status:   StatusQueued,
		SavePath: req.SavePath,
	}
	if err := m.store.Add(j); err != nil {
		// orphan in the daemon is acceptable, Refresh will see it again
		return nil, fmt.Errorf("save job: %w", err)
	}

	m.log.Info("torrent submitted", "name", req.Name, "hash", hash,
		"show", req.ShowID, "episode", req.Episode)
	return j, nil
}

// Pause stops a job's transfer and records it.
func (m *Manager) Pause(ctx context.Context, id int64) error {
	j, err := m.store.Get(id)
	if err != nil {
		return err
	}
	if err := m.backend.Pause(ctx, j.Hash); err != nil {
		return err
	}
	return m.store.Transition(j, StatusPaused)
}

// Resume restarts a paused job. The ledger does not remember the pre-pause
// state, so the job goes back to Queued; the next Refresh replaces that with
// whatever the daemon actually reports.
func (m *Manager) Resume(ctx context.Context, id int64) error {
	j, err := m.store.Get(id)
	if err != nil {
		return err
	}
	if err := m.backend.Resume(ctx, j.Hash); err != nil {
		return err
	}
	return m.store.Transition(j, StatusQueued)
}

// Remove drops a job from the daemon and marks it removed in the ledger.
func (m *Manager) Remove(ctx context.Context, id int64, deleteFiles bool) error {
	j, err := m.store.Get(id)
	if err != nil {
		return err
	}
	// best effort, the torrent may already be gone from the daemon
	if err := m.backend.Remove(ctx, j.Hash, deleteFiles); err != nil {
		m.log.Warn("remove from daemon failed", "hash", j.Hash, "error", err)
	}
	if j.Status == StatusRemoved {
		return nil
	}
	return m.store.Transition(j, StatusRemoved)
}

// Refresh polls the daemon once and syncs remote state into the ledger.
// A failed poll leaves every job exactly as it was.
func (m *Manager) Refresh(ctx context.Context) error {
	jobs, err := m.store.List(JobFilter{Active: true})
	if err != nil {
		return fmt.Errorf("list active: %w", err)
	}
	if len(jobs) == 0 {
		return nil
	}

	remotes, err := m.backend.List(ctx)
	if err != nil {
		m.log.Error("daemon poll failed", "error", err)
		return err
	}
	byHash := make(map[string]RemoteTorrent, len(remotes))
	for _, rt := range remotes {
		byHash[rt.Hash] = rt
	}

	var lastErr error
	for _, j := range jobs {
		if err := m.refreshJob(j, byHash); err != nil {
			m.log.Error("refresh error", "job_id", j.ID, "error", err)
			lastErr = err
		}
	}
	return lastErr
}

func (m *Manager) refreshJob(j *Job, byHash map[string]RemoteTorrent) error {
	rt, known := byHash[j.Hash]
	if !known {
		if j.Status == StatusCompleted {
			// already done; the daemon side was cleaned up externally
			return nil
		}
		m.log.Warn("job vanished from daemon", "job_id", j.ID, "hash", j.Hash)
		if err := m.store.Transition(j, StatusFailed); err != nil {
			return err
		}
		m.publishFailed(j, "torrent missing from daemon")
		return nil
	}

	if rt.Progress != j.Progress || rt.ContentPath != j.ContentPath {
		j.Progress = rt.Progress
		if rt.ContentPath != "" {
			j.ContentPath = rt.ContentPath
		}
		if rt.SavePath != "" {
			j.SavePath = rt.SavePath
		}
		if err := m.store.UpdateProgress(j); err != nil {
			return err
		}
	}

	target, ok := statusForRemote(rt.State)
	if !ok || target == j.Status || !j.Status.CanTransitionTo(target) {
		return nil
	}

	m.log.Info("job status changed", "job_id", j.ID, "status", target, "prev", j.Status)
	if err := m.store.Transition(j, target); err != nil {
		return err
	}

	switch target {
	case StatusCompleted:
		if m.bus != nil {
			m.bus.Publish(events.NewDownloadCompleted(
				j.Hash, j.Name, j.ShowID, j.Season, j.Episode, j.ContentPath))
		}
	case StatusFailed:
		m.publishFailed(j, rt.Error)
	}
	return nil
}

func (m *Manager) publishFailed(j *Job, reason string) {
	if m.bus != nil {
		m.bus.Publish(events.NewDownloadFailed(j.Hash, j.Name, reason))
	}
}

// Active returns non-terminal jobs with live status where available.
func (m *Manager) Active(ctx context.Context) ([]*ActiveJob, error) {
	jobs, err := m.store.List(JobFilter{Active: true})
	if err != nil {
		return nil, err
	}

	var byHash map[string]RemoteTorrent
	if remotes, err := m.backend.List(ctx); err == nil {
		byHash = make(map[string]RemoteTorrent, len(remotes))
		for _, rt := range remotes {
			byHash[rt.Hash] = rt
		}
	}

	out := make([]*ActiveJob, 0, len(jobs))
	for _, j := range jobs {
		aj := &ActiveJob{Job: j}
		if rt, ok := byHash[j.Hash]; ok {
			live := rt
			aj.Live = &live
		}
		out = append(out, aj)
	}
	return out, nil
}

// Store exposes the ledger for read-side callers.
func (m *Manager) Store() *Store { return m.store }

// HasActive reports whether a non-terminal job already targets the episode.
func (m *Manager) HasActive(showID string, season, episode int) (bool, error) {
	return m.store.HasActiveFor(showID, season, episode)
}

// Run polls the daemon on the given interval until the context ends.
func (m *Manager) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := m.Refresh(ctx); err != nil {
				m.log.Debug("refresh pass failed", "error", err)
			}
		}
	}
}
