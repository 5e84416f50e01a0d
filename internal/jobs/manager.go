// -----------------------------------------------------------------------
// Job Manager - queue, dispatch, progress and cancellation
// -----------------------------------------------------------------------

package jobs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/doctrina/internal/common"
	"github.com/ternarybob/doctrina/internal/models"
	"github.com/ternarybob/doctrina/internal/storage/sqlite"
)

// managedJob pairs the runtime job record with its storage ids and control
// handles
type managedJob struct {
	job       *models.Job
	libraryID int64
	versionID int64
	cancel    context.CancelFunc
	done      chan struct{}
}

// Manager owns the job queue and dispatcher. At most MaxConcurrent jobs run
// at once, and two jobs sharing a (library, version) key never run
// concurrently.
type Manager struct {
	config   common.JobsConfig
	storage  *sqlite.Manager
	executor *Executor
	logger   arbor.ILogger

	mu         sync.Mutex
	jobs       map[string]*managedJob
	queue      []string
	running    int
	activeKeys map[string]bool
	stopped    bool

	wake   chan struct{}
	stopCh chan struct{}
	wg     sync.WaitGroup
	cron   *cron.Cron

	// OnStatusChange fires after every job state transition with a snapshot.
	// Set before Start.
	OnStatusChange func(job models.Job)
	// OnProgress fires on every progress update with a snapshot
	OnProgress func(job models.Job)
	// OnError fires when a job reaches FAILED, with the causing error
	OnError func(job models.Job, err error)
}

// NewManager creates a job manager
func NewManager(config common.JobsConfig, storage *sqlite.Manager, executor *Executor, logger arbor.ILogger) *Manager {
	if config.MaxConcurrent <= 0 {
		config.MaxConcurrent = 3
	}
	return &Manager{
		config:     config,
		storage:    storage,
		executor:   executor,
		logger:     logger,
		jobs:       make(map[string]*managedJob),
		activeKeys: make(map[string]bool),
		wake:       make(chan struct{}, 1),
		stopCh:     make(chan struct{}),
	}
}

// Start reconciles durable state, launches the dispatcher, and arms the
// optional refresh schedule
func (m *Manager) Start(ctx context.Context) error {
	var resume []sqlite.VersionRef
	if m.config.ResumeQueued {
		queued, err := m.storage.Libraries.VersionsWithStatus(ctx, models.VersionStatusQueued)
		if err != nil {
			return err
		}
		resume = queued
	}

	if _, err := m.storage.Libraries.ReconcileOnStartup(ctx); err != nil {
		return err
	}

	for _, ref := range resume {
		if ref.SourceURL == "" {
			continue
		}
		opts := models.DefaultScrapeOptions()
		opts.URL = ref.SourceURL
		opts.Library = ref.Library
		opts.Version = ref.Version
		if _, err := m.Enqueue(ctx, opts); err != nil {
			m.logger.Warn().Err(err).Str("library", ref.Library).Msg("Failed to resume queued version")
		}
	}

	m.wg.Add(1)
	go m.dispatcher()

	if m.config.RefreshSchedule != "" {
		m.cron = cron.New()
		if _, err := m.cron.AddFunc(m.config.RefreshSchedule, m.refreshStale); err != nil {
			return fmt.Errorf("invalid refresh schedule %q: %w", m.config.RefreshSchedule, err)
		}
		m.cron.Start()
		m.logger.Info().Str("schedule", m.config.RefreshSchedule).Msg("Scheduled refresh enabled")
	}

	m.logger.Info().Int("max_concurrent", m.config.MaxConcurrent).Msg("Job manager started")
	return nil
}

// Stop cancels running jobs and waits for the dispatcher to drain
func (m *Manager) Stop() {
	if m.cron != nil {
		m.cron.Stop()
	}

	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		return
	}
	m.stopped = true
	for _, mj := range m.jobs {
		if mj.cancel != nil {
			mj.cancel()
		}
	}
	m.mu.Unlock()

	close(m.stopCh)
	m.wg.Wait()
	m.logger.Info().Msg("Job manager stopped")
}

// Enqueue registers a scrape job: the Version row moves to QUEUED and the
// job joins the dispatch queue
func (m *Manager) Enqueue(ctx context.Context, opts models.ScrapeOptions) (*models.Job, error) {
	if opts.URL == "" {
		return nil, models.NewToolError("url is required")
	}
	if opts.Library == "" {
		return nil, models.NewToolError("library is required")
	}
	opts = opts.Normalized()

	libraryID, err := m.storage.Libraries.EnsureLibrary(ctx, opts.Library)
	if err != nil {
		return nil, err
	}
	versionID, err := m.storage.Libraries.EnsureVersion(ctx, libraryID, opts.Version)
	if err != nil {
		return nil, err
	}
	if err := m.storage.Libraries.SetVersionSource(ctx, versionID, opts.URL); err != nil {
		return nil, err
	}
	if err := m.storage.Libraries.SetVersionStatus(ctx, versionID, models.VersionStatusQueued, ""); err != nil {
		return nil, err
	}

	job := &models.Job{
		ID:        common.NewJobID(),
		Library:   opts.Library,
		Version:   opts.Version,
		Options:   opts,
		Status:    models.JobStatusQueued,
		CreatedAt: time.Now().UTC(),
	}
	mj := &managedJob{
		job:       job,
		libraryID: libraryID,
		versionID: versionID,
		done:      make(chan struct{}),
	}

	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		return nil, models.NewToolError("job manager is stopped")
	}
	m.jobs[job.ID] = mj
	m.queue = append(m.queue, job.ID)
	snap := snapshot(mj)
	m.mu.Unlock()

	m.notifyStatus(mj)
	m.signal()

	m.logger.Info().
		Str("job_id", job.ID).
		Str("library", job.Library).
		Str("version", job.Version).
		Str("url", opts.URL).
		Msg("Job enqueued")
	return snap, nil
}

// GetJob returns a snapshot of one job
func (m *Manager) GetJob(id string) (*models.Job, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	mj, ok := m.jobs[id]
	if !ok {
		return nil, false
	}
	return snapshot(mj), true
}

// ListJobs returns snapshots of all jobs, optionally filtered by status
func (m *Manager) ListJobs(statuses ...models.JobStatus) []*models.Job {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []*models.Job
	for _, mj := range m.jobs {
		if len(statuses) > 0 && !containsStatus(statuses, mj.job.Status) {
			continue
		}
		out = append(out, snapshot(mj))
	}
	return out
}

// WaitForCompletion blocks until the job reaches a terminal state. FAILED
// and CANCELLED surface as errors.
func (m *Manager) WaitForCompletion(ctx context.Context, id string) error {
	m.mu.Lock()
	mj, ok := m.jobs[id]
	m.mu.Unlock()
	if !ok {
		return models.NewToolError("unknown job %s", id)
	}

	select {
	case <-mj.done:
	case <-ctx.Done():
		return &models.CancellationError{Cause: ctx.Err()}
	}

	m.mu.Lock()
	status, errMsg := mj.job.Status, mj.job.Error
	m.mu.Unlock()

	switch status {
	case models.JobStatusCompleted:
		return nil
	case models.JobStatusCancelled:
		return &models.CancellationError{}
	default:
		return fmt.Errorf("job %s failed: %s", id, errMsg)
	}
}

// Cancel stops a job. A QUEUED job cancels immediately; a RUNNING job is
// signalled and awaited until it observes the cancellation.
func (m *Manager) Cancel(ctx context.Context, id string) error {
	m.mu.Lock()
	mj, ok := m.jobs[id]
	if !ok {
		m.mu.Unlock()
		return models.NewToolError("unknown job %s", id)
	}

	switch mj.job.Status {
	case models.JobStatusCompleted, models.JobStatusFailed, models.JobStatusCancelled:
		m.mu.Unlock()
		return nil

	case models.JobStatusQueued:
		m.removeFromQueue(id)
		now := time.Now().UTC()
		mj.job.Status = models.JobStatusCancelled
		mj.job.FinishedAt = &now
		close(mj.done)
		m.mu.Unlock()

		m.notifyStatus(mj)
		if err := m.storage.Libraries.SetVersionStatus(ctx, mj.versionID, models.VersionStatusCancelled, ""); err != nil {
			return err
		}
		m.logger.Info().Str("job_id", id).Msg("Queued job cancelled")
		return nil

	default: // running
		cancel := mj.cancel
		m.mu.Unlock()
		if cancel != nil {
			cancel()
		}
		select {
		case <-mj.done:
			return nil
		case <-ctx.Done():
			return &models.CancellationError{Cause: ctx.Err()}
		}
	}
}

// ClearCompleted drops terminal jobs from the runtime registry
func (m *Manager) ClearCompleted() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	cleared := 0
	for id, mj := range m.jobs {
		if mj.job.Status.IsTerminal() {
			delete(m.jobs, id)
			cleared++
		}
	}
	return cleared
}

// dispatcher pulls queued jobs into free slots
func (m *Manager) dispatcher() {
	defer m.wg.Done()
	for {
		select {
		case <-m.stopCh:
			return
		case <-m.wake:
			m.dispatch()
		}
	}
}

// dispatch starts every queued job that fits a slot and whose key is idle
func (m *Manager) dispatch() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stopped {
		return
	}

	remaining := m.queue[:0]
	for _, id := range m.queue {
		mj, ok := m.jobs[id]
		if !ok {
			continue
		}
		if m.running >= m.config.MaxConcurrent || m.activeKeys[mj.job.Key()] {
			remaining = append(remaining, id)
			continue
		}

		m.running++
		m.activeKeys[mj.job.Key()] = true

		ctx, cancel := context.WithCancel(context.Background())
		mj.cancel = cancel

		m.wg.Add(1)
		go m.runJob(ctx, mj)
	}
	m.queue = remaining
}

// runJob executes one job and records its terminal state
func (m *Manager) runJob(ctx context.Context, mj *managedJob) {
	defer m.wg.Done()
	defer mj.cancel()

	now := time.Now().UTC()
	m.mu.Lock()
	mj.job.Status = models.JobStatusRunning
	mj.job.StartedAt = &now
	m.mu.Unlock()
	m.notifyStatus(mj)

	// Status writes use a background context so a cancelled job can still
	// record its outcome
	if err := m.storage.Libraries.SetVersionStatus(context.Background(), mj.versionID, models.VersionStatusRunning, ""); err != nil {
		m.finishJob(mj, err)
		return
	}

	progress := m.progressFunc(mj)
	_, err := m.executor.Execute(ctx, mj.job, mj.libraryID, mj.versionID, progress)
	m.finishJob(mj, err)
}

// progressFunc builds the per-job progress callback. The runtime snapshot
// updates on every call; the version row write is throttled by interval and
// page count.
func (m *Manager) progressFunc(mj *managedJob) func(models.JobProgress) {
	var lastPersist time.Time
	var lastPages int

	interval := m.config.ProgressInterval
	if interval <= 0 {
		interval = time.Second
	}
	batch := m.config.ProgressBatchSize
	if batch <= 0 {
		batch = 10
	}

	return func(p models.JobProgress) {
		m.mu.Lock()
		mj.job.Progress = p
		snap := *mj.job
		m.mu.Unlock()

		if m.OnProgress != nil {
			m.OnProgress(snap)
		}

		if time.Since(lastPersist) >= interval || p.Pages-lastPages >= batch {
			lastPersist = time.Now()
			lastPages = p.Pages
			if err := m.storage.Libraries.UpdateProgress(context.Background(), mj.versionID, p.Pages, p.TotalPages); err != nil {
				m.logger.Warn().Err(err).Str("job_id", mj.job.ID).Msg("Failed to persist progress")
			}
		}
	}
}

// finishJob records the terminal state on both the runtime job and the
// version row, frees the slot, and wakes the dispatcher
func (m *Manager) finishJob(mj *managedJob, err error) {
	now := time.Now().UTC()

	var jobStatus models.JobStatus
	var versionStatus models.VersionStatus
	var errMsg string
	switch {
	case err == nil:
		jobStatus = models.JobStatusCompleted
		versionStatus = models.VersionStatusCompleted
	case models.IsCancellation(err):
		jobStatus = models.JobStatusCancelled
		versionStatus = models.VersionStatusCancelled
	default:
		jobStatus = models.JobStatusFailed
		versionStatus = models.VersionStatusFailed
		errMsg = err.Error()
	}

	m.mu.Lock()
	mj.job.Status = jobStatus
	mj.job.FinishedAt = &now
	mj.job.Error = errMsg
	m.running--
	delete(m.activeKeys, mj.job.Key())
	m.mu.Unlock()

	if persistErr := m.storage.Libraries.SetVersionStatus(context.Background(), mj.versionID, versionStatus, errMsg); persistErr != nil {
		m.logger.Error().Err(persistErr).Str("job_id", mj.job.ID).Msg("Failed to persist terminal status")
	}
	// Final progress write, unthrottled
	m.mu.Lock()
	p := mj.job.Progress
	m.mu.Unlock()
	if p.Pages > 0 {
		if persistErr := m.storage.Libraries.UpdateProgress(context.Background(), mj.versionID, p.Pages, p.TotalPages); persistErr != nil {
			m.logger.Warn().Err(persistErr).Str("job_id", mj.job.ID).Msg("Failed to persist final progress")
		}
	}

	m.notifyStatus(mj)
	if jobStatus == models.JobStatusFailed && m.OnError != nil {
		m.mu.Lock()
		snap := *mj.job
		m.mu.Unlock()
		m.OnError(snap, err)
	}
	close(mj.done)
	m.signal()

	event := m.logger.Info()
	if jobStatus == models.JobStatusFailed {
		event = m.logger.Warn().Err(err)
	}
	event.
		Str("job_id", mj.job.ID).
		Str("library", mj.job.Library).
		Str("status", string(jobStatus)).
		Msg("Job finished")
}

// refreshStale re-enqueues completed versions older than the staleness window
func (m *Manager) refreshStale() {
	if m.config.RefreshAfter <= 0 {
		return
	}
	ctx := context.Background()

	summaries, err := m.storage.Libraries.ListLibraries(ctx)
	if err != nil {
		m.logger.Warn().Err(err).Msg("Stale refresh listing failed")
		return
	}

	cutoff := time.Now().Add(-m.config.RefreshAfter)
	for _, lib := range summaries {
		for _, v := range lib.Versions {
			if v.Status != models.VersionStatusCompleted || v.SourceURL == "" {
				continue
			}
			if v.IndexedAt == nil || v.IndexedAt.After(cutoff) {
				continue
			}
			if m.hasPendingKey(lib.Library + "@" + v.Ref) {
				continue
			}

			opts := models.DefaultScrapeOptions()
			opts.URL = v.SourceURL
			opts.Library = lib.Library
			opts.Version = v.Ref
			if _, err := m.Enqueue(ctx, opts); err != nil {
				m.logger.Warn().Err(err).Str("library", lib.Library).Msg("Stale refresh enqueue failed")
				continue
			}
			m.logger.Info().
				Str("library", lib.Library).
				Str("version", v.Ref).
				Msg("Re-enqueued stale version")
		}
	}
}

// hasPendingKey reports whether a non-terminal job exists for the key
func (m *Manager) hasPendingKey(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, mj := range m.jobs {
		if mj.job.Key() == key && !mj.job.Status.IsTerminal() {
			return true
		}
	}
	return false
}

// removeFromQueue drops a job id from the pending queue. Caller holds mu.
func (m *Manager) removeFromQueue(id string) {
	for i, queued := range m.queue {
		if queued == id {
			m.queue = append(m.queue[:i], m.queue[i+1:]...)
			return
		}
	}
}

func (m *Manager) signal() {
	select {
	case m.wake <- struct{}{}:
	default:
	}
}

func (m *Manager) notifyStatus(mj *managedJob) {
	if m.OnStatusChange == nil {
		return
	}
	m.mu.Lock()
	snap := *mj.job
	m.mu.Unlock()
	m.OnStatusChange(snap)
}

// snapshot copies the job record for callers outside the manager's lock
func snapshot(mj *managedJob) *models.Job {
	copied := *mj.job
	return &copied
}

func containsStatus(statuses []models.JobStatus, status models.JobStatus) bool {
	for _, s := range statuses {
		if s == status {
			return true
		}
	}
	return false
}
