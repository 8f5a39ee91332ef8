package pipeline

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"genre-swap/pkg/analysis"
	"genre-swap/pkg/config"
	apperrors "genre-swap/pkg/errors"
	"genre-swap/pkg/genre"
	"genre-swap/pkg/mixer"
	"genre-swap/pkg/models"
	"genre-swap/pkg/separation"
	"genre-swap/pkg/storage"
	"genre-swap/pkg/transform"

	lru "github.com/hashicorp/golang-lru/v2"
)

// finished jobs kept for status lookups after they leave the active set
const jobHistorySize = 1024

// Deps are the components a Coordinator drives.
type Deps struct {
	Store     *storage.AudioStore
	Registry  *genre.Registry
	Separator *separation.Separator
	Analyzer  *analysis.Analyzer
	Engine    *transform.Engine
	Mixer     *mixer.Mixer
	Assessor  *analysis.Assessor
}

// CompletionHook is called once per job after it reaches a terminal state.
// For done jobs the result has already been written to the store; result
// is nil otherwise.
type CompletionHook func(job models.SwapJob, result *models.SwapResult, err error)

// job is the coordinator's live view of one SwapJob.
type job struct {
	mu        sync.Mutex
	swap      models.SwapJob
	startedAt time.Time

	cancelled atomic.Bool
	progress  *progress
	done      chan struct{}
	result    *models.SwapResult
	err       error
}

func newJob(sj *models.SwapJob) *job {
	return &job{swap: *sj, progress: newProgress(), done: make(chan struct{})}
}

func (j *job) snapshot() models.SwapJob {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.swap
}

// Coordinator owns the swap state machine. Requests for a cacheKey that is
// already running attach to the running job.
type Coordinator struct {
	deps   Deps
	config config.PipelineConfig
	logger *slog.Logger
	pool   *WorkerPool

	mu       sync.Mutex
	active   map[string]*job // by cache key
	jobs     *lru.Cache[string, *job]
	hooks    []CompletionHook
	started  bool
	stopping bool

	ctx    context.Context
	cancel context.CancelFunc
}

func NewCoordinator(deps Deps, cfg config.PipelineConfig, logger *slog.Logger) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	jobs, _ := lru.New[string, *job](jobHistorySize)
	c := &Coordinator{
		deps:   deps,
		config: cfg,
		logger: logger.With("component", "coordinator"),
		active: make(map[string]*job),
		jobs:   jobs,
	}
	c.pool = NewWorkerPool(cfg.Workers, cfg.QueueSize, c.runJob)
	return c
}

// OnComplete registers a hook for jobs that finish after the call.
func (c *Coordinator) OnComplete(hook CompletionHook) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.hooks = append(c.hooks, hook)
}

func (c *Coordinator) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ctx, c.cancel = context.WithCancel(ctx)
	c.logger.Info("Swap Coordinator: Starting...", "workers", c.config.Workers, "queue_size", c.config.QueueSize)
	c.pool.Start(c.ctx)
	c.started = true
	return nil
}

// Stop cancels running jobs, waits for the workers and fails every job
// that never ran.
func (c *Coordinator) Stop() {
	c.mu.Lock()
	if !c.started || c.stopping {
		c.mu.Unlock()
		return
	}
	c.stopping = true
	c.mu.Unlock()

	c.logger.Info("Swap Coordinator: Stopping...")
	c.cancel()
	c.pool.Stop()

	c.mu.Lock()
	pending := make([]*job, 0, len(c.active))
	for _, j := range c.active {
		pending = append(pending, j)
	}
	c.mu.Unlock()
	for _, j := range pending {
		c.fail(j, "", apperrors.ErrShuttingDown)
	}
	c.logger.Info("Swap Coordinator: Stopped.")
}

// RequestSwap starts (or joins) the swap of trackID with opts. A cached
// result completes the returned handle immediately.
func (c *Coordinator) RequestSwap(trackID string, opts models.SwapOptions) (*Handle, error) {
	sj := models.NewSwapJob(trackID, opts)

	c.mu.Lock()
	if !c.started || c.stopping {
		c.mu.Unlock()
		return nil, apperrors.ErrShuttingDown
	}
	if j, ok := c.active[sj.CacheKey]; ok {
		c.mu.Unlock()
		c.logger.Info("Swap Coordinator: attaching to running job", "job_id", j.swap.ID, "cache_key", sj.CacheKey)
		return &Handle{JobID: j.swap.ID, CacheKey: sj.CacheKey, job: j, coord: c}, nil
	}
	c.mu.Unlock()

	if res, ok := c.deps.Store.GetResult(sj.CacheKey); ok {
		j := newJob(sj)
		c.mu.Lock()
		c.jobs.Add(sj.ID, j)
		c.mu.Unlock()
		c.complete(j, res, true)
		return &Handle{JobID: sj.ID, CacheKey: sj.CacheKey, job: j, coord: c}, nil
	}
	if _, err := c.deps.Store.GetTrack(trackID); err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stopping {
		return nil, apperrors.ErrShuttingDown
	}
	// another request may have won the race while the lock was released
	if j, ok := c.active[sj.CacheKey]; ok {
		return &Handle{JobID: j.swap.ID, CacheKey: sj.CacheKey, job: j, coord: c}, nil
	}
	j := newJob(sj)
	if err := c.pool.Submit(j); err != nil {
		c.logger.Warn("Swap Coordinator: rejecting request", "track_id", trackID, "error", err)
		return nil, err
	}
	c.active[sj.CacheKey] = j
	c.jobs.Add(sj.ID, j)
	c.logger.Info("Swap Coordinator: job queued", "job_id", sj.ID, "track_id", trackID, "genre", sj.Options.TargetGenreID, "cache_key", sj.CacheKey)
	return &Handle{JobID: sj.ID, CacheKey: sj.CacheKey, job: j, coord: c}, nil
}

// Cancel asks the job to stop at its next stage boundary. Every caller
// attached to the job observes the cancellation.
func (c *Coordinator) Cancel(jobID string) error {
	j, ok := c.lookup(jobID)
	if !ok {
		return apperrors.ErrJobNotFound
	}
	if j.snapshot().Status.Terminal() {
		return nil
	}
	j.cancelled.Store(true)
	c.logger.Info("Swap Coordinator: cancel requested", "job_id", jobID)
	return nil
}

// Job returns a snapshot of a live or recently finished job.
func (c *Coordinator) Job(jobID string) (models.SwapJob, error) {
	j, ok := c.lookup(jobID)
	if !ok {
		return models.SwapJob{}, apperrors.ErrJobNotFound
	}
	return j.snapshot(), nil
}

// Handle returns a handle to a live or recently finished job.
func (c *Coordinator) Handle(jobID string) (*Handle, error) {
	j, ok := c.lookup(jobID)
	if !ok {
		return nil, apperrors.ErrJobNotFound
	}
	return &Handle{JobID: jobID, CacheKey: j.swap.CacheKey, job: j, coord: c}, nil
}

// ActiveJobs is the number of non-terminal jobs.
func (c *Coordinator) ActiveJobs() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.active)
}

func (c *Coordinator) lookup(jobID string) (*job, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.jobs.Get(jobID)
}

// advance moves j to status and emits the progress event. It refuses any
// transition the state machine forbids.
func (c *Coordinator) advance(j *job, status models.JobStatus) bool {
	if status.Terminal() {
		// new requests must not attach once the job reports a final state
		c.retire(j)
	}
	j.mu.Lock()
	from := j.swap.Status
	if !models.CanTransition(from, status) {
		j.mu.Unlock()
		c.logger.Error("Swap Coordinator: illegal transition", "job_id", j.swap.ID, "from", from, "to", status)
		return false
	}
	j.swap.Status = status
	j.swap.UpdatedAt = time.Now()
	percent := status.Percent()
	if status == models.StatusFailed || status == models.StatusCancelled {
		percent = from.Percent()
	}
	ev := models.ProgressEvent{JobID: j.swap.ID, Stage: status, Percent: percent, At: j.swap.UpdatedAt}
	j.mu.Unlock()

	j.progress.publish(ev)
	c.logger.Debug("Swap Coordinator: stage", "job_id", ev.JobID, "stage", status, "percent", percent)
	return true
}

func (c *Coordinator) complete(j *job, result *models.SwapResult, cacheHit bool) {
	j.mu.Lock()
	j.swap.CacheHit = cacheHit
	j.mu.Unlock()
	if !c.advance(j, models.StatusDone) {
		return
	}
	j.result = result
	c.finish(j)
}

func (c *Coordinator) fail(j *job, stage string, cause error) {
	status := models.StatusFailed
	if apperrors.Is(cause, apperrors.ErrCancelled) {
		status = models.StatusCancelled
	}
	j.mu.Lock()
	if j.swap.Status.Terminal() {
		j.mu.Unlock()
		return
	}
	if stage == "" {
		stage = string(j.swap.Status)
	}
	j.swap.FailedStage = stage
	j.swap.Error = cause.Error()
	j.mu.Unlock()

	if !c.advance(j, status) {
		return
	}
	j.err = &apperrors.JobError{JobID: j.swap.ID, Stage: stage, Cause: cause}
	c.finish(j)
}

func (c *Coordinator) retire(j *job) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active[j.swap.CacheKey] == j {
		delete(c.active, j.swap.CacheKey)
	}
}

// finish releases waiters and runs the completion hooks.
func (c *Coordinator) finish(j *job) {
	c.mu.Lock()
	hooks := c.hooks
	c.mu.Unlock()

	close(j.done)
	j.progress.close()

	snap := j.snapshot()
	c.logger.Info("Swap Coordinator: job finished",
		"job_id", snap.ID, "status", snap.Status, "cache_hit", snap.CacheHit, "failed_stage", snap.FailedStage)

	for _, hook := range hooks {
		c.runHook(hook, snap, j.result, j.err)
	}
}

func (c *Coordinator) runHook(hook CompletionHook, snap models.SwapJob, result *models.SwapResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("Swap Coordinator: completion hook panicked", "job_id", snap.ID, "panic", r)
		}
	}()
	hook(snap, result, err)
}

// Handle is a caller's view of a job.
type Handle struct {
	JobID    string
	CacheKey string

	job   *job
	coord *Coordinator
}

// Progress returns a stream of the job's events, starting with a replay
// of those already emitted. The channel closes after the terminal event.
func (h *Handle) Progress() <-chan models.ProgressEvent {
	return h.job.progress.subscribe()
}

// Wait blocks until the job is terminal or ctx is done. A failed or
// cancelled job returns a *apperrors.JobError.
func (h *Handle) Wait(ctx context.Context) (*models.SwapResult, error) {
	select {
	case <-h.job.done:
		return h.job.result, h.job.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Done is closed when the job is terminal.
func (h *Handle) Done() <-chan struct{} {
	return h.job.done
}

func (h *Handle) Cancel() {
	_ = h.coord.Cancel(h.JobID)
}

func (h *Handle) Status() models.SwapJob {
	return h.job.snapshot()
}
