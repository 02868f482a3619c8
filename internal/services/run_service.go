package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"bankcap/internal/etl"
	"bankcap/internal/pipeline"
)

// Runner executes runs and exposes their handoff results. *pipeline.Scheduler satisfies it.
type Runner interface {
	Run(ctx context.Context, req pipeline.RunRequest) (*pipeline.Run, error)
	Result(ctx context.Context, runID, stageID string) (pipeline.TaskResult, error)
	Release(ctx context.Context, runID string) error
	GetRun(id string) (*pipeline.Run, error)
}

// RunRecord is a run snapshot plus the query results of a succeeded run
type RunRecord struct {
	Run     *pipeline.Run     `json:"run"`
	Results []etl.QueryResult `json:"results,omitempty"`
}

// RunServiceOptions bounds concurrency and history
type RunServiceOptions struct {
	MaxConcurrentRuns int
	HistorySize       int
}

// RunService triggers runs and remembers how they ended
type RunService struct {
	runner  Runner
	sem     *semaphore.Weighted
	metrics *RunMetrics
	logger  *slog.Logger

	mu          sync.RWMutex
	records     map[string]*RunRecord
	order       []string
	historySize int
	closed      bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewRunService creates a run service. A nil metrics gets an unregistered set.
func NewRunService(runner Runner, opts RunServiceOptions, metrics *RunMetrics, logger *slog.Logger) *RunService {
	if logger == nil {
		logger = slog.Default()
	}
	if metrics == nil {
		metrics = NewRunMetrics(nil)
	}
	if opts.MaxConcurrentRuns < 1 {
		opts.MaxConcurrentRuns = 1
	}
	if opts.HistorySize < 1 {
		opts.HistorySize = 1
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &RunService{
		runner:      runner,
		sem:         semaphore.NewWeighted(int64(opts.MaxConcurrentRuns)),
		metrics:     metrics,
		logger:      logger.With(slog.String("component", "run_service")),
		records:     make(map[string]*RunRecord),
		historySize: opts.HistorySize,
		ctx:         ctx,
		cancel:      cancel,
	}
}

// Trigger starts a run in the background and returns its id.
// It returns ErrAtCapacity instead of waiting for a free slot.
func (s *RunService) Trigger(ctx context.Context, trigger pipeline.Trigger) (string, error) {
	if s.isClosed() {
		return "", ErrServiceClosed
	}
	if !s.sem.TryAcquire(1) {
		s.metrics.rejected.Inc()
		s.logger.WarnContext(ctx, "run_rejected",
			slog.String("trigger", string(trigger)),
			slog.String("reason", ErrAtCapacity.Error()))
		return "", ErrAtCapacity
	}

	id := uuid.NewString()
	s.remember(&RunRecord{Run: pipeline.NewRun(id, trigger)})

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.sem.Release(1)
		_, _ = s.execute(s.ctx, id, trigger)
	}()

	s.logger.InfoContext(ctx, "run_triggered",
		slog.String("run_id", id),
		slog.String("trigger", string(trigger)))
	return id, nil
}

// Execute runs synchronously, waiting for a free slot first
func (s *RunService) Execute(ctx context.Context, trigger pipeline.Trigger) (*RunRecord, error) {
	if s.isClosed() {
		return nil, ErrServiceClosed
	}
	if err := s.sem.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("wait for run slot: %w", err)
	}
	defer s.sem.Release(1)

	id := uuid.NewString()
	s.remember(&RunRecord{Run: pipeline.NewRun(id, trigger)})
	return s.execute(ctx, id, trigger)
}

func (s *RunService) execute(ctx context.Context, id string, trigger pipeline.Trigger) (*RunRecord, error) {
	s.metrics.triggered.WithLabelValues(string(trigger)).Inc()
	s.metrics.active.Inc()
	defer s.metrics.active.Dec()

	run, runErr := s.runner.Run(ctx, pipeline.RunRequest{ID: id, Trigger: trigger})
	record := &RunRecord{Run: run}

	if runErr == nil {
		results, err := s.queryResults(ctx, id)
		if err != nil {
			s.logger.WarnContext(ctx, "query_results_unavailable",
				slog.String("run_id", id),
				slog.String("error", err.Error()))
		} else {
			record.Results = results
		}
	}

	if err := s.runner.Release(context.WithoutCancel(ctx), id); err != nil {
		s.logger.WarnContext(ctx, "handoff_release_failed",
			slog.String("run_id", id),
			slog.String("error", err.Error()))
	}

	s.remember(record)

	if run != nil {
		s.metrics.finished.WithLabelValues(string(run.Status)).Inc()
		s.metrics.duration.Observe(run.Duration().Seconds())
	}

	attrs := []any{
		slog.String("run_id", id),
		slog.String("trigger", string(trigger)),
		slog.Int("query_results", len(record.Results)),
	}
	if runErr != nil {
		s.logger.ErrorContext(ctx, "run_finished", append(attrs, slog.String("error", runErr.Error()))...)
	} else {
		s.logger.InfoContext(ctx, "run_finished", attrs...)
	}

	return record, runErr
}

func (s *RunService) queryResults(ctx context.Context, id string) ([]etl.QueryResult, error) {
	result, err := s.runner.Result(ctx, id, pipeline.StageIDQuery)
	if err != nil {
		return nil, err
	}
	var results []etl.QueryResult
	if err := json.Unmarshal(result.Payload, &results); err != nil {
		return nil, fmt.Errorf("decode query results: %w", err)
	}
	return results, nil
}

// Get returns a run. Active runs come from the scheduler, finished ones from history.
func (s *RunService) Get(id string) (*RunRecord, error) {
	s.mu.RLock()
	record, ok := s.records[id]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrRunNotFound
	}
	return s.current(record), nil
}

// List returns the remembered runs, newest first
func (s *RunService) List() []*RunRecord {
	s.mu.RLock()
	records := make([]*RunRecord, 0, len(s.order))
	for _, id := range s.order {
		records = append(records, s.records[id])
	}
	s.mu.RUnlock()

	for i, record := range records {
		records[i] = s.current(record)
	}
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].Run.StartTime.After(records[j].Run.StartTime)
	})
	return records
}

// Results returns the query results of a succeeded run
func (s *RunService) Results(id string) ([]etl.QueryResult, error) {
	record, err := s.Get(id)
	if err != nil {
		return nil, err
	}
	if record.Run.Status != pipeline.RunStatusSucceeded {
		return nil, fmt.Errorf("run %s is %s: %w", id, record.Run.Status, ErrRunNotSucceeded)
	}
	return record.Results, nil
}

// current overlays the live scheduler state on a record that has not finished yet
func (s *RunService) current(record *RunRecord) *RunRecord {
	if record.Run.Status.IsTerminal() {
		return record
	}
	live, err := s.runner.GetRun(record.Run.ID)
	if err != nil {
		return record
	}
	return &RunRecord{Run: live}
}

func (s *RunService) remember(record *RunRecord) {
	if record == nil || record.Run == nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id := record.Run.ID
	if _, exists := s.records[id]; !exists {
		s.order = append(s.order, id)
	}
	s.records[id] = record

	for len(s.order) > s.historySize {
		oldest := s.order[0]
		s.order = s.order[1:]
		delete(s.records, oldest)
	}
}

// Start triggers a run every interval until ctx is done. It returns nil on shutdown.
func (s *RunService) Start(ctx context.Context, interval time.Duration, runOnStart bool) error {
	if interval <= 0 {
		return fmt.Errorf("invalid schedule interval %s", interval)
	}

	s.logger.InfoContext(ctx, "schedule_started",
		slog.Duration("interval", interval),
		slog.Bool("run_on_start", runOnStart))

	if runOnStart {
		s.scheduled(ctx)
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.InfoContext(ctx, "schedule_stopped")
			return nil
		case <-ticker.C:
			s.scheduled(ctx)
		}
	}
}

func (s *RunService) scheduled(ctx context.Context) {
	if _, err := s.Trigger(ctx, pipeline.TriggerSchedule); err != nil {
		if errors.Is(err, ErrAtCapacity) {
			s.logger.WarnContext(ctx, "scheduled_run_skipped", slog.String("reason", err.Error()))
			return
		}
		s.logger.ErrorContext(ctx, "scheduled_run_failed", slog.String("error", err.Error()))
	}
}

// Wait blocks until every background run has finished
func (s *RunService) Wait() {
	s.wg.Wait()
}

// Close refuses new runs, cancels the running ones and waits for them or for ctx
func (s *RunService) Close(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.cancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *RunService) isClosed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.closed
}
