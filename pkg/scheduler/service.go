package scheduler

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/justGiveMeOneThen/sentinel-ai-threat-detection/pkg/logging"
)

// TrainFunc runs one retraining pass
type TrainFunc func(ctx context.Context) error

// JobInfo describes a scheduled retraining job
type JobInfo struct {
	Name    string    `json:"name"`
	Spec    string    `json:"spec"`
	NextRun time.Time `json:"next_run"`
}

type entry struct {
	id   cron.EntryID
	spec string
}

// Service runs retraining on cron schedules. A run that is still going when
// its next tick fires causes that tick to be skipped.
type Service struct {
	train  TrainFunc
	cron   *cron.Cron
	logger *zap.Logger
	ctx    context.Context
	cancel context.CancelFunc

	mu   sync.Mutex
	jobs map[string]entry
}

// NewService creates a new scheduler service
func NewService(train TrainFunc, logger *zap.Logger) *Service {
	logger = logging.OrNop(logger).Named("scheduler")
	ctx, cancel := context.WithCancel(context.Background())
	return &Service{
		train:  train,
		cron:   cron.New(cron.WithChain(cron.SkipIfStillRunning(cronLogger{logger.Sugar()}))),
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
		jobs:   make(map[string]entry),
	}
}

// AddJob schedules retraining under name, replacing any job with that name.
// spec is a standard five-field cron expression or a descriptor like "@daily".
func (s *Service) AddJob(name, spec string) error {
	schedule, err := cron.ParseStandard(spec)
	if err != nil {
		return fmt.Errorf("invalid cron expression: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.jobs[name]; ok {
		s.cron.Remove(existing.id)
	}
	id := s.cron.Schedule(schedule, cron.FuncJob(func() { s.run(name) }))
	s.jobs[name] = entry{id: id, spec: spec}

	s.logger.Info("Scheduled retraining job",
		zap.String("job", name),
		zap.String("spec", spec),
		zap.Time("next_run", schedule.Next(time.Now())))
	return nil
}

// RemoveJob unschedules a job
func (s *Service) RemoveJob(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.jobs[name]
	if !ok {
		return fmt.Errorf("scheduled job not found: %s", name)
	}
	s.cron.Remove(existing.id)
	delete(s.jobs, name)
	return nil
}

// Jobs lists the scheduled jobs by name
func (s *Service) Jobs() []JobInfo {
	s.mu.Lock()
	defer s.mu.Unlock()

	infos := make([]JobInfo, 0, len(s.jobs))
	for name, e := range s.jobs {
		infos = append(infos, JobInfo{
			Name:    name,
			Spec:    e.spec,
			NextRun: s.cron.Entry(e.id).Next,
		})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos
}

// Start starts the scheduler
func (s *Service) Start() {
	s.cron.Start()
	s.logger.Info("Retraining scheduler started", zap.Int("jobs", len(s.Jobs())))
}

// Stop stops the scheduler, cancels running jobs and waits for them to return
func (s *Service) Stop() {
	s.cancel()
	<-s.cron.Stop().Done()
	s.logger.Info("Retraining scheduler stopped")
}

func (s *Service) run(name string) {
	start := time.Now()
	s.logger.Info("Scheduled retraining started", zap.String("job", name))

	if err := s.train(s.ctx); err != nil {
		s.logger.Error("Scheduled retraining failed",
			zap.String("job", name),
			zap.Error(err),
			zap.Duration("duration", time.Since(start)))
		return
	}
	s.logger.Info("Scheduled retraining completed",
		zap.String("job", name),
		zap.Duration("duration", time.Since(start)))
}

// cronLogger routes cron's internal logging to zap
type cronLogger struct {
	sugar *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.sugar.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.sugar.Errorw(msg, append(keysAndValues, "error", err)...)
}
