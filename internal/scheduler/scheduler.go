// Package scheduler runs the periodic jobs of the HITL daemon on a cron
// engine. The only built-in job refreshes the caller's organization
// memberships so permission changes reach the session without a restart.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/gotrs-io/gotrs-hitl/sdk/types"
)

// DefaultMembershipRefresh is used when no schedule is configured
const DefaultMembershipRefresh = "@every 5m"

// MembershipSource fetches the caller's organization roles
type MembershipSource interface {
	Memberships(ctx context.Context) ([]types.Membership, error)
}

// MembershipSourceFunc adapts a function to MembershipSource
type MembershipSourceFunc func(ctx context.Context) ([]types.Membership, error)

func (f MembershipSourceFunc) Memberships(ctx context.Context) ([]types.Membership, error) {
	return f(ctx)
}

// Job is a scheduled unit of work
type Job func(ctx context.Context) error

type options struct {
	logger   *zap.Logger
	cron     *cron.Cron
	parser   cron.Parser
	location *time.Location
	timeout  time.Duration
}

// Option applies configuration to the scheduler.
type Option func(*options)

// WithLogger injects a logger.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithCron supplies a preconfigured cron instance.
func WithCron(c *cron.Cron) Option {
	return func(o *options) { o.cron = c }
}

// WithLocation sets the schedule timezone.
func WithLocation(loc *time.Location) Option {
	return func(o *options) { o.location = loc }
}

// WithJobTimeout bounds each job run.
func WithJobTimeout(d time.Duration) Option {
	return func(o *options) { o.timeout = d }
}

// Scheduler owns the cron engine and its jobs
type Scheduler struct {
	cron    *cron.Cron
	parser  cron.Parser
	log     *zap.Logger
	timeout time.Duration

	mu        sync.Mutex
	rootCtx   context.Context
	entries   map[string]cron.EntryID
	startOnce sync.Once
	stopOnce  sync.Once
}

func New(opts ...Option) *Scheduler {
	o := options{
		logger:   zap.NewNop(),
		location: time.UTC,
		timeout:  30 * time.Second,
		parser:   cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor),
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = zap.NewNop()
	}
	if o.cron == nil {
		o.cron = cron.New(cron.WithLocation(o.location), cron.WithParser(o.parser))
	}
	return &Scheduler{
		cron:    o.cron,
		parser:  o.parser,
		log:     o.logger.With(zap.String("component", "scheduler")),
		timeout: o.timeout,
		rootCtx: context.Background(),
		entries: make(map[string]cron.EntryID),
	}
}

// Add registers job under name. Re-adding a name replaces the old entry.
func (s *Scheduler) Add(name, spec string, job Job) error {
	schedule, err := s.parser.Parse(spec)
	if err != nil {
		return fmt.Errorf("invalid schedule %q for %s: %w", spec, name, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if id, ok := s.entries[name]; ok {
		s.cron.Remove(id)
	}
	s.entries[name] = s.cron.Schedule(schedule, cron.FuncJob(func() { s.execute(name, job) }))
	return nil
}

// AddMembershipRefresh schedules a memberships fetch whose result is handed
// to apply. Failed fetches keep the previous memberships.
func (s *Scheduler) AddMembershipRefresh(spec string, src MembershipSource, apply func([]types.Membership)) error {
	if spec == "" {
		spec = DefaultMembershipRefresh
	}
	return s.Add("membership-refresh", spec, func(ctx context.Context) error {
		memberships, err := src.Memberships(ctx)
		if err != nil {
			return err
		}
		apply(memberships)
		return nil
	})
}

// RunNow executes a registered job immediately on the caller's goroutine
func (s *Scheduler) RunNow(name string) error {
	s.mu.Lock()
	id, ok := s.entries[name]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("unknown job %q", name)
	}
	s.cron.Entry(id).WrappedJob.Run()
	return nil
}

// Next reports when the named job runs next; zero before Run
func (s *Scheduler) Next(name string) time.Time {
	s.mu.Lock()
	id, ok := s.entries[name]
	s.mu.Unlock()
	if !ok {
		return time.Time{}
	}
	return s.cron.Entry(id).Next
}

// Run starts the engine and blocks until ctx is cancelled
func (s *Scheduler) Run(ctx context.Context) error {
	s.startOnce.Do(func() {
		s.mu.Lock()
		s.rootCtx = ctx
		s.mu.Unlock()
		s.cron.Start()
		s.log.Info("scheduler started", zap.Int("jobs", len(s.cron.Entries())))
	})

	<-ctx.Done()
	s.stop()
	return nil
}

func (s *Scheduler) stop() {
	s.stopOnce.Do(func() {
		<-s.cron.Stop().Done()
		s.log.Info("scheduler stopped")
	})
}

func (s *Scheduler) execute(name string, job Job) {
	s.mu.Lock()
	root := s.rootCtx
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(root, s.timeout)
	defer cancel()

	start := time.Now()
	if err := job(ctx); err != nil {
		s.log.Warn("job failed", zap.String("job", name), zap.Duration("took", time.Since(start)), zap.Error(err))
		return
	}
	s.log.Debug("job finished", zap.String("job", name), zap.Duration("took", time.Since(start)))
}
