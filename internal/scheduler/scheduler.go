// Package scheduler fires each configured source's pipeline on its cron
// expressions, serializes per-source runs, and collects handler errors
// without letting one source's failure stop another.
package scheduler

import (
	"context"
	"log/slog"
	"sync"

	"github.com/robfig/cron/v3"

	"priconne-watch/internal/errors"
)

// Handler runs one source's pipeline to completion: full stream drain
// plus every admitted publish.
type Handler func(ctx context.Context) error

type job struct {
	source  string
	handler Handler
	mu      sync.Mutex
}

// Scheduler holds one job per source name and the cron engine driving it.
type Scheduler struct {
	cron     *cron.Cron
	jobs     map[string]*job
	errSink  func(source string, err error)
	log      *slog.Logger
	ctx      context.Context
	cancel   context.CancelFunc
	stopping chan struct{}
	stopOnce sync.Once
}

// New builds a Scheduler reporting handler errors to errSink.
func New(errSink func(source string, err error), logger *slog.Logger) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron:     cron.New(),
		jobs:     make(map[string]*job),
		errSink:  errSink,
		log:      logger,
		ctx:      ctx,
		cancel:   cancel,
		stopping: make(chan struct{}),
	}
}

// Register wires handler to fire on every expression in exprs for source.
// A source with multiple cron expressions in its schedule gets one
// AddFunc registration per expression, all sharing the same per-source
// mutex; robfig/cron multiplexes the entries internally.
func (s *Scheduler) Register(source string, exprs []string, handler Handler) error {
	j := &job{source: source, handler: handler}
	s.jobs[source] = j

	for _, expr := range exprs {
		if _, err := s.cron.AddFunc(expr, func() { s.fire(j) }); err != nil {
			return errors.NewBuilder(err).Component("scheduler").Category(errors.CategoryConfiguration).
				Context("source", source).Context("expr", expr).Build()
		}
	}
	return nil
}

// fire runs j's handler if it is not already running; a second firing
// that arrives while the first is in flight is dropped with a log line,
// never queued.
func (s *Scheduler) fire(j *job) {
	if !j.mu.TryLock() {
		s.log.Warn("dropped overlapping tick", "source", j.source)
		return
	}
	defer j.mu.Unlock()

	if err := j.handler(s.ctx); err != nil {
		ee := errors.NewBuilder(err).Component("scheduler").Category(errors.CategoryScheduler).
			Context("source", j.source).Build()
		s.log.Error("handler failed", "source", j.source, "error", ee)
		if s.errSink != nil {
			s.errSink(j.source, ee)
		}
	}
}

// Trigger runs the named source's handler immediately, through the same
// mutex as the scheduled path. This is the manual-run command channel.
func (s *Scheduler) Trigger(source string) error {
	j, ok := s.jobs[source]
	if !ok {
		return errors.NewBuilder(ErrUnknownSource(source)).Component("scheduler").
			Category(errors.CategoryScheduler).Build()
	}
	go s.fire(j)
	return nil
}

// ErrUnknownSource names a source missing from the schedule.
type ErrUnknownSource string

func (e ErrUnknownSource) Error() string { return "unknown source: " + string(e) }

// Start begins firing registered jobs.
func (s *Scheduler) Start() { s.cron.Start() }

// Stopping is closed when a graceful shutdown begins; handlers poll it
// between items so a long batch finishes its current item and exits.
func (s *Scheduler) Stopping() <-chan struct{} {
	return s.stopping
}

// Stop requests a graceful shutdown: running handlers finish the item
// they are on and exit; no new firings are accepted once this returns.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() { close(s.stopping) })
	<-s.cron.Stop().Done()
	s.cancel()
}

// Entries exposes the cron engine's upcoming-fire-time entries, for the
// events CLI subcommand.
func (s *Scheduler) Entries() []cron.Entry {
	return s.cron.Entries()
}
