package snmp

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/munet-project/unet/pkg/util"
)

// ControlKind names the operations the scheduler's control channel accepts.
type ControlKind int

const (
	ControlAdd ControlKind = iota
	ControlRemove
	ControlUpdate
	ControlEnable
	ControlGetStatus
	ControlList
	ControlShutdown
)

// ControlMessage is sent on the scheduler's inbound channel.
type ControlMessage struct {
	Kind    ControlKind
	Task    *PollingTask
	TaskID  uuid.UUID
	Enabled bool
	Reply   chan any
}

// SchedulerConfig tunes the scheduler's concurrency and timing.
type SchedulerConfig struct {
	PollInterval        time.Duration
	HealthCheckInterval time.Duration
	MaxConcurrentPolls  int
}

// DefaultSchedulerConfig checks for due tasks every 1s, prunes every 30s,
// and runs at most 10 polls at once.
func DefaultSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{
		PollInterval:        time.Second,
		HealthCheckInterval: 30 * time.Second,
		MaxConcurrentPolls:  10,
	}
}

// Scheduler owns the task table and drives the tick-based poll loop.
type Scheduler struct {
	cfg      SchedulerConfig
	client   *Client
	mu       sync.RWMutex
	tasks    map[uuid.UUID]*PollingTask
	control  chan ControlMessage
	results  chan PollingResult
	shutdown bool
}

// NewScheduler builds a Scheduler with its own task table and channels.
func NewScheduler(cfg SchedulerConfig, client *Client) *Scheduler {
	return &Scheduler{
		cfg:     cfg,
		client:  client,
		tasks:   map[uuid.UUID]*PollingTask{},
		control: make(chan ControlMessage, 64),
		results: make(chan PollingResult, 256),
	}
}

// Control returns the channel callers send ControlMessages on.
func (s *Scheduler) Control() chan<- ControlMessage { return s.control }

// Results returns the channel PollingResults are emitted on.
func (s *Scheduler) Results() <-chan PollingResult { return s.results }

// Run drives the main select loop between the control channel and the
// poll/health tickers until Shutdown is requested or ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	pollTicker := time.NewTicker(s.cfg.PollInterval)
	defer pollTicker.Stop()
	healthTicker := time.NewTicker(s.cfg.HealthCheckInterval)
	defer healthTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-s.control:
			if s.handleMessage(msg) {
				return
			}
		case now := <-pollTicker.C:
			s.checkAndPollTasks(ctx, now)
		case now := <-healthTicker.C:
			s.pruneUnhealthy(now)
		}
	}
}

func (s *Scheduler) handleMessage(msg ControlMessage) (shutdown bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch msg.Kind {
	case ControlAdd:
		if msg.Task.ID == uuid.Nil {
			msg.Task.ID = uuid.New()
		}
		s.tasks[msg.Task.ID] = msg.Task
	case ControlRemove:
		delete(s.tasks, msg.TaskID)
	case ControlUpdate:
		if t, ok := s.tasks[msg.Task.ID]; ok {
			*t = *msg.Task
		}
	case ControlEnable:
		if t, ok := s.tasks[msg.TaskID]; ok {
			t.Enabled = msg.Enabled
		}
	case ControlGetStatus:
		if msg.Reply != nil {
			msg.Reply <- s.tasks[msg.TaskID]
		}
	case ControlList:
		if msg.Reply != nil {
			out := make([]*PollingTask, 0, len(s.tasks))
			for _, t := range s.tasks {
				out = append(out, t)
			}
			msg.Reply <- out
		}
	case ControlShutdown:
		s.shutdown = true
		return true
	}
	return false
}

// checkAndPollTasks snapshots due tasks, sorts by priority descending, and
// polls them in fixed-size batches bounded by MaxConcurrentPolls.
func (s *Scheduler) checkAndPollTasks(ctx context.Context, now time.Time) {
	s.mu.RLock()
	var due []*PollingTask
	for _, t := range s.tasks {
		if t.due(now) {
			due = append(due, t)
		}
	}
	s.mu.RUnlock()

	sort.SliceStable(due, func(i, j int) bool { return due[i].Priority > due[j].Priority })

	batchSize := s.cfg.MaxConcurrentPolls
	if batchSize <= 0 {
		batchSize = 1
	}
	for i := 0; i < len(due); i += batchSize {
		end := i + batchSize
		if end > len(due) {
			end = len(due)
		}
		s.pollBatch(ctx, due[i:end])
	}
}

func (s *Scheduler) pollBatch(ctx context.Context, batch []*PollingTask) {
	var wg sync.WaitGroup
	for _, t := range batch {
		wg.Add(1)
		go func(t *PollingTask) {
			defer wg.Done()
			s.pollTask(ctx, t)
		}(t)
	}
	wg.Wait()
}

func (s *Scheduler) pollTask(ctx context.Context, t *PollingTask) {
	timeout := t.PollTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	pollCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	now := time.Now()
	values, err := s.client.Get(pollCtx, t.Target, t.Community, t.OIDs)

	log := util.WithComponent("snmp-scheduler").WithField("node", t.NodeID)
	if err != nil {
		log.WithField("target", t.Target).Warnf("poll failed: %v", err)
	} else {
		log.Debug("poll succeeded")
	}

	s.mu.Lock()
	s.processPollResult(t, now, values, err)
	s.mu.Unlock()

	s.results <- PollingResult{TaskID: t.ID, NodeID: t.NodeID, Success: err == nil, Values: values, Err: err, At: now}
}

// processPollResult updates a task's failure/success bookkeeping. Caller
// holds s.mu.
func (s *Scheduler) processPollResult(t *PollingTask, at time.Time, values map[string]string, err error) {
	t.LastAttempt = at
	if err == nil {
		t.LastSuccess = at
		t.ConsecutiveFailures = 0
		t.LastError = ""
	} else {
		t.ConsecutiveFailures++
		t.LastError = err.Error()
		if t.ConsecutiveFailures == 3 {
			util.WithNode(t.NodeID).Warnf("%d consecutive poll failures, last error: %s", t.ConsecutiveFailures, t.LastError)
		}
	}
	t.scheduleNext(at)
}

// pruneUnhealthy drops disabled tasks whose last successful poll is older
// than 3x the health-check interval; a disabled task that has never
// succeeded is kept. Enabled tasks persist regardless of health.
func (s *Scheduler) pruneUnhealthy(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	maxSilence := 3 * s.cfg.HealthCheckInterval
	for id, t := range s.tasks {
		if t.Enabled {
			continue
		}
		if !t.IsHealthy(now, maxSilence) {
			delete(s.tasks, id)
		}
	}
}

// TaskCount reports the number of tasks currently tracked, mostly useful
// for tests and status reporting.
func (s *Scheduler) TaskCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.tasks)
}

var errShutdown = util.NewPreconditionError("poll", "scheduler", "running", "scheduler has been shut down")
