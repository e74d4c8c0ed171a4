package poller

import (
	"context"
	"sync"
	"time"

	"feedbrief/internal/pipeline"

	"github.com/sirupsen/logrus"
)

// Runner performs one ingestion run
type Runner interface {
	Run(ctx context.Context) (pipeline.Result, error)
}

// RunStatus records the outcome of the most recent tick
type RunStatus struct {
	StartedAt time.Time       `json:"started_at"`
	Result    pipeline.Result `json:"-"`
	Processed int             `json:"processed"`
	Total     int             `json:"total"`
	Error     string          `json:"error,omitempty"`
}

// Poller triggers ingestion runs on a fixed interval. Each tick is an
// independent run.
type Poller struct {
	runner       Runner
	pollInterval time.Duration
	afterRun     func(pipeline.Result)
	log          logrus.FieldLogger
	ctx          context.Context
	cancel       context.CancelFunc
	wg           sync.WaitGroup
	mu           sync.RWMutex
	lastRun      *RunStatus
	isPolling    bool
}

// New builds a poller. afterRun, when set, is called after every successful run.
func New(runner Runner, pollInterval time.Duration, afterRun func(pipeline.Result), log logrus.FieldLogger) *Poller {
	ctx, cancel := context.WithCancel(context.Background())
	return &Poller{
		runner:       runner,
		pollInterval: pollInterval,
		afterRun:     afterRun,
		log:          log.WithField("component", "poller"),
		ctx:          ctx,
		cancel:       cancel,
	}
}

func (p *Poller) Start() {
	p.mu.Lock()
	if p.isPolling {
		p.mu.Unlock()
		return
	}
	p.isPolling = true
	p.mu.Unlock()

	p.log.WithField("interval", p.pollInterval.String()).Info("Starting ingestion poller")

	p.wg.Add(1)
	go p.pollLoop()
}

// Stop waits for an in-flight run to return. Safe on a nil poller.
func (p *Poller) Stop() {
	if p == nil {
		return
	}
	p.mu.Lock()
	if !p.isPolling {
		p.mu.Unlock()
		return
	}
	p.isPolling = false
	p.mu.Unlock()

	p.log.Info("Stopping ingestion poller...")
	p.cancel()
	p.wg.Wait()
	p.log.Info("Ingestion poller stopped")
}

func (p *Poller) pollLoop() {
	defer p.wg.Done()

	ticker := time.NewTicker(p.pollInterval)
	defer ticker.Stop()

	// Poll immediately on start
	p.poll()

	for {
		select {
		case <-ticker.C:
			p.poll()
		case <-p.ctx.Done():
			return
		}
	}
}

func (p *Poller) poll() {
	status := &RunStatus{StartedAt: time.Now()}

	result, err := p.runner.Run(p.ctx)
	status.Result = result
	status.Processed = result.Processed
	status.Total = result.Total
	if err != nil {
		status.Error = err.Error()
		p.log.WithError(err).Warn("Scheduled ingestion run failed")
	} else if p.afterRun != nil {
		p.afterRun(result)
	}

	p.mu.Lock()
	p.lastRun = status
	p.mu.Unlock()
}

// IsPolling is safe to call on a nil poller
func (p *Poller) IsPolling() bool {
	if p == nil {
		return false
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.isPolling
}

// LastRun returns the most recent tick's outcome, if any. Safe on a nil poller.
func (p *Poller) LastRun() (RunStatus, bool) {
	if p == nil {
		return RunStatus{}, false
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.lastRun == nil {
		return RunStatus{}, false
	}
	return *p.lastRun, true
}
