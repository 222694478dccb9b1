// Package poller keeps exactly one status-check loop alive per tracked job.
// The loop performs one immediate check on attach, then re-arms a fixed
// interval only after the previous check resolves, so polls stay strictly
// sequential even on a slow network. The loop stops itself permanently the
// moment a terminal status is reported.
package poller

import (
	"context"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/vantagevision/vantage/internal/logger"
	"github.com/vantagevision/vantage/internal/types"
	"github.com/vantagevision/vantage/pkg/api/v1/client"
)

// DefaultInterval is the fixed delay between successful status checks
const DefaultInterval = 3 * time.Second

// DefaultMaxBackoff caps the retry delay while status checks are failing
const DefaultMaxBackoff = 30 * time.Second

// CheckFunc performs one status check for the attached job
type CheckFunc func(ctx context.Context) (types.StatusResponse, error)

// Handler receives the poll loop's observations. Callbacks are invoked from
// the poll goroutine, never concurrently with each other.
type Handler struct {
	// OnStatus is called after every successful check
	OnStatus func(r types.StatusResponse)
	// OnTerminal is called exactly once, with the final report, when the
	// job reaches a terminal status. The loop has already stopped.
	OnTerminal func(r types.StatusResponse)
	// OnStale is called when the server reports the job no longer exists
	// (404 on status). Authoritative; the loop has already stopped.
	OnStale func()
}

// Config holds poller timing configuration
type Config struct {
	Interval   time.Duration // delay between successful checks
	MaxBackoff time.Duration // cap on the failure retry delay
}

// Poller owns at most one polling loop at a time. Attaching the same job id
// twice is a no-op, so a re-mounted view can never double the poll rate for
// a job.
type Poller struct {
	interval   time.Duration
	maxBackoff time.Duration

	mu     sync.Mutex
	jobID  string
	cancel context.CancelFunc
	done   chan struct{}
}

// New creates a poller with the given configuration
func New(cfg Config) *Poller {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = DefaultMaxBackoff
	}
	return &Poller{
		interval:   cfg.Interval,
		maxBackoff: cfg.MaxBackoff,
	}
}

// Active returns the id of the job currently being polled, or ""
func (p *Poller) Active() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.jobID
}

// Attach starts polling jobID, beginning with an immediate check. If the
// poller is already attached to the same id this is a no-op; attaching a
// different id detaches the previous loop first.
func (p *Poller) Attach(jobID string, check CheckFunc, h Handler) {
	p.mu.Lock()
	if p.jobID == jobID && p.cancel != nil {
		p.mu.Unlock()
		logger.Debugf("poller already attached to job %s", jobID)
		return
	}
	prevCancel, prevDone := p.cancel, p.done

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	p.jobID = jobID
	p.cancel = cancel
	p.done = done
	p.mu.Unlock()

	if prevCancel != nil {
		prevCancel()
		<-prevDone
	}

	logger.DebugWithFields("poller attached", map[string]interface{}{"job_id": jobID})
	go p.run(ctx, jobID, check, h, done)
}

// Detach stops the current loop, aborting any in-flight check, and waits for
// the loop goroutine to exit. Safe to call when nothing is attached.
func (p *Poller) Detach() {
	p.mu.Lock()
	cancel, done := p.cancel, p.done
	p.jobID = ""
	p.cancel = nil
	p.done = nil
	p.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
}

// clear resets the attachment state after a loop ends on its own. The done
// channel identifies the loop, so a newer attachment is never clobbered.
func (p *Poller) clear(done chan struct{}) {
	p.mu.Lock()
	if p.done == done {
		p.jobID = ""
		p.cancel = nil
		p.done = nil
	}
	p.mu.Unlock()
}

func (p *Poller) run(ctx context.Context, jobID string, check CheckFunc, h Handler, done chan struct{}) {
	defer close(done)
	defer p.clear(done)

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = p.interval
	bo.MaxInterval = p.maxBackoff
	bo.MaxElapsedTime = 0 // never give up; polling must not silently stop

	// Fires immediately so the first check happens without waiting a full
	// interval.
	timer := time.NewTimer(0)
	defer timer.Stop()

	failing := false

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}

		r, err := check(ctx)

		// A check that resolves after cancel/detach must not be applied.
		if ctx.Err() != nil {
			return
		}

		if err != nil {
			if client.IsStale(err) {
				logger.WarnWithFields("job no longer exists server-side, dropping reference", map[string]interface{}{
					"job_id": jobID,
				})
				if h.OnStale != nil {
					h.OnStale()
				}
				return
			}

			// Surface the failure once, not once per tick.
			if !failing {
				logger.WarnWithFields("status check failed, will keep retrying", map[string]interface{}{
					"job_id": jobID,
					"error":  err.Error(),
				})
				failing = true
			} else {
				logger.Debugf("status check for job %s still failing: %v", jobID, err)
			}
			timer.Reset(bo.NextBackOff())
			continue
		}

		if failing {
			logger.InfoWithFields("status check recovered", map[string]interface{}{"job_id": jobID})
			failing = false
		}
		bo.Reset()

		if h.OnStatus != nil {
			h.OnStatus(r)
		}

		if r.Status.Terminal() {
			logger.InfoWithFields("job reached terminal status, polling stopped", map[string]interface{}{
				"job_id": jobID,
				"status": r.Status.String(),
			})
			if h.OnTerminal != nil {
				h.OnTerminal(r)
			}
			return
		}

		timer.Reset(p.interval)
	}
}
