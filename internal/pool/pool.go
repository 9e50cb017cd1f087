// Package pool implements the Solver Pool (spec §4.3): a bounded set of
// Solver Worker processes, FIFO-queued solve requests, per-request
// timeouts with kill-and-respawn, and crash recovery. The teacher's
// CircuitBreaker counts consecutive failures to trip a breaker; this pool
// reuses that same "consecutive failures" counter, but repurposed as a
// simple gauge that can enable an inline fallback path rather than a
// state machine of its own (see SPEC_FULL.md).
package pool

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/smilemakc/fertiplan/internal/model"
	"github.com/smilemakc/fertiplan/internal/solver"
)

// Config configures a Pool. Field names mirror spec §4.3's configuration
// list.
type Config struct {
	WorkerBinPath        string
	MaxWorkers           int
	SolveTimeout         time.Duration
	MaxSolvesPerWorker   int
	ShutdownGrace        time.Duration
	InlineFallbackThresh int
}

// DefaultConfig returns the spec's defaults: 2 workers, 30s solve timeout,
// a 5s shutdown grace period.
func DefaultConfig(workerBinPath string) Config {
	return Config{
		WorkerBinPath:        workerBinPath,
		MaxWorkers:           2,
		SolveTimeout:         30 * time.Second,
		MaxSolvesPerWorker:   25,
		ShutdownGrace:        5 * time.Second,
		InlineFallbackThresh: 1 << 30,
	}
}

// Stats is a point-in-time snapshot of pool occupancy, returned to callers
// that want visibility without touching pool internals (SPEC_FULL.md's
// "pool statistics snapshot").
type Stats struct {
	Workers           int
	Idle              int
	Busy              int
	QueueLen          int
	ConsecutiveErrors int
}

type job struct {
	ctx    context.Context
	lp     string
	result chan jobOutcome
}

type jobOutcome struct {
	sol solver.Solution
	err *model.PoolError
}

// Pool supervises Solver Workers and serves solve(lp) requests submitted
// concurrently by the Core Optimizer.
type Pool struct {
	cfg Config
	log zerolog.Logger

	spawn func() (workerProc, error)

	mu                sync.Mutex
	workers           []workerProc
	idle              []workerProc
	busyCount         int
	queue             []*job
	shuttingDown      bool
	consecutiveErrors int
}

// New builds a Pool that spawns real cmd/solverworker child processes.
func New(cfg Config, log zerolog.Logger) *Pool {
	p := &Pool{cfg: cfg, log: log}
	p.spawn = func() (workerProc, error) {
		return spawnProcessWorker(cfg.WorkerBinPath, cfg.MaxSolvesPerWorker, log)
	}
	return p
}

// Solve submits one LP to the pool and blocks until it is solved, times
// out, or the worker handling it crashes. Safe for concurrent use.
//
// If consecutive pool errors have reached InlineFallbackThresh, the
// circuit is considered tripped: the pool has no in-process solver of its
// own to fall back to, so it fails the request immediately with
// PoolErrorFallbackUnavailable instead of queuing it behind a pool that
// has been failing every request.
func (p *Pool) Solve(ctx context.Context, lp string) (solver.Solution, *model.PoolError) {
	j := &job{ctx: ctx, lp: lp, result: make(chan jobOutcome, 1)}

	p.mu.Lock()
	if p.shuttingDown {
		p.mu.Unlock()
		return solver.Solution{}, &model.PoolError{Kind: model.PoolErrorQueueSaturated, Message: "pool is shutting down"}
	}
	if p.cfg.InlineFallbackThresh > 0 && p.consecutiveErrors >= p.cfg.InlineFallbackThresh {
		p.mu.Unlock()
		return solver.Solution{}, &model.PoolError{
			Kind:    model.PoolErrorFallbackUnavailable,
			Message: fmt.Sprintf("%d consecutive pool errors reached inline-fallback threshold %d; no in-process solver is wired", p.consecutiveErrors, p.cfg.InlineFallbackThresh),
		}
	}
	if w := p.acquireIdleLocked(); w != nil {
		p.busyCount++
		p.mu.Unlock()
		go p.run(j, w)
	} else if len(p.workers) < p.cfg.MaxWorkers {
		w, err := p.spawn()
		if err != nil {
			p.mu.Unlock()
			return solver.Solution{}, &model.PoolError{Kind: model.PoolErrorQueueSaturated, Message: "failed to spawn worker: " + err.Error()}
		}
		p.workers = append(p.workers, w)
		p.busyCount++
		p.mu.Unlock()
		go p.run(j, w)
	} else {
		p.queue = append(p.queue, j)
		p.mu.Unlock()
	}

	select {
	case out := <-j.result:
		return out.sol, out.err
	case <-ctx.Done():
		return solver.Solution{}, &model.PoolError{Kind: model.PoolErrorQueueSaturated, Message: "caller context cancelled"}
	}
}

// acquireIdleLocked pops an idle worker that hasn't hit its solve cap. The
// caller must hold p.mu.
func (p *Pool) acquireIdleLocked() workerProc {
	for len(p.idle) > 0 {
		w := p.idle[len(p.idle)-1]
		p.idle = p.idle[:len(p.idle)-1]
		if w.solveCount() < p.cfg.MaxSolvesPerWorker {
			return w
		}
		// Retired: already past its solve cap, drop it from rotation
		// entirely (it will self-terminate on the worker side).
		p.removeWorkerLocked(w)
	}
	return nil
}

func (p *Pool) removeWorkerLocked(w workerProc) {
	for i, x := range p.workers {
		if x == w {
			p.workers = append(p.workers[:i], p.workers[i+1:]...)
			return
		}
	}
}

// run executes one job against worker w and dispatches the next queued job
// (if any) or returns w to idle.
func (p *Pool) run(j *job, w workerProc) {
	req := wireRequest{Type: "solve", ID: uuid.NewString(), LP: j.lp}
	res, errResp, err := w.solve(req, p.cfg.SolveTimeout)

	var outcome jobOutcome
	workerLost := false
	switch {
	case err == errWorkerTimeout:
		outcome.err = &model.PoolError{Kind: model.PoolErrorTimeout, Message: "solve timed out"}
		workerLost = true
		p.onWorkerLost(w)
	case err == errWorkerCrashed:
		outcome.err = &model.PoolError{Kind: model.PoolErrorCrash, Message: "worker process crashed"}
		workerLost = true
		p.onWorkerLost(w)
	case err != nil:
		outcome.err = &model.PoolError{Kind: model.PoolErrorCrash, Message: err.Error()}
		workerLost = true
		p.onWorkerLost(w)
	case errResp != nil:
		// An application-level solver error (e.g. malformed LP): the
		// worker process itself is still alive and reusable.
		outcome.err = &model.PoolError{Kind: model.PoolErrorCrash, Message: errResp.Message}
		p.recordSuccess()
	default:
		outcome.sol = solutionFromWire(res)
		p.recordSuccess()
	}

	if workerLost {
		// w was already dropped from rotation by onWorkerLost; advance the
		// queue with a fresh worker slot instead of returning it to idle.
		p.dispatchNext()
	} else {
		p.release(w)
	}

	j.result <- outcome
}

func solutionFromWire(r *wireResult) solver.Solution {
	sol := solver.Solution{Objective: r.ObjectiveValue, Values: make(map[string]int64, len(r.Columns))}
	switch r.Status {
	case "Optimal":
		sol.Status = solver.StatusOptimal
	default:
		sol.Status = solver.StatusInfeasible
	}
	for name, col := range r.Columns {
		sol.Values[name] = int64(col.Primal)
	}
	return sol
}

func (p *Pool) recordSuccess() {
	p.mu.Lock()
	p.consecutiveErrors = 0
	p.mu.Unlock()
}

func (p *Pool) onWorkerLost(w workerProc) {
	p.mu.Lock()
	p.removeWorkerLocked(w)
	p.busyCount--
	p.consecutiveErrors++
	p.mu.Unlock()
}

// release returns a worker to idle (or hands it straight to the next
// queued job), decrementing busyCount as needed.
func (p *Pool) release(w workerProc) {
	p.mu.Lock()
	if next := p.popQueueLocked(); next != nil {
		p.mu.Unlock()
		go p.run(next, w)
		return
	}
	p.idle = append(p.idle, w)
	p.busyCount--
	p.mu.Unlock()
}

// dispatchNext is called after a worker is lost, to keep the queue moving
// by spawning a replacement for the next queued job, if any.
func (p *Pool) dispatchNext() {
	p.mu.Lock()
	next := p.popQueueLocked()
	if next == nil {
		p.mu.Unlock()
		return
	}
	if w := p.acquireIdleLocked(); w != nil {
		p.busyCount++
		p.mu.Unlock()
		go p.run(next, w)
		return
	}
	if len(p.workers) < p.cfg.MaxWorkers {
		w, err := p.spawn()
		if err != nil {
			p.mu.Unlock()
			next.result <- jobOutcome{err: &model.PoolError{Kind: model.PoolErrorQueueSaturated, Message: "failed to spawn worker: " + err.Error()}}
			return
		}
		p.workers = append(p.workers, w)
		p.busyCount++
		p.mu.Unlock()
		go p.run(next, w)
		return
	}
	// Still saturated: put it back at the front of the queue.
	p.queue = append([]*job{next}, p.queue...)
	p.mu.Unlock()
}

func (p *Pool) popQueueLocked() *job {
	if len(p.queue) == 0 {
		return nil
	}
	next := p.queue[0]
	p.queue = p.queue[1:]
	return next
}

// Stats returns a point-in-time snapshot of pool occupancy.
func (p *Pool) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Stats{
		Workers:           len(p.workers),
		Idle:              len(p.idle),
		Busy:              p.busyCount,
		QueueLen:          len(p.queue),
		ConsecutiveErrors: p.consecutiveErrors,
	}
}

// ConsecutiveErrors reports the current run of non-success outcomes, the
// same counter Solve compares against InlineFallbackThresh to trip the
// (normally unreachable) inline fallback path.
func (p *Pool) ConsecutiveErrors() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.consecutiveErrors
}

// Shutdown fails queued requests fast, sends SIGTERM to every worker, and
// escalates to SIGKILL for any that haven't exited within the configured
// grace period.
func (p *Pool) Shutdown() {
	p.mu.Lock()
	p.shuttingDown = true
	queued := p.queue
	p.queue = nil
	workers := append([]workerProc(nil), p.workers...)
	p.mu.Unlock()

	for _, j := range queued {
		j.result <- jobOutcome{err: &model.PoolError{Kind: model.PoolErrorQueueSaturated, Message: "pool shutting down"}}
	}

	var wg sync.WaitGroup
	for _, w := range workers {
		wg.Add(1)
		go func(w workerProc) {
			defer wg.Done()
			w.terminate(p.cfg.ShutdownGrace)
		}(w)
	}
	wg.Wait()
}
