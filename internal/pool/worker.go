package pool

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/rs/zerolog"
)

// workerProc is the Solver Pool's view of one Solver Worker process. It is
// an interface so the pool's dispatch logic can be exercised against a
// fake in tests without ever exec'ing a real child process.
type workerProc interface {
	// solve sends one request and blocks until a response arrives or
	// timeout elapses. On timeout the implementation kills the underlying
	// process before returning.
	solve(req wireRequest, timeout time.Duration) (*wireResult, *wireError, error)
	// terminate asks the worker to exit, escalating to a forced kill if it
	// hasn't exited within grace.
	terminate(grace time.Duration)
	solveCount() int
}

// processWorker is the real workerProc: one cmd/solverworker child
// process, talked to over its stdin/stdout pipes.
type processWorker struct {
	cmd    *exec.Cmd
	stdin  *bufio.Writer
	reader *bufio.Reader
	solves int32
	log    zerolog.Logger
}

func spawnProcessWorker(binPath string, maxSolves int, log zerolog.Logger) (*processWorker, error) {
	cmd := exec.Command(binPath, "--max-solves", fmt.Sprintf("%d", maxSolves))
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, err
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}
	cmd.Stderr = os.Stderr // worker diagnostics pass through to the pool's own stderr

	if err := cmd.Start(); err != nil {
		return nil, err
	}

	return &processWorker{
		cmd:    cmd,
		stdin:  bufio.NewWriter(stdin),
		reader: bufio.NewReaderSize(stdout, 1<<20),
		log:    log,
	}, nil
}

func (w *processWorker) solveCount() int { return int(atomic.LoadInt32(&w.solves)) }

func (w *processWorker) solve(req wireRequest, timeout time.Duration) (*wireResult, *wireError, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, nil, err
	}
	payload = append(payload, '\n')
	if _, err := w.stdin.Write(payload); err != nil {
		return nil, nil, errWorkerCrashed
	}
	if err := w.stdin.Flush(); err != nil {
		return nil, nil, errWorkerCrashed
	}

	type readOutcome struct {
		line []byte
		err  error
	}
	done := make(chan readOutcome, 1)
	go func() {
		line, err := w.reader.ReadBytes('\n')
		done <- readOutcome{line, err}
	}()

	select {
	case out := <-done:
		if out.err != nil {
			return nil, nil, errWorkerCrashed
		}
		atomic.AddInt32(&w.solves, 1)
		res, errResp, err := decodeResponse(out.line)
		return res, errResp, err
	case <-time.After(timeout):
		w.kill()
		return nil, nil, errWorkerTimeout
	}
}

func (w *processWorker) terminate(grace time.Duration) {
	if w.cmd.Process == nil {
		return
	}
	_ = w.cmd.Process.Signal(syscall.SIGTERM)

	exited := make(chan struct{})
	go func() {
		_ = w.cmd.Wait()
		close(exited)
	}()

	select {
	case <-exited:
	case <-time.After(grace):
		w.kill()
		<-exited
	}
}

func (w *processWorker) kill() {
	if w.cmd.Process != nil {
		_ = w.cmd.Process.Kill()
	}
}

var errWorkerTimeout = errors.New("worker solve timed out")
var errWorkerCrashed = errors.New("worker process exited unexpectedly")
