// Package service runs the job queue worker: a single background consumer
// executing migration requests one at a time against the engine. Strict
// serialization is a correctness requirement, the wrapped migrator mutates
// process-wide configuration and logging state.
package service

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	log "github.com/go-pkgz/lgr"

	"github.com/jaimetur/photomigrator-web/app/conditions"
	"github.com/jaimetur/photomigrator-web/app/store"
)

// Engine is the external migration collaborator, consumed at its boundary:
// validate parameters, then execute a mode streaming log records into the
// provided sink.
type Engine interface {
	Validate(mode string, params map[string]string) error
	Execute(ctx context.Context, mode string, params map[string]string, logOutput io.Writer) (summary string, err error)
}

// Notifier delivers completion and failure messages
type Notifier interface {
	Send(ctx context.Context, subj, text string) error
	IsOnError() bool
	IsOnCompletion() bool
	MakeErrorHTML(mode, jobID, errorLog string) (string, error)
	MakeCompletionHTML(mode, jobID, summary string) (string, error)
}

// ConditionChecker verifies resource conditions before a run
type ConditionChecker interface {
	Check(cfg conditions.Config) (bool, string)
}

// Request is one queued execution: job identity plus engine inputs
type Request struct {
	JobID  string
	Mode   string
	Params map[string]string
}

// Worker consumes the FIFO queue and drives job lifecycles in the store.
// Exactly one instance with exactly one Do loop must run per process.
type Worker struct {
	Store            *store.Jobs
	Engine           Engine
	Notifier         Notifier // optional
	ConditionChecker ConditionChecker
	Conditions       conditions.Config
	HostName         string
	NotifyTimeout    time.Duration
	QueueSize        int

	once   sync.Once
	mu     sync.Mutex
	queue  chan Request
	closed bool
}

// Enqueue adds a request to the queue in submission order. Never blocks
// the caller: a full queue and a closed queue are both synchronous errors,
// a request is never dropped silently. Blocking here would hold the mutex
// and deadlock Close once the consumer is gone.
func (w *Worker) Enqueue(req Request) error {
	w.init()
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return fmt.Errorf("job queue closed, %s rejected", req.JobID)
	}
	select {
	case w.queue <- req:
		return nil
	default:
		return fmt.Errorf("job queue full, %s rejected", req.JobID)
	}
}

// Close stops the queue; the Do loop drains what was already accepted and
// returns. Safe to call once, typically at process teardown.
func (w *Worker) Close() {
	w.init()
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.closed {
		w.closed = true
		close(w.queue)
	}
}

// Do runs the blocking consumer loop. One item at a time, in enqueue
// order; a job fault never terminates the loop, only Close or context
// cancellation does.
func (w *Worker) Do(ctx context.Context) {
	w.init()
	log.Printf("[INFO] job queue worker started")
	for {
		select {
		case <-ctx.Done():
			log.Printf("[INFO] job queue worker stopped: %v", ctx.Err())
			return
		case req, ok := <-w.queue:
			if !ok {
				log.Printf("[INFO] job queue closed, worker done")
				return
			}
			w.processJob(ctx, req)
		}
	}
}

func (w *Worker) init() {
	w.once.Do(func() {
		size := w.QueueSize
		if size <= 0 {
			size = 256
		}
		w.queue = make(chan Request, size)
		if w.NotifyTimeout == 0 {
			w.NotifyTimeout = 30 * time.Second
		}
	})
}

// processJob runs a single queued item through its full lifecycle.
// Every exit path leaves the job in a terminal state.
func (w *Worker) processJob(ctx context.Context, req Request) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[ERROR] panic in job %s: %v", req.JobID, r)
			w.failJob(ctx, req, fmt.Sprintf("panic: %v", r))
		}
	}()

	log.Printf("[INFO] executing job %s, mode %s", req.JobID, req.Mode)
	w.Store.UpdateStatus(req.JobID, store.StatusRunning, store.UpdateOpts{})

	// validation fault: engine never invoked
	if err := w.Engine.Validate(req.Mode, req.Params); err != nil {
		log.Printf("[WARN] job %s rejected: %v", req.JobID, err)
		w.failJob(ctx, req, err.Error())
		return
	}

	if !w.waitForConditions(ctx, req.JobID) {
		w.failJob(ctx, req, "canceled while waiting for resource conditions")
		return
	}

	// log sink scoped to this execution; flushed on both exit paths so a
	// trailing partial line is never lost or misattributed to a later job
	logWriter := store.NewLogWriter(w.Store, req.JobID)
	summary, err := w.Engine.Execute(ctx, req.Mode, req.Params, logWriter)
	logWriter.Flush()

	if err != nil {
		fault := store.NewLogWriter(w.Store, req.JobID).WithLevel("ERROR")
		fmt.Fprintf(fault, "migration failed: %v\n", err)
		log.Printf("[WARN] job %s failed: %v", req.JobID, err)
		w.failJob(ctx, req, err.Error())
		return
	}

	w.Store.UpdateStatus(req.JobID, store.StatusDone, store.UpdateOpts{ResultSummary: store.Str(summary)})
	log.Printf("[INFO] job %s completed: %s", req.JobID, summary)
	w.notifyCompletion(ctx, req, summary)
}

// failJob transitions the job to failed and fires the error notification
func (w *Worker) failJob(ctx context.Context, req Request, msg string) {
	w.Store.UpdateStatus(req.JobID, store.StatusFailed, store.UpdateOpts{Error: store.Str(msg)})
	w.notifyError(ctx, req, msg)
}

// waitForConditions blocks until resource conditions are met, the postpone
// deadline passes, or the context is canceled. Returns false only on
// cancellation.
func (w *Worker) waitForConditions(ctx context.Context, jobID string) bool {
	if w.ConditionChecker == nil || !w.Conditions.Enabled() {
		return true
	}

	met, reason := w.ConditionChecker.Check(w.Conditions)
	if met {
		return true
	}

	if w.Conditions.MaxPostpone <= 0 {
		log.Printf("[WARN] conditions not met for job %s (%s), executing anyway, no postpone configured", jobID, reason)
		return true
	}

	deadline := time.Now().Add(w.Conditions.MaxPostpone)
	log.Printf("[INFO] job %s postponed: %s, deadline %s", jobID, reason, deadline.Format(time.RFC3339))

	checkInterval := w.Conditions.CheckInterval
	if checkInterval <= 0 {
		checkInterval = 30 * time.Second
	}
	ticker := time.NewTicker(checkInterval)
	defer ticker.Stop()
	deadlineTimer := time.NewTimer(w.Conditions.MaxPostpone)
	defer deadlineTimer.Stop()

	for {
		select {
		case <-ticker.C:
			if met, reason = w.ConditionChecker.Check(w.Conditions); met {
				log.Printf("[INFO] conditions met, executing postponed job %s", jobID)
				return true
			}
			log.Printf("[DEBUG] conditions not met yet for job %s: %s", jobID, reason)
		case <-deadlineTimer.C:
			log.Printf("[WARN] max postpone reached, executing job %s anyway", jobID)
			return true
		case <-ctx.Done():
			log.Printf("[INFO] postponed job %s canceled", jobID)
			return false
		}
	}
}

func (w *Worker) notifyError(ctx context.Context, req Request, msg string) {
	if w.Notifier == nil || !w.Notifier.IsOnError() {
		return
	}
	// include the tail of the job log for context
	errorLog := msg
	if job, ok := w.Store.Get(req.JobID); ok && len(job.LogLines) > 0 {
		tail := job.LogLines
		if len(tail) > 100 {
			tail = tail[len(tail)-100:]
		}
		errorLog = msg + "\n\n" + strings.Join(tail, "\n")
	}
	text, err := w.Notifier.MakeErrorHTML(req.Mode, req.JobID, errorLog)
	if err != nil {
		log.Printf("[WARN] can't make error notification for job %s: %v", req.JobID, err)
		return
	}
	w.send(ctx, fmt.Sprintf("failed %q on %s", req.Mode, w.HostName), text, req.JobID)
}

func (w *Worker) notifyCompletion(ctx context.Context, req Request, summary string) {
	if w.Notifier == nil || !w.Notifier.IsOnCompletion() {
		return
	}
	text, err := w.Notifier.MakeCompletionHTML(req.Mode, req.JobID, summary)
	if err != nil {
		log.Printf("[WARN] can't make completion notification for job %s: %v", req.JobID, err)
		return
	}
	w.send(ctx, fmt.Sprintf("completed %q on %s", req.Mode, w.HostName), text, req.JobID)
}

func (w *Worker) send(ctx context.Context, subj, text, jobID string) {
	ctxTimeout, cancel := context.WithTimeout(ctx, w.NotifyTimeout)
	defer cancel()
	if err := w.Notifier.Send(ctxTimeout, subj, text); err != nil {
		log.Printf("[WARN] failed to notify for job %s: %v", jobID, err)
	}
}
