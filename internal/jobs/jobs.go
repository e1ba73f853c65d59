// Package jobs coordinates long-running analysis runs: cooperative
// cancellation tokens, per-job log buffers, and log fan-out to
// subscribers. Jobs are keyed by the upload they operate on; starting a
// new job for an upload cancels the previous one.
package jobs

import (
	"log/slog"
	"sync"
	"sync/atomic"
)

// subscriberBuffer bounds a subscriber channel. A slow subscriber loses
// log lines rather than blocking the running job.
const subscriberBuffer = 100

// Token signals cooperative cancellation. Safe for concurrent use.
type Token struct {
	cancelled atomic.Bool
}

// Cancel marks the token. Idempotent.
func (t *Token) Cancel() {
	t.cancelled.Store(true)
}

// Cancelled reports whether Cancel has been called.
func (t *Token) Cancelled() bool {
	return t.cancelled.Load()
}

// Job tracks one running analysis: its cancellation token, accumulated
// log lines, and the set of live log subscribers.
type Job struct {
	UploadID int64
	Token    *Token

	mu          sync.Mutex
	logs        []string
	subscribers []chan string
}

// Log appends a line to the job's buffer and fans it out. Subscribers
// with a full channel skip the line.
func (j *Job) Log(line string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.logs = append(j.logs, line)
	for _, ch := range j.subscribers {
		select {
		case ch <- line:
		default:
		}
	}
}

// Subscribe registers a log consumer. The returned snapshot holds every
// line logged before the subscription; subsequent lines arrive on the
// channel.
func (j *Job) Subscribe() (<-chan string, []string) {
	ch := make(chan string, subscriberBuffer)
	j.mu.Lock()
	defer j.mu.Unlock()
	snapshot := make([]string, len(j.logs))
	copy(snapshot, j.logs)
	j.subscribers = append(j.subscribers, ch)
	return ch, snapshot
}

// Unsubscribe removes a previously subscribed channel and closes it.
func (j *Job) Unsubscribe(ch <-chan string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	for i, sub := range j.subscribers {
		if sub == ch {
			j.subscribers = append(j.subscribers[:i], j.subscribers[i+1:]...)
			close(sub)
			return
		}
	}
}

// Logs returns a copy of the accumulated log lines.
func (j *Job) Logs() []string {
	j.mu.Lock()
	defer j.mu.Unlock()
	out := make([]string, len(j.logs))
	copy(out, j.logs)
	return out
}

// Registry tracks the active job per upload.
type Registry struct {
	log *slog.Logger

	mu   sync.Mutex
	jobs map[int64]*Job
}

// NewRegistry builds an empty Registry.
func NewRegistry(log *slog.Logger) *Registry {
	return &Registry{
		log:  log.With("component", "job_registry"),
		jobs: make(map[int64]*Job),
	}
}

// Start registers a new job for uploadID. An existing job for the same
// upload is cancelled first; its token stays cancelled so the old run
// stops at its next checkpoint.
func (r *Registry) Start(uploadID int64) *Job {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.jobs[uploadID]; ok {
		existing.Token.Cancel()
		r.log.Info("Cancelled superseded job", "upload_id", uploadID)
	}
	job := &Job{
		UploadID: uploadID,
		Token:    &Token{},
	}
	r.jobs[uploadID] = job
	return job
}

// Get returns the active job for uploadID, if any.
func (r *Registry) Get(uploadID int64) (*Job, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[uploadID]
	return job, ok
}

// Cancel flags the active job for uploadID. Returns false when no job
// is tracked for that upload.
func (r *Registry) Cancel(uploadID int64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[uploadID]
	if !ok {
		return false
	}
	job.Token.Cancel()
	r.log.Info("Job cancelled", "upload_id", uploadID)
	return true
}

// End removes a finished job from the registry. The job itself stays
// usable for draining logs.
func (r *Registry) End(uploadID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.jobs, uploadID)
}
