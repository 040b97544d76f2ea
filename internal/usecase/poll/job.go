// Package poll implements the feed polling job: fetch one page of a
// publisher feed, record or clear its outage, hand new features to the
// update processor and decide whether to continue with the next page.
package poll

import (
	"context"
	"errors"
	"strconv"
	"sync"
)

// MaxPageNumber is the last page a poll chain may fetch.
const MaxPageNumber = 10

// ErrPublisherNotFound is returned when the job names an unknown publisher.
// It is not an outage and propagates to the scheduler.
var ErrPublisherNotFound = errors.New("publisher not found")

// Job is one unit of polling work.
type Job struct {
	PublisherID int64
	// URL is the page to fetch. Empty means the publisher's endpoint.
	URL        string
	PageNumber int
}

// Key is the concurrency key of the job. Jobs sharing a key never run at
// the same time.
func (j Job) Key() string {
	return "publisher:" + strconv.FormatInt(j.PublisherID, 10)
}

// RequestTag identifies the traffic of one publisher.
func RequestTag(publisherID int64) string {
	return "request.publisher." + strconv.FormatInt(publisherID, 10)
}

// Enqueuer hands a job to the scheduler without waiting for it to run.
type Enqueuer interface {
	Enqueue(ctx context.Context, job Job) error
}

// SyncQueue is an Enqueuer that only collects jobs. Callers drain it with
// Next to run a poll chain sequentially in the current goroutine.
type SyncQueue struct {
	mu   sync.Mutex
	jobs []Job
}

// Enqueue appends job.
func (q *SyncQueue) Enqueue(_ context.Context, job Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.jobs = append(q.jobs, job)
	return nil
}

// Next pops the oldest job.
func (q *SyncQueue) Next() (Job, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.jobs) == 0 {
		return Job{}, false
	}
	job := q.jobs[0]
	q.jobs = q.jobs[1:]
	return job, true
}

// Len returns the number of pending jobs.
func (q *SyncQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.jobs)
}
