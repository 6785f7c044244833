// Package queue provides a disk-persisted upload queue and a bounded
// worker pool that drains it into the parser/validator pipeline (spec
// §5: "ingest is decoupled from validation by a durable queue so a
// burst of uploads does not block the submitting client, and survives
// a process restart"). Grounded on the teacher's go.mod dependency on
// github.com/beeker1121/goque for disk-backed durability and on
// golang.org/x/sync/errgroup for the bounded worker pool, the same
// primitive the directory publisher uses for batch fan-out.
package queue

import (
	"bytes"
	"context"
	"encoding/gob"
	"fmt"
	"runtime"
	"time"

	"github.com/beeker1121/goque"
	"golang.org/x/sync/errgroup"

	"github.com/iland112/local-pkd-sub001/core"
)

// UploadJob is one durable unit of ingest work: a raw uploaded blob
// plus the metadata needed to route it to the correct sub-parser.
type UploadJob struct {
	UploadId       core.UploadId
	Format         core.FileFormat
	SourceFilename string
	ReceivedAt     time.Time
	Raw            []byte
}

// UploadQueue wraps a goque.Queue, persisting UploadJobs to disk so an
// ingest worker crash or restart does not lose accepted-but-unprocessed
// uploads.
type UploadQueue struct {
	q *goque.Queue
}

// Open opens (creating if necessary) a durable queue rooted at dir.
func Open(dir string) (*UploadQueue, error) {
	q, err := goque.OpenQueue(dir)
	if err != nil {
		return nil, fmt.Errorf("queue: opening %s: %w", dir, err)
	}
	return &UploadQueue{q: q}, nil
}

// Close releases the underlying on-disk queue.
func (u *UploadQueue) Close() error {
	return u.q.Close()
}

// Enqueue durably persists job, returning once it is safely on disk.
func (u *UploadQueue) Enqueue(job UploadJob) error {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(job); err != nil {
		return fmt.Errorf("queue: encoding job: %w", err)
	}
	_, err := u.q.Enqueue(buf.Bytes())
	return err
}

// dequeue pops the oldest job, returning ok=false (not an error) if the
// queue is currently empty.
func (u *UploadQueue) dequeue() (job UploadJob, ok bool, err error) {
	item, err := u.q.Dequeue()
	if err == goque.ErrEmpty {
		return UploadJob{}, false, nil
	}
	if err != nil {
		return UploadJob{}, false, err
	}
	if err := gob.NewDecoder(bytes.NewReader(item.Value)).Decode(&job); err != nil {
		return UploadJob{}, false, fmt.Errorf("queue: decoding job: %w", err)
	}
	return job, true, nil
}

// Handler processes one dequeued UploadJob.
type Handler func(ctx context.Context, job UploadJob) error

// pollInterval is how often an idle worker checks the queue again
// (spec §5: workers block on an empty durable queue rather than busy-
// spin; goque has no native blocking Dequeue, so this is the poll
// period).
const pollInterval = 200 * time.Millisecond

// RunWorkerPool drains q with workerCount concurrent workers calling
// handle for each job, stopping when ctx is cancelled. A default
// workerCount of CPU x2 matches spec §5's stated concurrency model for
// a workload that alternates between disk I/O (dequeue) and CPU-bound
// ASN.1 parsing.
func RunWorkerPool(ctx context.Context, q *UploadQueue, workerCount int, handle Handler) error {
	if workerCount <= 0 {
		workerCount = runtime.NumCPU() * 2
	}
	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < workerCount; i++ {
		g.Go(func() error {
			return worker(ctx, q, handle)
		})
	}
	return g.Wait()
}

func worker(ctx context.Context, q *UploadQueue, handle Handler) error {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			job, ok, err := q.dequeue()
			if err != nil {
				return err
			}
			if !ok {
				continue
			}
			if err := handle(ctx, job); err != nil {
				// A single job's failure does not stop the pool; the
				// caller's handler is responsible for its own audit
				// logging of the failure (spec §4.1: failures never
				// abort the overall parse).
				continue
			}
		}
	}
}
