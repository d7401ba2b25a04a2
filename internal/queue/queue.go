package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/gwlsn/pipeline/internal/model"
)

// Key names (spec.md §4.3), grounded on original_source/src/queue/redis.rs.
const (
	keyPending    = "encode:queue"
	keyInFlight   = "encode:processing"
	keyDeadLetter = "encode:dead_letter"
	keyJobPrefix  = "encode:job:"
)

func jobKey(id string) string { return keyJobPrefix + id }

// Queue is the durable job queue: a pending FIFO list, an in-flight set,
// a dead-letter list, and per-job records, all backed by Client.
type Queue struct {
	client Client
}

func New(client Client) *Queue {
	return &Queue{client: client}
}

func (q *Queue) writeRecord(ctx context.Context, job *model.Job) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("%w: %v", model.ErrQueueSerializationFailed, err)
	}
	if err := q.client.Set(ctx, jobKey(job.ID), data, 0).Err(); err != nil {
		return fmt.Errorf("%w: %v", model.ErrQueueConnectionFailed, err)
	}
	return nil
}

func (q *Queue) readRecord(ctx context.Context, id string) (*model.Job, error) {
	data, err := q.client.Get(ctx, jobKey(id)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%w: %s", model.ErrQueueJobNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrQueueConnectionFailed, err)
	}
	var job model.Job
	if err := json.Unmarshal([]byte(data), &job); err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrQueueSerializationFailed, err)
	}
	return &job, nil
}

// Enqueue writes the job record, then appends its ID to the pending list.
// The job is visible for Dequeue only after this call returns.
func (q *Queue) Enqueue(ctx context.Context, job *model.Job) error {
	if err := q.writeRecord(ctx, job); err != nil {
		return err
	}
	if err := q.client.RPush(ctx, keyPending, job.ID).Err(); err != nil {
		return fmt.Errorf("%w: %v", model.ErrQueueEnqueueFailed, err)
	}
	return nil
}

// Dequeue pops the head of the pending list, adds it to the in-flight set,
// and returns its record. Returns (nil, nil) when the list is empty.
//
// Pop and set-add are each atomic individually; between them the ID is
// transiently in neither collection (spec.md §4.3) — a crash in that
// window leaves the job record referenced by neither the pending list nor
// the in-flight set. ReconcileInFlight reads only the in-flight set, so
// such a job is not recovered at startup.
func (q *Queue) Dequeue(ctx context.Context) (*model.Job, error) {
	id, err := q.client.LPop(ctx, keyPending).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrQueueDequeueFailed, err)
	}
	if err := q.client.SAdd(ctx, keyInFlight, id).Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrQueueDequeueFailed, err)
	}
	job, err := q.readRecord(ctx, id)
	if err != nil {
		return nil, err
	}
	return job, nil
}

// Update overwrites the job record with no list change.
func (q *Queue) Update(ctx context.Context, job *model.Job) error {
	return q.writeRecord(ctx, job)
}

// Complete writes the completed record and removes the ID from in-flight.
func (q *Queue) Complete(ctx context.Context, job *model.Job) error {
	if err := q.writeRecord(ctx, job); err != nil {
		return err
	}
	if err := q.client.SRem(ctx, keyInFlight, job.ID).Err(); err != nil {
		return fmt.Errorf("%w: %v", model.ErrQueueConnectionFailed, err)
	}
	return nil
}

// Retry writes the job back to pending (error cleared), removes it from
// in-flight, and prepends its ID to the pending list so retried work runs
// ahead of freshly enqueued jobs.
func (q *Queue) Retry(ctx context.Context, job *model.Job) error {
	if err := q.writeRecord(ctx, job); err != nil {
		return err
	}
	if err := q.client.SRem(ctx, keyInFlight, job.ID).Err(); err != nil {
		return fmt.Errorf("%w: %v", model.ErrQueueConnectionFailed, err)
	}
	if err := q.client.LPush(ctx, keyPending, job.ID).Err(); err != nil {
		return fmt.Errorf("%w: %v", model.ErrQueueEnqueueFailed, err)
	}
	return nil
}

// DeadLetter writes the record, removes it from in-flight, and appends its
// ID to the dead-letter list.
func (q *Queue) DeadLetter(ctx context.Context, job *model.Job) error {
	if err := q.writeRecord(ctx, job); err != nil {
		return err
	}
	if err := q.client.SRem(ctx, keyInFlight, job.ID).Err(); err != nil {
		return fmt.Errorf("%w: %v", model.ErrQueueConnectionFailed, err)
	}
	if err := q.client.RPush(ctx, keyDeadLetter, job.ID).Err(); err != nil {
		return fmt.Errorf("%w: %v", model.ErrQueueConnectionFailed, err)
	}
	return nil
}

// RetryDeadLetter removes one occurrence of id from the dead-letter list;
// if found, resets the job record to pending and appends it to the
// pending list. Returns ErrQueueJobNotFound if id was not in the DLQ.
func (q *Queue) RetryDeadLetter(ctx context.Context, id string) error {
	removed, err := q.client.LRem(ctx, keyDeadLetter, 1, id).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", model.ErrQueueConnectionFailed, err)
	}
	if removed == 0 {
		return fmt.Errorf("%w: %s", model.ErrQueueJobNotFound, id)
	}
	job, err := q.readRecord(ctx, id)
	if err != nil {
		return err
	}
	job.ResetForRetry(time.Now())
	if err := q.writeRecord(ctx, job); err != nil {
		return err
	}
	return q.client.RPush(ctx, keyPending, job.ID).Err()
}

// ListPending returns all current pending job records, best effort: an ID
// whose record has gone missing is skipped rather than failing the call.
func (q *Queue) ListPending(ctx context.Context) ([]*model.Job, error) {
	return q.listByIDs(ctx, keyPending)
}

// ListDeadLetter returns all current dead-letter job records.
func (q *Queue) ListDeadLetter(ctx context.Context) ([]*model.Job, error) {
	return q.listByIDs(ctx, keyDeadLetter)
}

func (q *Queue) listByIDs(ctx context.Context, listKey string) ([]*model.Job, error) {
	ids, err := q.client.LRange(ctx, listKey, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrQueueConnectionFailed, err)
	}
	jobs := make([]*model.Job, 0, len(ids))
	for _, id := range ids {
		job, err := q.readRecord(ctx, id)
		if errors.Is(err, model.ErrQueueJobNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, nil
}

// ListInFlight returns all current in-flight job IDs with their records,
// used by the startup reconciliation scan.
func (q *Queue) ListInFlight(ctx context.Context) ([]*model.Job, error) {
	ids, err := q.client.SMembers(ctx, keyInFlight).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrQueueConnectionFailed, err)
	}
	jobs := make([]*model.Job, 0, len(ids))
	for _, id := range ids {
		job, err := q.readRecord(ctx, id)
		if errors.Is(err, model.ErrQueueJobNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, nil
}

// ClearPending removes the pending list key entirely, returning its prior
// length.
func (q *Queue) ClearPending(ctx context.Context) (int64, error) {
	n, err := q.client.LLen(ctx, keyPending).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", model.ErrQueueConnectionFailed, err)
	}
	if err := q.client.Del(ctx, keyPending).Err(); err != nil {
		return 0, fmt.Errorf("%w: %v", model.ErrQueueConnectionFailed, err)
	}
	return n, nil
}

// PendingDepth, InFlightCount, and DeadLetterDepth back the metrics gauges.
func (q *Queue) PendingDepth(ctx context.Context) (int64, error) {
	n, err := q.client.LLen(ctx, keyPending).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", model.ErrQueueConnectionFailed, err)
	}
	return n, nil
}

func (q *Queue) InFlightCount(ctx context.Context) (int64, error) {
	n, err := q.client.SCard(ctx, keyInFlight).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", model.ErrQueueConnectionFailed, err)
	}
	return n, nil
}

func (q *Queue) DeadLetterDepth(ctx context.Context) (int64, error) {
	n, err := q.client.LLen(ctx, keyDeadLetter).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", model.ErrQueueConnectionFailed, err)
	}
	return n, nil
}

// ReconcileInFlight finds in-flight job records left behind by a crash
// (e.g. the worker died mid-job) and returns them to pending. Run once at
// startup (spec.md §9 Open Question #2, decided: implement).
func (q *Queue) ReconcileInFlight(ctx context.Context) (int, error) {
	stuck, err := q.ListInFlight(ctx)
	if err != nil {
		return 0, err
	}
	for _, job := range stuck {
		job.ResetForRetry(time.Now())
		if err := q.Retry(ctx, job); err != nil {
			return 0, err
		}
	}
	return len(stuck), nil
}
