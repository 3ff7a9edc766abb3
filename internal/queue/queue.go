// Package queue is a Valkey list used as the analysis job queue.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/valkey-io/valkey-go"

	"github.com/vibeanalyze/vibeanalyze-backend/internal/platform/config"
	"github.com/vibeanalyze/vibeanalyze-backend/internal/platform/observability"
)

// JobStart is the only job name: run collection and analysis for one analysis.
const JobStart = "start"

const (
	opEnqueue = "enqueue"
	opDequeue = "dequeue"
	opInvalid = "invalid"

	connWriteTimeout = 5 * time.Second
	pingTimeout      = 3 * time.Second
)

// ErrInvalidJob indicates a queue entry that could not be decoded.
var ErrInvalidJob = errors.New("invalid job payload")

// Job is one queued unit of work.
type Job struct {
	Name       string    `json:"name"`
	AnalysisID string    `json:"analysisId"`
	EnqueuedAt time.Time `json:"enqueuedAt"`
}

// Queue pushes jobs on the left of a list and pops them from the right.
type Queue struct {
	client      valkey.Client
	key         string
	pollTimeout time.Duration
	logger      *zerolog.Logger
}

// New connects to Valkey and verifies the connection with PING.
func New(ctx context.Context, cfg config.QueueConfig, logger *zerolog.Logger) (*Queue, error) {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}

	client, err := valkey.NewClient(valkey.ClientOption{
		InitAddress:      []string{cfg.ValkeyAddr},
		Password:         cfg.ValkeyPassword,
		ConnWriteTimeout: connWriteTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("create valkey client: %w", err)
	}

	q := &Queue{
		client:      client,
		key:         cfg.AnalysisQueueKey,
		pollTimeout: cfg.QueuePollTimeout,
		logger:      logger,
	}

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	if err := q.Ping(pingCtx); err != nil {
		client.Close()

		return nil, err
	}

	logger.Info().Str("addr", cfg.ValkeyAddr).Str("key", cfg.AnalysisQueueKey).Msg("connected to valkey")

	return q, nil
}

// Ping checks the Valkey connection. Used by the readiness probe.
func (q *Queue) Ping(ctx context.Context) error {
	if err := q.client.Do(ctx, q.client.B().Ping().Build()).Error(); err != nil {
		return fmt.Errorf("ping valkey: %w", err)
	}

	return nil
}

// Enqueue schedules a start job for the analysis.
func (q *Queue) Enqueue(ctx context.Context, analysisID string) error {
	payload, err := encodeJob(Job{Name: JobStart, AnalysisID: analysisID, EnqueuedAt: time.Now().UTC()})
	if err != nil {
		return err
	}

	cmd := q.client.B().Lpush().Key(q.key).Element(payload).Build()
	if err := q.client.Do(ctx, cmd).Error(); err != nil {
		return fmt.Errorf("enqueue analysis %s: %w", analysisID, err)
	}

	observability.QueueJobs.WithLabelValues(opEnqueue).Inc()

	return nil
}

// Dequeue blocks up to the poll timeout for the next job. It returns
// (nil, nil) when no job arrived in time.
func (q *Queue) Dequeue(ctx context.Context) (*Job, error) {
	cmd := q.client.B().Brpop().Key(q.key).Timeout(q.pollTimeout.Seconds()).Build()

	res, err := q.client.Do(ctx, cmd).AsStrSlice()
	if err != nil {
		if valkey.IsValkeyNil(err) {
			return nil, nil //nolint:nilnil // nil,nil means the poll timed out empty
		}

		return nil, fmt.Errorf("dequeue: %w", err)
	}

	// BRPOP replies with [key, element].
	if len(res) != 2 {
		return nil, fmt.Errorf("%w: unexpected reply length %d", ErrInvalidJob, len(res))
	}

	job, err := decodeJob(res[1])
	if err != nil {
		observability.QueueJobs.WithLabelValues(opInvalid).Inc()

		return nil, err
	}

	observability.QueueJobs.WithLabelValues(opDequeue).Inc()

	return job, nil
}

// Close releases the Valkey connection.
func (q *Queue) Close() {
	q.client.Close()
}

func encodeJob(job Job) (string, error) {
	b, err := json.Marshal(job)
	if err != nil {
		return "", fmt.Errorf("encode job: %w", err)
	}

	return string(b), nil
}

func decodeJob(payload string) (*Job, error) {
	var job Job
	if err := json.Unmarshal([]byte(payload), &job); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidJob, err)
	}

	if job.AnalysisID == "" {
		return nil, fmt.Errorf("%w: missing analysisId", ErrInvalidJob)
	}

	if job.Name == "" {
		job.Name = JobStart
	}

	return &job, nil
}
