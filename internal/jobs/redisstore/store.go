// Package redisstore keeps receipt job state in Redis so the API and worker
// processes see the same jobs.
package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dvloznov/finance-assistant/internal/jobs"
	redis "github.com/redis/go-redis/v9"
)

const (
	jobKeyPrefix = "job:"
	indexKey     = "jobs:by_created"

	// DefaultTTL bounds how long finished job state is kept.
	DefaultTTL = 7 * 24 * time.Hour
)

// Cmdable is the subset of *redis.Client the store uses.
type Cmdable interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	ZAdd(ctx context.Context, key string, members ...redis.Z) *redis.IntCmd
	ZRevRange(ctx context.Context, key string, start, stop int64) *redis.StringSliceCmd
}

// Store implements jobs.JobStore on Redis. Each job is a JSON value under
// job:<id>; a sorted set indexes ids by creation time.
type Store struct {
	client Cmdable
	ttl    time.Duration
}

func New(client Cmdable, ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Store{client: client, ttl: ttl}
}

// SaveJob implements jobs.JobStore.
func (s *Store) SaveJob(ctx context.Context, job *jobs.AnalyzeReceiptJob) error {
	if job.JobID == "" {
		return fmt.Errorf("job ID is required")
	}

	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("SaveJob: marshal: %w", err)
	}
	if err := s.client.Set(ctx, jobKeyPrefix+job.JobID, data, s.ttl).Err(); err != nil {
		return fmt.Errorf("SaveJob: set: %w", err)
	}

	member := redis.Z{Score: float64(job.CreatedAt.UnixMilli()), Member: job.JobID}
	if err := s.client.ZAdd(ctx, indexKey, member).Err(); err != nil {
		return fmt.Errorf("SaveJob: index: %w", err)
	}
	return nil
}

// GetJob implements jobs.JobStore.
func (s *Store) GetJob(ctx context.Context, jobID string) (*jobs.AnalyzeReceiptJob, error) {
	raw, err := s.client.Get(ctx, jobKeyPrefix+jobID).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%w: %s", jobs.ErrJobNotFound, jobID)
	}
	if err != nil {
		return nil, fmt.Errorf("GetJob: get: %w", err)
	}

	var job jobs.AnalyzeReceiptJob
	if err := json.Unmarshal(raw, &job); err != nil {
		return nil, fmt.Errorf("GetJob: unmarshal: %w", err)
	}
	return &job, nil
}

// ListJobs implements jobs.JobStore. Ids whose state has expired are skipped.
func (s *Store) ListJobs(ctx context.Context, filter jobs.JobFilter) ([]*jobs.AnalyzeReceiptJob, error) {
	ids, err := s.client.ZRevRange(ctx, indexKey, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("ListJobs: range: %w", err)
	}

	result := []*jobs.AnalyzeReceiptJob{}
	for _, id := range ids {
		job, err := s.GetJob(ctx, id)
		if errors.Is(err, jobs.ErrJobNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		if filter.Matches(job) {
			result = append(result, job)
		}
	}
	return jobs.Page(result, filter), nil
}

// UpdateJobStatus implements jobs.JobStore.
func (s *Store) UpdateJobStatus(ctx context.Context, jobID string, status jobs.JobStatus, errorMsg string) error {
	job, err := s.GetJob(ctx, jobID)
	if err != nil {
		return err
	}
	job.Status = status
	if errorMsg != "" {
		job.Error = errorMsg
	}
	return s.SaveJob(ctx, job)
}

var _ jobs.JobStore = (*Store)(nil)
