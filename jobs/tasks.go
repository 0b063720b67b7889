package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskTypeConservationCheck verifies the stored balance against the ledger.
	TaskTypeConservationCheck = "vault:conservation"
	// TaskTypeCacheWarmup primes the balance cache.
	TaskTypeCacheWarmup = "vault:cache_warmup"
)

// ConservationCheckPayload scopes a conservation run.
type ConservationCheckPayload struct {
	RequestedBy string `json:"requested_by,omitempty"`
}

// NewConservationCheckTask constructs an Asynq task.
func NewConservationCheckTask(payload ConservationCheckPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeConservationCheck, data), nil
}

// NewCacheWarmupTask constructs an Asynq task.
func NewCacheWarmupTask() *asynq.Task {
	return asynq.NewTask(TaskTypeCacheWarmup, nil)
}
