package jobs

import (
	"encoding/json"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskAllocationScan sweeps purchase orders for over-allocated advances.
	TaskAllocationScan = "allocation:scan"
)

// AllocationScanPayload identifies one sweep run.
type AllocationScanPayload struct {
	RunID string `json:"run_id"`
}

// NewAllocationScanTask constructs an allocation sweep task with a fresh
// run ID.
func NewAllocationScanTask() (*asynq.Task, error) {
	data, err := json.Marshal(AllocationScanPayload{RunID: uuid.NewString()})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskAllocationScan, data), nil
}
