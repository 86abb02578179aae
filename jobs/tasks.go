// Package jobs holds the background work: the nightly ledger
// verification and the expiring lot scan, both driven by asynq crons.
package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskLedgerVerify replays every product ledger against its cached balance.
	TaskLedgerVerify = "ledger:verify"
	// TaskLotExpiryScan looks for lots running out of shelf life.
	TaskLotExpiryScan = "lots:expiry-scan"
)

// LedgerVerifyPayload carries scheduling metadata.
type LedgerVerifyPayload struct {
	ScheduledFor time.Time `json:"scheduled_for"`
}

// NewLedgerVerifyTask constructs the nightly verification task.
func NewLedgerVerifyTask(at time.Time) (*asynq.Task, error) {
	body, err := json.Marshal(LedgerVerifyPayload{ScheduledFor: at})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskLedgerVerify, body, asynq.Queue(QueueDefault)), nil
}

// LotExpiryScanPayload sets the scan window.
type LotExpiryScanPayload struct {
	WithinDays int `json:"within_days"`
}

// NewLotExpiryScanTask constructs the expiry scan task.
func NewLotExpiryScanTask(withinDays int) (*asynq.Task, error) {
	if withinDays <= 0 {
		withinDays = 30
	}
	body, err := json.Marshal(LotExpiryScanPayload{WithinDays: withinDays})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskLotExpiryScan, body, asynq.Queue(QueueDefault)), nil
}
