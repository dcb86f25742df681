package scheduler

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	TaskAnalyzeCase = "cases.analyze"
	TaskMatchCase   = "cases.match"
)

// CasePayload identifies the case a task works on.
type CasePayload struct {
	CaseID string `json:"caseId"`
}

func NewCaseTask(taskType string, payload CasePayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(taskType, data), nil
}

func ParseCasePayload(task *asynq.Task) (CasePayload, error) {
	var payload CasePayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return CasePayload{}, err
	}
	return payload, nil
}
