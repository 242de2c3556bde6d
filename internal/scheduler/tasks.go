package scheduler

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const TaskOutreachSMSDue = "outreach.sms.due"

const TaskOutreachVoiceDue = "outreach.voice.due"

// OutreachDuePayload carries one batch trigger. The batch size travels with
// the task so the worker honors the enqueuer's limit.
type OutreachDuePayload struct {
	BatchSize int `json:"batchSize"`
}

func NewOutreachSMSDueTask(payload OutreachDuePayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskOutreachSMSDue, data), nil
}

func NewOutreachVoiceDueTask(payload OutreachDuePayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskOutreachVoiceDue, data), nil
}

func ParseOutreachDuePayload(task *asynq.Task) (OutreachDuePayload, error) {
	var payload OutreachDuePayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return OutreachDuePayload{}, err
	}
	return payload, nil
}
