package broker

import (
	"encoding/json"
	"fmt"
)

// Task names understood by the workers.
const (
	TaskAssemble   = "assemble_audio"
	TaskTranscribe = "run_transcription"
	TaskDiarize    = "run_diarization"
	TaskEmbed      = "compute_embedding"
)

// Task is the envelope enqueued on a task queue. Fields not used by a given
// task are left zero.
type Task struct {
	Name      string `json:"name"`
	RequestID string `json:"request_id"`
	JobID     int64  `json:"job_id,omitempty"`
	AudioPath string `json:"audio_path,omitempty"`
	Language  string `json:"language,omitempty"`
}

// QueueFor routes a task name to its queue. All model-bound work runs on the
// GPU queue; everything else falls back to the CPU queue.
func QueueFor(name string) string {
	switch name {
	case TaskAssemble, TaskTranscribe, TaskDiarize, TaskEmbed:
		return QueueGPU
	default:
		return QueueCPU
	}
}

// EnqueueTask publishes a task envelope on the queue its name routes to.
func (c *Client) EnqueueTask(t Task) error {
	payload, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("encode task: %w", err)
	}
	queue := QueueFor(t.Name)
	if err := c.Publish(taskPrefix+queue, payload); err != nil {
		return fmt.Errorf("enqueue %s on %s: %w", t.Name, queue, err)
	}
	c.log.Debug().Str("task", t.Name).Str("queue", queue).Str("request_id", t.RequestID).Msg("task enqueued")
	return nil
}

// SubscribeTasks consumes one task queue. Decode failures are logged and the
// message is dropped — a malformed envelope can never succeed on redelivery.
func (c *Client) SubscribeTasks(queue string, handler func(Task)) {
	c.Subscribe(taskPrefix+queue, func(payload []byte) {
		var t Task
		if err := json.Unmarshal(payload, &t); err != nil {
			c.log.Error().Err(err).Str("queue", queue).Msg("dropping undecodable task")
			return
		}
		handler(t)
	})
}

// Update is the payload carried on the job_updates topic.
type Update struct {
	RequestID string          `json:"request_id"`
	Data      json.RawMessage `json:"data"`
}

// PublishUpdate fans a status payload out to every connected front-end via
// the job_updates topic. data must be JSON-serializable.
func (c *Client) PublishUpdate(requestID string, data any) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("encode update data: %w", err)
	}
	payload, err := json.Marshal(Update{RequestID: requestID, Data: raw})
	if err != nil {
		return fmt.Errorf("encode update: %w", err)
	}
	if err := c.Publish(topicRoot+TopicUpdates, payload); err != nil {
		return fmt.Errorf("publish update: %w", err)
	}
	return nil
}

// SubscribeUpdates registers the single per-process listener on the
// job_updates topic.
func (c *Client) SubscribeUpdates(handler func(Update)) {
	c.Subscribe(topicRoot+TopicUpdates, func(payload []byte) {
		var u Update
		if err := json.Unmarshal(payload, &u); err != nil {
			c.log.Error().Err(err).Msg("dropping undecodable job update")
			return
		}
		if u.RequestID == "" || len(u.Data) == 0 {
			return
		}
		handler(u)
	})
}
