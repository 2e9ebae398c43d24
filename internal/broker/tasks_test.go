package broker

import (
	"encoding/json"
	"testing"
)

func TestQueueFor(t *testing.T) {
	tests := []struct {
		name string
		task string
		want string
	}{
		{"assemble_on_gpu", TaskAssemble, QueueGPU},
		{"transcribe_on_gpu", TaskTranscribe, QueueGPU},
		{"diarize_on_gpu", TaskDiarize, QueueGPU},
		{"embed_on_gpu", TaskEmbed, QueueGPU},
		{"unknown_falls_back_to_cpu", "reindex_everything", QueueCPU},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := QueueFor(tt.task); got != tt.want {
				t.Errorf("QueueFor(%q) = %q, want %q", tt.task, got, tt.want)
			}
		})
	}
}

func TestTask_ZeroFieldsOmitted(t *testing.T) {
	b, err := json.Marshal(Task{Name: TaskAssemble, RequestID: "req-1"})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	for _, key := range []string{"job_id", "audio_path", "language"} {
		if _, ok := m[key]; ok {
			t.Errorf("expected %q omitted from %s", key, b)
		}
	}
}

func TestUpdate_CarriesRawData(t *testing.T) {
	raw, _ := json.Marshal(map[string]string{"status": "transcribing"})
	b, err := json.Marshal(Update{RequestID: "req-1", Data: raw})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var u Update
	if err := json.Unmarshal(b, &u); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if u.RequestID != "req-1" {
		t.Errorf("RequestID = %q, want %q", u.RequestID, "req-1")
	}
	var data map[string]string
	if err := json.Unmarshal(u.Data, &data); err != nil {
		t.Fatalf("decode data: %v", err)
	}
	if data["status"] != "transcribing" {
		t.Errorf("status = %q, want %q", data["status"], "transcribing")
	}
}
