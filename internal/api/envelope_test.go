package api

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/snarg/meeting-engine/internal/database"
)

func TestFormatHMS(t *testing.T) {
	cases := []struct {
		seconds float64
		want    string
	}{
		{0, "00:00:00"},
		{59.9, "00:00:59"},
		{61, "00:01:01"},
		{3599, "00:59:59"},
		{3661.5, "01:01:01"},
		{7325, "02:02:05"},
		{-1, "00:00:00"},
		{math.NaN(), "00:00:00"},
		{math.Inf(1), "00:00:00"},
	}
	for _, c := range cases {
		if got := formatHMS(c.seconds); got != c.want {
			t.Errorf("formatHMS(%v): expected %q, got %q", c.seconds, c.want, got)
		}
	}
}

func TestTimedView(t *testing.T) {
	segs := []database.Segment{
		{ID: 1, Text: "xin chào", Start: 0, End: 2.4},
		{ID: 2, Text: "mọi người", Start: 2.4, End: 65.1},
	}
	got := TimedView(segs)
	if len(got) != 2 {
		t.Fatalf("expected 2 segments, got %d", len(got))
	}
	if got[0].Text != "xin chào" || got[0].StartTime != "00:00:00" || got[0].EndTime != "00:00:02" {
		t.Errorf("segment 0: %+v", got[0])
	}
	if got[1].ID != 2 || got[1].EndTime != "00:01:05" {
		t.Errorf("segment 1: %+v", got[1])
	}

	if got := TimedView(nil); got == nil || len(got) != 0 {
		t.Errorf("nil input: expected empty slice, got %#v", got)
	}
}

func TestStatusEnvelope_NilTranscriptsMarshalNull(t *testing.T) {
	env := StatusEnvelope{
		RequestID: "abc",
		Status:    "uploading",
	}
	b, err := json.Marshal(env)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var m map[string]json.RawMessage
	if err := json.Unmarshal(b, &m); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if string(m["plain_transcript"]) != "null" {
		t.Errorf("plain_transcript: expected null, got %s", m["plain_transcript"])
	}
	if string(m["diarized_transcript"]) != "null" {
		t.Errorf("diarized_transcript: expected null, got %s", m["diarized_transcript"])
	}
	if string(m["error_message"]) != "null" {
		t.Errorf("error_message: expected null, got %s", m["error_message"])
	}
}
