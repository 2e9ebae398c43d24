package api

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/snarg/meeting-engine/internal/database"
)

// TimedSegment is a transcript segment with display-formatted timestamps.
type TimedSegment struct {
	ID        int    `json:"id"`
	Text      string `json:"text"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
}

// SpeakerTimedSegment adds the speaker label to a timed segment.
type SpeakerTimedSegment struct {
	ID        int    `json:"id"`
	Speaker   string `json:"speaker"`
	Text      string `json:"text"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
}

// StatusEnvelope is the job view returned by the status endpoint, sent as the
// streaming snapshot, and published on the job_updates topic after each
// state-changing operation.
type StatusEnvelope struct {
	RequestID          string                `json:"request_id"`
	Status             string                `json:"status"`
	BBHName            string                `json:"bbh_name"`
	MeetingType        string                `json:"meeting_type"`
	MeetingHost        string                `json:"meeting_host"`
	Language           string                `json:"language"`
	PlainTranscript    []TimedSegment        `json:"plain_transcript"`
	DiarizedTranscript []SpeakerTimedSegment `json:"diarized_transcript"`
	ErrorMessage       *string               `json:"error_message"`
}

// formatHMS renders a duration in seconds as HH:MM:SS with integer
// truncation. Values that do not represent a duration come out as 00:00:00.
func formatHMS(seconds float64) string {
	if math.IsNaN(seconds) || math.IsInf(seconds, 0) || seconds < 0 {
		return "00:00:00"
	}
	total := int(seconds)
	return fmt.Sprintf("%02d:%02d:%02d", total/3600, (total%3600)/60, total%60)
}

// TimedView renders transcript segments with display-formatted timestamps.
func TimedView(segments []database.Segment) []TimedSegment {
	out := make([]TimedSegment, 0, len(segments))
	for _, s := range segments {
		out = append(out, TimedSegment{
			ID:        s.ID,
			Text:      s.Text,
			StartTime: formatHMS(s.Start),
			EndTime:   formatHMS(s.End),
		})
	}
	return out
}

// BuildEnvelope assembles the status envelope for a job, attaching the
// active-language transcript and the diarized transcript when present.
// A missing transcript is not an error; the field stays null.
func BuildEnvelope(ctx context.Context, db *database.DB, job *database.Job) (*StatusEnvelope, error) {
	env := &StatusEnvelope{
		RequestID:    job.RequestID,
		Status:       job.Status,
		BBHName:      job.BBHName,
		MeetingType:  job.MeetingType,
		MeetingHost:  job.MeetingHost,
		Language:     job.Language,
		ErrorMessage: job.ErrorMessage,
	}

	t, err := db.GetTranscript(ctx, job.ID, job.Language)
	if err != nil && !errors.Is(err, database.ErrNotFound) {
		return nil, err
	}
	if t != nil {
		env.PlainTranscript = TimedView(t.Segments)
	}

	d, err := db.GetDiarizedTranscript(ctx, job.ID)
	if err != nil && !errors.Is(err, database.ErrNotFound) {
		return nil, err
	}
	if d != nil {
		env.DiarizedTranscript = make([]SpeakerTimedSegment, 0, len(d.Segments))
		for _, s := range d.Segments {
			env.DiarizedTranscript = append(env.DiarizedTranscript, SpeakerTimedSegment{
				ID:        s.ID,
				Speaker:   s.Speaker,
				Text:      s.Text,
				StartTime: formatHMS(s.Start),
				EndTime:   formatHMS(s.End),
			})
		}
	}

	return env, nil
}
